package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/livestore/internal/live"
	"github.com/roach88/livestore/internal/livestore"
	"github.com/roach88/livestore/internal/record"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	QueryOptions
	Count    bool
	Max      int
	Interval time.Duration
}

// Emission is one snapshot printed by watch.
type Emission struct {
	Seq     int         `json:"seq"`
	Type    record.Type `json:"type"`
	Count   *int        `json:"count,omitempty"`
	Records any         `json:"records,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <type>",
		Short: "Follow a query and print every change",
		Long: `Follow the records matching a filter and print a snapshot each time
they change. The first snapshot is the current result. Snapshots that are
equal to the previous one are not printed.

Writes from other processes are picked up by rescanning every --interval.
Runs until interrupted, or until --max snapshots were printed.

Examples:
  livestore watch person --where age=36
  livestore watch person --count
  livestore watch person --format json --max 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, record.Type(args[0]), cmd)
		},
	}

	opts.QueryOptions.register(cmd, true)
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matches instead of the records")
	cmd.Flags().IntVar(&opts.Max, "max", 0, "stop after this many snapshots (0 = run until interrupted)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "rescan period for writes from other processes (0 disables)")

	return cmd
}

func runWatch(opts *WatchOptions, rt record.Type, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	q, err := opts.QueryOptions.build(rt)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "invalid query", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Interval > 0 {
		go rescan(ctx, s.db, rt, opts.Interval)
	}

	if opts.Count {
		return follow(ctx, livestore.ObserveCount[record.Doc](s.db, q), opts.Max, func(seq, n int) error {
			return printEmission(out, Emission{Seq: seq, Type: rt, Count: &n})
		})
	}
	return follow(ctx, livestore.ObserveAll[record.Doc](s.db, q), opts.Max, func(seq int, docs []record.Doc) error {
		if !out.JSON() {
			fmt.Fprintf(out.Writer, "--- #%d: %d %s record(s)\n", seq, len(docs), rt)
			writeDocs(out.Writer, docs)
			return nil
		}
		return printEmission(out, Emission{Seq: seq, Type: rt, Records: views(docs)})
	})
}

// follow subscribes to o and prints emissions until ctx ends or limit
// were printed. The subscriber only hands values over, so printing never runs on
// the binding loop.
func follow[V any](ctx context.Context, o *live.Observable[V], limit int, emit func(seq int, v V) error) error {
	values := make(chan V, 16)
	sub := o.Subscribe(func(v V) {
		select {
		case values <- v:
		case <-ctx.Done():
		}
	})
	defer sub.Unsubscribe()

	for seq := 1; limit <= 0 || seq <= limit; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case v := <-values:
			if err := emit(seq, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// rescan re-runs rt's live queries every interval.
func rescan(ctx context.Context, db *livestore.DB, rt record.Type, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.Engine().Rescan(rt)
		}
	}
}

func printEmission(out *OutputFormatter, e Emission) error {
	if out.JSON() {
		return json.NewEncoder(out.Writer).Encode(CLIResponse{Status: "ok", Data: e})
	}
	_, err := fmt.Fprintf(out.Writer, "--- #%d: %d %s record(s)\n", e.Seq, *e.Count, e.Type)
	return err
}
