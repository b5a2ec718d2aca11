package cli

import (
	"fmt"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/livestore/internal/livestore"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Metrics bool
}

// StatsResult is the stats payload.
type StatsResult struct {
	Dir     string             `json:"dir"`
	Types   map[string]int64   `json:"types"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print record counts per type",
		Long: `Print how many records each type in the store directory holds.

With --metrics the counters collected while counting are printed too
(prometheus text format, or a flat map with --format json).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "include livestore metrics")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	types, err := s.db.Engine().Types()
	if err != nil {
		return s.out.Fail(ExitCommandError, CodeStore, "failed to list types", err)
	}
	result := StatsResult{Dir: s.db.Engine().Dir(), Types: make(map[string]int64, len(types))}
	for _, rt := range types {
		n, err := livestore.Blocking(cmd.Context(), s.db, livestore.Count[record.Doc](query.Of(rt)))
		if err != nil {
			return s.out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("count %s failed", rt), err)
		}
		result.Types[string(rt)] = n
	}

	families, err := s.reg.Gather()
	if err != nil {
		return s.out.Fail(ExitCommandError, CodeStore, "failed to gather metrics", err)
	}

	if s.out.JSON() {
		if opts.Metrics {
			result.Metrics = flatten(families)
		}
		return s.out.Success(result)
	}

	w := s.out.Writer
	fmt.Fprintf(w, "Store: %s\n", result.Dir)
	if len(types) == 0 {
		fmt.Fprintln(w, "No record types.")
	}
	for _, rt := range types {
		fmt.Fprintf(w, "  %s: %d\n", rt, result.Types[string(rt)])
	}
	if opts.Metrics {
		fmt.Fprintln(w)
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

// flatten keys each counter and gauge sample as name{label="value",...}.
func flatten(families []*dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[name] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[name] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}
