package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livestore/internal/canon"
	"github.com/roach88/livestore/internal/livestore"
	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/record"
)

// QueryOptions are the filter flags shared by list, count and watch.
type QueryOptions struct {
	Where   []string
	OrderBy string
	Desc    bool
	Limit   int
}

func (q *QueryOptions) register(cmd *cobra.Command, limit bool) {
	cmd.Flags().StringArrayVarP(&q.Where, "where", "w", nil, "filter field=value (repeatable; value parsed as JSON when it can be)")
	cmd.Flags().StringVar(&q.OrderBy, "order-by", "", "sort by field (default insertion order)")
	cmd.Flags().BoolVar(&q.Desc, "desc", false, "sort descending")
	if limit {
		cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum number of records (0 = all)")
	}
}

// build turns the flags into a query over rt.
func (q *QueryOptions) build(rt record.Type) (query.Query, error) {
	out := query.Of(rt)
	for _, w := range q.Where {
		field, raw, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return query.Query{}, fmt.Errorf("invalid --where %q: want field=value", w)
		}
		out = out.Equal(field, parseValue(raw))
	}
	if q.OrderBy != "" {
		dir := query.Asc
		if q.Desc {
			dir = query.Desc
		}
		out = out.OrderBy(q.OrderBy, dir)
	}
	if q.Limit < 0 {
		return query.Query{}, fmt.Errorf("invalid --limit %d", q.Limit)
	}
	if q.Limit > 0 {
		out = out.Take(q.Limit)
	}
	return out, query.Validate(out)
}

// parseValue reads s as JSON, falling back to the raw string.
func parseValue(s string) any {
	if v, err := canon.Parse([]byte(s)); err == nil {
		return v
	}
	return s
}

// parseDocs reads one JSON object or an array of them. Each object needs a
// string "key"; the other members become the record's fields.
func parseDocs(rt record.Type, data []byte) ([]record.Doc, error) {
	v, err := canon.Parse(data)
	if err != nil {
		return nil, err
	}
	var objs []any
	switch val := v.(type) {
	case map[string]any:
		objs = []any{val}
	case []any:
		objs = val
	default:
		return nil, fmt.Errorf("want a JSON object or array, got %T", v)
	}

	docs := make([]record.Doc, 0, len(objs))
	for i, o := range objs {
		obj, ok := o.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: want an object, got %T", i, o)
		}
		key, ok := obj["key"].(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("item %d: missing string \"key\"", i)
		}
		fields := make(map[string]any, len(obj)-1)
		for k, v := range obj {
			if k != "key" {
				fields[k] = v
			}
		}
		doc, err := record.NewDoc(rt, key, fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func views(docs []record.Doc) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d.View()
	}
	return out
}

// writeDocs prints one record per line: key, a tab, the canonical fields.
func writeDocs(w io.Writer, docs []record.Doc) {
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\n", d.Key, canon.MustMarshal(d.Fields))
	}
}

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Mode string
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <type> <json>",
		Short: "Insert or update records",
		Long: `Insert or update records of one type in a single transaction.

The JSON is one object or an array of objects. Each needs a string "key";
the rest of the object is stored as the record. Use - to read stdin.

Examples:
  livestore put person '{"key":"1","name":"Ada","age":36}'
  livestore put person '[{"key":"1"},{"key":"2"}]' --mode async
  cat people.json | livestore put person -`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, record.Type(args[0]), args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "blocking", "execution mode (sync|blocking|async)")

	return cmd
}

func runPut(opts *PutOptions, rt record.Type, input string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	mode, err := livestore.ParseMode(opts.Mode)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "invalid --mode", err)
	}

	data := []byte(input)
	if input == "-" {
		if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return out.Fail(ExitCommandError, CodeInvalidInput, "failed to read stdin", err)
		}
	}
	docs, err := parseDocs(rt, data)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "invalid records", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := livestore.Exec(cmd.Context(), s.db, mode, livestore.InsertOrUpdate(docs...))
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("put %s failed", rt), err)
	}
	if out.JSON() {
		return out.Success(map[string]any{"type": rt, "inserted": n, "written": len(docs)})
	}
	fmt.Fprintf(out.Writer, "✓ %d %s record(s) written, %d new\n", len(docs), rt, n)
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <type> <key>",
		Short: "Print one record",
		Long: `Print the record of the given type with the given key.

Exit codes:
  0 - Record found
  1 - No such record
  2 - Command error`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, record.Type(args[0]), args[1], cmd)
		},
	}
	return cmd
}

func runGet(opts *RootOptions, rt record.Type, key string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	v, err := livestore.Blocking(cmd.Context(), s.db, livestore.FindFirst[record.Doc](query.Of(rt).Equal("key", key)))
	if err != nil {
		return s.out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("get %s failed", rt), err)
	}
	doc, ok := v.Get()
	if !ok {
		return s.out.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("%s %q not found", rt, key), nil)
	}
	if s.out.JSON() {
		return s.out.Success(doc.View())
	}
	writeDocs(s.out.Writer, []record.Doc{doc})
	return nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	QueryOptions
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "Print the records matching a filter",
		Long: `Print every record of a type that matches the filters.

Examples:
  livestore list person
  livestore list person --where name=Ada --where age=36
  livestore list person --order-by age --desc --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, record.Type(args[0]), cmd)
		},
	}

	opts.QueryOptions.register(cmd, true)

	return cmd
}

func runList(opts *ListOptions, rt record.Type, cmd *cobra.Command) error {
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

	docs, err := livestore.Blocking(cmd.Context(), s.db, livestore.FindAll[record.Doc](q))
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("list %s failed", rt), err)
	}
	if out.JSON() {
		return out.Success(map[string]any{"type": rt, "records": views(docs)})
	}
	writeDocs(out.Writer, docs)
	return nil
}

// CountOptions holds flags for the count command.
type CountOptions struct {
	*RootOptions
	QueryOptions
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "count <type>",
		Short:         "Count the records matching a filter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, record.Type(args[0]), cmd)
		},
	}

	opts.QueryOptions.register(cmd, false)

	return cmd
}

func runCount(opts *CountOptions, rt record.Type, cmd *cobra.Command) error {
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

	n, err := livestore.Blocking(cmd.Context(), s.db, livestore.Count[record.Doc](q))
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("count %s failed", rt), err)
	}
	if out.JSON() {
		return out.Success(map[string]any{"type": rt, "count": n})
	}
	return out.Success(n)
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Mode string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <type>",
		Short:         "Delete every record of a type",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, record.Type(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "blocking", "execution mode (sync|blocking|async)")

	return cmd
}

func runDelete(opts *DeleteOptions, rt record.Type, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	mode, err := livestore.ParseMode(opts.Mode)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInvalidInput, "invalid --mode", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := livestore.Exec(cmd.Context(), s.db, mode, livestore.DeleteType(rt))
	if err != nil {
		return out.Fail(ExitCommandError, CodeStore, fmt.Sprintf("delete %s failed", rt), err)
	}
	if out.JSON() {
		return out.Success(map[string]any{"type": rt, "deleted": n})
	}
	fmt.Fprintf(out.Writer, "✓ %d %s record(s) deleted\n", n, rt)
	return nil
}
