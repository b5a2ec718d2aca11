package store

import (
	"context"
	"fmt"

	"github.com/roach88/livestore/internal/query"
	"github.com/roach88/livestore/internal/querysql"
)

// Query returns the rows matching q, ordered deterministically.
// Returns an empty slice (not nil) when nothing matches.
func (h *Handle) Query(ctx context.Context, q query.Query) ([]Row, error) {
	if err := h.checkOpen("query"); err != nil {
		return nil, err
	}
	stmt, params, err := querysql.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", h.rt, err)
	}
	rows, err := h.db().QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", h.rt, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		var body string
		if err := rows.Scan(&r.Key, &r.Seq, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", h.rt, err)
		}
		r.Body = []byte(body)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", h.rt, err)
	}
	return out, nil
}

// First returns the first matching row.
func (h *Handle) First(ctx context.Context, q query.Query) (Row, bool, error) {
	rows, err := h.Query(ctx, q.Take(1))
	if err != nil || len(rows) == 0 {
		return Row{}, false, err
	}
	return rows[0], true, nil
}

// Count returns how many rows match q.
func (h *Handle) Count(ctx context.Context, q query.Query) (int64, error) {
	if err := h.checkOpen("count"); err != nil {
		return 0, err
	}
	stmt, params, err := querysql.CompileCount(q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", h.rt, err)
	}
	var n int64
	if err := h.db().QueryRowContext(ctx, stmt, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", h.rt, err)
	}
	return n, nil
}
