package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Put inserts the record or replaces its body. It reports whether the key
// was new. Updates keep the original insertion order.
//
// Requires an open transaction.
func (h *Handle) Put(ctx context.Context, key string, body []byte) (bool, error) {
	if err := h.checkWrite("put"); err != nil {
		return false, err
	}
	if key == "" {
		return false, fmt.Errorf("put %s: empty key", h.rt)
	}

	var exists int
	err := h.tx.QueryRowContext(ctx, `SELECT 1 FROM records WHERE key = ?`, key).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = h.tx.ExecContext(ctx, `
			INSERT INTO records (key, seq, body)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records), ?)
		`, key, string(body))
		if err != nil {
			return false, fmt.Errorf("put %s/%s: %w", h.rt, key, err)
		}
		h.dirty = true
		return true, nil
	case err != nil:
		return false, fmt.Errorf("put %s/%s: %w", h.rt, key, err)
	}

	res, err := h.tx.ExecContext(ctx, `
		UPDATE records SET body = ? WHERE key = ? AND body IS NOT ?
	`, string(body), key, string(body))
	if err != nil {
		return false, fmt.Errorf("put %s/%s: %w", h.rt, key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		h.dirty = true
	}
	return false, nil
}

// DeleteAll removes every record of the type and returns how many there were.
//
// Requires an open transaction.
func (h *Handle) DeleteAll(ctx context.Context) (int64, error) {
	if err := h.checkWrite("delete"); err != nil {
		return 0, err
	}
	res, err := h.tx.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", h.rt, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", h.rt, err)
	}
	if n > 0 {
		h.dirty = true
	}
	return n, nil
}

func (h *Handle) checkWrite(op string) error {
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if h.tx == nil {
		return newError(ErrCodeNotInTransaction, h.rt, op, nil)
	}
	return nil
}
