package querysql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/livestore/internal/query"
)

// Table is the single table every record-type database holds.
const Table = "records"

// stableOrder is appended to every query so results are deterministic.
const stableOrder = "seq ASC, key ASC COLLATE BINARY"

// Compile converts q into a parameterized SELECT of (key, seq, body).
//
// Every statement ends in the insertion-order tiebreaker, and every value
// and JSON path is bound as a parameter, never interpolated.
func Compile(q query.Query) (string, []any, error) {
	where, params, err := compileWhere(q)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT key, seq, body FROM ")
	b.WriteString(Table)
	b.WriteString(where)

	b.WriteString(" ORDER BY ")
	for _, o := range q.Orders {
		col, colParams := column(o.Field)
		params = append(params, colParams...)
		b.WriteString(col)
		if o.Dir == query.Desc {
			b.WriteString(" DESC, ")
		} else {
			b.WriteString(" ASC, ")
		}
	}
	b.WriteString(stableOrder)

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// CompileCount converts q into a parameterized COUNT. Orders are ignored; a
// limit caps the count.
func CompileCount(q query.Query) (string, []any, error) {
	where, params, err := compileWhere(q)
	if err != nil {
		return "", nil, err
	}
	if q.Limit > 0 {
		params = append(params, q.Limit)
		return fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s%s LIMIT ?)", Table, where), params, nil
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", Table, where), params, nil
}

func compileWhere(q query.Query) (string, []any, error) {
	if err := query.Validate(q); err != nil {
		return "", nil, err
	}
	if q.Filter == nil {
		return "", nil, nil
	}
	sql, params, err := compilePredicate(q.Filter)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// column returns the SQL expression for a field.
func column(field string) (string, []any) {
	if field == query.KeyField {
		return "key", nil
	}
	return "json_extract(body, ?)", []any{"$." + field}
}

func compilePredicate(p query.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case query.Eq:
		return compileCompare(pred.Field, pred.Value, false)
	case query.Ne:
		return compileCompare(pred.Field, pred.Value, true)
	case query.In:
		return compileMembership(pred.Field, pred.Values, false)
	case query.NotIn:
		return compileMembership(pred.Field, pred.Values, true)
	case query.And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1")
	case query.Or:
		return compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileCompare(field string, value any, negate bool) (string, []any, error) {
	col, params := column(field)
	if value == nil {
		if negate {
			return col + " IS NOT NULL", params, nil
		}
		return col + " IS NULL", params, nil
	}
	param, err := toParam(value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	op := " = ?"
	if negate {
		// IS NOT keeps records missing the field.
		op = " IS NOT ?"
	}
	return col + op, append(params, param), nil
}

func compileMembership(field string, values []any, negate bool) (string, []any, error) {
	if len(values) == 0 {
		if negate {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}
	col, colParams := column(field)
	marks := make([]string, len(values))
	bound := make([]any, len(values))
	for i, v := range values {
		param, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", field, err)
		}
		marks[i] = "?"
		bound[i] = param
	}
	list := strings.Join(marks, ", ")

	var params []any
	if negate {
		// Records missing the field are kept; the column appears twice.
		params = append(params, colParams...)
		params = append(params, colParams...)
		params = append(params, bound...)
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, list), params, nil
	}
	params = append(params, colParams...)
	params = append(params, bound...)
	return fmt.Sprintf("%s IN (%s)", col, list), params, nil
}

func compileJunction(preds []query.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, pred := range preds {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// toParam converts a filter value into something database/sql can bind.
// Booleans bind as 0/1, matching what json_extract returns.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string, int, int32, int64, float32, float64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported filter value type %T", v)
	}
}
