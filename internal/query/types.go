package query

import (
	"fmt"
	"regexp"

	"github.com/roach88/livestore/internal/record"
)

// Predicate is a filter over stored records.
//
// This is a sealed interface - only types in this package implement it, so
// backend compilers can switch over it exhaustively.
type Predicate interface {
	predicateNode()
}

// KeyField addresses the record key rather than a body field.
const KeyField = "key"

// Eq matches records whose field equals Value. A nil Value matches records
// where the field is null or missing.
type Eq struct {
	Field string
	Value any
}

// Ne is the negation of Eq.
type Ne struct {
	Field string
	Value any
}

// In matches records whose field equals any of Values.
type In struct {
	Field  string
	Values []any
}

// NotIn matches records whose field equals none of Values.
type NotIn struct {
	Field  string
	Values []any
}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

// Or matches when any predicate matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Eq) predicateNode()    {}
func (Ne) predicateNode()    {}
func (In) predicateNode()    {}
func (NotIn) predicateNode() {}
func (And) predicateNode()   {}
func (Or) predicateNode()    {}

// Direction orders results.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Order is one ORDER BY term.
type Order struct {
	Field string
	Dir   Direction
}

// Query selects records of one type. The zero Query selects every record of
// the type the caller resolves, in insertion order.
type Query struct {
	// From overrides the record type derived from the Go model.
	From   record.Type
	Filter Predicate
	Orders []Order
	// Limit caps the result size; 0 means no limit.
	Limit int
}

// All returns the zero query.
func All() Query { return Query{} }

// Of returns a query over an explicitly named record type.
func Of(rt record.Type) Query { return Query{From: rt} }

// Where conjoins p with the current filter.
func (q Query) Where(p Predicate) Query {
	switch cur := q.Filter.(type) {
	case nil:
		q.Filter = p
	case And:
		preds := make([]Predicate, 0, len(cur.Predicates)+1)
		preds = append(preds, cur.Predicates...)
		q.Filter = And{Predicates: append(preds, p)}
	default:
		q.Filter = And{Predicates: []Predicate{cur, p}}
	}
	return q
}

// Equal is shorthand for Where(Eq{field, value}).
func (q Query) Equal(field string, value any) Query {
	return q.Where(Eq{Field: field, Value: value})
}

// Include keeps records whose field is one of values.
func (q Query) Include(field string, values ...any) Query {
	return q.Where(In{Field: field, Values: values})
}

// Exclude drops records whose field is one of values.
func (q Query) Exclude(field string, values ...any) Query {
	return q.Where(NotIn{Field: field, Values: values})
}

// OrderBy appends an ordering term. Ties always fall back to insertion order.
func (q Query) OrderBy(field string, dir Direction) Query {
	orders := make([]Order, 0, len(q.Orders)+1)
	orders = append(orders, q.Orders...)
	q.Orders = append(orders, Order{Field: field, Dir: dir})
	return q
}

// Take sets the limit.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Type returns the record type the query runs against, preferring From.
func (q Query) Type(fallback record.Type) record.Type {
	if q.From != "" {
		return q.From
	}
	return fallback
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Validate rejects malformed field names and negative limits.
func Validate(q Query) error {
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	for _, o := range q.Orders {
		if err := validateField(o.Field); err != nil {
			return fmt.Errorf("order by: %w", err)
		}
	}
	if q.Filter != nil {
		return validatePredicate(q.Filter)
	}
	return nil
}

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case Eq:
		return validateField(pred.Field)
	case Ne:
		return validateField(pred.Field)
	case In:
		return validateField(pred.Field)
	case NotIn:
		return validateField(pred.Field)
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
	case Or:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("nil predicate")
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}
