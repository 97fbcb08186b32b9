package query

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPredicateSet is returned by All and Any when no predicate is given.
	ErrEmptyPredicateSet = errors.New("torm: empty predicate set")
	// ErrPlaceholderMismatch is returned when a clause's placeholder count differs from its argument count.
	ErrPlaceholderMismatch = errors.New("torm: placeholder count does not match argument count")
	// ErrEmptyQuery is returned when the zero Query is used where a WHERE clause is required.
	ErrEmptyQuery = errors.New("torm: empty query")
)

// Serializer is the part of a column a query argument needs: its name and
// the conversion of a Go value into a driver value.
type Serializer interface {
	Name() string
	Serialize(v any) (driver.Value, error)
}

// Arg is one positional argument of a Query together with the column that
// knows how to serialize it.
type Arg struct {
	Column Serializer
	Value  any
}

// Query is a WHERE clause fragment with "?" placeholders and the ordered
// arguments bound to them.
//
// Queries are values. And, Or and Not never modify their operands, so a
// predicate can be reused after it has been composed into a larger one.
type Query struct {
	clause string
	args   []Arg
	// hollow is set when a zero Query was composed into this one.
	hollow bool
}

// New creates a Query from a clause template and its arguments, stored verbatim.
func New(clause string, args ...Arg) Query {
	return Query{clause: clause, args: cloneArgs(args)}
}

// Clause returns the parameterized SQL text.
func (q Query) Clause() string {
	return q.clause
}

// Args returns a copy of the query arguments in placeholder order.
func (q Query) Args() []Arg {
	return cloneArgs(q.args)
}

// Len returns the number of arguments.
func (q Query) Len() int {
	return len(q.args)
}

// IsZero reports whether q has no clause.
func (q Query) IsZero() bool {
	return q.clause == ""
}

// Placeholders counts the "?" placeholders in the clause.
func (q Query) Placeholders() int {
	return strings.Count(q.clause, "?")
}

// Validate checks that q and every query composed into it have a clause,
// and that there is one argument per placeholder.
func (q Query) Validate() error {
	if q.IsZero() || q.hollow {
		return ErrEmptyQuery
	}
	if n := q.Placeholders(); n != len(q.args) {
		return fmt.Errorf("%w: %d placeholders, %d arguments in %q", ErrPlaceholderMismatch, n, len(q.args), q.clause)
	}
	return nil
}

// And returns "(q) AND (other)" with other's arguments appended after q's.
func (q Query) And(other Query) Query {
	return combine(q, "AND", other)
}

// Or returns "(q) OR (other)" with other's arguments appended after q's.
func (q Query) Or(other Query) Query {
	return combine(q, "OR", other)
}

// Not returns the negation of q. Arguments are unchanged.
func (q Query) Not() Query {
	return Query{clause: "NOT (" + q.clause + ")", args: cloneArgs(q.args), hollow: q.IsZero() || q.hollow}
}

// String renders the clause followed by the raw argument values, for logs.
func (q Query) String() string {
	vals := make([]any, len(q.args))
	for i, a := range q.args {
		vals[i] = a.Value
	}
	return fmt.Sprintf("%s %v", q.clause, vals)
}

// All folds queries with AND, left to right.
func All(queries ...Query) (Query, error) {
	return fold("AND", queries)
}

// Any folds queries with OR, left to right.
func Any(queries ...Query) (Query, error) {
	return fold("OR", queries)
}

func fold(op string, queries []Query) (Query, error) {
	if len(queries) == 0 {
		return Query{}, ErrEmptyPredicateSet
	}
	for _, q := range queries {
		if q.IsZero() {
			return Query{}, ErrEmptyQuery
		}
	}
	acc := queries[0]
	for _, q := range queries[1:] {
		acc = combine(acc, op, q)
	}
	return Query{clause: acc.clause, args: cloneArgs(acc.args), hollow: acc.hollow}, nil
}

func combine(left Query, op string, right Query) Query {
	args := make([]Arg, 0, len(left.args)+len(right.args))
	args = append(args, left.args...)
	args = append(args, right.args...)
	return Query{
		clause: "(" + left.clause + ") " + op + " (" + right.clause + ")",
		args:   args,
		hollow: left.IsZero() || right.IsZero() || left.hollow || right.hollow,
	}
}

func cloneArgs(args []Arg) []Arg {
	if len(args) == 0 {
		return nil
	}
	out := make([]Arg, len(args))
	copy(out, args)
	return out
}
