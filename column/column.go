package column

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shrek82/torm/query"
)

var (
	// ErrTypeMismatch is matched by every TypeMismatchError.
	ErrTypeMismatch = errors.New("torm: type mismatch")
	// ErrAlreadyPrimary is returned when a column is marked primary twice.
	ErrAlreadyPrimary = errors.New("torm: column is already primary")
	// ErrNullabilityFixed is returned when nullability is set on a column that already has it fixed.
	ErrNullabilityFixed = errors.New("torm: column nullability already fixed")
	// ErrInvalidName is returned for column names that are not plain SQL identifiers.
	ErrInvalidName = errors.New("torm: invalid column name")
)

// TypeMismatchError reports a value whose type does not fit a column.
type TypeMismatchError struct {
	Column string
	Want   string
	Got    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("torm: column %s: want %s, got %s", e.Column, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrTypeMismatch) match.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Column is the type-erased view of a column used by the model registry
// and the statement builder.
type Column interface {
	Name() string
	SQLType() string
	Definition() string
	Modifiers() []string
	IsPrimary() bool
	IsNullable() bool
	IsUnique() bool
	References() (table, column string)
	Serialize(v any) (driver.Value, error)
	Deserialize(v any) (any, error)
}

// Of is a Column that knows its Go value type.
type Of[T any] interface {
	Column
	Value(v T) driver.Value
	Scan(v any) (T, error)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// attrs holds the declaration-time attributes shared by every column.
type attrs struct {
	name        string
	sqlType     string
	primary     bool
	nullable    bool
	nullableSet bool
	unique      bool
	refTable    string
	refColumn   string
}

func (a *attrs) Name() string    { return a.name }
func (a *attrs) SQLType() string { return a.sqlType }
func (a *attrs) IsPrimary() bool { return a.primary }
func (a *attrs) IsUnique() bool  { return a.unique }

// IsNullable reports whether a NULL value may be written. Columns are
// nullable unless declared otherwise.
func (a *attrs) IsNullable() bool {
	if !a.nullableSet {
		return true
	}
	return a.nullable
}

func (a *attrs) References() (string, string) {
	return a.refTable, a.refColumn
}

// SetPrimary marks the column as part of the primary key.
func (a *attrs) SetPrimary() error {
	if a.primary {
		return fmt.Errorf("%w: %s", ErrAlreadyPrimary, a.name)
	}
	a.primary = true
	return nil
}

// SetNullable fixes the nullability of the column. It can be called once.
func (a *attrs) SetNullable(nullable bool) error {
	if a.nullableSet {
		return fmt.Errorf("%w: %s", ErrNullabilityFixed, a.name)
	}
	a.nullable = nullable
	a.nullableSet = true
	return nil
}

// Modifiers returns the constraint keywords that follow the type in a column definition.
func (a *attrs) Modifiers() []string {
	var mods []string
	if a.primary {
		mods = append(mods, "PRIMARY KEY")
	}
	if a.nullableSet && !a.nullable {
		mods = append(mods, "NOT NULL")
	}
	if a.unique {
		mods = append(mods, "UNIQUE")
	}
	if a.refTable != "" {
		mods = append(mods, fmt.Sprintf("REFERENCES %s(%s)", a.refTable, a.refColumn))
	}
	return mods
}

// Definition renders "<TYPE> [modifier ...]".
func (a *attrs) Definition() string {
	mods := a.Modifiers()
	if len(mods) == 0 {
		return a.sqlType
	}
	return a.sqlType + " " + strings.Join(mods, " ")
}

// Option configures a column at declaration time.
type Option func(a *attrs) error

// Primary marks the column as (part of) the primary key.
func Primary() Option {
	return func(a *attrs) error { return a.SetPrimary() }
}

// Nullable fixes whether NULL may be written to the column.
func Nullable(nullable bool) Option {
	return func(a *attrs) error { return a.SetNullable(nullable) }
}

// NotNull is Nullable(false).
func NotNull() Option {
	return Nullable(false)
}

// Unique adds a UNIQUE constraint.
func Unique() Option {
	return func(a *attrs) error {
		a.unique = true
		return nil
	}
}

// ForeignKey adds a REFERENCES table(column) constraint.
func ForeignKey(table, column string) Option {
	return func(a *attrs) error {
		if !identRe.MatchString(table) || !identRe.MatchString(column) {
			return fmt.Errorf("%w: reference %s(%s)", ErrInvalidName, table, column)
		}
		a.refTable = table
		a.refColumn = column
		return nil
	}
}

// Base is a typed column. The column kinds in this package embed it and
// add the predicates that make sense for their type.
type Base[T any] struct {
	attrs
	encode func(T) driver.Value
	decode func(v any) (T, bool)
}

func newBase[T any](name, sqlType string, c codec[T], opts []Option) Base[T] {
	b := Base[T]{
		attrs:  attrs{name: name, sqlType: sqlType},
		encode: c.encode,
		decode: c.decode,
	}
	if !identRe.MatchString(name) {
		panic(fmt.Sprintf("%v: %q", ErrInvalidName, name))
	}
	for _, opt := range opts {
		if err := opt(&b.attrs); err != nil {
			panic(err.Error())
		}
	}
	return b
}

// Value converts a typed value to its driver representation.
func (c *Base[T]) Value(v T) driver.Value {
	return c.encode(v)
}

// Serialize converts v, which must be a T, a *T or nil, to a driver value.
func (c *Base[T]) Serialize(v any) (driver.Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case T:
		return c.encode(x), nil
	case *T:
		if x == nil {
			return nil, nil
		}
		return c.encode(*x), nil
	}
	return nil, c.mismatch(v)
}

// Scan converts a non-NULL value read from the store to T.
func (c *Base[T]) Scan(v any) (T, error) {
	out, ok := c.decode(v)
	if !ok {
		var zero T
		return zero, c.mismatch(v)
	}
	return out, nil
}

// Deserialize converts a value read from the store to T; NULL stays nil.
func (c *Base[T]) Deserialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return c.Scan(v)
}

func (c *Base[T]) mismatch(v any) error {
	var zero T
	return &TypeMismatchError{Column: c.name, Want: fmt.Sprintf("%T", zero), Got: fmt.Sprintf("%T", v)}
}

func (c *Base[T]) pred(op string, v T) query.Query {
	return query.New(c.name+" "+op+" ?", query.Arg{Column: c, Value: v})
}

// Eq matches rows where the column equals v.
func (c *Base[T]) Eq(v T) query.Query { return c.pred("=", v) }

// Neq matches rows where the column differs from v.
func (c *Base[T]) Neq(v T) query.Query { return c.pred("<>", v) }

// IsNull matches rows where the column is NULL.
func (c *Base[T]) IsNull() query.Query { return query.New(c.name + " IS NULL") }

// IsNotNull matches rows where the column is not NULL.
func (c *Base[T]) IsNotNull() query.Query { return query.New(c.name + " IS NOT NULL") }

// In matches rows whose value is one of vs. An empty list matches nothing.
func (c *Base[T]) In(vs ...T) query.Query {
	if len(vs) == 0 {
		return query.New("1 = 0")
	}
	return c.list("IN", vs)
}

// NotIn matches rows whose value is none of vs. An empty list matches everything.
func (c *Base[T]) NotIn(vs ...T) query.Query {
	if len(vs) == 0 {
		return query.New("1 = 1")
	}
	return c.list("NOT IN", vs)
}

func (c *Base[T]) list(op string, vs []T) query.Query {
	marks := make([]string, len(vs))
	args := make([]query.Arg, len(vs))
	for i, v := range vs {
		marks[i] = "?"
		args[i] = query.Arg{Column: c, Value: v}
	}
	return query.New(c.name+" "+op+" ("+strings.Join(marks, ", ")+")", args...)
}

func (c *Base[T]) between(op string, from, to T) query.Query {
	return query.New(c.name+" "+op+" ? AND ?",
		query.Arg{Column: c, Value: from},
		query.Arg{Column: c, Value: to},
	)
}
