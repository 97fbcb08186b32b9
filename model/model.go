package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/shrek82/torm/column"
	"github.com/shrek82/torm/query"
	"github.com/shrek82/torm/validator"
)

var (
	// ErrDuplicateRegistration is returned when a model type is registered twice.
	ErrDuplicateRegistration = errors.New("torm: model already registered")
	// ErrUnregisteredModel is returned when a schema is looked up for an unknown model type.
	ErrUnregisteredModel = errors.New("torm: model not registered")
	// ErrNoPrimaryKey is returned for identity operations on a schema without primary columns.
	ErrNoPrimaryKey = errors.New("torm: model has no primary key")
	// ErrConstruct is returned when row values cannot be turned into a model.
	ErrConstruct = errors.New("torm: cannot construct model")
	// ErrInvalidSchema is returned when a schema declaration is inconsistent.
	ErrInvalidSchema = errors.New("torm: invalid schema")
)

// Schema maps model type M to its table. Columns, ExtractFields output and
// Construct input share one order, the declaration order.
type Schema[M any] struct {
	table     string
	columns   []column.Column
	index     map[string]int
	extract   func(*M) ([]any, error)
	construct func([]any) (*M, error)
	rules     validator.Rules
}

// WithRules attaches write validation rules keyed by column name and
// returns the schema. Call it before the schema is registered.
func (s *Schema[M]) WithRules(rules validator.Rules) *Schema[M] {
	s.rules = rules
	return s
}

// NewSchema builds a schema from explicit extract and construct functions.
// An empty table name defaults to the snake_case form of the type name.
func NewSchema[M any](table string, columns []column.Column, extract func(*M) []any, construct func([]any) (*M, error)) (*Schema[M], error) {
	if extract == nil || construct == nil {
		return nil, fmt.Errorf("%w: extract and construct are required", ErrInvalidSchema)
	}
	s, err := newSchema[M](table, columns)
	if err != nil {
		return nil, err
	}
	s.extract = func(m *M) ([]any, error) {
		vals := extract(m)
		if len(vals) != len(s.columns) {
			return nil, fmt.Errorf("%w: %s: extracted %d values for %d columns", ErrInvalidSchema, s.table, len(vals), len(s.columns))
		}
		return vals, nil
	}
	s.construct = construct
	return s, nil
}

// Describe builds a schema from field bindings, in binding order.
func Describe[M any](table string, bindings ...Binding[M]) (*Schema[M], error) {
	cols := make([]column.Column, len(bindings))
	for i, b := range bindings {
		cols[i] = b.Column()
	}
	s, err := newSchema[M](table, cols)
	if err != nil {
		return nil, err
	}
	s.extract = func(m *M) ([]any, error) {
		vals := make([]any, len(bindings))
		for i, b := range bindings {
			vals[i] = b.get(m)
		}
		return vals, nil
	}
	s.construct = func(vals []any) (*M, error) {
		if len(vals) != len(bindings) {
			return nil, fmt.Errorf("%w: %s: got %d values for %d columns", ErrConstruct, s.table, len(vals), len(bindings))
		}
		m := new(M)
		for i, b := range bindings {
			if err := b.set(m, vals[i]); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return s, nil
}

// MustDescribe is like Describe but panics on error. It is meant for
// package-level schema declarations.
func MustDescribe[M any](table string, bindings ...Binding[M]) *Schema[M] {
	s, err := Describe(table, bindings...)
	if err != nil {
		panic(err)
	}
	return s
}

func newSchema[M any](table string, columns []column.Column) (*Schema[M], error) {
	if table == "" {
		table = DefaultTableName[M]()
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrInvalidSchema, table)
	}
	s := &Schema[M]{
		table:   table,
		columns: append([]column.Column(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		key := strings.ToLower(c.Name())
		if _, dup := s.index[key]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate column %s", ErrInvalidSchema, table, c.Name())
		}
		s.index[key] = i
	}
	return s, nil
}

// DefaultTableName returns the snake_case form of M's type name.
func DefaultTableName[M any]() string {
	return inflect.Underscore(reflect.TypeFor[M]().Name())
}

// TableName returns the table the model is stored in.
func (s *Schema[M]) TableName() string {
	return s.table
}

// Columns returns the columns in declaration order.
func (s *Schema[M]) Columns() []column.Column {
	return append([]column.Column(nil), s.columns...)
}

// Column looks a column up by name, ignoring case.
func (s *Schema[M]) Column(name string) (column.Column, bool) {
	i, ok := s.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	return s.columns[i], true
}

// ColumnIndex returns the declaration position of the named column, ignoring case.
// Stores such as PostgreSQL fold unquoted identifiers to lower case.
func (s *Schema[M]) ColumnIndex(name string) (int, bool) {
	i, ok := s.index[strings.ToLower(name)]
	return i, ok
}

// PrimaryColumns returns the primary key columns in declaration order.
func (s *Schema[M]) PrimaryColumns() []column.Column {
	var pks []column.Column
	for _, c := range s.columns {
		if c.IsPrimary() {
			pks = append(pks, c)
		}
	}
	return pks
}

// ExtractFields returns m's column values in declaration order; nil is NULL.
func (s *Schema[M]) ExtractFields(m *M) ([]any, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil %s", ErrConstruct, s.table)
	}
	return s.extract(m)
}

// Construct builds a model from deserialized column values in declaration order.
func (s *Schema[M]) Construct(values []any) (*M, error) {
	return s.construct(values)
}

// Validate runs the schema's rules against m. Schemas without rules accept everything.
func (s *Schema[M]) Validate(m *M) error {
	if len(s.rules) == 0 {
		return nil
	}
	vals, err := s.ExtractFields(m)
	if err != nil {
		return err
	}
	byName := make(map[string]any, len(vals))
	for i, c := range s.columns {
		byName[c.Name()] = vals[i]
	}
	if err := s.rules.Validate(byName); err != nil {
		return fmt.Errorf("torm: %s: %w", s.table, err)
	}
	return nil
}

// PrimaryKeyPredicate matches the row with m's primary key values.
func PrimaryKeyPredicate[M any](s *Schema[M], m *M) (query.Query, error) {
	vals, err := s.ExtractFields(m)
	if err != nil {
		return query.Query{}, err
	}
	var preds []query.Query
	for i, c := range s.columns {
		if !c.IsPrimary() {
			continue
		}
		preds = append(preds, query.New(c.Name()+" = ?", query.Arg{Column: c, Value: vals[i]}))
	}
	if len(preds) == 0 {
		return query.Query{}, fmt.Errorf("%w: %s", ErrNoPrimaryKey, s.table)
	}
	return query.All(preds...)
}
