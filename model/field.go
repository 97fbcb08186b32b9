package model

import (
	"fmt"

	"github.com/shrek82/torm/column"
)

// Binding ties one column to the struct field that holds its value.
// Bindings are created with Field and NullableField.
type Binding[M any] interface {
	Column() column.Column
	get(m *M) any
	set(m *M, v any) error
}

type field[M, T any] struct {
	col column.Of[T]
	ref func(*M) *T
}

// Field binds col to a non-pointer struct field. ref returns the field's
// address, which serves both reading and writing:
//
//	model.Field(NameCol, func(u *User) *string { return &u.Name })
func Field[M, T any](col column.Of[T], ref func(*M) *T) Binding[M] {
	return field[M, T]{col: col, ref: ref}
}

func (f field[M, T]) Column() column.Column { return f.col }

func (f field[M, T]) get(m *M) any {
	return *f.ref(m)
}

func (f field[M, T]) set(m *M, v any) error {
	if v == nil {
		return fmt.Errorf("%w: NULL for non-pointer field of column %s", ErrConstruct, f.col.Name())
	}
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: column %s: unexpected %T", ErrConstruct, f.col.Name(), v)
	}
	*f.ref(m) = t
	return nil
}

type nullableField[M, T any] struct {
	col column.Of[T]
	ref func(*M) **T
}

// NullableField binds col to a pointer struct field; nil means NULL.
//
//	model.NullableField(IDCol, func(u *User) **int32 { return &u.ID })
func NullableField[M, T any](col column.Of[T], ref func(*M) **T) Binding[M] {
	return nullableField[M, T]{col: col, ref: ref}
}

func (f nullableField[M, T]) Column() column.Column { return f.col }

func (f nullableField[M, T]) get(m *M) any {
	p := *f.ref(m)
	if p == nil {
		return nil
	}
	return *p
}

func (f nullableField[M, T]) set(m *M, v any) error {
	if v == nil {
		*f.ref(m) = nil
		return nil
	}
	t, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: column %s: unexpected %T", ErrConstruct, f.col.Name(), v)
	}
	*f.ref(m) = &t
	return nil
}
