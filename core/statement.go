package core

import (
	"database/sql/driver"
	"maps"
)

// Kind identifies what a statement does.
type Kind int

const (
	KindCreateTable Kind = iota
	KindSelect
	KindUpsert
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreateTable:
		return "create_table"
	case KindSelect:
		return "select"
	case KindUpsert:
		return "upsert"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Writes reports whether the statement changes table contents.
func (k Kind) Writes() bool {
	return k == KindUpsert || k == KindDelete
}

// Statement is SQL text with its bound parameters, ready for execution.
type Statement struct {
	Kind  Kind
	Table string
	SQL   string
	Args  []driver.Value

	fields map[string]any
}

// WithFields attaches log fields to the statement. Middleware use it to
// annotate the SQL log line of the statement.
func (s *Statement) WithFields(fields map[string]any) {
	if s.fields == nil {
		s.fields = make(map[string]any, len(fields))
	}
	maps.Copy(s.fields, fields)
}

// Fields returns the log fields attached to the statement.
func (s *Statement) Fields() map[string]any {
	return s.fields
}

// ArgValues returns Args as a []any, the form database/sql takes.
func (s *Statement) ArgValues() []any {
	out := make([]any, len(s.Args))
	for i, a := range s.Args {
		out[i] = a
	}
	return out
}
