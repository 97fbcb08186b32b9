package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/shrek82/torm/column"
	"github.com/shrek82/torm/dialect"
	"github.com/shrek82/torm/query"
)

// Table is the part of a model schema the builder needs.
type Table interface {
	TableName() string
	Columns() []column.Column
}

// Builder turns schemas, predicates and model values into parameterized
// statements for one dialect. Clauses are written with "?" placeholders and
// rewritten into the dialect's bind markers once the statement is complete.
// A Builder is stateless and safe for concurrent use.
type Builder struct {
	dialect dialect.Dialect
}

// NewBuilder creates a Builder for the given dialect.
func NewBuilder(d dialect.Dialect) *Builder {
	return &Builder{dialect: d}
}

// Dialect returns the dialect the builder writes for.
func (b *Builder) Dialect() dialect.Dialect {
	return b.dialect
}

var sbPool = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

func getSB() *strings.Builder {
	sb := sbPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

func putSB(sb *strings.Builder) {
	sbPool.Put(sb)
}

// CreateTable builds "CREATE TABLE IF NOT EXISTS", columns in schema order.
// A single primary column carries PRIMARY KEY inline; several primary columns
// become one table-level PRIMARY KEY (a, b) constraint.
func (b *Builder) CreateTable(t Table) (*Statement, error) {
	cols := t.Columns()
	if c, ok := b.dialect.(dialect.TableChecker); ok {
		if err := c.CheckTable(cols); err != nil {
			return nil, fmt.Errorf("torm: %s %s: %w", KindCreateTable, t.TableName(), err)
		}
	}
	var pks []string
	for _, c := range cols {
		if c.IsPrimary() {
			pks = append(pks, c.Name())
		}
	}
	composite := len(pks) > 1

	sb := getSB()
	defer putSB(sb)

	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(t.TableName())
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Name())
		sb.WriteString(" ")
		sb.WriteString(b.dialect.DataTypeOf(c))
		for _, mod := range c.Modifiers() {
			if composite && mod == "PRIMARY KEY" {
				continue
			}
			sb.WriteString(" ")
			sb.WriteString(mod)
		}
	}
	if composite {
		sb.WriteString(", PRIMARY KEY (")
		sb.WriteString(strings.Join(pks, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(")")

	return b.finish(KindCreateTable, t.TableName(), sb.String(), nil)
}

// Select builds "SELECT * FROM <table> WHERE <clause>".
func (b *Builder) Select(t Table, q query.Query) (*Statement, error) {
	return b.where(KindSelect, t, "SELECT * FROM ", "", q)
}

// Delete builds "DELETE FROM <table> WHERE <clause> RETURNING *" so that the
// removed rows come back in the same round trip.
func (b *Builder) Delete(t Table, q query.Query) (*Statement, error) {
	return b.where(KindDelete, t, "DELETE FROM ", " RETURNING *", q)
}

func (b *Builder) where(kind Kind, t Table, verb, suffix string, q query.Query) (*Statement, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("torm: %s %s: %w", kind, t.TableName(), err)
	}
	args, err := serializeArgs(q.Args())
	if err != nil {
		return nil, err
	}

	sb := getSB()
	defer putSB(sb)
	sb.WriteString(verb)
	sb.WriteString(t.TableName())
	sb.WriteString(" WHERE ")
	sb.WriteString(q.Clause())
	sb.WriteString(suffix)

	return b.finish(kind, t.TableName(), sb.String(), args)
}

// Upsert builds the insert-or-update statement for one model. values are
// the model's extracted fields in schema order.
//
// A NULL value for a nullable column leaves the column out of the insert so
// the store can default or generate it; a NULL value for a NOT NULL column
// fails with a NotNullViolationError. The ON CONFLICT clause is emitted only
// when the table has a primary key. With nothing to set, the row is inserted
// with DEFAULT VALUES.
func (b *Builder) Upsert(t Table, values []any) (*Statement, error) {
	cols := t.Columns()
	if len(values) != len(cols) {
		return nil, fmt.Errorf("%w: %s: %d values for %d columns", ErrInvalidSQL, t.TableName(), len(values), len(cols))
	}

	var (
		names []string
		pks   []string
		args  []driver.Value
	)
	for i, c := range cols {
		if c.IsPrimary() {
			pks = append(pks, c.Name())
		}
		v, err := c.Serialize(values[i])
		if err != nil {
			return nil, err
		}
		if v == nil {
			if !c.IsNullable() {
				return nil, &NotNullViolationError{Table: t.TableName(), Column: c.Name()}
			}
			continue
		}
		names = append(names, c.Name())
		args = append(args, v)
	}

	sb := getSB()
	defer putSB(sb)

	sb.WriteString("INSERT INTO ")
	sb.WriteString(t.TableName())
	if len(names) == 0 {
		sb.WriteString(" DEFAULT VALUES RETURNING *")
		return b.finish(KindUpsert, t.TableName(), sb.String(), nil)
	}

	sb.WriteString(" (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES (")
	for i := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
	}
	sb.WriteString(")")

	if len(pks) > 0 {
		sb.WriteString(" ON CONFLICT (")
		sb.WriteString(strings.Join(pks, ", "))
		sb.WriteString(") DO UPDATE SET ")
		for i, name := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(name)
			sb.WriteString(" = EXCLUDED.")
			sb.WriteString(name)
		}
	}
	sb.WriteString(" RETURNING *")

	return b.finish(KindUpsert, t.TableName(), sb.String(), args)
}

// serializeArgs converts each argument through its own column.
func serializeArgs(args []query.Arg) ([]driver.Value, error) {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		v, err := a.Column.Serialize(a.Value)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// finish checks that every "?" has exactly one bindable parameter and
// rewrites the placeholders for the dialect.
func (b *Builder) finish(kind Kind, table, sql string, args []driver.Value) (*Statement, error) {
	if n := strings.Count(sql, "?"); n != len(args) {
		return nil, fmt.Errorf("%w: %d placeholders, %d parameters in %q", query.ErrPlaceholderMismatch, n, len(args), sql)
	}
	for i, a := range args {
		if !driver.IsValue(a) {
			return nil, fmt.Errorf("%w: parameter %d is %T", ErrUnsupportedParameterType, i+1, a)
		}
	}
	return &Statement{
		Kind:  kind,
		Table: table,
		SQL:   b.replacePlaceholders(sql),
		Args:  args,
	}, nil
}

func (b *Builder) replacePlaceholders(sql string) string {
	if !strings.Contains(sql, "?") {
		return sql
	}

	sb := getSB()
	defer putSB(sb)

	index := 1
	for {
		idx := strings.Index(sql, "?")
		if idx == -1 {
			sb.WriteString(sql)
			break
		}

		sb.WriteString(sql[:idx])
		sb.WriteString(b.dialect.Placeholder(index))
		sql = sql[idx+1:]
		index++
	}
	return sb.String()
}
