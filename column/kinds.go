package column

import (
	"time"

	"github.com/google/uuid"

	"github.com/shrek82/torm/query"
)

// Number is the set of Go types backing numeric columns.
type Number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// Numeric is a column holding a number.
type Numeric[T Number] struct {
	Base[T]
}

// Integer declares an INTEGER column backed by int32.
func Integer(name string, opts ...Option) *Numeric[int32] {
	return &Numeric[int32]{newBase(name, "INTEGER", int32Codec, opts)}
}

// Serial declares an auto-incrementing SERIAL column backed by int32.
// It is always nullable so that an absent value lets the store generate one.
// On SQLite it must be the table's only primary key.
func Serial(name string, opts ...Option) *Numeric[int32] {
	opts = append([]Option{Nullable(true)}, opts...)
	return &Numeric[int32]{newBase(name, "SERIAL", int32Codec, opts)}
}

// BigInt declares a BIGINT column backed by int64.
func BigInt(name string, opts ...Option) *Numeric[int64] {
	return &Numeric[int64]{newBase(name, "BIGINT", int64Codec, opts)}
}

// Real declares a REAL column backed by float32.
func Real(name string, opts ...Option) *Numeric[float32] {
	return &Numeric[float32]{newBase(name, "REAL", float32Codec, opts)}
}

// Double declares a DOUBLE column backed by float64.
func Double(name string, opts ...Option) *Numeric[float64] {
	return &Numeric[float64]{newBase(name, "DOUBLE", float64Codec, opts)}
}

func (c *Numeric[T]) Gt(v T) query.Query  { return c.pred(">", v) }
func (c *Numeric[T]) Lt(v T) query.Query  { return c.pred("<", v) }
func (c *Numeric[T]) Gte(v T) query.Query { return c.pred(">=", v) }
func (c *Numeric[T]) Lte(v T) query.Query { return c.pred("<=", v) }

// Between matches from <= value <= to. Arguments are bound in (from, to) order.
func (c *Numeric[T]) Between(from, to T) query.Query {
	return c.between("BETWEEN", from, to)
}

func (c *Numeric[T]) NotBetween(from, to T) query.Query {
	return c.between("NOT BETWEEN", from, to)
}

// String is a TEXT column.
type String struct {
	Base[string]
}

// Text declares a TEXT column.
func Text(name string, opts ...Option) *String {
	return &String{newBase(name, "TEXT", stringCodec, opts)}
}

// Like matches a LIKE pattern as given.
func (c *String) Like(pattern string) query.Query    { return c.pred("LIKE", pattern) }
func (c *String) NotLike(pattern string) query.Query { return c.pred("NOT LIKE", pattern) }

func (c *String) Prefix(s string) query.Query    { return c.pred("LIKE", s+"%") }
func (c *String) NotPrefix(s string) query.Query { return c.pred("NOT LIKE", s+"%") }
func (c *String) Suffix(s string) query.Query    { return c.pred("LIKE", "%"+s) }
func (c *String) NotSuffix(s string) query.Query { return c.pred("NOT LIKE", "%"+s) }
func (c *String) Contains(s string) query.Query  { return c.pred("LIKE", "%"+s+"%") }

// Bool is a BOOLEAN column.
type Bool struct {
	Base[bool]
}

// Boolean declares a BOOLEAN column.
func Boolean(name string, opts ...Option) *Bool {
	return &Bool{newBase(name, "BOOLEAN", boolCodec, opts)}
}

// IsTrue and IsFalse compare against literals and bind no arguments.
func (c *Bool) IsTrue() query.Query  { return query.New(c.name + " = true") }
func (c *Bool) IsFalse() query.Query { return query.New(c.name + " = false") }

// DateTime is a TIMESTAMP column.
type DateTime struct {
	Base[time.Time]
}

// Timestamp declares a TIMESTAMP column.
func Timestamp(name string, opts ...Option) *DateTime {
	return &DateTime{newBase(name, "TIMESTAMP", timeCodec, opts)}
}

func (c *DateTime) Before(t time.Time) query.Query { return c.pred("<", t) }
func (c *DateTime) After(t time.Time) query.Query  { return c.pred(">", t) }

// Between matches start <= value <= end.
func (c *DateTime) Between(start, end time.Time) query.Query {
	return c.between("BETWEEN", start, end)
}

// UUID declares a UUID column. Values are bound as their canonical text form.
func UUID(name string, opts ...Option) *Base[uuid.UUID] {
	b := newBase(name, "UUID", uuidCodec, opts)
	return &b
}
