package dialect

import (
	"strconv"

	"github.com/shrek82/torm/column"
)

// PostgreSQL dialect, used with github.com/lib/pq.
type postgres struct{}

func init() {
	Register("postgres", postgres{})
}

func (postgres) Name() string { return "postgres" }

func (postgres) DataTypeOf(c column.Column) string {
	switch c.SQLType() {
	case "DOUBLE":
		return "DOUBLE PRECISION"
	default:
		return c.SQLType()
	}
}

// PostgreSQL uses $1, $2, $3... for placeholders
func (postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}
