package dialect

import (
	"fmt"

	"github.com/shrek82/torm/column"
)

// SQLite dialect. The same SQL serves github.com/mattn/go-sqlite3 ("sqlite3")
// and modernc.org/sqlite ("sqlite").
type sqlite struct {
	driver string
}

func init() {
	Register("sqlite3", sqlite{driver: "sqlite3"})
	Register("sqlite", sqlite{driver: "sqlite"})
}

func (d sqlite) Name() string { return d.driver }

func (sqlite) DataTypeOf(c column.Column) string {
	switch c.SQLType() {
	case "SERIAL", "BIGINT":
		// only an exact INTEGER PRIMARY KEY becomes the auto-assigned rowid
		return "INTEGER"
	case "DOUBLE":
		return "REAL"
	case "UUID":
		return "TEXT"
	default:
		return c.SQLType()
	}
}

func (sqlite) Placeholder(int) string {
	return "?"
}

// CheckTable rejects SERIAL columns that are not the only primary column.
// SQLite generates values only for a sole INTEGER PRIMARY KEY.
func (d sqlite) CheckTable(columns []column.Column) error {
	pks := 0
	for _, c := range columns {
		if c.IsPrimary() {
			pks++
		}
	}
	for _, c := range columns {
		if c.SQLType() == "SERIAL" && (!c.IsPrimary() || pks > 1) {
			return fmt.Errorf("%w: %s: SERIAL %s must be the only primary key", ErrUnsupportedColumn, d.driver, c.Name())
		}
	}
	return nil
}
