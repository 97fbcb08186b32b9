package dialect

import (
	"errors"
	"testing"

	"github.com/shrek82/torm/column"
)

func TestDataTypeOf(t *testing.T) {
	cols := []column.Column{
		column.Serial("id", column.Primary()),
		column.BigInt("views"),
		column.Double("score"),
		column.UUID("token"),
		column.Timestamp("created"),
		column.Text("name"),
	}
	want := map[string][]string{
		"postgres": {"SERIAL", "BIGINT", "DOUBLE PRECISION", "UUID", "TIMESTAMP", "TEXT"},
		"sqlite3":  {"INTEGER", "INTEGER", "REAL", "TEXT", "TIMESTAMP", "TEXT"},
		"sqlite":   {"INTEGER", "INTEGER", "REAL", "TEXT", "TIMESTAMP", "TEXT"},
	}
	for name, types := range want {
		d, ok := Get(name)
		if !ok {
			t.Fatalf("dialect %s not registered", name)
		}
		if d.Name() != name {
			t.Errorf("Expected name %s, got %s", name, d.Name())
		}
		for i, c := range cols {
			if got := d.DataTypeOf(c); got != types[i] {
				t.Errorf("%s: %s: expected %s, got %s", name, c.Name(), types[i], got)
			}
		}
	}
}

func TestPlaceholder(t *testing.T) {
	pg, _ := Get("postgres")
	if got := pg.Placeholder(3); got != "$3" {
		t.Errorf("Expected $3, got %s", got)
	}
	lite, _ := Get("sqlite3")
	if got := lite.Placeholder(3); got != "?" {
		t.Errorf("Expected ?, got %s", got)
	}
	if _, ok := Get("mysql"); ok {
		t.Errorf("mysql dialect should not be registered")
	}
}

func TestSQLiteRejectsDetachedSerial(t *testing.T) {
	lite, _ := Get("sqlite3")
	checker, ok := lite.(TableChecker)
	if !ok {
		t.Fatal("sqlite3 dialect should check tables")
	}
	if err := checker.CheckTable([]column.Column{column.Serial("id", column.Primary()), column.Text("name")}); err != nil {
		t.Errorf("sole serial primary key: %v", err)
	}
	for name, cols := range map[string][]column.Column{
		"not primary": {column.Integer("id", column.Primary()), column.Serial("seq")},
		"composite":   {column.Serial("id", column.Primary()), column.Integer("org", column.Primary())},
	} {
		if err := checker.CheckTable(cols); !errors.Is(err, ErrUnsupportedColumn) {
			t.Errorf("%s: expected ErrUnsupportedColumn, got %v", name, err)
		}
	}

	pg, _ := Get("postgres")
	if _, ok := pg.(TableChecker); ok {
		t.Errorf("postgres generates every SERIAL column")
	}
}
