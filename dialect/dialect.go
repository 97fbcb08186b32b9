package dialect

import (
	"errors"
	"sync"

	"github.com/shrek82/torm/column"
)

// Dialect maps canonical column types and placeholders to a particular
// store. Each dialect registers itself under its database/sql driver name.
type Dialect interface {
	// Name returns the driver name the dialect is registered under.
	Name() string
	// DataTypeOf returns the store type used for the column in CREATE TABLE.
	DataTypeOf(c column.Column) string
	// Placeholder returns the bind marker for the 1-based parameter index.
	Placeholder(index int) string
}

// ErrUnsupportedColumn is returned when a dialect cannot store a column declaration.
var ErrUnsupportedColumn = errors.New("torm: column not supported by dialect")

// TableChecker is implemented by dialects that reject some table layouts
// before CREATE TABLE is built.
type TableChecker interface {
	CheckTable(columns []column.Column) error
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a dialect for a driver name, replacing any previous one.
func Register(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name.
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}
