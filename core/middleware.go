package core

import (
	"context"
)

// Component is the base interface for all torm components/middleware.
type Component interface {
	Name() string
	Init(db *DB) error
	Shutdown() error
}

// Result holds the rows a statement returned. Values are the raw driver
// values, in the order of Columns.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Handler executes a statement. It is the next step of the middleware chain.
type Handler func(ctx context.Context, stmt *Statement) (*Result, error)

// Middleware intercepts statement execution.
type Middleware interface {
	Component
	Process(ctx context.Context, stmt *Statement, next Handler) (*Result, error)
}

// chain wraps h so that mws run in registration order, the first one outermost.
func chain(mws []Middleware, h Handler) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(ctx context.Context, stmt *Statement) (*Result, error) {
			return mw.Process(ctx, stmt, next)
		}
	}
	return h
}
