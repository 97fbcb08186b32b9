package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shrek82/torm/dialect"
	"github.com/shrek82/torm/logger"
	"github.com/shrek82/torm/pool"
)

// Executor runs a statement and returns its rows. *sql.DB, *sql.Conn,
// *sql.Tx and pool.Pool all satisfy it; database/sql prepares the
// statement and binds the parameters by position.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DB is the main entry point for the ORM.
// It pairs a connection with a dialect and runs every statement through
// the middleware chain.
type DB struct {
	exec    Executor
	closer  io.Closer
	dialect dialect.Dialect
	builder *Builder
	logger  logger.Logger

	mu          sync.RWMutex
	middlewares []Middleware
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *pool.Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}
	p, err := pool.Open(context.Background(), driver, dsn, opts)
	if err != nil {
		return nil, err
	}
	db := NewDB(p, d)
	db.closer = p
	return db, nil
}

// NewDB wraps an externally managed connection. Close does not close exec.
func NewDB(exec Executor, d dialect.Dialect) *DB {
	return &DB{
		exec:    exec,
		dialect: d,
		builder: NewBuilder(d),
		logger:  logger.NewStdLogger(),
	}
}

// Close shuts the middleware down and closes the pool opened by Open.
func (db *DB) Close() error {
	db.mu.Lock()
	mws := db.middlewares
	db.middlewares = nil
	db.mu.Unlock()

	var errs []error
	for _, mw := range mws {
		if err := mw.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("torm: shutdown %s: %w", mw.Name(), err))
		}
	}
	if db.closer != nil {
		errs = append(errs, db.closer.Close())
	}
	return errors.Join(errs...)
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Logger returns the DB logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Dialect returns the dialect statements are built for.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// Builder returns the statement builder bound to the DB dialect.
func (db *DB) Builder() *Builder {
	return db.builder
}

// Use initializes and installs middleware. They wrap execution in the
// order given, the first one outermost.
func (db *DB) Use(mws ...Middleware) error {
	for _, mw := range mws {
		if err := mw.Init(db); err != nil {
			return fmt.Errorf("torm: init %s: %w", mw.Name(), err)
		}
		db.mu.Lock()
		db.middlewares = append(db.middlewares, mw)
		db.mu.Unlock()
	}
	return nil
}

// Run executes stmt through the middleware chain.
func (db *DB) Run(ctx context.Context, stmt *Statement) (*Result, error) {
	db.mu.RLock()
	mws := db.middlewares
	db.mu.RUnlock()
	return chain(mws, db.execute)(ctx, stmt)
}

// execute is the end of the chain: one round trip to the store, with all
// returned rows read into memory.
func (db *DB) execute(ctx context.Context, stmt *Statement) (*Result, error) {
	l := db.logger.WithFields(stmt.Fields())
	start := time.Now()
	res, err := db.query(ctx, stmt)
	l.SQL(stmt.SQL, time.Since(start), stmt.ArgValues()...)
	if err != nil {
		l.Error("%s %s: %v", stmt.Kind, stmt.Table, err)
		return nil, err
	}
	return res, nil
}

func (db *DB) query(ctx context.Context, stmt *Statement) (*Result, error) {
	rows, err := db.exec.QueryContext(ctx, stmt.SQL, stmt.ArgValues()...)
	if err != nil {
		return nil, fmt.Errorf("torm: %s %s: %w", stmt.Kind, stmt.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("torm: %s %s: %w", stmt.Kind, stmt.Table, err)
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		row := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("torm: %s %s: %w", stmt.Kind, stmt.Table, err)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("torm: %s %s: %w", stmt.Kind, stmt.Table, err)
	}
	return res, nil
}
