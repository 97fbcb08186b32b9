package pool

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Options defines the configuration for the connection pool.
// Zero values keep the database/sql defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Pool defines the interface for a database connection pool.
type Pool interface {
	Close() error
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	SetConnMaxLifetime(d time.Duration)
	SetConnMaxIdleTime(d time.Duration)
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Stats() sql.DBStats
}

// StdPool is an implementation of Pool using the standard library's *sql.DB.
type StdPool struct {
	*sql.DB
}

// NewStdPool creates a new StdPool wrapping the given *sql.DB and applies opts.
func NewStdPool(db *sql.DB, opts *Options) *StdPool {
	p := &StdPool{db}
	p.Configure(opts)
	return p
}

// Configure applies the non-zero options.
func (p *StdPool) Configure(opts *Options) {
	if opts == nil {
		return
	}
	if opts.MaxOpenConns > 0 {
		p.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		p.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		p.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		p.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

// Open opens a pool for the registered database/sql driver and checks
// that the store is reachable.
func Open(ctx context.Context, driver, dsn string, opts *Options) (*StdPool, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("torm: open %s: %w", driver, err)
	}
	p := NewStdPool(db, opts)
	if err := p.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("torm: ping %s: %w", driver, err)
	}
	return p, nil
}
