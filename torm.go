// Package torm is a typed ORM: columns declared as Go values build
// parameterized predicates, schemas bind columns to struct fields, and views
// run CRUD statements against PostgreSQL or SQLite.
package torm

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/torm/column"
	"github.com/shrek82/torm/config"
	"github.com/shrek82/torm/core"
	"github.com/shrek82/torm/logger"
	"github.com/shrek82/torm/middleware"
	"github.com/shrek82/torm/model"
	"github.com/shrek82/torm/query"
	"github.com/shrek82/torm/validator"
)

// Re-export core types and functions
type (
	DB         = core.DB
	Middleware = core.Middleware
	Statement  = core.Statement
	Result     = core.Result
	Query      = query.Query
	Registry   = model.Registry
	Config     = config.Config
)

type (
	View[M any]    = core.View[M]
	Schema[M any]  = model.Schema[M]
	Binding[M any] = model.Binding[M]
)

var (
	Open        = core.Open
	NewDB       = core.NewDB
	NewRegistry = model.NewRegistry
	LoadConfig  = config.Load
)

// Re-export errors
var (
	ErrNotNullViolation         = core.ErrNotNullViolation
	ErrUnsupportedParameterType = core.ErrUnsupportedParameterType
	ErrUnknownDialect           = core.ErrUnknownDialect
	ErrPlaceholderMismatch      = query.ErrPlaceholderMismatch
	ErrEmptyPredicateSet        = query.ErrEmptyPredicateSet
	ErrTypeMismatch             = column.ErrTypeMismatch
	ErrDuplicateRegistration    = model.ErrDuplicateRegistration
	ErrUnregisteredModel        = model.ErrUnregisteredModel
	ErrNoPrimaryKey             = model.ErrNoPrimaryKey
)

// Re-export validator types
type (
	Rules            = validator.Rules
	Rule             = validator.Rule
	ValidationErrors = validator.ValidationErrors
)

// All joins queries with AND.
func All(queries ...Query) (Query, error) { return query.All(queries...) }

// Any joins queries with OR.
func Any(queries ...Query) (Query, error) { return query.Any(queries...) }

func Field[M, T any](col column.Of[T], ref func(*M) *T) Binding[M] {
	return model.Field(col, ref)
}

func NullableField[M, T any](col column.Of[T], ref func(*M) **T) Binding[M] {
	return model.NullableField(col, ref)
}

func Describe[M any](table string, bindings ...Binding[M]) (*Schema[M], error) {
	return model.Describe(table, bindings...)
}

func Register[M any](r *Registry, s *Schema[M]) error {
	return model.Register(r, s)
}

func SchemaOf[M any](r *Registry) (*Schema[M], error) {
	return model.SchemaOf[M](r)
}

func NewView[M any](ctx context.Context, db *DB, r *Registry) (*View[M], error) {
	return core.NewView[M](ctx, db, r)
}

// OpenConfig opens the database described by cfg and installs the
// middleware it enables, outermost first: tracing, slow log, memory cache,
// file cache, Redis cache, circuit breaker.
func OpenConfig(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := core.Open(cfg.Driver, cfg.ConnString(), cfg.PoolOptions())
	if err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)
	db.SetLogger(logger.New(os.Stdout, level, logger.LogFormat(cfg.Log.Format)))

	for _, mw := range middlewareFor(cfg) {
		if err := db.Use(mw); err != nil {
			mw.Shutdown()
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func middlewareFor(cfg Config) []Middleware {
	mws := []Middleware{middleware.NewTracing()}
	if cfg.Log.SlowThreshold > 0 {
		mws = append(mws, middleware.NewSlowLog(cfg.Log.SlowThreshold, cfg.Log.SlowLogPath))
	}
	if cfg.Cache.Memory {
		mws = append(mws, middleware.NewMemoryCache(cfg.Cache.TTL))
	}
	if cfg.Cache.Dir != "" {
		mws = append(mws, middleware.NewFileCache(cfg.Cache.Dir, cfg.Cache.TTL))
	}
	if cfg.Cache.RedisAddr != "" {
		mws = append(mws, middleware.NewRedisCacheFromOptions(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, cfg.Cache.TTL))
	}
	if cfg.Breaker.Threshold > 0 {
		mws = append(mws, middleware.NewCircuitBreaker(cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout))
	}
	return mws
}
