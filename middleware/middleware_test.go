package middleware

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/torm/column"
	"github.com/shrek82/torm/core"
	"github.com/shrek82/torm/dialect"
	"github.com/shrek82/torm/logger"
	"github.com/shrek82/torm/model"
)

type note struct {
	ID   *int32
	Body string
}

var (
	noteID   = column.Serial("id", column.Primary())
	noteBody = column.Text("body", column.NotNull())
)

const createNote = "CREATE TABLE IF NOT EXISTS note (id SERIAL PRIMARY KEY, body TEXT NOT NULL)"

func noteView(t *testing.T, mws ...core.Middleware) (*core.View[note], sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	d, _ := dialect.Get("postgres")
	db := core.NewDB(sqlDB, d)
	db.SetLogger(logger.Discard())
	require.NoError(t, db.Use(mws...))
	t.Cleanup(func() {
		db.Close()
		sqlDB.Close()
	})

	r := model.NewRegistry()
	require.NoError(t, model.Register(r, model.MustDescribe("",
		model.NullableField(noteID, func(n *note) **int32 { return &n.ID }),
		model.Field(noteBody, func(n *note) *string { return &n.Body }),
	)))

	mock.ExpectQuery(createNote).WillReturnRows(sqlmock.NewRows([]string{}))
	v, err := core.NewView[note](context.Background(), db, r)
	require.NoError(t, err)
	return v, mock
}

func selectNotes(mock sqlmock.Sqlmock, rows ...[]driver.Value) {
	r := sqlmock.NewRows([]string{"id", "body"})
	for _, row := range rows {
		r.AddRow(row...)
	}
	mock.ExpectQuery("SELECT * FROM note WHERE body LIKE $1").WithArgs("%a%").WillReturnRows(r)
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	v, mock := noteView(t, cache)
	ctx := WithCache(context.Background(), CacheDefault)
	q := noteBody.Contains("a")

	selectNotes(mock, []driver.Value{int64(1), "alpha"}, []driver.Value{int64(2), "beta"})
	first, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 2)

	cached, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, cached)
	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// reads without WithCache always reach the store
	selectNotes(mock, []driver.Value{int64(1), "alpha"})
	_, err = v.GetMany(context.Background(), q)
	require.NoError(t, err)

	// a write invalidates the table
	mock.ExpectQuery("INSERT INTO note (body) VALUES ($1) ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body RETURNING *").
		WithArgs("gamma").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow(int64(3), "gamma"))
	_, err = v.Put(context.Background(), &note{Body: "gamma"})
	require.NoError(t, err)

	selectNotes(mock, []driver.Value{int64(1), "alpha"}, []driver.Value{int64(2), "beta"}, []driver.Value{int64(3), "gamma"})
	after, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	assert.Len(t, after, 3)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	res := &core.Result{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}
	data, err := encodeResult(res)
	require.NoError(t, err)

	cache.store("fresh", data, 0)
	cache.store("stale", data, time.Nanosecond)
	time.Sleep(time.Millisecond)

	got, ok := cache.lookup("fresh")
	require.True(t, ok)
	assert.Equal(t, res, got)
	_, ok = cache.lookup("stale")
	assert.False(t, ok)
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	v, mock := noteView(t, NewFileCache(dir, time.Minute))
	ctx := WithCache(context.Background(), CacheDefault)
	q := noteBody.Contains("a")

	selectNotes(mock, []driver.Value{int64(1), "alpha"}, []driver.Value{int64(2), "beta"})
	first, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// a second cache on the same directory, as after a restart, serves the file
	restarted, mock2 := noteView(t, NewFileCache(dir, time.Minute))
	cached, err := restarted.GetMany(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, cached)
	assert.NoError(t, mock2.ExpectationsWereMet())

	mock.ExpectQuery("DELETE FROM note WHERE id = $1 RETURNING *").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow(int64(2), "beta"))
	_, err = v.DeleteMany(context.Background(), noteID.Eq(2))
	require.NoError(t, err)

	selectNotes(mock, []driver.Value{int64(1), "alpha"})
	after, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	assert.Len(t, after, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	cache := NewFileCache(dir)
	require.NoError(t, cache.Init(nil))
	stmt := &core.Statement{Kind: core.KindSelect, Table: "note", SQL: "SELECT * FROM note WHERE id = $1", Args: []driver.Value{int64(1)}}

	calls := 0
	next := func(context.Context, *core.Statement) (*core.Result, error) {
		calls++
		return &core.Result{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}, nil
	}
	ctx := WithCache(context.Background(), time.Millisecond)
	_, err := cache.Process(ctx, stmt, next)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = cache.Process(ctx, stmt, next)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	forever := WithCache(context.Background(), CacheForever)
	_, err = cache.Process(forever, stmt, next)
	require.NoError(t, err)
	res, err := cache.Process(forever, stmt, next)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, res.Len())
}

func TestCacheTTL(t *testing.T) {
	bg := context.Background()
	_, ok := cacheTTL(bg, time.Minute)
	assert.False(t, ok)
	_, ok = cacheTTL(WithCache(bg, 0), time.Minute)
	assert.False(t, ok)

	ttl, ok := cacheTTL(WithCache(bg, CacheForever), time.Minute)
	assert.True(t, ok)
	assert.Zero(t, ttl)
	ttl, _ = cacheTTL(WithCache(bg, CacheDefault), time.Minute)
	assert.Equal(t, time.Minute, ttl)
	ttl, _ = cacheTTL(WithCache(bg, time.Second), time.Minute)
	assert.Equal(t, time.Second, ttl)
}

func TestMemoryCacheCoalescesMisses(t *testing.T) {
	cache := NewMemoryCache()
	stmt := &core.Statement{Kind: core.KindSelect, Table: "note", SQL: "SELECT * FROM note WHERE id = $1", Args: []driver.Value{int64(1)}}
	ctx := WithCache(context.Background(), time.Minute)

	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	next := func(ctx context.Context, stmt *core.Statement) (*core.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return &core.Result{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Process(ctx, stmt, next)
			assert.NoError(t, err)
			assert.Equal(t, 1, res.Len())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, calls, 8)
	assert.GreaterOrEqual(t, calls, 1)
	_, ok := cache.lookup(mustKey(t, stmt, 0))
	assert.True(t, ok)
}

func mustKey(t *testing.T, stmt *core.Statement, gen uint64) string {
	t.Helper()
	key, err := cacheKey(stmt, gen)
	require.NoError(t, err)
	return key
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }

	boom := errors.New("store down")
	fail := func(context.Context, *core.Statement) (*core.Result, error) { return nil, boom }
	ok := func(context.Context, *core.Statement) (*core.Result, error) { return &core.Result{}, nil }
	stmt := &core.Statement{Kind: core.KindSelect}
	ctx := context.Background()

	_, err := cb.Process(ctx, stmt, fail)
	assert.ErrorIs(t, err, boom)
	_, err = cb.Process(ctx, stmt, ok)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 2; i++ {
		_, err = cb.Process(ctx, stmt, fail)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())
	_, err = cb.Process(ctx, stmt, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	clock = clock.Add(2 * time.Minute)
	_, err = cb.Process(ctx, stmt, fail)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Minute)
	_, err = cb.Process(ctx, stmt, ok)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestTracing(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-9")

	var got map[string]any
	_, err := NewTracing().Process(ctx, &core.Statement{}, func(_ context.Context, stmt *core.Statement) (*core.Result, error) {
		got = stmt.Fields()
		return &core.Result{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"request_id": "req-1", "trace_id": "trace-9"}, got)
}

func TestSlowLog(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlowLog(time.Millisecond, "")
	m.SetOutput(&buf)

	stmt := &core.Statement{Kind: core.KindSelect, SQL: "SELECT * FROM note WHERE id = $1", Args: []driver.Value{int64(1)}}
	fast := func(context.Context, *core.Statement) (*core.Result, error) { return &core.Result{}, nil }
	slow := func(context.Context, *core.Statement) (*core.Result, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, errors.New("timeout")
	}

	_, err := m.Process(context.Background(), stmt, fast)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = m.Process(context.Background(), stmt, slow)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "slow sql")
	assert.Contains(t, buf.String(), "sql=SELECT * FROM note WHERE id = $1 | args=[1] | rows=0 | err=timeout")
}

func TestRedisCacheKeepsWriteResultWhenInvalidationFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewRedisCache(client, time.Minute)

	written := &core.Result{Columns: []string{"id", "body"}, Rows: [][]any{{int64(3), "gamma"}}}
	stmt := &core.Statement{Kind: core.KindUpsert, Table: "note"}
	res, err := cache.Process(context.Background(), stmt, func(context.Context, *core.Statement) (*core.Result, error) {
		return written, nil
	})
	assert.Error(t, err)
	assert.Same(t, written, res)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	// start from a generation no earlier run has cached under
	require.NoError(t, client.Incr(context.Background(), generationKey("note")).Err())

	v, mock := noteView(t, NewRedisCache(client, time.Minute))
	ctx := WithCache(context.Background(), time.Minute)
	q := noteBody.Contains("a")

	selectNotes(mock, []driver.Value{int64(1), "alpha"})
	first, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	cached, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, cached)

	mock.ExpectQuery("DELETE FROM note WHERE id = $1 RETURNING *").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).AddRow(int64(1), "alpha"))
	_, err = v.DeleteMany(context.Background(), noteID.Eq(1))
	require.NoError(t, err)

	selectNotes(mock)
	after, err := v.GetMany(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, after)

	assert.NoError(t, mock.ExpectationsWereMet())
}
