package middleware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shrek82/torm/core"
)

// FileCacheMiddleware caches select results as files under CacheDir, one
// file per read. It follows the same contract as MemoryCacheMiddleware. Table
// generations live in CacheDir/gen so that they survive restarts; a file
// cached before a write is never read again.
type FileCacheMiddleware struct {
	CacheDir   string
	DefaultTTL time.Duration

	mu sync.Mutex
}

type fileCacheEntry struct {
	Data []byte `msgpack:"data"`
	// unix nanoseconds, 0 for no expiry
	ExpiresAt int64 `msgpack:"expires_at"`
}

func NewFileCache(cacheDir string, defaultTTL ...time.Duration) *FileCacheMiddleware {
	ttl := 5 * time.Minute
	if len(defaultTTL) > 0 {
		ttl = defaultTTL[0]
	}
	return &FileCacheMiddleware{
		CacheDir:   cacheDir,
		DefaultTTL: ttl,
	}
}

func (m *FileCacheMiddleware) Name() string {
	return "FileCache"
}

func (m *FileCacheMiddleware) Init(db *core.DB) error {
	if m.CacheDir == "" {
		return fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(filepath.Join(m.CacheDir, "gen"), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

func (m *FileCacheMiddleware) Shutdown() error {
	return nil
}

func (m *FileCacheMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	if stmt.Kind.Writes() {
		res, err := next(ctx, stmt)
		if ierr := m.invalidate(stmt.Table); ierr != nil && err == nil {
			return res, fmt.Errorf("torm: invalidate %s: %w", stmt.Table, ierr)
		}
		return res, err
	}
	if stmt.Kind != core.KindSelect {
		return next(ctx, stmt)
	}
	ttl, ok := cacheTTL(ctx, m.DefaultTTL)
	if !ok {
		return next(ctx, stmt)
	}

	gen, err := m.generation(stmt.Table)
	if err != nil {
		return next(ctx, stmt)
	}
	key, err := cacheKey(stmt, gen)
	if err != nil {
		return next(ctx, stmt)
	}
	path := m.entryPath(key)

	if res, ok := m.lookup(path); ok {
		return res, nil
	}

	res, err := next(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if data, err := encodeResult(res); err == nil {
		entry := fileCacheEntry{Data: data}
		if ttl > 0 {
			entry.ExpiresAt = time.Now().Add(ttl).UnixNano()
		}
		// a failed write only costs a later miss
		_ = writeFileAtomic(path, entry)
	}
	return res, nil
}

func (m *FileCacheMiddleware) entryPath(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(m.CacheDir, hex.EncodeToString(sum[:])+".msgpack")
}

func (m *FileCacheMiddleware) genPath(table string) string {
	return filepath.Join(m.CacheDir, "gen", table)
}

func (m *FileCacheMiddleware) lookup(path string) (*core.Result, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry fileCacheEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.ExpiresAt != 0 && time.Now().UnixNano() > entry.ExpiresAt {
		_ = os.Remove(path)
		return nil, false
	}
	res, err := decodeResult(entry.Data)
	if err != nil {
		return nil, false
	}
	return res, true
}

func (m *FileCacheMiddleware) generation(table string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readGen(table)
}

func (m *FileCacheMiddleware) readGen(table string) (uint64, error) {
	raw, err := os.ReadFile(m.genPath(table))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
}

func (m *FileCacheMiddleware) invalidate(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, err := m.readGen(table)
	if err != nil {
		return err
	}
	path := m.genPath(table)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(gen+1, 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeFileAtomic(path string, entry fileCacheEntry) error {
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}
