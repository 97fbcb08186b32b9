package middleware

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shrek82/torm/core"
)

// Special TTL values understood by WithCache.
const (
	// CacheForever keeps the entry until its table is written to.
	CacheForever time.Duration = -1
	// CacheDefault uses the cache's DefaultTTL.
	CacheDefault time.Duration = -2
)

type cacheTTLKey struct{}

// WithCache marks reads made with the returned context as cacheable for ttl.
// A ttl of 0 disables caching for the context.
func WithCache(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

// cacheTTL resolves the TTL requested by ctx. ok is false when the read
// should bypass the cache; a zero ttl with ok means no expiry.
func cacheTTL(ctx context.Context, defaultTTL time.Duration) (ttl time.Duration, ok bool) {
	t, found := ctx.Value(cacheTTLKey{}).(time.Duration)
	if !found {
		return 0, false
	}
	switch {
	case t == 0:
		return 0, false
	case t == CacheForever:
		return 0, true
	case t == CacheDefault:
		if defaultTTL > 0 {
			return defaultTTL, true
		}
		return 24 * time.Hour, true
	case t > 0:
		return t, true
	}
	return 0, false
}

// cacheKey identifies a read of table at generation gen. Writes to the table
// advance its generation, so older entries are never read again.
func cacheKey(stmt *core.Statement, gen uint64) (string, error) {
	h := md5.New()
	h.Write([]byte(stmt.SQL))
	h.Write([]byte{0})
	args, err := msgpack.Marshal(stmt.Args)
	if err != nil {
		return "", fmt.Errorf("torm: cache key: %w", err)
	}
	h.Write(args)
	return fmt.Sprintf("torm:cache:%s:%d:%s", stmt.Table, gen, hex.EncodeToString(h.Sum(nil))), nil
}

func generationKey(table string) string {
	return "torm:gen:" + table
}

func encodeResult(res *core.Result) ([]byte, error) {
	return msgpack.Marshal(res)
}

func decodeResult(data []byte) (*core.Result, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// integers come back as int64 and floats as float64, like driver values
	dec.UseLooseInterfaceDecoding(true)
	var res core.Result
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
