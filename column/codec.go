package column

import (
	"database/sql/driver"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// codec converts between a Go type and the values drivers accept and return.
// decode reports false when the driver value cannot represent T.
type codec[T any] struct {
	encode func(T) driver.Value
	decode func(v any) (T, bool)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

var int32Codec = codec[int32]{
	encode: func(v int32) driver.Value { return int64(v) },
	decode: func(v any) (int32, bool) {
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int32(n), true
	},
}

var int64Codec = codec[int64]{
	encode: func(v int64) driver.Value { return v },
	decode: toInt64,
}

var float32Codec = codec[float32]{
	encode: func(v float32) driver.Value { return float64(v) },
	decode: func(v any) (float32, bool) {
		f, ok := toFloat64(v)
		if !ok || math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return 0, false
		}
		return float32(f), true
	},
}

var float64Codec = codec[float64]{
	encode: func(v float64) driver.Value { return v },
	decode: toFloat64,
}

var stringCodec = codec[string]{
	encode: func(v string) driver.Value { return v },
	decode: func(v any) (string, bool) {
		switch s := v.(type) {
		case string:
			return s, true
		case []byte:
			return string(s), true
		}
		return "", false
	},
}

var boolCodec = codec[bool]{
	encode: func(v bool) driver.Value { return v },
	decode: func(v any) (bool, bool) {
		if b, ok := v.(bool); ok {
			return b, true
		}
		// sqlite stores booleans as 0/1 integers
		switch n, ok := toInt64(v); {
		case !ok:
			return false, false
		case n == 0:
			return false, true
		case n == 1:
			return true, true
		}
		return false, false
	},
}

// Layouts sqlite drivers use when a timestamp comes back as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// time.Time.String() output may carry a monotonic clock suffix
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var timeCodec = codec[time.Time]{
	encode: func(v time.Time) driver.Value { return v },
	decode: func(v any) (time.Time, bool) {
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			return parseTime(t)
		case []byte:
			return parseTime(string(t))
		}
		return time.Time{}, false
	},
}

var uuidCodec = codec[uuid.UUID]{
	encode: func(v uuid.UUID) driver.Value { return v.String() },
	decode: func(v any) (uuid.UUID, bool) {
		switch u := v.(type) {
		case uuid.UUID:
			return u, true
		case string:
			id, err := uuid.Parse(u)
			return id, err == nil
		case []byte:
			if len(u) == 16 {
				id, err := uuid.FromBytes(u)
				return id, err == nil
			}
			id, err := uuid.ParseBytes(u)
			return id, err == nil
		}
		return uuid.Nil, false
	},
}
