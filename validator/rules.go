package validator

import (
	"fmt"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

// Required rejects NULL and empty strings.
var Required Rule = RuleFunc(func(v any) error {
	switch s := v.(type) {
	case nil:
		return fmt.Errorf("is required")
	case string:
		if s == "" {
			return fmt.Errorf("is required")
		}
	}
	return nil
})

// MinLen requires a string of at least n runes. NULL passes.
func MinLen(n int) Rule {
	return RuleFunc(func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(s) < n {
			return fmt.Errorf("length must be at least %d", n)
		}
		return nil
	})
}

// MaxLen requires a string of at most n runes. NULL passes.
func MaxLen(n int) Rule {
	return RuleFunc(func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(s) > n {
			return fmt.Errorf("length must be at most %d", n)
		}
		return nil
	})
}

// Range requires a number within [min, max]. NULL passes.
func Range(min, max float64) Rule {
	return RuleFunc(func(v any) error {
		f, ok := toFloat(v)
		if !ok {
			return nil
		}
		if f < min || f > max {
			return fmt.Errorf("must be between %v and %v", min, max)
		}
		return nil
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// In requires the value to equal one of values. NULL passes.
func In(values ...any) Rule {
	return RuleFunc(func(v any) error {
		if v == nil {
			return nil
		}
		for _, allowed := range values {
			if v == allowed {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", values)
	})
}

// Email requires a bare address such as "a@example.com". NULL passes.
var Email Rule = RuleFunc(func(v any) error {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
})

// Regexp requires a string matching pattern. It panics if pattern does not compile.
func Regexp(pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return RuleFunc(func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if !re.MatchString(s) {
			return fmt.Errorf("must match %s", pattern)
		}
		return nil
	})
}
