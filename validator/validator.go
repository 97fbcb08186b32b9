package validator

import (
	"fmt"
	"sort"
	"strings"
)

// Rule validates one column value. A nil value means SQL NULL.
type Rule interface {
	Validate(value any) error
}

// RuleFunc adapts a function to a Rule.
type RuleFunc func(value any) error

func (f RuleFunc) Validate(value any) error { return f(value) }

// ValidationErrors maps column names to their validation errors.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		for _, err := range v[name] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s: %v", name, err)
		}
	}
	return sb.String()
}

// Rules maps column names to the rules their values must satisfy.
type Rules map[string][]Rule

// Validate runs the rules against values keyed by column name and returns
// ValidationErrors when any rule fails.
func (r Rules) Validate(values map[string]any) error {
	errs := make(ValidationErrors)
	for name, rules := range r {
		val := values[name]
		for _, rule := range rules {
			if err := rule.Validate(val); err != nil {
				errs[name] = append(errs[name], err)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
