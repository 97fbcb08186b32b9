package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		value any
		ok    bool
	}{
		{"required nil", Required, nil, false},
		{"required empty", Required, "", false},
		{"required zero int", Required, int32(0), true},
		{"min len", MinLen(2), "é", false},
		{"min len ok", MinLen(2), "éé", true},
		{"max len", MaxLen(3), "abcd", false},
		{"max len null", MaxLen(3), nil, true},
		{"range low", Range(18, 100), int32(17), false},
		{"range float", Range(0, 1), 0.5, true},
		{"range non numeric", Range(0, 1), "x", true},
		{"in", In("admin", "user"), "user", true},
		{"not in", In("admin", "user"), "root", false},
		{"email", Email, "a@example.com", true},
		{"email with name", Email, "Ann <a@example.com>", false},
		{"email invalid", Email, "nope", false},
		{"regexp", Regexp(`^[a-z]+$`), "abc", true},
		{"regexp miss", Regexp(`^[a-z]+$`), "ABC", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRulesValidate(t *testing.T) {
	rules := Rules{
		"name":  {Required, MinLen(2)},
		"email": {Email},
		"age":   {Range(18, 100)},
	}

	require.NoError(t, rules.Validate(map[string]any{"name": "Ann", "email": "ann@example.com", "age": int32(30)}))

	err := rules.Validate(map[string]any{"name": "", "email": "bad", "age": nil})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs["name"], 2)
	assert.Len(t, verrs["email"], 1)
	assert.NotContains(t, verrs, "age")
	assert.Equal(t, "email: must be a valid email address; name: is required; name: length must be at least 2", err.Error())
}
