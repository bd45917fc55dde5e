package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct{ name string }

func (i item) Validate() error { return NotEmpty(i.name, "name") }

func TestAllReturnsFirstError(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")
	assert.NoError(t, All(nil, nil))
	assert.Equal(t, first, All(nil, first, second))
}

func TestEach(t *testing.T) {
	assert.NoError(t, Each([]item{{"a"}}, "items"))
	assert.EqualError(t, Each([]item{{"a"}, {""}}, "items"), "items[1]: name must not be empty")
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
	}{
		{"delimiter", Delimiter("<%", "d"), true},
		{"empty delimiter", Delimiter("", "d"), false},
		{"delimiter with space", Delimiter("< %", "d"), false},
		{"delimiter with equals", Delimiter("=%", "d"), false},
		{"distinct", Distinct("{{", "}}", "d"), true},
		{"not distinct", Distinct("|", "|", "d"), false},
		{"empty url", HTTPURL("", "u"), true},
		{"https url", HTTPURL("https://example.org/x/", "u"), true},
		{"relative url", HTTPURL("/x", "u"), false},
		{"ftp url", HTTPURL("ftp://example.org", "u"), false},
		{"not negative", NotNegative(0, "n"), true},
		{"negative", NotNegative(-1, "n"), false},
		{"allowed", MatchesAllowed("html", []string{"html", "none"}, "e"), true},
		{"not allowed", MatchesAllowed("xml", []string{"html", "none"}, "e"), false},
		{"no duplicates", NoDuplicates([]string{"a", "b"}, "s"), true},
		{"duplicates", NoDuplicates([]string{"a", "a"}, "s"), false},
		{"map", Map([]string{"a", ""}, NotEmpty, "roots"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ok {
				assert.NoError(t, tt.err)
			} else {
				assert.Error(t, tt.err)
			}
		})
	}
}
