package validator

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"
)

// All returns the first non-nil error.
func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T, description string) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", description, i, err)
		}
	}
	return nil
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NotNegative(n int, description string) error {
	if n < 0 {
		return fmt.Errorf("%s must not be negative, got %d", description, n)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// Delimiter checks one side of a tag delimiter pair: non-empty, no
// whitespace and no '='.
func Delimiter(field, description string) error {
	if err := NotEmpty(field, description); err != nil {
		return err
	}
	if strings.IndexFunc(field, unicode.IsSpace) >= 0 || strings.Contains(field, "=") {
		return fmt.Errorf("%s must not contain whitespace or '=', got %q", description, field)
	}
	return nil
}

// Distinct fails when a and b are equal.
func Distinct(a, b, description string) error {
	if a == b {
		return fmt.Errorf("%s must differ, both are %q", description, a)
	}
	return nil
}

// HTTPURL accepts empty strings and absolute http(s) URLs.
func HTTPURL(field, description string) error {
	if field == "" {
		return nil
	}
	u, err := url.Parse(field)
	if err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", description, field)
	}
	return nil
}
