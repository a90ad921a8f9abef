// Package filter turns caller input into core.QueryFilter predicate sets.
package filter

import (
	"strconv"
	"strings"

	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// Recognized structured query keys.
const (
	ParamIsPalindrome      = "is_palindrome"
	ParamMinLength         = "min_length"
	ParamMaxLength         = "max_length"
	ParamWordCount         = "word_count"
	ParamContainsCharacter = "contains_character"
)

// BuildFilter maps request parameters onto a filter.
// Unknown keys are ignored, but at least one recognized key must be present.
func BuildFilter(params map[string]string) (core.QueryFilter, error) {
	var f core.QueryFilter
	recognized := false

	if v, ok := params[ParamIsPalindrome]; ok {
		b := v == "true"
		f.IsPalindrome = &b
		recognized = true
	}

	for _, key := range []string{ParamMinLength, ParamMaxLength, ParamWordCount} {
		v, ok := params[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return core.QueryFilter{}, core.Validation("%s must be an integer, got %q", key, v)
		}
		switch key {
		case ParamMinLength:
			f.MinLength = &n
		case ParamMaxLength:
			f.MaxLength = &n
		case ParamWordCount:
			f.WordCount = &n
		}
		recognized = true
	}

	if v, ok := params[ParamContainsCharacter]; ok {
		f.Contains = &v
		recognized = true
	}

	if !recognized {
		return core.QueryFilter{}, core.Validation("Invalid query parameter values or types")
	}
	return f, nil
}

// Recognized returns the recognized keys of params with their raw values.
func Recognized(params map[string]string) map[string]string {
	out := make(map[string]string)
	for _, key := range []string{ParamIsPalindrome, ParamMinLength, ParamMaxLength, ParamWordCount, ParamContainsCharacter} {
		if v, ok := params[key]; ok {
			out[key] = v
		}
	}
	return out
}

// Params flattens url.Values-style input, keeping the first value per key.
func Params(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
