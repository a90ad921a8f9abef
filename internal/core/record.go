package core

import (
	"strings"
	"time"
)

// Properties holds the structural facts derived from a string value.
// Every field is fully determined by the value and never mutated.
type Properties struct {
	// Length is the number of UTF-16 code units in the value.
	Length int `json:"length" dynamodbav:"length"`

	// IsPalindrome reports whether the value equals its code-unit reversal.
	IsPalindrome bool `json:"is_palindrome" dynamodbav:"is_palindrome"`

	// UniqueCharacters counts distinct characters once spaces are removed.
	UniqueCharacters int `json:"unique_characters" dynamodbav:"unique_characters"`

	// WordCount is the number of whitespace separated runs after trimming.
	WordCount int `json:"word_count" dynamodbav:"word_count"`

	// SHA256Hash is the lowercase hex SHA-256 digest of the raw value.
	SHA256Hash string `json:"sha256_hash" dynamodbav:"sha256_hash"`

	// CharacterFrequencyMap maps each character of the space-stripped value
	// to the number of times it occurs.
	CharacterFrequencyMap map[string]int `json:"character_frequency_map" dynamodbav:"character_frequency_map"`
}

// StringRecord is a single catalog entry. ID is always the SHA-256 hex
// digest of Value.
type StringRecord struct {
	ID         string     `json:"id" dynamodbav:"id"`
	Value      string     `json:"value" dynamodbav:"value"`
	Properties Properties `json:"properties" dynamodbav:"properties"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// QueryFilter is an AND-combined predicate set over records.
// A nil field places no constraint.
type QueryFilter struct {
	IsPalindrome *bool   `json:"is_palindrome,omitempty"`
	MinLength    *int    `json:"min_length,omitempty"`
	MaxLength    *int    `json:"max_length,omitempty"`
	WordCount    *int    `json:"word_count,omitempty"`
	Contains     *string `json:"contains_character,omitempty"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f QueryFilter) IsEmpty() bool {
	return f.IsPalindrome == nil &&
		f.MinLength == nil &&
		f.MaxLength == nil &&
		f.WordCount == nil &&
		f.Contains == nil
}

// Matches evaluates every present predicate against the record.
func (f QueryFilter) Matches(r *StringRecord) bool {
	if r == nil {
		return false
	}
	p := r.Properties
	if f.IsPalindrome != nil && p.IsPalindrome != *f.IsPalindrome {
		return false
	}
	if f.MinLength != nil && p.Length < *f.MinLength {
		return false
	}
	if f.MaxLength != nil && p.Length > *f.MaxLength {
		return false
	}
	if f.WordCount != nil && p.WordCount != *f.WordCount {
		return false
	}
	return f.MatchesValue(r.Value)
}

// MatchesValue evaluates only the case-insensitive substring predicate.
// SQL backends push the other predicates down and use this for the rest.
func (f QueryFilter) MatchesValue(value string) bool {
	if f.Contains == nil {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(*f.Contains))
}
