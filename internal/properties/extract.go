// Package properties derives the structural facts stored with every string.
//
// Length and palindrome checks operate on UTF-16 code units so that records
// agree with clients that measure strings the way browsers and JSON tooling do.
// Character counts operate on Unicode code points.
package properties

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// Extract computes the properties of value. It is total and deterministic.
func Extract(value string) core.Properties {
	units := utf16.Encode([]rune(value))
	stripped := strings.ReplaceAll(value, " ", "")

	freq := make(map[string]int)
	for _, r := range stripped {
		freq[string(r)]++
	}

	hash := Hash(value)
	return core.Properties{
		Length:                len(units),
		IsPalindrome:          isPalindrome(units),
		UniqueCharacters:      len(freq),
		WordCount:             WordCount(value),
		SHA256Hash:            hash,
		CharacterFrequencyMap: freq,
	}
}

// NewRecord builds the catalog record for value, stamped with now.
// The timestamp is truncated to microseconds, the finest precision every
// storage backend round-trips.
func NewRecord(value string, now time.Time) *core.StringRecord {
	props := Extract(value)
	return &core.StringRecord{
		ID:         props.SHA256Hash,
		Value:      value,
		Properties: props,
		CreatedAt:  now.UTC().Truncate(time.Microsecond),
	}
}

// Hash returns the lowercase hex SHA-256 digest of the raw UTF-8 bytes.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// WordCount counts maximal runs of non-whitespace characters.
func WordCount(value string) int {
	return len(strings.FieldsFunc(value, isSpace))
}

func isPalindrome(units []uint16) bool {
	for i, j := 0, len(units)-1; i < j; i, j = i+1, j-1 {
		if units[i] != units[j] {
			return false
		}
	}
	return true
}

// isSpace matches the ECMAScript whitespace and line terminator set.
// unicode.IsSpace differs on U+0085 and U+FEFF.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}
