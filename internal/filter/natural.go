package filter

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// Rule is one pattern of the natural-language translator.
// Apply receives the lower-cased query and sets the fields it recognizes.
type Rule struct {
	Name  string
	Apply func(query string, f *core.QueryFilter)
}

// Contains returns a rule that fires when query contains substr.
func Contains(name, substr string, set func(f *core.QueryFilter)) Rule {
	return Rule{
		Name: name,
		Apply: func(query string, f *core.QueryFilter) {
			if strings.Contains(query, substr) {
				set(f)
			}
		},
	}
}

// Match returns a rule that fires when re matches, passing the first
// capture group to set.
func Match(name string, re *regexp.Regexp, set func(f *core.QueryFilter, capture string)) Rule {
	return Rule{
		Name: name,
		Apply: func(query string, f *core.QueryFilter) {
			if m := re.FindStringSubmatch(query); m != nil && len(m) > 1 {
				set(f, m[1])
			}
		},
	}
}

var (
	longerThanRe = regexp.MustCompile(`longer than (\d+)`)
	letterRe     = regexp.MustCompile(`containing the letter (\w)`)
)

// DefaultRules is the built-in pattern table, applied in order.
var DefaultRules = []Rule{
	Contains("palindromic", "palindromic", func(f *core.QueryFilter) {
		t := true
		f.IsPalindrome = &t
	}),
	Contains("single_word", "single word", func(f *core.QueryFilter) {
		one := 1
		f.WordCount = &one
	}),
	Match("longer_than", longerThanRe, func(f *core.QueryFilter, n string) {
		v, err := strconv.Atoi(n)
		if err != nil || v == math.MaxInt {
			// out of int range
			return
		}
		v++
		f.MinLength = &v
	}),
	Match("containing_letter", letterRe, func(f *core.QueryFilter, c string) {
		f.Contains = &c
	}),
}

// Translator maps free text onto a filter by applying a rule table.
type Translator struct {
	rules []Rule
}

// NewTranslator builds a translator. With no rules it uses DefaultRules.
func NewTranslator(rules ...Rule) *Translator {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Translator{rules: append([]Rule(nil), rules...)}
}

// With returns a translator with extra rules appended after the existing ones.
func (t *Translator) With(rules ...Rule) *Translator {
	all := make([]Rule, 0, len(t.rules)+len(rules))
	all = append(all, t.rules...)
	all = append(all, rules...)
	return &Translator{rules: all}
}

// Rules lists the rule names in application order.
func (t *Translator) Rules() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

// Translate never fails; unrecognized text yields an empty filter.
func (t *Translator) Translate(text string) core.QueryFilter {
	query := strings.ToLower(text)
	var f core.QueryFilter
	for _, r := range t.rules {
		r.Apply(query, &f)
	}
	return f
}
