// Package moderation screens user-supplied text against a list of blocked
// terms before it is stored.
package moderation

import "strings"

// Filter matches blocked terms case-insensitively anywhere in the text.
// A nil *Filter matches nothing.
type Filter struct {
	terms []string
}

// New builds a Filter. Empty and whitespace-only terms are ignored.
func New(terms []string) *Filter {
	f := &Filter{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		f.terms = append(f.terms, t)
	}
	return f
}

// Match returns the first blocked term found in the combined texts.
func (f *Filter) Match(texts ...string) (string, bool) {
	if f == nil || len(f.terms) == 0 {
		return "", false
	}
	combined := strings.ToLower(strings.Join(texts, " "))
	for _, term := range f.terms {
		if strings.Contains(combined, term) {
			return term, true
		}
	}
	return "", false
}

// Len returns the number of active terms.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.terms)
}
