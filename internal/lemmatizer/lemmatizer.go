// Package lemmatizer defines the pluggable text-normalization boundary the
// lexical search engine tokenizes through, plus a concrete stemming-based
// implementation for tests and single-node deployments that don't run a
// dedicated NLP service.
package lemmatizer

import (
	"context"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// Lemmatizer reduces free text to a slice of normalized tokens. A real
// deployment may back this with a language-aware NLP pipeline (spaCy-style
// lemmatization per spec); this package treats that as an external
// capability and ships a Porter2-stemming fallback that satisfies the same
// contract.
type Lemmatizer interface {
	Lemmatize(ctx context.Context, text string) ([]string, error)
}

// StemmingLemmatizer lowercases, splits on non-letters/non-digits, and
// stems each token with the Porter2 algorithm. It ignores language hints
// since Porter2 only models English morphology; a production deployment
// would route non-English text to a dedicated per-language lemmatizer
// model instead.
type StemmingLemmatizer struct {
	MinTokenLength int
}

// NewStemmingLemmatizer returns a StemmingLemmatizer with a default minimum
// token length of 2 characters.
func NewStemmingLemmatizer() *StemmingLemmatizer {
	return &StemmingLemmatizer{MinTokenLength: 2}
}

// Lemmatize implements Lemmatizer.
func (s *StemmingLemmatizer) Lemmatize(_ context.Context, text string) ([]string, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	minLen := s.MinTokenLength
	if minLen <= 0 {
		minLen = 1
	}
	for _, f := range fields {
		lower := strings.ToLower(f)
		if len(lower) < minLen {
			continue
		}
		tokens = append(tokens, porter2.Stem(lower))
	}
	return tokens, nil
}
