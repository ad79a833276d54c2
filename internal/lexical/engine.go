package lexical

import (
	"context"
	"sort"
	"sync"

	"github.com/Fl0k3n/kfe/internal/lemmatizer"
	"github.com/Fl0k3n/kfe/internal/model"
)

// BM25Config holds the Okapi BM25 tuning constants.
type BM25Config struct {
	K1 float64
	B  float64
}

// DefaultBM25Config matches the engine this package is modeled after:
// k1=1.5, b=0.75.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// Engine is the lexical search engine: a ReverseIndex plus a
// TokenStatCounter scored with a legacy Okapi BM25 variant whose length
// normalization term uses the corpus-wide ratio N/avgdl rather than the
// per-document ratio |d|/avgdl. This is intentional and must not be
// "fixed" to the textbook form without changing the documented scoring
// contract.
type Engine struct {
	mu         sync.RWMutex
	lemmatizer lemmatizer.Lemmatizer
	reverse    *ReverseIndex
	stats      *TokenStatCounter
	config     BM25Config
}

// NewEngine constructs an Engine over freshly created index structures.
func NewEngine(lm lemmatizer.Lemmatizer, cfg BM25Config) *Engine {
	return &Engine{
		lemmatizer: lm,
		reverse:    NewReverseIndex(),
		stats:      NewTokenStatCounter(),
		config:     cfg,
	}
}

// IndexText lemmatizes text and adds every resulting token to the index
// under fileID. Call RemoveFile first if fileID was already indexed, or
// use ReindexText.
func (e *Engine) IndexText(ctx context.Context, fileID model.FileID, text string) error {
	tokens, err := e.lemmatizer.Lemmatize(ctx, text)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.AddItem(int64(fileID), tokens)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		e.reverse.AddEntry(tok, int64(fileID))
	}
	return nil
}

// RemoveFile drops fileID from both the reverse index and the token
// statistics.
func (e *Engine) RemoveFile(fileID model.FileID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeFileLocked(fileID)
}

func (e *Engine) removeFileLocked(fileID model.FileID) {
	counts, ok := e.stats.occurrences[int64(fileID)]
	if ok {
		for tok := range counts {
			e.reverse.RemoveEntry(tok, int64(fileID))
		}
	}
	e.stats.RemoveItem(int64(fileID))
}

// ReindexText atomically replaces fileID's indexed content.
func (e *Engine) ReindexText(ctx context.Context, fileID model.FileID, text string) error {
	tokens, err := e.lemmatizer.Lemmatize(ctx, text)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeFileLocked(fileID)
	e.stats.AddItem(int64(fileID), tokens)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		e.reverse.AddEntry(tok, int64(fileID))
	}
	return nil
}

// Search lemmatizes query and scores every file that shares at least one
// token with it, using BM25 with a global length-normalization term.
// Returns results sorted by descending score.
func (e *Engine) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	tokens, err := e.lemmatizer.Lemmatize(ctx, query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.reverse.Len() == 0 {
		return nil, nil
	}

	numItems := float64(e.stats.GetNumberOfItems())
	avgdl := e.stats.GetAvgItemLength()
	if avgdl == 0 {
		return nil, nil
	}
	k1, b := e.config.K1, e.config.B

	seen := make(map[string]struct{}, len(tokens))
	scores := make(map[int64]float64)
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		ids := e.reverse.Lookup(tok)
		if len(ids) == 0 {
			continue
		}
		idf := e.stats.IDF(tok)
		for _, id := range ids {
			freq := float64(e.stats.GetTokenOccurrencesInItem(id, tok))
			denom := freq + k1*(1-b+b*numItems/avgdl)
			scores[id] += idf * (freq * (k1 + 1) / denom)
		}
	}

	results := make([]model.SearchResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, model.SearchResult{FileID: model.FileID(id), Score: score})
	}
	sort.Sort(model.ByScoreDesc(results))
	return results, nil
}

// Stats exposes the read-only corpus statistics (item count, avg length).
func (e *Engine) Stats() (numItems int, avgLen float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.GetNumberOfItems(), e.stats.GetAvgItemLength()
}
