package similarity

import (
	"sort"
	"sync"

	"github.com/Fl0k3n/kfe/internal/model"
)

// MultiCalculator is an exact similarity index where a single file ID may
// own several rows (e.g. one CLIP embedding per sampled video frame).
// ComputeSimilarity deduplicates by file ID, keeping only the best-scoring
// row per file, so the result set never reports the same file twice.
type MultiCalculator struct {
	mu          sync.RWMutex
	rowToFileID []int64
	rows        []Vector
}

// MultiBuilder accumulates rows for a one-shot Build.
type MultiBuilder struct {
	rowToFileID []int64
	rows        []Vector
}

// NewMultiBuilder returns an empty MultiBuilder.
func NewMultiBuilder() *MultiBuilder {
	return &MultiBuilder{}
}

// AddRows appends every row in embeddings, all attributed to fileID.
func (b *MultiBuilder) AddRows(fileID model.FileID, embeddings []Vector) {
	for _, e := range embeddings {
		b.rowToFileID = append(b.rowToFileID, int64(fileID))
		b.rows = append(b.rows, e)
	}
}

// Build finalizes the MultiCalculator.
func (b *MultiBuilder) Build() *MultiCalculator {
	return &MultiCalculator{rowToFileID: b.rowToFileID, rows: b.rows}
}

// Len returns the total number of rows (not distinct file IDs).
func (c *MultiCalculator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// ReplaceFile drops every existing row for fileID and inserts the rows in
// embeddings in their place (an empty embeddings slice just deletes).
func (c *MultiCalculator) ReplaceFile(fileID model.FileID, embeddings []Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.rowToFileID[:0:0]
	keptRows := c.rows[:0:0]
	for i, id := range c.rowToFileID {
		if id != int64(fileID) {
			kept = append(kept, id)
			keptRows = append(keptRows, c.rows[i])
		}
	}
	for _, e := range embeddings {
		kept = append(kept, int64(fileID))
		keptRows = append(keptRows, e)
	}
	c.rowToFileID = kept
	c.rows = keptRows
}

// DeleteFile removes every row belonging to fileID.
func (c *MultiCalculator) DeleteFile(fileID model.FileID) {
	c.ReplaceFile(fileID, nil)
}

// HasFile reports whether fileID currently owns at least one row.
func (c *MultiCalculator) HasFile(fileID model.FileID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.rowToFileID {
		if id == int64(fileID) {
			return true
		}
	}
	return false
}

// GetRows returns every row currently stored for fileID (one per sampled
// video frame), or ok=false if it owns none.
func (c *MultiCalculator) GetRows(fileID model.FileID) (rows []Vector, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, id := range c.rowToFileID {
		if id == int64(fileID) {
			rows = append(rows, c.rows[i])
		}
	}
	return rows, len(rows) > 0
}

// ComputeSimilarity scores every row against query, then walks results in
// descending score order collecting the first k *distinct* file IDs. If k
// <= 0, every distinct file ID is returned.
func (c *MultiCalculator) ComputeSimilarity(query Vector, k int) []model.SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.rows) == 0 {
		return nil
	}

	type scoredRow struct {
		fileID int64
		score  float64
	}
	scored := make([]scoredRow, len(c.rows))
	for i, row := range c.rows {
		scored[i] = scoredRow{fileID: c.rowToFileID[i], score: dot(query, row)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	limit := k
	if limit <= 0 {
		limit = len(scored)
	}

	seen := make(map[int64]struct{}, limit)
	results := make([]model.SearchResult, 0, limit)
	for _, s := range scored {
		if len(results) >= limit {
			break
		}
		if _, ok := seen[s.fileID]; ok {
			continue
		}
		seen[s.fileID] = struct{}{}
		results = append(results, model.SearchResult{FileID: model.FileID(s.fileID), Score: s.score})
	}
	return results
}
