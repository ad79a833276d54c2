// Package similarity implements exact (non-approximate) dense vector
// similarity search. Both calculators keep every embedding in memory as a
// row-major float32 matrix and score queries by brute-force dot product;
// there is no ANN index, ordering is exact, and every row maps back to a
// file ID through a maintained bijection (SimilarityCalculator) or a
// many-rows-to-one mapping (MultiSimilarityCalculator).
package similarity

import (
	"sort"
	"sync"

	"github.com/Fl0k3n/kfe/internal/model"
)

// Vector is a single embedding, expected to already be L2-normalized so
// that a plain dot product equals cosine similarity.
type Vector []float32

// NormalizeCosine maps a cosine similarity in [-1, 1] to [0, 1], clamped.
// Grounded on the original engine's score normalization.
func NormalizeCosine(score float64) float64 {
	v := (score + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dot(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Calculator is an exact, single-row-per-file similarity index with a
// maintained row<->fileID bijection. Safe for concurrent use.
type Calculator struct {
	mu          sync.RWMutex
	rowToFileID []int64
	fileIDToRow map[int64]int
	rows        []Vector
}

// Builder accumulates rows before a one-shot Build, mirroring the
// reconciliation pass DirectoryContext runs at startup.
type Builder struct {
	rowToFileID []int64
	fileIDToRow map[int64]int
	rows        []Vector
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{fileIDToRow: make(map[int64]int)}
}

// AddRow appends a row for fileID. Adding the same fileID twice leaves the
// bijection pointing at the last row added for it, silently orphaning the
// earlier one — callers must not do this.
func (b *Builder) AddRow(fileID model.FileID, embedding Vector) {
	b.fileIDToRow[int64(fileID)] = len(b.rows)
	b.rowToFileID = append(b.rowToFileID, int64(fileID))
	b.rows = append(b.rows, embedding)
}

// Build finalizes the Calculator.
func (b *Builder) Build() *Calculator {
	return &Calculator{
		rowToFileID: b.rowToFileID,
		fileIDToRow: b.fileIDToRow,
		rows:        b.rows,
	}
}

// Len returns the number of indexed rows.
func (c *Calculator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// AddRow inserts or replaces fileID's embedding.
func (c *Calculator) AddRow(fileID model.FileID, embedding Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.fileIDToRow[int64(fileID)]; ok {
		c.rows[row] = embedding
		return
	}
	c.fileIDToRow[int64(fileID)] = len(c.rows)
	c.rowToFileID = append(c.rowToFileID, int64(fileID))
	c.rows = append(c.rows, embedding)
}

// DeleteRow removes fileID's embedding, if present, preserving the
// bijection by swapping the last row into the freed slot.
func (c *Calculator) DeleteRow(fileID model.FileID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.fileIDToRow[int64(fileID)]
	if !ok {
		return
	}
	lastRow := len(c.rows) - 1
	lastFileID := c.rowToFileID[lastRow]

	c.rows[row] = c.rows[lastRow]
	c.rowToFileID[row] = lastFileID
	c.fileIDToRow[lastFileID] = row

	c.rows = c.rows[:lastRow]
	c.rowToFileID = c.rowToFileID[:lastRow]
	delete(c.fileIDToRow, int64(fileID))
}

// GetEmbedding returns fileID's stored embedding, if any.
func (c *Calculator) GetEmbedding(fileID model.FileID) (Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.fileIDToRow[int64(fileID)]
	if !ok {
		return nil, false
	}
	return c.rows[row], true
}

// ComputeSimilarity scores every row against query and returns the top k
// results (or all of them, if k <= 0), sorted by descending similarity.
// Scores are raw dot products, not yet normalized — callers apply
// NormalizeCosine where spec.md calls for it. Ties are broken by row index
// (the stable sort preserves the row-ordered slice built above), per
// spec.md §8.9.
func (c *Calculator) ComputeSimilarity(query Vector, k int) []model.SearchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.rows) == 0 {
		return nil
	}
	results := make([]model.SearchResult, len(c.rows))
	for i, row := range c.rows {
		results[i] = model.SearchResult{FileID: model.FileID(c.rowToFileID[i]), Score: dot(query, row)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}
