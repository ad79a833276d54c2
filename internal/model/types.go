// Package model holds the domain types shared across the search engine:
// file records, model kinds, and search results. Kept dependency-free so
// every other package can import it without cycles.
package model

import "time"

// FileID identifies a file row within a single directory's metadata store.
// IDs are scoped to one directory; there is no cross-directory search.
type FileID int64

// FileType classifies a file for the purpose of qualifier dispatch
// (@image, @video, @audio, @ss/@nss).
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// File is a single indexed file's metadata, mirroring spec.md §3's file
// row: every non-empty text field has a matching Lemmatized* field once
// indexed, IsScreenshot implies IsOCRAnalyzed and a non-empty OCRText, and
// FileTypeOther rows are never indexed.
type File struct {
	ID          FileID
	Name        string
	RelPath     string
	Type        FileType
	AddedAt     time.Time
	ModifiedAt  time.Time
	IndexedAt   time.Time

	Description string
	IsScreenshot bool

	OCRText       string
	IsOCRAnalyzed bool

	Transcript              string
	IsTranscriptAnalyzed    bool
	IsTranscriptFixed       bool

	LemmatizedDescription string
	LemmatizedOCRText     string
	LemmatizedTranscript  string

	HasVideoEmbeddingFailed bool

	LLMDescription            string
	IsLLMDescriptionAnalyzed  bool
}

// NeedsLemmatization reports which of the three text fields are non-empty
// but still missing their cached Lemmatized* counterpart, per spec.md §4.1's
// initializer ("for each non-empty text field that lacks lemmatized_*").
func (f File) NeedsLemmatization() (description, ocr, transcript bool) {
	return f.Description != "" && f.LemmatizedDescription == "",
		f.OCRText != "" && f.LemmatizedOCRText == "",
		f.Transcript != "" && f.LemmatizedTranscript == ""
}

// ModelKind tags a distinct ML capability the engine consumes. Mirrors the
// ModelType enum of the system this engine is modeled after, generalized
// to a provider-agnostic tag.
type ModelKind int

const (
	ModelKindOCR ModelKind = iota
	ModelKindTranscriber
	ModelKindTextEmbedding
	ModelKindImageEmbedding
	ModelKindClip
	ModelKindLemmatizer
	ModelKindVisionLM
)

func (k ModelKind) String() string {
	switch k {
	case ModelKindOCR:
		return "ocr"
	case ModelKindTranscriber:
		return "transcriber"
	case ModelKindTextEmbedding:
		return "text_embedding"
	case ModelKindImageEmbedding:
		return "image_embedding"
	case ModelKindClip:
		return "clip"
	case ModelKindLemmatizer:
		return "lemmatizer"
	case ModelKindVisionLM:
		return "vision_lm"
	default:
		return "unknown"
	}
}

// SearchResult pairs a file with a fused or component score. Lexical
// scores, and weighted sums of lexical lists, are unbounded BM25 scores;
// semantic scores and their weighted sums lie in [0, 1]; reciprocal rank
// fusion scores are sums of weight/(k+rank).
type SearchResult struct {
	FileID FileID
	Score  float64
}

// ByScoreDesc sorts SearchResults by descending score, breaking ties by
// ascending FileID for determinism.
type ByScoreDesc []SearchResult

func (s ByScoreDesc) Len() int      { return len(s) }
func (s ByScoreDesc) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s ByScoreDesc) Less(i, j int) bool {
	if s[i].Score != s[j].Score {
		return s[i].Score > s[j].Score
	}
	return s[i].FileID < s[j].FileID
}
