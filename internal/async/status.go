// Package async provides background processing infrastructure for a
// directory's Init/reconciliation pass, so a large first-time scan doesn't
// block the CLI command that triggered it.
package async

import (
	"sync"
	"time"
)

// IndexingStatus represents the overall directory-init state.
type IndexingStatus string

const (
	// StatusIndexing indicates the directory context is still reconciling.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady indicates reconciliation is complete and search is available.
	StatusReady IndexingStatus = "ready"
	// StatusError indicates the init pass failed with an error.
	StatusError IndexingStatus = "error"
)

// IndexingStage represents the current stage of a directory's Init pass,
// mirroring the phases directory.Context.Init runs through in order.
type IndexingStage string

const (
	// StageScanning indicates the filesystem reconciliation phase.
	StageScanning IndexingStage = "scanning"
	// StageAnalyzing indicates the OCR/transcription phase.
	StageAnalyzing IndexingStage = "analyzing"
	// StageLemmatizing indicates the lexical initializer phase.
	StageLemmatizing IndexingStage = "lemmatizing"
	// StageEmbedding indicates the embedding-processor reconciliation phase.
	StageEmbedding IndexingStage = "embedding"
)

// IndexProgressSnapshot is an immutable snapshot of directory-init progress.
type IndexProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	ItemsTotal     int     `json:"items_total"`
	ItemsIndexed   int     `json:"items_indexed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// IndexProgress provides thread-safe tracking of a directory's init progress.
type IndexProgress struct {
	mu sync.RWMutex

	status         IndexingStatus
	stage          IndexingStage
	filesTotal     int
	filesProcessed int
	itemsTotal     int
	itemsIndexed   int
	startTime      time.Time
	errorMessage   string
}

// NewIndexProgress creates a new progress tracker initialized for indexing.
func NewIndexProgress() *IndexProgress {
	return &IndexProgress{
		status:    StatusIndexing,
		stage:     StageScanning,
		startTime: time.Now(),
	}
}

// SetStage updates the current indexing stage and resets the total count.
func (p *IndexProgress) SetStage(stage IndexingStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.filesTotal = total
}

// UpdateFiles updates the number of processed files.
func (p *IndexProgress) UpdateFiles(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filesProcessed = processed
}

// SetItemsTotal sets the total number of embedding items to process.
func (p *IndexProgress) SetItemsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.itemsTotal = total
}

// UpdateItems updates the number of embedded items.
func (p *IndexProgress) UpdateItems(indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.itemsIndexed = indexed
}

// SetError marks the indexing as failed with an error message.
func (p *IndexProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the indexing as complete and ready for search.
func (p *IndexProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsIndexing returns true if indexing is still in progress.
func (p *IndexProgress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Snapshot returns an immutable copy of the current progress state.
func (p *IndexProgress) Snapshot() IndexProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.filesTotal > 0 {
		progressPct = float64(p.filesProcessed) / float64(p.filesTotal) * 100.0
	}

	return IndexProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		FilesTotal:     p.filesTotal,
		FilesProcessed: p.filesProcessed,
		ItemsTotal:     p.itemsTotal,
		ItemsIndexed:   p.itemsIndexed,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
