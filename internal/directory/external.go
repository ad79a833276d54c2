// Package directory implements the per-registered-directory lifecycle
// spec.md §4.6 describes as DirectoryContext: it owns one directory's
// FileStore, lexical engines, and EmbeddingProcessor, reconciles them
// against the files actually on disk at init, queues filesystem events
// until that reconciliation finishes, and applies create/delete/move
// events afterward under a single per-directory write lock so a reader
// never observes a file row without its matching lexical/embedding rows.
//
// The file-type detector, OCR/transcription workers, video prober, and
// thumbnail generator are external collaborators per spec.md §6 — this
// package only describes their contract (the interfaces below) and calls
// into whatever is wired in; a directory with a nil OCRService, say, just
// never populates OCR text.
package directory

import (
	"context"
	"time"
)

// FileTypeDetector classifies a file on disk (MIME sniff plus a video
// stream probe that downgrades video/* with no video stream to audio).
type FileTypeDetector interface {
	DetectType(ctx context.Context, absPath string) (FileType, error)
}

// FileType mirrors model.FileType but is declared here too so external
// detector implementations don't need to import internal/model just for
// this one enum; Context converts between the two at its boundary.
type FileType string

const (
	TypeImage    FileType = "image"
	TypeVideo    FileType = "video"
	TypeAudio    FileType = "audio"
	TypeDocument FileType = "document"
	TypeOther    FileType = "other"
)

// OCRService runs OCR over an image and reports whether enough real words
// were recognized to treat the image as a screenshot.
type OCRService interface {
	Run(ctx context.Context, absPath string) (text string, isScreenshot bool, err error)
}

// TranscriptionService produces a speech transcript for audio/video.
type TranscriptionService interface {
	Transcribe(ctx context.Context, absPath string) (text string, err error)
}

// VideoProber supplies duration and frame-at-offset extraction for CLIP
// video-frame sampling (spec.md §4.4's N evenly-spaced offsets).
type VideoProber interface {
	DurationSeconds(ctx context.Context, absPath string) (time.Duration, error)
	// FrameAtOffset extracts the frame at offset into a temporary image
	// file and returns its path; the caller is responsible for cleanup.
	FrameAtOffset(ctx context.Context, absPath string, offset time.Duration) (framePath string, err error)
}

// ThumbnailHook lets a real thumbnail generator plug into the same
// lifecycle points the index/embedding hooks use, per SPEC_FULL.md's
// supplemented "thumbnail hook points" feature. The zero value is a no-op.
type ThumbnailHook interface {
	OnFileCreated(ctx context.Context, relPath string)
	OnFileDeleted(ctx context.Context, relPath string)
}

// noopThumbnailHook is the default ThumbnailHook when none is configured.
type noopThumbnailHook struct{}

func (noopThumbnailHook) OnFileCreated(context.Context, string) {}
func (noopThumbnailHook) OnFileDeleted(context.Context, string) {}
