package directory

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Fl0k3n/kfe/internal/async"
	"github.com/Fl0k3n/kfe/internal/config"
	"github.com/Fl0k3n/kfe/internal/embedproc"
	"github.com/Fl0k3n/kfe/internal/filestore"
	"github.com/Fl0k3n/kfe/internal/gitignore"
	"github.com/Fl0k3n/kfe/internal/kerrors"
	"github.com/Fl0k3n/kfe/internal/lemmatizer"
	"github.com/Fl0k3n/kfe/internal/lexical"
	"github.com/Fl0k3n/kfe/internal/model"
	"github.com/Fl0k3n/kfe/internal/search"
)

// DefaultVideoFrameCount is the number of evenly-spaced frames sampled for
// CLIP video embedding, per spec.md §4.4.
const DefaultVideoFrameCount = 3

// Dependencies bundles the external collaborators one Context is built
// from. Any of the *Service/Prober/Hook fields may be nil, in which case
// the corresponding step of the lifecycle is simply skipped.
type Dependencies struct {
	Lemmatizer     lemmatizer.Lemmatizer
	EmbedProviders embedproc.Providers

	TypeDetector  FileTypeDetector
	OCR           OCRService
	Transcriber   TranscriptionService
	VideoProber   VideoProber
	Thumbnails    ThumbnailHook

	Languages       []string
	VideoFrameCount int
	Search          config.SearchConfig

	Logger *slog.Logger
}

// Context is the per-directory lifecycle object spec.md §4.6 describes as
// DirectoryContext: it owns the directory's FileStore, three lexical
// engines (description/ocr/transcript), and EmbeddingProcessor, and
// serializes every mutation (init reconciliation, events, edits) behind a
// single write lock.
type Context struct {
	Name string
	Root string

	deps Dependencies
	log  *slog.Logger

	lm         lemmatizer.Lemmatizer
	store      *filestore.Store
	descLex    *lexical.Engine
	ocrLex     *lexical.Engine
	transLex   *lexical.Engine
	embeddings *embedproc.Processor
	searchSvc  *search.Service

	mu    sync.Mutex // guards lexical/embedding mutation + ready/queue below
	ready bool
	queue []queuedEvent

	initErr error
}

type eventKind int

const (
	eventCreate eventKind = iota
	eventDelete
	eventMove
)

type queuedEvent struct {
	kind    eventKind
	path    string
	oldPath string
}

// New constructs a Context rooted at root, opening its FileStore and
// EmbeddingProcessor but not yet reconciling against disk — call Init for
// that.
func New(name, root string, deps Dependencies) (*Context, error) {
	if deps.VideoFrameCount <= 0 {
		deps.VideoFrameCount = DefaultVideoFrameCount
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	store, err := filestore.Open(root)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	lm := deps.Lemmatizer
	if lm == nil {
		lm = lemmatizer.NewStemmingLemmatizer()
	}
	bm25 := lexical.BM25Config{K1: deps.Search.BM25K1, B: deps.Search.BM25B}
	if bm25.K1 == 0 {
		bm25 = lexical.DefaultBM25Config()
	}

	ep, err := embedproc.New(root, deps.EmbedProviders)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedding processor: %w", err)
	}

	return &Context{
		Name:       name,
		Root:       root,
		deps:       deps,
		log:        deps.Logger,
		lm:         lm,
		store:      store,
		descLex:    lexical.NewEngine(lm, bm25),
		ocrLex:     lexical.NewEngine(lm, bm25),
		transLex:   lexical.NewEngine(lm, bm25),
		embeddings: ep,
	}, nil
}

// Search proxies to the directory's SearchService. Returns
// kerrors.ErrDirectoryNotReady if Init hasn't completed yet.
func (c *Context) Search(ctx context.Context, rawQuery string, offset, limit int) ([]model.SearchResult, int, error) {
	c.mu.Lock()
	ready := c.ready
	svc := c.searchSvc
	c.mu.Unlock()
	if !ready {
		return nil, 0, kerrors.ErrDirectoryNotReady
	}
	return svc.Search(ctx, rawQuery, offset, limit)
}

// Store exposes the directory's FileStore for callers that need direct
// row access (the metadata editor, CLI status commands).
func (c *Context) Store() *filestore.Store { return c.store }

// Embeddings exposes the directory's EmbeddingProcessor, for reverse-lookup
// entry points and the metadata editor's text-update calls.
func (c *Context) Embeddings() *embedproc.Processor { return c.embeddings }

// LexicalEngine returns the engine for one of the three text dimensions,
// used by the metadata editor to update the matching index on edit.
func (c *Context) LexicalEngine(kind TextKind) *lexical.Engine {
	switch kind {
	case TextKindDescription:
		return c.descLex
	case TextKindOCR:
		return c.ocrLex
	case TextKindTranscript:
		return c.transLex
	default:
		return nil
	}
}

// TextKind identifies which of the three text dimensions an edit targets.
type TextKind int

const (
	TextKindDescription TextKind = iota
	TextKindOCR
	TextKindTranscript
)

// Lock acquires the directory's write lock for the duration of a
// multi-step edit (metadata editor) or an incremental file event,
// preserving the row<->index invariant spec.md §4.7 requires.
func (c *Context) Lock()   { c.mu.Lock() }
func (c *Context) Unlock() { c.mu.Unlock() }

// Init walks the directory, reconciling the FileStore with what's actually
// on disk, runs OCR/transcription for files that need it, lemmatizes and
// feeds the three lexical engines, builds the EmbeddingProcessor's six
// calculators (including CLIP video frame sampling for videos lacking one),
// builds the SearchService, and finally drains any events queued while
// this was in flight.
func (c *Context) Init(ctx context.Context) error {
	return c.InitWithProgress(ctx, nil)
}

// InitWithProgress runs the same lifecycle as Init, reporting each phase to
// progress if non-nil, so a caller driving this from a
// async.BackgroundIndexer can surface scan/analyze/lemmatize/embed progress
// to a CLI without Init itself depending on how that progress is presented.
func (c *Context) InitWithProgress(ctx context.Context, progress *async.IndexProgress) (err error) {
	c.initErr = nil
	if progress != nil {
		defer func() {
			if err != nil {
				progress.SetError(err.Error())
			}
		}()
		progress.SetStage(async.StageScanning, 0)
	}
	if err := c.reconcileFilesystem(ctx); err != nil {
		c.initErr = err
		return err
	}

	files, err := c.store.AllFiles(ctx)
	if err != nil {
		c.initErr = err
		return err
	}
	if progress != nil {
		progress.SetStage(async.StageScanning, len(files))
		progress.UpdateFiles(len(files))
	}

	if progress != nil {
		progress.SetStage(async.StageAnalyzing, len(files))
	}
	if err := c.runTextAnalysis(ctx, files); err != nil {
		c.initErr = err
		return err
	}

	// Text analysis may have mutated rows (OCR/transcript/auto-description);
	// reread before lemmatizing and embedding.
	files, err = c.store.AllFiles(ctx)
	if err != nil {
		c.initErr = err
		return err
	}

	if progress != nil {
		progress.SetStage(async.StageLemmatizing, len(files))
	}
	if err := c.initLexical(ctx, files); err != nil {
		c.initErr = err
		return err
	}

	if progress != nil {
		progress.SetStage(async.StageEmbedding, len(files))
		progress.SetItemsTotal(len(files))
	}
	if err := c.embeddings.Init(ctx, files); err != nil {
		c.initErr = err
		return err
	}
	if progress != nil {
		progress.UpdateItems(len(files))
	}

	if err := c.initImageEmbeddings(ctx, files); err != nil {
		c.initErr = err
		return err
	}

	if err := c.initVideoEmbeddings(ctx, files); err != nil {
		c.initErr = err
		return err
	}

	c.searchSvc = search.New(search.Engines{
		DescriptionLexical: c.descLex,
		OCRLexical:         c.ocrLex,
		TranscriptLexical:  c.transLex,
		Embeddings:         c.embeddings,
	}, storeLookup{c.store}, c.deps.Search)

	c.mu.Lock()
	c.ready = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, ev := range pending {
		c.applyEvent(ctx, ev)
	}
	if progress != nil {
		progress.SetReady()
	}
	return nil
}

// InitFailed reports whether the last Init call returned an error, for the
// Registry's init_failed_contexts bookkeeping (spec.md §7).
func (c *Context) InitFailed() bool { return c.initErr != nil }

// Close tears down the directory's store; per spec.md §4.6 point 4
// ("stop the watcher; close the store") the watcher itself is owned and
// stopped by the caller (cmd/kfe, which also drives fsnotify).
func (c *Context) Close() error {
	return c.store.Close()
}

// OnFileCreated indexes a newly observed file at rel, or queues the event
// if Init hasn't finished reconciling yet. relPath is relative to Root.
func (c *Context) OnFileCreated(ctx context.Context, relPath string) error {
	if isReservedPath(relPath) {
		return nil
	}
	c.mu.Lock()
	if !c.ready {
		c.queue = append(c.queue, queuedEvent{kind: eventCreate, path: relPath})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.createFile(ctx, relPath)
}

// OnFileDeleted soft-deletes the file at rel and drops its lexical and
// embedding rows, or queues the event if not yet ready.
func (c *Context) OnFileDeleted(ctx context.Context, relPath string) error {
	if isReservedPath(relPath) {
		return nil
	}
	c.mu.Lock()
	if !c.ready {
		c.queue = append(c.queue, queuedEvent{kind: eventDelete, path: relPath})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.deleteFile(ctx, relPath)
}

// OnFileMoved implements SPEC_FULL.md's supplemented "move = delete old +
// create new" rule: a rename/move is never treated as an in-place update,
// so a file's embeddings and lexical tokens are always rebuilt under its
// new name and path.
func (c *Context) OnFileMoved(ctx context.Context, oldRelPath, newRelPath string) error {
	c.mu.Lock()
	if !c.ready {
		c.queue = append(c.queue, queuedEvent{kind: eventMove, oldPath: oldRelPath, path: newRelPath})
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !isReservedPath(oldRelPath) {
		if err := c.deleteFile(ctx, oldRelPath); err != nil {
			return err
		}
	}
	if isReservedPath(newRelPath) {
		return nil
	}
	if _, err := os.Stat(filepath.Join(c.Root, newRelPath)); err != nil {
		// File vanished again between the move notification and this call;
		// the delete half above already reconciled the store.
		return nil
	}
	return c.createFile(ctx, newRelPath)
}

func (c *Context) applyEvent(ctx context.Context, ev queuedEvent) {
	var err error
	switch ev.kind {
	case eventCreate:
		err = c.createFile(ctx, ev.path)
	case eventDelete:
		err = c.deleteFile(ctx, ev.path)
	case eventMove:
		err = c.OnFileMoved(ctx, ev.oldPath, ev.path)
	}
	if err != nil {
		c.log.Warn("failed to apply queued file event", "path", ev.path, "error", err)
	}
}

// createFile indexes one new file end to end: insert row, run OCR/
// transcription if configured, lemmatize, and feed the lexical + embedding
// indices. Mutations are serialized under the write lock so a concurrent
// reader never observes a row without its matching index entries.
func (c *Context) createFile(ctx context.Context, relPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok, err := c.store.FindByRelPath(ctx, relPath); err != nil {
		return err
	} else if ok {
		// Already indexed (e.g. a duplicate fsnotify Create); treat as an
		// update of its text fields instead of inserting twice.
		return c.indexFile(ctx, existing)
	}

	if err := c.indexNewFile(ctx, relPath); err != nil {
		return err
	}
	f, ok, err := c.store.FindByRelPath(ctx, relPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("file %s vanished immediately after insert", relPath)
	}
	if err := c.indexFile(ctx, f); err != nil {
		return err
	}
	if c.thumbnails() != nil {
		c.thumbnails().OnFileCreated(ctx, relPath)
	}
	return nil
}

// indexFile runs text analysis, lemmatization, and embedding for f, which
// must already have a persisted row. Unlike Init's bulk reconciliation,
// this updates f's rows in the already-built calculators in place.
func (c *Context) indexFile(ctx context.Context, f model.File) error {
	if err := c.runTextAnalysis(ctx, []model.File{f}); err != nil {
		return err
	}
	f, ok, err := c.store.GetFile(ctx, f.ID)
	if err != nil || !ok {
		return err
	}
	if err := c.initLexical(ctx, []model.File{f}); err != nil {
		return err
	}

	imagePath := ""
	if f.Type == model.FileTypeImage {
		imagePath = filepath.Join(c.Root, f.RelPath)
	}
	var framePaths []string
	if f.Type == model.FileTypeVideo && c.deps.VideoProber != nil && !f.HasVideoEmbeddingFailed {
		var err error
		framePaths, err = c.sampleVideoFrames(ctx, f)
		if err != nil {
			c.log.Warn("video frame sampling failed", "file", f.Name, "error", err)
			f.HasVideoEmbeddingFailed = true
			if uerr := c.store.Update(ctx, f); uerr != nil {
				return uerr
			}
		}
		for _, p := range framePaths {
			defer os.Remove(p)
		}
	}
	return c.embeddings.OnFileChanged(ctx, f, imagePath, framePaths)
}

// deleteFile soft-deletes the row at relPath and removes it from every
// lexical and embedding index.
func (c *Context) deleteFile(ctx context.Context, relPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok, err := c.store.FindByRelPath(ctx, relPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := c.store.SoftDelete(ctx, f.ID); err != nil {
		return err
	}
	c.descLex.RemoveFile(f.ID)
	c.ocrLex.RemoveFile(f.ID)
	c.transLex.RemoveFile(f.ID)
	c.embeddings.OnFileDeleted(f.ID, f.Name)
	if c.thumbnails() != nil {
		c.thumbnails().OnFileDeleted(ctx, relPath)
	}
	return nil
}

func (c *Context) thumbnails() ThumbnailHook { return c.deps.Thumbnails }

// storeLookup adapts *filestore.Store to search.FileLookup.
type storeLookup struct{ s *filestore.Store }

func (l storeLookup) AllFiles(ctx context.Context) ([]model.File, error) { return l.s.AllFiles(ctx) }
func (l storeLookup) FindByName(ctx context.Context, name string) (model.File, bool, error) {
	return l.s.FindByName(ctx, name)
}
func (l storeLookup) GetFile(ctx context.Context, id model.FileID) (model.File, bool, error) {
	return l.s.GetFile(ctx, id)
}
func (l storeLookup) IsScreenshot(ctx context.Context, id model.FileID) (bool, error) {
	return l.s.IsScreenshot(ctx, id)
}

// reconcileFilesystem walks Root, skipping the engine's own persisted
// state, inserting rows for files not yet known and soft-deleting rows for
// files no longer present on disk.
func (c *Context) reconcileFilesystem(ctx context.Context) error {
	seen := make(map[string]bool)

	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(c.Root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if isReservedPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		seen[rel] = true

		if _, ok, findErr := c.store.FindByRelPath(ctx, rel); findErr != nil {
			return findErr
		} else if ok {
			return nil
		}
		return c.indexNewFile(ctx, rel)
	})
	if err != nil {
		return fmt.Errorf("walk directory %s: %w", c.Root, err)
	}

	existing, err := c.store.AllFiles(ctx)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if !seen[f.RelPath] {
			if err := c.store.SoftDelete(ctx, f.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func isReservedPath(rel string) bool {
	switch {
	case rel == "skonrad.db" || rel == "skonrad.db-journal":
		return true
	case rel == ".embeddings" || filepath.Dir(rel) == ".embeddings":
		return true
	case rel == ".thumbnails" || filepath.Dir(rel) == ".thumbnails":
		return true
	case rel == ".git" || rel == ".kfe.yaml" || rel == ".kfe.yml":
		return true
	}
	return false
}

// indexNewFile detects ftype for rel and inserts a fresh row. FileTypeOther
// rows are inserted too (so a later type change is observable) but never
// fed to the lexical/embedding pipelines, per spec.md §3's invariant.
func (c *Context) indexNewFile(ctx context.Context, rel string) error {
	ftype := model.FileTypeOther
	if c.deps.TypeDetector != nil {
		detected, err := c.deps.TypeDetector.DetectType(ctx, filepath.Join(c.Root, rel))
		if err != nil {
			c.log.Warn("type detection failed", "path", rel, "error", err)
		} else {
			ftype = model.FileType(detected)
		}
	}
	now := time.Now()
	_, err := c.store.Insert(ctx, model.File{
		Name:       filepath.Base(rel),
		RelPath:    rel,
		Type:       ftype,
		AddedAt:    now,
		ModifiedAt: now,
		IndexedAt:  now,
	})
	return err
}

// runTextAnalysis runs OCR over unanalyzed images and transcription over
// unanalyzed audio/video, applying spec.md §9's screenshot auto-description
// ("if OCR detects a screenshot and the description is empty, seed
// description with OCR text").
func (c *Context) runTextAnalysis(ctx context.Context, files []model.File) error {
	for _, f := range files {
		changed := false

		if f.Type == model.FileTypeImage && !f.IsOCRAnalyzed && c.deps.OCR != nil {
			text, isScreenshot, err := c.deps.OCR.Run(ctx, filepath.Join(c.Root, f.RelPath))
			if err != nil {
				c.log.Warn("ocr failed", "file", f.Name, "error", err)
				f.IsOCRAnalyzed = true // don't retry forever, per spec.md §7
			} else {
				f.OCRText = text
				f.IsOCRAnalyzed = true
				f.IsScreenshot = isScreenshot
				if isScreenshot && f.Description == "" {
					f.Description = text
				}
			}
			changed = true
		}

		if (f.Type == model.FileTypeAudio || f.Type == model.FileTypeVideo) && !f.IsTranscriptAnalyzed && c.deps.Transcriber != nil {
			text, err := c.deps.Transcriber.Transcribe(ctx, filepath.Join(c.Root, f.RelPath))
			if err != nil {
				c.log.Warn("transcription failed", "file", f.Name, "error", err)
				f.IsTranscriptAnalyzed = true
			} else {
				f.Transcript = text
				f.IsTranscriptAnalyzed = true
			}
			changed = true
		}

		if changed {
			f.IndexedAt = time.Now()
			if err := c.store.Update(ctx, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// initLexical is the §4.1 initializer: for each file and each of the three
// text dimensions, lemmatize missing lemmatized_* fields (persisting the
// joined result back to the row), then feed the reverse index and token
// stat counter from the (now guaranteed-present) lemmatized string.
func (c *Context) initLexical(ctx context.Context, files []model.File) error {
	for i := range files {
		f := files[i]
		if f.Type == model.FileTypeOther {
			continue
		}
		needsDesc, needsOCR, needsTrans := f.NeedsLemmatization()
		dirty := false

		if needsDesc {
			lemma, err := c.lemmatizeJoined(ctx, f.Description)
			if err != nil {
				return err
			}
			f.LemmatizedDescription = lemma
			dirty = true
		}
		if needsOCR {
			lemma, err := c.lemmatizeJoined(ctx, f.OCRText)
			if err != nil {
				return err
			}
			f.LemmatizedOCRText = lemma
			dirty = true
		}
		if needsTrans {
			lemma, err := c.lemmatizeJoined(ctx, f.Transcript)
			if err != nil {
				return err
			}
			f.LemmatizedTranscript = lemma
			dirty = true
		}
		if dirty {
			if err := c.store.Update(ctx, f); err != nil {
				return err
			}
		}

		if f.LemmatizedDescription != "" {
			if err := c.descLex.IndexText(ctx, f.ID, f.LemmatizedDescription); err != nil {
				return err
			}
		}
		if f.LemmatizedOCRText != "" {
			if err := c.ocrLex.IndexText(ctx, f.ID, f.LemmatizedOCRText); err != nil {
				return err
			}
		}
		if f.LemmatizedTranscript != "" {
			if err := c.transLex.IndexText(ctx, f.ID, f.LemmatizedTranscript); err != nil {
				return err
			}
		}
	}
	return nil
}

// lemmatizeJoined lemmatizes text and returns the resulting tokens
// whitespace-joined, matching the File row's cached lemmatized_*
// representation (spec.md §3).
func (c *Context) lemmatizeJoined(ctx context.Context, text string) (string, error) {
	return c.LemmatizeJoined(ctx, text)
}

// LemmatizeJoined lemmatizes text and returns the resulting tokens
// whitespace-joined, matching the File row's cached lemmatized_*
// representation. Exported for the metadata editor, which must recompute
// the same cache value a text edit leaves behind.
func (c *Context) LemmatizeJoined(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	tokens, err := c.lm.Lemmatize(ctx, text)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, " "), nil
}

// initImageEmbeddings embeds every image file that doesn't yet own both its
// plain image and CLIP-image rows. EmbeddingProcessor.Init only reconciles
// the text dimensions and replays whatever image/clip-image rows were
// already on disk, so a freshly registered directory's pre-existing images
// need this pass the same way initVideoEmbeddings covers video, per spec.md
// §4.4 init step 3 ("create all applicable vectors by file_type and text
// presence").
func (c *Context) initImageEmbeddings(ctx context.Context, files []model.File) error {
	providers := c.deps.EmbedProviders
	if providers.Image == nil && providers.Clip == nil {
		return nil
	}
	for _, f := range files {
		if f.Type != model.FileTypeImage {
			continue
		}
		needsImage := providers.Image != nil && !c.embeddings.HasImage(f.ID)
		needsClip := providers.Clip != nil && !c.embeddings.HasClipImage(f.ID)
		if !needsImage && !needsClip {
			continue
		}
		imagePath := filepath.Join(c.Root, f.RelPath)
		if err := c.embeddings.OnFileChanged(ctx, f, imagePath, nil); err != nil {
			c.log.Warn("image embedding failed", "file", f.Name, "error", err)
		}
	}
	return nil
}

// initVideoEmbeddings samples CLIP frames for every video that hasn't
// already failed and doesn't yet own a CLIP-video row, per spec.md §4.4.
func (c *Context) initVideoEmbeddings(ctx context.Context, files []model.File) error {
	if c.deps.VideoProber == nil {
		return nil
	}
	for _, f := range files {
		if f.Type != model.FileTypeVideo || f.HasVideoEmbeddingFailed {
			continue
		}
		if c.embeddings.HasClipVideo(f.ID) {
			continue
		}
		if err := c.sampleAndEmbedVideo(ctx, f); err != nil {
			c.log.Warn("video embedding failed", "file", f.Name, "error", err)
			f.HasVideoEmbeddingFailed = true
			if uerr := c.store.Update(ctx, f); uerr != nil {
				return uerr
			}
		}
	}
	return nil
}

func (c *Context) sampleAndEmbedVideo(ctx context.Context, f model.File) error {
	framePaths, err := c.sampleVideoFrames(ctx, f)
	for _, p := range framePaths {
		defer os.Remove(p)
	}
	if err != nil {
		return err
	}
	return c.embeddings.OnFileChanged(ctx, f, "", framePaths)
}

// sampleVideoFrames extracts VideoFrameCount evenly-spaced frames from f,
// per spec.md §4.4. The caller owns cleanup of the returned paths.
func (c *Context) sampleVideoFrames(ctx context.Context, f model.File) ([]string, error) {
	absPath := filepath.Join(c.Root, f.RelPath)
	duration, err := c.deps.VideoProber.DurationSeconds(ctx, absPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	n := c.deps.VideoFrameCount
	framePaths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		offset := time.Duration((2*float64(i) + 1) / (2 * float64(n)) * float64(duration))
		frame, err := c.deps.VideoProber.FrameAtOffset(ctx, absPath, offset)
		if err != nil {
			return framePaths, fmt.Errorf("extract frame at offset %s: %w", offset, err)
		}
		framePaths = append(framePaths, frame)
	}
	return framePaths, nil
}

// GitignoreMatcherForRoot returns a matcher seeded with ignore patterns
// consistent with isReservedPath above, exported so callers outside this
// package can reuse the reserved-path list. The watcher setup in cmd/kfe
// does not call it; the watcher seeds the same patterns itself.
func GitignoreMatcherForRoot() *gitignore.Matcher {
	m := gitignore.New()
	m.AddPattern(".embeddings/")
	m.AddPattern(".embeddings/**")
	m.AddPattern(".thumbnails/")
	m.AddPattern(".thumbnails/**")
	m.AddPattern("skonrad.db")
	m.AddPattern("skonrad.db-journal")
	return m
}
