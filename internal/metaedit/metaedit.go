// Package metaedit implements spec.md §4.7's MetadataEditor: a transactional
// edit to one of a file's three text fields (description, OCR text,
// transcript) that keeps the lexical reverse index, token statistics, and
// embedding rows in lockstep with the new text.
package metaedit

import (
	"context"
	"fmt"

	"github.com/Fl0k3n/kfe/internal/directory"
	"github.com/Fl0k3n/kfe/internal/model"
)

// Field identifies which of the three text dimensions an edit targets.
type Field int

const (
	FieldDescription Field = iota
	FieldOCRText
	FieldTranscript
)

// Editor applies metadata edits for one directory. It expects exclusive
// use of the directory's write lock for the duration of Apply, matching
// spec.md §4.7's "edits must be serialized per file" requirement.
type Editor struct {
	ctx *directory.Context
}

// New returns an Editor bound to dirCtx.
func New(dirCtx *directory.Context) *Editor {
	return &Editor{ctx: dirCtx}
}

// Apply replaces fileID's field with newText, following spec.md §4.7's
// five-step sequence: unregister old tokens, register new ones (or clear
// the lemmatized cache if newText is empty), update the embedding row, and
// persist the row. The whole sequence runs under the directory's write
// lock.
func (e *Editor) Apply(ctx context.Context, fileID model.FileID, field Field, newText string) error {
	e.ctx.Lock()
	defer e.ctx.Unlock()

	store := e.ctx.Store()
	f, ok, err := store.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load file %d: %w", fileID, err)
	}
	if !ok {
		return fmt.Errorf("file %d not found", fileID)
	}

	lex := e.ctx.LexicalEngine(toTextKind(field))
	if lex == nil {
		return fmt.Errorf("unknown metadata field %d", field)
	}

	switch field {
	case FieldDescription:
		f.Description = newText
	case FieldOCRText:
		f.OCRText = newText
	case FieldTranscript:
		f.Transcript = newText
	default:
		return fmt.Errorf("unknown metadata field %d", field)
	}

	if newText == "" {
		lex.RemoveFile(fileID)
		clearLemma(&f, field)
	} else {
		if err := lex.ReindexText(ctx, fileID, newText); err != nil {
			return fmt.Errorf("reindex %v for file %d: %w", field, fileID, err)
		}
		lemma, err := e.ctx.LemmatizeJoined(ctx, newText)
		if err != nil {
			return fmt.Errorf("compute lemma cache for file %d: %w", fileID, err)
		}
		setLemma(&f, field, lemma)
	}

	// Text edits never change the underlying image/video, so the image,
	// CLIP-image, and CLIP-video embeddings are left untouched; passing an
	// empty imagePath and nil frames tells OnFileChanged to only refresh
	// the three text-derived embeddings.
	if err := e.ctx.Embeddings().OnFileChanged(ctx, f, "", nil); err != nil {
		return fmt.Errorf("update embedding for file %d: %w", fileID, err)
	}

	if err := store.Update(ctx, f); err != nil {
		return fmt.Errorf("persist file %d: %w", fileID, err)
	}
	return nil
}

func toTextKind(field Field) directory.TextKind {
	switch field {
	case FieldDescription:
		return directory.TextKindDescription
	case FieldOCRText:
		return directory.TextKindOCR
	case FieldTranscript:
		return directory.TextKindTranscript
	default:
		return directory.TextKindDescription
	}
}

func clearLemma(f *model.File, field Field) {
	switch field {
	case FieldDescription:
		f.LemmatizedDescription = ""
	case FieldOCRText:
		f.LemmatizedOCRText = ""
	case FieldTranscript:
		f.LemmatizedTranscript = ""
	}
}

func setLemma(f *model.File, field Field, lemma string) {
	switch field {
	case FieldDescription:
		f.LemmatizedDescription = lemma
	case FieldOCRText:
		f.LemmatizedOCRText = lemma
	case FieldTranscript:
		f.LemmatizedTranscript = lemma
	}
}
