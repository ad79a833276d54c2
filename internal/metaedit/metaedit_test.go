package metaedit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fl0k3n/kfe/internal/config"
	"github.com/Fl0k3n/kfe/internal/directory"
	"github.com/Fl0k3n/kfe/internal/embed"
	"github.com/Fl0k3n/kfe/internal/embedproc"
	"github.com/Fl0k3n/kfe/internal/model"
)

func newTestContext(t *testing.T) *directory.Context {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.png"), []byte("fake"), 0644))

	cfg := config.NewConfig()
	dirCtx, err := directory.New("photos", root, directory.Dependencies{
		EmbedProviders: embedproc.Providers{Text: embed.NewStaticTextEmbedder()},
		Search:         cfg.Search,
	})
	require.NoError(t, err)
	t.Cleanup(func() { dirCtx.Close() })

	require.NoError(t, dirCtx.Init(context.Background()))
	return dirCtx
}

func fileByName(t *testing.T, dirCtx *directory.Context, name string) model.File {
	t.Helper()
	f, ok, err := dirCtx.Store().FindByName(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	return f
}

func TestApplyDescriptionEditUpdatesRowAndLemma(t *testing.T) {
	dirCtx := newTestContext(t)
	f := fileByName(t, dirCtx, "photo.png")

	editor := New(dirCtx)
	require.NoError(t, editor.Apply(context.Background(), f.ID, FieldDescription, "a red bicycle"))

	got := fileByName(t, dirCtx, "photo.png")
	require.Equal(t, "a red bicycle", got.Description)
	require.NotEmpty(t, got.LemmatizedDescription)
}

func TestApplyEmptyTextClearsLemma(t *testing.T) {
	dirCtx := newTestContext(t)
	f := fileByName(t, dirCtx, "photo.png")

	editor := New(dirCtx)
	require.NoError(t, editor.Apply(context.Background(), f.ID, FieldDescription, "a red bicycle"))
	require.NoError(t, editor.Apply(context.Background(), f.ID, FieldDescription, ""))

	got := fileByName(t, dirCtx, "photo.png")
	require.Empty(t, got.Description)
	require.Empty(t, got.LemmatizedDescription)
}

func TestApplyOCRTextEdit(t *testing.T) {
	dirCtx := newTestContext(t)
	f := fileByName(t, dirCtx, "photo.png")

	editor := New(dirCtx)
	require.NoError(t, editor.Apply(context.Background(), f.ID, FieldOCRText, "submit button text"))

	got := fileByName(t, dirCtx, "photo.png")
	require.Equal(t, "submit button text", got.OCRText)
	require.NotEmpty(t, got.LemmatizedOCRText)
}
