package filetype

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fl0k3n/kfe/internal/directory"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	// A minimal valid PNG header is enough for http.DetectContentType to
	// sniff "image/png".
	header := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, header, 0o644))
	return path
}

func TestDetectTypeImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "shot.png")

	d := New(nil)
	ft, err := d.DetectType(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, directory.TypeImage, ft)
}

func TestDetectTypeOtherForPlainBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0x03}, 0o644))

	d := New(nil)
	ft, err := d.DetectType(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, directory.TypeOther, ft)
}

func TestDetectTypeDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text notes about a file"), 0o644))

	d := New(nil)
	ft, err := d.DetectType(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, directory.TypeDocument, ft)
}

type fakeStreamProber struct {
	hasVideo bool
}

func (f fakeStreamProber) HasVideoStream(context.Context, string) (bool, error) {
	return f.hasVideo, nil
}

func TestDetectTypeVideoDowngradedToAudioWithoutVideoStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.webm")
	// WebM/Matroska magic bytes, enough for net/http to sniff "video/webm".
	require.NoError(t, os.WriteFile(path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 0o644))

	d := New(fakeStreamProber{hasVideo: false})
	ft, err := d.DetectType(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, directory.TypeAudio, ft)
}

func TestDetectTypeVideoKeptWhenStreamPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.webm")
	require.NoError(t, os.WriteFile(path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 0o644))

	d := New(fakeStreamProber{hasVideo: true})
	ft, err := d.DetectType(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, directory.TypeVideo, ft)
}

func TestDetectTypeMissingFile(t *testing.T) {
	d := New(nil)
	_, err := d.DetectType(context.Background(), "/no/such/file")
	assert.Error(t, err)
}
