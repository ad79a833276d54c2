package embedstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	p, err := NewPersistor(t.TempDir())
	require.NoError(t, err)

	emb := &StoredEmbeddings{
		Description: &TextComponent{SourceText: "a red bicycle", Embedding: []float32{0.1, 0.2, 0.3}},
		Image:       []float32{1, 2, 3, 4},
		ClipVideo:   [][]float32{{1, 0}, {0, 1}},
	}
	require.NoError(t, p.Save("bike.jpg", emb))

	loaded := p.Load("bike.jpg", map[Kind]string{KindDescription: "a red bicycle"})
	require.NotNil(t, loaded.Description)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, loaded.Description.Embedding)
	assert.Equal(t, []float32{1, 2, 3, 4}, loaded.Image)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, loaded.ClipVideo)
}

func TestLoadDropsComponentOnHashMismatch(t *testing.T) {
	p, err := NewPersistor(t.TempDir())
	require.NoError(t, err)

	emb := &StoredEmbeddings{
		Description: &TextComponent{SourceText: "original text", Embedding: []float32{0.5}},
	}
	require.NoError(t, p.Save("doc.txt", emb))

	loaded := p.Load("doc.txt", map[Kind]string{KindDescription: "changed text"})
	assert.Nil(t, loaded.Description)
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	p, err := NewPersistor(t.TempDir())
	require.NoError(t, err)

	loaded := p.Load("nope.txt", nil)
	assert.Equal(t, "", loaded.Key())
}

func TestSaveEmptyEmbeddingsDeletesSidecar(t *testing.T) {
	p, err := NewPersistor(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, p.Save("x.txt", &StoredEmbeddings{Description: &TextComponent{SourceText: "t", Embedding: []float32{1}}}))
	require.NoError(t, p.Save("x.txt", &StoredEmbeddings{}))

	loaded := p.Load("x.txt", nil)
	assert.Equal(t, "", loaded.Key())
}

func TestAllEmbeddedFiles(t *testing.T) {
	p, err := NewPersistor(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, p.Save("a.jpg", &StoredEmbeddings{Image: []float32{1}}))
	require.NoError(t, p.Save("b.jpg", &StoredEmbeddings{Image: []float32{2}}))

	names, err := p.AllEmbeddedFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
}
