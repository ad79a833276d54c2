// Package embedstore persists per-file embeddings to content-addressed
// sidecar files under a directory's .embeddings/ folder, one file per
// indexed item, named after the file it describes with a .emb extension.
//
// The on-disk layout is a direct port of the original engine's embedding
// persistor: a one-byte ASCII digit giving the key length, the ASCII key
// itself (one letter per stored component, in a fixed order), then each
// component's payload back to back. Text-derived components (description,
// OCR, transcript) are hash-guarded: a SHA-256 digest of the source text
// precedes the vector so a stale embedding is detected and dropped instead
// of silently served after the underlying text changed. There is no
// off-the-shelf Go library for this exact bespoke record format in the
// example pack, so the codec is hand-rolled on top of encoding/binary —
// see DESIGN.md.
package embedstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind identifies one stored embedding component. The ASCII letter is the
// on-disk tag written into a file's key string.
type Kind byte

const (
	KindDescription Kind = 'D'
	KindOCR         Kind = 'O'
	KindTranscript  Kind = 'T'
	KindImage       Kind = 'I'
	KindClipImage   Kind = 'C'
	KindClipVideo   Kind = 'V'
)

// kindOrder is the fixed serialization order; StoredEmbeddings.Key always
// produces a subsequence of it.
var kindOrder = []Kind{KindDescription, KindOCR, KindTranscript, KindImage, KindClipImage, KindClipVideo}

const hashLength = 32
const embeddingFileExtension = ".emb"

func isTextKind(k Kind) bool {
	return k == KindDescription || k == KindOCR || k == KindTranscript
}

// TextComponent is a hash-guarded embedding derived from source text.
type TextComponent struct {
	SourceText string
	Embedding  []float32
}

// StoredEmbeddings is every embedding kind a single file may own. Multi-row
// kinds (ClipVideo) store one vector per sampled frame.
type StoredEmbeddings struct {
	Description *TextComponent
	OCR         *TextComponent
	Transcript  *TextComponent
	Image       []float32
	ClipImage   []float32
	ClipVideo   [][]float32
}

// Key returns the ASCII key string describing which components are
// populated, in kindOrder.
func (s *StoredEmbeddings) Key() string {
	var buf bytes.Buffer
	if s.Description != nil && s.Description.Embedding != nil {
		buf.WriteByte(byte(KindDescription))
	}
	if s.OCR != nil && s.OCR.Embedding != nil {
		buf.WriteByte(byte(KindOCR))
	}
	if s.Transcript != nil && s.Transcript.Embedding != nil {
		buf.WriteByte(byte(KindTranscript))
	}
	if s.Image != nil {
		buf.WriteByte(byte(KindImage))
	}
	if s.ClipImage != nil {
		buf.WriteByte(byte(KindClipImage))
	}
	if len(s.ClipVideo) > 0 {
		buf.WriteByte(byte(KindClipVideo))
	}
	return buf.String()
}

// Persistor reads and writes .emb sidecar files under root/.embeddings.
type Persistor struct {
	dir string
}

// NewPersistor ensures root/.embeddings exists and returns a Persistor
// rooted there.
func NewPersistor(root string) (*Persistor, error) {
	dir := filepath.Join(root, ".embeddings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create embeddings dir: %w", err)
	}
	return &Persistor{dir: dir}, nil
}

// Dir returns the .embeddings directory path.
func (p *Persistor) Dir() string { return p.dir }

func (p *Persistor) path(fileName string) string {
	return filepath.Join(p.dir, fileName+embeddingFileExtension)
}

// Save writes embeddings for fileName, or deletes any existing sidecar if
// embeddings is empty (no populated component).
func (p *Persistor) Save(fileName string, embeddings *StoredEmbeddings) error {
	key := embeddings.Key()
	if key == "" {
		return p.deleteIfExists(fileName)
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%d", len(key)))
	buf.WriteString(key)
	for _, k := range kindOrder {
		if !bytes.ContainsRune([]byte(key), rune(k)) {
			continue
		}
		if err := writeComponent(&buf, k, embeddings); err != nil {
			return err
		}
	}
	return os.WriteFile(p.path(fileName), buf.Bytes(), 0644)
}

// Load reads fileName's sidecar and validates every text component's hash
// against expectedText (keyed by kind). Components whose hash no longer
// matches are dropped individually rather than failing the whole load,
// mirroring the original persistor's per-component invalidation. A
// missing or corrupt file yields an empty StoredEmbeddings (Load returns
// no error) — the caller is expected to treat that the same as "never
// embedded" and re-embed.
func (p *Persistor) Load(fileName string, expectedText map[Kind]string) *StoredEmbeddings {
	data, err := os.ReadFile(p.path(fileName))
	if err != nil {
		return &StoredEmbeddings{}
	}
	res, err := decode(data, expectedText)
	if err != nil {
		return &StoredEmbeddings{}
	}
	return res
}

func (p *Persistor) deleteIfExists(fileName string) error {
	err := os.Remove(p.path(fileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Delete removes fileName's sidecar, if any.
func (p *Persistor) Delete(fileName string) error {
	return p.deleteIfExists(fileName)
}

// AllEmbeddedFiles lists the logical file names with a sidecar present
// (the .emb extension stripped).
func (p *Persistor) AllEmbeddedFiles() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) == embeddingFileExtension {
			names = append(names, name[:len(name)-len(embeddingFileExtension)])
		}
	}
	return names, nil
}

func hashText(text string) [hashLength]byte {
	return sha256.Sum256([]byte(text))
}

func writeComponent(buf *bytes.Buffer, k Kind, s *StoredEmbeddings) error {
	switch k {
	case KindDescription:
		return writeTextComponent(buf, s.Description)
	case KindOCR:
		return writeTextComponent(buf, s.OCR)
	case KindTranscript:
		return writeTextComponent(buf, s.Transcript)
	case KindImage:
		return writeVector(buf, s.Image)
	case KindClipImage:
		return writeVector(buf, s.ClipImage)
	case KindClipVideo:
		return writeMultiVector(buf, s.ClipVideo)
	default:
		return fmt.Errorf("unknown embedding kind %q", k)
	}
}

func writeTextComponent(buf *bytes.Buffer, c *TextComponent) error {
	if c == nil {
		return fmt.Errorf("text component missing for key entry")
	}
	h := hashText(c.SourceText)
	buf.Write(h[:])
	return writeVector(buf, c.Embedding)
}

func writeVector(buf *bytes.Buffer, v []float32) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(v))); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, v)
}

func writeMultiVector(buf *bytes.Buffer, vs [][]float32) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeVector(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func readVector(r io.Reader) ([]float32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	v := make([]float32, n)
	if n > 0 {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func readMultiVector(r io.Reader) ([][]float32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	vs := make([][]float32, n)
	for i := range vs {
		v, err := readVector(r)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func decode(data []byte, expectedText map[Kind]string) (*StoredEmbeddings, error) {
	r := bytes.NewReader(data)
	keyLenByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	keyLen := int(keyLenByte - '0')
	if keyLen < 0 || keyLen > len(kindOrder) {
		return nil, fmt.Errorf("invalid embedding key length %d", keyLen)
	}
	keyBuf := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyBuf); err != nil {
		return nil, err
	}

	res := &StoredEmbeddings{}
	for _, k := range keyBuf {
		kind := Kind(k)
		if err := readComponent(r, kind, res, expectedText); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func readComponent(r io.Reader, k Kind, res *StoredEmbeddings, expectedText map[Kind]string) error {
	if isTextKind(k) {
		var hash [hashLength]byte
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return err
		}
		v, err := readVector(r)
		if err != nil {
			return err
		}
		text := expectedText[k]
		if hashText(text) != hash {
			return nil // hash mismatch: drop this component, not the whole record
		}
		comp := &TextComponent{SourceText: text, Embedding: v}
		switch k {
		case KindDescription:
			res.Description = comp
		case KindOCR:
			res.OCR = comp
		case KindTranscript:
			res.Transcript = comp
		}
		return nil
	}

	switch k {
	case KindImage:
		v, err := readVector(r)
		if err != nil {
			return err
		}
		res.Image = v
	case KindClipImage:
		v, err := readVector(r)
		if err != nil {
			return err
		}
		res.ClipImage = v
	case KindClipVideo:
		vs, err := readMultiVector(r)
		if err != nil {
			return err
		}
		res.ClipVideo = vs
	default:
		return fmt.Errorf("unknown embedding kind byte %q", k)
	}
	return nil
}
