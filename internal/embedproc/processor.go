// Package embedproc maintains the six embedding calculators a single
// directory's semantic search qualifiers run against (description, OCR
// text, transcript, image content, CLIP image, CLIP video) and keeps them
// consistent with their on-disk .emb sidecars. It is the Go counterpart of
// the original engine's EmbeddingProcessor, generalized from one
// text-embedding engine to the full set of embedding kinds a file can
// carry.
package embedproc

import (
	"context"
	"fmt"
	"math"

	"github.com/Fl0k3n/kfe/internal/embed"
	"github.com/Fl0k3n/kfe/internal/embedstore"
	"github.com/Fl0k3n/kfe/internal/model"
	"github.com/Fl0k3n/kfe/internal/similarity"
)

// Providers bundles the embedding backends a Processor drives. Any may be
// nil, in which case the corresponding kind is simply never populated —
// e.g. a directory with no CLIP provider configured just never answers
// @clip queries.
type Providers struct {
	Text  embed.TextEmbedder
	Image embed.ImageEmbedder
	Clip  embed.ClipEmbedder
}

// Processor owns one Calculator per single-row kind and a MultiCalculator
// for CLIP video frames, backed by a shared Persistor.
type Processor struct {
	persistor *embedstore.Persistor
	providers Providers

	description *similarity.Calculator
	ocr         *similarity.Calculator
	transcript  *similarity.Calculator
	image       *similarity.Calculator
	clipImage   *similarity.Calculator
	clipVideo   *similarity.MultiCalculator
}

// New constructs a Processor rooted at dir's .embeddings folder.
func New(dir string, providers Providers) (*Processor, error) {
	persistor, err := embedstore.NewPersistor(dir)
	if err != nil {
		return nil, fmt.Errorf("create embedding persistor: %w", err)
	}
	return &Processor{persistor: persistor, providers: providers}, nil
}

// expectedText returns the text expected to back each text-derived kind, used
// both to validate stored hashes and to (re)embed on mismatch.
func expectedText(f model.File) map[embedstore.Kind]string {
	return map[embedstore.Kind]string{
		embedstore.KindDescription: f.Description,
		embedstore.KindOCR:         f.OCRText,
		embedstore.KindTranscript:  f.Transcript,
	}
}

// Init reconciles every file's on-disk sidecar against its current text,
// building the six in-memory calculators. Stale entries are silently
// invalidated per embedstore.Load and re-embedded from the File's current
// text. Files present in .embeddings but no longer known to the caller are
// dropped. This mirrors EmbeddingProcessor.init_embeddings.
func (p *Processor) Init(ctx context.Context, files []model.File) error {
	byName := make(map[string]model.File, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}

	onDisk, err := p.persistor.AllEmbeddedFiles()
	if err != nil {
		return fmt.Errorf("list embedded files: %w", err)
	}

	descB := similarity.NewBuilder()
	ocrB := similarity.NewBuilder()
	transB := similarity.NewBuilder()
	imgB := similarity.NewBuilder()
	clipImgB := similarity.NewBuilder()
	clipVidB := similarity.NewMultiBuilder()

	seen := make(map[string]bool, len(onDisk))
	for _, name := range onDisk {
		seen[name] = true
		f, ok := byName[name]
		if !ok {
			_ = p.persistor.Delete(name)
			continue
		}
		stored := p.persistor.Load(name, expectedText(f))
		if err := p.reconcileOne(ctx, f, stored, descB, ocrB, transB, imgB, clipImgB, clipVidB); err != nil {
			return err
		}
	}

	for _, f := range files {
		if seen[f.Name] {
			continue
		}
		if err := p.reconcileOne(ctx, f, &embedstore.StoredEmbeddings{}, descB, ocrB, transB, imgB, clipImgB, clipVidB); err != nil {
			return err
		}
	}

	p.description = descB.Build()
	p.ocr = ocrB.Build()
	p.transcript = transB.Build()
	p.image = imgB.Build()
	p.clipImage = clipImgB.Build()
	p.clipVideo = clipVidB.Build()
	return nil
}

func (p *Processor) reconcileOne(ctx context.Context, f model.File, stored *embedstore.StoredEmbeddings,
	descB, ocrB, transB, imgB, clipImgB *similarity.Builder, clipVidB *similarity.MultiBuilder) error {

	toSave := &embedstore.StoredEmbeddings{Image: stored.Image, ClipImage: stored.ClipImage, ClipVideo: stored.ClipVideo}

	desc, err := p.resolveText(ctx, stored.Description, f.Description)
	if err != nil {
		return err
	}
	if desc != nil {
		toSave.Description = desc
		descB.AddRow(f.ID, desc.Embedding)
	}

	ocr, err := p.resolveText(ctx, stored.OCR, f.OCRText)
	if err != nil {
		return err
	}
	if ocr != nil {
		toSave.OCR = ocr
		ocrB.AddRow(f.ID, ocr.Embedding)
	}

	trans, err := p.resolveText(ctx, stored.Transcript, f.Transcript)
	if err != nil {
		return err
	}
	if trans != nil {
		toSave.Transcript = trans
		transB.AddRow(f.ID, trans.Embedding)
	}

	if stored.Image != nil {
		imgB.AddRow(f.ID, stored.Image)
	}
	if stored.ClipImage != nil {
		clipImgB.AddRow(f.ID, stored.ClipImage)
	}
	if len(stored.ClipVideo) > 0 {
		clipVidB.AddRows(f.ID, stored.ClipVideo)
	}

	return p.persistor.Save(f.Name, toSave)
}

// resolveText returns stored unchanged if it's already valid for text, or
// re-embeds text if stored is nil (missing/stale) and text is non-empty.
func (p *Processor) resolveText(ctx context.Context, stored *embedstore.TextComponent, text string) (*embedstore.TextComponent, error) {
	if stored != nil {
		return stored, nil
	}
	if text == "" || p.providers.Text == nil {
		return nil, nil
	}
	vec, err := p.providers.Text.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return &embedstore.TextComponent{SourceText: text, Embedding: vec}, nil
}

// OnFileChanged (re)computes every kind for f and persists + updates the
// in-memory calculators, covering both file-created and description/text
// edit flows — AddRow on an existing fileID replaces its row in place.
func (p *Processor) OnFileChanged(ctx context.Context, f model.File, imagePath string, videoFramePaths []string) error {
	current := p.persistor.Load(f.Name, expectedText(f))
	toSave := &embedstore.StoredEmbeddings{Image: current.Image, ClipImage: current.ClipImage, ClipVideo: current.ClipVideo}

	desc, err := p.resolveText(ctx, nilIfStale(current.Description, f.Description), f.Description)
	if err != nil {
		return err
	}
	toSave.Description = desc
	if desc != nil {
		p.description.AddRow(f.ID, desc.Embedding)
	} else {
		p.description.DeleteRow(f.ID)
	}

	ocr, err := p.resolveText(ctx, nilIfStale(current.OCR, f.OCRText), f.OCRText)
	if err != nil {
		return err
	}
	toSave.OCR = ocr
	if ocr != nil {
		p.ocr.AddRow(f.ID, ocr.Embedding)
	} else {
		p.ocr.DeleteRow(f.ID)
	}

	trans, err := p.resolveText(ctx, nilIfStale(current.Transcript, f.Transcript), f.Transcript)
	if err != nil {
		return err
	}
	toSave.Transcript = trans
	if trans != nil {
		p.transcript.AddRow(f.ID, trans.Embedding)
	} else {
		p.transcript.DeleteRow(f.ID)
	}

	if imagePath != "" && p.providers.Image != nil {
		vec, err := p.providers.Image.EmbedImage(ctx, imagePath)
		if err != nil {
			return fmt.Errorf("embed image: %w", err)
		}
		toSave.Image = vec
		p.image.AddRow(f.ID, vec)

		if p.providers.Clip != nil {
			clipVec, err := p.providers.Clip.EmbedImage(ctx, imagePath)
			if err != nil {
				return fmt.Errorf("embed clip image: %w", err)
			}
			toSave.ClipImage = clipVec
			p.clipImage.AddRow(f.ID, clipVec)
		}
	}

	if len(videoFramePaths) > 0 && p.providers.Clip != nil {
		frames, err := p.providers.Clip.EmbedVideoFrames(ctx, videoFramePaths)
		if err != nil {
			return fmt.Errorf("embed clip video frames: %w", err)
		}
		toSave.ClipVideo = frames
		p.clipVideo.ReplaceFile(f.ID, frames)
	}

	return p.persistor.Save(f.Name, toSave)
}

func nilIfStale(c *embedstore.TextComponent, expected string) *embedstore.TextComponent {
	if c == nil || c.SourceText != expected {
		return nil
	}
	return c
}

// HasClipVideo reports whether fileID already owns a CLIP-video row, used by
// DirectoryContext to decide whether a video still needs frame sampling.
func (p *Processor) HasClipVideo(fileID model.FileID) bool {
	return p.clipVideo.HasFile(fileID)
}

// HasImage reports whether fileID already owns a plain image-embedding row,
// used by DirectoryContext to decide whether an image still needs embedding
// at init time.
func (p *Processor) HasImage(fileID model.FileID) bool {
	_, ok := p.image.GetEmbedding(fileID)
	return ok
}

// HasClipImage reports whether fileID already owns a CLIP-image row, used
// by DirectoryContext alongside HasImage.
func (p *Processor) HasClipImage(fileID model.FileID) bool {
	_, ok := p.clipImage.GetEmbedding(fileID)
	return ok
}

// OnFileDeleted removes fileName's sidecar and purges every calculator row.
func (p *Processor) OnFileDeleted(fileID model.FileID, fileName string) error {
	p.description.DeleteRow(fileID)
	p.ocr.DeleteRow(fileID)
	p.transcript.DeleteRow(fileID)
	p.image.DeleteRow(fileID)
	p.clipImage.DeleteRow(fileID)
	p.clipVideo.DeleteFile(fileID)
	return p.persistor.Delete(fileName)
}

// searchText embeds query with the text provider and scores against calc.
func (p *Processor) searchText(ctx context.Context, calc *similarity.Calculator, query string, k int) ([]model.SearchResult, error) {
	if p.providers.Text == nil {
		return nil, fmt.Errorf("no text embedder configured")
	}
	vec, err := p.providers.Text.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return normalize(calc.ComputeSimilarity(vec, k)), nil
}

// SearchDescription finds files whose description embedding is closest to query.
func (p *Processor) SearchDescription(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	return p.searchText(ctx, p.description, query, k)
}

// SearchOCR finds files whose OCR-text embedding is closest to query.
func (p *Processor) SearchOCR(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	return p.searchText(ctx, p.ocr, query, k)
}

// SearchTranscript finds files whose transcript embedding is closest to query.
func (p *Processor) SearchTranscript(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	return p.searchText(ctx, p.transcript, query, k)
}

// SearchClip embeds query through the CLIP text tower and scores against
// both the CLIP image and CLIP video calculators, merging the two ranked
// lists by score. CLIP is an optional dimension (spec.md §4.5): a directory
// with no CLIP provider configured just never answers @clip, including as
// a silent branch of the default hybrid fusion — it does not fail the
// search.
func (p *Processor) SearchClip(ctx context.Context, query string, k int) ([]model.SearchResult, error) {
	if p.providers.Clip == nil {
		return nil, nil
	}
	vec, err := p.providers.Clip.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed clip query: %w", err)
	}
	imageResults := p.clipImage.ComputeSimilarity(vec, k)
	videoResults := p.clipVideo.ComputeSimilarity(vec, k)
	merged := mergeBestPerFile(imageResults, videoResults)
	return normalize(truncate(merged, k)), nil
}

// FindItemsWithSimilarDescriptions returns the files whose description
// embedding is closest to fileID's own stored one (spec.md §4.4). Since a
// vector's cosine similarity with itself is 1, fileID itself appears at or
// near rank 1.
func (p *Processor) FindItemsWithSimilarDescriptions(fileID model.FileID, k int) ([]model.SearchResult, error) {
	vec, ok := p.description.GetEmbedding(fileID)
	if !ok {
		return nil, fmt.Errorf("file %d has no description embedding", fileID)
	}
	return normalize(p.description.ComputeSimilarity(vec, k)), nil
}

// FindVisuallySimilarImages returns the files whose plain image embedding
// is closest to fileID's own stored one (spec.md §4.4).
func (p *Processor) FindVisuallySimilarImages(fileID model.FileID, k int) ([]model.SearchResult, error) {
	vec, ok := p.image.GetEmbedding(fileID)
	if !ok {
		return nil, fmt.Errorf("file %d has no image embedding", fileID)
	}
	return normalize(p.image.ComputeSimilarity(vec, k)), nil
}

// FindVisuallySimilarVideos returns the files whose CLIP-video frames are
// closest to fileID's own (spec.md §4.4). fileID's own sampled frames are
// averaged and renormalized into a single query vector, since a video
// contributes several rows rather than one; the video's own frames are the
// closest thing to that average, so it still surfaces at or near rank 1.
func (p *Processor) FindVisuallySimilarVideos(fileID model.FileID, k int) ([]model.SearchResult, error) {
	rows, ok := p.clipVideo.GetRows(fileID)
	if !ok {
		return nil, fmt.Errorf("file %d has no clip video embedding", fileID)
	}
	return normalize(p.clipVideo.ComputeSimilarity(meanVector(rows), k)), nil
}

// FindVisuallySimilarImagesToImage embeds an uploaded image on demand
// through the image embedder and returns the files whose image embedding
// is closest to it (spec.md §4.4's "closest to this uploaded image").
func (p *Processor) FindVisuallySimilarImagesToImage(ctx context.Context, imagePath string, k int) ([]model.SearchResult, error) {
	if p.providers.Image == nil {
		return nil, fmt.Errorf("no image embedder configured")
	}
	vec, err := p.providers.Image.EmbedImage(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	return normalize(p.image.ComputeSimilarity(vec, k)), nil
}

// meanVector averages rows component-wise and renormalizes the result to
// unit length, used to turn a video's several per-frame CLIP rows into one
// representative query vector.
func meanVector(rows []similarity.Vector) similarity.Vector {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	sum := make([]float64, dim)
	for _, r := range rows {
		for i, v := range r {
			sum[i] += float64(v)
		}
	}
	mean := make(similarity.Vector, dim)
	var norm float64
	for i, s := range sum {
		m := s / float64(len(rows))
		mean[i] = float32(m)
		norm += m * m
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range mean {
			mean[i] = float32(float64(mean[i]) / norm)
		}
	}
	return mean
}

func normalize(results []model.SearchResult) []model.SearchResult {
	out := make([]model.SearchResult, len(results))
	for i, r := range results {
		out[i] = model.SearchResult{FileID: r.FileID, Score: similarity.NormalizeCosine(r.Score)}
	}
	return out
}

func mergeBestPerFile(lists ...[]model.SearchResult) []model.SearchResult {
	best := make(map[model.FileID]float64)
	for _, list := range lists {
		for _, r := range list {
			if cur, ok := best[r.FileID]; !ok || r.Score > cur {
				best[r.FileID] = r.Score
			}
		}
	}
	out := make([]model.SearchResult, 0, len(best))
	for id, score := range best {
		out = append(out, model.SearchResult{FileID: id, Score: score})
	}
	sortResults(out)
	return out
}

func sortResults(r []model.SearchResult) {
	sortable := model.ByScoreDesc(r)
	for i := 1; i < len(sortable); i++ {
		for j := i; j > 0 && sortable.Less(j, j-1); j-- {
			sortable.Swap(j, j-1)
		}
	}
}

func truncate(r []model.SearchResult, k int) []model.SearchResult {
	if k > 0 && k < len(r) {
		return r[:k]
	}
	return r
}
