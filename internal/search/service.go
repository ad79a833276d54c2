package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Fl0k3n/kfe/internal/config"
	"github.com/Fl0k3n/kfe/internal/embedproc"
	"github.com/Fl0k3n/kfe/internal/lexical"
	"github.com/Fl0k3n/kfe/internal/model"
)

// FileLookup is the slice of a directory's metadata store SearchService
// needs: enumerating files for empty-query and exact-name-match dispatch,
// and classifying a result for qualifier filtering.
type FileLookup interface {
	AllFiles(ctx context.Context) ([]model.File, error)
	FindByName(ctx context.Context, name string) (model.File, bool, error)
	GetFile(ctx context.Context, id model.FileID) (model.File, bool, error)
	IsScreenshot(ctx context.Context, id model.FileID) (bool, error)
}

// Engines bundles a directory's three lexical indices, one per text
// source, plus its embedding processor for every semantic/CLIP branch.
type Engines struct {
	DescriptionLexical *lexical.Engine
	OCRLexical         *lexical.Engine
	TranscriptLexical  *lexical.Engine
	Embeddings         *embedproc.Processor
}

// Service orchestrates one directory's search surface: qualifier parsing,
// per-dimension dispatch, fan-out, fusion, filtering, and pagination.
// Grounded on SearchService's description in the engine design, since the
// original Python codebase this was distilled from routes to a smaller
// four-qualifier subset (query_parser.py) — this type generalizes that
// routing table to the fuller qualifier/metric surface.
type Service struct {
	engines Engines
	files   FileLookup
	cfg     config.SearchConfig
}

// New builds a Service for one directory.
func New(engines Engines, files FileLookup, cfg config.SearchConfig) *Service {
	return &Service{engines: engines, files: files, cfg: cfg}
}

// Search parses rawQuery, dispatches it, filters by qualifier-derived
// criteria, and returns the requested page plus the total match count.
func (s *Service) Search(ctx context.Context, rawQuery string, offset, limit int) ([]model.SearchResult, int, error) {
	pq := Parse(rawQuery)

	results, err := s.dispatch(ctx, pq)
	if err != nil {
		return nil, 0, err
	}

	filtered, err := s.filter(ctx, results, pq)
	if err != nil {
		return nil, 0, err
	}

	total := len(filtered)
	if offset >= total {
		return []model.SearchResult{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (s *Service) dispatch(ctx context.Context, pq ParsedQuery) ([]model.SearchResult, error) {
	if pq.Text == "" {
		return s.allFilesAsMatches(ctx)
	}
	if f, ok, err := s.files.FindByName(ctx, pq.Text); err != nil {
		return nil, err
	} else if ok {
		return []model.SearchResult{{FileID: f.ID, Score: 1}}, nil
	}

	switch pq.Metric {
	case MetricDescriptionLexical:
		return s.engines.DescriptionLexical.Search(ctx, pq.Text)
	case MetricDescriptionSemantic:
		return s.engines.Embeddings.SearchDescription(ctx, pq.Text, 0)
	case MetricOCRLexical:
		return s.engines.OCRLexical.Search(ctx, pq.Text)
	case MetricOCRSemantic:
		return s.engines.Embeddings.SearchOCR(ctx, pq.Text, 0)
	case MetricTranscriptLexical:
		return s.engines.TranscriptLexical.Search(ctx, pq.Text)
	case MetricTranscriptSemantic:
		return s.engines.Embeddings.SearchTranscript(ctx, pq.Text, 0)
	case MetricClip:
		return s.engines.Embeddings.SearchClip(ctx, pq.Text, 0)
	case MetricCombinedLexical:
		return s.combinedLexical(ctx, pq.Text)
	case MetricCombinedSemantic:
		return s.combinedSemantic(ctx, pq.Text)
	case MetricHybrid:
		return s.hybrid(ctx, pq.Text)
	default:
		return nil, fmt.Errorf("unknown search metric %d", pq.Metric)
	}
}

// fanOut runs every branch concurrently via errgroup, grounded on how the
// rest of this codebase parallelizes independent I/O-bound work.
func fanOut(ctx context.Context, branches ...func(ctx context.Context) ([]model.SearchResult, error)) ([][]model.SearchResult, error) {
	results := make([][]model.SearchResult, len(branches))
	g, gctx := errgroup.WithContext(ctx)
	for i, branch := range branches {
		i, branch := i, branch
		g.Go(func() error {
			r, err := branch(gctx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) combinedLexical(ctx context.Context, text string) ([]model.SearchResult, error) {
	lists, err := fanOut(ctx,
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.DescriptionLexical.Search(ctx, text) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.OCRLexical.Search(ctx, text) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.TranscriptLexical.Search(ctx, text) },
	)
	if err != nil {
		return nil, err
	}
	weights := s.cfg.TextSourceWeights[:]
	validateWeights(weights)
	return WeightedSum(lists, weights), nil
}

func (s *Service) combinedSemantic(ctx context.Context, text string) ([]model.SearchResult, error) {
	lists, err := fanOut(ctx,
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.Embeddings.SearchDescription(ctx, text, 0) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.Embeddings.SearchOCR(ctx, text, 0) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.Embeddings.SearchTranscript(ctx, text, 0) },
	)
	if err != nil {
		return nil, err
	}
	weights := s.cfg.TextSourceWeights[:]
	validateWeights(weights)
	return WeightedSum(lists, weights), nil
}

func (s *Service) hybrid(ctx context.Context, text string) ([]model.SearchResult, error) {
	lists, err := fanOut(ctx,
		func(ctx context.Context) ([]model.SearchResult, error) { return s.combinedLexical(ctx, text) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.combinedSemantic(ctx, text) },
		func(ctx context.Context) ([]model.SearchResult, error) { return s.engines.Embeddings.SearchClip(ctx, text, 0) },
	)
	if err != nil {
		return nil, err
	}
	return ReciprocalRankFusion(lists, s.cfg.HybridWeights[:], s.cfg.RRFConstant), nil
}

func (s *Service) allFilesAsMatches(ctx context.Context) ([]model.SearchResult, error) {
	files, err := s.files.AllFiles(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, len(files))
	for i, f := range files {
		results[i] = model.SearchResult{FileID: f.ID, Score: 1}
	}
	return results, nil
}

func (s *Service) filter(ctx context.Context, results []model.SearchResult, pq ParsedQuery) ([]model.SearchResult, error) {
	if !pq.HasFileType && !pq.OnlyScreenshot && !pq.NoScreenshots {
		return results, nil
	}
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		f, ok, err := s.files.GetFile(ctx, r.FileID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if pq.HasFileType && f.Type != pq.FileType {
			continue
		}
		if pq.OnlyScreenshot || pq.NoScreenshots {
			isShot, err := s.files.IsScreenshot(ctx, r.FileID)
			if err != nil {
				return nil, err
			}
			if pq.OnlyScreenshot && !isShot {
				continue
			}
			if pq.NoScreenshots && isShot {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}
