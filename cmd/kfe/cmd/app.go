package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Fl0k3n/kfe/internal/config"
	"github.com/Fl0k3n/kfe/internal/directory"
	"github.com/Fl0k3n/kfe/internal/embed"
	"github.com/Fl0k3n/kfe/internal/embedproc"
	"github.com/Fl0k3n/kfe/internal/filetype"
	"github.com/Fl0k3n/kfe/internal/lemmatizer"
	"github.com/Fl0k3n/kfe/internal/lifecycle"
	"github.com/Fl0k3n/kfe/internal/model"
	"github.com/Fl0k3n/kfe/internal/modelmanager"
)

// app bundles the process-wide collaborators every subcommand needs:
// config, a shared model manager, and the registry of per-directory
// contexts it builds. The ModelManager and the shared catalog are
// process-wide and passed in explicitly, never embedded in transient
// objects.
type app struct {
	cfg      *config.Config
	catalog  string // directory holding the shared registry catalog db
	models   *modelmanager.Manager
	registry *directory.Registry
	log      *slog.Logger
}

// catalogDir returns the process-wide directory holding the shared
// registry catalog (the "directories" table of spec.md §6) and the
// model-download lock, following the same XDG-first convention as
// config.GetUserConfigPath.
func catalogDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "kfe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kfe")
	}
	return filepath.Join(home, ".local", "state", "kfe")
}

// newApp loads configuration rooted at dir, ensures an Ollama-backed text
// embedder is reachable when configured (spec.md §5's lazy ModelManager
// acquisition, fronted here by lifecycle.OllamaManager.EnsureReady so a
// first-run user doesn't have to start Ollama by hand), and returns an app
// ready to register/search/edit directories.
func newApp(ctx context.Context, dir string, log *slog.Logger) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	catalog := catalogDir()
	if err := os.MkdirAll(catalog, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	models := modelmanager.New(cfg.Models, catalog)
	registerProviders(models, cfg, log)

	if cfg.Embeddings.Provider == "ollama" {
		if err := ensureOllamaReady(ctx, cfg, log); err != nil {
			log.Warn("ollama not ready, falling back to static embeddings for this run", "error", err)
			cfg.Embeddings.Provider = "static"
		}
	}

	a := &app{cfg: cfg, catalog: catalog, models: models, log: log}

	registry, err := directory.NewRegistry(catalog, a.contextFactory, log)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	a.registry = registry
	return a, nil
}

// ensureOllamaReady starts a local Ollama server (if installed but not
// running) and pulls the configured text model, per
// lifecycle.OllamaManager.EnsureReady / spec.md §5's model-lifecycle
// framing ("model instantiated on first get").
func ensureOllamaReady(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	host := cfg.Embeddings.OllamaHost
	var mgr *lifecycle.OllamaManager
	if host != "" {
		mgr = lifecycle.NewOllamaManagerWithHost(host)
	} else {
		mgr = lifecycle.NewOllamaManager()
	}
	opts := lifecycle.DefaultEnsureOpts()
	if err := mgr.EnsureReady(ctx, cfg.Embeddings.TextModel, opts); err != nil {
		return err
	}
	log.Info("ollama ready", "host", mgr.Host(), "model", cfg.Embeddings.TextModel)
	return nil
}

// registerProviders installs the Factory for each ModelKind this CLI can
// serve, per internal/modelmanager's ModelKind-tagged provider table.
func registerProviders(models *modelmanager.Manager, cfg *config.Config, log *slog.Logger) {
	models.RegisterLemmatizer(lemmatizer.NewStemmingLemmatizer())

	models.Register(model.ModelKindTextEmbedding, modelmanager.TextEmbedderFactory(
		func(ctx context.Context) (embed.TextEmbedder, error) {
			if cfg.Embeddings.Provider != "ollama" {
				return embed.NewStaticTextEmbedder(), nil
			}
			base, err := embed.NewOllamaTextEmbedder(ctx, embed.OllamaConfig{
				Host:      cfg.Embeddings.OllamaHost,
				Model:     cfg.Embeddings.TextModel,
				BatchSize: cfg.Embeddings.BatchSize,
			})
			if err != nil {
				log.Warn("ollama text embedder unavailable, using static embedder", "error", err)
				return embed.NewStaticTextEmbedder(), nil
			}
			cached, err := embed.NewCachedTextEmbedder(base, cfg.Performance.EmbeddingCacheSize)
			if err != nil {
				return base, nil
			}
			return cached, nil
		}))

	models.Register(model.ModelKindImageEmbedding, modelmanager.ImageEmbedderFactory(
		func(ctx context.Context) (embed.ImageEmbedder, error) {
			return embed.NewStaticImageEmbedder(), nil
		}))

	models.Register(model.ModelKindClip, modelmanager.ClipEmbedderFactory(
		func(ctx context.Context) (embed.ClipEmbedder, error) {
			return embed.NewStaticClipEmbedder(), nil
		}))
}

// contextFactory builds a directory.Context for a newly registered
// directory, wiring the shared ModelManager's providers and the
// stdlib-MIME-sniff FileTypeDetector. OCR/transcription/video-probe/
// thumbnail collaborators are left nil: they are external workers per
// spec.md §6 that this CLI does not itself implement, so a registered
// directory simply never populates OCR text or transcripts until a real
// worker is wired in.
func (a *app) contextFactory(name, root string) (*directory.Context, error) {
	ctx := context.Background()

	lm, err := a.models.AcquireLemmatizer(ctx)
	if err != nil {
		return nil, err
	}
	textEmb, err := a.models.AcquireTextEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	imgEmb, err := a.models.AcquireImageEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	clipEmb, err := a.models.AcquireClipEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	deps := directory.Dependencies{
		Lemmatizer: lm,
		EmbedProviders: embedproc.Providers{
			Text:  textEmb,
			Image: imgEmb,
			Clip:  clipEmb,
		},
		TypeDetector: filetype.New(nil),
		Search:       a.cfg.Search,
		Logger:       a.log,
	}
	return directory.New(name, root, deps)
}

// Close releases the process-wide model manager. Individual directory
// Contexts are closed by the Registry.
func (a *app) Close() error {
	return a.models.Close()
}
