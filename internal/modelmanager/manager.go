// Package modelmanager lazily loads and refcounts the ML capabilities the
// engine depends on (OCR, transcription, text/image/CLIP embedding,
// lemmatization, vision-language captioning), tagged by model.ModelKind.
// A provider is instantiated on first acquire and released only after its
// refcount drops to zero AND a grace period elapses with no further
// acquire, so a burst of per-file indexing work doesn't thrash providers
// that are expensive to spin up (a remote model server, a download lock).
//
// Concrete OCR/transcription/vision-LM providers are out of scope here —
// those are external collaborators per the engine's boundary — so this
// package manages the two kinds it can fully own (lemmatizer, text
// embedding) plus slots for the rest, wired through the same table so a
// caller never has to know which kind is locally implemented.
package modelmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fl0k3n/kfe/internal/config"
	"github.com/Fl0k3n/kfe/internal/embed"
	"github.com/Fl0k3n/kfe/internal/lemmatizer"
	"github.com/Fl0k3n/kfe/internal/model"
)

// Provider is any closeable model resource the manager can hold a
// refcounted handle to.
type Provider interface {
	Close() error
}

// Factory constructs a Provider for a given kind on first acquire.
type Factory func(ctx context.Context) (Provider, error)

type entry struct {
	provider  Provider
	refCount  int
	releaseAt *time.Timer
}

// Manager is a refcounted, lazily-loaded provider table keyed by
// model.ModelKind. Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	factories   map[model.ModelKind]Factory
	entries     map[model.ModelKind]*entry
	gracePeriod time.Duration
	lock        *FileLock
}

// New builds a Manager from cfg.Models, with download-lock serialization
// rooted at lockDir (typically the process's cache/state directory).
func New(cfg config.ModelsConfig, lockDir string) *Manager {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Manager{
		factories:   make(map[model.ModelKind]Factory),
		entries:     make(map[model.ModelKind]*entry),
		gracePeriod: grace,
		lock:        NewFileLock(lockDir),
	}
}

// Register installs the factory used to construct kind's provider.
// Registering after a provider has already been acquired only affects
// future loads (i.e. after the existing one is released and evicted).
func (m *Manager) Register(kind model.ModelKind, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[kind] = f
}

// RegisterLemmatizer installs a pre-built Lemmatizer as a model-less
// always-available provider; lemmatizers have no heavy backing resource so
// they skip the factory/grace-period machinery entirely.
func (m *Manager) RegisterLemmatizer(lm lemmatizer.Lemmatizer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[model.ModelKindLemmatizer] = &entry{provider: lemmatizerHandle{lm}, refCount: 1}
}

type lemmatizerHandle struct{ lemmatizer.Lemmatizer }

func (lemmatizerHandle) Close() error { return nil }

// Acquire returns kind's provider, constructing it on first use and
// cancelling any pending grace-period release. Every successful Acquire
// must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, kind model.ModelKind) (Provider, error) {
	m.mu.Lock()
	if e, ok := m.entries[kind]; ok {
		if e.releaseAt != nil {
			e.releaseAt.Stop()
			e.releaseAt = nil
		}
		e.refCount++
		provider := e.provider
		m.mu.Unlock()
		return provider, nil
	}
	factory, ok := m.factories[kind]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for model kind %q", kind)
	}

	if err := m.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire model download lock: %w", err)
	}
	defer m.lock.Unlock()

	provider, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load provider for %q: %w", kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[kind]; ok {
		// Lost the race to another acquire while building; keep theirs.
		_ = provider.Close()
		e.refCount++
		return e.provider, nil
	}
	m.entries[kind] = &entry{provider: provider, refCount: 1}
	return provider, nil
}

// Release decrements kind's refcount. At zero, the provider is kept alive
// for the configured grace period before being closed and evicted, so a
// subsequent Acquire arriving shortly after doesn't pay the load cost
// twice.
func (m *Manager) Release(kind model.ModelKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[kind]
	if !ok || e.refCount == 0 {
		return
	}
	e.refCount--
	if e.refCount > 0 {
		return
	}
	if kind == model.ModelKindLemmatizer {
		return // lemmatizers never get evicted, see RegisterLemmatizer.
	}
	e.releaseAt = time.AfterFunc(m.gracePeriod, func() {
		m.evict(kind)
	})
}

func (m *Manager) evict(kind model.ModelKind) {
	m.mu.Lock()
	e, ok := m.entries[kind]
	if !ok || e.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, kind)
	m.mu.Unlock()
	_ = e.provider.Close()
}

// Close releases every currently held provider immediately, bypassing the
// grace period. Intended for process shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[model.ModelKind]*entry)
	m.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if e.releaseAt != nil {
			e.releaseAt.Stop()
		}
		if err := e.provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TextEmbedderFactory wraps an embed.TextEmbedder constructor as a Factory.
func TextEmbedderFactory(build func(ctx context.Context) (embed.TextEmbedder, error)) Factory {
	return func(ctx context.Context) (Provider, error) {
		e, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return textEmbedderProvider{e}, nil
	}
}

type textEmbedderProvider struct{ embed.TextEmbedder }

// AcquireTextEmbedder is a typed convenience wrapper over Acquire for the
// common case of wanting an embed.TextEmbedder back directly.
func (m *Manager) AcquireTextEmbedder(ctx context.Context) (embed.TextEmbedder, error) {
	p, err := m.Acquire(ctx, model.ModelKindTextEmbedding)
	if err != nil {
		return nil, err
	}
	wrapped, ok := p.(textEmbedderProvider)
	if !ok {
		return nil, fmt.Errorf("provider registered for text_embedding does not implement TextEmbedder")
	}
	return wrapped.TextEmbedder, nil
}

// ImageEmbedderFactory wraps an embed.ImageEmbedder constructor as a Factory.
func ImageEmbedderFactory(build func(ctx context.Context) (embed.ImageEmbedder, error)) Factory {
	return func(ctx context.Context) (Provider, error) {
		e, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return imageEmbedderProvider{e}, nil
	}
}

type imageEmbedderProvider struct{ embed.ImageEmbedder }

// AcquireImageEmbedder is a typed convenience wrapper over Acquire.
func (m *Manager) AcquireImageEmbedder(ctx context.Context) (embed.ImageEmbedder, error) {
	p, err := m.Acquire(ctx, model.ModelKindImageEmbedding)
	if err != nil {
		return nil, err
	}
	wrapped, ok := p.(imageEmbedderProvider)
	if !ok {
		return nil, fmt.Errorf("provider registered for image_embedding does not implement ImageEmbedder")
	}
	return wrapped.ImageEmbedder, nil
}

// ClipEmbedderFactory wraps an embed.ClipEmbedder constructor as a Factory.
func ClipEmbedderFactory(build func(ctx context.Context) (embed.ClipEmbedder, error)) Factory {
	return func(ctx context.Context) (Provider, error) {
		e, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return clipEmbedderProvider{e}, nil
	}
}

type clipEmbedderProvider struct{ embed.ClipEmbedder }

// AcquireClipEmbedder is a typed convenience wrapper over Acquire.
func (m *Manager) AcquireClipEmbedder(ctx context.Context) (embed.ClipEmbedder, error) {
	p, err := m.Acquire(ctx, model.ModelKindClip)
	if err != nil {
		return nil, err
	}
	wrapped, ok := p.(clipEmbedderProvider)
	if !ok {
		return nil, fmt.Errorf("provider registered for clip does not implement ClipEmbedder")
	}
	return wrapped.ClipEmbedder, nil
}

// AcquireLemmatizer is a typed convenience wrapper over Acquire.
func (m *Manager) AcquireLemmatizer(ctx context.Context) (lemmatizer.Lemmatizer, error) {
	p, err := m.Acquire(ctx, model.ModelKindLemmatizer)
	if err != nil {
		return nil, err
	}
	wrapped, ok := p.(lemmatizerHandle)
	if !ok {
		return nil, fmt.Errorf("provider registered for lemmatizer does not implement Lemmatizer")
	}
	return wrapped.Lemmatizer, nil
}
