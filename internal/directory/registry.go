package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fl0k3n/kfe/internal/filestore"
	"github.com/Fl0k3n/kfe/internal/kerrors"
)

// RefreshInterval is how often the Registry tears down and reconstructs
// every registered Context, per spec.md §5's "every 24h the directory
// context unregisters and re-registers each directory" refresh rule.
const RefreshInterval = 24 * time.Hour

// Factory builds a Context for a newly registered directory. cmd/kfe
// supplies one closing over the process's shared model providers.
type Factory func(name, root string) (*Context, error)

// Registry is the DirectoryContextHolder-equivalent SPEC_FULL.md's
// supplemented features call for: it owns every registered directory's
// Context, tracks which ones failed Init so list/status APIs can surface
// them (spec.md §7's init_failed_contexts), and runs the periodic refresh.
type Registry struct {
	mu       sync.RWMutex
	factory  Factory
	store    *filestore.Store // shared catalog of registered directories
	contexts map[string]*Context
	failed   map[string]error
	log      *slog.Logger

	stopRefresh chan struct{}
}

// NewRegistry opens catalogRoot/skonrad.db as the shared directories table
// and returns an empty Registry. Call LoadAll to reconstruct Contexts for
// every previously registered directory.
func NewRegistry(catalogRoot string, factory Factory, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	store, err := filestore.Open(catalogRoot)
	if err != nil {
		return nil, fmt.Errorf("open registry catalog: %w", err)
	}
	return &Registry{
		factory:     factory,
		store:       store,
		contexts:    make(map[string]*Context),
		failed:      make(map[string]error),
		log:         log,
		stopRefresh: make(chan struct{}),
	}, nil
}

// Register adds a new directory by name and filesystem root, builds its
// Context, and runs Init synchronously. If Init fails the Context is kept
// registered but recorded in the init-failed set (spec.md §7) so status
// endpoints can report it instead of the directory silently vanishing.
func (r *Registry) Register(ctx context.Context, name, root string, languages []string, primaryLanguage string) error {
	r.mu.Lock()
	if _, exists := r.contexts[name]; exists {
		r.mu.Unlock()
		return kerrors.ErrDirectoryAlreadyRegistered
	}
	r.mu.Unlock()

	dirCtx, err := r.factory(name, root)
	if err != nil {
		return fmt.Errorf("create directory context %s: %w", name, err)
	}

	if err := r.store.UpsertDirectory(ctx, filestore.DirectoryRow{
		Name: name, FSPath: root, Languages: languages, PrimaryLanguage: primaryLanguage,
	}); err != nil {
		_ = dirCtx.Close()
		return fmt.Errorf("record directory %s: %w", name, err)
	}

	r.mu.Lock()
	r.contexts[name] = dirCtx
	delete(r.failed, name)
	r.mu.Unlock()

	if err := dirCtx.Init(ctx); err != nil {
		r.mu.Lock()
		r.failed[name] = err
		r.mu.Unlock()
		r.log.Error("directory init failed", "directory", name, "error", err)
		return nil
	}
	return nil
}

// Unregister closes and drops name's Context without touching its on-disk
// state (a subsequent Register rebuilds it by reconciling against disk).
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.contexts[name]
	if !ok {
		return kerrors.ErrDirectoryNotFound
	}
	delete(r.contexts, name)
	delete(r.failed, name)
	return ctx.Close()
}

// Get returns the Context registered under name.
func (r *Registry) Get(name string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.contexts[name]
	if !ok {
		return nil, kerrors.ErrDirectoryNotFound
	}
	return ctx, nil
}

// Names lists every registered directory name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	return names
}

// InitFailed reports which registered directories are in the
// init_failed_contexts set, keyed by name, with the error that caused it.
func (r *Registry) InitFailed() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failed))
	for k, v := range r.failed {
		out[k] = v
	}
	return out
}

// LoadAll reconstructs a Context (and runs Init) for every directory
// already recorded in the shared catalog, used at process startup to
// resume everything that was registered in a previous run.
func (r *Registry) LoadAll(ctx context.Context) error {
	rows, err := r.store.AllDirectories(ctx)
	if err != nil {
		return fmt.Errorf("list registered directories: %w", err)
	}
	for _, row := range rows {
		if err := r.Register(ctx, row.Name, row.FSPath, row.Languages, row.PrimaryLanguage); err != nil {
			r.log.Error("failed to load registered directory", "directory", row.Name, "error", err)
		}
	}
	return nil
}

// StartPeriodicRefresh runs a background loop that unregisters and
// re-registers every directory every RefreshInterval, per spec.md §5. It
// returns immediately; call Close to stop the loop.
func (r *Registry) StartPeriodicRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.refreshAll(ctx)
			case <-r.stopRefresh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Registry) refreshAll(ctx context.Context) {
	r.mu.RLock()
	type entry struct{ name, root string }
	entries := make([]entry, 0, len(r.contexts))
	for name, c := range r.contexts {
		entries = append(entries, entry{name, c.Root})
	}
	r.mu.RUnlock()

	for _, e := range entries {
		r.log.Info("refreshing directory context", "directory", e.name)
		row, ok, err := r.store.GetDirectory(ctx, e.name)
		if err != nil {
			r.log.Error("refresh: failed to read catalog row", "directory", e.name, "error", err)
			continue
		}
		if !ok {
			row = filestore.DirectoryRow{Name: e.name, FSPath: e.root}
		}
		if err := r.Unregister(e.name); err != nil {
			r.log.Error("refresh: failed to unregister", "directory", e.name, "error", err)
			continue
		}
		if err := r.Register(ctx, row.Name, row.FSPath, row.Languages, row.PrimaryLanguage); err != nil {
			r.log.Error("refresh: failed to re-register", "directory", e.name, "error", err)
		}
	}
}

// Close stops the refresh loop and closes every registered Context plus
// the shared catalog store.
func (r *Registry) Close() error {
	close(r.stopRefresh)

	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, ctx := range r.contexts {
		if err := ctx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close directory %s: %w", name, err)
		}
	}
	r.contexts = make(map[string]*Context)
	if err := r.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
