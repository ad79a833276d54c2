package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/logging"
	"github.com/Fl0k3n/kfe/internal/output"
	"github.com/Fl0k3n/kfe/internal/watcher"
)

// newServeCmd runs a long-lived process that watches every registered
// directory for filesystem changes, applies them via DirectoryContext's
// incremental update path (spec.md §4.6 point 3), and runs the registry's
// 24h periodic refresh (spec.md §5). Subcommands like `search`/`edit` are
// one-shot and reconcile against disk on every invocation instead; `serve`
// is what keeps an index current between edits without a full rescan.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch every registered directory and apply incremental updates",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if logCancel != nil {
				logCancel()
			}
			cleanup, err := logging.SetupServeMode()
			if err != nil {
				return err
			}
			logCancel = cleanup

			a, err := newApp(ctx, ".", slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.registry.LoadAll(ctx); err != nil {
				return err
			}
			a.registry.StartPeriodicRefresh(ctx)

			out := output.NewAuto(c.OutOrStdout())
			names := a.registry.Names()
			watchers := make(map[string]*watcher.HybridWatcher, len(names))
			for _, name := range names {
				dirCtx, err := a.registry.Get(name)
				if err != nil {
					continue
				}
				w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
				if err != nil {
					out.Errorf("watcher for %s: %v", name, err)
					continue
				}
				if err := w.Start(ctx, dirCtx.Root); err != nil {
					out.Errorf("watch %s: %v", name, err)
					continue
				}
				watchers[name] = w
				go forwardEvents(ctx, dirCtx, w)
				out.Success("watching " + name)
			}

			<-ctx.Done()
			for name, w := range watchers {
				if err := w.Stop(); err != nil {
					out.Errorf("stop watcher %s: %v", name, err)
				}
			}
			return nil
		},
	}
}

// forwardEvents applies every debounced batch from w onto dirCtx, mapping
// watcher.Operation to the Create/Delete/Move lifecycle hooks spec.md
// §4.6 describes.
func forwardEvents(ctx context.Context, dirCtx dirEventTarget, w *watcher.HybridWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				applyEvent(ctx, dirCtx, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Default().Warn("watcher error", "error", err)
		}
	}
}

// dirEventTarget is the slice of *directory.Context this file depends on,
// kept narrow so forwardEvents can be exercised against a fake in tests
// without standing up a real Context.
type dirEventTarget interface {
	OnFileCreated(ctx context.Context, relPath string) error
	OnFileDeleted(ctx context.Context, relPath string) error
	OnFileMoved(ctx context.Context, oldRelPath, newRelPath string) error
}

func applyEvent(ctx context.Context, dirCtx dirEventTarget, ev watcher.FileEvent) {
	if ev.IsDir {
		return
	}
	var err error
	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		err = dirCtx.OnFileCreated(ctx, ev.Path)
	case watcher.OpDelete:
		err = dirCtx.OnFileDeleted(ctx, ev.Path)
	case watcher.OpRename:
		err = dirCtx.OnFileMoved(ctx, ev.OldPath, ev.Path)
	default:
		return
	}
	if err != nil {
		slog.Default().Warn("apply fs event failed", "path", ev.Path, "op", ev.Operation.String(), "error", err)
	}
}
