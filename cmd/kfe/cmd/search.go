package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/output"
)

func newSearchCmd() *cobra.Command {
	var dirName string
	var offset, limit int

	c := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a registered directory",
		Long: `Search runs the qualifier DSL (@image/@video/@audio, @ss/@nss,
@lex/@sem/@dlex/@dsem/@olex/@osem/@tlex/@tsem/@clip) against a registered
directory, defaulting to hybrid RRF fusion over lexical, semantic, and
CLIP retrieval when no metric qualifier is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}

			ctx := context.Background()
			a, err := newApp(ctx, ".", slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.registry.LoadAll(ctx); err != nil {
				return err
			}

			dirCtx, err := a.registry.Get(dirName)
			if err != nil {
				return fmt.Errorf("directory %q: %w", dirName, err)
			}

			results, total, err := dirCtx.Search(ctx, query, offset, limit)
			if err != nil {
				return err
			}

			out := output.NewAuto(c.OutOrStdout())
			out.Statusf("*", "%d/%d matches", len(results), total)
			for i, r := range results {
				f, ok, ferr := dirCtx.Store().GetFile(ctx, r.FileID)
				name := fmt.Sprintf("file#%d", r.FileID)
				if ferr == nil && ok {
					name = f.Name
				}
				out.Statusf(fmt.Sprintf("%2d.", i+1+offset), "%.4f  %s", r.Score, name)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&dirName, "dir", "d", "", "registered directory name (required)")
	c.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	c.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	_ = c.MarkFlagRequired("dir")
	return c
}
