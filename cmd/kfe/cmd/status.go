package cmd

import (
	"context"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List registered directories and surface any failed initialization",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, ".", slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.registry.LoadAll(ctx); err != nil {
				return err
			}

			out := output.NewAuto(c.OutOrStdout())
			names := a.registry.Names()
			sort.Strings(names)
			failed := a.registry.InitFailed()

			if len(names) == 0 {
				out.Status("*", "no directories registered")
				return nil
			}
			for _, name := range names {
				if err, bad := failed[name]; bad {
					out.Errorf("%s: init failed: %v", name, err)
					continue
				}
				out.Success(name)
			}
			return nil
		},
	}
}
