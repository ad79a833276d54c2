package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/output"
)

func newRegisterCmd() *cobra.Command {
	var languages string
	var name string

	c := &cobra.Command{
		Use:   "register <path>",
		Short: "Register a directory for indexing and search",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(root)
			}
			langs := splitCSV(languages)
			primary := "en"
			if len(langs) > 0 {
				primary = langs[0]
			}

			out := output.NewAuto(c.OutOrStdout())
			ctx := context.Background()
			a, err := newApp(ctx, root, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			out.Statusf("*", "registering %s as %q", root, name)
			if err := a.registry.Register(ctx, name, root, langs, primary); err != nil {
				return fmt.Errorf("register %s: %w", root, err)
			}
			if failed := a.registry.InitFailed(); failed[name] != nil {
				out.Errorf("initial indexing failed: %v", failed[name])
				return failed[name]
			}
			out.Success("registered and indexed")
			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "directory name (defaults to the base name of path)")
	c.Flags().StringVar(&languages, "languages", "en", "comma-separated list of languages, primary first")
	return c
}

func newUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <name>",
		Short: "Stop tracking a registered directory",
		Args:  cobra.ExactArgs(1),
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
			if err := a.registry.Unregister(args[0]); err != nil {
				return err
			}
			output.NewAuto(c.OutOrStdout()).Success("unregistered " + args[0])
			return nil
		},
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
