package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/metaedit"
	"github.com/Fl0k3n/kfe/internal/model"
	"github.com/Fl0k3n/kfe/internal/output"
)

func newEditCmd() *cobra.Command {
	var dirName, field string

	c := &cobra.Command{
		Use:   "edit <file-id> <text>",
		Short: "Replace a file's description/ocr_text/transcript and reindex it",
		Long: `edit implements spec.md §4.7's MetadataEditor: it removes the old
lemmatized tokens from the lexical index, registers the new ones, replaces
the matching embedding row, and persists the file row, all under the
directory's write lock (one lock per directory).`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q: %w", args[0], err)
			}
			var f metaedit.Field
			switch field {
			case "description":
				f = metaedit.FieldDescription
			case "ocr_text":
				f = metaedit.FieldOCRText
			case "transcript":
				f = metaedit.FieldTranscript
			default:
				return fmt.Errorf("invalid --field %q: must be description, ocr_text, or transcript", field)
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

			editor := metaedit.New(dirCtx)
			if err := editor.Apply(ctx, model.FileID(id), f, args[1]); err != nil {
				return err
			}
			output.NewAuto(c.OutOrStdout()).Success("updated")
			return nil
		},
	}

	c.Flags().StringVarP(&dirName, "dir", "d", "", "registered directory name (required)")
	c.Flags().StringVar(&field, "field", "description", "field to edit: description, ocr_text, transcript")
	_ = c.MarkFlagRequired("dir")
	return c
}
