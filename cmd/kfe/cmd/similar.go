package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/model"
	"github.com/Fl0k3n/kfe/internal/output"
)

// newSimilarCmd wires spec.md §4.4's reverse-lookup entry points
// (find_items_with_similar_descriptions / find_visually_similar_images /
// find_visually_similar_videos / find_visually_similar_images_to_image)
// into the CLI.
func newSimilarCmd() *cobra.Command {
	var dirName, kind, uploadImage string
	var limit int

	c := &cobra.Command{
		Use:   "similar [<file-name>]",
		Short: "Find files similar to an already-indexed file, or an uploaded image",
		Long: `similar finds files whose description, image, or video
embedding is closest to an already-indexed file's own (spec.md §4.4's
reverse-lookup entry points), or closest to an uploaded image passed via
--image.`,
		Args: cobra.MaximumNArgs(1),
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

			dirCtx, err := a.registry.Get(dirName)
			if err != nil {
				return fmt.Errorf("directory %q: %w", dirName, err)
			}

			var results []model.SearchResult
			if uploadImage != "" {
				results, err = dirCtx.Embeddings().FindVisuallySimilarImagesToImage(ctx, uploadImage, limit)
			} else {
				if len(args) == 0 {
					return fmt.Errorf("either a <file-name> argument or --image is required")
				}
				f, ok, ferr := dirCtx.Store().FindByName(ctx, args[0])
				if ferr != nil {
					return ferr
				}
				if !ok {
					return fmt.Errorf("file %q is not indexed in %q", args[0], dirName)
				}
				switch kind {
				case "description":
					results, err = dirCtx.Embeddings().FindItemsWithSimilarDescriptions(f.ID, limit)
				case "image":
					results, err = dirCtx.Embeddings().FindVisuallySimilarImages(f.ID, limit)
				case "video":
					results, err = dirCtx.Embeddings().FindVisuallySimilarVideos(f.ID, limit)
				default:
					return fmt.Errorf("unknown --kind %q (want description|image|video)", kind)
				}
			}
			if err != nil {
				return err
			}

			out := output.NewAuto(c.OutOrStdout())
			out.Statusf("*", "%d matches", len(results))
			for i, r := range results {
				f, ok, ferr := dirCtx.Store().GetFile(ctx, r.FileID)
				name := fmt.Sprintf("file#%d", r.FileID)
				if ferr == nil && ok {
					name = f.Name
				}
				out.Statusf(fmt.Sprintf("%2d.", i+1), "%.4f  %s", r.Score, name)
			}
			return nil
		},
	}

	c.Flags().StringVarP(&dirName, "dir", "d", "", "registered directory name (required)")
	c.Flags().StringVar(&kind, "kind", "description", "similarity dimension: description|image|video")
	c.Flags().StringVar(&uploadImage, "image", "", "path to an image to match against, instead of an indexed file")
	c.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	_ = c.MarkFlagRequired("dir")
	return c
}
