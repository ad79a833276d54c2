package cmd

import (
	"context"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/logging"
)

// newLogsCmd surfaces kfe's own log file and, when kfe started Ollama
// itself, the managed Ollama server's log, merged into one timeline.
func newLogsCmd() *cobra.Command {
	var (
		source  string
		n       int
		pattern string
		follow  bool
		noColor bool
	)

	c := &cobra.Command{
		Use:   "logs",
		Short: "Tail kfe's (and, if managed, Ollama's) log files",
		RunE: func(c *cobra.Command, args []string) error {
			src := logging.ParseLogSource(source)
			paths, err := logging.FindLogFileBySource(src, "")
			if err != nil {
				return err
			}

			var re *regexp.Regexp
			if pattern != "" {
				re, err = regexp.Compile(pattern)
				if err != nil {
					return err
				}
			}

			v := logging.NewViewer(logging.ViewerConfig{
				Pattern:    re,
				NoColor:    noColor,
				ShowSource: len(paths) > 1,
			}, c.OutOrStdout())

			entries, err := v.TailMultiple(paths, n)
			if err != nil {
				return err
			}
			v.Print(entries)

			if !follow {
				return nil
			}
			ctx, cancel := context.WithCancel(c.Context())
			defer cancel()
			ch := make(chan logging.LogEntry, 64)
			go func() {
				for e := range ch {
					v.Print([]logging.LogEntry{e})
				}
			}()
			return v.FollowMultiple(ctx, paths, ch)
		},
	}

	c.Flags().StringVar(&source, "source", "go", "log source: go, ollama, all")
	c.Flags().IntVar(&n, "lines", 100, "number of lines to show")
	c.Flags().StringVar(&pattern, "grep", "", "only show lines matching this regexp")
	c.Flags().BoolVar(&follow, "follow", false, "keep watching for new lines")
	c.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	return c
}
