package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atikulmunna/logbook/internal/hub"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/atikulmunna/logbook/internal/output"
	"github.com/atikulmunna/logbook/internal/parser"
	"github.com/atikulmunna/logbook/internal/query"
	"github.com/atikulmunna/logbook/internal/tailer"
	"github.com/atikulmunna/logbook/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var followCmd = &cobra.Command{
	Use:   "follow [paths...]",
	Short: "Follow recorded log files",
	Long: `Follow one or more recorded log files (or glob patterns) and print new
entries as they are appended.

Examples:
  logbook follow default.log
  logbook follow "logs/**/*.log" --output text
  logbook follow err.log --level error,fatal`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().StringP("level", "l", "", "only show these levels (comma-separated, exact match)")
	followCmd.Flags().String("checkpoint", tailer.DefaultCheckpointPath, "file storing read offsets")
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd).With("command", "follow")

	w, err := watcher.New(args, logger.With("component", "watcher"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if len(w.Paths()) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", args)
	}
	for _, p := range w.Paths() {
		logger.Info("following file", "path", p)
	}

	ckptPath, _ := cmd.Flags().GetString("checkpoint")
	ckpt, err := tailer.NewCheckpoint(ckptPath)
	if err != nil {
		if ckpt == nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		logger.Warn("ignoring unreadable checkpoint", "error", err)
	}

	t := tailer.New(w, ckpt, logger.With("component", "tailer"))
	h := hub.New(t.Lines(), parser.NewLineParser(), logger.With("component", "hub"))
	entries := h.Subscribe()

	levelFlag, _ := cmd.Flags().GetString("level")
	filters := levelFilters(levelFlag)
	renderer := output.New(viper.GetString("output"), cmd.OutOrStdout())

	go w.Start(ctx)
	go t.Start(ctx)
	go h.Start(ctx)

	for entry := range entries {
		if !shouldShow(entry, filters) {
			continue
		}
		if err := renderer.Render(entry); err != nil {
			logger.Error("render error", "error", err)
		}
	}
	logger.Info("logbook stopped following")
	return nil
}

// levelFilters turns "error,fatal" into one level filter per listed level.
func levelFilters(flag string) []query.Filter {
	var filters []query.Filter
	for _, l := range strings.Split(flag, ",") {
		if l = strings.TrimSpace(l); l != "" {
			filters = append(filters, query.Filter{Level: query.Ptr(l)})
		}
	}
	return filters
}

// shouldShow reports whether entry matches any filter; no filters shows everything.
func shouldShow(entry model.Log, filters []query.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(entry) {
			return true
		}
	}
	return false
}
