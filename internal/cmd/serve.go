package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/atikulmunna/logbook/internal/aggregator"
	"github.com/atikulmunna/logbook/internal/hub"
	"github.com/atikulmunna/logbook/internal/metrics"
	"github.com/atikulmunna/logbook/internal/parser"
	"github.com/atikulmunna/logbook/internal/query"
	"github.com/atikulmunna/logbook/internal/server"
	"github.com/atikulmunna/logbook/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Record and query entries over HTTP",
	Long: `Start an HTTP server that records entries and answers queries.

Routes:
  POST /api/logs   {"api": "...", "message": "..."}
  GET  /api/logs   ?level=&q=&timestamp=&source=  (omitted = any)
  GET  /api/stats  per-level counts and events/sec
  GET  /ws         stream of newly recorded entries
  GET  /metrics    Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", ":8080", "listen address")
	cobra.CheckErr(viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr")))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd).With("command", "serve")
	m := metrics.New()
	h := hub.New(nil, parser.NewLineParser(), logger.With("component", "hub"))

	store := storage.Open(viper.GetString("properties"),
		storage.WithLogger(logger.With("component", "storage")),
		storage.WithMetrics(m),
		storage.WithObserver(h.Publish),
	)
	logger.Info("configuration loaded", "apis", store.Config().APIs())

	agg := aggregator.New(h.Subscribe(), h.Dropped, store.SinkCount)

	go h.Start(ctx)
	go agg.Start(ctx)

	srv := server.New(query.New(store), h, agg, m, logger.With("component", "server"), viper.GetString("addr"))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("logbook shutting down")
	return nil
}
