package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nao1215/antmaps/internal/config"
	seclog "github.com/nao1215/antmaps/internal/log"
	"github.com/nao1215/antmaps/internal/metrics"
	"github.com/nao1215/antmaps/internal/pipeline"
	"github.com/nao1215/antmaps/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve species lookups over HTTP",
		Long: `Serve starts a JSON API in front of the species pipeline.

Routes:
  GET /api/v1/species                   query parameters latitude, longitude,
                                        radiusKm, maxSpecies, photoType, fakeResults
  GET /api/v1/locations                 configured location names
  GET /api/v1/locations/:name/species   species of a configured location
  GET /api/v1/history/:location         recorded runs of a location
  GET /healthz                          liveness probe
  GET /metrics                          Prometheus metrics

Examples:
  antmaps serve
  antmaps serve --listen :9090 --config myconfig.yaml`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "Address to listen on")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each API request")
	cmd.Flags().String("base-url", config.DefaultBaseURL, "AntWeb API base URL")
	cmd.Flags().String("proxy", "", "Route API traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().Int("max-species-limit", server.DefaultMaxSpeciesLimit,
		"Largest maxSpecies a request may ask for")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .antmaps in current or home directory)")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()
	if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
		return err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return err
	}
	limit, err := flags.GetInt("max-species-limit")
	if err != nil {
		return err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveHistory = !noHistory

	if cfg.File, err = loadConfigFile(cfg.ConfigFilePath); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := seclog.NewSecureJSONLogger(os.Stderr, cfg.Verbose)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	runner, err := newRunner(cfg, logger, pipeline.WithRecorder(pipelineMetrics))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithLocations(cfg.File),
		server.WithGatherer(registry),
		server.WithMaxSpeciesLimit(limit),
	}

	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, server.WithHistory(db))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", cfg.ListenAddress)
	return server.New(runner, opts...).Start(ctx, cfg.ListenAddress)
}
