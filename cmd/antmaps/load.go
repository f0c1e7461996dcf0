package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/antmaps/internal/antweb"
	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/database"
	"github.com/nao1215/antmaps/internal/loader"
	seclog "github.com/nao1215/antmaps/internal/log"
	"github.com/nao1215/antmaps/internal/model"
	"github.com/nao1215/antmaps/internal/pipeline"
	"github.com/nao1215/antmaps/internal/report"
	"github.com/nao1215/antmaps/internal/transport"
)

// NewLoadCmd creates the load command.
func NewLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [location...]",
		Short: "Load the ant species found around a location",
		Long: `Load queries AntWeb for specimens collected around a coordinate, reduces
them to unique species and looks up one photo per species.

Without arguments the query is built from the flags on top of the defaults
of the configuration file. With arguments, each argument names a location
of the configuration file and all of them are loaded concurrently.

Examples:
  # Species within 2 km of a coordinate
  antmaps load --lat 26.46 --lon 127.83

  # Wider search, up to 25 species, profile photos
  antmaps load --lat -18.9 --lon 47.5 -r 100 -n 25 --photo profile

  # Named locations from .antmaps
  antmaps load oist madagascar

  # Placeholder species without network access
  antmaps load --fake -n 5

  # Markdown report written to a file
  antmaps load --markdown -o reports/oist.md oist`,
		Args: cobra.ArbitraryArgs,
		RunE: runLoadCmd,
	}

	// Query flags
	cmd.Flags().Float64("lat", 0, "Latitude of the search center")
	cmd.Flags().Float64("lon", 0, "Longitude of the search center")
	cmd.Flags().IntP("radius", "r", config.DefaultRadiusKm, "Search radius in kilometers")
	cmd.Flags().IntP("max-species", "n", config.DefaultMaxSpecies, "Maximum number of species to look up")
	cmd.Flags().StringP("photo", "p", config.DefaultPhotoVariant.String(),
		"Photo shot type: head, dorsal, profile or label")
	cmd.Flags().Bool("fake", false, "Produce placeholder species without contacting AntWeb")

	// Network flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each API request")
	cmd.Flags().String("base-url", config.DefaultBaseURL, "AntWeb API base URL")
	cmd.Flags().String("proxy", "", "Route API traffic through a SOCKS5 proxy (host:port)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of locations loaded concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .antmaps in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")

	return cmd
}

// runLoadCmd executes the load command.
func runLoadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := seclog.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runLoad(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the configuration file and cobra flags.
// Query flags override the file defaults only when they were set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.File, err = loadConfigFile(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	q := cfg.File.DefaultQuery()
	if flags.Changed("lat") {
		if q.Latitude, err = flags.GetFloat64("lat"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("lon") {
		if q.Longitude, err = flags.GetFloat64("lon"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("radius") {
		if q.RadiusKm, err = flags.GetInt("radius"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-species") {
		if q.MaxSpecies, err = flags.GetInt("max-species"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("photo") {
		photo, err := flags.GetString("photo")
		if err != nil {
			return nil, err
		}
		if q.PhotoVariant, err = model.ParsePhotoVariant(photo); err != nil {
			return nil, err
		}
	}
	if flags.Changed("fake") {
		if q.UseSyntheticData, err = flags.GetBool("fake"); err != nil {
			return nil, err
		}
	}
	cfg.Query = q

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.Locations = args

	return cfg, nil
}

// loadConfigFile loads the configuration file. An explicitly given path must
// exist; otherwise a missing file yields an empty configuration.
func loadConfigFile(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return config.NewFile(), nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// newRunner wires the HTTP client, the AntWeb client and the pipeline runner.
func newRunner(cfg *config.Config, logger *slog.Logger, opts ...pipeline.RunnerOption) (*pipeline.Runner, error) {
	httpClient, err := transport.NewHTTPClient(transport.Options{
		Timeout:      cfg.Timeout,
		UserAgent:    cfg.UserAgent,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	client := antweb.NewClient(httpClient,
		antweb.WithBaseURL(cfg.BaseURL),
		antweb.WithMaxBodySize(cfg.MaxBodySize),
		antweb.WithLogger(logger),
	)

	opts = append([]pipeline.RunnerOption{pipeline.WithRunnerLogger(logger)}, opts...)
	return pipeline.NewRunner(client, opts...), nil
}

// openHistory opens the history database, or returns nil when history is disabled.
func openHistory(cfg *config.Config, logger *slog.Logger) (*database.HistoryDB, error) {
	if !cfg.SaveHistory {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", db.Path())
	return db, nil
}

// runLoad executes the load.
func runLoad(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	targets, err := resolveTargets(cfg)
	if err != nil {
		return err
	}

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	out, closeOut, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	writer := newReportWriter(cfg, out)

	if len(targets) == 1 {
		return runSingleLoad(ctx, runner, targets[0], writer, db, logger)
	}
	return runBatchLoad(ctx, cfg, runner, targets, writer, db, logger)
}

// resolveTargets returns the flag query, or the query of every named location.
func resolveTargets(cfg *config.Config) ([]pipeline.Target, error) {
	if len(cfg.Locations) == 0 {
		return []pipeline.Target{{Query: cfg.Query}}, nil
	}

	targets := make([]pipeline.Target, 0, len(cfg.Locations))
	for _, name := range cfg.Locations {
		q, err := cfg.File.GetLocationQuery(name)
		if err != nil {
			return nil, err
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("location %s: %w", name, err)
		}
		targets = append(targets, pipeline.Target{Location: name, Query: q})
	}
	return targets, nil
}

// runSingleLoad runs one query through a Loader so that an interrupt
// cancels the run and suppresses its result.
func runSingleLoad(
	ctx context.Context,
	runner pipeline.Executor,
	target pipeline.Target,
	writer report.Writer,
	db *database.HistoryDB,
	logger *slog.Logger,
) error {
	ld := loader.New(runner, loader.WithLogger(logger))
	delivered := make(chan *pipeline.Run, 1)

	run := pipeline.NewRun(target.Query, target.Location)
	if err := ld.StartRun(ctx, run, func(r *pipeline.Run) { delivered <- r }); err != nil {
		return err
	}

	select {
	case r := <-delivered:
		return deliverRun(ctx, r, writer, db, logger)
	case <-ld.Done():
		// deliver runs before Done is closed
		select {
		case r := <-delivered:
			return deliverRun(ctx, r, writer, db, logger)
		default:
			return fmt.Errorf("run for %s ended without a result", run.Location)
		}
	case <-ctx.Done():
		ld.Cancel()
		<-ld.Done()
		logger.Info("load cancelled", "location", run.Location)
		return fmt.Errorf("load cancelled: %w", ctx.Err())
	}
}

// runBatchLoad runs several named locations concurrently.
func runBatchLoad(
	ctx context.Context,
	cfg *config.Config,
	runner pipeline.Executor,
	targets []pipeline.Target,
	writer report.Writer,
	db *database.HistoryDB,
	logger *slog.Logger,
) error {
	logger.Info("starting batch load", "locations", len(targets), "concurrency", cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(runner,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	var errs []error
	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *pipeline.Run, _ int) {
		mu.Lock()
		defer mu.Unlock()
		if err := deliverRun(ctx, run, writer, db, logger); err != nil {
			errs = append(errs, err)
		}
	})

	logger.Info("batch load complete", "elapsed", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return fmt.Errorf("load cancelled: %w", err)
	}
	return errors.Join(errs...)
}

// deliverRun writes the report of a delivered run and records it in history.
func deliverRun(ctx context.Context, run *pipeline.Run, writer report.Writer, db *database.HistoryDB, logger *slog.Logger) error {
	rep := run.Report(model.RunStatusDelivered)

	if _, err := writer.Write(rep); err != nil {
		return fmt.Errorf("failed to write report for %s: %w", rep.Location, err)
	}

	if db != nil {
		if err := db.SaveRun(ctx, rep); err != nil {
			logger.Error("failed to save run", "location", rep.Location, "error", err)
		} else {
			logger.Info("run saved to database", "run", rep.ID, "location", rep.Location)
		}
	}
	return nil
}

// openOutput returns the report destination: the report file when set,
// stdout otherwise.
func openOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}
