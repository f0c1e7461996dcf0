package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/database"
	"github.com/nao1215/antmaps/internal/model"
	"github.com/nao1215/antmaps/internal/report"
)

// NewCompareCmd creates the compare command.
// This command compares run results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [location]",
		Short: "Compare the latest run of a location with an earlier one",
		Long: `Compare displays the species that appeared, disappeared or changed photo
between two runs of the same location.

The location is either the name of a configured location or, for runs
started from flags, the key "lat,lon,radius" shown in the report.
Use 'antmaps load' to perform runs and record them.

Examples:
  # Compare the latest two runs of a location
  antmaps compare oist

  # List the run history of a location
  antmaps compare --list oist

  # Compare the latest run with a specific earlier run
  antmaps compare --with-run-id 0b7c... oist

  # List all locations in the database
  antmaps compare --list-locations`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified location")
	cmd.Flags().BoolP("list-locations", "L", false,
		"List all locations in the database")
	cmd.Flags().StringP("with-run-id", "i", "",
		"Compare with a specific run by ID (use --list to see available IDs)")

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// compareOptions holds the parsed compare flags.
type compareOptions struct {
	location      string
	list          bool
	listLocations bool
	withRunID     string
	json          bool
	markdown      bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCompareFlags(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runCompare(cmd.Context(), db, opts, cmd.OutOrStdout())
}

// parseCompareFlags validates arguments before the database is opened.
func parseCompareFlags(cmd *cobra.Command, args []string) (compareOptions, error) {
	var opts compareOptions
	var err error
	flags := cmd.Flags()

	if opts.listLocations, err = flags.GetBool("list-locations"); err != nil {
		return opts, err
	}
	if !opts.listLocations {
		if len(args) == 0 {
			return opts, errors.New("location is required (use --list-locations to see available locations)")
		}
		opts.location = args[0]
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = flags.GetString("with-run-id"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	return opts, nil
}

// runCompare dispatches to listing or comparison.
func runCompare(ctx context.Context, db *database.HistoryDB, opts compareOptions, out io.Writer) error {
	switch {
	case opts.listLocations:
		return listLocations(ctx, db, out)
	case opts.list:
		return listRunHistory(ctx, db, opts.location, out)
	default:
		return runComparison(ctx, db, opts, out)
	}
}

// listLocations lists all locations that have runs in the database.
func listLocations(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	locations, err := db.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list locations: %w", err)
	}

	if len(locations) == 0 {
		fmt.Fprintln(out, "No locations found in the database.")
		fmt.Fprintln(out, "\nUse 'antmaps load' to load the species of a location.")
		return nil
	}

	fmt.Fprintf(out, "Loaded locations (%d):\n\n", len(locations))
	for _, location := range locations {
		fmt.Fprintf(out, "  • %s\n", location)
	}
	fmt.Fprintln(out, "\nUse 'antmaps compare --list <location>' to see the run history of a location.")

	return nil
}

// listRunHistory lists all runs of a location.
func listRunHistory(ctx context.Context, db *database.HistoryDB, location string, out io.Writer) error {
	runs, err := db.GetRunHistory(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", location)
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", location, len(runs))
	fmt.Fprintf(out, "  %-36s  %-20s  %-7s  %s\n", "ID", "Date", "Species", "Digest")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-36s  %-20s  %-7d  %s\n",
			run.ID,
			run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			run.SpeciesCount,
			shortDigest(run.Digest),
		)
	}

	fmt.Fprintln(out, "\nUse 'antmaps compare <location>' to compare the latest two runs.")
	return nil
}

// shortDigest abbreviates a hex digest for tables.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// runComparison compares the latest run with the previous or the selected run.
func runComparison(ctx context.Context, db *database.HistoryDB, opts compareOptions, out io.Writer) error {
	runs, err := db.GetRecentRuns(ctx, opts.location, 2)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", opts.location)
	}

	current := runs[0]
	var previous *model.RunReport

	if opts.withRunID != "" {
		previous, err = db.GetRunByID(ctx, opts.withRunID)
		if err != nil {
			return fmt.Errorf("failed to get run %s: %w", opts.withRunID, err)
		}
		if previous == nil {
			return fmt.Errorf("run %s not found", opts.withRunID)
		}
		if previous.Location != opts.location {
			return fmt.Errorf("run %s belongs to %s, not %s", opts.withRunID, previous.Location, opts.location)
		}
	} else {
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previous = runs[1]
	}

	cmp := report.NewComparison(previous, current)

	var writer report.Writer
	switch {
	case opts.json:
		writer = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		writer = report.NewMarkdownWriter(out)
	default:
		writer = report.NewSimpleWriter(out)
	}

	if _, err := writer.WriteComparison(cmp); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}
	return nil
}
