package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/antmaps/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "antmaps.db"

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrInvalidReport is returned when a report cannot be stored.
var ErrInvalidReport = errors.New("invalid run report")

// HistoryDB stores the history of delivered runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database inside dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		query_json TEXT NOT NULL,
		species_json TEXT NOT NULL,
		species_count INTEGER NOT NULL,
		specimen_count INTEGER NOT NULL DEFAULT 0,
		taxon_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		digest TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_location ON runs(location);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SpeciesDigest returns the hex SHA3-256 digest of a species list.
// Equal lists (same names, URLs and order) have equal digests.
func SpeciesDigest(species []model.Species) string {
	if species == nil {
		species = []model.Species{}
	}
	data, _ := json.Marshal(species) //nolint:errcheck,errchkjson // plain string fields; Marshal won't fail
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveRun appends a run report to the history.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.RunReport) error {
	if report == nil || report.ID == "" || report.Location == "" {
		return ErrInvalidReport
	}

	queryJSON, err := json.Marshal(report.Query)
	if err != nil {
		return fmt.Errorf("failed to serialize query: %w", err)
	}
	species := report.Species
	if species == nil {
		species = []model.Species{}
	}
	speciesJSON, err := json.Marshal(species)
	if err != nil {
		return fmt.Errorf("failed to serialize species: %w", err)
	}

	query := `
	INSERT INTO runs (id, location, query_json, species_json, species_count,
		specimen_count, taxon_count, status, digest, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = h.db.ExecContext(ctx, query,
		report.ID,
		report.Location,
		string(queryJSON),
		string(speciesJSON),
		len(species),
		report.SpecimenCount,
		report.TaxonCount,
		string(report.Status),
		SpeciesDigest(species),
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

const reportColumns = `id, location, query_json, species_json, specimen_count,
	taxon_count, status, started_at, finished_at`

// GetRunByID returns a stored run, or nil if it does not exist.
func (h *HistoryDB) GetRunByID(ctx context.Context, id string) (*model.RunReport, error) {
	query := `SELECT ` + reportColumns + ` FROM runs WHERE id = ?`

	report, err := scanReport(h.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return report, nil
}

// GetRecentRuns returns up to limit runs of a location, newest first.
// A non-positive limit returns all runs.
func (h *HistoryDB) GetRecentRuns(ctx context.Context, location string, limit int) ([]*model.RunReport, error) {
	query := `SELECT ` + reportColumns + ` FROM runs
	WHERE location = ?
	ORDER BY finished_at DESC, rowid DESC`
	args := []any{location}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunSummary is the history metadata of one run without its species list.
type RunSummary struct {
	ID           string          `json:"id"`
	Location     string          `json:"location"`
	SpeciesCount int             `json:"speciesCount"`
	Digest       string          `json:"digest"`
	Status       model.RunStatus `json:"status"`
	FinishedAt   time.Time       `json:"finishedAt"`
}

// GetRunHistory returns the run summaries of a location, newest first.
func (h *HistoryDB) GetRunHistory(ctx context.Context, location string) ([]RunSummary, error) {
	query := `
	SELECT id, location, species_count, digest, status, finished_at
	FROM runs
	WHERE location = ?
	ORDER BY finished_at DESC, rowid DESC
	`

	rows, err := h.db.QueryContext(ctx, query, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var status, finished string
		if err := rows.Scan(&s.ID, &s.Location, &s.SpeciesCount, &s.Digest, &status, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.Status = model.RunStatus(status)
		s.FinishedAt = parseTimestamp(finished)
		results = append(results, s)
	}

	return results, rows.Err()
}

// ListLocations returns every location with at least one stored run.
func (h *HistoryDB) ListLocations(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT location FROM runs
	ORDER BY location
	`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, location)
	}

	return locations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*model.RunReport, error) {
	var (
		report      model.RunReport
		queryJSON   string
		speciesJSON string
		status      string
		started     string
		finished    string
	)

	err := row.Scan(
		&report.ID,
		&report.Location,
		&queryJSON,
		&speciesJSON,
		&report.SpecimenCount,
		&report.TaxonCount,
		&status,
		&started,
		&finished,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(queryJSON), &report.Query); err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}
	if err := json.Unmarshal([]byte(speciesJSON), &report.Species); err != nil {
		return nil, fmt.Errorf("failed to parse species: %w", err)
	}
	report.Status = model.RunStatus(status)
	report.StartedAt = parseTimestamp(started)
	report.FinishedAt = parseTimestamp(finished)

	return &report, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the layouts accepted when reading timestamps.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time if no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
