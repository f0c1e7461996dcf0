package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/database"
	"github.com/nao1215/antmaps/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeConfig writes a configuration file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".antmaps")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const testConfig = `
defaults:
  maxSpecies: 3
  photo: dorsal
locations:
  north:
    latitude: 10
    longitude: 20
    radiusKm: 5
  south:
    latitude: -10
    longitude: 20
    radiusKm: 5
    maxSpecies: 1
  broken:
    radiusKm: 0
`

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override file defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, testConfig)

		cmd := NewLoadCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--lat", "26.4", "--lon", "127.8", "-r", "50", "--photo", "p", "--no-history", "-j"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		want := config.Query{Latitude: 26.4, Longitude: 127.8, RadiusKm: 50, MaxSpecies: 3, PhotoVariant: model.PhotoProfile}
		if cfg.Query != want {
			t.Errorf("Query = %+v, want %+v", cfg.Query, want)
		}
		if cfg.SaveHistory {
			t.Error("SaveHistory should be disabled by --no-history")
		}
		if !cfg.JSONReport {
			t.Error("JSONReport should be set")
		}
	})

	t.Run("file defaults apply to unset flags", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, testConfig)

		cmd := NewLoadCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"north"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Query.MaxSpecies != 3 || cfg.Query.PhotoVariant != model.PhotoDorsal || cfg.Query.RadiusKm != config.DefaultRadiusKm {
			t.Errorf("Query = %+v", cfg.Query)
		}
		if len(cfg.Locations) != 1 || cfg.Locations[0] != "north" {
			t.Errorf("Locations = %v", cfg.Locations)
		}
	})

	t.Run("explicit missing config file fails", func(t *testing.T) {
		t.Parallel()
		cmd := NewLoadCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("invalid photo fails", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, testConfig)
		cmd := NewLoadCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--photo", "sideways"}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); err == nil {
			t.Error("expected error for invalid photo")
		}
	})
}

func TestResolveTargets(t *testing.T) {
	t.Parallel()

	file, err := config.LoadConfigFile(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.File = file

	targets, err := resolveTargets(cfg)
	if err != nil || len(targets) != 1 || targets[0].Location != "" {
		t.Errorf("flag query targets = %+v, %v", targets, err)
	}

	cfg.Locations = []string{"south", "north"}
	targets, err = resolveTargets(cfg)
	if err != nil {
		t.Fatalf("resolveTargets() error = %v", err)
	}
	if len(targets) != 2 || targets[0].Location != "south" || targets[0].Query.MaxSpecies != 1 {
		t.Errorf("targets = %+v", targets)
	}

	cfg.Locations = []string{"nowhere"}
	if _, err := resolveTargets(cfg); err == nil {
		t.Error("expected error for unknown location")
	}

	cfg.Locations = []string{"broken"}
	if _, err := resolveTargets(cfg); err == nil {
		t.Error("expected error for invalid location query")
	}
}

// newAntWebServer serves two taxa; every taxon has three image URLs.
func newAntWebServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/geoSpecimens", func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = io.WriteString(w, `{"specimens":[{"antwebTaxonName":"formicinaecamponotus"},{"antwebTaxonName":"myrmicinaepheidole"},{"antwebTaxonName":"formicinaecamponotus"}]}`)
	})
	mux.HandleFunc("/taxaImages", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		taxon := r.URL.Query().Get("taxonName")
		shot := r.URL.Query().Get("shotType")
		_, _ = io.WriteString(w, `{"taxaImages":[{"taxonName":"`+taxon+`","specimen":[{"images":[{"urls":["a","b","https://img/`+taxon+`_`+shot+`.jpg"]}]}]}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestRunLoad(t *testing.T) {
	t.Parallel()

	t.Run("single query writes JSON and records history", func(t *testing.T) {
		t.Parallel()
		srv, requests := newAntWebServer(t)

		cfg := config.NewConfig()
		cfg.BaseURL = srv.URL
		cfg.DBDir = t.TempDir()
		cfg.JSONReport = true
		cfg.Query.Latitude = 26.4
		cfg.Query.Longitude = 127.8

		var out bytes.Buffer
		if err := runLoad(context.Background(), cfg, discardLogger(), &out); err != nil {
			t.Fatalf("runLoad() error = %v", err)
		}
		if got := requests.Load(); got != 3 {
			t.Errorf("requests = %d, want 3", got)
		}

		var envelope struct {
			Version string          `json:"version"`
			Report  model.RunReport `json:"report"`
		}
		if err := json.Unmarshal(out.Bytes(), &envelope); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
		}
		want := []model.Species{
			{Name: "formicinaecamponotus", ImageURL: "https://img/formicinaecamponotus_h.jpg"},
			{Name: "myrmicinaepheidole", ImageURL: "https://img/myrmicinaepheidole_h.jpg"},
		}
		got := envelope.Report.Species
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("Species = %v, want %v", got, want)
		}
		if envelope.Report.Location != "26,127,2" {
			t.Errorf("Location = %q", envelope.Report.Location)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		runs, err := db.GetRunHistory(context.Background(), "26,127,2")
		if err != nil || len(runs) != 1 || runs[0].SpeciesCount != 2 {
			t.Errorf("history = %+v, %v", runs, err)
		}
	})

	t.Run("synthetic query needs no network", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		cfg.SaveHistory = false
		cfg.Query.UseSyntheticData = true
		cfg.Query.MaxSpecies = 2

		var out bytes.Buffer
		if err := runLoad(context.Background(), cfg, discardLogger(), &out); err != nil {
			t.Fatalf("runLoad() error = %v", err)
		}
		for _, want := range []string{"ANTMAPS SPECIES REPORT", "Antum falsum #0", "Antum falsum #1"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("named locations run as a batch", func(t *testing.T) {
		t.Parallel()
		srv, _ := newAntWebServer(t)
		file, err := config.LoadConfigFile(writeConfig(t, testConfig))
		if err != nil {
			t.Fatal(err)
		}

		cfg := config.NewConfig()
		cfg.BaseURL = srv.URL
		cfg.File = file
		cfg.Locations = []string{"north", "south"}
		cfg.DBDir = t.TempDir()
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "out.md")
		cfg.MarkdownReport = true

		if err := runLoad(context.Background(), cfg, discardLogger(), io.Discard); err != nil {
			t.Fatalf("runLoad() error = %v", err)
		}

		content, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(content), "north") || !strings.Contains(string(content), "south") {
			t.Errorf("report misses a location:\n%s", content)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		locations, err := db.ListLocations(context.Background())
		if err != nil || len(locations) != 2 {
			t.Errorf("locations = %v, %v", locations, err)
		}
	})

	t.Run("upstream failure delivers an empty list", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		cfg := config.NewConfig()
		cfg.BaseURL = srv.URL
		cfg.SaveHistory = false
		cfg.JSONReport = true

		var out bytes.Buffer
		if err := runLoad(context.Background(), cfg, discardLogger(), &out); err != nil {
			t.Fatalf("runLoad() error = %v", err)
		}
		if !strings.Contains(out.String(), `"species": []`) {
			t.Errorf("expected empty species list:\n%s", out.String())
		}
	})

	t.Run("cancellation suppresses the report", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(srv.Close)

		cfg := config.NewConfig()
		cfg.BaseURL = srv.URL
		cfg.SaveHistory = false

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		var out bytes.Buffer
		if err := runLoad(ctx, cfg, discardLogger(), &out); err == nil {
			t.Error("expected cancellation error")
		}
		if out.Len() != 0 {
			t.Errorf("expected no report, got:\n%s", out.String())
		}
	})
}
