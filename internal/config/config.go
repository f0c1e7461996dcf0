package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "antmaps"

	// DefaultBaseURL is the AntWeb v3 API root.
	DefaultBaseURL = "https://api.antweb.org/v3"

	// DefaultTimeout bounds each HTTP request, including reading the body.
	// The pipeline has no timeout of its own; an expired request surfaces
	// as a fetch failure.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies antmaps in HTTP requests.
	DefaultUserAgent = "antmaps/1.0 (+https://github.com/nao1215/antmaps)"

	// DefaultMaxBodySize limits how much of an API response is read.
	// Specimen responses for 100 records are well below 1MB.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultBatchSize is the number of named locations loaded concurrently.
	DefaultBatchSize = 4

	// DefaultListenAddress is the address the serve command binds to.
	DefaultListenAddress = "127.0.0.1:8080"
)

// Config holds all application-level options for antmaps.
// It is populated from CLI flags and the configuration file, then passed
// through the application explicitly rather than kept in global state.
type Config struct {
	// Query is the query built from command-line flags. It is used when no
	// named locations are requested.
	Query Query

	// Locations are the names of configured locations to load. When set,
	// each location's query replaces Query.
	Locations []string

	// BaseURL is the AntWeb API root, without trailing slash.
	BaseURL string

	// Timeout is the per-request timeout of the shared HTTP client.
	Timeout time.Duration

	// UserAgent is sent with every API request.
	UserAgent string

	// ProxyAddress optionally routes API traffic through a SOCKS5 proxy,
	// given as "host:port" or "socks5://[user:pass@]host:port".
	ProxyAddress string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// BatchSize is the number of locations processed concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport and MarkdownReport select the output format. They are
	// mutually exclusive; the default is human-readable text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile, when set, receives the report instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit configuration file path. When empty the
	// file is searched for by FindConfigFile.
	ConfigFilePath string

	// File holds the loaded configuration file, never nil after loading.
	File *File

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveHistory records delivered runs in the history database.
	SaveHistory bool

	// ListenAddress is the bind address of the serve command.
	ListenAddress string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Query:         DefaultQuery(),
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
		BatchSize:     DefaultBatchSize,
		DBDir:         XDGDataDir(),
		SaveHistory:   true,
		ListenAddress: DefaultListenAddress,
		File:          NewFile(),
	}
}

// XDGDataDir returns the XDG data directory for antmaps.
// On Linux: ~/.local/share/antmaps
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for antmaps.
// On Linux: ~/.config/antmaps
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !isValidBaseURL(c.BaseURL) {
		return ErrInvalidBaseURL
	}
	return c.Query.Validate()
}

func isValidBaseURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
