package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Query.Validate so callers
// can use errors.Is for programmatic handling.
var (
	// ErrInvalidRadius is returned when the search radius is not positive.
	ErrInvalidRadius = errors.New("invalid radius: must be a positive number of kilometers")

	// ErrInvalidMaxSpecies is returned when the species cap is negative.
	// Zero is allowed and yields an empty result.
	ErrInvalidMaxSpecies = errors.New("invalid max species: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the number of concurrent location
	// runs is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidBaseURL is returned when the AntWeb API base URL is empty or
	// not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownLocation is returned when a named location is not present in
	// the configuration file.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrInvalidTransferValue is returned when a transfer form entry cannot be
	// parsed into its field type.
	ErrInvalidTransferValue = errors.New("invalid transfer form value")
)
