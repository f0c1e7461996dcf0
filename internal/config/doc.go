// Package config provides configuration structures and utilities for antmaps.
// It defines the per-run Query, the application-level Config built from CLI
// flags, and the YAML configuration file holding named locations.
package config
