// Package report renders species run reports.
//
// Three formats are supported: a plain text format for terminals, JSON for
// tooling, and Markdown for sharing. Every Writer can also render a
// Comparison of two runs for the same location.
package report
