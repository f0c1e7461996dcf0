package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/antmaps/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a run report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteComparison outputs the difference between two runs.
	WriteComparison(cmp *Comparison) (int, error)
}

// MultiWriter writes to multiple Writers in order, stopping at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(cmp *Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteComparison(cmp)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// subfamilySuffix ends every ant subfamily name (Formicinae, Myrmicinae, ...).
const subfamilySuffix = "inae"

// DisplayName turns an AntWeb taxon identifier into a readable name.
// AntWeb prefixes the genus with its subfamily ("myrmicinaecataulacus
// oberthueri"); the prefix is dropped and the genus capitalized, giving
// "Cataulacus oberthueri".
func DisplayName(taxon string) string {
	name := strings.TrimSpace(taxon)
	if name == "" {
		return "(unnamed taxon)"
	}

	genus, epithet, _ := strings.Cut(name, " ")
	if i := strings.Index(genus, subfamilySuffix); i > 0 && i+len(subfamilySuffix) < len(genus) {
		genus = genus[i+len(subfamilySuffix):]
	}

	// a Caser keeps state, so one is created per call
	genus = cases.Title(language.English).String(genus)
	if epithet == "" {
		return genus
	}
	return genus + " " + strings.ToLower(epithet)
}

// Subfamily returns the capitalized subfamily prefix of a taxon identifier,
// or "" if there is none.
func Subfamily(taxon string) string {
	genus, _, _ := strings.Cut(strings.TrimSpace(taxon), " ")
	i := strings.Index(genus, subfamilySuffix)
	if i <= 0 || i+len(subfamilySuffix) >= len(genus) {
		return ""
	}
	return cases.Title(language.English).String(genus[:i+len(subfamilySuffix)])
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
