package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/antmaps/internal/model"
)

const (
	ruleWidth  = 70
	dateLayout = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the run ID, raw taxon identifiers and timings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "ANTMAPS SPECIES REPORT")
	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeSpecies(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(cmp *Comparison) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "ANTMAPS RUN COMPARISON")
	fmt.Fprintf(&sb, "Location: %s\n", cmp.Location)
	if cmp.Previous != nil {
		fmt.Fprintf(&sb, "Previous: %s (%d species)\n", cmp.Previous.FinishedAt.Format(dateLayout), len(cmp.Previous.Species))
	}
	if cmp.Current != nil {
		fmt.Fprintf(&sb, "Current:  %s (%d species)\n", cmp.Current.FinishedAt.Format(dateLayout), len(cmp.Current.Species))
	}
	sb.WriteString("\n")

	if cmp.Unchanged() {
		sb.WriteString("  No changes between the two runs\n\n")
	} else {
		w.writeSpeciesList(&sb, "ADDED", "+", cmp.Added)
		w.writeSpeciesList(&sb, "REMOVED", "-", cmp.Removed)
		w.writeSpeciesList(&sb, "IMAGE CHANGED", "~", cmp.ImageChanged)
	}

	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	q := report.Query
	fmt.Fprintf(sb, "Location:   %s\n", report.Location)
	fmt.Fprintf(sb, "Coordinate: %g, %g (radius %d km)\n", q.Latitude, q.Longitude, q.RadiusKm)
	fmt.Fprintf(sb, "Photo:      %s\n", q.PhotoVariant)
	fmt.Fprintf(sb, "Date:       %s\n", report.StartedAt.Format(dateLayout))
	if w.verbose {
		fmt.Fprintf(sb, "Run ID:     %s\n", report.ID)
		fmt.Fprintf(sb, "Duration:   %s\n", report.Duration())
	}

	switch {
	case report.Status == model.RunStatusCancelled:
		sb.WriteString("Status:     CANCELLED\n")
	case q.UseSyntheticData:
		sb.WriteString("Status:     Complete (synthetic data)\n")
	default:
		sb.WriteString("Status:     Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.RunReport) {
	w.writeSection(sb, "SUMMARY")
	fmt.Fprintf(sb, "  Specimens: %d\n", report.SpecimenCount)
	fmt.Fprintf(sb, "  Taxa:      %d (max %d)\n", report.TaxonCount, report.Query.MaxSpecies)
	fmt.Fprintf(sb, "  Species:   %d\n", len(report.Species))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSpecies(sb *strings.Builder, report *model.RunReport) {
	w.writeSection(sb, "SPECIES")

	if len(report.Species) == 0 {
		sb.WriteString("  No species found\n\n")
		return
	}

	for i, s := range report.Species {
		fmt.Fprintf(sb, "  [%d] %s\n", i+1, DisplayName(s.Name))
		if sub := Subfamily(s.Name); sub != "" {
			fmt.Fprintf(sb, "      Subfamily: %s\n", sub)
		}
		if w.verbose {
			fmt.Fprintf(sb, "      Taxon:     %s\n", s.Name)
		}
		if s.HasImage() {
			fmt.Fprintf(sb, "      Image:     %s\n", s.ImageURL)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSpeciesList(sb *strings.Builder, title, marker string, species []model.Species) {
	if len(species) == 0 {
		return
	}
	w.writeSection(sb, title)
	for _, s := range species {
		fmt.Fprintf(sb, "  [%s] %s\n", marker, DisplayName(s.Name))
		if w.verbose && s.HasImage() {
			fmt.Fprintf(sb, "      Image: %s\n", s.ImageURL)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by antmaps from AntWeb data\n")
	sb.WriteString("https://www.antweb.org\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
