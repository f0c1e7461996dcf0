package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/antmaps/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCoverage(md, report)
	w.writeSpecies(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(cmp *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("antmaps Run Comparison")
	md.PlainText("")

	rows := [][]string{{"Location", "`" + cmp.Location + "`"}}
	if cmp.Previous != nil {
		rows = append(rows, []string{"Previous run", cmp.Previous.FinishedAt.Format(dateLayout)})
	}
	if cmp.Current != nil {
		rows = append(rows, []string{"Current run", cmp.Current.FinishedAt.Format(dateLayout)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if cmp.Unchanged() {
		md.Tip("Both runs delivered the same species.")
		md.PlainText("")
	} else {
		w.writeChangeList(md, "Added", cmp.Added)
		w.writeChangeList(md, "Removed", cmp.Removed)
		w.writeChangeList(md, "Image changed", cmp.ImageChanged)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	q := report.Query

	md.H1("antmaps Species Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Location", "`" + report.Location + "`"},
			{"Coordinate", fmt.Sprintf("%g, %g", q.Latitude, q.Longitude)},
			{"Radius", strconv.Itoa(q.RadiusKm) + " km"},
			{"Photo", q.PhotoVariant.String()},
			{"Date", report.StartedAt.Format(dateLayout)},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(report *model.RunReport) string {
	switch {
	case report.Status == model.RunStatusCancelled:
		return "⚠️ Cancelled"
	case report.Query.UseSyntheticData:
		return "🧪 Synthetic data"
	default:
		return "✅ Complete"
	}
}

// writeCoverage summarizes how many looked-up taxa had an image.
func (w *MarkdownWriter) writeCoverage(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Specimens", strconv.Itoa(report.SpecimenCount)},
			{"Taxa looked up", strconv.Itoa(report.TaxonCount)},
			{"**Species with image**", "**" + strconv.Itoa(report.ImageCount()) + "**"},
		},
	})
	md.PlainText("")

	withImage := report.ImageCount()
	without := report.TaxonCount - withImage
	if report.TaxonCount > 0 && without >= 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Image Coverage"),
			piechart.WithShowData(true),
		)
		if withImage > 0 {
			chart.LabelAndIntValue("With image", uint64(withImage))
		}
		if without > 0 {
			chart.LabelAndIntValue("Without image", uint64(without))
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	if len(report.Species) == 0 {
		md.Note("No species with images were found for this query.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSpecies(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Species")
	md.PlainText("")

	if len(report.Species) == 0 {
		md.PlainText("No species found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Species))
	for i, s := range report.Species {
		image := "-"
		if s.HasImage() {
			image = fmt.Sprintf("[photo](%s)", s.ImageURL)
		}
		subfamily := Subfamily(s.Name)
		if subfamily == "" {
			subfamily = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			"*" + DisplayName(s.Name) + "*",
			subfamily,
			"`" + truncateString(s.Name, 50) + "`",
			image,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Species", "Subfamily", "Taxon", "Image"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeChangeList(md *markdown.Markdown, title string, species []model.Species) {
	if len(species) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	names := make([]string, len(species))
	for i, s := range species {
		names[i] = DisplayName(s.Name) + " (`" + s.Name + "`)"
	}
	md.BulletList(names...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [antmaps](https://github.com/nao1215/antmaps) from [AntWeb](https://www.antweb.org) data*")
}
