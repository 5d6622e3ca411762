// Package export renders a board view for download.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/mtakagi/taskboard/internal/model"
)

// viewColumns is the download order: most recently relevant columns first,
// the id last. It intentionally differs from the persisted column order.
var viewColumns = []string{"更新日", "対応状況", "タスク", "更新者", "次アクション", "備考", "ソース", "ID"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Export renders the given records as "csv", "json", or "pdf".
func Export(tasks []model.Task, format string, withTime bool) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(tasks, "", "  ")
	case "csv":
		return exportCSV(tasks, withTime)
	case "pdf":
		return exportPDF(tasks)
	default:
		return nil, fmt.Errorf("unknown format %s", format)
	}
}

func exportCSV(tasks []model.Task, withTime bool) ([]byte, error) {
	layout := "2006-01-02"
	if withTime {
		layout = "2006-01-02 15:04:05"
	}

	var b bytes.Buffer
	b.Write(utf8BOM)
	w := csv.NewWriter(&b)
	if err := w.Write(viewColumns); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		row := []string{
			t.UpdatedAt.Format(layout),
			t.Status.Label(),
			t.Description,
			t.Owner,
			t.NextAction,
			t.Notes,
			t.Source,
			t.ID,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// exportPDF builds a compact status report. Core PDF fonts
// cannot render CJK text, so the report sticks to ids, dates, and counts.
func exportPDF(tasks []model.Task) ([]byte, error) {
	counts := map[model.Status]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task Board Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(8)
	pdf.Cell(0, 6, fmt.Sprintf(
		"Total %d / open %d / in progress %d / closed %d",
		len(tasks),
		counts[model.StatusOpen],
		counts[model.StatusInProgress],
		counts[model.StatusClosed],
	))
	pdf.Ln(10)

	for _, t := range tasks {
		line := fmt.Sprintf("[%s] %s  opened %s  updated %s",
			t.Status, shortID(t.ID),
			t.CreatedAt.Format("2006-01-02"), t.UpdatedAt.Format("2006-01-02"))
		pdf.MultiCell(0, 6, line, "0", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
