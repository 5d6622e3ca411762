package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

// Board files keep the column names the tool has always used.
var csvColumns = []string{"ID", "起票日", "更新日", "タスク", "対応状況", "更新者", "次アクション", "備考", "ソース"}

// columnAliases maps header spellings seen in hand-edited files onto the
// canonical names.
var columnAliases = map[string]string{
	"更新":   "更新日",
	"最終更新": "更新日",
	"起票":   "起票日",
	"作成日":  "起票日",
	"担当":   "更新者",
	"担当者":  "更新者",
}

// missingTokens are cell values that mean "empty" in files that passed
// through spreadsheets.
var missingTokens = map[string]bool{
	"": true, "none": true, "null": true, "nan": true,
	"na": true, "n/a": true, "-": true, "—": true,
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVFile persists the board as a UTF-8 (BOM) CSV, one row per record.
type CSVFile struct {
	Path string
	// SaveWithTime keeps the time of day in persisted timestamps;
	// otherwise dates only.
	SaveWithTime bool
	// Clock supplies "now" for autofilling unparseable dates on load.
	// Defaults to time.Now.
	Clock func() time.Time
}

func NewCSVFile(path string, withTime bool) *CSVFile {
	return &CSVFile{Path: path, SaveWithTime: withTime, Clock: time.Now}
}

func (f *CSVFile) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now()
}

// Load reads and normalizes the board file. A missing file is an empty
// board, not an error. Normalization repairs what spreadsheets and hand
// edits break: header aliases, missing-value tokens, empty or duplicate
// IDs (re-minted), unparseable dates (autofilled with now).
func (f *CSVFile) Load() ([]model.Task, error) {
	file, err := os.Open(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open board file: %w", err)
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(stripBOM(file))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse board file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.ReplaceAll(h, "　", " "))
		if canonical, ok := columnAliases[h]; ok {
			h = canonical
		}
		cols[h] = i
	}

	seen := make(map[string]bool, len(rows)-1)
	tasks := make([]model.Task, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return cleanCell(row[i])
		}

		id := strings.TrimSpace(cell("ID"))
		if id == "" || seen[id] {
			id = model.NewID()
		}
		seen[id] = true

		status, ok := model.ParseStatus(cell("対応状況"))
		if !ok {
			status = model.StatusOpen
		}

		created := f.parseTime(cell("起票日"))
		updated := f.parseTime(cell("更新日"))
		if updated.Before(created) {
			updated = created
		}

		tasks = append(tasks, model.Task{
			ID:          id,
			CreatedAt:   created,
			UpdatedAt:   updated,
			Description: cell("タスク"),
			Status:      status,
			Owner:       cell("更新者"),
			NextAction:  cell("次アクション"),
			Notes:       cell("備考"),
			Source:      cell("ソース"),
		})
	}
	return tasks, nil
}

// Save rewrites the whole board file: BOM, header, one row per record.
func (f *CSVFile) Save(tasks []model.Task) error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("failed to create board file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write board file: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, t := range tasks {
		row := []string{
			t.ID,
			f.formatTime(t.CreatedAt),
			f.formatTime(t.UpdatedAt),
			sanitizeCell(t.Description),
			t.Status.Label(),
			sanitizeCell(t.Owner),
			sanitizeCell(t.NextAction),
			sanitizeCell(t.Notes),
			sanitizeCell(t.Source),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush board file: %w", err)
	}
	return file.Close()
}

func (f *CSVFile) parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{timestampLayout, dateLayout, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return f.now()
}

func (f *CSVFile) formatTime(t time.Time) string {
	if t.IsZero() {
		t = f.now()
	}
	if f.SaveWithTime {
		return t.Format(timestampLayout)
	}
	return t.Format(dateLayout)
}

// Cells starting with a formula character are written with a leading
// apostrophe so spreadsheets treat them as text.
const hazardPrefixes = "=+-@"

func sanitizeCell(s string) string {
	if s != "" && strings.ContainsRune(hazardPrefixes, rune(s[0])) {
		return "'" + s
	}
	return s
}

func cleanCell(s string) string {
	if len(s) > 1 && s[0] == '\'' && strings.ContainsRune(hazardPrefixes, rune(s[1])) {
		s = s[1:]
	}
	if missingTokens[strings.ToLower(strings.TrimSpace(s))] {
		return ""
	}
	return s
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(3)
	}
	return br
}
