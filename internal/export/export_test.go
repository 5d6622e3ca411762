package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

func sampleTasks() []model.Task {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local)
	return []model.Task{
		{ID: "11111111-aaaa-4bbb-8ccc-000000000001", CreatedAt: at, UpdatedAt: at,
			Description: "見積もり送付", Status: model.StatusInProgress, Owner: "都筑", NextAction: "返信待ち"},
		{ID: "11111111-aaaa-4bbb-8ccc-000000000002", CreatedAt: at, UpdatedAt: at,
			Description: "請求書処理", Status: model.StatusClosed, Owner: "二上"},
	}
}

func TestExport_CSV(t *testing.T) {
	out, err := Export(sampleTasks(), "csv", true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(out, utf8BOM) {
		t.Error("missing BOM")
	}
	s := string(out)
	if !strings.Contains(s, "更新日,対応状況,タスク") {
		t.Error("view header missing")
	}
	if !strings.Contains(s, "見積もり送付") || !strings.Contains(s, "対応中") {
		t.Errorf("rows missing:\n%s", s)
	}
	if !strings.Contains(s, "2025-06-01 09:30:00") {
		t.Error("timestamps lost time of day")
	}
}

func TestExport_CSVDateOnly(t *testing.T) {
	out, err := Export(sampleTasks(), "csv", false)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(string(out), "09:30:00") {
		t.Error("date-only export kept time of day")
	}
}

func TestExport_JSON(t *testing.T) {
	out, err := Export(sampleTasks(), "json", true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var decoded []model.Task
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Status != model.StatusInProgress {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestExport_PDF(t *testing.T) {
	out, err := Export(sampleTasks(), "pdf", true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if _, err := Export(nil, "xlsx", true); err == nil {
		t.Error("expected error for unknown format")
	}
}
