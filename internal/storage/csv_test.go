package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mtakagi/taskboard/internal/model"
)

var testTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local)

func testTasks() []model.Task {
	return []model.Task{
		{
			ID:          "a3c1e6a8-0000-4000-8000-000000000001",
			CreatedAt:   testTime,
			UpdatedAt:   testTime.Add(24 * time.Hour),
			Description: "見積もりを送付する",
			Status:      model.StatusInProgress,
			Owner:       "都筑",
			NextAction:  "返信待ち",
			Notes:       "急ぎではない",
			Source:      "https://example.com/thread/42",
		},
		{
			ID:          "a3c1e6a8-0000-4000-8000-000000000002",
			CreatedAt:   testTime,
			UpdatedAt:   testTime,
			Description: "請求書の確認",
			Status:      model.StatusClosed,
			Owner:       "二上",
		},
	}
}

func TestCSVFile_RoundTrip(t *testing.T) {
	f := NewCSVFile(filepath.Join(t.TempDir(), "tasks.csv"), true)
	want := testTasks()

	if err := f.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Description != w.Description || g.Status != w.Status ||
			g.Owner != w.Owner || g.NextAction != w.NextAction || g.Notes != w.Notes ||
			g.Source != w.Source {
			t.Errorf("record %d = %+v, want %+v", i, g, w)
		}
		if !g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) {
			t.Errorf("record %d dates = %v/%v, want %v/%v", i, g.CreatedAt, g.UpdatedAt, w.CreatedAt, w.UpdatedAt)
		}
	}
}

func TestCSVFile_DateOnlyMode(t *testing.T) {
	f := NewCSVFile(filepath.Join(t.TempDir(), "tasks.csv"), false)
	if err := f.Save(testTasks()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "09:30:00") {
		t.Error("date-only mode leaked time of day")
	}
}

func TestCSVFile_WritesBOMAndLabels(t *testing.T) {
	f := NewCSVFile(filepath.Join(t.TempDir(), "tasks.csv"), true)
	if err := f.Save(testTasks()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Error("missing UTF-8 BOM")
	}
	if !strings.Contains(string(data), "対応中") || !strings.Contains(string(data), "クローズ") {
		t.Error("statuses not persisted as display labels")
	}
}

func TestCSVFile_SanitizesFormulaCells(t *testing.T) {
	f := NewCSVFile(filepath.Join(t.TempDir(), "tasks.csv"), true)
	tasks := []model.Task{{
		ID:          "x",
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
		Description: "=SUM(A1:A9)",
		Status:      model.StatusOpen,
		Notes:       "@here",
	}}

	if err := f.Save(tasks); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _ := os.ReadFile(f.Path)
	if !strings.Contains(string(data), "'=SUM(A1:A9)") {
		t.Error("formula cell written without guard apostrophe")
	}

	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got[0].Description != "=SUM(A1:A9)" || got[0].Notes != "@here" {
		t.Errorf("guard apostrophe not stripped on load: %+v", got[0])
	}
}

func TestCSVFile_MissingFileIsEmptyBoard(t *testing.T) {
	f := NewCSVFile(filepath.Join(t.TempDir(), "nope.csv"), true)
	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestCSVFile_NormalizesHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.csv")
	raw := "ID,起票日,最終更新,タスク,対応状況,担当者,次アクション,備考,ソース\n" +
		",2025-06-01,2025-06-02,タスクA,対応中,都筑,none,nan,-\n" +
		"dup,2025-06-01,2025-06-02,タスクB,未対応,,,,\n" +
		"dup,2025-06-01,bogus-date,タスクC,謎ステータス,,,,\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := NewCSVFile(path, true)
	f.Clock = func() time.Time { return testTime }
	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}

	if got[0].ID == "" {
		t.Error("empty ID not re-minted")
	}
	if got[0].NextAction != "" || got[0].Notes != "" || got[0].Source != "" {
		t.Errorf("missing tokens not scrubbed: %+v", got[0])
	}
	if got[0].UpdatedAt.Format("2006-01-02") != "2025-06-02" {
		t.Errorf("aliased 最終更新 column not read: %v", got[0].UpdatedAt)
	}

	if got[2].ID == "dup" || got[2].ID == got[1].ID {
		t.Errorf("duplicate ID kept: %q", got[2].ID)
	}
	if got[2].Status != model.StatusOpen {
		t.Errorf("unknown status not defaulted: %q", got[2].Status)
	}
	if !got[2].UpdatedAt.Equal(got[2].CreatedAt) && got[2].UpdatedAt.Before(got[2].CreatedAt) {
		t.Error("updated_at ended up before created_at")
	}
}
