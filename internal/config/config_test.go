package config

import (
	"reflect"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"TASKS_CSV", "AUDIT_CSV", "SAVE_WITH_TIME", "REPLY_KEYWORDS", "STALE_DAYS", "USERS", "LISTEN_ADDR", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.TasksCSV != "tasks.csv" || cfg.AuditCSV != "audit.csv" {
		t.Errorf("paths = %q / %q", cfg.TasksCSV, cfg.AuditCSV)
	}
	if !cfg.SaveWithTime {
		t.Error("SaveWithTime should default to true")
	}
	if cfg.StaleDays != 7 {
		t.Errorf("StaleDays = %d, want 7", cfg.StaleDays)
	}
	if len(cfg.ReplyKeywords) == 0 {
		t.Error("default reply keywords missing")
	}
	if cfg.Users != nil {
		t.Errorf("Users = %v, want nil", cfg.Users)
	}
	if cfg.GitHub.Enabled() {
		t.Error("mirror enabled without any GitHub settings")
	}
}

func TestEnvBool_LenientSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true}, {"TRUE", true}, {"Yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"No", false}, {"OFF", false},
		{"banana", true}, // unparseable keeps the default
	}
	for _, tt := range tests {
		t.Setenv("SAVE_WITH_TIME", tt.in)
		if got := FromEnv().SaveWithTime; got != tt.want {
			t.Errorf("SAVE_WITH_TIME=%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvList_TrimsAndDropsEmpties(t *testing.T) {
	t.Setenv("REPLY_KEYWORDS", " 返信待ち , 催促 ,, ")
	got := FromEnv().ReplyKeywords
	want := []string{"返信待ち", "催促"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keywords = %v, want %v", got, want)
	}
}

func TestEnvPairs_Users(t *testing.T) {
	t.Setenv("USERS", "都筑=tokA, 二上=tokB ,broken")
	got := FromEnv().Users
	want := map[string]string{"都筑": "tokA", "二上": "tokB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("users = %v, want %v", got, want)
	}
}

func TestGitHubConfig_Enabled(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	t.Setenv("GITHUB_OWNER", "acme")
	t.Setenv("GITHUB_REPO", "boards")
	t.Setenv("GITHUB_PATH", "tasks.csv")

	cfg := FromEnv()
	if !cfg.GitHub.Enabled() {
		t.Error("mirror should be enabled")
	}
	if cfg.GitHub.Branch != "main" {
		t.Errorf("branch = %q, want main", cfg.GitHub.Branch)
	}
}
