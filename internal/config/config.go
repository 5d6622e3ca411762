// Package config reads board settings from the environment. A .env file in
// the working directory is honored when present.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mtakagi/taskboard/internal/store"
)

type Config struct {
	TasksCSV     string
	AuditCSV     string
	SaveWithTime bool

	ReplyKeywords []string
	StaleDays     int
	// FixedOwners always appear in owner pickers, on top of owners already
	// present on the board.
	FixedOwners []string

	// Users maps login name to token. Empty means anonymous access.
	Users map[string]string

	ListenAddr string
	Debug      bool

	GitHub GitHubConfig
}

// GitHubConfig configures the optional mirror of board files.
type GitHubConfig struct {
	Token          string
	Owner          string
	Repo           string
	Branch         string
	APIBase        string
	TasksPath      string
	AuditPath      string
	CommitterEmail string
}

// Enabled reports whether the mirror has everything it needs.
func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Owner != "" && g.Repo != "" && g.TasksPath != ""
}

// Load reads .env (if any) and then the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config purely from the current environment.
func FromEnv() Config {
	return Config{
		TasksCSV:      envString("TASKS_CSV", "tasks.csv"),
		AuditCSV:      envString("AUDIT_CSV", "audit.csv"),
		SaveWithTime:  envBool("SAVE_WITH_TIME", true),
		ReplyKeywords: envList("REPLY_KEYWORDS", store.DefaultKeywords),
		StaleDays:     envInt("STALE_DAYS", store.DefaultStaleDays),
		FixedOwners:   envList("FIXED_OWNERS", nil),
		Users:         envPairs("USERS"),
		ListenAddr:    envString("LISTEN_ADDR", ":8080"),
		Debug:         envBool("DEBUG", false),
		GitHub: GitHubConfig{
			Token:          os.Getenv("GITHUB_TOKEN"),
			Owner:          os.Getenv("GITHUB_OWNER"),
			Repo:           os.Getenv("GITHUB_REPO"),
			Branch:         envString("GITHUB_BRANCH", "main"),
			APIBase:        os.Getenv("GITHUB_API_BASE"),
			TasksPath:      os.Getenv("GITHUB_PATH"),
			AuditPath:      os.Getenv("GITHUB_PATH_AUDIT"),
			CommitterEmail: envString("COMMITTER_EMAIL", "noreply@example.com"),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envBool parses booleans the way the board's settings files have always
// been written: 1/true/yes/on and 0/false/no/off, any case.
func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// envPairs parses "alice=tok1,bob=tok2" maps.
func envPairs(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	pairs := make(map[string]string)
	for _, item := range strings.Split(v, ",") {
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.TrimSpace(kv[0])
		token := strings.TrimSpace(kv[1])
		if name != "" && token != "" {
			pairs[name] = token
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}
