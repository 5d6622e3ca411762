package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mtakagi/taskboard/internal/audit"
	"github.com/mtakagi/taskboard/internal/board"
	"github.com/mtakagi/taskboard/internal/config"
	"github.com/mtakagi/taskboard/internal/mirror"
	"github.com/mtakagi/taskboard/internal/model"
	"github.com/mtakagi/taskboard/internal/server"
	"github.com/mtakagi/taskboard/internal/storage"
	"github.com/mtakagi/taskboard/internal/store"
	"github.com/mtakagi/taskboard/internal/tui"
)

var (
	flagCSV    string
	flagSQLite bool
	flagDB     string
	flagUser   string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Single-user task board with reply-chasing close candidates",
	Long: `Track tasks through open, in progress and closed, persisted to a CSV
file (or SQLite) that stays hand-editable. Flags tasks that have been waiting
on a reply long enough to close, and can mirror the board to a GitHub repo.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, b, logger, err := openBoard()
		if err != nil {
			return err
		}
		e := echo.New()
		e.HideBanner = true
		server.Register(e, b, cfg.Users, logger)
		logger.WithField("addr", cfg.ListenAddr).Info("starting server")
		return e.Start(cfg.ListenAddr)
	},
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive board",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		return tui.Run(b, currentUser())
	},
}

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Create a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		status := model.StatusOpen
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			s, ok := model.ParseStatus(v)
			if !ok {
				return fmt.Errorf("unknown status %q", v)
			}
			status = s
		}
		owner, _ := cmd.Flags().GetString("owner")
		next, _ := cmd.Flags().GetString("next")
		notes, _ := cmd.Flags().GetString("notes")
		source, _ := cmd.Flags().GetString("source")

		task, err := b.Add(context.Background(), currentUser(), store.AddInput{
			Description: strings.Join(args, " "),
			Status:      status,
			Owner:       owner,
			NextAction:  next,
			Notes:       notes,
			Source:      source,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", task.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		var f store.Filter
		if v, _ := cmd.Flags().GetString("status"); v != "" {
			s, ok := model.ParseStatus(v)
			if !ok {
				return fmt.Errorf("unknown status %q", v)
			}
			f.Status = &s
		}
		if v, _ := cmd.Flags().GetStringSlice("owner"); len(v) > 0 {
			f.Owners = v
		}
		f.Keyword, _ = cmd.Flags().GetString("search")

		tasks := b.Tasks(f)
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := b.Export(f, "json")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		printTaskTable(tasks)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		t, err := b.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:          %s\n", t.ID)
		fmt.Printf("Description: %s\n", t.Description)
		fmt.Printf("Status:      %s (%s)\n", t.Status, t.Status.Label())
		fmt.Printf("Owner:       %s\n", t.Owner)
		fmt.Printf("Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:     %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Next action: %s\n", t.NextAction)
		fmt.Printf("Notes:       %s\n", t.Notes)
		fmt.Printf("Source:      %s\n", t.Source)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		var ch store.Changes
		flags := cmd.Flags()
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			ch.Description = &v
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			s, ok := model.ParseStatus(v)
			if !ok {
				return fmt.Errorf("unknown status %q", v)
			}
			ch.Status = &s
		}
		if flags.Changed("owner") {
			v, _ := flags.GetString("owner")
			ch.Owner = &v
		}
		if flags.Changed("next") {
			v, _ := flags.GetString("next")
			ch.NextAction = &v
		}
		if flags.Changed("notes") {
			v, _ := flags.GetString("notes")
			ch.Notes = &v
		}
		if flags.Changed("source") {
			v, _ := flags.GetString("source")
			ch.Source = &v
		}

		task, err := b.Update(context.Background(), currentUser(), args[0], ch)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", task.ID)
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <id>...",
	Short: "Close one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		closed, err := b.Close(context.Background(), currentUser(), args...)
		if err != nil {
			return err
		}
		fmt.Printf("Closed %d task(s)\n", len(closed))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		if err := b.Delete(context.Background(), currentUser(), args...); err != nil {
			return err
		}
		fmt.Printf("Deleted %d task(s)\n", len(args))
		return nil
	},
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Show tasks waiting on a reply long enough to close",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		tasks := b.Candidates(time.Now())
		if len(tasks) == 0 {
			fmt.Println("No close candidates")
			return nil
		}
		printTaskTable(tasks)
		if yes, _ := cmd.Flags().GetBool("close"); yes {
			ids := make([]string, len(tasks))
			for i, t := range tasks {
				ids[i] = t.ID
			}
			if _, err := b.Close(context.Background(), currentUser(), ids...); err != nil {
				return err
			}
			fmt.Printf("Closed %d task(s)\n", len(ids))
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show board counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		s := b.Summary()
		fmt.Printf("Total:         %d\n", s.Total)
		for _, st := range model.Statuses() {
			fmt.Printf("%-14s %d\n", st.Label()+":", s.ByStatus[st])
		}
		fmt.Printf("Waiting reply: %d\n", s.WaitingReply)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the board as csv, json or pdf",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		out, err := b.Export(store.Filter{}, format)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty board file",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, b, _, err := openBoard()
		if err != nil {
			return err
		}
		// Saving an empty snapshot writes the header so the file is
		// spreadsheet-ready from the start.
		if err := b.Save(context.Background(), currentUser()); err != nil {
			return err
		}
		fmt.Println("Board initialized")
		return nil
	},
}

// openBoard wires the configured backend, audit log and mirror into a loaded board.
func openBoard() (config.Config, *board.Board, *log.Logger, error) {
	cfg := config.Load()

	logger := log.New()
	logger.SetOutput(os.Stderr)
	if flagDebug || cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if flagCSV != "" {
		cfg.TasksCSV = flagCSV
	}

	var backend storage.Backend
	var localTasks string
	if flagSQLite || flagDB != "" {
		path := flagDB
		if path == "" {
			var err error
			if path, err = storage.DefaultDBPath(); err != nil {
				return cfg, nil, nil, err
			}
		}
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return cfg, nil, nil, err
		}
		backend = db
	} else {
		backend = storage.NewCSVFile(cfg.TasksCSV, cfg.SaveWithTime)
		localTasks = cfg.TasksCSV
	}

	opts := board.Options{
		Audit:          audit.NewLog(cfg.AuditCSV),
		LocalTasksPath: localTasks,
		LocalAuditPath: cfg.AuditCSV,
		FixedOwners:    cfg.FixedOwners,
		Rule: store.CandidateRule{
			Keywords:  cfg.ReplyKeywords,
			StaleDays: cfg.StaleDays,
		},
		SaveWithTime: cfg.SaveWithTime,
		Logger:       logger,
	}
	if cfg.GitHub.Enabled() && localTasks != "" {
		opts.Mirror = &mirror.GitHub{
			Token:          cfg.GitHub.Token,
			Owner:          cfg.GitHub.Owner,
			Repo:           cfg.GitHub.Repo,
			Branch:         cfg.GitHub.Branch,
			APIBase:        cfg.GitHub.APIBase,
			CommitterEmail: cfg.GitHub.CommitterEmail,
		}
		opts.MirrorTasksPath = cfg.GitHub.TasksPath
		opts.MirrorAuditPath = cfg.GitHub.AuditPath
	}

	b := board.New(store.New(), backend, opts)
	if err := b.Load(); err != nil {
		return cfg, nil, nil, err
	}
	return cfg, b, logger, nil
}

func currentUser() string {
	if flagUser != "" {
		return flagUser
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func printTaskTable(tasks []model.Task) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tSTATUS\tOWNER\tDESCRIPTION\tNEXT ACTION")
	for _, t := range tasks {
		id := t.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id, t.UpdatedAt.Format("2006-01-02"), t.Status, t.Owner, t.Description, t.NextAction)
	}
	w.Flush()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCSV, "csv", "", "path to the tasks CSV file (overrides TASKS_CSV)")
	rootCmd.PersistentFlags().BoolVar(&flagSQLite, "sqlite", false, "use the SQLite backend instead of CSV")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the SQLite database (implies --sqlite)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "user name recorded in the audit trail")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	addCmd.Flags().String("status", "", "initial status (open, in_progress, closed or the Japanese label)")
	addCmd.Flags().String("owner", "", "owner of the task")
	addCmd.Flags().String("next", "", "next action")
	addCmd.Flags().String("notes", "", "notes")
	addCmd.Flags().String("source", "", "where the task came from")

	listCmd.Flags().String("status", "", "filter by status")
	listCmd.Flags().StringSlice("owner", nil, "filter by owner (repeatable)")
	listCmd.Flags().String("search", "", "keyword across description, next action and notes")
	listCmd.Flags().Bool("json", false, "print JSON instead of a table")

	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().String("status", "", "new status")
	updateCmd.Flags().String("owner", "", "new owner")
	updateCmd.Flags().String("next", "", "new next action")
	updateCmd.Flags().String("notes", "", "new notes")
	updateCmd.Flags().String("source", "", "new source")

	candidatesCmd.Flags().Bool("close", false, "close every candidate after listing")

	exportCmd.Flags().String("format", "csv", "csv, json or pdf")
	exportCmd.Flags().String("out", "", "write to file instead of stdout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
