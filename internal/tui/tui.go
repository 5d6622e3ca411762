// Package tui provides an interactive terminal UI for taskboard using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mtakagi/taskboard/internal/board"
	"github.com/mtakagi/taskboard/internal/model"
	"github.com/mtakagi/taskboard/internal/store"
)

// ViewMode represents the current view state.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// InputMode represents what kind of text input is active.
type InputMode int

const (
	InputNone       InputMode = iota
	InputSearch               // Entering search text
	InputOwner                // Entering owner filter
	InputCreate               // Entering new task description
	InputNextAction           // Editing next action of selected task
	InputNotes                // Editing notes of selected task
)

// Status icons
const (
	iconOpen       = "○"
	iconInProgress = "◐"
	iconClosed     = "●"
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	board *board.Board
	user  string

	tasks      []model.Task // all tasks from the board
	filtered   []model.Task // tasks after filtering
	candidates map[string]bool
	cursor     int
	viewMode   ViewMode

	// Filter state
	filterStatuses map[model.Status]bool // which statuses to show
	filterOwner    string
	filterSearch   string
	candidatesOnly bool

	// Input state
	inputMode  InputMode
	inputText  string
	inputLabel string

	// UI state
	width   int
	height  int
	err     error
	message string // temporary status message
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusOpen:       lipgloss.Color("252"),
		model.StatusInProgress: lipgloss.Color("214"),
		model.StatusClosed:     lipgloss.Color("42"),
	}

	candidateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// Content area padding
	contentPadding = 2
)

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusOpen:
		return iconOpen
	case model.StatusInProgress:
		return iconInProgress
	case model.StatusClosed:
		return iconClosed
	default:
		return "?"
	}
}

// New creates a new TUI model bound to the given board.
// The user name is recorded on mutations for the audit trail.
func New(b *board.Board, user string) Model {
	// Default: hide closed tasks
	statuses := map[model.Status]bool{
		model.StatusOpen:       true,
		model.StatusInProgress: true,
		model.StatusClosed:     false,
	}
	return Model{
		board:          b,
		user:           user,
		viewMode:       ViewList,
		filterStatuses: statuses,
	}
}

// Messages
type tasksMsg struct {
	tasks      []model.Task
	candidates []model.Task
}

type actionMsg struct {
	message string
	err     error
}

// loadTasks snapshots the board and its current close candidates.
func (m Model) loadTasks() tea.Cmd {
	return func() tea.Msg {
		return tasksMsg{
			tasks:      m.board.Tasks(store.Filter{}),
			candidates: m.board.Candidates(time.Now()),
		}
	}
}

// applyFilters filters tasks based on current filter state.
func (m *Model) applyFilters() {
	m.filtered = nil
	for _, t := range m.tasks {
		if !m.filterStatuses[t.Status] {
			continue
		}
		if m.candidatesOnly && !m.candidates[t.ID] {
			continue
		}
		if m.filterOwner != "" && !strings.Contains(strings.ToLower(t.Owner), strings.ToLower(m.filterOwner)) {
			continue
		}
		if m.filterSearch != "" {
			search := strings.ToLower(m.filterSearch)
			if !strings.Contains(strings.ToLower(t.Description), search) &&
				!strings.Contains(strings.ToLower(t.NextAction), search) &&
				!strings.Contains(strings.ToLower(t.Notes), search) &&
				!strings.Contains(strings.ToLower(t.ID), search) {
				continue
			}
		}
		m.filtered = append(m.filtered, t)
	}
	// Adjust cursor
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadTasks()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Clear message on any key
		m.message = ""
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tasksMsg:
		m.tasks = msg.tasks
		m.candidates = make(map[string]bool, len(msg.candidates))
		for _, t := range msg.candidates {
			m.candidates[t.ID] = true
		}
		m.applyFilters()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.message = msg.message
		}
		return m, m.loadTasks()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle input mode first
	if m.inputMode != InputNone {
		return m.handleInputKey(msg)
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputMode = InputNone
		m.inputText = ""
		return m, nil

	case "enter":
		return m.submitInput()

	case "backspace":
		if len(m.inputText) > 0 {
			runes := []rune(m.inputText)
			m.inputText = string(runes[:len(runes)-1])
			m.applyLiveFilter()
		}

	default:
		// Add runes if printable; KeyRunes carries pasted and IME input
		if msg.Type == tea.KeyRunes {
			m.inputText += string(msg.Runes)
			m.applyLiveFilter()
		} else if msg.Type == tea.KeySpace {
			m.inputText += " "
			m.applyLiveFilter()
		}
	}
	return m, nil
}

// applyLiveFilter refreshes the list while typing a filter.
func (m *Model) applyLiveFilter() {
	switch m.inputMode {
	case InputSearch:
		m.filterSearch = m.inputText
		m.applyFilters()
	case InputOwner:
		m.filterOwner = m.inputText
		m.applyFilters()
	}
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.inputText)
	mode := m.inputMode
	m.inputMode = InputNone
	m.inputText = ""

	// Inputs that don't require an existing task
	switch mode {
	case InputSearch:
		m.filterSearch = text
		m.applyFilters()
		return m, nil

	case InputOwner:
		m.filterOwner = text
		m.applyFilters()
		return m, nil

	case InputCreate:
		if text == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			task, err := m.board.Add(context.Background(), m.user, store.AddInput{
				Description: text,
				Status:      model.StatusOpen,
				Owner:       m.user,
			})
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: fmt.Sprintf("Added %s", shortID(task.ID))}
		}
	}

	// Remaining inputs require an existing task
	if len(m.filtered) == 0 {
		return m, nil
	}
	task := m.filtered[m.cursor]

	switch mode {
	case InputNextAction:
		return m, func() tea.Msg {
			if _, err := m.board.Update(context.Background(), m.user, task.ID, store.Changes{NextAction: &text}); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: fmt.Sprintf("Updated %s", shortID(task.ID))}
		}

	case InputNotes:
		return m, func() tea.Msg {
			if _, err := m.board.Update(context.Background(), m.user, task.ID, store.Changes{Notes: &text}); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: fmt.Sprintf("Updated %s", shortID(task.ID))}
		}
	}

	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		m.cursor = max(0, len(m.filtered)-1)

	case "enter", "l":
		if len(m.filtered) > 0 {
			m.viewMode = ViewDetail
		}

	// Actions
	case "s":
		return m.doStart()
	case "x":
		return m.doClose()
	case "D":
		return m.doDelete()
	case "e":
		return m.startInput(InputNextAction, "Next action: ")
	case "N":
		return m.startInput(InputNotes, "Notes: ")
	case "n":
		return m.startInput(InputCreate, "New task: ")

	// Filtering
	case "/":
		return m.startInput(InputSearch, "Search: ")
	case "o":
		return m.startInput(InputOwner, "Owner: ")
	case "1":
		m.filterStatuses[model.StatusOpen] = !m.filterStatuses[model.StatusOpen]
		m.applyFilters()
	case "2":
		m.filterStatuses[model.StatusInProgress] = !m.filterStatuses[model.StatusInProgress]
		m.applyFilters()
	case "3":
		m.filterStatuses[model.StatusClosed] = !m.filterStatuses[model.StatusClosed]
		m.applyFilters()
	case "0":
		// Show all
		for s := range m.filterStatuses {
			m.filterStatuses[s] = true
		}
		m.applyFilters()
	case "w":
		// Toggle: only tasks waiting on a reply long enough to close
		m.candidatesOnly = !m.candidatesOnly
		if m.candidatesOnly {
			m.filterStatuses[model.StatusInProgress] = true
		}
		m.applyFilters()

	case "esc":
		// If filters are set, clear them; otherwise quit
		if m.filterSearch != "" || m.filterOwner != "" || m.candidatesOnly {
			m.filterSearch = ""
			m.filterOwner = ""
			m.candidatesOnly = false
			m.applyFilters()
		} else {
			return m, tea.Quit
		}

	case "r":
		return m, m.loadTasks()
	}

	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc", "h", "backspace":
		m.viewMode = ViewList

	// Actions work in detail view too
	case "s":
		return m.doStart()
	case "x":
		return m.doClose()
	case "e":
		return m.startInput(InputNextAction, "Next action: ")
	case "N":
		return m.startInput(InputNotes, "Notes: ")

	case "r":
		return m, m.loadTasks()
	}

	return m, nil
}

func (m Model) startInput(mode InputMode, label string) (Model, tea.Cmd) {
	m.inputMode = mode
	m.inputLabel = label
	m.inputText = ""
	return m, nil
}

func (m Model) doStart() (Model, tea.Cmd) {
	if len(m.filtered) == 0 {
		return m, nil
	}
	task := m.filtered[m.cursor]
	if task.Status != model.StatusOpen {
		m.message = "Can only start open tasks"
		return m, nil
	}
	status := model.StatusInProgress
	return m, func() tea.Msg {
		if _, err := m.board.Update(context.Background(), m.user, task.ID, store.Changes{Status: &status}); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{message: fmt.Sprintf("Started %s", shortID(task.ID))}
	}
}

func (m Model) doClose() (Model, tea.Cmd) {
	if len(m.filtered) == 0 {
		return m, nil
	}
	task := m.filtered[m.cursor]
	if task.Status == model.StatusClosed {
		m.message = "Already closed"
		return m, nil
	}
	return m, func() tea.Msg {
		if _, err := m.board.Close(context.Background(), m.user, task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{message: fmt.Sprintf("Closed %s", shortID(task.ID))}
	}
}

func (m Model) doDelete() (Model, tea.Cmd) {
	if len(m.filtered) == 0 {
		return m, nil
	}
	task := m.filtered[m.cursor]
	return m, func() tea.Msg {
		if err := m.board.Delete(context.Background(), m.user, task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{message: fmt.Sprintf("Deleted %s", shortID(task.ID))}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	switch m.viewMode {
	case ViewList:
		b.WriteString(m.listView())
	case ViewDetail:
		b.WriteString(m.detailView())
	}

	// Input line
	if m.inputMode != InputNone {
		b.WriteString("\n")
		b.WriteString(inputStyle.Render(m.inputLabel + m.inputText + "█"))
	}

	// Status message
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	} else if m.message != "" {
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) listView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("taskboard"))
	b.WriteString(fmt.Sprintf("  %d/%d tasks", len(m.filtered), len(m.tasks)))

	filters := m.activeFiltersString()
	if filters != "" {
		b.WriteString("  ")
		b.WriteString(filterStyle.Render(filters))
	}
	b.WriteString("\n\n")

	// Header (2 lines) + footer (3 lines) leave the rest for rows
	rowsHeight := m.height - 8
	if rowsHeight < 5 {
		rowsHeight = 15
	}

	if len(m.filtered) == 0 {
		b.WriteString("No tasks match filters\n")
	} else {
		// Keep the cursor in the visible window
		start := 0
		if m.cursor >= rowsHeight {
			start = m.cursor - rowsHeight + 1
		}
		end := min(start+rowsHeight, len(m.filtered))

		for i := start; i < end; i++ {
			b.WriteString(m.renderRow(m.filtered[i], i == m.cursor))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k move  enter detail  n new  s start  x close  e next-action  N notes  D delete"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("/ search  o owner  1/2/3 status  w stale  0 all  r reload  q quit"))

	return b.String()
}

func (m Model) renderRow(t model.Task, selected bool) string {
	icon := statusIcon(t.Status)
	marker := " "
	if m.candidates[t.ID] {
		marker = candidateStyle.Render("!")
	}

	desc := t.Description
	maxDesc := m.width - 40
	if maxDesc < 20 {
		maxDesc = 40
	}
	if lipgloss.Width(desc) > maxDesc {
		desc = truncate(desc, maxDesc-1) + "…"
	}

	owner := t.Owner
	if owner == "" {
		owner = "-"
	}

	row := fmt.Sprintf("%s %s %s  %s  %-8s  %s",
		marker, icon, shortID(t.ID), t.UpdatedAt.Format("2006-01-02"), owner, desc)

	if selected {
		return selectedRowStyle.Render("> " + row)
	}
	return "  " + lipgloss.NewStyle().Foreground(statusColors[t.Status]).Render(row)
}

func (m Model) detailView() string {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return "No task selected"
	}
	t := m.filtered[m.cursor]

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Description))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			value = dimStyle.Render("-")
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	field("ID:         ", t.ID)
	field("Status:     ", fmt.Sprintf("%s %s (%s)", statusIcon(t.Status), t.Status, t.Status.Label()))
	field("Owner:      ", t.Owner)
	field("Created:    ", t.CreatedAt.Format("2006-01-02 15:04"))
	field("Updated:    ", t.UpdatedAt.Format("2006-01-02 15:04"))
	field("Next action:", t.NextAction)
	field("Notes:      ", t.Notes)
	field("Source:     ", t.Source)

	if m.candidates[t.ID] {
		b.WriteString("\n")
		b.WriteString(candidateStyle.Render("Waiting on a reply and stale: close candidate"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("esc back  s start  x close  e next-action  N notes  q quit"))

	return b.String()
}

func (m Model) activeFiltersString() string {
	var parts []string

	var shown []string
	for _, s := range model.Statuses() {
		if m.filterStatuses[s] {
			shown = append(shown, string(s))
		}
	}
	if len(shown) != len(model.Statuses()) {
		parts = append(parts, "status:"+strings.Join(shown, ","))
	}
	if m.filterOwner != "" {
		parts = append(parts, "owner:"+m.filterOwner)
	}
	if m.filterSearch != "" {
		parts = append(parts, "search:"+m.filterSearch)
	}
	if m.candidatesOnly {
		parts = append(parts, "stale-only")
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String()
}

// Run starts the TUI program and blocks until it exits.
func Run(b *board.Board, user string) error {
	p := tea.NewProgram(New(b, user), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
