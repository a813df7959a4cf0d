package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mend/internal/diag"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	severity    diag.Severity
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	errors     []diag.UnifiedError
	fileCount  int
	lastUpdate time.Time
	status     string

	resolveAll   func() tea.Msg
	clearRuntime func() tea.Msg
}

type updateMsg struct {
	errors    []diag.UnifiedError
	fileCount int
}

type resolvedMsg struct {
	result diag.BulkResolutionResult
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.status = "resolving fixable errors..."
			return m, m.resolveAll
		case "c":
			m.status = "cleared runtime errors"
			return m, m.clearRuntime
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.errors = msg.errors
		m.fileCount = msg.fileCount
		m.lastUpdate = time.Now()

		items := []list.Item{}
		for _, e := range m.errors {
			title := string(e.Severity)
			if e.Code != "" {
				title = fmt.Sprintf("%s %s", e.Severity, e.Code)
			}
			if e.HasFix {
				title += " [fixable]"
			}
			items = append(items, item{
				title:    title,
				desc:     fmt.Sprintf("%s:%d:%d %s", e.FilePath, e.Line, e.Character, e.Message),
				severity: e.Severity,
			})
		}
		m.list.SetItems(items)
	case resolvedMsg:
		m.status = fmt.Sprintf("resolved %d/%d fixable errors",
			msg.result.SuccessfulFixes, msg.result.AttemptedFixes)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files | r: resolve  c: clear runtime  q: quit",
		m.lastUpdate.Format("15:04:05"), m.fileCount))

	var errors, warnings int
	for _, e := range m.errors {
		switch e.Severity {
		case diag.SeverityError:
			errors++
		case diag.SeverityWarning:
			warnings++
		}
	}

	var summary string
	if len(m.errors) == 0 {
		summary = successStyle.Render("✅ No diagnostics")
	} else {
		summary = fmt.Sprintf("⚠️  %s | %s",
			errorStyle.Render(fmt.Sprintf("%d Errors", errors)),
			warningStyle.Render(fmt.Sprintf("%d Warnings", warnings)))
	}
	if m.status != "" {
		summary += " | " + statusStyle.Render(m.status)
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Diagnostics Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel(resolveAll, clearRuntime func() tea.Msg) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Unified Errors"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:         l,
		lastUpdate:   time.Now(),
		resolveAll:   resolveAll,
		clearRuntime: clearRuntime,
	}
}
