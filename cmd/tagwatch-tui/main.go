// tagwatch-tui browses a tagwatch run report in the terminal.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tagwatch/tagwatch/pkg/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0087D7")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	impactStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#0087D7")).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	containersView view = iota
	changesView
	impactView
)

const viewCount = 3

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Up       key.Binding
	Down     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Up, k.Down, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.ShiftTab}, {k.Up, k.Down}, {k.Quit}}
}

type model struct {
	rpt            *report.Report
	currentView    view
	containerTable table.Model
	detail         viewport.Model
	help           help.Model
	keys           keyMap
	width          int
	height         int
}

func initialModel(rpt *report.Report) model {
	columns := []table.Column{
		{Title: "Container", Width: 12},
		{Title: "Name", Width: 24},
		{Title: "Version", Width: 10},
		{Title: "Changes", Width: 8},
		{Title: "Impact", Width: 10},
	}

	rows := make([]table.Row, 0, len(rpt.Containers))
	for _, c := range rpt.Containers {
		rows = append(rows, table.Row{
			c.PublicID,
			c.Name,
			versionCell(c),
			fmt.Sprintf("%d", c.Changes.Total()),
			impactCell(c),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#0087D7")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#0087D7")).
		Bold(false)
	t.SetStyles(s)

	return model{
		rpt:            rpt,
		currentView:    containersView,
		containerTable: t,
		detail:         viewport.New(80, 16),
		help:           help.New(),
		keys:           keys,
	}
}

func versionCell(c report.ContainerReport) string {
	switch {
	case c.Error != "":
		return "error"
	case c.FirstRun:
		return c.NewVersionID + " *"
	case c.OldVersionID == "":
		return c.NewVersionID
	case c.Rollback:
		return c.OldVersionID + " ! " + c.NewVersionID
	default:
		return c.OldVersionID + " > " + c.NewVersionID
	}
}

func impactCell(c report.ContainerReport) string {
	if c.Impacted {
		return "GA IMPACT"
	}
	return "-"
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.detail.Width = msg.Width - 8
		if msg.Height > 12 {
			m.detail.Height = msg.Height - 10
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount
			m.refreshDetail()

		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + viewCount - 1) % viewCount
			m.refreshDetail()
		}
	}

	switch m.currentView {
	case containersView:
		m.containerTable, cmd = m.containerTable.Update(msg)
		cmds = append(cmds, cmd)
	default:
		m.detail, cmd = m.detail.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) selected() *report.ContainerReport {
	i := m.containerTable.Cursor()
	if i < 0 || i >= len(m.rpt.Containers) {
		return nil
	}
	return &m.rpt.Containers[i]
}

func (m *model) refreshDetail() {
	c := m.selected()
	if c == nil {
		m.detail.SetContent("No container selected")
		return
	}
	switch m.currentView {
	case changesView:
		m.detail.SetContent(renderChanges(c))
	case impactView:
		m.detail.SetContent(renderImpact(c))
	}
	m.detail.GotoTop()
}

func renderChanges(c *report.ContainerReport) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Changes in %s (%s -> %s)\n\n", c.PublicID, c.OldVersionID, c.NewVersionID)

	sections := []struct {
		name  string
		delta report.EntityChanges
	}{
		{"Tags", c.Changes.Tags},
		{"Variables", c.Changes.Variables},
		{"Triggers", c.Changes.Triggers},
		{"Clients", c.Changes.Clients},
		{"Transformations", c.Changes.Transformations},
	}
	for _, section := range sections {
		total := len(section.delta.Added) + len(section.delta.Modified) + len(section.delta.Deleted)
		if total == 0 {
			continue
		}
		fmt.Fprintf(&s, "%s\n", section.name)
		writeIDs(&s, "  added:    ", section.delta.Added)
		writeIDs(&s, "  modified: ", section.delta.Modified)
		writeIDs(&s, "  deleted:  ", section.delta.Deleted)
		s.WriteString("\n")
	}
	if c.Changes.Total() == 0 {
		s.WriteString("No changes detected.\n")
	}
	return s.String()
}

func writeIDs(s *strings.Builder, prefix string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(s, "%s%s\n", prefix, strings.Join(ids, ", "))
}

func renderImpact(c *report.ContainerReport) string {
	var s strings.Builder
	if !c.Impacted {
		fmt.Fprintf(&s, "No GA impact detected for %s.\n", c.PublicID)
		return s.String()
	}
	fmt.Fprintf(&s, "GA impact detected for %s\n\n", c.PublicID)
	for _, desc := range c.Descriptions {
		fmt.Fprintf(&s, "  - %s\n", desc)
	}
	if len(c.Paths) > 0 {
		s.WriteString("\nDependency paths\n")
		for _, path := range c.Paths {
			fmt.Fprintf(&s, "  %s\n", path)
		}
	}
	return s.String()
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("tagwatch report - run %s", m.rpt.RunID)))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case containersView:
		s.WriteString(contentStyle.Render(m.containerTable.View()))
		s.WriteString("\n")
		s.WriteString(contentStyle.Render(m.renderSummary()))
	default:
		s.WriteString(contentStyle.Render(boxStyle.Render(m.detail.View())))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Containers", "Changes", "Impact"}
	rendered := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		if view(i) == m.currentView {
			rendered = append(rendered, activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(tab))
		}
	}
	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

func (m model) renderSummary() string {
	impacted := 0
	for _, c := range m.rpt.Containers {
		if c.Impacted {
			impacted++
		}
	}
	generated := m.rpt.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	summary := fmt.Sprintf("%d containers, generated %s", len(m.rpt.Containers), generated)
	if impacted > 0 {
		return summary + "  " + impactStyle.Render(fmt.Sprintf("%d with GA impact", impacted))
	}
	return summary + "  " + okStyle.Render("no GA impact")
}

func main() {
	reportPath := flag.String("report", "tagwatch_report.json", "Path to the report file")
	flag.Parse()

	rpt, err := report.Load(*reportPath)
	if err != nil {
		log.Fatalf("Failed to load report: %v", err)
	}

	p := tea.NewProgram(initialModel(rpt), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
