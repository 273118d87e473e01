package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rnbguy/uosql-server/pkg/client"
	"github.com/rnbguy/uosql-server/pkg/storage"
)

// Model is the interactive client shell. It owns the connection for the
// lifetime of the program; the protocol is strictly request/response, so
// input is ignored while a command is in flight.
type Model struct {
	conn        *client.Connection
	queryEditor textarea.Model
	resultView  viewport.Model
	resultTable table.Model
	spinner     spinner.Model
	help        help.Model

	width     int
	height    int
	executing bool
	showHelp  bool

	lastColumns  []string
	lastRows     [][]string
	lastMessage  string
	lastError    error
	queryHistory []string

	lastQueryTime time.Duration
	keys          keyMap
}

func NewModel(conn *client.Connection) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter your SQL query here..."
	ta.CharLimit = 5000
	ta.ShowLineNumbers = true
	ta.SetHeight(6)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle().Background(bgLight)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(textMuted)
	ta.FocusedStyle.Text = lipgloss.NewStyle().Foreground(textPrimary)
	ta.FocusedStyle.LineNumber = lipgloss.NewStyle().Foreground(textMuted)

	vp := viewport.New(80, 10)

	t := table.New(
		table.WithColumns([]table.Column{{Title: "Results", Width: 80}}),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(primaryColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)
	s.Selected = s.Selected.
		Foreground(bgDark).
		Background(secondaryColor).
		Bold(false)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		conn:         conn,
		queryEditor:  ta,
		resultView:   vp,
		resultTable:  t,
		spinner:      sp,
		help:         help.New(),
		keys:         keys,
		queryHistory: make([]string, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textarea.Blink,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		if m.executing {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.conn.Quit()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Execute):
			query := m.queryEditor.Value()
			if strings.TrimSpace(query) != "" {
				m.executing = true
				return m, m.executeQuery(query)
			}

		case key.Matches(msg, m.keys.Ping):
			m.executing = true
			return m, m.ping()

		case key.Matches(msg, m.keys.Clear):
			m.queryEditor.SetValue("")
			m.lastColumns = nil
			m.lastRows = nil
			m.lastMessage = ""
			m.lastError = nil

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		}

	case commandDoneMsg:
		m.executing = false
		m.lastColumns = msg.columns
		m.lastRows = msg.rows
		m.lastMessage = msg.message
		m.lastError = msg.err
		m.lastQueryTime = msg.duration

		if msg.err == nil && msg.query != "" {
			m.queryHistory = append(m.queryHistory, msg.query)
			if len(m.lastRows) > 0 {
				m.resultTable.Focus()
			}
		}

	case spinner.TickMsg:
		if m.executing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	if !m.executing {
		var cmd tea.Cmd
		m.queryEditor, cmd = m.queryEditor.Update(msg)
		cmds = append(cmds, cmd)

		m.resultView, cmd = m.resultView.Update(msg)
		cmds = append(cmds, cmd)

		m.resultTable, cmd = m.resultTable.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderQueryEditor())

	switch {
	case m.executing:
		sections = append(sections, m.renderExecuting())
	case m.lastError != nil:
		sections = append(sections, m.renderError())
	case len(m.lastRows) > 0:
		sections = append(sections, m.renderResultTable())
	case m.lastMessage != "":
		sections = append(sections, m.renderMessage())
	}

	sections = append(sections, m.renderStatusBar())

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	}

	return appStyle.Render(strings.Join(sections, "\n"))
}

func (m Model) renderHelp() string {
	helpText := m.help.FullHelpView([][]key.Binding{
		{
			m.keys.Execute,
			m.keys.Clear,
			m.keys.Ping,
			m.keys.Help,
			m.keys.Quit,
		},
	})

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(bgMedium).
		Render(helpText)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("uoSQL Terminal")
	badge := serverBadgeStyle.Render(m.conn.Addr())
	info := lipgloss.NewStyle().
		Foreground(textSecondary).
		Render(fmt.Sprintf("v%d | user: %s | queries: %d",
			m.conn.Version(), m.conn.Username(), len(m.queryHistory)))

	header := lipgloss.JoinHorizontal(
		lipgloss.Left,
		title,
		"  ",
		badge,
		"  ",
		info,
	)

	separatorWidth := m.width - 4
	if separatorWidth < 0 {
		separatorWidth = 0
	}
	separator := lipgloss.NewStyle().
		Foreground(bgLight).
		Render(strings.Repeat("─", separatorWidth))

	return header + "\n" + separator
}

func (m Model) renderQueryEditor() string {
	label := lipgloss.NewStyle().
		Foreground(primaryColor).
		Bold(true).
		Render("SQL Query Editor")

	editor := editorStyle.Render(m.queryEditor.View())

	return fmt.Sprintf("%s\n%s", label, editor)
}

func (m Model) renderExecuting() string {
	content := lipgloss.JoinHorizontal(
		lipgloss.Left,
		m.spinner.View(),
		" Waiting for server...",
	)

	return lipgloss.NewStyle().
		Foreground(primaryColor).
		Padding(1, 0).
		Render(content)
}

func (m Model) renderError() string {
	icon := errorStyle.Render(" ERROR ")
	message := lipgloss.NewStyle().
		Foreground(errorColor).
		Render(m.lastError.Error())

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(errorColor).
		Padding(0, 1).
		Render(fmt.Sprintf("%s %s", icon, message))
}

func (m Model) renderResultTable() string {
	columns := make([]table.Column, len(m.lastColumns))
	for i, col := range m.lastColumns {
		columns[i] = table.Column{
			Title: col,
			Width: m.columnWidth(col, i),
		}
	}

	rows := make([]table.Row, len(m.lastRows))
	for i, row := range m.lastRows {
		rows[i] = table.Row(row)
	}

	m.resultTable.SetColumns(columns)
	m.resultTable.SetRows(rows)

	header := lipgloss.NewStyle().
		Foreground(accentColor).
		Bold(true).
		Render(fmt.Sprintf("Results (%d rows in %v)", len(rows), m.lastQueryTime))

	return fmt.Sprintf("%s\n%s", header, m.resultTable.View())
}

func (m Model) renderMessage() string {
	icon := successStyle.Render(" OK ")

	return lipgloss.NewStyle().
		Foreground(accentColor).
		Padding(1, 0).
		Render(fmt.Sprintf("%s %s", icon, m.lastMessage))
}

func (m Model) renderStatusBar() string {
	status := "● Connected"

	timer := ""
	if m.lastQueryTime > 0 {
		timer = fmt.Sprintf(" | Last query: %v", m.lastQueryTime)
	}

	helpHint := " | Press Ctrl+H for help"
	content := lipgloss.NewStyle().
		Foreground(accentColor).
		Render(status) +
		lipgloss.NewStyle().
			Foreground(textMuted).
			Render(timer+helpHint)

	return statusBarStyle.
		Width(m.width - 4).
		Render(content)
}

func (m Model) columnWidth(columnName string, index int) int {
	maxWidth := 30
	minWidth := 10

	width := len(columnName) + 2
	for _, row := range m.lastRows {
		if index < len(row) {
			if w := len(row[index]) + 2; w > width {
				width = w
			}
		}
	}

	if width < minWidth {
		return minWidth
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}

func (m *Model) updateLayout() {
	editorHeight := 6
	resultHeight := m.height - editorHeight - 10
	if resultHeight < 3 {
		resultHeight = 3
	}

	m.queryEditor.SetWidth(m.width - 6)
	m.resultView.Width = m.width - 6
	m.resultView.Height = resultHeight
	m.resultTable.SetHeight(resultHeight)
}

type commandDoneMsg struct {
	query    string
	columns  []string
	rows     [][]string
	message  string
	err      error
	duration time.Duration
}

func (m Model) executeQuery(query string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		result, err := m.conn.Execute(query)
		duration := time.Since(start)

		if err != nil {
			return commandDoneMsg{query: query, err: err, duration: duration}
		}

		columns, rows, err := renderResultSet(result)
		if err != nil {
			return commandDoneMsg{query: query, err: err, duration: duration}
		}

		msg := commandDoneMsg{
			query:    query,
			columns:  columns,
			rows:     rows,
			duration: duration,
		}
		if len(rows) == 0 {
			msg.message = "Query executed"
		}
		return msg
	}
}

func (m Model) ping() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		err := m.conn.Ping()
		duration := time.Since(start)

		if err != nil {
			return commandDoneMsg{err: err, duration: duration}
		}
		return commandDoneMsg{
			message:  fmt.Sprintf("Server answered in %v", duration),
			duration: duration,
		}
	}
}

// renderResultSet flattens a result set into display strings. NULL cells
// render as the literal "NULL".
func renderResultSet(rs storage.ResultSet) ([]string, [][]string, error) {
	columns := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		columns[i] = col.Name
	}

	var rows [][]string
	cursor := rs.Rows()
	for {
		ok, err := cursor.Advance()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}

		row := make([]string, len(rs.Columns))
		for i := range rs.Columns {
			value, err := cursor.Get(i)
			if err != nil {
				return nil, nil, err
			}
			if value == nil {
				row[i] = "NULL"
			} else {
				row[i] = value.String()
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}
