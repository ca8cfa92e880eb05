// Package ui renders the live task panel: a Bubble Tea model fed by the
// manager's event stream, one row per registered task with its progress bar
// and status text.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"

	"github.com/mirovis/taskcore/internal/watch"
)

type taskModel struct {
	title     string
	events    <-chan watch.Event
	cancelAll func()
	spinner   spinner.Model
	prog      progress.Model
	items     []taskItem
	index     map[uuid.UUID]int
	width     int
	done      bool
}

type taskItem struct {
	id       uuid.UUID
	status   string
	text     string
	fraction float64
}

type eventMsg watch.Event
type doneMsg struct{}

// NewTaskModel returns a Bubble Tea model that renders the task registry.
// The model quits when the events channel closes; cancelAll, if non-nil, is
// invoked when the user presses "c".
func NewTaskModel(title string, events <-chan watch.Event, cancelAll func()) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &taskModel{
		title:     title,
		events:    events,
		cancelAll: cancelAll,
		spinner:   sp,
		prog:      prog,
		index:     make(map[uuid.UUID]int),
		width:     80,
	}
}

func (m *taskModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(watch.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			if m.cancelAll != nil {
				m.cancelAll()
			}
			return m, nil
		case "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *taskModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 10
	idWidth := 8
	textWidth := m.width - statusWidth - idWidth - 8
	if textWidth < 20 {
		textWidth = 20
	}

	for _, item := range m.items {
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%10s", item.status))
		line := fmt.Sprintf("  %s %s %s",
			statusStyled,
			shortID(item.id),
			truncate(item.text, textWidth))
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.ViewAs(m.overallFraction()))
	}
	b.WriteString("\n")
	if !m.done {
		hint := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		b.WriteString(hint.Render("  c: cancel all  q: quit"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *taskModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *taskModel) applyEvent(ev watch.Event) tea.Cmd {
	idx, ok := m.index[ev.TaskID]
	if !ok {
		idx = len(m.items)
		m.items = append(m.items, taskItem{id: ev.TaskID, status: "queued"})
		m.index[ev.TaskID] = idx
	}
	item := &m.items[idx]

	switch ev.Kind {
	case watch.TaskStarted:
		item.status = "running"
	case watch.TaskFinished:
		item.status = "done"
		item.fraction = 1.0
	case watch.TaskCanceled:
		item.status = "canceled"
		item.fraction = 1.0
	case watch.ProgressChanged, watch.ProgressTextChanged:
		item.text = ev.Text
		if ev.Maximum > 0 {
			item.fraction = float64(ev.Value) / float64(ev.Maximum)
		}
	}
	return nil
}

func (m *taskModel) overallFraction() float64 {
	if len(m.items) == 0 {
		return 0.0
	}
	total := 0.0
	for _, item := range m.items {
		total += item.fraction
	}
	return total / float64(len(m.items))
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "canceled":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "running":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	return runewidth.Truncate(value, width, "...")
}
