package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-jarvis/core"
	"github.com/koscakluka/ema-jarvis/core/events"
)

const (
	defaultViewWidth = 60
	maxUtteranceRows = 4
)

type (
	stateMsg     events.StateChanged
	utteranceMsg string
	outcomeMsg   orchestration.TurnOutcome
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	saidStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))

	stateStyles = map[events.ConversationState]lipgloss.Style{
		events.StateIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		events.StateListening:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		events.StateProcessing: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C")),
		events.StateSpeaking:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD")),
	}
)

// statusView shows what the assistant is doing and what it said last.
type statusView struct {
	keyword string
	states  <-chan events.StateChanged

	state     events.ConversationState
	utterance string
	failure   string

	spinner spinner.Model
	width   int
}

func newStatusView(keyword string, states <-chan events.StateChanged) statusView {
	return statusView{
		keyword: keyword,
		states:  states,
		state:   events.StateIdle,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   defaultViewWidth,
	}
}

func (m statusView) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states))
}

func waitForState(states <-chan events.StateChanged) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-states
		if !ok {
			return nil
		}
		return stateMsg(event)
	}
}

func (m statusView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case stateMsg:
		m.state = msg.State
		if m.state == events.StateListening {
			m.failure = ""
		}
		return m, waitForState(m.states)

	case utteranceMsg:
		m.utterance = string(msg)

	case outcomeMsg:
		if msg.Kind == orchestration.OutcomeFatal {
			m.failure = orchestration.TurnOutcome(msg).String()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m statusView) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Jarvis"))
	b.WriteString("\n\n")

	style, ok := stateStyles[m.state]
	if !ok {
		style = stateStyles[events.StateIdle]
	}
	if m.state == events.StateIdle {
		b.WriteString(style.Render(fmt.Sprintf("  waiting for %q", m.keyword)))
	} else {
		b.WriteString(m.spinner.View() + " " + style.Render(m.state.String()))
	}
	b.WriteString("\n\n")

	if m.utterance != "" {
		b.WriteString(saidStyle.Render(m.wrap(m.utterance)))
		b.WriteString("\n\n")
	}
	if m.failure != "" {
		b.WriteString(failureStyle.Render(truncate.StringWithTail(m.failure, uint(m.contentWidth()), "...")))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m statusView) contentWidth() int {
	if m.width <= 4 {
		return defaultViewWidth
	}
	return m.width - 4
}

// wrap word-wraps text to the view and keeps only its first rows.
func (m statusView) wrap(text string) string {
	width := m.contentWidth()
	rows := strings.Split(wordwrap.String(text, width), "\n")
	if len(rows) > maxUtteranceRows {
		rows = rows[:maxUtteranceRows]
		rows[maxUtteranceRows-1] = truncate.StringWithTail(rows[maxUtteranceRows-1], uint(width-3), "") + "..."
	}
	return strings.Join(rows, "\n")
}
