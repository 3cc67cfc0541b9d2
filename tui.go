package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"metro/metronome"
	"metro/tempo"
)

// TUI message types
type BeatMsg struct{ Tempo int }
type StateMsg struct{ State metronome.State }
type DeviceLineMsg struct{ Text string }
type HotkeyLineMsg struct{ Text string }
type startResultMsg struct{ err error }

// controller is the player as the TUI sees it.
type controller interface {
	Start() error
	Stop()
	SetBounds(tempo.Bounds)
}

const (
	fieldLow = iota
	fieldHigh
)

type tuiModel struct {
	ctl        controller
	fields     [2]textinput.Model
	focus      int
	state      metronome.State
	currentBPM int // 0 while stopped
	errText    string
	deviceLine string
	hotkeyLine string
	width      int
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(13)
	bpmStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231"))
	playStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	stopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKey     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(1, 2)
	fieldPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

func newField(value int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.PromptStyle = fieldPrompt
	ti.CharLimit = 4
	ti.Width = 5
	ti.SetValue(strconv.Itoa(value))
	return ti
}

func newTUIModel(ctl controller, bounds tempo.Bounds) tuiModel {
	m := tuiModel{
		ctl:    ctl,
		fields: [2]textinput.Model{newField(bounds.Low), newField(bounds.High)},
	}
	m.fields[fieldLow].Focus()
	return m
}

func NewTUIProgram(ctl controller, bounds tempo.Bounds) *tea.Program {
	return tea.NewProgram(newTUIModel(ctl, bounds), tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// rawBounds reads the two fields as typed, before clamping.
func (m tuiModel) rawBounds() tempo.Bounds {
	return tempo.Bounds{
		Low:  tempo.Parse(m.fields[fieldLow].Value()),
		High: tempo.Parse(m.fields[fieldHigh].Value()),
	}
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return textinput.Blink
}

func (m tuiModel) start() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		return startResultMsg{err: ctl.Start()}
	}
}

// stop runs off the event loop: Stop reports the transition back through
// tuiSend, which blocks until Update returns.
func (m tuiModel) stop() tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctl.Stop()
		return nil
	}
}

func (m *tuiModel) setFocus(i int) tea.Cmd {
	m.fields[m.focus].Blur()
	m.focus = i
	return m.fields[m.focus].Focus()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab", "shift+tab", "up", "down":
			return m, m.setFocus(1 - m.focus)
		case "enter":
			if m.state == metronome.Stopped {
				m.errText = ""
				return m, m.start()
			}
			return m, nil
		case "esc":
			return m, m.stop()
		case " ":
			if m.state == metronome.Playing {
				return m, m.stop()
			}
			m.errText = ""
			return m, m.start()
		}
		before := m.rawBounds()
		var cmd tea.Cmd
		m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
		if after := m.rawBounds(); after != before {
			m.ctl.SetBounds(after)
		}
		return m, cmd

	case BeatMsg:
		if m.state == metronome.Playing {
			m.currentBPM = msg.Tempo
		}

	case StateMsg:
		m.state = msg.State
		if m.state == metronome.Stopped {
			m.currentBPM = 0
		}

	case startResultMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case HotkeyLineMsg:
		m.hotkeyLine = msg.Text
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Random BPM Metronome") + "\n")
	b.WriteString(mutedStyle.Render("Every tick picks a new BPM between your low/high bounds.") + "\n\n")

	b.WriteString(labelStyle.Render("Lowest BPM") + m.fields[fieldLow].View() + "\n")
	b.WriteString(labelStyle.Render("Highest BPM") + m.fields[fieldHigh].View() + "\n\n")

	if m.state == metronome.Playing {
		b.WriteString(playStyle.Render("● PLAYING") + "\n")
	} else {
		b.WriteString(stopStyle.Render("○ STOPPED") + "\n")
	}

	current := "—"
	if m.currentBPM > 0 {
		current = strconv.Itoa(m.currentBPM)
	}
	r := m.rawBounds().Clamp()
	b.WriteString(mutedStyle.Render("Current BPM  ") + bpmStyle.Render(current) + "\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Range: %d–%d BPM", r.Low, r.High)) + "\n")

	if m.deviceLine != "" {
		b.WriteString("\n" + mutedStyle.Render(m.deviceLine))
	}
	if m.hotkeyLine != "" {
		b.WriteString("\n" + mutedStyle.Render(m.hotkeyLine))
	}
	if m.errText != "" {
		b.WriteString("\n" + errStyle.Render("Error: "+m.errText))
	}

	b.WriteString("\n\n")
	b.WriteString(helpKey.Render("enter") + helpStyle.Render(" play  "))
	b.WriteString(helpKey.Render("esc") + helpStyle.Render(" stop  "))
	b.WriteString(helpKey.Render("space") + helpStyle.Render(" toggle  "))
	b.WriteString(helpKey.Render("tab") + helpStyle.Render(" field  "))
	b.WriteString(helpKey.Render("ctrl+c") + helpStyle.Render(" quit") + "\n")
	b.WriteString(helpStyle.Render("metro " + version))

	return cardStyle.Render(b.String())
}
