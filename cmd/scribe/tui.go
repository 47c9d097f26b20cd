package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scribe/beep"
	"scribe/dictation"
	"scribe/log"
)

// dictator is the part of *dictation.Controller the front-end drives.
type dictator interface {
	BeginCapture() error
	EndCapture() (*dictation.Task, error)
	Cancel() error
	State() dictation.State
	RecordingSeconds() float64
	Last() *dictation.Utterance
	Completed() int
}

type levelMeter interface {
	Level() float64
}

type statusMsg struct{ Status dictation.Status }
type tickMsg time.Time

type tuiModel struct {
	ctrl  dictator
	meter levelMeter
	cue   func(beep.Cue)

	state             dictation.State
	silence           *silenceMonitor
	noVoice           bool
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	status            dictation.Status
	hasStatus         bool
	last              *dictation.Utterance
	width, height     int
	modeLine          string // "[flac | whisper (en)]"
	deviceLine        string
}

func newTUIModel(ctrl dictator, meter levelMeter, cue func(beep.Cue)) tuiModel {
	if cue == nil {
		cue = func(beep.Cue) {}
	}
	return tuiModel{ctrl: ctrl, meter: meter, cue: cue}
}

func tuiTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			m.toggle()
		case "esc":
			if err := m.ctrl.Cancel(); err != nil && !errors.Is(err, dictation.ErrNotRecording) {
				m.setLocalStatus(dictation.StatusWarning, err.Error())
			}
		}

	case tickMsg:
		m.state = m.ctrl.State()
		if m.state == dictation.Recording {
			m.recordingDuration = m.ctrl.RecordingSeconds()
			level := m.meter.Level()
			m.audioLevel = m.audioLevel*0.6 + level*0.4
			m.peakLevel = max(m.peakLevel, level)
			if m.silence == nil {
				m.silence = newSilenceMonitor(true)
			}
			m.onSilence(m.silence.Level(level))
		}
		return m, tuiTick()

	case statusMsg:
		m.status = msg.Status
		m.hasStatus = true
		m.state = m.ctrl.State()
		switch msg.Status.Kind {
		case dictation.StatusRecording:
			m.recordingDuration = 0
			m.audioLevel = 0
			m.peakLevel = 0
			m.noVoice = false
			m.silence = newSilenceMonitor(true)
		case dictation.StatusProcessing:
			m.audioLevel = 0
		}
		if msg.Status.Terminal() {
			m.last = m.ctrl.Last()
		}
	}
	return m, nil
}

// toggle starts a recording from Idle and stops it from Recording.
func (m *tuiModel) toggle() {
	var err error
	switch m.ctrl.State() {
	case dictation.Idle:
		err = m.ctrl.BeginCapture()
	case dictation.Recording:
		_, err = m.ctrl.EndCapture()
	default:
		m.setLocalStatus(dictation.StatusWarning, "still processing the last recording")
	}
	if err != nil {
		log.Warnf("toggle: %v", err)
	}
	m.state = m.ctrl.State()
}

func (m *tuiModel) onSilence(ev silenceEvent) {
	switch ev {
	case silenceWarn:
		log.Info("no_voice_warning")
		m.noVoice = true
		m.cue(beep.CueError)
	case silenceCleared:
		m.noVoice = false
	case silenceRepeat:
		m.cue(beep.CueError)
	case silenceAutoClose:
		log.Info("silence_auto_close")
		if _, err := m.ctrl.EndCapture(); err != nil {
			log.Warnf("auto-close: %v", err)
		}
		m.state = m.ctrl.State()
	}
}

func (m *tuiModel) setLocalStatus(kind dictation.StatusKind, msg string) {
	m.status = dictation.Status{Kind: kind, Message: msg, Time: time.Now()}
	m.hasStatus = true
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = helpStyle.Bold(true)
)

const leftWidth = 36

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var left []string
	switch m.state {
	case dictation.Recording:
		left = append(left, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration)))
		left = append(left, renderMeter(m.audioLevel, leftWidth-2))
		if m.noVoice || (m.recordingDuration > 1.0 && m.peakLevel < speechLevel) {
			left = append(left, warnStyle.Render("⚠ no voice detected"))
		}
	case dictation.Processing:
		left = append(left, busyStyle.Render("◌ PROCESSING"))
	default:
		left = append(left, idleStyle.Render("○ STANDBY"))
	}
	if m.hasStatus {
		left = append(left, renderStatus(m.status))
	}
	if m.modeLine != "" {
		left = append(left, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		left = append(left, idleStyle.Render(m.deviceLine))
	}
	left = append(left, "",
		helpKeyStyle.Render("space")+helpStyle.Render(" record/stop  ")+
			helpKeyStyle.Render("esc")+helpStyle.Render(" cancel  ")+
			helpKeyStyle.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("scribe "+version),
	)

	rightWidth := max(m.width-leftWidth-1, 20)
	leftPanel := lipgloss.NewStyle().Width(leftWidth).Height(m.height).
		Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).
		Render(m.renderLast(rightWidth - 2))
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) renderLast(width int) string {
	if m.last == nil {
		return idleStyle.Render("No transcriptions yet")
	}
	u := m.last
	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("Last transcription (#%d, %.1fs)", m.ctrl.Completed(), u.AudioSeconds)))
	b.WriteString("\n\n")

	switch u.Outcome {
	case dictation.OutcomeSuccess:
		lines := wrapText(u.Text, width)
		for i, line := range lines {
			b.WriteString(textStyle.Render(line))
			if i == len(lines)-1 && u.Pasted {
				b.WriteString(" " + okStyle.Render("[✓ pasted]"))
			}
			b.WriteString("\n")
		}
	case dictation.OutcomeNoSpeech:
		b.WriteString(warnStyle.Render("(no speech detected)") + "\n")
	case dictation.OutcomeCanceled:
		b.WriteString(idleStyle.Render("(canceled)") + "\n")
	case dictation.OutcomeError:
		for _, line := range wrapText(fmt.Sprint(u.Err), width) {
			b.WriteString(errStyle.Render(line) + "\n")
		}
	}
	for _, w := range u.Warnings {
		b.WriteString(warnStyle.Render("⚠ "+w) + "\n")
	}
	return b.String()
}

func renderStatus(s dictation.Status) string {
	switch s.Kind {
	case dictation.StatusError:
		return errStyle.Render(s.String())
	case dictation.StatusWarning, dictation.StatusNoSpeech:
		return warnStyle.Render(s.String())
	case dictation.StatusDone:
		return okStyle.Render(s.String())
	default:
		return dimStyle.Render(s.String())
	}
}

// renderMeter draws level (RMS, 0..1) as a bar. Speech RMS rarely passes
// 0.2, so the bar is scaled up by 5.
func renderMeter(level float64, width int) string {
	if width < 1 {
		return ""
	}
	filled := int(min(level*5, 1) * float64(width))
	return recStyle.Render(strings.Repeat("█", filled)) + idleStyle.Render(strings.Repeat("░", width-filled))
}

// wrapText breaks text at spaces so no line exceeds width runes. Words
// longer than width are split.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	width = max(width, 1)

	var lines []string
	var line strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		for n > width {
			if lineLen > 0 {
				lines = append(lines, line.String())
				line.Reset()
				lineLen = 0
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
			n -= width
		}
		if lineLen > 0 && lineLen+1+n > width {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
		if lineLen > 0 {
			line.WriteByte(' ')
			lineLen++
		}
		line.WriteString(word)
		lineLen += n
	}
	if lineLen > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
