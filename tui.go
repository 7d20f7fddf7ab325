package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxnote/audio"
	"voxnote/control"
)

const pollInterval = 100 * time.Millisecond

type pollMsg time.Time

type tuiMode int

const (
	modeEdit tuiMode = iota
	modeSave
	modeLoad
	modeError
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	buttonOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("24")).Padding(0, 1)
	buttonOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(lipgloss.Color("236")).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	modeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(1, 2)
	errorBorder   = dialogStyle.BorderForeground(lipgloss.Color("196"))
)

// editorDoc exposes the textarea as the note document. The textarea lives
// inside the model, so it is only touched from Update.
type editorDoc struct{ ta *textarea.Model }

func (d editorDoc) Text() string        { return d.ta.Value() }
func (d editorDoc) SetText(text string) { d.ta.SetValue(text) }
func (d editorDoc) Append(text string)  { d.ta.SetValue(d.ta.Value() + text) }

type tuiModel struct {
	app *app

	editor  textarea.Model
	name    textinput.Model
	spinner spinner.Model

	mode    tuiMode
	status  string
	buttons control.Buttons

	notes  []string
	cursor int

	errors []ErrorMsg

	width, height int
}

func newTUIModel(a *app) *tuiModel {
	ta := textarea.New()
	ta.Placeholder = "Press ctrl+r and start talking..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "File name: "
	ti.CharLimit = 255

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return &tuiModel{
		app:     a,
		editor:  ta,
		name:    ti,
		spinner: sp,
		status:  "Ready",
		buttons: a.orch.Buttons(),
	}
}

func NewTUIProgram(m *tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m *tuiModel) doc() control.Document { return editorDoc{ta: &m.editor} }

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, pollTick(), m.spinner.Tick)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.editor.SetWidth(max(msg.Width-2, 10))
		m.editor.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case pollMsg:
		m.app.poll(m.doc())
		m.buttons = m.app.orch.Buttons()
		return m, pollTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StatusMsg:
		m.status = msg.Text
		return m, nil

	case StateMsg:
		m.buttons = m.app.orch.Buttons()
		return m, nil

	case ErrorMsg:
		m.errors = append(m.errors, msg)
		if m.mode != modeError {
			m.mode = modeError
			m.editor.Blur()
			m.name.Blur()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeError:
			return m.updateError(msg)
		case modeSave:
			return m.updateSave(msg)
		case modeLoad:
			return m.updateLoad(msg)
		}
		return m.updateEdit(msg)
	}

	var cmd tea.Cmd
	if m.mode == modeEdit {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

func (m *tuiModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	o := m.app.orch
	switch msg.String() {
	case "ctrl+r":
		if m.buttons.Record {
			o.Record()
		}
	case "ctrl+x":
		if m.buttons.Stop {
			o.Stop()
		}
	case "ctrl+p":
		if m.buttons.Speak {
			m.app.speak(m.editor.Value())
		}
	case "ctrl+s":
		m.mode = modeSave
		m.editor.Blur()
		m.name.SetValue(o.DefaultName())
		m.name.CursorEnd()
		return m, m.name.Focus()
	case "ctrl+o":
		notes, err := o.Notes()
		if err != nil {
			return m, nil
		}
		if len(notes) == 0 {
			m.status = "No saved notes."
			return m, nil
		}
		m.notes, m.cursor = notes, len(notes)-1
		m.mode = modeLoad
		m.editor.Blur()
	case "ctrl+n":
		o.New(m.doc())
	case "ctrl+y":
		if err := clipboard.WriteAll(m.editor.Value()); err != nil {
			m.errors = append(m.errors, ErrorMsg{Title: "Clipboard Error", Err: err})
			m.mode = modeError
			m.editor.Blur()
			return m, nil
		}
		m.status = "Copied to clipboard."
	default:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	m.buttons = o.Buttons()
	return m, nil
}

func (m *tuiModel) backToEdit() tea.Cmd {
	m.mode = modeEdit
	m.name.Blur()
	return m.editor.Focus()
}

func (m *tuiModel) updateSave(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.backToEdit()
	case "enter":
		cmd := m.backToEdit()
		m.app.orch.Save(m.doc(), m.name.Value())
		return m, cmd
	}
	var cmd tea.Cmd
	m.name, cmd = m.name.Update(msg)
	return m, cmd
}

func (m *tuiModel) updateLoad(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.backToEdit()
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.notes)-1)
	case "enter":
		cmd := m.backToEdit()
		m.app.orch.Load(m.doc(), m.notes[m.cursor])
		return m, cmd
	}
	return m, nil
}

func (m *tuiModel) updateError(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", " ":
		m.errors = m.errors[1:]
		if len(m.errors) == 0 {
			return m, m.backToEdit()
		}
	}
	return m, nil
}

func (m *tuiModel) renderButtons() string {
	button := func(key, label string, on bool) string {
		if on {
			return buttonOn.Render(key + " " + label)
		}
		return buttonOff.Render(key + " " + label)
	}
	b := m.buttons
	return lipgloss.JoinHorizontal(lipgloss.Top,
		button("^R", "Record", b.Record), " ",
		button("^X", "Stop", b.Stop), " ",
		button("^P", "Speak", b.Speak), " ",
		button("^S", "Save", b.Save), " ",
		button("^O", "Load", b.Load), " ",
		button("^N", "New", b.New),
	)
}

func (m *tuiModel) modeLine() string {
	line := modeStyle.Render(fmt.Sprintf("[asr: %s | tts: %s | mic: %s]",
		m.app.asrName(), m.app.ttsName(), m.app.deviceName()))
	if audio.IsBluetooth(m.app.deviceName()) {
		line += " " + warnStyle.Render("(BT mic: expect reduced quality)")
	}
	return line
}

func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	switch m.mode {
	case modeSave:
		body = dialogStyle.Render("Save note\n\n" + m.name.View() + "\n\n" +
			helpStyle.Render("enter save • esc cancel"))
	case modeLoad:
		var b strings.Builder
		b.WriteString("Load note\n\n")
		for i, n := range m.notes {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> "+n) + "\n")
			} else {
				b.WriteString("  " + n + "\n")
			}
		}
		b.WriteString("\n" + helpStyle.Render("↑/↓ select • enter load • esc cancel"))
		body = dialogStyle.Render(b.String())
	case modeError:
		e := m.errors[0]
		text := fmt.Sprintf("%s\n\n%v\n\n%s", warnStyle.Bold(true).Render(e.Title), e.Err, helpStyle.Render("enter dismiss"))
		if more := len(m.errors) - 1; more > 0 {
			text += helpStyle.Render(fmt.Sprintf(" • %d more", more))
		}
		body = errorBorder.Width(min(m.width-4, 70)).Render(text)
	default:
		body = m.editor.View()
	}

	status := m.status
	if m.buttons.Stop {
		status = m.spinner.View() + " " + status
	}

	return strings.Join([]string{
		titleStyle.Render("voxnote") + " " + helpStyle.Render(version),
		m.renderButtons(),
		"",
		body,
		"",
		statusStyle.Render(status),
		m.modeLine(),
		helpStyle.Render("ctrl+y copy • ctrl+c quit"),
	}, "\n")
}
