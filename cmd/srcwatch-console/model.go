package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srcdstools/srcwatch/pkg/rcon"
)

var (
	primaryColor = lipgloss.Color("39")  // Blue
	errorColor   = lipgloss.Color("196") // Red
	mutedColor   = lipgloss.Color("243") // Gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)

// viewState represents the current view
type viewState int

const (
	viewPassword viewState = iota
	viewConsole
)

// authResultMsg carries the outcome of the authentication exchange.
type authResultMsg struct {
	ok  bool
	err error
}

// commandResultMsg carries one executed command and its server output.
type commandResultMsg struct {
	command string
	output  string
	err     error
}

// model is the console application state: a password prompt first, then a
// scrollback viewport over an input line.
type model struct {
	client *rcon.Client
	addr   string

	view   viewState
	busy   bool
	errMsg string

	width  int
	height int

	input      textinput.Model
	scrollback viewport.Model
	lines      []string
	ready      bool
}

func newModel(client *rcon.Client, addr string) model {
	input := textinput.New()
	input.Placeholder = "password"
	input.EchoMode = textinput.EchoPassword
	input.Prompt = promptStyle.Render("Password: ")
	input.Focus()

	return model{
		client: client,
		addr:   addr,
		view:   viewPassword,
		input:  input,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		case "pgup", "pgdown":
			if m.view == viewConsole {
				var cmd tea.Cmd
				m.scrollback, cmd = m.scrollback.Update(msg)
				return m, cmd
			}
		}

	case authResultMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("Authentication error: %v", msg.err)
			return m, tea.Quit
		}
		if !msg.ok {
			m.errMsg = "Bad password"
			m.input.SetValue("")
			m.input.Focus()
			return m, nil
		}
		return m.enterConsole()

	case commandResultMsg:
		m.busy = false
		m.input.Focus()
		if msg.err != nil {
			m.appendLine(errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
			return m, tea.Quit
		}
		m.appendLine(promptStyle.Render("> ") + commandStyle.Render(msg.command))
		for _, line := range strings.Split(strings.TrimRight(msg.output, "\n"), "\n") {
			m.appendLine(line)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleEnter submits the password or the current command line.
func (m model) handleEnter() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	value := m.input.Value()
	m.input.SetValue("")

	switch m.view {
	case viewPassword:
		m.busy = true
		m.errMsg = ""
		return m, func() tea.Msg {
			ok, err := m.client.Authenticate(value)
			return authResultMsg{ok: ok, err: err}
		}

	case viewConsole:
		command := strings.TrimSpace(value)
		if command == "" {
			return m, nil
		}
		if command == "quit" || command == "exit" {
			return m, tea.Quit
		}
		m.busy = true
		m.input.Blur()
		return m, func() tea.Msg {
			output, err := m.client.ExecCommand(command)
			return commandResultMsg{command: command, output: output, err: err}
		}
	}
	return m, nil
}

// enterConsole switches from the password prompt to the command loop.
func (m model) enterConsole() (tea.Model, tea.Cmd) {
	m.view = viewConsole
	m.errMsg = ""
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = ""
	m.input.Prompt = promptStyle.Render("> ")
	m.input.Focus()
	m.resizeViewport()
	m.appendLine(fmt.Sprintf("Connected to %s. Type quit to leave.", m.addr))
	return m, nil
}

func (m *model) resizeViewport() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// Header, input line, and footer each take one row.
	height := m.height - 3
	if height < 1 {
		height = 1
	}
	if !m.ready {
		m.scrollback = viewport.New(m.width, height)
		m.ready = true
	} else {
		m.scrollback.Width = m.width
		m.scrollback.Height = height
	}
	m.scrollback.SetContent(strings.Join(m.lines, "\n"))
	m.scrollback.GotoBottom()
}

func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if m.ready {
		m.scrollback.SetContent(strings.Join(m.lines, "\n"))
		m.scrollback.GotoBottom()
	}
}

func (m model) View() string {
	switch m.view {
	case viewPassword:
		var b strings.Builder
		b.WriteString(headerStyle.Render("srcwatch console - "+m.addr) + "\n\n")
		b.WriteString(m.input.View() + "\n")
		if m.errMsg != "" {
			b.WriteString("\n" + errorStyle.Render(m.errMsg) + "\n")
		}
		b.WriteString("\n" + footerStyle.Render("[Enter] authenticate  [Esc] quit"))
		return b.String()

	case viewConsole:
		header := headerStyle.Render("srcwatch console - " + m.addr)
		footer := footerStyle.Render("[Enter] run  [PgUp/PgDn] scroll  [Esc] quit")
		body := ""
		if m.ready {
			body = m.scrollback.View()
		}
		return header + "\n" + body + "\n" + m.input.View() + "\n" + footer
	}
	return ""
}
