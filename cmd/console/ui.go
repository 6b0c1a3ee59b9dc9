package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
	"github.com/jwebster45206/adventure-agent/internal/session"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	info         *session.Info
	events       <-chan events.Event
	transcript   *transcript
	chatViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	busy         bool
	ticking      bool
	connected    bool
	showThinking bool
	flash        string

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type sseEventMsg struct {
	event events.Event
}

type sseClosedMsg struct{}

type actionDoneMsg struct {
	action string
	err    error
}

type sessionInfoMsg struct {
	info *session.Info
	err  error
}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	turnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, created *SessionResponse, eventChan <-chan events.Event) ConsoleUI {
	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	info := created.Session
	return ConsoleUI{
		config:       cfg,
		client:       client,
		info:         &info,
		events:       eventChan,
		transcript:   &transcript{},
		chatViewport: chatVp,
		metaViewport: metaVp,
		connected:    true,
	}
}

func writeMetadata(info *session.Info, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("ID:\n")
	content.WriteString(info.ID.String()[:8] + "...\n\n")

	content.WriteString("Game:\n")
	content.WriteString(info.Game + "\n\n")

	status := string(info.Status)
	if info.Autoplaying {
		status += " (autoplay)"
	}
	content.WriteString("Status:\n")
	content.WriteString(status + "\n\n")

	stats := info.Stats
	content.WriteString(fmt.Sprintf("Turn: %d\n", info.Turn))
	if stats.Room != "" {
		content.WriteString(fmt.Sprintf("Room: %s\n", stats.Room))
	}
	content.WriteString(fmt.Sprintf("Rooms explored: %d\n", stats.RoomsExplored))
	content.WriteString(fmt.Sprintf("Leads: %d\n", stats.Leads))
	content.WriteString(fmt.Sprintf("Inventory: %d\n", stats.Inventory))
	content.WriteString(fmt.Sprintf("Forbidden: %d\n", stats.Forbidden))
	content.WriteString(fmt.Sprintf("Stuck: %d\n", stats.StuckCount))
	if stats.Score != nil {
		content.WriteString(fmt.Sprintf("Score: %d\n", *stats.Score))
	}

	if info.LastError != "" {
		content.WriteString("\n" + errorStyle.Render(wordwrap.String("Error: "+info.LastError, width)) + "\n")
	}
	if info.Summary != "" {
		content.WriteString("\nSummary:\n")
		content.WriteString(wordwrap.String(info.Summary, width) + "\n")
	}

	content.WriteString("\n")
	content.WriteString("Keys:\n")
	content.WriteString("• s: Step\n")
	content.WriteString("• a: Autoplay on/off\n")
	content.WriteString("• x: Stop\n")
	content.WriteString("• r: Reset\n")
	content.WriteString("• t: Show reasoning\n")
	content.WriteString("• c: Copy transcript\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

// writeChatContent rebuilds the chat panel for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURE AGENT") + "\n\n")
	content.WriteString(fmt.Sprintf("Watching %s play %s.\n\n", m.config.ModelLabel, m.info.Game))
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")
	content.WriteString(m.transcript.render(chatWidth, m.showThinking))

	if m.busy || m.info.Autoplaying {
		content.WriteString("\n" + m.renderProgressBar())
	}
	if !m.connected {
		content.WriteString("\n" + errorStyle.Render("Event stream closed. Restart the console to reconnect."))
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetaContent() {
	m.metaViewport.SetContent(writeMetadata(m.info, max(m.metaViewport.Width-2, 10)))
}

func (m ConsoleUI) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sseClosedMsg{}
		}
		return sseEventMsg{ev}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.72) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 5
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.ready = true

		m.writeChatContent()
		m.writeMetaContent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		return m.handleKey(msg)

	case sseEventMsg:
		m.applyEvent(msg.event)
		cmds := []tea.Cmd{waitForEvent(m.events)}
		if msg.event.Type == events.EventTypeTurnCompleted || msg.event.Type == events.EventTypeStatus {
			cmds = append(cmds, m.refreshSession())
		}
		if m.info.Autoplaying {
			cmds = append(cmds, m.startTicking())
		}
		return m, tea.Batch(cmds...)

	case sseClosedMsg:
		m.connected = false
		m.writeChatContent()
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		}
		m.writeChatContent()
		return m, m.refreshSession()

	case sessionInfoMsg:
		if msg.err != nil {
			m.err = msg.err
		} else if msg.info != nil {
			m.info = msg.info
			m.writeMetaContent()
		}

	case copiedMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.flash = "transcript copied"
		}

	case progressTickMsg:
		if m.busy || m.info.Autoplaying {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
		m.ticking = false
		m.writeChatContent()
	}

	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(vpCmd, mvCmd)
}

func (m *ConsoleUI) applyEvent(ev events.Event) {
	if ev.Type == events.EventTypeStatus {
		if status, ok := ev.Data["status"].(string); ok {
			m.info.Status = autoplay.Status(status)
		}
		if autoplaying, ok := ev.Data["autoplaying"].(bool); ok {
			m.info.Autoplaying = autoplaying
		}
		if lastErr, ok := ev.Data["error"].(string); ok {
			m.info.LastError = lastErr
		}
		m.writeMetaContent()
	}
	if ev.Turn > m.info.Turn {
		m.info.Turn = ev.Turn
	}
	if m.transcript.apply(ev) || ev.Type == events.EventTypeStatus {
		m.writeChatContent()
	}
}

// startTicking keeps a single progress animation loop alive.
func (m *ConsoleUI) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return progressTick()
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	m.flash = ""
	switch key {
	case "q":
		m.showQuitModal = true
		return m, nil
	case "t":
		m.showThinking = !m.showThinking
		m.writeChatContent()
		return m, nil
	case "c":
		return m, copyTranscript(m.transcript.plain())
	}

	if m.busy {
		return m, nil
	}

	var action func() error
	switch key {
	case "s":
		action = func() error { return stepSession(m.client, m.config.APIBaseURL, m.info.ID) }
	case "a":
		if m.info.Autoplaying {
			action = func() error { return stopSession(m.client, m.config.APIBaseURL, m.info.ID) }
		} else {
			maxTurns := m.config.MaxTurns
			action = func() error { return autoplaySession(m.client, m.config.APIBaseURL, m.info.ID, maxTurns) }
		}
	case "x":
		action = func() error { return stopSession(m.client, m.config.APIBaseURL, m.info.ID) }
	case "r":
		m.transcript.reset()
		action = func() error { return resetSession(m.client, m.config.APIBaseURL, m.info.ID) }
	default:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd
	}

	m.busy = true
	m.progressTick = 0
	m.writeChatContent()
	return m, tea.Batch(runAction(key, action), m.startTicking())
}

func runAction(key string, action func() error) tea.Cmd {
	names := map[string]string{"s": "step", "a": "autoplay", "x": "stop", "r": "reset"}
	return func() tea.Msg {
		return actionDoneMsg{action: names[key], err: action()}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	client, baseURL, id := m.client, m.config.APIBaseURL, m.info.ID
	return func() tea.Msg {
		info, err := getSession(client, baseURL, id)
		return sessionInfoMsg{info, err}
	}
}

func copyTranscript(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sseEventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.events)

	case actionDoneMsg:
		m.busy = false

	case progressTickMsg:
		m.ticking = false

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.writeChatContent()
				if m.busy || m.info.Autoplaying {
					return m, m.startTicking()
				}
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("The session keeps running on the server until it is stopped or deleted.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	footer := promptStyle.Render("s step · a autoplay · x stop · r reset · t reasoning · c copy")
	switch {
	case m.flash != "":
		footer = loadingStyle.Render(m.flash)
	case m.err != nil:
		footer = errorStyle.Render("Error: " + m.err.Error())
	}

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			footer,
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
