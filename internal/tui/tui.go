package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/session"
	"go.uber.org/zap"
)

// SnapshotName is the save slot written after every turn.
const SnapshotName = "current"

type sessionState int

const (
	statePlaying sessionState = iota
	stateProcessing
	stateAlert
)

type model struct {
	ctx       context.Context
	state     sessionState
	session   *session.Session
	saveDir   string
	logger    *zap.Logger
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	healthBar progress.Model
	inventory []models.Item
	notice    string
	status    string
	pending   string
	alert     error
	width     int
	height    int
}

func NewModel(ctx context.Context, sess *session.Session, saveDir string, logger *zap.Logger) model {
	ti := textinput.New()
	ti.Placeholder = "What do you do?"
	ti.Focus()
	ti.CharLimit = 280
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	bar := progress.New(progress.WithSolidFill("#D7005F"), progress.WithoutPercentage())
	bar.Width = 20

	if logger == nil {
		logger = zap.NewNop()
	}

	m := model{
		ctx:       ctx,
		state:     statePlaying,
		session:   sess,
		saveDir:   saveDir,
		logger:    logger,
		textInput: ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		healthBar: bar,
		notice:    sess.Notice(),
	}
	m.refreshLog()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadInventory())
}

type turnProcessedMsg struct {
	turn session.Turn
	err  error
}

type inventoryMsg struct {
	items []models.Item
	err   error
}

type commandDoneMsg struct {
	status string
	err    error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			switch m.state {
			case stateAlert:
				m.alert = nil
				m.state = statePlaying
				return m, nil
			case statePlaying:
				return m.submit()
			}
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.75)
		m.viewport.Height = max(msg.Height-8, 3)
		m.healthBar.Width = max(int(float64(msg.Width)*0.23)-4, 8)
		m.refreshLog()
		return m, nil

	case spinner.TickMsg:
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case turnProcessedMsg:
		m.state = statePlaying
		m.pending = ""
		if msg.err != nil {
			m.logger.Error("turn failed", zap.Error(msg.err))
			m.status = "Error: " + msg.err.Error()
		}
		if msg.turn.Alert != nil {
			m.alert = msg.turn.Alert
			m.state = stateAlert
		}
		if msg.turn.Damage > 0 {
			m.status = fmt.Sprintf("You lost %d HP.", msg.turn.Damage)
		}
		m.refreshLog()
		m.save()
		return m, m.loadInventory()

	case inventoryMsg:
		if msg.err != nil {
			m.logger.Error("failed to load inventory", zap.Error(msg.err))
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.inventory = msg.items
		return m, nil

	case commandDoneMsg:
		m.state = statePlaying
		m.status = msg.status
		if msg.err != nil {
			m.logger.Error("command failed", zap.Error(msg.err))
			m.status = "Error: " + msg.err.Error()
		}
		m.refreshLog()
		m.save()
		return m, m.loadInventory()
	}

	if m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

// submit handles the text in the input line, either a slash command or a
// player action.
func (m model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textInput.Value())
	if input == "" {
		return m, nil
	}
	m.textInput.Reset()
	m.status = ""

	c, ok := parseCommand(input)
	if !ok {
		m.state = stateProcessing
		m.pending = input
		m.refreshLog()
		return m, tea.Batch(m.spinner.Tick, m.processTurn(input))
	}

	switch c.name {
	case "quit":
		return m, tea.Quit

	case "reset":
		m.state = stateProcessing
		return m, tea.Batch(m.spinner.Tick, m.reset())

	case "mode":
		mode, err := models.ParseGameplayMode(c.arg)
		if err == nil {
			err = m.session.SetMode(mode)
		}
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.status = "Mode: " + string(mode)
		m.save()
		return m, nil

	case "drop":
		if c.arg == "" {
			m.status = "Usage: /drop <item>"
			return m, nil
		}
		return m, m.drop(c.arg)
	}

	m.status = fmt.Sprintf("Unknown command /%s", c.name)
	return m, nil
}

func (m model) View() string {
	if m.state == stateAlert {
		body := fmt.Sprintf("%s\n\n%v\n\n%s",
			"Story generation is turned off for this API key. Enable the Generative Language API for your project and try again.",
			m.alert,
			helpStyle.Render("Press Enter to continue or Esc to quit."))
		return "\n" + alertStyle.Render(body) + "\n"
	}

	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		m.renderState(),
	)

	input := m.textInput.View()
	if m.state == stateProcessing {
		input = m.spinner.View() + " The story unfolds..."
	}

	var parts []string
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	parts = append(parts, mainView, "\n"+input)
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	parts = append(parts, "\n"+helpStyle.Render("Commands: /mode spell|dice, /reset, /drop <item>, /quit, or just type what you want to do."))

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m *model) refreshLog() {
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m model) save() {
	if m.saveDir == "" {
		return
	}
	if err := m.session.Snapshot().Save(m.saveDir, SnapshotName); err != nil {
		m.logger.Warn("failed to save session", zap.Error(err))
	}
}

func (m model) processTurn(action string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.session.SendAction(m.ctx, action)
		return turnProcessedMsg{turn, err}
	}
}

func (m model) reset() tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Reset(m.ctx); err != nil {
			return commandDoneMsg{err: err}
		}
		return commandDoneMsg{status: "The story starts over."}
	}
}

func (m model) drop(name string) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.RemoveItem(m.ctx, name); err != nil {
			return commandDoneMsg{err: err}
		}
		return commandDoneMsg{status: "Dropped " + name + "."}
	}
}

func (m model) loadInventory() tea.Cmd {
	return func() tea.Msg {
		items, err := m.session.Inventory(m.ctx)
		return inventoryMsg{items, err}
	}
}

// Run shows the game until the player quits. The session state is saved
// to saveDir after every turn.
func Run(ctx context.Context, sess *session.Session, saveDir string, logger *zap.Logger) error {
	p := tea.NewProgram(NewModel(ctx, sess, saveDir, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
