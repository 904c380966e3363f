// Package tui renders the skill board in the terminal.
//
// The model polls the board endpoint on a fixed tick and sends a wake signal
// when the terminal regains focus, the same signal a browser sends on
// visibility change.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okian/skillwatch/internal/adapters/repository"
	service "github.com/okian/skillwatch/internal/app"
)

const (
	// DefaultPollInterval is how often the board is re-read.
	DefaultPollInterval = 15 * time.Second

	barWidth  = 24
	nameWidth = 14
	// columns needed for name, level, experience and the bar
	minBarColumns = nameWidth + 1 + 5 + 1 + 14 + 2 + barWidth
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D4A843"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#5C1E1E")).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Underline(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// BoardSource is what the model needs from the API.
type BoardSource interface {
	Board(ctx context.Context) (service.Board, error)
	Wake(ctx context.Context) (bool, error)
}

type boardMsg struct {
	board service.Board
	err   error
}

type wakeMsg struct {
	triggered bool
	err       error
}

type pollMsg time.Time

// Model is the bubbletea model of the board.
type Model struct {
	src      BoardSource
	interval time.Duration

	board    service.Board
	hasBoard bool
	// reachErr is set when the API itself could not be read.
	reachErr error
	note     string

	spinner spinner.Model
	bar     progress.Model
	width   int
}

// Option customizes a Model.
type Option func(*Model)

// WithPollInterval sets the board polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

// New creates a board model reading from src.
func New(src BoardSource, opts ...Option) Model {
	m := Model{
		src:      src,
		interval: DefaultPollInterval,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(loadingStyle)),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner, the first read and the poll tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchBoard(), m.poll())
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.note = "refresh requested"
			return m, m.wake()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.FocusMsg:
		return m, m.wake()

	case pollMsg:
		return m, tea.Batch(m.fetchBoard(), m.poll())

	case boardMsg:
		if msg.err != nil {
			m.reachErr = msg.err
			return m, nil
		}
		m.reachErr = nil
		m.board = msg.board
		m.hasBoard = true
		return m, nil

	case wakeMsg:
		switch {
		case msg.err != nil:
			m.note = "refresh failed: " + msg.err.Error()
		case !msg.triggered:
			m.note = "outside the active window, showing cached data"
		default:
			m.note = "refreshing"
		}
		return m, m.fetchBoard()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the board.
func (m Model) View() string {
	var b strings.Builder

	player := m.board.Player
	if player == "" {
		player = "skillwatch"
	}
	b.WriteString(titleStyle.Render(player) + "  " + m.statusBadge() + "\n\n")

	if banner := m.banner(); banner != "" {
		b.WriteString(bannerStyle.Render(banner) + "\n\n")
	}

	if len(m.board.Entries) == 0 {
		if !m.hasBoard || m.board.Status == repository.StatusLoading {
			b.WriteString(m.spinner.View() + " waiting for the first snapshot\n")
		}
	} else {
		b.WriteString(m.table())
	}

	b.WriteString("\n" + footerStyle.Render(m.footer()))
	return b.String()
}

func (m Model) statusBadge() string {
	if !m.hasBoard {
		return loadingStyle.Render("connecting")
	}
	switch m.board.Status {
	case repository.StatusReady:
		return readyStyle.Render("ready")
	case repository.StatusError:
		return errorStyle.Render("error")
	default:
		return loadingStyle.Render("loading")
	}
}

func (m Model) banner() string {
	var msg string
	switch {
	case m.reachErr != nil:
		msg = "cannot reach skillwatch: " + m.reachErr.Error()
	case m.board.Status == repository.StatusError:
		msg = "upstream error: " + m.board.Error
	default:
		return ""
	}
	if len(m.board.Entries) > 0 {
		msg += " (showing last known data)"
	}
	return msg
}

func (m Model) table() string {
	bars := m.width == 0 || m.width >= minBarColumns

	var b strings.Builder
	header := fmt.Sprintf("%-*s %5s %14s", nameWidth, "skill", "level", "experience")
	if bars {
		header += "  next level"
	}
	b.WriteString(headerStyle.Render(header) + "\n")
	for _, e := range m.board.Entries {
		fmt.Fprintf(&b, "%-*s %5d %14s", nameWidth, e.Name, e.Level, groupDigits(e.Experience))
		if bars {
			b.WriteString("  " + m.bar.ViewAs(e.Progress/100))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) footer() string {
	parts := make([]string, 0, 4)
	if m.hasBoard {
		if m.board.Active {
			parts = append(parts, "polling")
		} else {
			parts = append(parts, "paused outside window")
		}
		if m.board.FetchedAt != nil {
			parts = append(parts, "updated "+m.board.FetchedAt.Local().Format(time.TimeOnly))
		}
	}
	if m.note != "" {
		parts = append(parts, m.note)
	}
	parts = append(parts, "r refresh · q quit")
	return strings.Join(parts, " · ")
}

func (m Model) fetchBoard() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		b, err := src.Board(ctx)
		return boardMsg{board: b, err: err}
	}
}

func (m Model) wake() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
		defer cancel()
		ok, err := src.Wake(ctx)
		return wakeMsg{triggered: ok, err: err}
	}
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// groupDigits renders n with thousands separators.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
