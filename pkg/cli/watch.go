package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// maxWatchLines bounds the scrollback kept by the watch view.
const maxWatchLines = 1000

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	topicStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4AA")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4AA")).
			Bold(true)
)

type eventMsg struct {
	event broker.Event
	at    time.Time
}

type streamEndMsg struct {
	err error
}

// WatchModel is the bubbletea model for the watch view.
type WatchModel struct {
	ctx      context.Context
	src      EventSource
	topics   []string
	limit    int
	viewport viewport.Model
	ready    bool
	lines    []string
	received int
	done     bool
	err      error
}

// NewWatchModel creates a watch model reading from src until ctx ends.
// A limit of zero means no limit.
func NewWatchModel(ctx context.Context, src EventSource, topics []string, limit int) WatchModel {
	return WatchModel{
		ctx:    ctx,
		src:    src,
		topics: topics,
		limit:  limit,
	}
}

// Init starts waiting for the first event.
func (m WatchModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m WatchModel) waitForEvent() tea.Cmd {
	ctx, src := m.ctx, m.src
	return func() tea.Msg {
		ev, err := src.Next(ctx)
		if err != nil {
			return streamEndMsg{err: err}
		}
		return eventMsg{event: ev, at: time.Now()}
	}
}

// Update handles messages
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-m.chromeHeight(), 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case eventMsg:
		m.received++
		m.lines = append(m.lines, fmt.Sprintf("%s %s %s",
			timeStyle.Render(msg.at.Format("15:04:05")),
			topicStyle.Render(msg.event.Topic),
			msg.event.Payload))
		if len(m.lines) > maxWatchLines {
			m.lines = m.lines[len(m.lines)-maxWatchLines:]
		}
		m.refresh()
		if m.limit > 0 && m.received >= m.limit {
			m.done = true
			return m, nil
		}
		return m, m.waitForEvent()

	case streamEndMsg:
		m.done = true
		if !endOfStream(m.ctx, msg.err) {
			m.err = msg.err
		}
		return m, nil
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// header and status lines around the viewport
func (m WatchModel) chromeHeight() int {
	return 3
}

func (m *WatchModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the UI
func (m WatchModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("📡 Watching " + strings.Join(m.topics, ", ")))
	s.WriteString("\n")
	s.WriteString(m.viewport.View())
	s.WriteString("\n")
	s.WriteString(m.status())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓ scroll • q quit"))
	return s.String()
}

func (m WatchModel) status() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("✗ " + m.err.Error())
	case m.done:
		return successStyle.Render(fmt.Sprintf("✓ Stream ended after %d event(s)", m.received))
	default:
		return subtitleStyle.Render(fmt.Sprintf("%d event(s) received", m.received))
	}
}

// Received returns the number of events shown so far.
func (m WatchModel) Received() int {
	return m.received
}

// Err returns the error that ended the stream, if any.
func (m WatchModel) Err() error {
	return m.err
}

// HandleWatchCommand subscribes and shows events in a full-screen view.
func HandleWatchCommand(args []string, timeout time.Duration) {
	opts, err := ParseListenArgs("watch", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		fmt.Fprintf(os.Stderr, "Usage: subbridge watch --node <url> --topic <topic> [--broker-options <json>] [--count N]\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create runtime: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	setupCtx, cancelSetup := context.WithTimeout(ctx, timeout)
	session, err := OpenSession(setupCtx, rt, opts)
	cancelSetup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to subscribe: %v\n", err)
		os.Exit(1)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	model := NewWatchModel(watchCtx, session, session.Topics(), opts.Count)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, runErr := p.Run()
	cancelWatch()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), timeout)
	defer cancelClose()
	if err := session.Close(closeCtx); err != nil && !errors.IsNotFound(err) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to unsubscribe cleanly: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", runErr)
		os.Exit(1)
	}
	if m, ok := finalModel.(WatchModel); ok {
		if m.Err() != nil {
			fmt.Fprintf(os.Stderr, "Subscription failed: %v\n", m.Err())
			os.Exit(1)
		}
		fmt.Printf("✅ Watched %d event(s)\n", m.Received())
	}
}
