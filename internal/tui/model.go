// internal/tui/model.go
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wael22/camrec/internal/config"
	"github.com/wael22/camrec/internal/controller"
	"github.com/wael22/camrec/internal/render"
)

type tabType int

const (
	sessionTab tabType = iota
	videosTab
	logsTab
)

type tab struct {
	title string
	id    tabType
}

// Msg types
type tickMsg time.Time
type stateMsg struct{}
type actionMsg struct {
	label string
	err   error
}

// Model holds the application state
type Model struct {
	config *config.AppConfig

	width  int
	height int
	status string

	currentTime time.Time
	activeTab   tabType
	tabs        []tab

	ctrl     *controller.Controller
	renderer *render.Renderer

	urlInput    textinput.Model
	enteringURL bool

	durationIdx int

	logViewport viewport.Model
	logs        []string

	// updates coalesces change notifications from the controller and the
	// renderer into single TUI refreshes.
	updates chan struct{}
}

// New returns a Model wired to the given controller and renderer.
func New(cfg *config.AppConfig, ctrl *controller.Controller, renderer *render.Renderer) Model {
	input := textinput.New()
	input.Placeholder = "http://camera.local/video.mjpg"
	input.CharLimit = 256
	input.Width = 60

	m := Model{
		config:      cfg,
		status:      "No session",
		currentTime: time.Now(),
		activeTab:   sessionTab,
		tabs: []tab{
			{title: "Session", id: sessionTab},
			{title: "Videos", id: videosTab},
			{title: "Logs", id: logsTab},
		},
		ctrl:        ctrl,
		renderer:    renderer,
		urlInput:    input,
		durationIdx: presetIndex(cfg.DefaultDuration),
		logViewport: func() viewport.Model {
			vp := viewport.New(0, 10)
			vp.MouseWheelEnabled = true
			return vp
		}(),
		logs:    make([]string, 0),
		updates: make(chan struct{}, 1),
	}

	notify := func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	}
	ctrl.OnChange(notify)
	renderer.OnDraw(notify)

	return m
}

// Init runs initial IO: the clock tick, the update subscription and the
// first video list fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(timeTickCmd(), m.waitForUpdate(), m.refreshVideosCmd())
}

func (m *Model) addLog(level, message string) {
	entry := fmt.Sprintf("[%s] %s", level, message)
	m.logs = append(m.logs, entry)

	// Cap log buffer size
	if len(m.logs) > 1000 {
		m.logs = m.logs[1:]
	}

	m.logViewport.SetContent(strings.Join(m.logs, "\n"))
	m.logViewport.GotoBottom()
}

// waitForUpdate delivers the next coalesced change notification.
func (m Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		<-updates
		return stateMsg{}
	}
}

// selectedDuration is the active recording cap in seconds.
func (m Model) selectedDuration() int {
	return config.DurationPresets[m.durationIdx]
}

func presetIndex(seconds int) int {
	for i, preset := range config.DurationPresets {
		if preset == seconds {
			return i
		}
	}
	return len(config.DurationPresets) - 1
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
