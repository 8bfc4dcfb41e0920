// internal/tui/update.go
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wael22/camrec/internal/config"
	"github.com/wael22/camrec/internal/controller"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = max(msg.Height-6, 3)
		// Preview gets the session tab's leftover space.
		m.renderer.SetViewSize(msg.Width-2, max(msg.Height-16, 5))

	case tickMsg:
		m.currentTime = time.Time(msg)
		// Cosmetic poll while recording: keeps the elapsed display honest
		// and notices server-side auto-stop between advisory timer fires.
		if snap := m.ctrl.Snapshot(); snap.Recording == controller.RecRecording && snap.Session != nil {
			id := snap.Session.SessionID
			ctrl := m.ctrl
			return m, tea.Batch(timeTickCmd(), func() tea.Msg {
				ctrl.CheckRecordingStatus(context.Background(), id)
				return nil
			})
		}
		return m, timeTickCmd()

	case stateMsg:
		m.syncStatus()
		return m, m.waitForUpdate()

	case actionMsg:
		if msg.err != nil {
			m.addLog("ERROR", fmt.Sprintf("%s: %v", msg.label, msg.err))
			m.status = fmt.Sprintf("Erreur: %v", msg.err)
		} else if msg.label != "" {
			m.addLog("INFO", msg.label)
		}
		m.syncStatus()

	case tea.KeyMsg:
		if m.enteringURL {
			return m.updateURLInput(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.ctrl.CloseSession(context.Background())
			return m, tea.Quit
		case "1":
			m.activeTab = sessionTab
		case "2":
			m.activeTab = videosTab
		case "3":
			m.activeTab = logsTab
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabType(len(m.tabs))

		case "o":
			if m.ctrl.Snapshot().State == controller.StateNoSession {
				m.enteringURL = true
				m.urlInput.Focus()
				return m, nil
			}

		case "x":
			return m, m.closeSessionCmd()

		case "r":
			snap := m.ctrl.Snapshot()
			if snap.State == controller.StateOpen && snap.Recording != controller.RecRecording {
				return m, m.startRecordingCmd()
			}

		case "s":
			if m.ctrl.Snapshot().Recording == controller.RecRecording {
				return m, m.stopRecordingCmd()
			}

		case "d":
			if m.ctrl.Snapshot().Recording != controller.RecRecording {
				m.durationIdx = (m.durationIdx + 1) % len(config.DurationPresets)
			}

		case "v":
			return m, m.refreshVideosCmd()

		case "V":
			return m, m.openVLCCmd()
		}
	}

	var cmd tea.Cmd
	if m.activeTab == logsTab {
		m.logViewport, cmd = m.logViewport.Update(msg)
	}
	return m, cmd
}

func (m Model) updateURLInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.enteringURL = false
		m.urlInput.Blur()
		return m, nil
	case "enter":
		url := m.urlInput.Value()
		m.enteringURL = false
		m.urlInput.Blur()
		return m, m.openSessionCmd(url)
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m *Model) syncStatus() {
	snap := m.ctrl.Snapshot()

	switch {
	case snap.State == controller.StateOpening:
		m.status = "Ouverture de la session..."
	case snap.State == controller.StateClosing:
		m.status = "Fermeture de la session..."
	case snap.State == controller.StateNoSession:
		m.status = "Aucune session active"
	case snap.Recording == controller.RecRecording:
		minutes := snap.Duration / 60
		m.status = fmt.Sprintf("⏺ Enregistrement en cours... (durée: %d min)", minutes)
	case snap.Recording == controller.RecDone:
		m.status = "✓ Enregistrement terminé"
	case snap.Disconnected:
		m.status = "Prévisualisation déconnectée"
	default:
		m.status = "Prévisualisation active"
	}

	if snap.LastError != "" {
		m.status = "Erreur: " + snap.LastError
	}
}

// Action commands. Each runs the controller call off the UI goroutine and
// reports back as an actionMsg.

func (m Model) openSessionCmd(url string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.OpenSession(context.Background(), url)
		return actionMsg{label: "open session", err: err}
	}
}

func (m Model) closeSessionCmd() tea.Cmd {
	ctrl := m.ctrl
	renderer := m.renderer
	return func() tea.Msg {
		err := ctrl.CloseSession(context.Background())
		renderer.Clear()
		return actionMsg{label: "close session", err: err}
	}
}

func (m Model) startRecordingCmd() tea.Cmd {
	ctrl := m.ctrl
	duration := m.selectedDuration()
	return func() tea.Msg {
		err := ctrl.StartRecording(context.Background(), duration)
		return actionMsg{label: fmt.Sprintf("start recording (%ds)", duration), err: err}
	}
}

func (m Model) stopRecordingCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.StopRecording(context.Background())
		return actionMsg{label: "stop recording", err: err}
	}
}

func (m Model) refreshVideosCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.RefreshVideos(context.Background())
		return actionMsg{}
	}
}

func (m Model) openVLCCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.OpenVLC(context.Background())
		return actionMsg{label: "open VLC", err: err}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
