// internal/tui/view.go
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wael22/camrec/internal/controller"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	labelStyle = lipgloss.NewStyle().Bold(true)

	readyBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	notReadyBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"🎥 camrec",
		lipgloss.NewStyle().
			Width(max(m.width-12, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	tabs := m.renderTabs()
	mainContent := mainContentStyle.Render(m.renderActiveTabContent())

	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s | Tab or Num 1-3: Switch Views | Press q to quit", m.status),
	)

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabs, mainContent, statusBar)
}

// Helper function to render tabs
func (m Model) renderTabs() string {
	var renderedTabs []string

	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(t.title))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

// Helper function to render active tab content
func (m Model) renderActiveTabContent() string {
	switch m.activeTab {
	case sessionTab:
		return m.renderSessionTab()
	case videosTab:
		return m.renderVideosTab()
	case logsTab:
		return m.logViewport.View()
	}
	return ""
}

func (m Model) renderSessionTab() string {
	var content strings.Builder
	snap := m.ctrl.Snapshot()

	if m.enteringURL {
		content.WriteString("Camera URL:\n")
		content.WriteString(m.urlInput.View())
		content.WriteString("\n\n")
		content.WriteString(dimStyle.Render("enter: open session • esc: cancel"))
		return content.String()
	}

	if snap.Session == nil {
		content.WriteString("No active session.\n\n")
		content.WriteString(fmt.Sprintf("Server: %s\n", m.config.ServerURL))
		content.WriteString(fmt.Sprintf("Duration preset: %s\n\n", formatDuration(m.selectedDuration())))
		content.WriteString(dimStyle.Render("o: open session • d: cycle duration • v: refresh videos"))
		return content.String()
	}

	s := snap.Session
	badge := notReadyBadge.Render("Not Ready")
	if s.Verified {
		badge = readyBadge.Render("Ready")
	}

	content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Session ID:"), s.SessionID))
	content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Type:"), strings.ToUpper(string(s.SourceType))))
	content.WriteString(fmt.Sprintf("%s %s %s\n", labelStyle.Render("Proxy URL:"), s.LocalRTSPURL, badge))
	content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Source:"), s.SourceURL))
	content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Created:"), s.CreatedAt.Local().Format("15:04:05")))

	content.WriteString("\n")
	content.WriteString(m.renderRecordingLine(snap))
	content.WriteString("\n\n")

	if preview := m.renderer.Preview(); preview != "" {
		content.WriteString(preview)
		content.WriteString("\n")
		info := m.renderer.Info()
		if snap.Disconnected {
			info = strings.TrimSpace(info + "  [Déconnecté]")
		}
		if dropped := m.renderer.Dropped(); dropped > 0 {
			info = fmt.Sprintf("%s | Dropped: %d", info, dropped)
		}
		content.WriteString(dimStyle.Render(info))
	} else if snap.Disconnected {
		content.WriteString(dimStyle.Render("Déconnecté"))
	} else {
		content.WriteString(dimStyle.Render("En attente..."))
	}

	content.WriteString("\n\n")
	content.WriteString(dimStyle.Render("r: record • s: stop • x: close session • V: open VLC on server"))
	return content.String()
}

func (m Model) renderRecordingLine(snap controller.Snapshot) string {
	switch snap.Recording {
	case controller.RecRecording:
		minutes := snap.Duration / 60
		elapsed := snap.Elapsed.Round(time.Second)
		return recordingStyle.Render(
			fmt.Sprintf("⏺ Enregistrement en cours... (durée: %d min, écoulé: %s)", minutes, elapsed))
	case controller.RecStarting:
		return recordingStyle.Render("⏺ Démarrage de l'enregistrement...")
	case controller.RecStopping:
		return dimStyle.Render("⏹ Arrêt de l'enregistrement...")
	case controller.RecDone:
		return doneStyle.Render("✓ Enregistrement terminé")
	case controller.RecError:
		return notReadyBadge.Render("✗ Erreur d'enregistrement")
	default:
		return dimStyle.Render(fmt.Sprintf("Prêt à enregistrer (durée: %s, touche d pour changer)",
			formatDuration(m.selectedDuration())))
	}
}

func (m Model) renderVideosTab() string {
	snap := m.ctrl.Snapshot()
	if len(snap.Videos) == 0 {
		return dimStyle.Render("Aucune vidéo enregistrée") + "\n\n" +
			dimStyle.Render("v: refresh")
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%d video(s):\n\n", len(snap.Videos)))
	for _, v := range snap.Videos {
		content.WriteString(fmt.Sprintf("• %s\n", labelStyle.Render(v.Filename)))
		content.WriteString(fmt.Sprintf("  %.2f MB - %s\n",
			v.SizeMB(), v.Created.Local().Format("2006-01-02 15:04:05")))
	}
	content.WriteString("\n")
	content.WriteString(dimStyle.Render("v: refresh • download via `camrec videos get <filename>`"))
	return content.String()
}

func formatDuration(seconds int) string {
	if seconds < 3600 {
		return fmt.Sprintf("%d min", seconds/60)
	}
	return fmt.Sprintf("%dh%02d", seconds/3600, seconds%3600/60)
}
