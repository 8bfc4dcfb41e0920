package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wael22/camrec/internal/config"
	"github.com/wael22/camrec/internal/controller"
	"github.com/wael22/camrec/internal/logging"
	"github.com/wael22/camrec/internal/render"
	"github.com/wael22/camrec/internal/tui"
	"github.com/wael22/camrec/pkg/proxy"
)

func newRootCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "camrec",
		Short: "Terminal client for the camera proxy recorder",
		Long: `camrec drives a camera proxy server from the terminal: open a proxy
session against an IP camera (MJPEG or RTSP), watch the live preview,
start and stop capped-duration recordings, and fetch finished videos.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "proxy server base URL (overrides config)")

	cmd.AddCommand(newWatchCmd(&serverURL))
	cmd.AddCommand(newOpenCmd(&serverURL))
	cmd.AddCommand(newCloseCmd(&serverURL))
	cmd.AddCommand(newRecordCmd(&serverURL))
	cmd.AddCommand(newSessionsCmd(&serverURL))
	cmd.AddCommand(newVideosCmd(&serverURL))
	cmd.AddCommand(newMockCmd())

	return cmd
}

// loadConfig merges the config file, env overrides and the --server flag.
func loadConfig(serverURL *string) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if serverURL != nil && *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	return cfg, nil
}

func newWatchCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Interactive session, preview and recording UI",
		Example: `  # Watch against the configured server
  camrec watch

  # Watch against a specific server
  camrec watch --server http://127.0.0.1:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}

			closeLog, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer closeLog()

			renderer := render.New(80, 20)
			ctrl := controller.New(proxy.NewClient(cfg.ServerURL), renderer)

			p := tea.NewProgram(
				tui.New(cfg, ctrl, renderer),
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
			)

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running program: %w", err)
			}
			return nil
		},
	}
}
