package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wael22/camrec/pkg/proxy"
)

func newOpenCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <camera-url>",
		Short: "Open a proxy session against a camera URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}

			client := proxy.NewClient(cfg.ServerURL)
			session, err := client.OpenSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ready := "Not Ready"
			if session.Verified {
				ready = "Ready"
			}
			fmt.Printf("Session ID: %s\n", session.SessionID)
			fmt.Printf("Type:       %s\n", session.SourceType)
			fmt.Printf("Proxy URL:  %s (%s)\n", session.LocalRTSPURL, ready)
			fmt.Printf("Source:     %s\n", session.SourceURL)
			return nil
		},
	}
}

func newCloseCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a proxy session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}

			client := proxy.NewClient(cfg.ServerURL)
			if err := client.CloseSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Session %s closed\n", args[0])
			return nil
		},
	}
}

func newSessionsCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active sessions on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}

			client := proxy.NewClient(cfg.ServerURL)
			sessions, err := client.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			if len(sessions) == 0 {
				fmt.Println("No active sessions")
				return nil
			}
			for _, s := range sessions {
				recording := ""
				if s.Recording {
					recording = " [recording]"
				}
				fmt.Printf("%s  %s  %s%s\n", s.SessionID, s.SourceType, s.SourceURL, recording)
			}
			return nil
		},
	}
}
