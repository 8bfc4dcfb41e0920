package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wael22/camrec/pkg/proxy"
)

func newRecordCmd(serverURL *string) *cobra.Command {
	var duration int
	var wait bool

	cmd := &cobra.Command{
		Use:   "record <session-id>",
		Short: "Start a capped-duration recording on a session",
		Long: `Starts a recording on an open session. The server stops it on its own
once the duration cap is reached; with --wait the command polls the
recording status until then and reports the outcome.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}
			sessionID := args[0]

			client := proxy.NewClient(cfg.ServerURL)
			if err := client.StartRecording(cmd.Context(), sessionID, duration); err != nil {
				return err
			}
			fmt.Printf("Recording started on %s (cap %ds)\n", sessionID, duration)

			if !wait {
				return nil
			}

			// The server's start ack and its state commit are not atomic, and
			// there is no push channel for completion: poll until it reports
			// the recording over.
			deadline := time.Now().Add(time.Duration(duration)*time.Second + 30*time.Second)
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					// The command context is already cancelled here; the stop
					// request needs its own.
					fmt.Println("Interrupted, stopping recording")
					stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return client.StopRecording(stopCtx, sessionID)
				case <-ticker.C:
					status, err := client.RecordingStatus(cmd.Context(), sessionID)
					if err != nil {
						fmt.Printf("status check failed: %v\n", err)
						continue
					}
					if !status.Recording {
						fmt.Println("Recording finished")
						return nil
					}
					if time.Now().After(deadline) {
						return fmt.Errorf("recording still running past its %ds cap", duration)
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 60, "recording cap in seconds")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the recording to finish")
	return cmd
}
