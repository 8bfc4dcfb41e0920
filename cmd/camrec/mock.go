package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wael22/camrec/internal/mockserver"
)

func newMockCmd() *cobra.Command {
	var port string
	var videosDir string
	var fps int

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a mock camera proxy server for local development",
		Long: `Serves the full camera proxy contract with synthetic preview frames and
faked recordings. Point the client at it to work without a camera:

  camrec mock --port 8000 &
  camrec watch --server http://127.0.0.1:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

			server := mockserver.New(port, videosDir, fps)
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Printf("Mock camera proxy listening on %s\n", server.URL())

			<-cmd.Context().Done()
			return server.Stop()
		},
	}

	cmd.Flags().StringVar(&port, "port", "8000", "port to listen on")
	cmd.Flags().StringVar(&videosDir, "videos-dir", "videos", "directory served as the video listing")
	cmd.Flags().IntVar(&fps, "fps", 15, "synthetic preview frame rate")
	return cmd
}
