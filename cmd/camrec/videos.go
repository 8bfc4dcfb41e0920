package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wael22/camrec/pkg/proxy"
)

func newVideosCmd(serverURL *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List or download finished recordings",
	}
	cmd.AddCommand(newVideosListCmd(serverURL))
	cmd.AddCommand(newVideosGetCmd(serverURL))
	return cmd
}

func newVideosListCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List finished recordings on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}

			client := proxy.NewClient(cfg.ServerURL)
			videos, err := client.ListVideos(cmd.Context())
			if err != nil {
				return err
			}

			if len(videos) == 0 {
				fmt.Println("No videos recorded")
				return nil
			}
			for _, v := range videos {
				fmt.Printf("%-50s %8.2f MB  %s\n",
					v.Filename, v.SizeMB(), v.Created.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newVideosGetCmd(serverURL *string) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "get <filename>",
		Short: "Download a finished recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.DownloadDir
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("create download dir: %w", err)
			}

			filename := args[0]
			outPath := filepath.Join(outDir, filepath.Base(filename))
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer out.Close()

			client := proxy.NewClient(cfg.ServerURL)
			n, err := client.DownloadVideo(cmd.Context(), filename, out)
			if err != nil {
				os.Remove(outPath)
				return err
			}

			fmt.Printf("Saved %s (%.2f MB)\n", outPath, float64(n)/(1024*1024))
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to config download_dir)")
	return cmd
}
