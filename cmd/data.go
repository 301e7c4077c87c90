package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/metrowaste/zoneplanner/pkg/worldpop"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage local population raster data",
}

var fetchDest string

var dataFetchCmd = &cobra.Command{
	Use:   "fetch FILE...",
	Short: "Download population raster tiles from the public mirror",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dl := worldpop.NewDownloader(worldpop.DownloaderOptions{
			Host:    cfg.Worldpop.FTPHost,
			Root:    cfg.Worldpop.FTPRoot,
			Timeout: time.Duration(cfg.Worldpop.TimeoutSecs) * time.Second,
		})

		dest := fetchDest
		if dest == "" {
			dest = cfg.Worldpop.DataDir
		}

		for _, name := range args {
			path, n, err := dl.Fetch(cmd.Context(), name, dest)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d bytes)\n", path, n)
		}
		return nil
	},
}

func init() {
	dataFetchCmd.Flags().StringVar(&fetchDest, "dest", "", "destination directory (default from config)")
	dataCmd.AddCommand(dataFetchCmd)
	rootCmd.AddCommand(dataCmd)
}
