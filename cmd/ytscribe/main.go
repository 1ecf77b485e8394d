package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ytscribe/ytscribe/pkg/config"
	"github.com/ytscribe/ytscribe/pkg/logging"
	"github.com/ytscribe/ytscribe/pkg/mcpserver"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ytscribe",
	Short: "YouTube transcript fetcher exposed as an MCP server",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcript tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logging.SetLevel(cfg.LogLevel)

			srv, err := mcpserver.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			logging.NewLogger(cmd.Context()).Infof("ytscribe %s serving MCP over stdio", mcpserver.Version)
			return srv.ServeStdio()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ytscribe " + mcpserver.Version)
		},
	}
}
