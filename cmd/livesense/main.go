package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/livesense/internal/cmd/client"
	serverrun "github.com/rzbill/livesense/internal/cmd/server"
	cfgpkg "github.com/rzbill/livesense/internal/config"
	pebblestore "github.com/rzbill/livesense/internal/storage/pebble"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "livesense",
		Short: "Live multi-plot sensor dashboard",
		Long:  "livesense samples synthetic sensors and streams them to a browser dashboard over HTTP and gRPC.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the dashboard server (HTTP and gRPC)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			uiBase, _ := cmd.Flags().GetString("ui-base")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			// flags win over file and env
			if cmd.Flags().Changed("plots") {
				cfg.Plots, _ = cmd.Flags().GetInt("plots")
			}
			if cmd.Flags().Changed("record") {
				cfg.Recorder.Enabled, _ = cmd.Flags().GetBool("record")
			}
			levelPinned := false
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
				levelPinned = true
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}

			mode := pebblestore.FsyncModeUnspecified
			if fsyncMode != "" {
				if mode, err = pebblestore.ParseFsyncMode(fsyncMode); err != nil {
					return fmt.Errorf("invalid --fsync; use always|interval|never")
				}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:        dataDir,
				GRPCAddr:       grpcAddr,
				HTTPAddr:       httpAddr,
				UIBase:         uiBase,
				ConfigPath:     configPath,
				LogLevelPinned: levelPinned,
				Fsync:          mode,
				FsyncInterval:  time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:         cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("LIVESENSE_CONFIG"), "Config file (JSON or YAML); watched for live control changes")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("grpc", ":50051", "gRPC listen address (empty disables gRPC)")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address (API + UI)")
	serverStartCmd.Flags().String("ui-base", os.Getenv("LIVESENSE_UI_BASE"), "UI base path (default /ui; use / to serve at root)")
	serverStartCmd.Flags().Int("plots", 6, "Number of plots on the page")
	serverStartCmd.Flags().Bool("record", true, "Record sample history to Pebble")
	serverStartCmd.Flags().String("fsync", "", "Recorder fsync mode: always|interval|never (default from config)")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	clientcmd.AddCommands(rootCmd, apiURL)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("LIVESENSE_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
