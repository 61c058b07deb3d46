package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xReLogic/Tunly/internal/agent"
	"github.com/0xReLogic/Tunly/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the gateway and start forwarding",
	Long:  `Dial the configured gateway and forward relayed requests to the local service.`,
	RunE:  runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.String("remote-host", "", "gateway hostname (default app.tunly.online)")
	flags.String("local", "", "local service address \"host:port\" (default 127.0.0.1:80)")
	flags.Bool("use-wss", true, "use wss:// instead of ws:// to reach the gateway")
	flags.String("path", "", "duplex endpoint path on the gateway (default /ws)")
	flags.String("token-url", "", "URL to fetch a bearer token from before connecting")
	flags.String("token", "", "bearer token (env TUNLY_TOKEN, falls back to config.txt)")
	flags.String("log-level", "", "log level: debug, info, warn, error (default info)")

	for flagName, viperKey := range map[string]string{
		"remote-host": "remote_host",
		"local":       "local",
		"use-wss":     "use_wss",
		"path":        "path",
		"token-url":   "token_url",
		"token":       "token",
		"log-level":   "log_level",
	} {
		_ = viper.BindPFlag(viperKey, flags.Lookup(flagName))
	}

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	client := agent.NewClient(cfg.RemoteHost, cfg.Local, cfg.UseWSS, cfg.Path, cfg.TokenURL, cfg.Token, logger)

	logger.Info("tunly agent starting", "remote_host", cfg.RemoteHost, "local", cfg.Local)
	if err := client.Run(ctx); err != nil {
		return fmt.Errorf("agent stopped: %w", err)
	}
	logger.Info("tunly agent stopped")
	return nil
}
