package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "github.com/0xReLogic/Tunly/internal/adapter/inbound/http"
	"github.com/0xReLogic/Tunly/internal/adapter/inbound/httpgw"
	"github.com/0xReLogic/Tunly/internal/adapter/outbound/memory"
	"github.com/0xReLogic/Tunly/internal/config"
	"github.com/0xReLogic/Tunly/internal/domain/credential"
	"github.com/0xReLogic/Tunly/internal/domain/session"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long:  `Start the Tunly gateway HTTP listener.`,
	RunE:  runStart,
}

func init() {
	flags := startCmd.Flags()
	flags.String("host", "", "interface to listen on (default 0.0.0.0)")
	flags.Int("port", 0, "port to listen on (env PORT, default 8080)")
	flags.String("bind", "", "listen address \"host:port\", overrides --host/--port")
	flags.String("token", "", "fixed bearer token (env TUNLY_TOKEN); activates fixed-token mode")
	flags.String("jwt-secret", "", "secret signing ephemeral credentials (env TUNLY_JWT_SECRET)")
	flags.Bool("allow-token-query", false, "permit ?token= as a fallback to the Authorization header")
	flags.String("internal-key", "", "operator key gating /token (env TUNLY_INTERNAL_KEY)")
	flags.String("tls-cert-file", "", "TLS certificate file; enables HTTPS with --tls-key-file")
	flags.String("tls-key-file", "", "TLS key file; enables HTTPS with --tls-cert-file")
	flags.String("log-level", "", "log level: debug, info, warn, error (default info)")

	for flagName, viperKey := range map[string]string{
		"host":              "host",
		"port":              "port",
		"bind":              "bind",
		"token":             "token",
		"jwt-secret":        "jwt_secret",
		"allow-token-query": "allow_token_query",
		"internal-key":      "internal_key",
		"tls-cert-file":     "tls_cert_file",
		"tls-key-file":      "tls_key_file",
		"log-level":         "log_level",
	} {
		_ = viper.BindPFlag(viperKey, flags.Lookup(flagName))
	}

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGatewayConfig()
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

	mode, secret, fixedToken, err := resolveCredentialMode(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpadapter.NewMetrics(reg)

	sessions := session.NewManager(metrics.ActiveSessions)
	credentials := credential.NewService(mode, secret, fixedToken)
	rateLimiter := memory.NewRateLimiter()

	duplexHandler := httpgw.NewDuplexHandler(sessions, credentials, cfg.AllowTokenQuery, logger)

	transport := httpadapter.NewHTTPTransport(
		sessions, credentials, rateLimiter,
		httpadapter.WithAddr(cfg.Addr()),
		httpadapter.WithTLS(cfg.TLSCertFile, cfg.TLSKeyFile),
		httpadapter.WithLogger(logger),
		httpadapter.WithVersion(Version),
		httpadapter.WithDuplexHandler(duplexHandler),
		httpadapter.WithInternalKey(cfg.InternalKey),
		httpadapter.WithMetrics(reg, metrics),
	)

	stopSweeps := make(chan struct{})
	go sessions.RunIdleSweep(stopSweeps)
	go credentials.RunExpiredSweep(session.SweepInterval, stopSweeps)
	rateLimiter.StartCleanup(ctx)

	modeName := "ephemeral"
	if mode == credential.ModeFixed {
		modeName = "fixed"
	}
	logger.Info("tunly gateway starting", "addr", cfg.Addr(), "mode", modeName)
	err = transport.Start(ctx)
	close(stopSweeps)
	rateLimiter.Stop()

	if err != nil {
		return fmt.Errorf("gateway stopped: %w", err)
	}
	logger.Info("tunly gateway stopped")
	return nil
}

// resolveCredentialMode picks fixed-token or ephemeral mode: a configured
// --token activates fixed mode; otherwise ephemeral mode signs credentials
// with --jwt-secret, generating a random 32-byte secret when none is
// configured (credentials then do not survive a restart).
func resolveCredentialMode(cfg *config.GatewayConfig, logger *slog.Logger) (credential.Mode, []byte, string, error) {
	if cfg.Token != "" {
		return credential.ModeFixed, nil, cfg.Token, nil
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return 0, nil, "", fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = generated
		logger.Warn("no --jwt-secret configured, generated a random secret for this run; issued credentials will not survive a restart")
	}
	return credential.ModeEphemeral, secret, "", nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
