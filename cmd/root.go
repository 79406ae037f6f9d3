package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"community-access-client/internal/config"
	"community-access-client/internal/gateway"
	"community-access-client/internal/services"
	"community-access-client/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	baseURL string
	cfg     *config.Config
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "community-access",
	Short: "Client for the residential community access service",
	Long: `community-access drives the residential community access backend:
log in, generate visitor and tenant access codes, manage gate permissions,
and view the community feed.

Environment Variables:
  ACCESS_API_BASE_URL  Backend base URL
  ACCESS_STORE_DIR     Credential store directory
  ACCESS_LOG_LEVEL     Log level (debug|info|warn|error)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env next to the binary is a convenience for development.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if baseURL != "" {
			cfg.API.BaseURL = baseURL
		}
		setupLogger(cfg.Log.Level)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "api-url", "", "Backend base URL (overrides config and env)")
}

// app bundles the wired service layer for command handlers.
type app struct {
	sessions    *services.SessionManager
	invitations *services.InvitationService
	home        *services.HomeService
}

// newApp wires store -> gateway -> services and restores the session.
func newApp(ctx context.Context) (*app, error) {
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("no backend base URL configured (set api.base_url or ACCESS_API_BASE_URL)")
	}

	creds, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	gw := gateway.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	gw.SetNotifier(func(msg string) {
		fmt.Fprintf(os.Stderr, "» %s\n", msg)
	})

	sessions := services.NewSessionManager(gw, creds)
	if err := sessions.Initialize(ctx); err != nil {
		return nil, err
	}

	return &app{
		sessions:    sessions,
		invitations: services.NewInvitationService(gw, sessions),
		home:        services.NewHomeService(gw, sessions),
	}, nil
}

// setupLogger configures zerolog
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
