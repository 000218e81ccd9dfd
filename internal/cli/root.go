package cli

import (
	"context"
	"os"

	"quizit-service/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	port       string
	configPath string
}

// Execute runs the quizit command tree. ctx is canceled on shutdown signals.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "quizit",
		Short: "Serve timed quiz attempts with tab-switch proctoring and exactly-once submission",
		Long: `quizit runs the assessment engine: participants resume a randomized quiz attempt,
their countdown is tracked server-side, tab switches are counted over a WebSocket and the
attempt is submitted exactly once, by the participant or by the proctor.

Sessions live in memory, Redis or Postgres. Settings come from the YAML file given by
--config and can be overridden per key with ` + config.EnvPrefix + `* variables,
e.g. ` + config.EnvPrefix + `REDIS_ADDR or ` + config.EnvPrefix + `SESSION_BACKEND.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.port, "port", envOr("PORT", ""), "listen port; overrides server.port (env PORT)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envOr("CONFIG_PATH", "config/config.yaml"), "path to the YAML config (env CONFIG_PATH)")
	cmd.AddCommand(NewStartCmd(&opts.configPath, &opts.port))
	cmd.AddCommand(NewMigrateCmd(&opts.configPath))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
