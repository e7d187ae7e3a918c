package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinlex/medfuse/internal/application"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

var servePort int

// newServeCmd creates the serve command, an embedded variant of the
// apiserver binary.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MedFuse API server",
		Long: "Start the HTTP API server with the loaded configuration.\n" +
			"The server runs until it receives SIGINT or SIGTERM, then drains\n" +
			"in-flight requests before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides configuration)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	cfg := cliCtx.Config
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	app, err := application.NewApp(cfg, cliCtx.Logger, Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliCtx.Logger.Info("starting API server",
		logging.Int("port", cfg.Server.Port),
		logging.String("mode", cfg.Server.Mode),
		logging.String("backend", cfg.Tagger.Backend),
		logging.String("version", Version))

	return app.Run(ctx)
}
