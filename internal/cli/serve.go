package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracex/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracex/internal/infrastructure/server"
)

func newServeCmd(s *state) *cobra.Command {
	var port, host, keys string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local development collector",
		Long: `Run the in-memory development collector. Flags override PORT,
HOST and COLLECTOR_PRIVATE_KEYS_PATH.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *s.cfg
			if port != "" {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if keys != "" {
				cfg.Server.PrivateKeysPath = keys
			}

			logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
			srv, err := server.NewServer(&cfg, server.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				errChan <- srv.Run()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Error during shutdown", zap.Error(err))
					return err
				}
				return nil
			case err := <-errChan:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Server port")
	cmd.Flags().StringVar(&host, "host", "", "Bind address")
	cmd.Flags().StringVar(&keys, "keys", "", "Facilitator key file used to decrypt envelopes")
	return cmd
}
