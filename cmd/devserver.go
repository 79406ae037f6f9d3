package cmd

import (
	"context"
	"net/http"
	"time"

	"community-access-client/internal/devserver"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var devserverAddr string

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stand-in for the community backend",
	Long: `Run an in-memory emulation of the backend endpoints for local
development. Seeded with one owner account: resident@example.com / secret123.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		srv := &http.Server{
			Addr:         devserverAddr,
			Handler:      devserver.New().Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", devserverAddr).Msg("Starting dev server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down dev server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	devserverCmd.Flags().StringVar(&devserverAddr, "addr", "127.0.0.1:8089", "Listen address")
	rootCmd.AddCommand(devserverCmd)
}
