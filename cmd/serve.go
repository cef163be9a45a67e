package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ops HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := appFrom(cmd)
		ctx := cmd.Context()

		server := api.NewServer(a.Repo, a.Enqueuer, a.Guard, a.DB, a.Logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger.Info("Ops server listening", zap.Int("port", a.Config.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.Logger.Info("Shutting down ops server")
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
