package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/runtime"
	srv "github.com/mohammad-safakhou/brieflab/internal/server"
)

const shutdownTimeout = 30 * time.Second

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *cfgPath, appOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			secret, err := runtime.LoadJWTSecret(a.cfg)
			switch {
			case errors.Is(err, runtime.ErrAuthDisabled):
				a.logger.Warn("server.jwt_secret is empty; the API is unauthenticated")
			case err != nil:
				return err
			}

			server, err := srv.New(srv.Options{
				Jobs:           a.processor,
				Runs:           a.tracker,
				Reports:        a.archive,
				JWTSecret:      secret,
				UploadLimitMB:  a.cfg.Server.UploadLimitMB,
				GenerateImages: a.generateImages(),
				Gatherer:       a.registry,
				Logger:         a.logger,
			})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Address
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(addr) }()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http shutdown", zap.Error(err))
			}
			return a.processor.Shutdown(shutdownCtx)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
