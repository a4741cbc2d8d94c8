package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"blob-storage-proxy-go/config"
	"blob-storage-proxy-go/secrets"
	"blob-storage-proxy-go/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func newResolver() (secrets.Resolver, error) {
	secretsConfig := config.LoadSecretsConfiguration(settingsViper)
	handler, ok := secretsConfig.Handler()
	if !ok {
		return secrets.NewResolver(nil), nil
	}
	proxy, err := secrets.CloudSecretsProxyFactory(handler, secretsConfig.CacheOptions())
	if err != nil {
		return nil, err
	}
	return secrets.NewResolver(proxy), nil
}

func run(ctx context.Context) error {
	resolver, err := newResolver()
	if err != nil {
		return fmt.Errorf("failed to create secrets store: %w", err)
	}
	settings, err := config.Load(ctx, settingsViper, resolver)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(settings.Server.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	azureHandler, err := settings.Azure.AuthHandler()
	if err != nil {
		return fmt.Errorf("failed to configure Azure authentication: %w", err)
	}
	awsHandler, err := settings.AWS.AuthHandler()
	if err != nil {
		return fmt.Errorf("failed to configure AWS authentication: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		Azure:          azureHandler,
		AWS:            awsHandler,
		Defaults:       settings.Azure,
		LinkExpiration: settings.Azure.LinkExpiration(),
		MaxUploadBytes: settings.Server.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              settings.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
		defer cancel()
		slog.Info("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting HTTP server",
			"listen", settings.Server.Listen,
			"account", settings.Azure.AccountName,
			"auth", azureHandler.AuthMode(),
			"aws", awsHandler != nil,
			"max_upload", humanize.IBytes(uint64(settings.Server.MaxUploadBytes)))
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
}
