package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/config"
	"github.com/mikepea/utubs/pkg/utubs/database"
	"github.com/mikepea/utubs/pkg/utubs/logging"
	"github.com/mikepea/utubs/pkg/utubs/server"
	"github.com/spf13/cobra"
)

// @title UTubs API
// @version 1.0
// @description Shared link collections with per-UTub tags.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "utubs-server",
		Short:        "Serve the UTubs API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to utubs.toml")

	cmd.AddCommand(&cobra.Command{
		Use:   "init-config [path]",
		Short: "Write an example config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "utubs.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.Log.Level)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Connect(cfg.Server.DBPath, logger); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database ready", "path", cfg.Server.DBPath)

	if cfg.Server.JWTSecret == "" {
		logger.Warn("no jwt_secret configured, using the development secret")
	}
	auth.Configure(cfg.Server.JWTSecret, cfg.Server.TokenTTL)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(database.GetDB(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting UTubs server", "addr", cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
