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
	"github.com/kartikbazzad/bunbase/tracker/internal/auth"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
	"github.com/kartikbazzad/bunbase/tracker/internal/config"
	"github.com/kartikbazzad/bunbase/tracker/internal/database"
	"github.com/kartikbazzad/bunbase/tracker/internal/handlers"
	"github.com/kartikbazzad/bunbase/tracker/internal/idgen"
	"github.com/kartikbazzad/bunbase/tracker/internal/labels"
	"github.com/kartikbazzad/bunbase/tracker/internal/membership"
	"github.com/kartikbazzad/bunbase/tracker/internal/store"
	"github.com/kartikbazzad/bunbase/tracker/internal/tasks"
	"github.com/kartikbazzad/bunbase/tracker/internal/token"
	"github.com/kartikbazzad/bunbase/tracker/internal/users"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides config)")
	return cmd
}

func buildRouter(cfg *config.AppConfig, st store.Store) (*gin.Engine, error) {
	if err := cfg.ValidateJWTSecret(); err != nil {
		return nil, err
	}
	codec, err := token.NewCodec([]byte(cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}
	log := logger.Get()
	tokens := token.NewService(codec, token.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
	})
	ids := idgen.New()
	sync := labels.New(st, log)
	authority := membership.New(st, ids, log)
	enforcer, err := authz.NewEnforcer(authority, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy: %w", err)
	}

	return handlers.NewRouter(handlers.Deps{
		Auth: auth.NewService(st, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, ids, auth.Config{
			RefreshRevalidate: cfg.Auth.RefreshRevalidate,
		}, log),
		Users:          users.NewService(st, log),
		Projects:       authority,
		Labels:         sync,
		Tasks:          tasks.NewService(st, sync, ids, log),
		Tokens:         tokens,
		Enforcer:       enforcer,
		Logger:         log,
		CORSOrigin:     cfg.CORSOrigin,
		LoginPerMinute: cfg.RateLimit.PerMinute,
		LoginBurst:     cfg.RateLimit.Burst,
	}), nil
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	router, err := buildRouter(cfg, st)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tracker API starting", "addr", srv.Addr, "driver", cfg.DB.Driver, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
