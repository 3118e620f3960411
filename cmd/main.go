package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/handler"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/router"
	"github.com/weiawesome/wes-chat/internal/scheduler"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/middleware"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

func main() {
	if err := run(); err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("chat server stopped with error")
		os.Exit(1)
	}
}

// run owns every resource so that deferred cleanup always happens before
// the process exits.
func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn().Err(err).Msg("failed to close database")
		}
	}()

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Initialize event publisher
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("event publisher ready")

	// Initialize repositories
	messageRepo := repository.NewGormMessageRepository(db)
	groupRepo := repository.NewGormGroupRepository(db)
	pollRepo := repository.NewGormPollRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize hub and routing
	wsHub := hub.NewHub(cfg.WebSocket)
	registry := presence.NewRegistry()
	eventRouter := router.New(wsHub, registry, groupRepo)
	clock := clockwork.NewRealClock()

	deps := &service.Dependencies{
		Registry:     registry,
		Router:       eventRouter,
		Messages:     messageRepo,
		Groups:       groupRepo,
		Polls:        pollRepo,
		Users:        userRepo,
		Publisher:    publisher,
		Clock:        clock,
		HistoryLimit: cfg.Chat.HistoryLimit,
	}
	chatSvc := service.NewChatService(deps)
	groupSvc := service.NewGroupService(deps)

	sched := scheduler.New(messageRepo, eventRouter, publisher, clock, scheduler.Config{
		ExpiryInterval:   cfg.Scheduler.ExpiryInterval,
		DispatchInterval: cfg.Scheduler.DispatchInterval,
	})

	// Initialize auth middleware
	var tokens *jwt.Manager
	if cfg.Auth.Enabled {
		tokens = jwt.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer)
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHealthHandler(wsHub, registry).RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.NewWSHandler(wsHub, chatSvc, authMiddleware, cfg.WebSocket).RegisterRoutes(r)
	handler.NewHandler(groupSvc, authMiddleware).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Bool("auth", cfg.Auth.Enabled).Msg("chat server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down chat server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("chat server stopped")
	return nil
}
