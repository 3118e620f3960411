package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/router"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/middleware"
)

type stack struct {
	engine   *gin.Engine
	registry *presence.Registry
	groups   repository.GroupRepository
	messages repository.MessageRepository
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
		SendBuffer:     256,
	}
}

func newStack(t *testing.T, auth *middleware.AuthMiddleware, wsCfg config.WebSocketConfig) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })

	h := hub.NewHub(wsCfg)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	registry := presence.NewRegistry()
	groupRepo := repository.NewGormGroupRepository(db)
	deps := &service.Dependencies{
		Registry: registry,
		Router:   router.New(h, registry, groupRepo),
		Messages: repository.NewGormMessageRepository(db),
		Groups:   groupRepo,
		Polls:    repository.NewGormPollRepository(db),
		Users:    repository.NewGormUserRepository(db),
	}
	chatSvc := service.NewChatService(deps)
	groupSvc := service.NewGroupService(deps)

	r := gin.New()
	NewWSHandler(h, chatSvc, auth, wsCfg).RegisterRoutes(r)
	NewHandler(groupSvc, auth).RegisterRoutes(r)
	NewHealthHandler(h, registry).RegisterRoutes(r)

	return &stack{
		engine:   r,
		registry: registry,
		groups:   groupRepo,
		messages: deps.Messages,
	}
}
