package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/metrics"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	auth    *middleware.AuthMiddleware
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, auth *middleware.AuthMiddleware, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		auth:    auth,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request. With token auth enabled the
// handshake must carry a valid token; in header mode an X-Username header
// is optional and, when present, pins the name the connection may join as.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	var authName string
	if h.auth.Enabled() || r.Header.Get(middleware.UsernameHeader) != "" {
		name, err := h.auth.Authenticate(r)
		if err != nil {
			l.Warn().Err(err).Msg("websocket handshake rejected")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		authName = name
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	if authName != "" {
		client.Session.Authenticate(authName)
	}

	h.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleMessage)
		ctx := log.WithConn(context.Background(), client.ID)
		if err := h.service.HandleDisconnect(ctx, client); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("disconnect failed")
		}
	}()
}

// bind decodes a flat inbound frame into T, answering malformed frames
// with a bad request error.
func bind[T any](client *hub.Client, msgType string, raw []byte) (*T, bool) {
	var req T
	if err := json.Unmarshal(raw, &req); err != nil {
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid "+msgType+" message"))
		return nil, false
	}
	return &req, true
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := log.WithConn(context.Background(), client.ID)
	l := log.Ctx(ctx)

	if !client.Limiter.Allow() {
		metrics.InboundRateLimited.Inc()
		l.Debug().Msg("inbound frame dropped by rate limiter")
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeRateLimited, "Too many messages"))
		return
	}

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeJoin:
		req, ok := bind[domain.JoinMessage](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleJoin(ctx, client, req)

	case domain.MsgTypeCreateGroup:
		req, ok := bind[domain.CreateGroupMessage](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleCreateGroup(ctx, client, req)

	case domain.MsgTypeSendMessage:
		req, ok := bind[domain.SendMessageRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleSendMessage(ctx, client, req)

	case domain.MsgTypeDeleteMessage:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleDeleteMessage(ctx, client, req)

	case domain.MsgTypeEditMessage:
		req, ok := bind[domain.EditMessageRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleEditMessage(ctx, client, req)

	case domain.MsgTypeMessageSeen:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleMessageSeen(ctx, client, req)

	case domain.MsgTypeReactMessage:
		req, ok := bind[domain.ReactMessageRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleReactMessage(ctx, client, req)

	case domain.MsgTypePinMessage:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandlePinMessage(ctx, client, req)

	case domain.MsgTypeUnpinMessage:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleUnpinMessage(ctx, client, req)

	case domain.MsgTypeCreatePoll:
		req, ok := bind[domain.CreatePollRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleCreatePoll(ctx, client, req)

	case domain.MsgTypeVotePoll:
		req, ok := bind[domain.VotePollRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleVotePoll(ctx, client, req)

	case domain.MsgTypeClosePoll:
		req, ok := bind[domain.PollRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleClosePoll(ctx, client, req)

	case domain.MsgTypeViewOnceImage:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleViewOnce(ctx, client, req)

	case domain.MsgTypeCancelScheduled:
		req, ok := bind[domain.MessageRefRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleCancelScheduled(ctx, client, req)

	case domain.MsgTypeTyping, domain.MsgTypeStopTyping:
		req, ok := bind[domain.TypingRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleTyping(ctx, client, req, base.Type == domain.MsgTypeTyping)

	case domain.MsgTypeAddAdmin:
		req, ok := bind[domain.AdminRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleAddAdmin(ctx, client, req)

	case domain.MsgTypeRemoveAdmin:
		req, ok := bind[domain.AdminRequest](client, base.Type, message)
		if !ok {
			return
		}
		err = h.service.HandleRemoveAdmin(ctx, client, req)

	case domain.MsgTypePing:
		client.SendEvent(domain.EventPong, nil)
		return

	default:
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
		return
	}

	h.finish(ctx, client, base.Type, err)
}

// finish records the outcome of an action. Rejected actions are dropped
// quietly; only a missing join, a malformed request and internal failures
// are reported back to the connection.
func (h *WSHandler) finish(ctx context.Context, client *hub.Client, action string, err error) {
	l := log.Ctx(ctx)

	switch {
	case err == nil:
		metrics.ActionsTotal.WithLabelValues(action, metrics.ResultOK).Inc()

	case errors.Is(err, service.ErrNotJoined):
		metrics.ActionsTotal.WithLabelValues(action, metrics.ResultRejected).Inc()
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeNotJoined, "Join before sending "+action))

	case service.IsRejection(err):
		metrics.ActionsTotal.WithLabelValues(action, metrics.ResultRejected).Inc()
		l.Debug().Err(err).Str(log.FieldEventType, action).Msg("action rejected")
		if errors.Is(err, service.ErrInvalidRequest) {
			client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
		}

	default:
		metrics.ActionsTotal.WithLabelValues(action, metrics.ResultError).Inc()
		l.Error().Err(err).Str(log.FieldEventType, action).Msg("action failed")
		client.SendEvent(domain.EventError, domain.NewErrorMessage(domain.ErrCodeInternalError, "Internal error"))
	}
}

func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/chat/ws", gin.WrapF(h.HandleWebSocket))
}
