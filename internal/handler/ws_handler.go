package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-meet/internal/domain"
	"github.com/weiawesome/wes-meet/internal/hub"
	"github.com/weiawesome/wes-meet/internal/service"
	pkglog "github.com/weiawesome/wes-meet/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Rooms are gated by client address, not page origin
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.SignalService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.SignalService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	reqLogger := pkglog.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		reqLogger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	remoteIP := c.ClientIP()
	c.Set(pkglog.FieldClientID, clientID)

	// The request context ends with the handler; the connection gets its own.
	connLogger := reqLogger.With().Str(pkglog.FieldClientID, clientID).Logger()
	ctx := pkglog.WithLogger(context.Background(), connLogger)

	client := hub.NewClient(ctx, h.hub, conn, clientID, remoteIP)
	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(c.Context(), c); err != nil {
			l := pkglog.Ctx(c.Context())
			l.Error().Err(err).Msg("disconnect handler error")
		}
		l := pkglog.Ctx(c.Context())
		l.Info().
			Int64("messages", c.Session.Messages()).
			Dur("duration", c.Session.Duration()).
			Msg("client disconnected")
	})

	h.hub.Register(client)
	connLogger.Info().Msg("client connected")

	go client.WritePump()
	client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := client.Context()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		h.logResult(ctx, "", errors.Join(service.ErrInvalidMessage, err))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err = json.Unmarshal(message, &msg); err == nil {
			err = h.service.HandleJoin(ctx, client, msg.RoomID, msg.Name)
		}

	case domain.MsgTypeOffer, domain.MsgTypeAnswer, domain.MsgTypeCandidate:
		var msg domain.SignalMessage
		if err = json.Unmarshal(message, &msg); err == nil {
			err = h.service.HandleSignal(ctx, client, base.Type, msg.To, msg.Payload)
		}

	case domain.MsgTypeChat:
		var msg domain.ChatRequest
		if err = json.Unmarshal(message, &msg); err == nil {
			err = h.service.HandleChat(ctx, client, msg.RoomID, msg.Name, msg.Text)
		}

	case domain.MsgTypeFile:
		var msg domain.FileRequest
		if err = json.Unmarshal(message, &msg); err == nil {
			err = h.service.HandleFile(ctx, client, msg)
		}

	case domain.MsgTypePing:
		err = client.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})

	default:
		err = service.ErrInvalidMessage
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		err = errors.Join(service.ErrInvalidMessage, err)
	}
	h.logResult(ctx, base.Type, err)
}

// logResult keeps malformed-client noise at debug level.
func (h *WSHandler) logResult(ctx context.Context, msgType string, err error) {
	if err == nil {
		return
	}
	l := pkglog.Ctx(ctx)
	if errors.Is(err, service.ErrInvalidMessage) {
		l.Debug().Err(err).Str(pkglog.FieldMsgType, msgType).Msg("message dropped")
		return
	}
	l.Error().Err(err).Str(pkglog.FieldMsgType, msgType).Msg("message handling failed")
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.HandleWebSocket)
}
