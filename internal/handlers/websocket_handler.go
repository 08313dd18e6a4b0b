package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/greenvalley/society-portal-backend/internal/middleware"
	"github.com/greenvalley/society-portal-backend/internal/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler upgrades authenticated requests to event streams
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
	logger   *logrus.Logger
}

// NewWebSocketHandler creates a handler accepting connections from allowedOrigins.
// A "*" entry accepts any origin.
func NewWebSocketHandler(hub *websocket.Hub, allowedOrigins []string, logger *logrus.Logger) *WebSocketHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		logger: logger,
	}
}

// Connect handles GET /api/ws?token=
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WithError(err).WithField("user_id", userCtx.UserID).Warn("WebSocket upgrade failed")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": userCtx.UserID,
		"role":    userCtx.Role,
	}).Info("WebSocket connected")

	h.hub.Serve(conn, websocket.NewClient(userCtx.UserID, userCtx.Role))
}
