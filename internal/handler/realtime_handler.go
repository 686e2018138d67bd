package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"taskflow/internal/realtime"
)

// RealtimeHandler upgrades authenticated requests to task event streams.
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates a new realtime handler. A nil checkOrigin
// allows any origin.
func NewRealtimeHandler(hub *realtime.Hub, checkOrigin func(r *http.Request) bool) *RealtimeHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// AllowedOrigins returns an origin check accepting only origins, or nil
// (any origin) when origins is empty.
func AllowedOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Stream godoc
// @Summary Task event stream
// @Description Websocket of task.created, task.assigned, task.updated, task.completed and task.deleted events for tasks the requester created or was assigned. Browsers pass the access token as the token query parameter.
// @Tags tasks
// @Security BearerAuth
// @Param token query string false "Access token when the Authorization header cannot be set"
// @Success 101
// @Failure 401 {object} errors.ErrorResponse
// @Router /ws [get]
func (h *RealtimeHandler) Stream(c echo.Context) error {
	user := Requester(c)
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Printf("realtime: upgrade for user %d: %v", user.ID, err)
		return nil
	}
	realtime.NewClient(h.hub, conn, user.ID).Serve()
	return nil
}
