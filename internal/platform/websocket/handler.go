package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/session"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sseKeepAlive = 25 * time.Second
	sendBuffer   = 64
)

// Handler serves the WebSocket and SSE endpoints for a Hub.
type Handler struct {
	hub       *Hub
	upgrader  gorillawebsocket.Upgrader
	onConnect []func(subject, sessionID string)
}

// NewHandler creates a handler. allowedOrigins restricts WebSocket upgrades;
// "*" or an empty list allows any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
			},
		},
	}
}

// OnConnect registers fn to run before a new stream is registered with the
// hub.
func (h *Handler) OnConnect(fn func(subject, sessionID string)) {
	h.onConnect = append(h.onConnect, fn)
}

func (h *Handler) connected(subject, sessionID string) {
	for _, fn := range h.onConnect {
		fn(subject, sessionID)
	}
}

// RegisterRoutes mounts GET /ws on e and GET /events on the api group.
func (h *Handler) RegisterRoutes(e *echo.Echo, api *echo.Group) {
	e.GET("/ws", h.HandleConnect)
	api.GET("/events", h.HandleEvents)
}

// streamSession returns the patient session a stream belongs to. Topics
// are keyed by patient id, so doctor sessions have nothing to follow.
func streamSession(c echo.Context) (*session.Session, error) {
	s := auth.Current(c)
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if s.Role != session.RolePatient {
		return nil, echo.NewHTTPError(http.StatusForbidden, "live updates are only available to patients")
	}
	return s, nil
}

// defaultTopics are the topics a new stream is subscribed to: both record
// kinds of the session subject, or only those named in ?topics=.
func defaultTopics(c echo.Context, subject string) []string {
	kinds := []string{KindPrescriptions, KindReports}
	if q := c.QueryParam("topics"); q != "" {
		kinds = strings.Split(q, ",")
	}
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Topic(strings.TrimSpace(k), subject))
	}
	return out
}

// HandleConnect upgrades to WebSocket, registers the client with the hub,
// and starts read/write pumps.
func (h *Handler) HandleConnect(c echo.Context) error {
	s, err := streamSession(c)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:      uuid.New().String(),
		Subject: s.SubjectID,
		Topics:  defaultTopics(c, s.SubjectID),
		Send:    make(chan []byte, sendBuffer),
	}
	h.connected(s.SubjectID, s.ID)
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleEvents streams hub events as Server-Sent Events until the client
// disconnects.
func (h *Handler) HandleEvents(c echo.Context) error {
	s, err := streamSession(c)
	if err != nil {
		return err
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	client := &Client{
		ID:      uuid.New().String(),
		Subject: s.SubjectID,
		Topics:  defaultTopics(c, s.SubjectID),
		Send:    make(chan []byte, sendBuffer),
	}
	h.connected(s.SubjectID, s.ID)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", client.ID)
	w.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-client.Send:
			if !ok {
				return nil
			}
			var evt Event
			_ = json.Unmarshal(msg, &evt)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, msg)
			w.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			w.Flush()
		}
	}
}
