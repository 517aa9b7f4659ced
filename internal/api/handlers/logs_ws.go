package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Log forwarders run inside sandboxed previews on arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IngestWS handles GET /v1/projects/{projectID}/logs/ws. The forwarder
// streams log entries as JSON text messages over a websocket, one entry
// per message. Auth happens in middleware via the access_token query
// parameter before the upgrade.
func (h *LogsHandler) IngestWS(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		WriteBadRequest(w, "Project ID is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "project_id", projectID, "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	h.logger.Info("log forwarder connected", "project_id", projectID)
	for {
		var req logRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("log forwarder closed unexpectedly", "project_id", projectID, "error", err)
			}
			return
		}
		if req.Message == "" {
			continue
		}
		h.ingest(projectID, req)
	}
}

func (h *LogsHandler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
