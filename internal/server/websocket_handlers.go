package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/pipeline"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are not restricted; the endpoint carries no credentials.
		return true
	},
}

// ProgressMessage is one message streamed over the progress websocket.
type ProgressMessage struct {
	Type string `json:"type"` // "progress", "completed", "error"

	// Step is set on progress messages, in workflow order.
	Step string `json:"step,omitempty"`

	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"errorType,omitempty"`
}

// progressWebSocketHandler runs the workflow while streaming per-step
// progress, then the final result, over a websocket.
func (s *Server) progressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("websocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep the connection alive while the workflow runs.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleProgressRequest(r, conn, data)
	}
}

// handleProgressRequest runs one workflow invocation for a websocket client.
func (s *Server) handleProgressRequest(r *http.Request, conn *websocket.Conn, data []byte) {
	var req pipeline.Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendProgress(conn, ProgressMessage{
			Type:      "error",
			Error:     fmt.Sprintf("failed to parse request: %v", err),
			ErrorType: string(apperr.Validation),
		})
		return
	}

	// The workflow outlives the read deadline; streaming progress is the
	// liveness signal instead.
	_ = conn.SetReadDeadline(time.Time{})

	start := time.Now()
	res, err := s.workflow.Run(r.Context(), req, func(step string) {
		s.sendProgress(conn, ProgressMessage{Type: "progress", Step: step})
	})
	if err != nil {
		workflowRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendProgress(conn, ProgressMessage{
			Type:      "error",
			Error:     err.Error(),
			ErrorType: string(apperr.KindOf(err)),
		})
		return
	}
	workflowRequestsTotal.WithLabelValues("websocket", "success").Inc()
	workflowDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	fieldsDetected.Observe(float64(len(res.AutoDetectedFields)))

	s.sendProgress(conn, ProgressMessage{Type: "completed", Result: res})
}

func (s *Server) sendProgress(conn *websocket.Conn, msg ProgressMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal websocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("failed to send websocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
