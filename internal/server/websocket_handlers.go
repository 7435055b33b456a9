package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/pano/internal/pipeline"
	"github.com/MeKo-Tech/pano/internal/sequence"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketSequenceRequest asks the server to process a sequence.
type WebSocketSequenceRequest struct {
	Type      string             `json:"type"` // "sequence"
	Sequence  *sequence.Sequence `json:"sequence"`
	Seed      *int64             `json:"seed,omitempty"`
	Reference *int               `json:"reference,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is streamed back to the client: one "progress"
// message per estimated pair, then a "result" or an "error".
type WebSocketResponse struct {
	Type      string               `json:"type"`
	Status    string               `json:"status"` // "processing", "completed", "error"
	Progress  float64              `json:"progress"`
	Pair      *pipeline.PairResult `json:"pair,omitempty"`
	Result    *pipeline.Result     `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorType string               `json:"error_type,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// sequenceWebSocketHandler handles WebSocket connections for streamed
// sequence processing.
func (s *Server) sequenceWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.log().Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn, getClientIP(r))
}

// handleWebSocketConnection processes messages until the client disconnects.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, clientID string) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log().Error("WebSocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, clientID, data)
		}
	}
}

// handleWebSocketMessage processes one request message.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, clientID string, data []byte) {
	var req WebSocketSequenceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	switch req.Type {
	case "sequence", "":
		s.processWebSocketSequence(ctx, conn, clientID, req, requestID)
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketSequence runs the pipeline and streams a progress message
// for every estimated pair.
func (s *Server) processWebSocketSequence(ctx context.Context, conn WebSocketConnWriter, clientID string, req WebSocketSequenceRequest, requestID string) {
	seq := req.Sequence
	if seq == nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No sequence provided")
		return
	}
	if err := seq.Validate(); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.ConsumeCorrespondences(clientID, sequenceSize(seq)); err != nil {
			s.sendWebSocketError(conn, requestID, "quota_exceeded", err.Error())
			return
		}
	}

	cfg := s.pipelineConfig
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Reference != nil {
		cfg.Reference = *req.Reference
	}
	if err := cfg.Validate(); err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "progress",
		Status:    "processing",
		RequestID: requestID,
	})

	total := len(seq.Pairs)
	estimated := 0
	listener := func(p pipeline.PairResult) {
		estimated++
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      "progress",
			Status:    "processing",
			Progress:  float64(estimated) / float64(max(total, 1)),
			Pair:      &p,
			RequestID: requestID,
		})
	}

	ctx, cancel := s.requestContextFrom(ctx)
	defer cancel()

	res, err := s.runSequence(ctx, cfg, seq, "websocket", pipeline.WithPairListener(listener))
	if err != nil {
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "result",
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

func (s *Server) requestContextFrom(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(ctx)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
