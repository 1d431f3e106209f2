package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var wsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// same policy as the CORS header of the HTTP endpoints
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketRequest is a JSON text frame sent by the client. Binary frames
// carry raw image bytes and are decoded with the session options.
type WebSocketRequest struct {
	Type     string         `json:"type"` // "image" or "options"
	Image    []byte         `json:"image,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// WebSocketResponse is sent for every request.
type WebSocketResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "ok", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsSession is the state of one connection.
type wsSession struct {
	conn WebSocketConnWriter
	opts RequestOptions
	dec  decoder
}

// decodeWebSocketHandler upgrades the connection and decodes every frame.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
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
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	session := &wsSession{conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketImage(ctx, session, data, "")
		case websocket.TextMessage:
			s.handleWebSocketMessage(ctx, session, data)
		}
	}
}

// handleWebSocketMessage processes a JSON text frame.
func (s *Server) handleWebSocketMessage(ctx context.Context, session *wsSession, data []byte) {
	var req WebSocketRequest
	if err := wsJSON.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(session.conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case "image":
		if req.Options != nil {
			if err := s.setSessionOptions(session, req.Options); err != nil {
				s.sendWebSocketError(session.conn, "", "invalid_request", err.Error())
				return
			}
		}
		s.processWebSocketImage(ctx, session, req.Image, req.Filename)
	case "options":
		if err := s.setSessionOptions(session, req.Options); err != nil {
			s.sendWebSocketError(session.conn, "", "invalid_request", err.Error())
			return
		}
		s.sendWebSocketResponse(session.conn, WebSocketResponse{Type: "options", Status: "ok"})
	default:
		s.sendWebSocketError(session.conn, "", "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// setSessionOptions replaces the decode options of the connection.
func (s *Server) setSessionOptions(session *wsSession, raw map[string]any) error {
	opts, err := optionsFromMap(raw)
	if err != nil {
		return err
	}
	dec, err := s.decoderFor(opts)
	if err != nil {
		return fmt.Errorf("invalid decode options: %w", err)
	}
	session.opts, session.dec = opts, dec
	return nil
}

// processWebSocketImage decodes one image and answers with its result.
func (s *Server) processWebSocketImage(ctx context.Context, session *wsSession, data []byte, filename string) {
	requestID := uuid.NewString()
	if len(data) == 0 {
		s.sendWebSocketError(session.conn, requestID, "invalid_request", "No image data provided")
		return
	}

	s.sendWebSocketResponse(session.conn, WebSocketResponse{
		Type:      "decode_response",
		Status:    "processing",
		RequestID: requestID,
	})

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.sendWebSocketError(session.conn, requestID, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	dec := session.dec
	if dec == nil {
		if dec, err = s.decoderFor(session.opts); err != nil {
			s.sendWebSocketError(session.conn, requestID, "processing_error", err.Error())
			return
		}
	}

	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	res, err := dec.ProcessImage(ctx, img)
	if err != nil {
		observeDecode("websocket", 0, 0, err)
		s.sendWebSocketError(session.conn, requestID, "processing_error", fmt.Sprintf("Decoding failed: %v", err))
		return
	}
	res.Source = filename
	observeDecode("websocket", time.Since(start).Seconds(), len(res.Codes), nil)

	s.sendWebSocketResponse(session.conn, WebSocketResponse{
		Type:      "decode_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    res,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := wsJSON.Marshal(response)
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
