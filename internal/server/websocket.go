package server

import (
	"context"
	"encoding/json"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/scrypster/resolver/pkg/types"
)

const wsReadLimit = 1 << 20

// wsRequest is one resolve request frame. ID is echoed back so clients can
// drop replies to keystrokes they have already superseded.
type wsRequest struct {
	ID string `json:"id"`
	types.ResolutionRequest
}

type wsResponse struct {
	ID     string                  `json:"id"`
	Result *types.ResolutionResult `json:"result"`
	Error  string                  `json:"error,omitempty"`
	Code   string                  `json:"code,omitempty"`
}

// handleWebSocket serves a session of resolve requests. Frames are handled
// in order, one at a time; a bad frame gets an error reply and the session
// continues.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{ //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "") //nolint:errcheck
	conn.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	requestID := RequestID(r.Context())
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				s.log.Debugw("websocket session closed", "request_id", requestID)
			} else {
				s.log.Warnw("websocket read failed", "request_id", requestID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		reply := s.resolveFrame(ctx, data)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			s.log.Debugw("websocket write failed", "request_id", requestID, "error", err)
			return
		}
	}
}

func (s *Server) resolveFrame(ctx context.Context, data []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsResponse{Error: "invalid request frame: " + err.Error(), Code: CodeBadRequest}
	}

	result, err := s.resolver.Resolve(ctx, req.ResolutionRequest)
	if err != nil {
		s.log.Warnw("websocket resolve failed", "id", req.ID, "error", err)
		_, code, message := classifyError(err)
		return wsResponse{ID: req.ID, Error: message, Code: code}
	}
	return wsResponse{ID: req.ID, Result: result}
}
