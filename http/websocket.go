package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessageBytes = 4096

type wsError struct {
	Input string `json:"input"`
	Error string `json:"error"`
}

// handleWebsocket answers every text frame, a profit figure, with a prediction or an
// error frame. A bad frame does not close the connection.
func (h *handlers) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	printer := h.catalog.Printer(h.language(r))
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		input := string(payload)
		var reply interface{}
		prediction, err := h.predictor.Predict(input)
		if err != nil {
			_, msg := h.reject(transportWebsocket, printer, input, err)
			reply = wsError{Input: input, Error: msg}
		} else {
			h.metrics.ObservePrediction(transportWebsocket)
			reply = prediction
		}
		out, err := json.Marshal(reply)
		if err != nil {
			h.logger.Error("encode websocket reply failed", zap.Error(err))
			out, _ = json.Marshal(wsError{Input: input, Error: "internal server error"})
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
