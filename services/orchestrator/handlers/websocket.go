// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/TeaDesk/services/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWebSocket serves a chat conversation over one WebSocket.
//
// # Description
//
// GET /v1/chat/ws. The connection owns one session: the server sends a
// session_created frame, then answers every ChatRequest frame with a
// ChatResponse. A busy server answers with an ErrorResponse frame and
// keeps the connection open.
func HandleChatWebSocket(rt *router.Router, gate *ChatGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		ws.SetReadLimit(datatypes.MaxMessageContentBytes * 2)

		sessionID := uuid.NewString()
		slog.Info("websocket session started", "session_id", sessionID)

		if err := sendJSON(ws, datatypes.WSEvent{Action: "session_created", SessionID: sessionID}); err != nil {
			return
		}

		ctx := c.Request.Context()
		for {
			var req datatypes.ChatRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("websocket client disconnected", "session_id", sessionID, "error", err.Error())
				return
			}
			req.SessionID = ""
			if err := req.Validate(); err != nil {
				if sendJSON(ws, datatypes.ErrorResponse{Error: "invalid input", Problems: datatypes.Problems(err)}) != nil {
					return
				}
				continue
			}

			var resp datatypes.ChatResponse
			if !gate.Do(func() { resp = answer(ctx, rt, sessionID, req.Message) }) {
				if sendJSON(ws, datatypes.ErrorResponse{Error: "busy, try again shortly"}) != nil {
					return
				}
				continue
			}
			if sendJSON(ws, resp) != nil {
				return
			}
		}
	}
}
