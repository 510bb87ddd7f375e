// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"github.com/google/uuid"
)

// ChatRequest is the body of POST /v1/chat and of each WebSocket frame.
//
// # Fields
//
//   - SessionID: Optional on POST. A new one is issued when empty. Ignored
//     on the WebSocket, where the connection owns the session.
//   - Message: The question. An empty message returns the help text.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,uuid"`
	Message   string `json:"message" validate:"maxbytes"`
}

// Validate checks the validator tags.
func (r *ChatRequest) Validate() error {
	return validate.Struct(r)
}

// EnsureSession issues a session id when the client sent none.
func (r *ChatRequest) EnsureSession() {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	SessionID  string `json:"session_id"`
	Reply      string `json:"reply"`
	Intent     string `json:"intent"`
	Aggregate  string `json:"aggregate,omitempty"`
	Source     string `json:"source"`
	CustomerID string `json:"customer_id,omitempty"`
}

// WSEvent is a server-initiated WebSocket frame such as session_created.
type WSEvent struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}
