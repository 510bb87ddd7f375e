// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm talks to the external conversational model.
//
// Backends are black boxes: they receive a message, an optional small
// context payload and prior turns, and return text. Errors are reduced to
// three kinds (timeout, rate limited, unavailable) so the router can
// decide between one retry and the canned apology without knowing which
// vendor is behind the interface.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the input of Backend.Complete.
type Request struct {
	// Message is the user's current message.
	Message string

	// Context is an optional payload rendered into the system prompt as
	// JSON. Nil means no business data is shared with the model.
	Context any

	// History holds earlier turns, oldest first, excluding Message.
	History []Turn
}

// Backend completes a conversation.
//
// Implementations return errors wrapping ErrBackendTimeout,
// ErrBackendRateLimited or ErrBackendUnavailable. Complete has no side
// effects on business state and may be retried.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Disabled is the backend used when no model is configured. Every call
// fails with ErrBackendUnavailable, so the router answers with its
// fallback and all deterministic answers keep working.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (string, error) {
	return "", fmt.Errorf("%w: %w: no conversational backend configured", ErrBackendUnavailable, errPermanent)
}

const basePrompt = `You are a helpful assistant for a tea shop that runs a customer referral program.

Guidelines:
- Be friendly and professional
- Focus on tea business topics
- Keep responses concise but helpful
- If customer data is provided, reference it accurately and do not invent other customers
- For data-heavy questions, suggest commands like "show me statistics" or "top referrers"
- You can discuss tea varieties, brewing methods and business advice`

// SystemPrompt builds the system message for req.
func SystemPrompt(req Request) (string, error) {
	if req.Context == nil {
		return basePrompt, nil
	}
	data, err := json.MarshalIndent(req.Context, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nCustomer data:\n")
	b.Write(data)
	return b.String(), nil
}
