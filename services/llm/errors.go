// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBackendTimeout     = errors.New("conversational backend timed out")
	ErrBackendRateLimited = errors.New("conversational backend rate limited")
	ErrBackendUnavailable = errors.New("conversational backend unavailable")
)

// Retryable reports whether err is worth one more attempt.
func Retryable(err error) bool {
	if errors.Is(err, errPermanent) {
		return false
	}
	return errors.Is(err, ErrBackendTimeout) ||
		errors.Is(err, ErrBackendRateLimited) ||
		errors.Is(err, ErrBackendUnavailable)
}

// errPermanent marks unavailability that a retry cannot fix (bad key,
// malformed request, no backend configured).
var errPermanent = errors.New("permanent")

// Status is the metrics label for err.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBackendTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendRateLimited):
		return "rate_limited"
	default:
		return "unavailable"
	}
}

// classifyHTTP maps a vendor error carrying an HTTP status into the
// backend taxonomy. status is 0 when the request never got a response.
func classifyHTTP(vendor string, status int, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", ErrBackendTimeout, vendor, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %w", ErrBackendRateLimited, vendor, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: %w", ErrBackendTimeout, vendor, err)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %s rejected the request (%d): %w: %w", ErrBackendUnavailable, vendor, status, errPermanent, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, vendor, err)
	}
}
