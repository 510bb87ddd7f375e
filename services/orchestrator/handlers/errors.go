// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// statusFor maps a domain error to its HTTP status. Order matters: a
// registration with a bad referral code wraps the specific cause in
// ErrInvalidReferralCode and must stay a 422.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, referral.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidReferralCode), errors.Is(err, store.ErrSelfReferral):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrCustomerNotFound), errors.Is(err, store.ErrUnknownCode):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicatePhone),
		errors.Is(err, store.ErrDuplicateCustomer),
		errors.Is(err, store.ErrCodeAlreadyUsed),
		errors.Is(err, store.ErrAlreadyReferred),
		errors.Is(err, store.ErrAmbiguousCustomer):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Internal errors are logged
// and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := datatypes.ErrorResponse{Error: err.Error()}

	var inputErr *referral.InputError
	switch {
	case status == http.StatusInternalServerError:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		resp.Error = "internal error"
	case errors.As(err, &inputErr):
		resp.Error = "invalid input"
		resp.Problems = inputErr.Problems
	case status == http.StatusBadRequest:
		resp.Error = "invalid input"
		resp.Problems = datatypes.Problems(err)
	}
	c.AbortWithStatusJSON(status, resp)
}
