// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// HandleCheckCode reports whether a referral code can still be redeemed.
//
// GET /v1/referrals/:code. An unknown or used code is a normal answer
// (200, valid=false); only a malformed code is an error.
func HandleCheckCode(engine *referral.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleCheckCode")
		defer span.End()

		code := c.Param("code")
		check, err := engine.ValidateCode(ctx, code)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, datatypes.CodeCheckResponse{
				Code:      check.Code,
				Valid:     true,
				OwnerID:   check.Owner.ID,
				OwnerName: check.Owner.Name,
				Message:   fmt.Sprintf("Valid referral code from %s", check.Owner.Name),
			})
		case errors.Is(err, store.ErrUnknownCode), errors.Is(err, store.ErrCodeAlreadyUsed):
			span.SetAttributes(attribute.String("reason", err.Error()))
			c.JSON(http.StatusOK, datatypes.CodeCheckResponse{
				Code:    code,
				Valid:   false,
				Message: err.Error(),
			})
		default:
			respondError(c, err)
		}
	}
}

// HandleRedeemCode credits a referral code to its owner on behalf of an
// already registered customer.
//
// POST /v1/referrals/:code/redeem with {"customer_id": "..."}.
func HandleRedeemCode(engine *referral.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleRedeemCode")
		defer span.End()

		var req datatypes.RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		credit, err := engine.Redeem(ctx, c.Param("code"), req.CustomerID)
		if err != nil {
			span.RecordError(err)
			respondError(c, err)
			return
		}
		span.SetAttributes(
			attribute.String("owner_id", credit.Owner.ID),
			attribute.Bool("discount_earned", credit.DiscountEarned),
		)
		c.JSON(http.StatusOK, datatypes.NewCreditResponse(credit))
	}
}
