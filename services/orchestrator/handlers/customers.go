// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP and WebSocket endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/TeaDesk/services/orchestrator/datatypes"
	"github.com/AleutianAI/TeaDesk/services/referral"
)

var handlerTracer = otel.Tracer("teadesk/handlers")

// HandleRegisterCustomer registers a new customer, optionally redeeming a
// referral code in the same step.
//
// # Description
//
// POST /v1/customers. Responds 201 with the customer and, when a code
// was redeemed, the referrer's new standing.
//
// # Errors
//
//   - 400: body fails validation or normalisation
//   - 409: phone number already registered
//   - 422: referral code unknown, used, or the customer's own
func HandleRegisterCustomer(engine *referral.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleRegisterCustomer")
		defer span.End()

		var req datatypes.RegisterCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		reg, err := engine.Register(ctx, referral.RegisterRequest{
			Name:         req.Name,
			Phone:        req.Phone,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			respondError(c, err)
			return
		}

		span.SetAttributes(
			attribute.String("customer_id", reg.Customer.ID),
			attribute.Bool("referred", reg.Credit != nil),
		)
		slog.Info("customer registered", "customer_id", reg.Customer.ID, "referred", reg.Credit != nil)
		c.JSON(http.StatusCreated, datatypes.NewRegistrationResponse(reg, engine.Policy()))
	}
}

// HandleLookupCustomer returns the report of the customer matching ?q=,
// which may be an id, a phone number or a name fragment.
func HandleLookupCustomer(engine *referral.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleLookupCustomer")
		defer span.End()

		rep, err := engine.Report(ctx, c.Query("q"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewReportResponse(rep, engine.Policy()))
	}
}
