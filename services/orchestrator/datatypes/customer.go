// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/AleutianAI/TeaDesk/services/referral"
	"github.com/AleutianAI/TeaDesk/services/store"
)

// =============================================================================
// Requests
// =============================================================================

// RegisterCustomerRequest is the body of POST /v1/customers.
type RegisterCustomerRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Phone        string `json:"phone" validate:"required,max=32,phone"`
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,max=16,alphanum"`
}

// Validate checks the validator tags.
func (r *RegisterCustomerRequest) Validate() error {
	return validate.Struct(r)
}

// RedeemRequest is the body of POST /v1/referrals/:code/redeem.
type RedeemRequest struct {
	CustomerID string `json:"customer_id" validate:"required,min=6,max=7,alphanum"`
}

// Validate checks the validator tags.
func (r *RedeemRequest) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Responses
// =============================================================================

// CustomerResponse is a customer as the API shows it. The phone number is
// masked.
type CustomerResponse struct {
	CustomerID       string    `json:"customer_id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	RegistrationDate time.Time `json:"registration_date"`
	ReferralCodes    []string  `json:"referral_codes"`
	ReferredBy       string    `json:"referred_by,omitempty"`
	ReferralCount    int       `json:"referral_count"`
	DiscountEarned   bool      `json:"discount_earned"`
	Status           string    `json:"status"`
}

// NewCustomerResponse converts a stored customer.
func NewCustomerResponse(c store.Customer, policy referral.Policy) CustomerResponse {
	return CustomerResponse{
		CustomerID:       c.ID,
		Name:             c.Name,
		Phone:            referral.MaskPhone(c.Phone),
		RegistrationDate: c.RegisteredAt,
		ReferralCodes:    c.Codes,
		ReferredBy:       c.ReferredBy,
		ReferralCount:    c.ReferralCount,
		DiscountEarned:   policy.Eligible(c.ReferralCount),
		Status:           c.Status,
	}
}

// StandingResponse is a customer's progress toward the discount.
type StandingResponse struct {
	ReferralCount int    `json:"referral_count"`
	Threshold     int    `json:"threshold"`
	Remaining     int    `json:"remaining"`
	Eligible      bool   `json:"eligible"`
	Message       string `json:"message"`
}

// NewStandingResponse converts a referral.Standing.
func NewStandingResponse(s referral.Standing) StandingResponse {
	return StandingResponse{
		ReferralCount: s.Count,
		Threshold:     s.Threshold,
		Remaining:     s.Remaining,
		Eligible:      s.Eligible,
		Message:       s.Progress(),
	}
}

// CreditResponse describes the referrer side of a redemption.
type CreditResponse struct {
	Code           string           `json:"code"`
	RedeemedBy     string           `json:"redeemed_by"`
	OwnerID        string           `json:"owner_id"`
	OwnerName      string           `json:"owner_name"`
	Standing       StandingResponse `json:"standing"`
	DiscountEarned bool             `json:"discount_earned"`
}

// NewCreditResponse converts a referral.Credit.
func NewCreditResponse(c referral.Credit) CreditResponse {
	return CreditResponse{
		Code:           c.Code,
		RedeemedBy:     c.RedeemedBy,
		OwnerID:        c.Owner.ID,
		OwnerName:      c.Owner.Name,
		Standing:       NewStandingResponse(c.Standing),
		DiscountEarned: c.DiscountEarned,
	}
}

// RegistrationResponse is the body of a successful POST /v1/customers.
type RegistrationResponse struct {
	Customer CustomerResponse `json:"customer"`
	Credit   *CreditResponse  `json:"credit,omitempty"`
}

// NewRegistrationResponse converts a referral.Registration.
func NewRegistrationResponse(reg referral.Registration, policy referral.Policy) RegistrationResponse {
	resp := RegistrationResponse{Customer: NewCustomerResponse(reg.Customer, policy)}
	if reg.Credit != nil {
		credit := NewCreditResponse(*reg.Credit)
		resp.Credit = &credit
	}
	return resp
}

// CodeStatusResponse is one referral code in a customer report.
type CodeStatusResponse struct {
	Code       string     `json:"code"`
	Status     string     `json:"status"`
	UsedBy     string     `json:"used_by,omitempty"`
	UsedByName string     `json:"used_by_name,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

// ReportResponse is the body of GET /v1/customers/lookup.
type ReportResponse struct {
	Customer CustomerResponse     `json:"customer"`
	Standing StandingResponse     `json:"standing"`
	Codes    []CodeStatusResponse `json:"codes"`
}

// NewReportResponse converts a referral.Report.
func NewReportResponse(rep referral.Report, policy referral.Policy) ReportResponse {
	codes := make([]CodeStatusResponse, 0, len(rep.Codes))
	for _, c := range rep.Codes {
		cs := CodeStatusResponse{Code: c.Code, Status: "available"}
		if c.Used() {
			usedAt := c.UsedAt
			cs.Status = "used"
			cs.UsedBy = c.UsedBy
			cs.UsedByName = c.UsedByName
			cs.UsedAt = &usedAt
		}
		codes = append(codes, cs)
	}
	return ReportResponse{
		Customer: NewCustomerResponse(rep.Customer, policy),
		Standing: NewStandingResponse(rep.Standing),
		Codes:    codes,
	}
}

// CodeCheckResponse is the body of GET /v1/referrals/:code.
type CodeCheckResponse struct {
	Code      string `json:"code"`
	Valid     bool   `json:"valid"`
	OwnerID   string `json:"owner_id,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	Message   string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}
