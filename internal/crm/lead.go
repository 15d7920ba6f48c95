// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package crm

import (
	"strings"
	"time"

	"github.com/taibuivan/leadcrm/internal/platform/validate"
	"github.com/taibuivan/leadcrm/pkg/pointer"
)

// LeadStatus is the position of a lead in the referral pipeline.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusRejected  LeadStatus = "rejected"
)

// LeadStatuses lists every status in pipeline order.
var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQualified,
	LeadStatusConverted,
	LeadStatusRejected,
}

// CardType is the credit card product a lead was referred for.
type CardType string

const (
	CardClassic   CardType = "classic"
	CardGold      CardType = "gold"
	CardPlatinum  CardType = "platinum"
	CardSignature CardType = "signature"
	CardInfinite  CardType = "infinite"
)

// CardTypes lists every product tier from entry level upwards.
var CardTypes = []CardType{CardClassic, CardGold, CardPlatinum, CardSignature, CardInfinite}

// Lead is a single credit-card referral.
type Lead struct {
	ID         string     `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	CardType   CardType   `json:"card_type"`
	Status     LeadStatus `json:"status"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LeadInput is the payload for creating a lead.
type LeadInput struct {
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	CardType   CardType `json:"card_type"`
	AssignedTo string   `json:"assigned_to,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Validate checks the input before it leaves the client.
//
// Returns a VALIDATION_ERROR [apperr.AppError] listing every failing field.
func (input LeadInput) Validate() error {
	return validate.New().
		Required("full_name", input.FullName).
		MaxLen("full_name", input.FullName, 120).
		Email("email", input.Email).
		Phone("phone", input.Phone).
		OneOf("card_type", string(input.CardType), cardTypeNames()...).
		MaxLen("notes", input.Notes, 2000).
		Err()
}

// LeadPatch is a partial update; nil fields are left untouched.
type LeadPatch struct {
	FullName   *string     `json:"full_name,omitempty"`
	Email      *string     `json:"email,omitempty"`
	Phone      *string     `json:"phone,omitempty"`
	CardType   *CardType   `json:"card_type,omitempty"`
	Status     *LeadStatus `json:"status,omitempty"`
	AssignedTo *string     `json:"assigned_to,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
}

// Validate checks only the fields present in the patch.
func (patch LeadPatch) Validate() error {
	v := validate.New()
	if patch.FullName != nil {
		v.Required("full_name", *patch.FullName).MaxLen("full_name", *patch.FullName, 120)
	}
	if patch.Email != nil {
		v.Email("email", *patch.Email)
	}
	if patch.Phone != nil {
		v.Phone("phone", *patch.Phone)
	}
	if patch.CardType != nil {
		v.OneOf("card_type", string(*patch.CardType), cardTypeNames()...)
	}
	if patch.Status != nil {
		v.OneOf("status", string(*patch.Status), statusNames()...)
	}
	return v.Err()
}

// Apply merges the patch into lead and stamps UpdatedAt.
func (patch LeadPatch) Apply(lead Lead, now time.Time) Lead {
	lead.FullName = pointer.Fallback(patch.FullName, lead.FullName)
	lead.Email = strings.ToLower(pointer.Fallback(patch.Email, lead.Email))
	lead.Phone = pointer.Fallback(patch.Phone, lead.Phone)
	lead.CardType = pointer.Fallback(patch.CardType, lead.CardType)
	lead.Status = pointer.Fallback(patch.Status, lead.Status)
	lead.AssignedTo = pointer.Fallback(patch.AssignedTo, lead.AssignedTo)
	lead.Notes = pointer.Fallback(patch.Notes, lead.Notes)
	lead.UpdatedAt = now
	return lead
}

// LeadFilter narrows a lead listing.
type LeadFilter struct {
	Status     LeadStatus
	AssignedTo string
}

// Matches reports whether lead passes the filter.
func (filter LeadFilter) Matches(lead Lead) bool {
	if filter.Status != "" && lead.Status != filter.Status {
		return false
	}
	if filter.AssignedTo != "" && lead.AssignedTo != filter.AssignedTo {
		return false
	}
	return true
}

// Validate rejects an unknown status. An empty filter is valid.
func (filter LeadFilter) Validate() error {
	v := validate.New()
	if filter.Status != "" {
		v.OneOf("status", string(filter.Status), statusNames()...)
	}
	return v.Err()
}

func cardTypeNames() []string {
	names := make([]string, len(CardTypes))
	for i, cardType := range CardTypes {
		names[i] = string(cardType)
	}
	return names
}

func statusNames() []string {
	names := make([]string, len(LeadStatuses))
	for i, status := range LeadStatuses {
		names[i] = string(status)
	}
	return names
}
