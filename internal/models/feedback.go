package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feedback request lifecycle states. Transitions move forward only.
const (
	FeedbackPending    = "pending"
	FeedbackApproved   = "approved"
	FeedbackAuthorized = "authorized"
	FeedbackGiven      = "feedback_given"
)

// FeedbackRequest is the central workflow entity: a reviewer asks an
// agent's operator for permission to submit on-chain feedback.
type FeedbackRequest struct {
	ID              uuid.UUID       `json:"id"`
	ClientAddress   string          `json:"client_address"`
	FromAgent       string          `json:"from_agent,omitempty"`
	ToAgent         string          `json:"to_agent"`
	Comment         string          `json:"comment"`
	Status          string          `json:"status"`
	Approved        bool            `json:"approved"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovedForDays int64           `json:"approved_for_days,omitempty"`
	AuthBlob        json.RawMessage `json:"feedback_auth,omitempty"`
	TxHash          string          `json:"tx_hash,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
