package models

import "time"

// Association is a persisted dual-signable record linking two
// identities. ID is the canonical digest over the record fields; the
// digest is always re-derived server-side before a row is written.
type Association struct {
	ID                 string    `json:"association_id"`
	Initiator          string    `json:"initiator"`
	Approver           string    `json:"approver"`
	ValidAt            uint64    `json:"valid_at"`
	ValidUntil         uint64    `json:"valid_until"`
	InterfaceID        string    `json:"interface_id"`
	Data               string    `json:"data"`
	InitiatorSignature string    `json:"initiator_signature,omitempty"`
	ApproverSignature  string    `json:"approver_signature,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
