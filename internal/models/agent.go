package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a provider identity keyed by a normalized ENS-style name.
// SessionPackage holds the (optionally sealed) signing credential blob;
// nil means no credential has been attached yet.
type Agent struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	SessionPackage []byte    `json:"-"`
	Account        string    `json:"account,omitempty"`
	ChainID        int64     `json:"chain_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasCredential reports whether a session package is attached.
func (a *Agent) HasCredential() bool {
	return len(a.SessionPackage) > 0
}
