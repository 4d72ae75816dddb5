// Package registry holds clients for the external systems the
// dispatcher collaborates with: ENS-style name resolution, feedback
// authorization signing, and the validation registry. Each client is
// behind an interface so services can be tested without a chain or a
// registry endpoint.
package registry

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NameResolver resolves an agent provider name to its on-chain
// account.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (common.Address, error)
}

// AuthRequest scopes a feedback authorization to one client, one
// agent and one skill, with an explicit expiry.
type AuthRequest struct {
	ClientAddress string
	AgentID       string
	ChainID       int64
	Skill         string
	Expiry        time.Time
}

// AuthIssuer produces a signed feedback authorization blob using the
// agent's session key.
type AuthIssuer interface {
	Issue(ctx context.Context, key *ecdsa.PrivateKey, req AuthRequest) (json.RawMessage, error)
}

// PendingValidation is a validation request awaiting a response from
// this agent.
type PendingValidation struct {
	ID               string          `json:"id"`
	AgentID          string          `json:"agentId"`
	ValidatorAddress string          `json:"validatorAddress"`
	Category         string          `json:"category"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// ValidationResponse is a scored attestation for one pending request.
// EvidenceURI points at supporting material; Tag classifies the
// response for the registry's indexing.
type ValidationResponse struct {
	RequestID   string         `json:"requestId"`
	AgentID     string         `json:"agentId"`
	ChainID     int64          `json:"chainId"`
	Score       int            `json:"score"`
	EvidenceURI string         `json:"evidenceUri,omitempty"`
	Tag         string         `json:"tag,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Signer      string         `json:"signer"`
	Signature   string         `json:"signature"`
}

// ValidationReceipt is the registry's acknowledgement of a submitted
// response. Submission idempotency is the registry's concern.
type ValidationReceipt struct {
	RequestID string `json:"requestId"`
	Accepted  bool   `json:"accepted"`
	TxHash    string `json:"txHash,omitempty"`
}

// ValidationRegistry lists pending validation requests and accepts
// scored responses.
type ValidationRegistry interface {
	ListPending(ctx context.Context, agentID string, chainID int64) ([]PendingValidation, error)
	SubmitResponse(ctx context.Context, resp ValidationResponse) (*ValidationReceipt, error)
}
