package registry

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// authDomainTag separates feedback authorization digests from other
// signed payloads.
const authDomainTag = "agentic-trust/feedback-auth-v1"

// feedbackAuth is the wire shape of an issued authorization. The
// signature covers everything except itself and the signer field.
type feedbackAuth struct {
	ClientAddress string `json:"clientAddress"`
	AgentID       string `json:"agentId"`
	ChainID       int64  `json:"chainId"`
	Skill         string `json:"skill"`
	Expiry        int64  `json:"expiry"`
	Signer        string `json:"signer"`
	Signature     string `json:"signature"`
}

// SessionAuthIssuer signs feedback authorizations with the agent's
// session key.
type SessionAuthIssuer struct{}

func NewSessionAuthIssuer() *SessionAuthIssuer {
	return &SessionAuthIssuer{}
}

// Issue produces the signed authorization blob. The digest is
// keccak256 over a newline-joined canonical encoding under the domain
// tag; any field change invalidates the signature.
func (i *SessionAuthIssuer) Issue(_ context.Context, key *ecdsa.PrivateKey, req AuthRequest) (json.RawMessage, error) {
	if key == nil {
		return nil, fmt.Errorf("no signing key")
	}
	if !common.IsHexAddress(req.ClientAddress) {
		return nil, fmt.Errorf("malformed client address %q", req.ClientAddress)
	}
	if req.AgentID == "" || req.Skill == "" {
		return nil, fmt.Errorf("agent id and skill are required")
	}

	expiry := req.Expiry.Unix()
	digest := AuthDigest(req.ClientAddress, req.AgentID, req.ChainID, req.Skill, expiry)

	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	// wire convention: v in {27,28}
	sig[64] += 27

	auth := feedbackAuth{
		ClientAddress: common.HexToAddress(req.ClientAddress).Hex(),
		AgentID:       req.AgentID,
		ChainID:       req.ChainID,
		Skill:         req.Skill,
		Expiry:        expiry,
		Signer:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Signature:     hexutil.Encode(sig),
	}
	return json.Marshal(auth)
}

// AuthDigest computes the signed digest for a feedback authorization.
func AuthDigest(clientAddress, agentID string, chainID int64, skill string, expiry int64) common.Hash {
	payload := fmt.Sprintf("%s\n%s\n%s\n%d\n%s\n%d",
		authDomainTag,
		common.HexToAddress(clientAddress).Hex(),
		agentID, chainID, skill, expiry)
	return common.BytesToHash(crypto.Keccak256([]byte(payload)))
}
