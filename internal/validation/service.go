// Package validation handles responding to pending validation
// requests from the external validation registry.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/credentials"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/registry"
)

var (
	ErrNoPending    = errors.New("no pending validation request matches")
	ErrPolicyVeto   = errors.New("validation vetoed by policy")
	ErrInvalidInput = errors.New("invalid validation input")
)

// CredentialSource resolves signing credentials for agents.
type CredentialSource interface {
	Resolve(ctx context.Context, name string, chainID int64) (*credentials.SessionPackage, error)
}

// Decision is a policy's verdict on one pending validation.
type Decision struct {
	Veto     bool
	VetoNote string
	// Score overrides the caller's score when set.
	Score *int
	// Metadata is merged into the response metadata.
	Metadata map[string]any
}

// Policy lets a deployment veto or adjust validation responses
// before submission.
type Policy interface {
	Evaluate(ctx context.Context, pending registry.PendingValidation, score int) (Decision, error)
}

// Service responds to pending validation requests. The credential
// resolves fresh per call and the operation fails closed without one.
type Service struct {
	creds    CredentialSource
	registry registry.ValidationRegistry
	policy   Policy
	chainID  int64
	logger   zerolog.Logger
}

func NewService(creds CredentialSource, reg registry.ValidationRegistry, policy Policy, chainID int64, logger zerolog.Logger) *Service {
	return &Service{creds: creds, registry: reg, policy: policy, chainID: chainID, logger: logger}
}

// RespondInput selects which pending request to answer and with what
// score. An empty RequestID answers the oldest pending request.
// EvidenceURI and Tag are forwarded to the registry and covered by
// the response signature.
type RespondInput struct {
	AgentName   string
	RequestID   string
	Score       int
	EvidenceURI string
	Tag         string
	Metadata    map[string]any
}

// Respond resolves the agent's credential, picks the matching pending
// request, runs the policy, signs and submits the response.
func (s *Service) Respond(ctx context.Context, in RespondInput) (*registry.ValidationReceipt, error) {
	if strings.TrimSpace(in.AgentName) == "" {
		return nil, fmt.Errorf("%w: agent is required", ErrInvalidInput)
	}
	if in.Score < 0 || in.Score > 100 {
		return nil, fmt.Errorf("%w: score must be in [0,100]", ErrInvalidInput)
	}

	pkg, err := s.creds.Resolve(ctx, in.AgentName, s.chainID)
	if err != nil {
		return nil, err
	}
	key, err := pkg.Key()
	if err != nil {
		return nil, err
	}

	pending, err := s.registry.ListPending(ctx, pkg.AgentID, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("list pending validations: %w", err)
	}

	var match *registry.PendingValidation
	for i := range pending {
		if in.RequestID == "" || pending[i].ID == in.RequestID {
			match = &pending[i]
			break
		}
	}
	if match == nil {
		return nil, ErrNoPending
	}

	score := in.Score
	metadata := in.Metadata
	if s.policy != nil {
		decision, err := s.policy.Evaluate(ctx, *match, score)
		if err != nil {
			return nil, fmt.Errorf("evaluate validation policy: %w", err)
		}
		if decision.Veto {
			if decision.VetoNote != "" {
				return nil, fmt.Errorf("%w: %s", ErrPolicyVeto, decision.VetoNote)
			}
			return nil, ErrPolicyVeto
		}
		if decision.Score != nil {
			score = *decision.Score
		}
		if len(decision.Metadata) > 0 {
			if metadata == nil {
				metadata = make(map[string]any, len(decision.Metadata))
			}
			for k, v := range decision.Metadata {
				metadata[k] = v
			}
		}
	}

	digest := responseDigest(s.chainID, match.ID, pkg.AgentID, score, in.EvidenceURI, in.Tag)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("sign validation response: %w", err)
	}
	sig[64] += 27

	receipt, err := s.registry.SubmitResponse(ctx, registry.ValidationResponse{
		RequestID:   match.ID,
		AgentID:     pkg.AgentID,
		ChainID:     s.chainID,
		Score:       score,
		EvidenceURI: in.EvidenceURI,
		Tag:         in.Tag,
		Metadata:    metadata,
		Signer:      ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Signature:   hexutil.Encode(sig),
	})
	if err != nil {
		return nil, err
	}
	metrics.ValidationsSubmitted.Inc()

	s.logger.Info().Str("request_id", match.ID).Str("agent", in.AgentName).Int("score", score).
		Msg("validation response submitted")
	return receipt, nil
}

func responseDigest(chainID int64, requestID, agentID string, score int, evidenceURI, tag string) []byte {
	payload := fmt.Sprintf("agentic-trust/validation-response-v1\n%d\n%s\n%s\n%d\n%s\n%s",
		chainID, requestID, agentID, score, evidenceURI, tag)
	return ethcrypto.Keccak256([]byte(payload))
}
