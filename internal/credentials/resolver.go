// Package credentials resolves the signing credential (session
// package) for a tenant agent. Authorization-issuing and
// validation-responding operations fail closed when no credential
// resolves; there is no anonymous signing path.
package credentials

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
)

var (
	ErrNoCredential = errors.New("no signing credential available")
	ErrBadPackage   = errors.New("malformed session package")
)

// SessionPackage is the decrypted signing material bound to one
// on-chain agent identity.
type SessionPackage struct {
	AgentID    string `json:"agentId"`
	ChainID    int64  `json:"chainId"`
	PrivateKey string `json:"privateKey"`
	Address    string `json:"address"`
}

// Key parses the embedded secp256k1 private key.
func (p *SessionPackage) Key() (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(p.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPackage, err)
	}
	return key, nil
}

// Resolver loads session packages from agent rows, with an optional
// file fallback for single-tenant deployments.
type Resolver struct {
	db           store.DataStore
	sealer       *Sealer
	fallbackPath string
	logger       zerolog.Logger
}

func NewResolver(db store.DataStore, sealer *Sealer, fallbackPath string, logger zerolog.Logger) *Resolver {
	return &Resolver{db: db, sealer: sealer, fallbackPath: fallbackPath, logger: logger}
}

// Resolve loads the credential for the named agent. Packages are
// loaded fresh per request; nothing is cached across calls. Rows
// carrying a credential win over more recently updated bare rows,
// and a hit bumps the row's updated_at.
// When the agent has no row at all, one is created so later
// credential attachment has a target; creation races are benign.
func (r *Resolver) Resolve(ctx context.Context, name string, chainID int64) (*SessionPackage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("%w: empty agent name", ErrNoCredential)
	}

	agents, err := r.db.FindAgentsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find agent %q: %w", name, err)
	}

	for i := range agents {
		if agents[i].HasCredential() {
			if err := r.db.TouchAgent(ctx, agents[i].ID); err != nil {
				r.logger.Debug().Err(err).Str("agent", name).Msg("failed to touch agent row")
			}
			return r.open(agents[i].SessionPackage)
		}
	}

	if len(agents) == 0 {
		// re-check after insert failure: a concurrent request may
		// have created the row first
		if _, err := r.db.CreateAgent(ctx, name, chainID); err != nil {
			again, ferr := r.db.FindAgentsByName(ctx, name)
			if ferr != nil || len(again) == 0 {
				return nil, fmt.Errorf("create agent %q: %w", name, err)
			}
			agents = again
			for i := range agents {
				if agents[i].HasCredential() {
					return r.open(agents[i].SessionPackage)
				}
			}
		}
	}

	if pkg := r.fromFile(ctx, name, chainID); pkg != nil {
		return pkg, nil
	}

	return nil, fmt.Errorf("%w: agent %q has no session package", ErrNoCredential, name)
}

func (r *Resolver) open(blob []byte) (*SessionPackage, error) {
	plaintext, err := r.sealer.Open(blob)
	if err != nil {
		return nil, err
	}
	var pkg SessionPackage
	if err := json.Unmarshal(plaintext, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPackage, err)
	}
	if pkg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: missing private key", ErrBadPackage)
	}
	return &pkg, nil
}

// fromFile loads the deployment-level fallback package and attaches
// it to the agent row so subsequent lookups hit the store. Attachment
// failure is logged, not fatal.
func (r *Resolver) fromFile(ctx context.Context, name string, chainID int64) *SessionPackage {
	if r.fallbackPath == "" {
		return nil
	}
	raw, err := os.ReadFile(r.fallbackPath)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.fallbackPath).Msg("session package fallback unreadable")
		return nil
	}
	pkg, err := r.open(raw)
	if err != nil {
		r.logger.Warn().Err(err).Str("path", r.fallbackPath).Msg("session package fallback malformed")
		return nil
	}

	blob := raw
	if !bytes.HasPrefix(raw, sealMagic) {
		if sealed, serr := r.sealer.Seal(raw); serr == nil {
			blob = sealed
		}
	}
	agents, err := r.db.FindAgentsByName(ctx, name)
	if err == nil && len(agents) > 0 {
		if err := r.db.SetAgentSession(ctx, agents[0].ID, blob, pkg.Address, chainID); err != nil {
			r.logger.Warn().Err(err).Str("agent", name).Msg("failed to attach fallback credential")
		}
	}
	return pkg
}
