package a2a

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrChallengeExpired = errors.New("challenge timestamp expired or too far in future")
	ErrNonceReused      = errors.New("nonce already used")
	ErrBadChallenge     = errors.New("invalid challenge")
)

// ReplayStore remembers challenge nonces for their validity window.
type ReplayStore interface {
	// Seen marks key as used and reports whether it was already used.
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// SignatureVerifier verifies secp256k1 challenge signatures. The
// signed payload is skillId|nonce|timestamp hashed with the EIP-191
// personal-message prefix; the recovered address must match the
// claimed one.
type SignatureVerifier struct {
	replay ReplayStore
	window time.Duration
}

func NewSignatureVerifier(replay ReplayStore) *SignatureVerifier {
	return &SignatureVerifier{
		replay: replay,
		window: 2 * time.Minute,
	}
}

func (v *SignatureVerifier) Verify(ctx context.Context, c *Challenge, skillID string) error {
	if c.Address == "" || c.Nonce == "" || c.Signature == "" {
		return fmt.Errorf("%w: address, nonce and signature are required", ErrBadChallenge)
	}
	if !common.IsHexAddress(c.Address) {
		return fmt.Errorf("%w: malformed address", ErrBadChallenge)
	}
	if len(c.Nonce) < 16 {
		return fmt.Errorf("%w: nonce must be at least 16 characters", ErrBadChallenge)
	}

	now := time.Now().UnixMilli()
	if c.Timestamp <= now-v.window.Milliseconds() || c.Timestamp > now+v.window.Milliseconds() {
		return ErrChallengeExpired
	}

	if v.replay != nil {
		key := strings.ToLower(c.Address) + ":" + c.Nonce
		used, err := v.replay.Seen(ctx, key, 2*v.window)
		if err != nil {
			return fmt.Errorf("replay check: %w", err)
		}
		if used {
			return ErrNonceReused
		}
	}

	sig, err := hexutil.Decode(c.Signature)
	if err != nil || len(sig) != 65 {
		return fmt.Errorf("%w: signature must be 65 hex bytes", ErrBadChallenge)
	}
	// Wire convention puts the recovery id at 27/28; Ecrecover wants 0/1.
	recov := make([]byte, 65)
	copy(recov, sig)
	if recov[64] >= 27 {
		recov[64] -= 27
	}

	payload := fmt.Sprintf("%s|%s|%d", skillID, c.Nonce, c.Timestamp)
	digest := personalHash([]byte(payload))

	pub, err := ethcrypto.SigToPub(digest, recov)
	if err != nil {
		return fmt.Errorf("%w: signature recovery failed", ErrBadChallenge)
	}
	if !strings.EqualFold(ethcrypto.PubkeyToAddress(*pub).Hex(), c.Address) {
		return fmt.Errorf("%w: recovered signer does not match address", ErrBadChallenge)
	}
	return nil
}

// personalHash applies the EIP-191 personal-message prefix.
func personalHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return ethcrypto.Keccak256(append([]byte(prefix), msg...))
}
