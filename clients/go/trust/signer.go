package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/assoc"
)

var (
	ErrSignTimeout = errors.New("wallet signing deadline exceeded")
	ErrNoSignature = errors.New("wallet produced no signature")
)

// Wallet abstracts the signing surface of a connected wallet. Methods
// return an empty signature (with nil error) when the wallet does not
// support that signing scheme; the signer then falls through to the
// next one. Every scheme ultimately signs the association digest, so
// recover-and-compare verification holds regardless of which method
// answered.
type Wallet interface {
	Address() string
	SignTypedDataV4(ctx context.Context, digest []byte) ([]byte, error)
	SignTypedDataV3(ctx context.Context, digest []byte) ([]byte, error)
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// AssociationSigner signs association records with a wallet, trying
// typed-data v4, then v3, then raw digest signing.
type AssociationSigner struct {
	wallet   Wallet
	deadline time.Duration
}

// NewAssociationSigner wraps a wallet. A non-positive deadline
// defaults to 30 seconds; wallets backed by user interaction need the
// headroom.
func NewAssociationSigner(wallet Wallet, deadline time.Duration) *AssociationSigner {
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &AssociationSigner{wallet: wallet, deadline: deadline}
}

// SignedAssociation is a record plus its digest and signature, ready
// for association/submit.
type SignedAssociation struct {
	Record    assoc.Record
	Digest    string
	Signature string
}

// Sign computes the record digest, obtains a signature within the
// deadline, normalizes it and verifies it recovers to the wallet
// address before returning. Deadline expiry is reported as
// ErrSignTimeout, distinct from wallet failures.
func (s *AssociationSigner) Sign(ctx context.Context, rec assoc.Record) (*SignedAssociation, error) {
	digest := rec.Digest()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	raw, err := s.trySign(ctx, digest.Bytes())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrSignTimeout
		}
		return nil, err
	}

	sig, err := assoc.NormalizeSignature(raw)
	if err != nil {
		return nil, err
	}

	// Post-sign verification is mandatory: a wallet that signed a
	// different payload must fail here, not on-chain.
	expected := rec.Initiator
	sigHex := hexutil.Encode(sig)
	if err := assoc.VerifySigner(digest, sigHex, expected); err != nil {
		if err2 := assoc.VerifySigner(digest, sigHex, rec.Approver); err2 != nil {
			return nil, fmt.Errorf("post-sign verification failed: %w", err)
		}
	}

	return &SignedAssociation{
		Record:    rec,
		Digest:    digest.Hex(),
		Signature: sigHex,
	}, nil
}

// trySign walks the fallback chain; the first non-empty signature
// wins.
func (s *AssociationSigner) trySign(ctx context.Context, digest []byte) ([]byte, error) {
	type attempt struct {
		name string
		fn   func(context.Context, []byte) ([]byte, error)
	}
	attempts := []attempt{
		{"eth_signTypedData_v4", s.wallet.SignTypedDataV4},
		{"eth_signTypedData_v3", s.wallet.SignTypedDataV3},
		{"digest", s.wallet.SignDigest},
	}

	var lastErr error
	for _, a := range attempts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sig, err := a.fn(ctx, digest)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", a.name, err)
			continue
		}
		if len(sig) > 0 {
			return sig, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoSignature
}
