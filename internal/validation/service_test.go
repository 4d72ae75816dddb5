package validation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/credentials"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/registry"
)

type fakeCreds struct {
	pkg *credentials.SessionPackage
	err error
}

func (f *fakeCreds) Resolve(_ context.Context, _ string, _ int64) (*credentials.SessionPackage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pkg, nil
}

type fakeRegistry struct {
	pending       []registry.PendingValidation
	listedChainID int64
	submitted     *registry.ValidationResponse
}

func (f *fakeRegistry) ListPending(_ context.Context, _ string, chainID int64) ([]registry.PendingValidation, error) {
	f.listedChainID = chainID
	return f.pending, nil
}

func (f *fakeRegistry) SubmitResponse(_ context.Context, vr registry.ValidationResponse) (*registry.ValidationReceipt, error) {
	f.submitted = &vr
	return &registry.ValidationReceipt{RequestID: vr.RequestID, Accepted: true}, nil
}

type policyFunc func(ctx context.Context, p registry.PendingValidation, score int) (Decision, error)

func (f policyFunc) Evaluate(ctx context.Context, p registry.PendingValidation, score int) (Decision, error) {
	return f(ctx, p, score)
}

func testPackage(t *testing.T) *credentials.SessionPackage {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return &credentials.SessionPackage{
		AgentID:    "42",
		ChainID:    1,
		PrivateKey: hex.EncodeToString(ethcrypto.FromECDSA(key)),
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

func pendingOne() []registry.PendingValidation {
	return []registry.PendingValidation{{ID: "req-1", AgentID: "42"}}
}

func TestRespondSubmitsSignedResponse(t *testing.T) {
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, reg, nil, 1, zerolog.Nop())

	receipt, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 80})
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Accepted || receipt.RequestID != "req-1" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if reg.submitted == nil || reg.submitted.Signature == "" || reg.submitted.Score != 80 {
		t.Fatalf("unexpected submission: %+v", reg.submitted)
	}
}

func TestRespondSignatureRecoverable(t *testing.T) {
	pkg := testPackage(t)
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: pkg}, reg, nil, 1, zerolog.Nop())

	if _, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 55}); err != nil {
		t.Fatal(err)
	}

	digest := responseDigest(1, "req-1", "42", 55, "", "")
	sig, err := hex.DecodeString(reg.submitted.Signature[2:])
	if err != nil {
		t.Fatal(err)
	}
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	if ethcrypto.PubkeyToAddress(*pub).Hex() != pkg.Address {
		t.Fatal("signature does not recover to the session key")
	}
}

func TestRespondCarriesChainEvidenceAndTag(t *testing.T) {
	pkg := testPackage(t)
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: pkg}, reg, nil, 8453, zerolog.Nop())

	_, err := svc.Respond(context.Background(), RespondInput{
		AgentName:   "helper",
		Score:       70,
		EvidenceURI: "ipfs://bafyevidence",
		Tag:         "code-review",
	})
	if err != nil {
		t.Fatal(err)
	}
	if reg.listedChainID != 8453 {
		t.Fatalf("pending lookup not scoped to chain, got %d", reg.listedChainID)
	}
	if reg.submitted.ChainID != 8453 || reg.submitted.EvidenceURI != "ipfs://bafyevidence" || reg.submitted.Tag != "code-review" {
		t.Fatalf("response missing scope fields: %+v", reg.submitted)
	}

	// The signature must cover the scope fields, not just the score.
	digest := responseDigest(8453, "req-1", "42", 70, "ipfs://bafyevidence", "code-review")
	sig, err := hex.DecodeString(reg.submitted.Signature[2:])
	if err != nil {
		t.Fatal(err)
	}
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	if ethcrypto.PubkeyToAddress(*pub).Hex() != pkg.Address {
		t.Fatal("signature does not cover chain, evidence and tag")
	}
}

func TestRespondNoPending(t *testing.T) {
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, &fakeRegistry{}, nil, 1, zerolog.Nop())

	_, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 80})
	if !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected no-pending, got %v", err)
	}
}

func TestRespondUnknownRequestID(t *testing.T) {
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, reg, nil, 1, zerolog.Nop())

	_, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", RequestID: "other", Score: 80})
	if !errors.Is(err, ErrNoPending) {
		t.Fatalf("expected no-pending, got %v", err)
	}
}

func TestRespondFailsClosedWithoutCredential(t *testing.T) {
	svc := NewService(&fakeCreds{err: fmt.Errorf("%w: nope", credentials.ErrNoCredential)},
		&fakeRegistry{pending: pendingOne()}, nil, 1, zerolog.Nop())

	_, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 80})
	if !errors.Is(err, credentials.ErrNoCredential) {
		t.Fatalf("expected credential failure, got %v", err)
	}
}

func TestPolicyVeto(t *testing.T) {
	veto := policyFunc(func(_ context.Context, _ registry.PendingValidation, _ int) (Decision, error) {
		return Decision{Veto: true, VetoNote: "category blocked"}, nil
	})
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, reg, veto, 1, zerolog.Nop())

	_, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 80})
	if !errors.Is(err, ErrPolicyVeto) {
		t.Fatalf("expected veto, got %v", err)
	}
	if reg.submitted != nil {
		t.Fatal("vetoed response must not reach the registry")
	}
}

func TestPolicyScoreOverride(t *testing.T) {
	override := 30
	policy := policyFunc(func(_ context.Context, _ registry.PendingValidation, _ int) (Decision, error) {
		return Decision{Score: &override, Metadata: map[string]any{"capped": true}}, nil
	})
	reg := &fakeRegistry{pending: pendingOne()}
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, reg, policy, 1, zerolog.Nop())

	if _, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: 95}); err != nil {
		t.Fatal(err)
	}
	if reg.submitted.Score != 30 {
		t.Fatalf("policy override ignored, score %d", reg.submitted.Score)
	}
	if reg.submitted.Metadata["capped"] != true {
		t.Fatal("policy metadata not merged")
	}
}

func TestRespondScoreRange(t *testing.T) {
	svc := NewService(&fakeCreds{pkg: testPackage(t)}, &fakeRegistry{pending: pendingOne()}, nil, 1, zerolog.Nop())

	for _, score := range []int{-1, 101} {
		if _, err := svc.Respond(context.Background(), RespondInput{AgentName: "helper", Score: score}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("score %d: expected validation error, got %v", score, err)
		}
	}
}
