package a2a

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
)

func signedChallenge(t *testing.T, skillID string) *Challenge {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c := &Challenge{
		Address:   ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Nonce:     "0123456789abcdef",
		Timestamp: time.Now().UnixMilli(),
	}
	payload := fmt.Sprintf("%s|%s|%d", skillID, c.Nonce, c.Timestamp)
	sig, err := ethcrypto.Sign(personalHash([]byte(payload)), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27
	c.Signature = hexutil.Encode(sig)
	return c
}

func TestChallengeVerify(t *testing.T) {
	v := NewSignatureVerifier(store.NewMemoryReplay())
	c := signedChallenge(t, "feedback/request")

	if err := v.Verify(context.Background(), c, "feedback/request"); err != nil {
		t.Fatalf("valid challenge rejected: %v", err)
	}
}

func TestChallengeWrongSkill(t *testing.T) {
	v := NewSignatureVerifier(store.NewMemoryReplay())
	c := signedChallenge(t, "feedback/request")

	if err := v.Verify(context.Background(), c, "feedback/approve"); err == nil {
		t.Fatal("signature bound to another skill must be rejected")
	}
}

func TestChallengeReplayRejected(t *testing.T) {
	v := NewSignatureVerifier(store.NewMemoryReplay())
	c := signedChallenge(t, "agent/ping")

	if err := v.Verify(context.Background(), c, "agent/ping"); err != nil {
		t.Fatal(err)
	}
	if err := v.Verify(context.Background(), c, "agent/ping"); err == nil {
		t.Fatal("nonce reuse must be rejected")
	}
}

func TestChallengeExpired(t *testing.T) {
	v := NewSignatureVerifier(store.NewMemoryReplay())
	c := signedChallenge(t, "agent/ping")
	c.Timestamp -= 10 * time.Minute.Milliseconds()

	if err := v.Verify(context.Background(), c, "agent/ping"); err == nil {
		t.Fatal("stale timestamp must be rejected")
	}
}

func TestChallengeShortNonce(t *testing.T) {
	v := NewSignatureVerifier(store.NewMemoryReplay())
	c := signedChallenge(t, "agent/ping")
	c.Nonce = "short"

	if err := v.Verify(context.Background(), c, "agent/ping"); err == nil {
		t.Fatal("short nonce must be rejected")
	}
}
