package credentials

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/store"
)

func testPackageJSON(t *testing.T) ([]byte, *SessionPackage) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pkg := &SessionPackage{
		AgentID:    "42",
		ChainID:    1,
		PrivateKey: hex.EncodeToString(ethcrypto.FromECDSA(key)),
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
	raw, err := json.Marshal(pkg)
	if err != nil {
		t.Fatal(err)
	}
	return raw, pkg
}

func TestSealRoundTrip(t *testing.T) {
	sealer, err := NewSealer("test passphrase")
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte(`{"agentId":"42"}`)
	sealed, err := sealer.Seal(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(sealed, plaintext) {
		t.Fatal("sealed blob must differ from plaintext")
	}
	if !bytes.HasPrefix(sealed, sealMagic) {
		t.Fatal("sealed blob must carry the magic prefix")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestOpenPassesThroughPlaintext(t *testing.T) {
	sealer, err := NewSealer("test passphrase")
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte(`{"agentId":"42"}`)
	opened, err := sealer.Open(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatal("unsealed blobs must pass through unchanged")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	a, _ := NewSealer("passphrase a")
	b, _ := NewSealer("passphrase b")

	sealed, err := a.Seal([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(sealed); !errors.Is(err, ErrSealCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}

func TestNilSealerPassesThrough(t *testing.T) {
	var sealer *Sealer
	blob := []byte("plain")
	sealed, err := sealer.Seal(blob)
	if err != nil || !bytes.Equal(sealed, blob) {
		t.Fatalf("nil sealer must pass through, got %q (%v)", sealed, err)
	}
}

func TestResolvePrefersCredentialBearingRow(t *testing.T) {
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	ctx := context.Background()

	raw, want := testPackageJSON(t)

	// Two rows with the same name: the older one carries the
	// credential, the newer one is bare.
	withCred, err := db.CreateAgent(ctx, "helper", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetAgentSession(ctx, withCred.ID, raw, want.Address, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateAgent(ctx, "helper", 1); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(db, nil, "", zerolog.Nop())
	pkg, err := r.Resolve(ctx, "Helper", 1)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Address != want.Address {
		t.Fatalf("expected the credential-bearing row, got %+v", pkg)
	}
}

func TestResolveTouchesAgentRow(t *testing.T) {
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	ctx := context.Background()

	raw, _ := testPackageJSON(t)
	agent, err := db.CreateAgent(ctx, "helper", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetAgentSession(ctx, agent.ID, raw, "", 1); err != nil {
		t.Fatal(err)
	}
	before, err := db.FindAgentsByName(ctx, "helper")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	r := NewResolver(db, nil, "", zerolog.Nop())
	if _, err := r.Resolve(ctx, "helper", 1); err != nil {
		t.Fatal(err)
	}

	after, err := db.FindAgentsByName(ctx, "helper")
	if err != nil {
		t.Fatal(err)
	}
	if !after[0].UpdatedAt.After(before[0].UpdatedAt) {
		t.Fatalf("resolve did not bump updated_at: before=%v after=%v",
			before[0].UpdatedAt, after[0].UpdatedAt)
	}
}

func TestResolveFailsClosedWithoutCredential(t *testing.T) {
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)

	r := NewResolver(db, nil, "", zerolog.Nop())
	_, err = r.Resolve(context.Background(), "helper", 1)
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected fail-closed credential error, got %v", err)
	}

	// The lookup should have created a bare row for later attachment.
	agents, err := db.FindAgentsByName(context.Background(), "helper")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected one created row, got %d", len(agents))
	}
}

func TestResolveFileFallback(t *testing.T) {
	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	ctx := context.Background()

	raw, want := testPackageJSON(t)
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(db, nil, path, zerolog.Nop())
	pkg, err := r.Resolve(ctx, "helper", 1)
	if err != nil {
		t.Fatalf("file fallback failed: %v", err)
	}
	if pkg.Address != want.Address {
		t.Fatalf("unexpected package: %+v", pkg)
	}

	// The fallback attaches to the agent row, so the next lookup hits
	// the store.
	agents, err := db.FindAgentsByName(ctx, "helper")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || !agents[0].HasCredential() {
		t.Fatal("fallback package was not attached to the agent row")
	}
}

func TestPackageKeyParsing(t *testing.T) {
	_, pkg := testPackageJSON(t)

	key, err := pkg.Key()
	if err != nil {
		t.Fatal(err)
	}
	if ethcrypto.PubkeyToAddress(key.PublicKey).Hex() != pkg.Address {
		t.Fatal("parsed key does not match the package address")
	}

	bad := &SessionPackage{PrivateKey: "zz"}
	if _, err := bad.Key(); !errors.Is(err, ErrBadPackage) {
		t.Fatalf("expected bad package error, got %v", err)
	}
}
