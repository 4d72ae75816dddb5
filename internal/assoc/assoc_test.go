package assoc

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func testKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return key, ethcrypto.PubkeyToAddress(key.PublicKey)
}

func testRecord() Record {
	return Record{
		Initiator:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Approver:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		ValidAt:     1700000000,
		ValidUntil:  1800000000,
		InterfaceID: [4]byte{0xde, 0xad, 0xbe, 0xef},
		Data:        []byte{0x01, 0x02},
	}
}

func TestDigestDeterministic(t *testing.T) {
	a := testRecord()
	b := testRecord()
	if a.Digest() != b.Digest() {
		t.Fatal("identical records must produce identical digests")
	}
}

func TestDigestChangesPerField(t *testing.T) {
	base := testRecord().Digest()

	mutations := map[string]Record{}

	rec := testRecord()
	rec.Initiator = common.HexToAddress("0x3333333333333333333333333333333333333333")
	mutations["initiator"] = rec

	rec = testRecord()
	rec.Approver = common.HexToAddress("0x3333333333333333333333333333333333333333")
	mutations["approver"] = rec

	rec = testRecord()
	rec.ValidAt++
	mutations["validAt"] = rec

	rec = testRecord()
	rec.ValidUntil++
	mutations["validUntil"] = rec

	rec = testRecord()
	rec.InterfaceID = [4]byte{0, 0, 0, 1}
	mutations["interfaceId"] = rec

	rec = testRecord()
	rec.Data = []byte{0x01, 0x03}
	mutations["data"] = rec

	for field, m := range mutations {
		if m.Digest() == base {
			t.Fatalf("changing %s did not change the digest", field)
		}
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key, addr := testKey(t)
	rec := testRecord()
	rec.Initiator = addr
	digest := rec.Digest()

	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27

	if err := VerifySigner(digest, hexutil.Encode(sig), addr); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyRejectsTamperedRecord(t *testing.T) {
	key, addr := testKey(t)
	rec := testRecord()
	rec.Initiator = addr

	sig, err := ethcrypto.Sign(rec.Digest().Bytes(), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27

	tampered := rec
	tampered.ValidUntil++
	if err := VerifySigner(tampered.Digest(), hexutil.Encode(sig), addr); err == nil {
		t.Fatal("signature over the original record verified against a mutated one")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, _ := testKey(t)
	_, other := testKey(t)
	rec := testRecord()
	digest := rec.Digest()

	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		t.Fatal(err)
	}
	sig[64] += 27

	err = VerifySigner(digest, hexutil.Encode(sig), other)
	if err == nil {
		t.Fatal("expected signer mismatch")
	}
}

func TestNormalizeSignature(t *testing.T) {
	sig := make([]byte, 65)
	sig[64] = 0
	out, err := NormalizeSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if out[64] != 27 {
		t.Fatalf("expected v=27, got %d", out[64])
	}

	sig[64] = 1
	out, err = NormalizeSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if out[64] != 28 {
		t.Fatalf("expected v=28, got %d", out[64])
	}

	sig[64] = 27
	out, err = NormalizeSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	if out[64] != 27 {
		t.Fatalf("v=27 must pass through, got %d", out[64])
	}

	sig[64] = 5
	if _, err := NormalizeSignature(sig); err == nil {
		t.Fatal("recovery id 5 must be rejected")
	}

	if _, err := NormalizeSignature(make([]byte, 64)); err == nil {
		t.Fatal("64-byte signature must be rejected")
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord(
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		1, 2, "0xdeadbeef", "0x0102")
	if err != nil {
		t.Fatal(err)
	}
	if rec.InterfaceID != [4]byte{0xde, 0xad, 0xbe, 0xef} {
		t.Fatalf("unexpected interface id %x", rec.InterfaceID)
	}

	if _, err := ParseRecord("nope", "0x2222222222222222222222222222222222222222", 0, 0, "0x00000000", ""); err == nil {
		t.Fatal("malformed initiator must be rejected")
	}
	if _, err := ParseRecord(
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		0, 0, "0xdead", ""); err == nil {
		t.Fatal("short interface id must be rejected")
	}
}

func TestCheckDigest(t *testing.T) {
	rec := testRecord()
	if err := rec.CheckDigest(rec.Digest().Hex()); err != nil {
		t.Fatalf("correct digest rejected: %v", err)
	}
	other := testRecord()
	other.ValidAt++
	if err := rec.CheckDigest(other.Digest().Hex()); err == nil {
		t.Fatal("wrong digest accepted")
	}
}
