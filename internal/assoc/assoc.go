// Package assoc computes canonical digests for association records
// and verifies the signatures that cover them. The digest is always
// derived from the record's own fields; a digest supplied by a caller
// is only ever checked against the derived one, never trusted.
package assoc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidRecord    = errors.New("invalid association record")
	ErrInvalidSignature = errors.New("invalid association signature")
	ErrSignerMismatch   = errors.New("recovered signer does not match expected address")
	ErrDigestMismatch   = errors.New("supplied digest does not match record")
)

// domainTag separates association digests from any other signed
// payload in the protocol.
const domainTag = "agentic-trust/association-v1"

// Record is a delegation/association between two identities. Mutating
// any field after signing invalidates every signature over the
// digest.
type Record struct {
	Initiator   common.Address
	Approver    common.Address
	ValidAt     uint64
	ValidUntil  uint64
	InterfaceID [4]byte
	Data        []byte
}

// ParseRecord builds a Record from the wire representation: hex
// addresses, decimal timestamps, 0x-prefixed interface id and data.
func ParseRecord(initiator, approver string, validAt, validUntil uint64, interfaceID, data string) (Record, error) {
	var rec Record
	if !common.IsHexAddress(initiator) {
		return rec, fmt.Errorf("%w: malformed initiator address", ErrInvalidRecord)
	}
	if !common.IsHexAddress(approver) {
		return rec, fmt.Errorf("%w: malformed approver address", ErrInvalidRecord)
	}
	rec.Initiator = common.HexToAddress(initiator)
	rec.Approver = common.HexToAddress(approver)
	rec.ValidAt = validAt
	rec.ValidUntil = validUntil

	iface, err := hexutil.Decode(interfaceID)
	if err != nil || len(iface) != 4 {
		return rec, fmt.Errorf("%w: interfaceId must be 4 hex bytes", ErrInvalidRecord)
	}
	copy(rec.InterfaceID[:], iface)

	if data == "" {
		data = "0x"
	}
	payload, err := hexutil.Decode(data)
	if err != nil {
		return rec, fmt.Errorf("%w: data must be 0x-prefixed hex", ErrInvalidRecord)
	}
	rec.Data = payload
	return rec, nil
}

// Digest computes the deterministic association id: keccak256 over a
// fixed-width encoding of the six fields under the domain tag. The
// free-length data field enters through its own keccak hash so field
// boundaries stay unambiguous.
func (r Record) Digest() common.Hash {
	buf := make([]byte, 0, len(domainTag)+20+20+8+8+4+32)
	buf = append(buf, []byte(domainTag)...)
	buf = append(buf, r.Initiator.Bytes()...)
	buf = append(buf, r.Approver.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, r.ValidAt)
	buf = binary.BigEndian.AppendUint64(buf, r.ValidUntil)
	buf = append(buf, r.InterfaceID[:]...)
	buf = append(buf, ethcrypto.Keccak256(r.Data)...)
	return common.BytesToHash(ethcrypto.Keccak256(buf))
}

// CheckDigest verifies a caller-supplied digest against the record.
func (r Record) CheckDigest(supplied string) error {
	want := r.Digest()
	got, err := hexutil.Decode(supplied)
	if err != nil || len(got) != 32 {
		return fmt.Errorf("%w: digest must be 32 hex bytes", ErrDigestMismatch)
	}
	if common.BytesToHash(got) != want {
		return ErrDigestMismatch
	}
	return nil
}

// NormalizeSignature remaps a recovery-id byte in {0,1} to {27,28}
// per the common wire convention. The input must be 65 bytes.
func NormalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrInvalidSignature, len(sig))
	}
	out := make([]byte, 65)
	copy(out, sig)
	if out[64] == 0 || out[64] == 1 {
		out[64] += 27
	}
	if out[64] != 27 && out[64] != 28 {
		return nil, fmt.Errorf("%w: recovery id %d out of range", ErrInvalidSignature, out[64])
	}
	return out, nil
}

// RecoverSigner recovers the address that produced sig over digest.
// sig must be normalized (v in {27,28}).
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes", ErrInvalidSignature)
	}
	recov := make([]byte, 65)
	copy(recov, sig)
	if recov[64] >= 27 {
		recov[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), recov)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifySigner recovers the signer from sig over digest and compares
// it case-insensitively to expected. A mismatch is a hard failure.
func VerifySigner(digest common.Hash, sigHex string, expected common.Address) error {
	raw, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("%w: signature must be 0x-prefixed hex", ErrInvalidSignature)
	}
	sig, err := NormalizeSignature(raw)
	if err != nil {
		return err
	}
	signer, err := RecoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if !strings.EqualFold(signer.Hex(), expected.Hex()) {
		return ErrSignerMismatch
	}
	return nil
}
