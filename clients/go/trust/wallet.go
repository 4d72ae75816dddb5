package trust

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// LocalWallet signs with an in-process secp256k1 key. It only
// implements raw digest signing; the typed-data methods defer to the
// fallback chain.
type LocalWallet struct {
	key *ecdsa.PrivateKey
}

// NewLocalWallet parses a hex-encoded private key.
func NewLocalWallet(privateKeyHex string) (*LocalWallet, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &LocalWallet{key: key}, nil
}

func (w *LocalWallet) Address() string {
	return ethcrypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

func (w *LocalWallet) SignTypedDataV4(_ context.Context, _ []byte) ([]byte, error) {
	return nil, nil
}

func (w *LocalWallet) SignTypedDataV3(_ context.Context, _ []byte) ([]byte, error) {
	return nil, nil
}

func (w *LocalWallet) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	return ethcrypto.Sign(digest, w.key)
}

// SignChallenge signs a challenge payload with the EIP-191 personal
// prefix, satisfying the client's ChallengeSigner.
func (w *LocalWallet) SignChallenge(payload []byte) ([]byte, error) {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(payload))
	digest := ethcrypto.Keccak256(append([]byte(prefix), payload...))
	sig, err := ethcrypto.Sign(digest, w.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
