package credentials

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrSealCorrupt = errors.New("sealed session package is corrupt")

// sealMagic prefixes sealed blobs so stored plaintext packages from
// before sealing was enabled still load.
var sealMagic = []byte("SPX1")

// Sealer encrypts session packages at rest with a key derived from a
// deployment passphrase.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key via HKDF-SHA256. An empty
// passphrase returns a nil Sealer, which passes blobs through
// unmodified.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, nil
	}
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("session-package-seal"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. Output layout: magic || nonce || box.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealMagic)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a sealed blob. Blobs without the magic prefix are
// returned as-is for compatibility with plaintext storage.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if !bytes.HasPrefix(blob, sealMagic) {
		return blob, nil
	}
	if s == nil {
		return nil, fmt.Errorf("%w: sealed blob but no seal key configured", ErrSealCorrupt)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	rest := blob[len(sealMagic):]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: truncated", ErrSealCorrupt)
	}
	nonce, box := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealCorrupt, err)
	}
	return plaintext, nil
}
