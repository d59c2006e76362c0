package models

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"

	dErrors "trialgate/pkg/domain-errors"
)

// KeyHexLength is the length of a hex encoded 32-byte key.
const KeyHexLength = 64

var keyHex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// KeyPair holds an Ed25519 seed and public key as lowercase hex.
type KeyPair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeyPair draws a new Ed25519 key pair from r (crypto/rand when nil).
func GenerateKeyPair(r io.Reader) (KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return KeyPair{}, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to generate key pair")
	}
	kp := KeyPair{
		PrivateKey: hex.EncodeToString(priv.Seed()),
		PublicKey:  hex.EncodeToString(pub),
	}
	if err := kp.Validate(); err != nil {
		return KeyPair{}, err
	}
	return kp, nil
}

// Validate enforces 64 lowercase hex characters for both halves.
func (kp KeyPair) Validate() error {
	if !keyHex.MatchString(kp.PrivateKey) {
		return dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("Invalid private key generated: length=%d, format invalid", len(kp.PrivateKey)))
	}
	if !keyHex.MatchString(kp.PublicKey) {
		return dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("Invalid public key generated: length=%d, format invalid", len(kp.PublicKey)))
	}
	return nil
}
