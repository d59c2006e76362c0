// Package signing signs and verifies canonical credential bytes with Ed25519
// keys held as 64-character hex strings.
package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	dErrors "trialgate/pkg/domain-errors"
)

const keyHexLength = 64

var privateKeyHex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Signer produces a hex signature over message with the issuer's private key.
type Signer interface {
	Sign(message []byte, privateKeyHex string) (string, error)
}

// Ed25519 signs with the 32-byte seed form of an Ed25519 private key.
type Ed25519 struct{}

func (Ed25519) Sign(message []byte, privateKey string) (string, error) {
	seed, err := DecodePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), message)
	return hex.EncodeToString(sig), nil
}

// DecodePrivateKey validates stored key material. Every failure names the
// remediation since keys are never repaired in place.
func DecodePrivateKey(privateKey string) ([]byte, error) {
	trimmed := strings.TrimSpace(privateKey)
	if trimmed == "" {
		return nil, dErrors.New(dErrors.CodeValidation,
			"Issuer private key is missing. Please delete and recreate the issuer to generate new keys.")
	}
	if len(trimmed) != keyHexLength {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("Invalid private key length: expected 64 hex characters, got %d. Please delete and recreate the issuer.", len(trimmed)))
	}
	if !privateKeyHex.MatchString(trimmed) {
		return nil, dErrors.New(dErrors.CodeValidation,
			"Invalid private key format: must be exactly 64 hexadecimal characters. Please delete and recreate the issuer.")
	}
	seed, err := hex.DecodeString(strings.ToLower(trimmed))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation,
			"Invalid private key format: must be exactly 64 hexadecimal characters. Please delete and recreate the issuer.")
	}
	return seed, nil
}

// Verify reports whether signatureHex is a valid signature of message under
// publicKeyHex. Malformed hex or key sizes verify as false.
func Verify(message []byte, signatureHex, publicKeyHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
