package models

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	credmodels "trialgate/internal/credential/models"
)

// Triple is the placeholder proof a holder derives from a credential.
type Triple struct {
	ProofHash string
	Nullifier string
	Signature string
}

// Derive builds a proof triple. The nullifier is unique by time and entropy
// only; it is not bound to any secret credential state.
func Derive(doc credmodels.Document, credentialHash, issuerDID string, now time.Time, entropy io.Reader) (Triple, error) {
	random := make([]byte, 16)
	if _, err := io.ReadFull(entropy, random); err != nil {
		return Triple{}, fmt.Errorf("read nullifier entropy: %w", err)
	}
	nullifier := credmodels.HashBytes(fmt.Appendf(nil, "%s-%d-%s", credentialHash, now.UnixMilli(), hex.EncodeToString(random)))

	payload, err := encode(struct {
		Credential credmodels.Document `json:"credential"`
		Nullifier  string              `json:"nullifier"`
		Timestamp  string              `json:"timestamp"`
	}{doc, nullifier, credmodels.FormatTimestamp(now)})
	if err != nil {
		return Triple{}, err
	}
	proofHash := credmodels.HashBytes(payload)
	signature := credmodels.HashBytes(fmt.Appendf(nil, "%s-%s-%s", proofHash, nullifier, issuerDID))

	return Triple{ProofHash: proofHash, Nullifier: nullifier, Signature: signature}, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode proof payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
