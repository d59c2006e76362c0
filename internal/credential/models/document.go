package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"trialgate/internal/eligibility"
)

// TimestampLayout renders instants as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ValidityMonths is how long a credential stays usable after issuance.
const ValidityMonths = 1

// Document is the signed credential body. Field order is the canonical
// serialization order and must not change: the hash and signature cover it.
type Document struct {
	Issuer   string             `json:"issuer"`
	Claims   eligibility.Claims `json:"claims"`
	IssuedAt string             `json:"issuedAt"`
	Expiry   string             `json:"expiry"`
}

// NewDocument stamps a document issued at now, valid for one calendar month.
func NewDocument(issuerDID string, claims eligibility.Claims, now time.Time) (Document, time.Time, time.Time) {
	issuedAt := now.UTC().Truncate(time.Millisecond)
	expiry := issuedAt.AddDate(0, ValidityMonths, 0)
	if claims.Conditions == nil {
		claims.Conditions = []string{}
	}
	return Document{
		Issuer:   issuerDID,
		Claims:   claims,
		IssuedAt: FormatTimestamp(issuedAt),
		Expiry:   FormatTimestamp(expiry),
	}, issuedAt, expiry
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Canonical returns the exact bytes that are hashed and signed: compact JSON in
// struct field order, no HTML escaping, U+2028 and U+2029 left raw, no
// trailing newline.
func (d Document) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode credential document: %w", err)
	}
	return rawLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// rawLineSeparators turns the \u2028 and \u2029 escapes encoding/json always
// writes back into the characters themselves. It walks escape pairs so an
// escaped backslash followed by "u2028" is left alone.
func rawLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+6 <= len(b) {
			switch string(b[i+2 : i+6]) {
			case "2028":
				out = utf8.AppendRune(out, '\u2028')
				i += 5
				continue
			case "2029":
				out = utf8.AppendRune(out, '\u2029')
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// Hash is the lowercase hex SHA-256 of the canonical bytes.
func (d Document) Hash() (string, error) {
	canonical, err := d.Canonical()
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
