package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"trialgate/pkg/platform/sentinel"
)

// MaxLoginIDAttempts bounds collision retries during registration.
const MaxLoginIDAttempts = 10

// ErrLoginIDTaken is returned by stores when only the login ID collided, so
// registration draws a new one instead of reporting a conflict.
var ErrLoginIDTaken = fmt.Errorf("issuer login id %w", sentinel.ErrAlreadyUsed)

// NewLoginID returns "<FIRST-TOKEN>-<8 HEX>", e.g. CITY-A1B2C3D4 for "City General Hospital".
func NewLoginID(name string, r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	prefix := "ISSUER"
	if fields := strings.Fields(name); len(fields) > 0 {
		prefix = strings.ToUpper(fields[0])
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(buf[:])), nil
}
