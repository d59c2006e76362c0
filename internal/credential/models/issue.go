package models

import (
	"time"

	id "trialgate/pkg/domain"
)

// Allowed claim values.
var (
	Genders     = []string{"Male", "Female", "Other"}
	BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	Genotypes   = []string{"AA", "AS", "SS", "AC", "SC", "CC"}
)

// Issued is everything a holder needs to present a freshly signed credential.
type Issued struct {
	Document        Document
	Signature       string
	Hash            string
	IssuerPublicKey string
	IssuerDID       string
	CredentialID    id.CredentialID
	IssuerID        id.IssuerID
	IssuerName      string
	PatientNumber   string
}

// Listed pairs a record with its issuer's display name. IssuerName is empty
// when the issuer row no longer resolves.
type Listed struct {
	Record     *Record
	IssuerName string
}

// Usability is the pre-flight answer to "can this credential back a proof".
type Usability struct {
	Valid     bool
	Reason    string
	Message   string
	IssuerDID string
	Expiry    time.Time
}
