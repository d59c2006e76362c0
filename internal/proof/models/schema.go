package models

// Schema describes what a credential must carry to back a proof.
type Schema struct {
	RequiredClaims     []string          `json:"requiredClaims"`
	Constraints        map[string]string `json:"constraints"`
	SignatureAlgorithm string            `json:"signatureAlgorithm"`
}

func CurrentSchema() Schema {
	return Schema{
		RequiredClaims: []string{"name", "age", "gender", "bloodGroup", "genotype", "conditions"},
		Constraints: map[string]string{
			"age":        "any",
			"conditions": "at least one required",
		},
		SignatureAlgorithm: "Ed25519",
	}
}
