// Package eligibility evaluates credential claims against trial requirements.
//
// Every requirement field is optional and an omitted field is satisfied by any
// claim. Checks run in a fixed order and the first failing check decides the
// reason. Gender, blood group and genotype must each appear in their allowed
// set; conditions pass when any one credential condition is in the required set.
package eligibility

import (
	"fmt"
	"slices"
	"strings"
)

// Claims are the medical attributes carried by a credential.
// Field order is the canonical serialization order.
type Claims struct {
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	BloodGroup string   `json:"bloodGroup"`
	Genotype   string   `json:"genotype"`
	Conditions []string `json:"conditions"`
}

// Requirements is a trial's admission predicate.
type Requirements struct {
	MinAge      *int     `json:"minAge,omitempty"`
	MaxAge      *int     `json:"maxAge,omitempty"`
	Genders     []string `json:"genders,omitempty"`
	BloodGroups []string `json:"bloodGroups,omitempty"`
	Genotypes   []string `json:"genotypes,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
}

// Result reports whether claims satisfied a requirement set.
type Result struct {
	Eligible bool
	Reason   string
}

// Match applies requirements to claims. It performs no I/O.
func Match(claims Claims, req Requirements) Result {
	if req.MinAge != nil && claims.Age < *req.MinAge {
		return reject("Age %d is below the minimum required age of %d", claims.Age, *req.MinAge)
	}
	if req.MaxAge != nil && claims.Age > *req.MaxAge {
		return reject("Age %d is above the maximum required age of %d", claims.Age, *req.MaxAge)
	}
	if len(req.Genders) > 0 && !slices.Contains(req.Genders, claims.Gender) {
		return reject("Gender %s is not eligible for this trial", claims.Gender)
	}
	if len(req.BloodGroups) > 0 && !slices.Contains(req.BloodGroups, claims.BloodGroup) {
		return reject("Blood group %s is not eligible for this trial", claims.BloodGroup)
	}
	if len(req.Genotypes) > 0 && !slices.Contains(req.Genotypes, claims.Genotype) {
		return reject("Genotype %s is not eligible for this trial", claims.Genotype)
	}
	if len(req.Conditions) > 0 && !anyOverlap(req.Conditions, claims.Conditions) {
		return reject("None of the required conditions (%s) are present in the credential",
			strings.Join(req.Conditions, ", "))
	}
	return Result{Eligible: true}
}

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

func anyOverlap(required, present []string) bool {
	for _, c := range required {
		if slices.Contains(present, c) {
			return true
		}
	}
	return false
}

// Trial is the matcher's view of a trial.
type Trial struct {
	ID           string       `json:"id"`
	CodeName     string       `json:"codeName"`
	DisplayName  string       `json:"displayName"`
	Requirements Requirements `json:"-"`
}

// Rejection records why one trial refused the claims.
type Rejection struct {
	TrialID   string
	TrialName string
	Reason    string
}

// Outcome partitions trials into eligible ones and rejections.
// Eligible keeps the order trials were supplied in.
type Outcome struct {
	Eligible   []Trial
	Rejections []Rejection
}

// Evaluate runs Match against every trial.
func Evaluate(claims Claims, trials []Trial) Outcome {
	var out Outcome
	for _, t := range trials {
		res := Match(claims, t.Requirements)
		if res.Eligible {
			out.Eligible = append(out.Eligible, t)
			continue
		}
		reason := res.Reason
		if reason == "" {
			reason = "Not eligible"
		}
		out.Rejections = append(out.Rejections, Rejection{TrialID: t.ID, TrialName: t.DisplayName, Reason: reason})
	}
	return out
}

// Primary is the first eligible trial, or false when none matched.
func (o Outcome) Primary() (Trial, bool) {
	if len(o.Eligible) == 0 {
		return Trial{}, false
	}
	return o.Eligible[0], true
}

// Summary joins rejection reasons as "<trial>: <reason>" separated by "; ".
func (o Outcome) Summary() string {
	parts := make([]string, 0, len(o.Rejections))
	for _, r := range o.Rejections {
		parts = append(parts, r.TrialName+": "+r.Reason)
	}
	return strings.Join(parts, "; ")
}
