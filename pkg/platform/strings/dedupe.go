// Package strings provides string slice helpers shared by request normalization.
package strings

import "strings"

// DedupeAndTrim trims each element and drops blanks and repeats, preserving order.
//
//	DedupeAndTrim([]string{" Diabetes ", "Asthma", "Diabetes", ""})
//	// []string{"Diabetes", "Asthma"}
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
