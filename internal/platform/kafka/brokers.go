// Package kafka holds settings shared by the audit producer and consumer.
package kafka

import "strings"

// SplitBrokers parses a comma-separated seed list, dropping blanks.
func SplitBrokers(list string) []string {
	var brokers []string
	for b := range strings.SplitSeq(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
