// Package compliance evaluates event payloads against GDPR/CCPA-style
// consent and transmission rules.
package compliance

import (
	"fmt"

	"github.com/nelssec/appguard/internal/features"
	"github.com/nelssec/appguard/internal/models"
)

// Config holds the rule thresholds.
type Config struct {
	// ExcessiveTransmissionBytes is the outbound byte count above which
	// an event is treated as excessive data collection.
	ExcessiveTransmissionBytes float64
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		ExcessiveTransmissionBytes: 1_000_000,
	}
}

// Checker runs the compliance rule set. It is stateless and safe for
// concurrent use.
type Checker struct {
	cfg Config
}

// NewChecker creates a checker with the given thresholds.
func NewChecker(cfg Config) *Checker {
	if cfg.ExcessiveTransmissionBytes <= 0 {
		cfg.ExcessiveTransmissionBytes = DefaultConfig().ExcessiveTransmissionBytes
	}
	return &Checker{cfg: cfg}
}

// Check evaluates the rules against the raw event payload and returns the
// violations in rule order. Every applicable rule fires independently; the
// result is empty when no rule matches. Check never fails: values of
// unexpected shape are treated as absent.
func (c *Checker) Check(data models.EventData) []string {
	var violations []string

	if truthy(data["location_access"]) && !truthy(data["location_consent"]) {
		violations = append(violations, "GDPR: Location accessed without consent")
	}

	if truthy(data["contacts_access"]) && !truthy(data["contacts_consent"]) {
		violations = append(violations, "GDPR: Contacts accessed without consent")
	}

	if n := EndpointCount(data["unknown_endpoints"]); n > 0 {
		violations = append(violations, fmt.Sprintf("CCPA: Data sent to %d unknown endpoints", n))
	}

	if features.Numeric(data["network_bytes_sent"]) > c.cfg.ExcessiveTransmissionBytes {
		violations = append(violations, "GDPR: Excessive data transmission detected")
	}

	return violations
}

// EndpointCount returns the number of entries in an unknown_endpoints
// value, or 0 when the value is not a list.
func EndpointCount(value interface{}) int {
	list, ok := value.([]interface{})
	if !ok {
		return 0
	}
	return len(list)
}

// truthy mirrors the loose boolean reading the mobile SDKs rely on:
// non-zero numbers, true, non-empty strings, and non-empty lists all count
// as set.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return features.Numeric(value) != 0
	}
}
