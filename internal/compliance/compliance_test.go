package compliance

import (
	"reflect"
	"testing"

	"github.com/nelssec/appguard/internal/models"
)

func TestChecker_NoViolations(t *testing.T) {
	c := NewChecker(DefaultConfig())

	tests := []struct {
		name string
		data models.EventData
	}{
		{"empty payload", models.EventData{}},
		{"nil payload", nil},
		{"consented access", models.EventData{
			"location_access":  float64(1),
			"location_consent": true,
			"contacts_access":  float64(1),
			"contacts_consent": true,
		}},
		{"transmission under threshold", models.EventData{
			"network_bytes_sent": float64(1_000_000),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := c.Check(tt.data); len(v) != 0 {
				t.Errorf("expected no violations, got %v", v)
			}
		})
	}
}

func TestChecker_LocationWithoutConsent(t *testing.T) {
	c := NewChecker(DefaultConfig())

	violations := c.Check(models.EventData{
		"location_access":  float64(1),
		"location_consent": false,
	})

	expected := []string{"GDPR: Location accessed without consent"}
	if !reflect.DeepEqual(violations, expected) {
		t.Errorf("expected %v, got %v", expected, violations)
	}

	// Absent consent flag is the same as denied consent.
	violations = c.Check(models.EventData{"location_access": true})
	if !reflect.DeepEqual(violations, expected) {
		t.Errorf("expected %v for absent consent, got %v", expected, violations)
	}
}

func TestChecker_UnknownEndpoints(t *testing.T) {
	c := NewChecker(DefaultConfig())

	violations := c.Check(models.EventData{
		"unknown_endpoints": []interface{}{"a", "b", "c"},
	})

	expected := []string{"CCPA: Data sent to 3 unknown endpoints"}
	if !reflect.DeepEqual(violations, expected) {
		t.Errorf("expected %v, got %v", expected, violations)
	}
}

func TestChecker_UnknownEndpointsGarbageShape(t *testing.T) {
	c := NewChecker(DefaultConfig())

	tests := []struct {
		name  string
		value interface{}
	}{
		{"string", "https://evil.example"},
		{"number", float64(5)},
		{"object", map[string]interface{}{"url": "x"}},
		{"empty list", []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Check(models.EventData{"unknown_endpoints": tt.value})
			if len(v) != 0 {
				t.Errorf("expected non-list endpoints to be ignored, got %v", v)
			}
		})
	}
}

func TestChecker_ExcessiveTransmission(t *testing.T) {
	c := NewChecker(DefaultConfig())

	violations := c.Check(models.EventData{"network_bytes_sent": float64(2_000_000)})
	expected := []string{"GDPR: Excessive data transmission detected"}
	if !reflect.DeepEqual(violations, expected) {
		t.Errorf("expected %v, got %v", expected, violations)
	}
}

func TestChecker_AllRulesFireInOrder(t *testing.T) {
	c := NewChecker(DefaultConfig())

	violations := c.Check(models.EventData{
		"location_access":    float64(1),
		"contacts_access":    true,
		"unknown_endpoints":  []interface{}{"a", "b"},
		"network_bytes_sent": float64(5_000_000),
	})

	expected := []string{
		"GDPR: Location accessed without consent",
		"GDPR: Contacts accessed without consent",
		"CCPA: Data sent to 2 unknown endpoints",
		"GDPR: Excessive data transmission detected",
	}
	if !reflect.DeepEqual(violations, expected) {
		t.Errorf("expected %v, got %v", expected, violations)
	}
}

func TestChecker_CustomThreshold(t *testing.T) {
	c := NewChecker(Config{ExcessiveTransmissionBytes: 100})

	if v := c.Check(models.EventData{"network_bytes_sent": float64(101)}); len(v) != 1 {
		t.Errorf("expected violation above custom threshold, got %v", v)
	}
	if v := c.Check(models.EventData{"network_bytes_sent": float64(100)}); len(v) != 0 {
		t.Errorf("expected no violation at custom threshold, got %v", v)
	}
}

func TestTruthy_Semantics(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero", float64(0), false},
		{"nonzero", float64(0.5), true},
		{"empty string", "", false},
		{"string", "yes", true},
		{"empty list", []interface{}{}, false},
		{"list", []interface{}{1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truthy(tt.value); got != tt.expected {
				t.Errorf("truthy(%v) = %v, expected %v", tt.value, got, tt.expected)
			}
		})
	}
}
