package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/nelssec/appguard/internal/anomaly"
	"github.com/nelssec/appguard/internal/compliance"
	"github.com/nelssec/appguard/internal/models"
)

// stubScorer returns a fixed score and verdict.
type stubScorer struct {
	score     float64
	isOutlier bool
	err       error
}

func (s *stubScorer) Score(v []float64) (float64, error) { return s.score, s.err }
func (s *stubScorer) Classify(v []float64) (bool, error) { return s.isOutlier, s.err }

func newTestEngine(scorer Scorer) *Engine {
	return New(scorer, compliance.NewChecker(compliance.DefaultConfig()), DefaultConfig(), nil)
}

func TestEngine_FailsClosedWithoutModel(t *testing.T) {
	e := New(nil, nil, DefaultConfig(), nil)

	if e.Ready() {
		t.Error("engine without scorer should not be ready")
	}
	if _, err := e.Analyze(models.EventData{}); !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestEngine_ScorerErrorPropagates(t *testing.T) {
	e := newTestEngine(&stubScorer{err: anomaly.ErrNotFitted})
	if _, err := e.Analyze(models.EventData{}); !errors.Is(err, anomaly.ErrNotFitted) {
		t.Errorf("expected wrapped scorer error, got %v", err)
	}
}

func TestEngine_RiskScoreBounds(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected float64
	}{
		{"neutral", 0, 50},
		{"mild outlier", -0.2, 48},
		{"mild inlier", 0.1, 51},
		{"saturates low", -5, 0},
		{"below saturation", -6, 0},
		{"saturates high", 5, 100},
		{"above saturation", 7, 100},
		{"just inside low", -4.9, 1},
		{"just inside high", 4.9, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(&stubScorer{score: tt.score})
			result, err := e.Analyze(models.EventData{})
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if math.Abs(result.RiskScore-tt.expected) > 1e-9 {
				t.Errorf("risk for score %v = %v, expected %v", tt.score, result.RiskScore, tt.expected)
			}
			if result.RiskScore < 0 || result.RiskScore > 100 {
				t.Errorf("risk %v out of bounds", result.RiskScore)
			}
		})
	}
}

func TestEngine_Recommendations(t *testing.T) {
	tests := []struct {
		name     string
		scorer   *stubScorer
		data     models.EventData
		expected []string
	}{
		{
			name:     "clean event",
			scorer:   &stubScorer{},
			data:     models.EventData{},
			expected: []string{},
		},
		{
			name:   "outlier only",
			scorer: &stubScorer{isOutlier: true},
			data:   models.EventData{},
			expected: []string{
				"Anomalous behavior detected. Review app permissions and network activity.",
			},
		},
		{
			name:   "violation implies compliance recommendation",
			scorer: &stubScorer{},
			data: models.EventData{
				"location_access": float64(1),
			},
			expected: []string{
				"Compliance violations found. Ensure proper user consent mechanisms.",
			},
		},
		{
			name:   "high transmission below violation threshold",
			scorer: &stubScorer{},
			data: models.EventData{
				"network_bytes_sent": float64(600_000),
			},
			expected: []string{
				"High data transmission detected. Verify data minimization practices.",
			},
		},
		{
			name:   "everything fires in order",
			scorer: &stubScorer{isOutlier: true},
			data: models.EventData{
				"location_access":    float64(1),
				"network_bytes_sent": float64(2_000_000),
				"unknown_endpoints":  []interface{}{"a"},
			},
			expected: []string{
				"Anomalous behavior detected. Review app permissions and network activity.",
				"Compliance violations found. Ensure proper user consent mechanisms.",
				"High data transmission detected. Verify data minimization practices.",
				"Unknown API endpoints detected. Review third-party SDK integrations.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.scorer)
			result, err := e.Analyze(tt.data)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if !reflect.DeepEqual(result.Recommendations, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result.Recommendations)
			}
		})
	}
}

func TestEngine_ViolationRecommendationCoupling(t *testing.T) {
	// The compliance recommendation appears exactly when violations exist.
	e := newTestEngine(&stubScorer{})

	withViolation, _ := e.Analyze(models.EventData{"contacts_access": true})
	if len(withViolation.ComplianceViolations) == 0 {
		t.Fatal("expected a violation")
	}
	if !contains(withViolation.Recommendations, "Compliance violations found. Ensure proper user consent mechanisms.") {
		t.Error("expected compliance recommendation when violations exist")
	}

	clean, _ := e.Analyze(models.EventData{})
	if len(clean.ComplianceViolations) != 0 {
		t.Fatal("expected no violations")
	}
	if contains(clean.Recommendations, "Compliance violations found. Ensure proper user consent mechanisms.") {
		t.Error("compliance recommendation must not appear without violations")
	}
}

func TestEngine_ExcessiveTransmissionScenario(t *testing.T) {
	e := newTestEngine(&stubScorer{})
	result, err := e.Analyze(models.EventData{"network_bytes_sent": float64(2_000_000)})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !contains(result.ComplianceViolations, "GDPR: Excessive data transmission detected") {
		t.Errorf("expected excessive transmission violation, got %v", result.ComplianceViolations)
	}
	// 2MB also clears the lower recommendation threshold.
	if !contains(result.Recommendations, "High data transmission detected. Verify data minimization practices.") {
		t.Errorf("expected high transmission recommendation, got %v", result.Recommendations)
	}
}

func TestEngine_WithRealForest(t *testing.T) {
	forest := anomaly.New(anomaly.DefaultConfig())
	training := make([][]float64, 100)
	for i := range training {
		training[i] = []float64{
			float64(i%10) / 10, float64(i%7) / 7, float64(i%5) / 5, float64(i%3) / 3,
			float64(i % 2), float64((i + 1) % 2), 0, 0,
		}
	}
	if err := forest.Fit(training); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	e := newTestEngine(forest)

	// An empty payload yields the zero vector; the affine transform keeps
	// the verdict near the neutral baseline.
	result, err := e.Analyze(models.EventData{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.RiskScore < 30 || result.RiskScore > 70 {
		t.Errorf("zero vector risk %v far from neutral baseline", result.RiskScore)
	}
	if len(result.ComplianceViolations) != 0 {
		t.Errorf("expected no violations for empty payload, got %v", result.ComplianceViolations)
	}

	// An extreme payload is flagged as an outlier.
	extreme := models.EventData{}
	for _, key := range []string{
		"network_bytes_sent", "network_bytes_received", "api_calls_count",
		"file_access_count", "location_access", "contacts_access",
		"camera_access", "suspicious_patterns",
	} {
		extreme[key] = float64(1e6)
	}
	extreme["location_consent"] = true
	extreme["contacts_consent"] = true

	result, err = e.Analyze(extreme)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.AnomalyDetected {
		t.Error("expected extreme payload to be detected as anomalous")
	}

	// Determinism across repeated calls.
	again, _ := e.Analyze(extreme)
	if result.RiskScore != again.RiskScore || result.AnomalyScore != again.AnomalyScore {
		t.Errorf("repeated analysis differs: %v vs %v", result, again)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
