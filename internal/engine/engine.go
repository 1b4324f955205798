// Package engine turns raw event payloads into risk verdicts by fusing the
// anomaly model's output with the compliance rule set.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nelssec/appguard/internal/compliance"
	"github.com/nelssec/appguard/internal/features"
	"github.com/nelssec/appguard/internal/models"
)

// ErrModelUnavailable is returned when no anomaly model is attached. The
// engine refuses to produce a verdict rather than defaulting the risk score.
var ErrModelUnavailable = errors.New("anomaly model unavailable")

// Scorer is the capability the engine requires from the anomaly model: a
// decision-function value (more negative = more anomalous) and an outlier
// verdict under the model's fitted contamination threshold.
type Scorer interface {
	Score(v []float64) (float64, error)
	Classify(v []float64) (bool, error)
}

// Config holds the risk fusion policy constants. The baseline/multiplier
// transform is uncalibrated policy inherited from the original deployment:
// scores saturate at the bounds for large deviations, and the neutral
// baseline assumes the model's decision values are roughly zero-centered
// for typical events.
type Config struct {
	// RiskBaseline is the risk assigned to a zero anomaly score.
	RiskBaseline float64
	// RiskMultiplier scales the anomaly score before clamping.
	RiskMultiplier float64
	// HighTransmissionBytes triggers the data-minimization recommendation.
	// It is intentionally lower than the compliance violation threshold.
	HighTransmissionBytes float64
}

// DefaultConfig returns the standard fusion constants.
func DefaultConfig() Config {
	return Config{
		RiskBaseline:          50,
		RiskMultiplier:        10,
		HighTransmissionBytes: 500_000,
	}
}

func (c *Config) applyDefaults() {
	if c.RiskBaseline == 0 {
		c.RiskBaseline = 50
	}
	if c.RiskMultiplier == 0 {
		c.RiskMultiplier = 10
	}
	if c.HighTransmissionBytes == 0 {
		c.HighTransmissionBytes = 500_000
	}
}

// Engine analyzes events. It holds no mutable state; the scorer must be
// safe for concurrent reads, which a fitted forest is.
type Engine struct {
	scorer  Scorer
	checker *compliance.Checker
	cfg     Config
	logger  *slog.Logger
}

// New creates an engine. The scorer is injected; passing nil produces an
// engine that fails closed on every call.
func New(scorer Scorer, checker *compliance.Checker, cfg Config, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	if checker == nil {
		checker = compliance.NewChecker(compliance.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		scorer:  scorer,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Ready reports whether the engine can produce verdicts.
func (e *Engine) Ready() bool {
	return e.scorer != nil
}

// Analyze produces the verdict for one event payload. The payload is read
// only; the result is independent of any other call.
func (e *Engine) Analyze(data models.EventData) (*models.AnalysisResult, error) {
	if e.scorer == nil {
		return nil, ErrModelUnavailable
	}

	vector := features.Extract(data)

	score, err := e.scorer.Score(vector.Slice())
	if err != nil {
		return nil, fmt.Errorf("scoring event: %w", err)
	}
	isOutlier, err := e.scorer.Classify(vector.Slice())
	if err != nil {
		return nil, fmt.Errorf("classifying event: %w", err)
	}

	violations := e.checker.Check(data)
	if violations == nil {
		violations = []string{}
	}

	return &models.AnalysisResult{
		RiskScore:            e.riskScore(score),
		AnomalyScore:         score,
		AnomalyDetected:      isOutlier,
		ComplianceViolations: violations,
		Recommendations:      e.recommendations(isOutlier, violations, data),
	}, nil
}

// riskScore maps the model's decision value onto the bounded [0, 100]
// range shown to operators.
func (e *Engine) riskScore(anomalyScore float64) float64 {
	risk := e.cfg.RiskBaseline + anomalyScore*e.cfg.RiskMultiplier
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

// recommendations synthesizes remediation guidance. Checks run in fixed
// order and fire independently.
func (e *Engine) recommendations(isOutlier bool, violations []string, data models.EventData) []string {
	recs := []string{}

	if isOutlier {
		recs = append(recs, "Anomalous behavior detected. Review app permissions and network activity.")
	}

	if len(violations) > 0 {
		recs = append(recs, "Compliance violations found. Ensure proper user consent mechanisms.")
	}

	if features.Numeric(data["network_bytes_sent"]) > e.cfg.HighTransmissionBytes {
		recs = append(recs, "High data transmission detected. Verify data minimization practices.")
	}

	if compliance.EndpointCount(data["unknown_endpoints"]) > 0 {
		recs = append(recs, "Unknown API endpoints detected. Review third-party SDK integrations.")
	}

	return recs
}
