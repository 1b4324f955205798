package anomaly

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Handle holds the process-wide model instance. Scoring always goes through
// the current forest; Reload swaps in a new artifact atomically so readers
// never observe a partially loaded model.
type Handle struct {
	current atomic.Pointer[Forest]
	path    string
	logger  *slog.Logger
}

// NewHandle wraps a fitted forest loaded from path.
func NewHandle(forest *Forest, path string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{path: path, logger: logger}
	h.current.Store(forest)
	return h
}

// Score returns the decision-function value from the current model.
func (h *Handle) Score(v []float64) (float64, error) {
	return h.current.Load().Score(v)
}

// Classify reports the outlier verdict from the current model.
func (h *Handle) Classify(v []float64) (bool, error) {
	return h.current.Load().Classify(v)
}

// Reload reads the artifact from disk and swaps it in. The previous model
// keeps serving in-flight calls; a failed reload leaves it in place.
func (h *Handle) Reload() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("reading model artifact: %w", err)
	}

	forest := New(h.current.Load().Config)
	if err := forest.Load(data); err != nil {
		return fmt.Errorf("reloading model: %w", err)
	}

	h.current.Store(forest)
	h.logger.Info("anomaly model reloaded", "path", h.path, "trees", len(forest.Trees))
	return nil
}
