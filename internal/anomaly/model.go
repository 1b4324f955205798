package anomaly

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
)

// Save serializes the fitted forest for artifact persistence.
func (f *Forest) Save() ([]byte, error) {
	if !f.Fitted() {
		return nil, ErrNotFitted
	}
	return json.Marshal(f)
}

// Load restores a fitted forest from a serialized artifact.
func (f *Forest) Load(data []byte) error {
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("decoding model artifact: %w", err)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("model artifact contains no trees")
	}
	f.Config.applyDefaults()
	f.fitted = true
	return nil
}

// TrainOptions controls provisional training when no artifact exists.
type TrainOptions struct {
	// Samples is the number of synthetic rows to fit on.
	Samples int
	// Dimensions is the feature vector width.
	Dimensions int
}

// LoadOrTrain loads a persisted model artifact from path. When the artifact
// does not exist, a forest is fitted on a seeded synthetic dataset and the
// result is persisted for reuse. Real deployments replace the artifact with
// one fitted on historical telemetry; the engine only depends on the fitted
// forest, not on how it was produced.
func LoadOrTrain(path string, cfg Config, opts TrainOptions, logger *slog.Logger) (*Forest, error) {
	if logger == nil {
		logger = slog.Default()
	}

	forest := New(cfg)

	data, err := os.ReadFile(path)
	if err == nil {
		if err := forest.Load(data); err != nil {
			return nil, fmt.Errorf("loading model from %s: %w", path, err)
		}
		logger.Info("anomaly model loaded", "path", path, "trees", len(forest.Trees))
		return forest, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	if opts.Samples <= 0 {
		opts.Samples = 100
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 8
	}

	rng := rand.New(rand.NewSource(forest.Config.Seed))
	training := make([][]float64, opts.Samples)
	for i := range training {
		row := make([]float64, opts.Dimensions)
		for j := range row {
			row[j] = rng.Float64()
		}
		training[i] = row
	}

	if err := forest.Fit(training); err != nil {
		return nil, fmt.Errorf("fitting provisional model: %w", err)
	}

	artifact, err := forest.Save()
	if err != nil {
		return nil, fmt.Errorf("serializing model: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating model directory: %w", err)
	}
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		return nil, fmt.Errorf("persisting model artifact: %w", err)
	}

	logger.Info("anomaly model trained on provisional data",
		"path", path,
		"samples", opts.Samples,
		"trees", len(forest.Trees),
		"contamination", forest.Config.Contamination)

	return forest, nil
}
