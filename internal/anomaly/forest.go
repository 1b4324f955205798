// Package anomaly implements unsupervised outlier detection for event
// feature vectors using an isolation forest.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	// ErrNotFitted is returned when scoring is attempted before Fit.
	ErrNotFitted = errors.New("forest not fitted")
	// ErrNoData is returned when Fit receives an empty dataset.
	ErrNoData = errors.New("no training data")
)

// Config controls forest construction.
type Config struct {
	// Trees is the ensemble size.
	Trees int
	// SubsampleSize is the number of training rows each tree isolates.
	SubsampleSize int
	// Contamination is the expected proportion of outliers in the
	// training population; it fixes the decision threshold at fit time.
	Contamination float64
	// Seed makes tree construction reproducible.
	Seed int64
}

// DefaultConfig returns the construction parameters used when none are
// configured.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SubsampleSize: 256,
		Contamination: 0.1,
		Seed:          42,
	}
}

func (c *Config) applyDefaults() {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.SubsampleSize <= 0 {
		c.SubsampleSize = 256
	}
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		c.Contamination = 0.1
	}
}

// node is one split in an isolation tree. Leaves have Feature == -1 and
// carry the number of training rows that reached them.
type node struct {
	Feature    int     `json:"f"`
	SplitValue float64 `json:"v"`
	Left       *node   `json:"l,omitempty"`
	Right      *node   `json:"r,omitempty"`
	Size       int     `json:"n"`
}

// Forest is a fitted isolation forest. A fitted forest is immutable and
// safe for concurrent scoring.
type Forest struct {
	Config     Config  `json:"config"`
	Trees      []*node `json:"trees"`
	Dimensions int     `json:"dimensions"`
	// Offset shifts raw sample scores so the decision function is
	// negative for the contamination fraction of the training set.
	Offset float64 `json:"offset"`

	fitted bool
}

// New creates an unfitted forest.
func New(cfg Config) *Forest {
	cfg.applyDefaults()
	return &Forest{Config: cfg}
}

// Fit builds the ensemble over the given samples and fixes the decision
// threshold from the configured contamination rate.
func (f *Forest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return ErrNoData
	}
	dims := len(data[0])
	for _, row := range data {
		if len(row) != dims {
			return fmt.Errorf("inconsistent row width: %d vs %d", len(row), dims)
		}
	}

	psi := f.Config.SubsampleSize
	if psi > len(data) {
		psi = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(psi))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	rng := rand.New(rand.NewSource(f.Config.Seed))

	f.Dimensions = dims
	f.Trees = make([]*node, f.Config.Trees)
	for i := range f.Trees {
		sample := subsample(data, psi, rng)
		f.Trees[i] = buildTree(sample, 0, heightLimit, rng)
	}
	f.fitted = true

	// Threshold: the contamination quantile of training sample scores.
	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.sampleScore(row)
	}
	sort.Float64s(scores)
	f.Offset = quantile(scores, f.Config.Contamination)

	return nil
}

// Fitted reports whether the forest has been trained.
func (f *Forest) Fitted() bool {
	return f.fitted && len(f.Trees) > 0
}

// Score returns the decision-function value for a vector. Values below
// zero indicate outliers under the fitted contamination threshold; typical
// inliers score slightly above zero.
func (f *Forest) Score(v []float64) (float64, error) {
	if !f.Fitted() {
		return 0, ErrNotFitted
	}
	return f.sampleScore(v) - f.Offset, nil
}

// Classify reports whether a vector falls in the outlier partition.
func (f *Forest) Classify(v []float64) (bool, error) {
	score, err := f.Score(v)
	if err != nil {
		return false, err
	}
	return score < 0, nil
}

// sampleScore is the negated anomaly score: -2^(-E[h(x)]/c(psi)).
// It lies in [-1, 0); values near -1 are strong outliers.
func (f *Forest) sampleScore(v []float64) float64 {
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, v, 0)
	}
	avgPath := total / float64(len(f.Trees))

	psi := f.Config.SubsampleSize
	return -math.Pow(2, -avgPath/averagePathLength(psi))
}

func subsample(data [][]float64, psi int, rng *rand.Rand) [][]float64 {
	if psi >= len(data) {
		return data
	}
	idx := rng.Perm(len(data))[:psi]
	sample := make([][]float64, psi)
	for i, j := range idx {
		sample[i] = data[j]
	}
	return sample
}

func buildTree(data [][]float64, height, heightLimit int, rng *rand.Rand) *node {
	if height >= heightLimit || len(data) <= 1 {
		return &node{Feature: -1, Size: len(data)}
	}

	dims := len(data[0])
	feature := rng.Intn(dims)

	min, max := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	if min == max {
		return &node{Feature: -1, Size: len(data)}
	}

	split := min + rng.Float64()*(max-min)

	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		Feature:    feature,
		SplitValue: split,
		Left:       buildTree(left, height+1, heightLimit, rng),
		Right:      buildTree(right, height+1, heightLimit, rng),
		Size:       len(data),
	}
}

func pathLength(n *node, v []float64, depth float64) float64 {
	if n.Feature < 0 {
		return depth + averagePathLength(n.Size)
	}
	feature := n.Feature
	if feature >= len(v) {
		return depth + averagePathLength(n.Size)
	}
	if v[feature] < n.SplitValue {
		return pathLength(n.Left, v, depth+1)
	}
	return pathLength(n.Right, v, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

// quantile returns the q-quantile of sorted values by linear interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
