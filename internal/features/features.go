// Package features maps loosely-typed event payloads into the fixed numeric
// vector the anomaly model consumes.
package features

import (
	"encoding/json"
	"strconv"

	"github.com/nelssec/appguard/internal/models"
)

// Dimensions is the width of the feature vector.
const Dimensions = 8

// Vector is one event encoded for model inference.
type Vector [Dimensions]float64

// Keys lists the payload keys backing each vector slot, in slot order.
var Keys = [Dimensions]string{
	"network_bytes_sent",
	"network_bytes_received",
	"api_calls_count",
	"file_access_count",
	"location_access",
	"contacts_access",
	"camera_access",
	"suspicious_patterns",
}

// Extract builds the feature vector for an event payload. Extraction is
// total: absent keys and values that cannot be read as numbers become 0.
func Extract(data models.EventData) Vector {
	var v Vector
	for i, key := range Keys {
		v[i] = Numeric(data[key])
	}
	return v
}

// Slice returns the vector as a []float64 row for model inference.
func (v Vector) Slice() []float64 {
	out := make([]float64, Dimensions)
	copy(out, v[:])
	return out
}

// Numeric coerces an arbitrary JSON value to a float64, returning 0 for
// anything that has no numeric reading.
func Numeric(value interface{}) float64 {
	switch n := value.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
