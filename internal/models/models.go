package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StringArray is an alias for pq.StringArray to handle PostgreSQL arrays
type StringArray = pq.StringArray

// EventData is the open-ended payload a mobile SDK attaches to an event.
// Values are arbitrary JSON scalars, arrays, or nested objects.
type EventData map[string]interface{}

func (d EventData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *EventData) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, d)
}

// EventPayload is the inbound submission from a device. Identity fields
// default to "unknown" when absent.
type EventPayload struct {
	DeviceID  string    `json:"device_id"`
	AppID     string    `json:"app_id"`
	EventType string    `json:"event_type"`
	Data      EventData `json:"data"`
}

// Normalize applies the default identity values.
func (p *EventPayload) Normalize() {
	if p.DeviceID == "" {
		p.DeviceID = "unknown"
	}
	if p.AppID == "" {
		p.AppID = "unknown"
	}
	if p.EventType == "" {
		p.EventType = "unknown"
	}
	if p.Data == nil {
		p.Data = EventData{}
	}
}

// AnalysisResult is the engine's verdict for a single event.
type AnalysisResult struct {
	RiskScore            float64  `json:"risk_score"`
	AnomalyScore         float64  `json:"anomaly_score"`
	AnomalyDetected      bool     `json:"anomaly_detected"`
	ComplianceViolations []string `json:"compliance_violations"`
	Recommendations      []string `json:"recommendations"`
}

// SecurityEvent is a persisted event together with its verdict.
type SecurityEvent struct {
	ID                   uuid.UUID   `json:"id" db:"id"`
	DeviceID             string      `json:"device_id" db:"device_id"`
	AppID                string      `json:"app_id" db:"app_id"`
	EventType            string      `json:"event_type" db:"event_type"`
	Data                 EventData   `json:"data" db:"data"`
	RiskScore            float64     `json:"risk_score" db:"risk_score"`
	AnomalyScore         float64     `json:"anomaly_score" db:"anomaly_score"`
	AnomalyDetected      bool        `json:"anomaly_detected" db:"anomaly_detected"`
	ComplianceViolations StringArray `json:"compliance_violations" db:"compliance_violations"`
	Recommendations      StringArray `json:"recommendations" db:"recommendations"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
}

// EventStats aggregates stored events for the dashboard.
type EventStats struct {
	TotalEvents      int            `json:"total_events"`
	TotalAnomalies   int            `json:"total_anomalies"`
	TotalViolations  int            `json:"total_violations"`
	AverageRiskScore float64        `json:"average_risk_score"`
	EventsByType     map[string]int `json:"events_by_type"`
}
