package reports

import (
	"bytes"
	"testing"

	"github.com/nelssec/appguard/internal/models"
)

func TestSummaryPDF(t *testing.T) {
	stats := &models.EventStats{
		TotalEvents:      42,
		TotalAnomalies:   5,
		TotalViolations:  3,
		AverageRiskScore: 51.7,
		EventsByType: map[string]int{
			"network_activity": 30,
			"data_access":      12,
		},
	}
	events := []models.SecurityEvent{
		{DeviceID: "device-001", AppID: "com.example.app", EventType: "network_activity", RiskScore: 92.4, AnomalyDetected: true},
		{DeviceID: "device-002", AppID: "com.example.other", EventType: "data_access", RiskScore: 48.0},
	}

	pdf, err := SummaryPDF(stats, events)
	if err != nil {
		t.Fatalf("SummaryPDF failed: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("output does not look like a PDF document")
	}
	if len(pdf) < 1000 {
		t.Errorf("suspiciously small PDF: %d bytes", len(pdf))
	}
}

func TestSummaryPDF_EmptyStats(t *testing.T) {
	pdf, err := SummaryPDF(&models.EventStats{}, nil)
	if err != nil {
		t.Fatalf("SummaryPDF failed on empty stats: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("output does not look like a PDF document")
	}
}
