package reports

import (
	"fmt"

	"github.com/nelssec/appguard/internal/models"
)

// SummaryPDF renders the fleet security summary: aggregate counters,
// event volume by type, and the highest-risk events on record.
func SummaryPDF(stats *models.EventStats, topEvents []models.SecurityEvent) ([]byte, error) {
	doc := newDocument("Mobile Fleet Security Summary")

	doc.addSection("Overview")
	doc.addParagraph("This report summarizes security events reported by monitored mobile applications, including anomalies flagged by the runtime detector and compliance violations found during analysis.")

	doc.addKeyValues([][2]string{
		{"Total Events", fmt.Sprintf("%d", stats.TotalEvents)},
		{"Anomalies Detected", fmt.Sprintf("%d", stats.TotalAnomalies)},
		{"Compliance Violations", fmt.Sprintf("%d", stats.TotalViolations)},
		{"Average Risk Score", fmt.Sprintf("%.1f", stats.AverageRiskScore)},
	})

	if len(stats.EventsByType) > 0 {
		doc.addSection("Events by Type")
		doc.addBarChart(stats.EventsByType)
	}

	if len(topEvents) > 0 {
		doc.addSection("Highest Risk Events")
		headers := []string{"Device", "App", "Type", "Risk", "Anomaly"}
		rows := make([][]string, 0, len(topEvents))
		for _, ev := range topEvents {
			anomaly := "no"
			if ev.AnomalyDetected {
				anomaly = "yes"
			}
			rows = append(rows, []string{
				ev.DeviceID,
				ev.AppID,
				ev.EventType,
				fmt.Sprintf("%.1f", ev.RiskScore),
				anomaly,
			})
		}
		doc.addTable(headers, rows)

		// Risk legend under the table.
		doc.pdf.SetFont("Arial", "B", 9)
		for _, band := range []struct {
			label string
			score float64
		}{
			{"low", 0}, {"medium", 50}, {"high", 70}, {"critical", 90},
		} {
			r, g, b := riskColor(band.score)
			doc.pdf.SetFillColor(r, g, b)
			doc.pdf.SetTextColor(255, 255, 255)
			doc.pdf.CellFormat(22, 6, band.label, "", 0, "C", true, 0, "")
			doc.pdf.CellFormat(3, 6, "", "", 0, "C", false, 0, "")
		}
		doc.pdf.Ln(10)
	}

	return doc.output()
}
