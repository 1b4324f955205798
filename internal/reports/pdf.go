// Package reports renders PDF summaries of monitored fleet activity.
package reports

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type document struct {
	pdf   *gofpdf.Fpdf
	title string
}

func newDocument(title string) *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)

	d := &document{pdf: pdf, title: title}
	d.addHeader()
	return d
}

func (d *document) addHeader() {
	d.pdf.AddPage()

	d.pdf.SetFont("Arial", "B", 20)
	d.pdf.SetTextColor(33, 37, 41)
	d.pdf.CellFormat(0, 15, d.title, "", 1, "C", false, 0, "")

	d.pdf.SetFont("Arial", "", 10)
	d.pdf.SetTextColor(108, 117, 125)
	d.pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", time.Now().Format("January 2, 2006 3:04 PM")), "", 1, "C", false, 0, "")

	d.pdf.Ln(10)
}

func (d *document) addSection(title string) {
	d.pdf.SetFont("Arial", "B", 14)
	d.pdf.SetTextColor(33, 37, 41)
	d.pdf.SetFillColor(240, 240, 240)
	d.pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	d.pdf.Ln(5)
}

func (d *document) addParagraph(text string) {
	d.pdf.SetFont("Arial", "", 10)
	d.pdf.SetTextColor(33, 37, 41)
	d.pdf.MultiCell(0, 6, text, "", "L", false)
	d.pdf.Ln(5)
}

func (d *document) addTable(headers []string, rows [][]string) {
	pageWidth := 180.0 // A4 width minus margins
	colWidth := pageWidth / float64(len(headers))

	d.pdf.SetFont("Arial", "B", 9)
	d.pdf.SetFillColor(52, 58, 64)
	d.pdf.SetTextColor(255, 255, 255)
	for _, h := range headers {
		d.pdf.CellFormat(colWidth, 8, h, "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Arial", "", 9)
	d.pdf.SetTextColor(33, 37, 41)
	fill := false
	for _, row := range rows {
		if fill {
			d.pdf.SetFillColor(248, 249, 250)
		} else {
			d.pdf.SetFillColor(255, 255, 255)
		}
		for _, cell := range row {
			if len(cell) > 25 {
				cell = cell[:22] + "..."
			}
			d.pdf.CellFormat(colWidth, 7, cell, "1", 0, "L", true, 0, "")
		}
		d.pdf.Ln(-1)
		fill = !fill
	}

	d.pdf.Ln(5)
}

// addKeyValues prints label/value pairs in insertion order.
func (d *document) addKeyValues(pairs [][2]string) {
	d.pdf.SetFont("Arial", "", 10)

	for _, p := range pairs {
		d.pdf.SetTextColor(108, 117, 125)
		d.pdf.CellFormat(60, 7, p[0]+":", "", 0, "L", false, 0, "")

		d.pdf.SetFont("Arial", "B", 10)
		d.pdf.SetTextColor(33, 37, 41)
		d.pdf.CellFormat(0, 7, p[1], "", 1, "L", false, 0, "")
		d.pdf.SetFont("Arial", "", 10)
	}

	d.pdf.Ln(5)
}

// addBarChart draws a horizontal bar per label, scaled to the largest value.
// Labels are sorted so repeated renders of the same data are identical.
func (d *document) addBarChart(data map[string]int) {
	max := 0
	labels := make([]string, 0, len(data))
	for label, v := range data {
		labels = append(labels, label)
		if v > max {
			max = v
		}
	}
	sort.Strings(labels)
	if max == 0 {
		max = 1
	}

	barMaxWidth := 100.0

	for _, label := range labels {
		value := data[label]

		d.pdf.SetFont("Arial", "", 9)
		d.pdf.SetTextColor(108, 117, 125)
		d.pdf.CellFormat(40, 6, label, "", 0, "L", false, 0, "")

		barWidth := float64(value) / float64(max) * barMaxWidth
		d.pdf.SetFillColor(66, 133, 244) // Blue
		d.pdf.CellFormat(barWidth, 6, "", "", 0, "L", true, 0, "")

		d.pdf.SetTextColor(33, 37, 41)
		d.pdf.CellFormat(30, 6, fmt.Sprintf(" %d", value), "", 1, "L", false, 0, "")
	}

	d.pdf.Ln(5)
}

func (d *document) output() ([]byte, error) {
	d.pdf.SetFooterFunc(func() {
		d.pdf.SetY(-15)
		d.pdf.SetFont("Arial", "I", 8)
		d.pdf.SetTextColor(128, 128, 128)
		d.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", d.pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("generating PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// riskColor maps a 0-100 risk score onto the traffic-light palette used
// in the top-events table.
func riskColor(score float64) (int, int, int) {
	switch {
	case score >= 90:
		return 220, 53, 69 // red
	case score >= 70:
		return 253, 126, 20 // orange
	case score >= 50:
		return 255, 193, 7 // yellow
	default:
		return 40, 167, 69 // green
	}
}
