package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TicketLine is one charged violation printed on the ticket.
type TicketLine struct {
	ViolationName string
	OffenseCount  int
	FineAmount    float64
}

// TicketData carries everything printed on a citation ticket.
type TicketData struct {
	TicketNumber         string
	DriverName           string
	Address              string
	LicenseNumber        string
	VehicleType          string
	PlateOrEngineNo      string
	ApprehensionDateTime string
	PlaceOfApprehension  string
	Lines                []TicketLine
	TotalFine            float64
	Status               string
}

// TicketPDF renders a single citation into a printable A5 ticket.
type TicketPDF struct {
	Municipality string
	Province     string
}

// NewTicketPDF builds a ticket renderer with the issuing office names.
func NewTicketPDF(municipality, province string) *TicketPDF {
	return &TicketPDF{Municipality: municipality, Province: province}
}

// Render produces the PDF bytes for one ticket.
func (t *TicketPDF) Render(data TicketData) ([]byte, error) {
	if data.TicketNumber == "" {
		return nil, fmt.Errorf("ticket requires a ticket number")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, strings.ToUpper(fmt.Sprintf("Municipality of %s, %s", t.Municipality, t.Province)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "TRAFFIC CITATION TICKET", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "No. "+data.TicketNumber, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(38, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, value, "B", 1, "L", false, 0, "")
	}

	field("Driver", data.DriverName)
	field("Address", data.Address)
	field("License No.", data.LicenseNumber)
	field("Vehicle Type", data.VehicleType)
	field("Plate/MV/Engine No.", data.PlateOrEngineNo)
	field("Date/Time", data.ApprehensionDateTime)
	field("Place", data.PlaceOfApprehension)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(74, 6, "VIOLATION", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, "OFFENSE", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "FINE", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 8)
	for _, line := range data.Lines {
		pdf.CellFormat(74, 6, line.ViolationName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, ordinal(line.OffenseCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", line.FineAmount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(94, 7, "TOTAL FINE", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", data.TotalFine), "1", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Status: "+strings.ToUpper(data.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Pay at the Municipal Treasurer's Office within 72 hours.", "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	default:
		return "3rd+"
	}
}
