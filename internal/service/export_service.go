package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
	"github.com/baggao-mto/citation-api/pkg/export"
)

// csvHeaders is the reporting column order. Stable: downstream
// spreadsheets key on these names.
var csvHeaders = []string{
	"Ticket Number", "Apprehension Date/Time", "Last Name", "First Name",
	"Middle Initial", "Suffix", "Date of Birth", "Age", "Zone", "Barangay",
	"Municipality", "Province", "License Number", "License Type",
	"Plate/MV/Engine/Chassis No", "Vehicle Type", "Vehicle Description",
	"Place of Apprehension", "Violations", "Total Fine", "Status",
	"Remarks", "Created At",
}

type exportCitationSource interface {
	ExportRows(ctx context.Context, filter models.CitationFilter) ([]models.CitationExportRow, error)
	Get(ctx context.Context, id string) (*models.CitationDetail, error)
}

// ExportService renders citations into CSV reports and printable
// ticket PDFs.
type ExportService struct {
	citations exportCitationSource
	csv       *export.CSVExporter
	pdf       *export.TicketPDF
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(citations exportCitationSource, csv *export.CSVExporter, pdf *export.TicketPDF, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &ExportService{citations: citations, csv: csv, pdf: pdf, logger: logger}
}

// CitationsCSV renders the filtered citations as a CSV report, one row
// per citation with violation names joined by "; ". Returns the bytes
// and a dated filename.
func (s *ExportService) CitationsCSV(ctx context.Context, filter models.CitationFilter) ([]byte, string, error) {
	rows, err := s.citations.ExportRows(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{Headers: csvHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Ticket Number":              row.TicketNumber,
			"Apprehension Date/Time":     row.ApprehensionDateTime.Format("2006-01-02 15:04"),
			"Last Name":                  row.LastName,
			"First Name":                 row.FirstName,
			"Middle Initial":             deref(row.MiddleInitial),
			"Suffix":                     deref(row.Suffix),
			"Date of Birth":              formatDate(row.DateOfBirth),
			"Age":                        formatInt(row.Age),
			"Zone":                       deref(row.Zone),
			"Barangay":                   row.Barangay,
			"Municipality":               row.Municipality,
			"Province":                   row.Province,
			"License Number":             deref(row.LicenseNumber),
			"License Type":               deref(row.LicenseType),
			"Plate/MV/Engine/Chassis No": row.PlateMVEngineChassisNo,
			"Vehicle Type":               deref(row.VehicleType),
			"Vehicle Description":        deref(row.VehicleDescription),
			"Place of Apprehension":      row.PlaceOfApprehension,
			"Violations":                 deref(row.Violations),
			"Total Fine":                 fmt.Sprintf("%.2f", row.TotalFine),
			"Status":                     string(row.Status),
			"Remarks":                    deref(row.Remarks),
			"Created At":                 row.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render citation export")
	}

	filename := fmt.Sprintf("citations_export_%s.csv", time.Now().Format("2006-01-02"))
	return data, filename, nil
}

// Ticket renders one citation as a printable PDF ticket.
func (s *ExportService) Ticket(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.citations.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	lines := make([]export.TicketLine, 0, len(detail.Violations))
	for _, v := range detail.Violations {
		lines = append(lines, export.TicketLine{
			ViolationName: v.ViolationName,
			OffenseCount:  v.OffenseCount,
			FineAmount:    v.FineAmount,
		})
	}

	vehicleType := ""
	if detail.Vehicle != nil {
		vehicleType = detail.Vehicle.VehicleType
	}
	if detail.VehicleDescription != nil && *detail.VehicleDescription != "" {
		vehicleType = strings.TrimSpace(vehicleType + " - " + *detail.VehicleDescription)
	}

	data := export.TicketData{
		TicketNumber:         detail.TicketNumber,
		DriverName:           driverDisplayName(&detail.Citation),
		Address:              driverAddress(&detail.Citation),
		LicenseNumber:        deref(detail.LicenseNumber),
		VehicleType:          vehicleType,
		PlateOrEngineNo:      detail.PlateMVEngineChassisNo,
		ApprehensionDateTime: detail.ApprehensionDateTime.Format("2006-01-02 15:04"),
		PlaceOfApprehension:  detail.PlaceOfApprehension,
		Lines:                lines,
		TotalFine:            detail.TotalFine,
		Status:               string(detail.Status),
	}

	pdfBytes, err := s.pdf.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ticket")
	}

	filename := fmt.Sprintf("ticket_%s.pdf", detail.TicketNumber)
	return pdfBytes, filename, nil
}

func driverDisplayName(c *models.Citation) string {
	parts := []string{c.FirstName}
	if c.MiddleInitial != nil && *c.MiddleInitial != "" {
		parts = append(parts, *c.MiddleInitial+".")
	}
	parts = append(parts, c.LastName)
	if c.Suffix != nil && *c.Suffix != "" {
		parts = append(parts, *c.Suffix)
	}
	return strings.Join(parts, " ")
}

func driverAddress(c *models.Citation) string {
	var parts []string
	if c.Zone != nil && *c.Zone != "" {
		parts = append(parts, *c.Zone)
	}
	parts = append(parts, c.Barangay, c.Municipality, c.Province)
	return strings.Join(parts, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", n)
}
