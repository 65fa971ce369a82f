package models

import "time"

// CitationStatus is the payment/contest lifecycle state of a citation.
type CitationStatus string

const (
	StatusPending   CitationStatus = "pending"
	StatusPaid      CitationStatus = "paid"
	StatusContested CitationStatus = "contested"
	StatusDismissed CitationStatus = "dismissed"
	StatusVoid      CitationStatus = "void"
)

// ValidStatus reports whether s is one of the five recognized statuses.
// Any recognized status is a legal target from any current status; the
// lifecycle deliberately permits manual corrections such as paid back to
// pending.
func ValidStatus(s CitationStatus) bool {
	switch s {
	case StatusPending, StatusPaid, StatusContested, StatusDismissed, StatusVoid:
		return true
	}
	return false
}

// VehicleTypes lists the accepted vehicle classifications. "Other"
// requires a free-text qualifier.
var VehicleTypes = []string{"Motorcycle", "Tricycle", "SUV", "Van", "Jeep", "Truck", "Kulong Kulong", "Other"}

// ValidVehicleType reports whether t is an accepted classification.
func ValidVehicleType(t string) bool {
	for _, v := range VehicleTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Citation is the central record of one apprehension event. Driver
// fields are snapshotted onto the citation at submission time so that
// later edits to the driver record never alter an issued citation.
type Citation struct {
	ID            string     `db:"id" json:"id"`
	TicketNumber  string     `db:"ticket_number" json:"ticket_number"`
	DriverID      *string    `db:"driver_id" json:"driver_id,omitempty"`
	LastName      string     `db:"last_name" json:"last_name"`
	FirstName     string     `db:"first_name" json:"first_name"`
	MiddleInitial *string    `db:"middle_initial" json:"middle_initial,omitempty"`
	Suffix        *string    `db:"suffix" json:"suffix,omitempty"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Age           *int       `db:"age" json:"age,omitempty"`
	Zone          *string    `db:"zone" json:"zone,omitempty"`
	Barangay      string     `db:"barangay" json:"barangay"`
	Municipality  string     `db:"municipality" json:"municipality"`
	Province      string     `db:"province" json:"province"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	LicenseType   *string    `db:"license_type" json:"license_type,omitempty"`

	PlateMVEngineChassisNo string  `db:"plate_mv_engine_chassis_no" json:"plate_mv_engine_chassis_no"`
	VehicleDescription     *string `db:"vehicle_description" json:"vehicle_description,omitempty"`

	ApprehensionDateTime time.Time      `db:"apprehension_datetime" json:"apprehension_datetime"`
	PlaceOfApprehension  string         `db:"place_of_apprehension" json:"place_of_apprehension"`
	Remarks              *string        `db:"remarks" json:"remarks,omitempty"`
	Status               CitationStatus `db:"status" json:"status"`
	TotalFine            float64        `db:"total_fine" json:"total_fine"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// CitationVehicle is the vehicle descriptor attached to a citation,
// one per citation.
type CitationVehicle struct {
	ID          string    `db:"id" json:"id"`
	CitationID  string    `db:"citation_id" json:"citation_id"`
	VehicleType string    `db:"vehicle_type" json:"vehicle_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CitationDetail bundles a citation with its vehicle and line items.
type CitationDetail struct {
	Citation
	Vehicle    *CitationVehicle  `json:"vehicle,omitempty"`
	Violations []ViolationDetail `json:"violations"`
}

// CitationFilter captures search criteria for listing citations.
type CitationFilter struct {
	Search    string
	Status    *CitationStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CitationExportRow is the one-row-per-citation reporting projection:
// violation names concatenated, vehicle joined in.
type CitationExportRow struct {
	TicketNumber           string         `db:"ticket_number"`
	ApprehensionDateTime   time.Time      `db:"apprehension_datetime"`
	LastName               string         `db:"last_name"`
	FirstName              string         `db:"first_name"`
	MiddleInitial          *string        `db:"middle_initial"`
	Suffix                 *string        `db:"suffix"`
	DateOfBirth            *time.Time     `db:"date_of_birth"`
	Age                    *int           `db:"age"`
	Zone                   *string        `db:"zone"`
	Barangay               string         `db:"barangay"`
	Municipality           string         `db:"municipality"`
	Province               string         `db:"province"`
	LicenseNumber          *string        `db:"license_number"`
	LicenseType            *string        `db:"license_type"`
	PlateMVEngineChassisNo string         `db:"plate_mv_engine_chassis_no"`
	VehicleType            *string        `db:"vehicle_type"`
	VehicleDescription     *string        `db:"vehicle_description"`
	PlaceOfApprehension    string         `db:"place_of_apprehension"`
	Violations             *string        `db:"violations"`
	TotalFine              float64        `db:"total_fine"`
	Status                 CitationStatus `db:"status"`
	Remarks                *string        `db:"remarks"`
	CreatedAt              time.Time      `db:"created_at"`
}

// SystemMetrics is the aggregate snapshot served by the metrics summary
// endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
