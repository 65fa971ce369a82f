package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baggao-mto/citation-api/internal/models"
)

// CitationRepository provides database access for citation records,
// their vehicle descriptors, and their violation line items.
type CitationRepository struct {
	db *sqlx.DB
}

// NewCitationRepository creates a new instance of CitationRepository.
func NewCitationRepository(db *sqlx.DB) *CitationRepository {
	return &CitationRepository{db: db}
}

const citationColumns = `id, ticket_number, driver_id, last_name, first_name, middle_initial, suffix, date_of_birth, age, zone, barangay, municipality, province, license_number, license_type, plate_mv_engine_chassis_no, vehicle_description, apprehension_datetime, place_of_apprehension, remarks, status, total_fine, created_at, updated_at`

// MaxTicketNumber returns the highest numeric ticket number on record,
// or floor when no numeric tickets exist yet. Non-numeric tickets from
// imported paper books are ignored.
func (r *CitationRepository) MaxTicketNumber(ctx context.Context, floor int) (int, error) {
	const query = `SELECT COALESCE(MAX(ticket_number::int), $1) FROM citations WHERE ticket_number ~ '^\d+$'`
	var max int
	if err := r.db.GetContext(ctx, &max, query, floor); err != nil {
		return 0, fmt.Errorf("max ticket number: %w", err)
	}
	return max, nil
}

// TicketExists reports whether a ticket number is already taken.
func (r *CitationRepository) TicketExists(ctx context.Context, ticketNumber string) (bool, error) {
	const query = `SELECT 1 FROM citations WHERE ticket_number = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, ticketNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check ticket number: %w", err)
	}
	return true, nil
}

// CountPriorOffenses counts how many line items already charge the
// given violation type against the driver, excluding one citation (used
// when re-editing so a citation never counts against itself).
func (r *CitationRepository) CountPriorOffenses(ctx context.Context, driverID, violationTypeID, excludeCitationID string) (int, error) {
	query := `SELECT COUNT(*) FROM violations v JOIN citations c ON c.id = v.citation_id WHERE c.driver_id = $1 AND v.violation_type_id = $2`
	args := []interface{}{driverID, violationTypeID}
	if excludeCitationID != "" {
		query += " AND c.id <> $3"
		args = append(args, excludeCitationID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count prior offenses: %w", err)
	}
	return count, nil
}

// FindByID returns a citation by identifier.
func (r *CitationRepository) FindByID(ctx context.Context, id string) (*models.Citation, error) {
	query := fmt.Sprintf("SELECT %s FROM citations WHERE id = $1 LIMIT 1", citationColumns)
	var citation models.Citation
	if err := r.db.GetContext(ctx, &citation, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find citation by id: %w", err)
	}
	return &citation, nil
}

// FindByTicketNumber returns a citation by its human-facing ticket number.
func (r *CitationRepository) FindByTicketNumber(ctx context.Context, ticketNumber string) (*models.Citation, error) {
	query := fmt.Sprintf("SELECT %s FROM citations WHERE ticket_number = $1 LIMIT 1", citationColumns)
	var citation models.Citation
	if err := r.db.GetContext(ctx, &citation, query, ticketNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find citation by ticket number: %w", err)
	}
	return &citation, nil
}

// FindDetail returns a citation with its vehicle and line items.
func (r *CitationRepository) FindDetail(ctx context.Context, id string) (*models.CitationDetail, error) {
	citation, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.CitationDetail{Citation: *citation}

	const vehicleQuery = `SELECT id, citation_id, vehicle_type, created_at FROM citation_vehicles WHERE citation_id = $1 LIMIT 1`
	var vehicle models.CitationVehicle
	if err := r.db.GetContext(ctx, &vehicle, vehicleQuery, id); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("find citation vehicle: %w", err)
		}
	} else {
		detail.Vehicle = &vehicle
	}

	const violationsQuery = `SELECT v.id, v.citation_id, v.violation_type_id, v.offense_count, v.fine_amount, v.created_at, vt.name AS violation_name
		FROM violations v JOIN violation_types vt ON vt.id = v.violation_type_id
		WHERE v.citation_id = $1 ORDER BY vt.name ASC`
	if err := r.db.SelectContext(ctx, &detail.Violations, violationsQuery, id); err != nil {
		return nil, fmt.Errorf("find citation violations: %w", err)
	}

	return detail, nil
}

// List returns citations based on filters with total count. Search
// matches ticket number, driver name, license number and plate.
func (r *CitationRepository) List(ctx context.Context, filter models.CitationFilter) ([]models.Citation, int, error) {
	baseQuery := `FROM citations WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		placeholder := fmt.Sprintf("$%d", len(args)+1)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(ticket_number) LIKE %[1]s OR LOWER(last_name) LIKE %[1]s OR LOWER(first_name) LIKE %[1]s OR LOWER(COALESCE(license_number, '')) LIKE %[1]s OR LOWER(plate_mv_engine_chassis_no) LIKE %[1]s)", placeholder))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"ticket_number":         true,
		"apprehension_datetime": true,
		"last_name":             true,
		"total_fine":            true,
		"status":                true,
		"created_at":            true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", citationColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var citations []models.Citation
	if err := r.db.SelectContext(ctx, &citations, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list citations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count citations: %w", err)
	}

	return citations, total, nil
}

// Create inserts a citation, its vehicle descriptor, and its resolved
// line items in one transaction, then totals the fines inside the same
// transaction so the stored total always matches the stored lines.
func (r *CitationRepository) Create(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error {
	if citation.ID == "" {
		citation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if citation.CreatedAt.IsZero() {
		citation.CreatedAt = now
	}
	citation.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin citation create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `INSERT INTO citations (id, ticket_number, driver_id, last_name, first_name, middle_initial, suffix, date_of_birth, age, zone, barangay, municipality, province, license_number, license_type, plate_mv_engine_chassis_no, vehicle_description, apprehension_datetime, place_of_apprehension, remarks, status, total_fine, created_at, updated_at)
		VALUES (:id, :ticket_number, :driver_id, :last_name, :first_name, :middle_initial, :suffix, :date_of_birth, :age, :zone, :barangay, :municipality, :province, :license_number, :license_type, :plate_mv_engine_chassis_no, :vehicle_description, :apprehension_datetime, :place_of_apprehension, :remarks, :status, 0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, citation); err != nil {
		return fmt.Errorf("insert citation: %w", err)
	}

	if err := insertVehicle(ctx, tx, citation.ID, vehicleType); err != nil {
		return err
	}
	if err := insertViolations(ctx, tx, citation.ID, violations); err != nil {
		return err
	}
	total, err := recomputeTotal(ctx, tx, citation.ID)
	if err != nil {
		return err
	}
	citation.TotalFine = total

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citation create: %w", err)
	}
	return nil
}

// Replace rewrites a citation's fields, vehicle and line items in one
// transaction. The previous vehicle and line items are dropped and the
// new set inserted, mirroring a full form resubmission.
func (r *CitationRepository) Replace(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error {
	citation.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin citation replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const updateQuery = `UPDATE citations SET driver_id = :driver_id, last_name = :last_name, first_name = :first_name, middle_initial = :middle_initial, suffix = :suffix, date_of_birth = :date_of_birth, age = :age, zone = :zone, barangay = :barangay, municipality = :municipality, province = :province, license_number = :license_number, license_type = :license_type, plate_mv_engine_chassis_no = :plate_mv_engine_chassis_no, vehicle_description = :vehicle_description, apprehension_datetime = :apprehension_datetime, place_of_apprehension = :place_of_apprehension, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, updateQuery, citation)
	if err != nil {
		return fmt.Errorf("update citation: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM citation_vehicles WHERE citation_id = $1`, citation.ID); err != nil {
		return fmt.Errorf("clear citation vehicle: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM violations WHERE citation_id = $1`, citation.ID); err != nil {
		return fmt.Errorf("clear citation violations: %w", err)
	}

	if err := insertVehicle(ctx, tx, citation.ID, vehicleType); err != nil {
		return err
	}
	if err := insertViolations(ctx, tx, citation.ID, violations); err != nil {
		return err
	}
	total, err := recomputeTotal(ctx, tx, citation.ID)
	if err != nil {
		return err
	}
	citation.TotalFine = total

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citation replace: %w", err)
	}
	return nil
}

func insertVehicle(ctx context.Context, tx *sqlx.Tx, citationID, vehicleType string) error {
	const query = `INSERT INTO citation_vehicles (id, citation_id, vehicle_type, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), citationID, vehicleType, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert citation vehicle: %w", err)
	}
	return nil
}

func insertViolations(ctx context.Context, tx *sqlx.Tx, citationID string, violations []models.Violation) error {
	const query = `INSERT INTO violations (id, citation_id, violation_type_id, offense_count, fine_amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	now := time.Now().UTC()
	for i := range violations {
		v := &violations[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.CitationID = citationID
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, query, v.ID, v.CitationID, v.ViolationTypeID, v.OffenseCount, v.FineAmount, v.CreatedAt); err != nil {
			return fmt.Errorf("insert violation: %w", err)
		}
	}
	return nil
}

func recomputeTotal(ctx context.Context, tx *sqlx.Tx, citationID string) (float64, error) {
	const query = `UPDATE citations SET total_fine = (SELECT COALESCE(SUM(fine_amount), 0) FROM violations WHERE citation_id = $1) WHERE id = $1 RETURNING total_fine`
	var total float64
	if err := tx.GetContext(ctx, &total, query, citationID); err != nil {
		return 0, fmt.Errorf("recompute citation total: %w", err)
	}
	return total, nil
}

// UpdateStatus sets the status and overwrites the remarks trail.
func (r *CitationRepository) UpdateStatus(ctx context.Context, id string, status models.CitationStatus, remarks *string) error {
	const query = `UPDATE citations SET status = $2, remarks = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, remarks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update citation status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a citation with its vehicle and line items.
func (r *CitationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin citation delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM violations WHERE citation_id = $1`, id); err != nil {
		return fmt.Errorf("delete citation violations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM citation_vehicles WHERE citation_id = $1`, id); err != nil {
		return fmt.Errorf("delete citation vehicle: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM citations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete citation: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citation delete: %w", err)
	}
	return nil
}

// ExportRows returns the one-row-per-citation reporting projection with
// violation names concatenated, ordered oldest first.
func (r *CitationRepository) ExportRows(ctx context.Context, filter models.CitationFilter) ([]models.CitationExportRow, error) {
	query := `SELECT c.ticket_number, c.apprehension_datetime, c.last_name, c.first_name, c.middle_initial, c.suffix, c.date_of_birth, c.age, c.zone, c.barangay, c.municipality, c.province, c.license_number, c.license_type, c.plate_mv_engine_chassis_no, cv.vehicle_type, c.vehicle_description, c.place_of_apprehension,
		(SELECT STRING_AGG(vt.name, '; ' ORDER BY vt.name) FROM violations v JOIN violation_types vt ON vt.id = v.violation_type_id WHERE v.citation_id = c.id) AS violations,
		c.total_fine, c.status, c.remarks, c.created_at
		FROM citations c
		LEFT JOIN citation_vehicles cv ON cv.citation_id = c.id
		WHERE 1=1`
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		query += fmt.Sprintf(" AND (LOWER(c.ticket_number) LIKE %[1]s OR LOWER(c.last_name) LIKE %[1]s OR LOWER(c.first_name) LIKE %[1]s)", placeholder)
	}

	query += " ORDER BY c.created_at ASC"

	var rows []models.CitationExportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("export citations: %w", err)
	}
	return rows, nil
}
