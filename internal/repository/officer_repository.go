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

// OfficerRepository provides database access for the officer roster.
type OfficerRepository struct {
	db *sqlx.DB
}

// NewOfficerRepository creates a new instance of OfficerRepository.
func NewOfficerRepository(db *sqlx.DB) *OfficerRepository {
	return &OfficerRepository{db: db}
}

const officerColumns = `id, officer_name, badge_number, position, active, created_at, updated_at`

// FindByID returns an officer by identifier.
func (r *OfficerRepository) FindByID(ctx context.Context, id string) (*models.Officer, error) {
	query := fmt.Sprintf("SELECT %s FROM officers WHERE id = $1 LIMIT 1", officerColumns)
	var officer models.Officer
	if err := r.db.GetContext(ctx, &officer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find officer by id: %w", err)
	}
	return &officer, nil
}

// List returns officers based on filters with total count.
func (r *OfficerRepository) List(ctx context.Context, filter models.OfficerFilter) ([]models.Officer, int, error) {
	baseQuery := `FROM officers WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(officer_name) LIKE $%d OR LOWER(COALESCE(badge_number, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"officer_name": true,
		"badge_number": true,
		"created_at":   true,
		"updated_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "officer_name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", officerColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var officers []models.Officer
	if err := r.db.SelectContext(ctx, &officers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list officers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count officers: %w", err)
	}

	return officers, total, nil
}

// ExistsByName checks if another roster entry already carries the name.
func (r *OfficerRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM officers WHERE LOWER(officer_name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check officer name: %w", err)
	}
	return true, nil
}

// Create inserts a new officer roster entry.
func (r *OfficerRepository) Create(ctx context.Context, officer *models.Officer) error {
	if officer.ID == "" {
		officer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if officer.CreatedAt.IsZero() {
		officer.CreatedAt = now
	}
	officer.UpdatedAt = now

	const query = `INSERT INTO officers (id, officer_name, badge_number, position, active, created_at, updated_at) VALUES (:id, :officer_name, :badge_number, :position, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, officer); err != nil {
		return fmt.Errorf("create officer: %w", err)
	}
	return nil
}

// Update updates a roster entry.
func (r *OfficerRepository) Update(ctx context.Context, officer *models.Officer) error {
	officer.UpdatedAt = time.Now().UTC()
	const query = `UPDATE officers SET officer_name = :officer_name, badge_number = :badge_number, position = :position, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, officer); err != nil {
		return fmt.Errorf("update officer: %w", err)
	}
	return nil
}

// Delete removes a roster entry. Citations store officer names inline,
// so no referential check is needed.
func (r *OfficerRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM officers WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete officer: %w", err)
	}
	return nil
}
