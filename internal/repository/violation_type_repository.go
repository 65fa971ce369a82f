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

// ViolationTypeRepository provides database access for the violation catalog.
type ViolationTypeRepository struct {
	db *sqlx.DB
}

// NewViolationTypeRepository creates a new instance of ViolationTypeRepository.
func NewViolationTypeRepository(db *sqlx.DB) *ViolationTypeRepository {
	return &ViolationTypeRepository{db: db}
}

const violationTypeColumns = `id, name, description, fine_amount_1, fine_amount_2, fine_amount_3, active, created_at, updated_at`

// FindByID returns a catalog entry by identifier.
func (r *ViolationTypeRepository) FindByID(ctx context.Context, id string) (*models.ViolationType, error) {
	query := fmt.Sprintf("SELECT %s FROM violation_types WHERE id = $1 LIMIT 1", violationTypeColumns)
	var vt models.ViolationType
	if err := r.db.GetContext(ctx, &vt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find violation type by id: %w", err)
	}
	return &vt, nil
}

// FindByExactName returns a catalog entry by case-insensitive exact name
// match, or sql.ErrNoRows.
func (r *ViolationTypeRepository) FindByExactName(ctx context.Context, name string) (*models.ViolationType, error) {
	query := fmt.Sprintf("SELECT %s FROM violation_types WHERE LOWER(name) = LOWER($1) LIMIT 1", violationTypeColumns)
	var vt models.ViolationType
	if err := r.db.GetContext(ctx, &vt, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find violation type by name: %w", err)
	}
	return &vt, nil
}

// FindByIDs returns the catalog entries for the given identifiers.
// Unknown identifiers are simply absent from the result.
func (r *ViolationTypeRepository) FindByIDs(ctx context.Context, ids []string) ([]models.ViolationType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM violation_types WHERE id IN (?)", violationTypeColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build violation type query: %w", err)
	}
	query = r.db.Rebind(query)
	var types []models.ViolationType
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		return nil, fmt.Errorf("find violation types by ids: %w", err)
	}
	return types, nil
}

// ListActive returns all active catalog entries ordered by name. This is
// the hot path behind the submission form and is cached upstream.
func (r *ViolationTypeRepository) ListActive(ctx context.Context) ([]models.ViolationType, error) {
	query := fmt.Sprintf("SELECT %s FROM violation_types WHERE active = TRUE ORDER BY name ASC", violationTypeColumns)
	var types []models.ViolationType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list active violation types: %w", err)
	}
	return types, nil
}

// List returns catalog entries based on filters with total count.
func (r *ViolationTypeRepository) List(ctx context.Context, filter models.ViolationTypeFilter) ([]models.ViolationType, int, error) {
	baseQuery := `FROM violation_types WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", violationTypeColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var types []models.ViolationType
	if err := r.db.SelectContext(ctx, &types, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list violation types: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count violation types: %w", err)
	}

	return types, total, nil
}

// ExistsByName checks if another catalog entry already carries the name.
func (r *ViolationTypeRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM violation_types WHERE LOWER(name) = LOWER($1)"
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
		return false, fmt.Errorf("check violation type name: %w", err)
	}
	return true, nil
}

// CountReferences returns how many citation line items charge this type.
func (r *ViolationTypeRepository) CountReferences(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM violations WHERE violation_type_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count violation type references: %w", err)
	}
	return count, nil
}

// Create inserts a new catalog entry.
func (r *ViolationTypeRepository) Create(ctx context.Context, vt *models.ViolationType) error {
	if vt.ID == "" {
		vt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if vt.CreatedAt.IsZero() {
		vt.CreatedAt = now
	}
	vt.UpdatedAt = now

	const query = `INSERT INTO violation_types (id, name, description, fine_amount_1, fine_amount_2, fine_amount_3, active, created_at, updated_at)
		VALUES (:id, :name, :description, :fine_amount_1, :fine_amount_2, :fine_amount_3, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, vt); err != nil {
		return fmt.Errorf("create violation type: %w", err)
	}
	return nil
}

// Update updates a catalog entry. Fine changes affect future citations
// only; issued line items keep the amount charged at creation.
func (r *ViolationTypeRepository) Update(ctx context.Context, vt *models.ViolationType) error {
	vt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE violation_types SET name = :name, description = :description, fine_amount_1 = :fine_amount_1, fine_amount_2 = :fine_amount_2, fine_amount_3 = :fine_amount_3, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, vt); err != nil {
		return fmt.Errorf("update violation type: %w", err)
	}
	return nil
}

// SetActive flips the active flag without touching the fine schedule.
func (r *ViolationTypeRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE violation_types SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set violation type active: %w", err)
	}
	return nil
}

// Delete removes a catalog entry. Callers must verify the entry has no
// citation references first.
func (r *ViolationTypeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM violation_types WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete violation type: %w", err)
	}
	return nil
}
