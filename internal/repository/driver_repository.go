package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baggao-mto/citation-api/internal/models"
)

// DriverRepository provides database access for driver identity records.
type DriverRepository struct {
	db *sqlx.DB
}

// NewDriverRepository creates a new instance of DriverRepository.
func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

const driverColumns = `id, last_name, first_name, middle_initial, suffix, date_of_birth, age, zone, barangay, municipality, province, license_number, license_type, created_at, updated_at`

// FindByID returns a driver by identifier.
func (r *DriverRepository) FindByID(ctx context.Context, id string) (*models.Driver, error) {
	query := fmt.Sprintf("SELECT %s FROM drivers WHERE id = $1 LIMIT 1", driverColumns)
	var driver models.Driver
	if err := r.db.GetContext(ctx, &driver, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find driver by id: %w", err)
	}
	return &driver, nil
}

// FindByLicense returns a driver by license number, or sql.ErrNoRows.
func (r *DriverRepository) FindByLicense(ctx context.Context, licenseNumber string) (*models.Driver, error) {
	query := fmt.Sprintf("SELECT %s FROM drivers WHERE UPPER(license_number) = UPPER($1) LIMIT 1", driverColumns)
	var driver models.Driver
	if err := r.db.GetContext(ctx, &driver, query, licenseNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find driver by license: %w", err)
	}
	return &driver, nil
}

// Create inserts a new driver record.
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID == "" {
		driver.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if driver.CreatedAt.IsZero() {
		driver.CreatedAt = now
	}
	driver.UpdatedAt = now

	const query = `INSERT INTO drivers (id, last_name, first_name, middle_initial, suffix, date_of_birth, age, zone, barangay, municipality, province, license_number, license_type, created_at, updated_at)
		VALUES (:id, :last_name, :first_name, :middle_initial, :suffix, :date_of_birth, :age, :zone, :barangay, :municipality, :province, :license_number, :license_type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, driver); err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	return nil
}

// Update refreshes the identity fields of an existing driver.
func (r *DriverRepository) Update(ctx context.Context, driver *models.Driver) error {
	driver.UpdatedAt = time.Now().UTC()
	const query = `UPDATE drivers SET last_name = :last_name, first_name = :first_name, middle_initial = :middle_initial, suffix = :suffix, date_of_birth = :date_of_birth, age = :age, zone = :zone, barangay = :barangay, municipality = :municipality, province = :province, license_number = :license_number, license_type = :license_type, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, driver); err != nil {
		return fmt.Errorf("update driver: %w", err)
	}
	return nil
}
