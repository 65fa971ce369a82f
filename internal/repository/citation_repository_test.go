package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baggao-mto/citation-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var citationColumnList = []string{
	"id", "ticket_number", "driver_id", "last_name", "first_name", "middle_initial",
	"suffix", "date_of_birth", "age", "zone", "barangay", "municipality", "province",
	"license_number", "license_type", "plate_mv_engine_chassis_no", "vehicle_description",
	"apprehension_datetime", "place_of_apprehension", "remarks", "status", "total_fine",
	"created_at", "updated_at",
}

func citationRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(citationColumnList).
		AddRow("c1", "06101", nil, "Dela Cruz", "Juan", nil,
			nil, nil, nil, nil, "San Jose", "Baggao", "Cagayan",
			nil, nil, "ABC-1234", nil,
			now, "National Highway", nil, string(models.StatusPending), 150.0,
			now, now)
}

func TestMaxTicketNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(ticket_number::int), $1) FROM citations WHERE ticket_number ~ '^\d+$'`)).
		WithArgs(6100).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(6245))

	max, err := repo.MaxTicketNumber(context.Background(), 6100)
	require.NoError(t, err)
	assert.Equal(t, 6245, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM citations WHERE ticket_number = $1 LIMIT 1`)).
		WithArgs("06101").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.TicketExists(context.Background(), "06101")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM citations WHERE ticket_number = $1 LIMIT 1`)).
		WithArgs("06102").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.TicketExists(context.Background(), "06102")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPriorOffenses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM violations v JOIN citations c ON c.id = v.citation_id WHERE c.driver_id = $1 AND v.violation_type_id = $2`)).
		WithArgs("driver-1", "vt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountPriorOffenses(context.Background(), "driver-1", "vt-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPriorOffensesExcludesCitation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM violations v JOIN citations c ON c.id = v.citation_id WHERE c.driver_id = $1 AND v.violation_type_id = $2 AND c.id <> $3`)).
		WithArgs("driver-1", "vt-1", "c9").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountPriorOffenses(context.Background(), "driver-1", "vt-1", "c9")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationCreateTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO citations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO citation_vehicles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO violations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO violations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE citations SET total_fine").
		WillReturnRows(sqlmock.NewRows([]string{"total_fine"}).AddRow(650.0))
	mock.ExpectCommit()

	citation := &models.Citation{
		ID:                     "c1",
		TicketNumber:           "06101",
		LastName:               "Dela Cruz",
		FirstName:              "Juan",
		Barangay:               "San Jose",
		Municipality:           "Baggao",
		Province:               "Cagayan",
		PlateMVEngineChassisNo: "ABC-1234",
		ApprehensionDateTime:   time.Now(),
		PlaceOfApprehension:    "National Highway",
		Status:                 models.StatusPending,
	}
	violations := []models.Violation{
		{ViolationTypeID: "vt-1", OffenseCount: 1, FineAmount: 150},
		{ViolationTypeID: "vt-2", OffenseCount: 1, FineAmount: 500},
	}

	err := repo.Create(context.Background(), citation, "Motorcycle", violations)
	require.NoError(t, err)
	assert.Equal(t, 650.0, citation.TotalFine)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationReplaceClearsOldRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE citations SET driver_id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM citation_vehicles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM violations").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO citation_vehicles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO violations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE citations SET total_fine").
		WillReturnRows(sqlmock.NewRows([]string{"total_fine"}).AddRow(150.0))
	mock.ExpectCommit()

	citation := &models.Citation{
		ID:                     "c1",
		LastName:               "Dela Cruz",
		FirstName:              "Juan",
		Barangay:               "San Jose",
		Municipality:           "Baggao",
		Province:               "Cagayan",
		PlateMVEngineChassisNo: "ABC-1234",
		ApprehensionDateTime:   time.Now(),
		PlaceOfApprehension:    "National Highway",
	}

	err := repo.Replace(context.Background(), citation, "Motorcycle",
		[]models.Violation{{ViolationTypeID: "vt-1", OffenseCount: 1, FineAmount: 150}})
	require.NoError(t, err)
	assert.Equal(t, 150.0, citation.TotalFine)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationReplaceMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE citations SET driver_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), &models.Citation{ID: "missing"}, "Motorcycle", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	remarks := "trail"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE citations SET status = $2, remarks = $3, updated_at = $4 WHERE id = $1`)).
		WithArgs("c1", models.StatusPaid, &remarks, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "c1", models.StatusPaid, &remarks)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectExec("UPDATE citations SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.StatusPaid, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCitationDeleteTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM violations").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM citation_vehicles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM citations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + citationColumns + " FROM citations WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(citationRow(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM citations WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	citations, total, err := repo.List(context.Background(), models.CitationFilter{})
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, "06101", citations[0].TicketNumber)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationFindDetail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + citationColumns + " FROM citations WHERE id = $1 LIMIT 1")).
		WithArgs("c1").
		WillReturnRows(citationRow(now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, citation_id, vehicle_type, created_at FROM citation_vehicles WHERE citation_id = $1 LIMIT 1`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "citation_id", "vehicle_type", "created_at"}).
			AddRow("v1", "c1", "Motorcycle", now))
	mock.ExpectQuery("SELECT v.id, v.citation_id, v.violation_type_id").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "citation_id", "violation_type_id", "offense_count", "fine_amount", "created_at", "violation_name"}).
			AddRow("l1", "c1", "vt-1", 1, 150.0, now, "No Helmet"))

	detail, err := repo.FindDetail(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, detail.Vehicle)
	assert.Equal(t, "Motorcycle", detail.Vehicle.VehicleType)
	require.Len(t, detail.Violations, 1)
	assert.Equal(t, "No Helmet", detail.Violations[0].ViolationName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCitationExportRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCitationRepository(db)

	now := time.Now()
	violations := "No Helmet; Speeding"
	cols := []string{"ticket_number", "apprehension_datetime", "last_name", "first_name", "middle_initial", "suffix",
		"date_of_birth", "age", "zone", "barangay", "municipality", "province", "license_number", "license_type",
		"plate_mv_engine_chassis_no", "vehicle_type", "vehicle_description", "place_of_apprehension",
		"violations", "total_fine", "status", "remarks", "created_at"}
	mock.ExpectQuery("SELECT c.ticket_number, c.apprehension_datetime").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("06101", now, "Dela Cruz", "Juan", nil, nil,
				nil, nil, nil, "San Jose", "Baggao", "Cagayan", nil, nil,
				"ABC-1234", "Motorcycle", nil, "National Highway",
				violations, 650.0, string(models.StatusPending), nil, now))

	rows, err := repo.ExportRows(context.Background(), models.CitationFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "06101", rows[0].TicketNumber)
	require.NotNil(t, rows[0].Violations)
	assert.Equal(t, violations, *rows[0].Violations)
	assert.NoError(t, mock.ExpectationsWereMet())
}
