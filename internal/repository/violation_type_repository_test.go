package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var violationTypeColumnList = []string{
	"id", "name", "description", "fine_amount_1", "fine_amount_2", "fine_amount_3",
	"active", "created_at", "updated_at",
}

func TestViolationTypeFindByExactName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+violationTypeColumns+" FROM violation_types WHERE LOWER(name) = LOWER($1) LIMIT 1")).
		WithArgs("no helmet").
		WillReturnRows(sqlmock.NewRows(violationTypeColumnList).
			AddRow("vt-1", "No Helmet", nil, 150.0, 300.0, 500.0, true, now, now))

	vt, err := repo.FindByExactName(context.Background(), "no helmet")
	require.NoError(t, err)
	assert.Equal(t, "No Helmet", vt.Name)
	assert.Equal(t, 150.0, vt.FineAmount1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeFindByExactNameMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM violation_types WHERE LOWER").
		WithArgs("unknown").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByExactName(context.Background(), "unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestViolationTypeListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + violationTypeColumns + " FROM violation_types WHERE active = TRUE ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows(violationTypeColumnList).
			AddRow("vt-1", "No Helmet", nil, 150.0, 300.0, 500.0, true, now, now).
			AddRow("vt-2", "Speeding", nil, 500.0, 1000.0, 2000.0, true, now, now))

	types, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Speeding", types[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeExistsByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM violation_types WHERE LOWER(name) = LOWER($1) LIMIT 1")).
		WithArgs("No Helmet").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "No Helmet", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeExistsByNameExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM violation_types WHERE LOWER(name) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("No Helmet", "vt-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), "No Helmet", "vt-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeCountReferences(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM violations WHERE violation_type_id = $1`)).
		WithArgs("vt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountReferences(context.Background(), "vt-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeSetActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE violation_types SET active = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("vt-1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "vt-1", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViolationTypeDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewViolationTypeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM violation_types WHERE id = $1`)).
		WithArgs("vt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "vt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
