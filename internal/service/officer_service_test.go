package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
)

type mockOfficerRepo struct {
	officers map[string]*models.Officer
	deleted  []string
}

func newMockOfficerRepo(officers ...models.Officer) *mockOfficerRepo {
	m := &mockOfficerRepo{officers: make(map[string]*models.Officer)}
	for i := range officers {
		o := officers[i]
		m.officers[o.ID] = &o
	}
	return m
}

func (m *mockOfficerRepo) List(ctx context.Context, filter models.OfficerFilter) ([]models.Officer, int, error) {
	out := make([]models.Officer, 0, len(m.officers))
	for _, o := range m.officers {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (m *mockOfficerRepo) FindByID(ctx context.Context, id string) (*models.Officer, error) {
	o, ok := m.officers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (m *mockOfficerRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, o := range m.officers {
		if strings.EqualFold(o.OfficerName, name) && o.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOfficerRepo) Create(ctx context.Context, officer *models.Officer) error {
	cp := *officer
	m.officers[officer.ID] = &cp
	return nil
}

func (m *mockOfficerRepo) Update(ctx context.Context, officer *models.Officer) error {
	if _, ok := m.officers[officer.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *officer
	m.officers[officer.ID] = &cp
	return nil
}

func (m *mockOfficerRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.officers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.officers, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestOfficerCreate(t *testing.T) {
	repo := newMockOfficerRepo()
	audit := &mockAuditSink{}
	svc := NewOfficerService(repo, audit, validator.New(), zap.NewNop())

	badge := "B-042"
	officer, err := svc.Create(context.Background(), SaveOfficerRequest{
		OfficerName: " PO1 Ramon Cruz ",
		BadgeNumber: &badge,
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, "PO1 Ramon Cruz", officer.OfficerName)
	assert.True(t, officer.Active)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOfficerChange, audit.logs[0].Action)
}

func TestOfficerCreateDuplicateName(t *testing.T) {
	repo := newMockOfficerRepo(models.Officer{ID: "o1", OfficerName: "PO1 Ramon Cruz", Active: true})
	svc := NewOfficerService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), SaveOfficerRequest{OfficerName: "po1 ramon cruz"}, "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestOfficerUpdateTogglesActive(t *testing.T) {
	repo := newMockOfficerRepo(models.Officer{ID: "o1", OfficerName: "PO1 Ramon Cruz", Active: true})
	svc := NewOfficerService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	inactive := false
	officer, err := svc.Update(context.Background(), "o1", SaveOfficerRequest{
		OfficerName: "PO1 Ramon Cruz",
		Active:      &inactive,
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)

	assert.False(t, officer.Active)
}

func TestOfficerDelete(t *testing.T) {
	repo := newMockOfficerRepo(models.Officer{ID: "o1", OfficerName: "PO1 Ramon Cruz", Active: true})
	svc := NewOfficerService(repo, &mockAuditSink{}, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "o1", "admin-1", models.LoginRequest{}))
	assert.Equal(t, []string{"o1"}, repo.deleted)

	err := svc.Delete(context.Background(), "o1", "admin-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
