package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
)

type mockCitationRepo struct {
	maxTicket     int
	takenTickets  map[string]bool
	priorOffenses map[string]int
	citations     map[string]*models.Citation
	violations    map[string][]models.Violation
	vehicles      map[string]string

	createErrs   []error
	createCalls  int
	excludeSeen  []string
	statusRecord []models.CitationStatus
}

func newMockCitationRepo() *mockCitationRepo {
	return &mockCitationRepo{
		takenTickets:  make(map[string]bool),
		priorOffenses: make(map[string]int),
		citations:     make(map[string]*models.Citation),
		violations:    make(map[string][]models.Violation),
		vehicles:      make(map[string]string),
	}
}

func (m *mockCitationRepo) MaxTicketNumber(ctx context.Context, floor int) (int, error) {
	if m.maxTicket < floor {
		return floor, nil
	}
	return m.maxTicket, nil
}

func (m *mockCitationRepo) TicketExists(ctx context.Context, ticketNumber string) (bool, error) {
	return m.takenTickets[ticketNumber], nil
}

func (m *mockCitationRepo) CountPriorOffenses(ctx context.Context, driverID, violationTypeID, excludeCitationID string) (int, error) {
	m.excludeSeen = append(m.excludeSeen, excludeCitationID)
	return m.priorOffenses[driverID+"|"+violationTypeID], nil
}

func (m *mockCitationRepo) FindByID(ctx context.Context, id string) (*models.Citation, error) {
	c, ok := m.citations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockCitationRepo) FindDetail(ctx context.Context, id string) (*models.CitationDetail, error) {
	c, ok := m.citations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := models.CitationDetail{Citation: *c}
	for _, v := range m.violations[id] {
		detail.Violations = append(detail.Violations, models.ViolationDetail{Violation: v})
	}
	if vt, ok := m.vehicles[id]; ok {
		detail.Vehicle = &models.CitationVehicle{CitationID: id, VehicleType: vt}
	}
	return &detail, nil
}

func (m *mockCitationRepo) List(ctx context.Context, filter models.CitationFilter) ([]models.Citation, int, error) {
	out := make([]models.Citation, 0, len(m.citations))
	for _, c := range m.citations {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCitationRepo) Create(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error {
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	return m.store(citation, vehicleType, violations)
}

func (m *mockCitationRepo) Replace(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error {
	if _, ok := m.citations[citation.ID]; !ok {
		return sql.ErrNoRows
	}
	return m.store(citation, vehicleType, violations)
}

func (m *mockCitationRepo) store(citation *models.Citation, vehicleType string, violations []models.Violation) error {
	var total float64
	lines := make([]models.Violation, len(violations))
	for i, v := range violations {
		v.CitationID = citation.ID
		lines[i] = v
		total += v.FineAmount
	}
	citation.TotalFine = total
	cp := *citation
	m.citations[citation.ID] = &cp
	m.violations[citation.ID] = lines
	m.vehicles[citation.ID] = vehicleType
	return nil
}

func (m *mockCitationRepo) UpdateStatus(ctx context.Context, id string, status models.CitationStatus, remarks *string) error {
	c, ok := m.citations[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.Remarks = remarks
	m.statusRecord = append(m.statusRecord, status)
	return nil
}

func (m *mockCitationRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.citations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.citations, id)
	delete(m.violations, id)
	delete(m.vehicles, id)
	return nil
}

func (m *mockCitationRepo) ExportRows(ctx context.Context, filter models.CitationFilter) ([]models.CitationExportRow, error) {
	rows := make([]models.CitationExportRow, 0, len(m.citations))
	for _, c := range m.citations {
		rows = append(rows, models.CitationExportRow{TicketNumber: c.TicketNumber, Status: c.Status, TotalFine: c.TotalFine})
	}
	return rows, nil
}

type mockDriverRepo struct {
	byLicense map[string]*models.Driver
	created   int
	updated   int
}

func newMockDriverRepo() *mockDriverRepo {
	return &mockDriverRepo{byLicense: make(map[string]*models.Driver)}
}

func (m *mockDriverRepo) FindByLicense(ctx context.Context, licenseNumber string) (*models.Driver, error) {
	d, ok := m.byLicense[licenseNumber]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *mockDriverRepo) Create(ctx context.Context, driver *models.Driver) error {
	m.created++
	cp := *driver
	m.byLicense[*driver.LicenseNumber] = &cp
	return nil
}

func (m *mockDriverRepo) Update(ctx context.Context, driver *models.Driver) error {
	m.updated++
	cp := *driver
	m.byLicense[*driver.LicenseNumber] = &cp
	return nil
}

type mockCatalogSource struct {
	types    map[string]models.ViolationType
	proposed []string
}

func newMockCatalogSource(types ...models.ViolationType) *mockCatalogSource {
	m := &mockCatalogSource{types: make(map[string]models.ViolationType)}
	for _, vt := range types {
		m.types[vt.ID] = vt
	}
	return m
}

func (m *mockCatalogSource) FindByIDs(ctx context.Context, ids []string) ([]models.ViolationType, error) {
	var out []models.ViolationType
	for _, id := range ids {
		if vt, ok := m.types[id]; ok {
			out = append(out, vt)
		}
	}
	return out, nil
}

func (m *mockCatalogSource) Propose(ctx context.Context, req ProposeViolationTypeRequest, actorID string, meta models.LoginRequest) (*models.ViolationType, error) {
	m.proposed = append(m.proposed, req.Name)
	for _, vt := range m.types {
		if strings.EqualFold(vt.Name, req.Name) {
			return &vt, nil
		}
	}
	vt := models.ViolationType{
		ID:          "proposed-" + req.Name,
		Name:        req.Name,
		FineAmount1: models.DefaultFineFirst,
		FineAmount2: models.DefaultFineSecond,
		FineAmount3: models.DefaultFineThird,
		Active:      true,
	}
	m.types[vt.ID] = vt
	return &vt, nil
}

type mockAuditSink struct {
	logs []models.AuditLog
}

func (m *mockAuditSink) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func helmetType() models.ViolationType {
	return models.ViolationType{ID: "vt-helmet", Name: "No Helmet", FineAmount1: 150, FineAmount2: 300, FineAmount3: 500, Active: true}
}

func validSubmission(license string, selections ...ViolationSelection) SubmitCitationRequest {
	req := SubmitCitationRequest{
		LastName:               "Dela Cruz",
		FirstName:              "Juan",
		Barangay:               "San Jose",
		Municipality:           "Baggao",
		Province:               "Cagayan",
		PlateMVEngineChassisNo: "ABC-1234",
		VehicleType:            "Motorcycle",
		ApprehensionDateTime:   time.Now(),
		PlaceOfApprehension:    "National Highway",
		Violations:             selections,
	}
	if license != "" {
		req.LicenseNumber = &license
	}
	return req
}

func byID(id string) ViolationSelection {
	return ViolationSelection{ViolationTypeID: &id}
}

func byName(name string) ViolationSelection {
	return ViolationSelection{FreeTextName: &name}
}

func newTestCitationService(repo *mockCitationRepo, drivers *mockDriverRepo, catalog *mockCatalogSource, audit *mockAuditSink) *CitationService {
	return NewCitationService(repo, drivers, catalog, audit, validator.New(), zap.NewNop(), nil, 6100, 3)
}

func TestCitationCreateFirstOffense(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	catalog := newMockCatalogSource(helmetType())
	audit := &mockAuditSink{}
	svc := newTestCitationService(repo, drivers, catalog, audit)

	detail, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, "06101", detail.TicketNumber)
	assert.Equal(t, models.StatusPending, detail.Status)
	require.Len(t, detail.Violations, 1)
	assert.Equal(t, 1, detail.Violations[0].OffenseCount)
	assert.Equal(t, 150.0, detail.Violations[0].FineAmount)
	assert.Equal(t, 150.0, detail.TotalFine)
	assert.Equal(t, 1, drivers.created)
	require.NotEmpty(t, audit.logs)
	assert.Equal(t, models.AuditActionCitationCreate, audit.logs[len(audit.logs)-1].Action)
}

func TestCitationCreateNormalizesLicense(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	_, err := svc.Create(context.Background(), validSubmission("  n01-23-456789 ", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	_, ok := drivers.byLicense["N01-23-456789"]
	assert.True(t, ok)
}

func TestCitationCreateRepeatOffenseEscalates(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	license := "N01-23-456789"
	drivers.byLicense[license] = &models.Driver{ID: "driver-1", LicenseNumber: &license}
	repo.priorOffenses["driver-1|vt-helmet"] = 1

	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(), validSubmission(license, byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	require.Len(t, detail.Violations, 1)
	assert.Equal(t, 2, detail.Violations[0].OffenseCount)
	assert.Equal(t, 300.0, detail.Violations[0].FineAmount)
	assert.Equal(t, 1, drivers.updated)
	assert.Equal(t, 0, drivers.created)
}

func TestCitationCreateTierCapsAtThree(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	license := "N01-23-456789"
	drivers.byLicense[license] = &models.Driver{ID: "driver-1", LicenseNumber: &license}
	repo.priorOffenses["driver-1|vt-helmet"] = 7

	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(), validSubmission(license, byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	require.Len(t, detail.Violations, 1)
	assert.Equal(t, 3, detail.Violations[0].OffenseCount)
	assert.Equal(t, 500.0, detail.Violations[0].FineAmount)
}

func TestCitationCreateUnlicensedAlwaysTierOne(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(), validSubmission("", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Nil(t, detail.DriverID)
	require.Len(t, detail.Violations, 1)
	assert.Equal(t, 1, detail.Violations[0].OffenseCount)
	assert.Equal(t, 0, drivers.created)
	assert.Empty(t, repo.excludeSeen, "offense history must not be consulted without a driver")
}

func TestCitationCreateSkipsUnknownTypes(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(),
		validSubmission("N01-23-456789", byID("vt-helmet"), byID("vt-missing")),
		"actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Len(t, detail.Violations, 1)
}

func TestCitationCreateRejectsEmptySelection(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	_, err := svc.Create(context.Background(),
		validSubmission("N01-23-456789", byID("vt-missing")),
		"actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.createCalls)
	assert.Equal(t, 0, drivers.created, "rejection must precede the driver write")
	assert.Equal(t, 0, drivers.updated)
}

func TestCitationCreateEmptySelectionWritesNothing(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	req := validSubmission("N01-23-456789")
	req.Violations = []ViolationSelection{}

	_, err := svc.Create(context.Background(), req, "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, drivers.created)
	assert.Equal(t, 0, repo.createCalls)
}

func TestCitationUpdateEmptySelectionWritesNoDriver(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, drivers.created)

	_, err = svc.Update(context.Background(), created.ID,
		validSubmission("N01-23-456789", byID("vt-missing")),
		"actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, drivers.updated, "rejection must precede the driver write")
}

func TestCitationCreateProposesFreeTextViolation(t *testing.T) {
	repo := newMockCitationRepo()
	catalog := newMockCatalogSource()
	svc := newTestCitationService(repo, newMockDriverRepo(), catalog, &mockAuditSink{})

	detail, err := svc.Create(context.Background(),
		validSubmission("N01-23-456789", byName("Obstruction")),
		"actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Obstruction"}, catalog.proposed)
	require.Len(t, detail.Violations, 1)
	assert.Equal(t, models.DefaultFineFirst, detail.Violations[0].FineAmount)
}

func TestCitationCreateDeduplicatesSelections(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(),
		validSubmission("N01-23-456789", byID("vt-helmet"), byID("vt-helmet")),
		"actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Len(t, detail.Violations, 1)
}

func TestCitationCreateRetriesOnDuplicateTicket(t *testing.T) {
	repo := newMockCitationRepo()
	repo.createErrs = []error{&pq.Error{Code: pq.ErrorCode(uniqueViolationCode)}}
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	detail, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.createCalls)
	assert.Equal(t, "06101", detail.TicketNumber)
}

func TestCitationCreateAllocationExhausted(t *testing.T) {
	repo := newMockCitationRepo()
	repo.takenTickets["06101"] = true
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	_, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.createCalls)
}

func TestCitationCreateRejectsOtherWithoutDescription(t *testing.T) {
	svc := newTestCitationService(newMockCitationRepo(), newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	req := validSubmission("N01-23-456789", byID("vt-helmet"))
	req.VehicleType = "Other"

	_, err := svc.Create(context.Background(), req, "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCitationUpdatePreservesTicketAndStatus(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	remarks := "paid at counter"
	repo.citations[created.ID].Status = models.StatusPaid
	repo.citations[created.ID].Remarks = &remarks

	req := validSubmission("N01-23-456789", byID("vt-helmet"))
	req.FirstName = "Pedro"
	req.PlateMVEngineChassisNo = "XYZ-9876"

	updated, err := svc.Update(context.Background(), created.ID, req, "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, created.TicketNumber, updated.TicketNumber)
	assert.Equal(t, models.StatusPaid, updated.Status)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, remarks, *updated.Remarks)
	assert.Equal(t, "Pedro", updated.FirstName)
	assert.Equal(t, "XYZ-9876", updated.PlateMVEngineChassisNo)
}

func TestCitationUpdateExcludesSelfFromOffenseCount(t *testing.T) {
	repo := newMockCitationRepo()
	drivers := newMockDriverRepo()
	svc := newTestCitationService(repo, drivers, newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	repo.excludeSeen = nil
	_, err = svc.Update(context.Background(), created.ID, validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	require.NotEmpty(t, repo.excludeSeen)
	assert.Equal(t, created.ID, repo.excludeSeen[0])
}

func TestCitationUpdateNotFound(t *testing.T) {
	svc := newTestCitationService(newMockCitationRepo(), newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	_, err := svc.Update(context.Background(), "missing", validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCitationSetStatusAppendsRemarkTrail(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	original := "issued at checkpoint"
	repo.citations[created.ID].Remarks = &original

	detail, err := svc.SetStatus(context.Background(), created.ID,
		ChangeStatusRequest{Status: models.StatusPaid, Reason: "OR #12345"},
		"Jane Reyes", "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, detail.Status)
	require.NotNil(t, detail.Remarks)
	assert.True(t, strings.HasPrefix(*detail.Remarks, original+"\n\n"), "existing remarks must be preserved")
	assert.Contains(t, *detail.Remarks, "Status changed from 'pending' to 'paid' by Jane Reyes")
	assert.Contains(t, *detail.Remarks, "\nReason: OR #12345")
}

func TestCitationSetStatusWithoutReasonKeepsRemarks(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	original := "issued at checkpoint"
	repo.citations[created.ID].Remarks = &original

	detail, err := svc.SetStatus(context.Background(), created.ID,
		ChangeStatusRequest{Status: models.StatusPaid},
		"Jane Reyes", "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, detail.Status)
	require.NotNil(t, detail.Remarks)
	assert.Equal(t, original, *detail.Remarks, "a reason-less transition must not touch remarks")
}

func TestCitationSetStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestCitationService(newMockCitationRepo(), newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	_, err := svc.SetStatus(context.Background(), "any",
		ChangeStatusRequest{Status: models.CitationStatus("archived")},
		"Jane", "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCitationSetStatusPaidBackToPending(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), created.ID, ChangeStatusRequest{Status: models.StatusPaid}, "Jane", "actor", models.LoginRequest{})
	require.NoError(t, err)
	detail, err := svc.SetStatus(context.Background(), created.ID, ChangeStatusRequest{Status: models.StatusPending, Reason: "posting error"}, "Jane", "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, detail.Status)
	assert.Contains(t, *detail.Remarks, "Status changed from 'paid' to 'pending' by Jane")
}

func TestCitationDelete(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	created, err := svc.Create(context.Background(), validSubmission("N01-23-456789", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID, "actor", models.LoginRequest{}))

	_, err = svc.Get(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestNextTicketNumberFormatting(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(), &mockAuditSink{})

	ticket, err := svc.NextTicketNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "06101", ticket)

	repo.maxTicket = 12344
	ticket, err = svc.NextTicketNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", ticket)
}

func TestAppendStatusRemarkFormat(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	entry := appendStatusRemark(nil, models.StatusPending, models.StatusPaid, "Jane Reyes", "OR #12345", at)
	assert.Equal(t, "[2026-03-14 09:30:00] Status changed from 'pending' to 'paid' by Jane Reyes\nReason: OR #12345", entry)

	prior := "first entry"
	entry = appendStatusRemark(&prior, models.StatusPaid, models.StatusVoid, "Admin", "issued in error", at)
	expected := "first entry\n\n[2026-03-14 09:30:00] Status changed from 'paid' to 'void' by Admin\nReason: issued in error"
	assert.Equal(t, expected, entry)
}

func TestCitationCreateMultipleViolationsSumTotal(t *testing.T) {
	repo := newMockCitationRepo()
	speeding := models.ViolationType{ID: "vt-speed", Name: "Speeding", FineAmount1: 1000, FineAmount2: 1500, FineAmount3: 2000, Active: true}
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType(), speeding), &mockAuditSink{})

	detail, err := svc.Create(context.Background(),
		validSubmission("N01-23-456789", byID("vt-helmet"), byID("vt-speed")),
		"actor", models.LoginRequest{})
	require.NoError(t, err)

	require.Len(t, detail.Violations, 2)
	assert.Equal(t, 1150.0, detail.TotalFine)
}

func TestCitationCreateTicketSequenceAdvances(t *testing.T) {
	repo := newMockCitationRepo()
	svc := newTestCitationService(repo, newMockDriverRepo(), newMockCatalogSource(helmetType()), &mockAuditSink{})

	first, err := svc.Create(context.Background(), validSubmission("", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)
	repo.maxTicket = 6101

	second, err := svc.Create(context.Background(), validSubmission("", byID("vt-helmet")), "actor", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, "06101", first.TicketNumber)
	assert.Equal(t, "06102", second.TicketNumber)
	assert.NotEqual(t, first.ID, second.ID)
}
