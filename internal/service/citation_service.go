package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
)

const uniqueViolationCode = "23505"

type citationRepository interface {
	MaxTicketNumber(ctx context.Context, floor int) (int, error)
	TicketExists(ctx context.Context, ticketNumber string) (bool, error)
	CountPriorOffenses(ctx context.Context, driverID, violationTypeID, excludeCitationID string) (int, error)
	FindByID(ctx context.Context, id string) (*models.Citation, error)
	FindDetail(ctx context.Context, id string) (*models.CitationDetail, error)
	List(ctx context.Context, filter models.CitationFilter) ([]models.Citation, int, error)
	Create(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error
	Replace(ctx context.Context, citation *models.Citation, vehicleType string, violations []models.Violation) error
	UpdateStatus(ctx context.Context, id string, status models.CitationStatus, remarks *string) error
	Delete(ctx context.Context, id string) error
	ExportRows(ctx context.Context, filter models.CitationFilter) ([]models.CitationExportRow, error)
}

type citationDriverRepository interface {
	FindByLicense(ctx context.Context, licenseNumber string) (*models.Driver, error)
	Create(ctx context.Context, driver *models.Driver) error
	Update(ctx context.Context, driver *models.Driver) error
}

type citationCatalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.ViolationType, error)
	Propose(ctx context.Context, req ProposeViolationTypeRequest, actorID string, meta models.LoginRequest) (*models.ViolationType, error)
}

type citationAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ViolationSelection names one violation to charge: either an existing
// catalog entry by ID, or a free-text name that proposes a new entry.
type ViolationSelection struct {
	ViolationTypeID *string `json:"violation_type_id"`
	FreeTextName    *string `json:"free_text_name"`
}

// SubmitCitationRequest is the full submission form: driver identity,
// vehicle, apprehension details and the charged violations.
type SubmitCitationRequest struct {
	LastName      string     `json:"last_name" validate:"required"`
	FirstName     string     `json:"first_name" validate:"required"`
	MiddleInitial *string    `json:"middle_initial"`
	Suffix        *string    `json:"suffix"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Age           *int       `json:"age"`
	Zone          *string    `json:"zone"`
	Barangay      string     `json:"barangay" validate:"required"`
	Municipality  string     `json:"municipality" validate:"required"`
	Province      string     `json:"province" validate:"required"`
	LicenseNumber *string    `json:"license_number"`
	LicenseType   *string    `json:"license_type"`

	PlateMVEngineChassisNo string  `json:"plate_mv_engine_chassis_no" validate:"required"`
	VehicleType            string  `json:"vehicle_type" validate:"required"`
	VehicleDescription     *string `json:"vehicle_description"`

	ApprehensionDateTime time.Time `json:"apprehension_datetime" validate:"required"`
	PlaceOfApprehension  string    `json:"place_of_apprehension" validate:"required"`
	Remarks              *string   `json:"remarks"`

	Violations []ViolationSelection `json:"violations" validate:"required"`
}

// ChangeStatusRequest moves a citation to a new lifecycle status.
type ChangeStatusRequest struct {
	Status models.CitationStatus `json:"status" validate:"required"`
	Reason string                `json:"reason"`
}

// CitationService handles citation submission, editing, lifecycle and
// lookup workflows.
type CitationService struct {
	repo      citationRepository
	drivers   citationDriverRepository
	catalog   citationCatalog
	audit     citationAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService

	ticketFloor       int
	allocationRetries int
}

// NewCitationService constructs a CitationService. metrics may be nil.
func NewCitationService(repo citationRepository, drivers citationDriverRepository, catalog citationCatalog, audit citationAuditRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, ticketFloor, allocationRetries int) *CitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ticketFloor <= 0 {
		ticketFloor = 6100
	}
	if allocationRetries <= 0 {
		allocationRetries = 3
	}
	return &CitationService{
		repo:              repo,
		drivers:           drivers,
		catalog:           catalog,
		audit:             audit,
		validator:         validate,
		logger:            logger,
		metrics:           metrics,
		ticketFloor:       ticketFloor,
		allocationRetries: allocationRetries,
	}
}

// NextTicketNumber previews the ticket number the next submission would
// receive. Advisory only: the allocation at submission time re-checks.
func (s *CitationService) NextTicketNumber(ctx context.Context) (string, error) {
	max, err := s.repo.MaxTicketNumber(ctx, s.ticketFloor)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to determine next ticket number")
	}
	return fmt.Sprintf("%05d", max+1), nil
}

// Create submits a new citation: resolves the charged violations,
// upserts the driver when a license number is given, prices each
// violation at the driver's offense tier, allocates a ticket number and
// persists everything in one transaction. A duplicate ticket allocated
// by a concurrent submission is retried with a fresh number before
// surfacing a retryable conflict.
func (s *CitationService) Create(ctx context.Context, req SubmitCitationRequest, actorID string, meta models.LoginRequest) (*models.CitationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid citation payload")
	}
	if err := validateVehicle(req); err != nil {
		return nil, err
	}

	// Selections resolve first so a submission carrying no effective
	// violation is rejected before the drivers table is touched.
	types, err := s.resolveTypes(ctx, req.Violations, actorID, meta)
	if err != nil {
		return nil, err
	}

	driverID, err := s.upsertDriver(ctx, req)
	if err != nil {
		return nil, err
	}

	violations, err := s.priceViolations(ctx, driverID, "", types)
	if err != nil {
		return nil, err
	}

	citation := buildCitation(req, driverID)
	citation.ID = uuid.NewString()
	citation.Status = models.StatusPending
	citation.Remarks = req.Remarks

	var lastErr error
	for attempt := 0; attempt < s.allocationRetries; attempt++ {
		max, err := s.repo.MaxTicketNumber(ctx, s.ticketFloor)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate ticket number")
		}
		candidate := fmt.Sprintf("%05d", max+1)

		taken, err := s.repo.TicketExists(ctx, candidate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify ticket number")
		}
		if taken {
			lastErr = fmt.Errorf("ticket %s already taken", candidate)
			s.metrics.RecordTicketConflict()
			continue
		}

		citation.TicketNumber = candidate
		lines := cloneViolations(violations)
		err = s.repo.Create(ctx, citation, req.VehicleType, lines)
		if err == nil {
			s.recordAudit(ctx, actorID, meta, models.AuditActionCitationCreate, citation.ID, nil,
				map[string]interface{}{"ticket_number": citation.TicketNumber, "total_fine": citation.TotalFine})
			return s.detail(ctx, citation.ID)
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			lastErr = err
			s.metrics.RecordTicketConflict()
			s.logger.Warn("ticket number collision, retrying allocation",
				zap.String("ticket_number", candidate), zap.Int("attempt", attempt+1))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create citation")
	}

	return nil, appErrors.Wrap(lastErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "could not allocate a unique ticket number, please retry")
}

// Update edits a citation with replace semantics: the driver snapshot,
// vehicle and violation set are rewritten in full and the total fine
// recomputed. The ticket number and status are untouched.
func (s *CitationService) Update(ctx context.Context, id string, req SubmitCitationRequest, actorID string, meta models.LoginRequest) (*models.CitationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid citation payload")
	}
	if err := validateVehicle(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load citation")
	}

	types, err := s.resolveTypes(ctx, req.Violations, actorID, meta)
	if err != nil {
		return nil, err
	}

	driverID, err := s.upsertDriver(ctx, req)
	if err != nil {
		return nil, err
	}

	// The citation being edited is excluded from offense counting so it
	// never counts against itself.
	violations, err := s.priceViolations(ctx, driverID, id, types)
	if err != nil {
		return nil, err
	}

	citation := buildCitation(req, driverID)
	citation.ID = existing.ID
	citation.TicketNumber = existing.TicketNumber
	citation.Status = existing.Status
	citation.Remarks = existing.Remarks
	citation.CreatedAt = existing.CreatedAt

	oldPayload, _ := json.Marshal(map[string]interface{}{"total_fine": existing.TotalFine})

	if err := s.repo.Replace(ctx, citation, req.VehicleType, violations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update citation")
	}

	s.recordAuditRaw(ctx, actorID, meta, models.AuditActionCitationUpdate, citation.ID, oldPayload,
		map[string]interface{}{"total_fine": citation.TotalFine})
	return s.detail(ctx, citation.ID)
}

// Get returns a citation with its vehicle and line items.
func (s *CitationService) Get(ctx context.Context, id string) (*models.CitationDetail, error) {
	return s.detail(ctx, id)
}

// List returns paginated citations and pagination metadata.
func (s *CitationService) List(ctx context.Context, filter models.CitationFilter) ([]models.Citation, *models.Pagination, error) {
	citations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list citations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return citations, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetStatus transitions a citation to a new status. Any recognized
// status is reachable from any other. When a reason is supplied the
// transition is appended to the remarks trail with the acting user;
// without one only the status moves and the remarks stay untouched.
func (s *CitationService) SetStatus(ctx context.Context, id string, req ChangeStatusRequest, actorName, actorID string, meta models.LoginRequest) (*models.CitationDetail, error) {
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	citation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load citation")
	}

	remarks := citation.Remarks
	if strings.TrimSpace(req.Reason) != "" {
		appended := appendStatusRemark(citation.Remarks, citation.Status, req.Status, actorName, req.Reason, time.Now())
		remarks = &appended
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status, remarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update citation status")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"status": citation.Status})
	s.recordAuditRaw(ctx, actorID, meta, models.AuditActionStatusChange, id, oldPayload,
		map[string]interface{}{"status": req.Status, "reason": req.Reason})
	return s.detail(ctx, id)
}

// Delete hard-deletes a citation with its vehicle and line items.
// Admin-only; normal flow voids instead.
func (s *CitationService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	citation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load citation")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete citation")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"ticket_number": citation.TicketNumber, "status": citation.Status})
	s.recordAuditRaw(ctx, actorID, meta, models.AuditActionCitationDelete, id, oldPayload, nil)
	return nil
}

// ExportRows returns the reporting projection for CSV export.
func (s *CitationService) ExportRows(ctx context.Context, filter models.CitationFilter) ([]models.CitationExportRow, error) {
	rows, err := s.repo.ExportRows(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export citations")
	}
	return rows, nil
}

func (s *CitationService) detail(ctx context.Context, id string) (*models.CitationDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "citation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load citation")
	}
	return detail, nil
}

// upsertDriver links the citation to a driver record keyed by license
// number. Unlicensed drivers get no linked record and no offense
// history, so their violations always charge at tier 1.
func (s *CitationService) upsertDriver(ctx context.Context, req SubmitCitationRequest) (*string, error) {
	if req.LicenseNumber == nil || strings.TrimSpace(*req.LicenseNumber) == "" {
		return nil, nil
	}
	license := strings.ToUpper(strings.TrimSpace(*req.LicenseNumber))

	driver, err := s.drivers.FindByLicense(ctx, license)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up driver")
	}

	if driver == nil {
		driver = &models.Driver{ID: uuid.NewString()}
	}
	driver.LastName = req.LastName
	driver.FirstName = req.FirstName
	driver.MiddleInitial = req.MiddleInitial
	driver.Suffix = req.Suffix
	driver.DateOfBirth = req.DateOfBirth
	driver.Age = req.Age
	driver.Zone = req.Zone
	driver.Barangay = req.Barangay
	driver.Municipality = req.Municipality
	driver.Province = req.Province
	driver.LicenseNumber = &license
	driver.LicenseType = req.LicenseType

	if errors.Is(err, sql.ErrNoRows) {
		if err := s.drivers.Create(ctx, driver); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create driver")
		}
	} else {
		if err := s.drivers.Update(ctx, driver); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update driver")
		}
	}

	return &driver.ID, nil
}

// resolveTypes turns the submitted selections into catalog entries,
// preserving submission order and dropping duplicates. Unknown catalog
// IDs are skipped with a warning; free-text names propose a catalog
// entry first. An empty effective selection is rejected here, before
// the driver or citation tables see any write.
func (s *CitationService) resolveTypes(ctx context.Context, selections []ViolationSelection, actorID string, meta models.LoginRequest) ([]models.ViolationType, error) {
	var ids []string
	var freeText []string
	for _, sel := range selections {
		switch {
		case sel.ViolationTypeID != nil && *sel.ViolationTypeID != "":
			ids = append(ids, *sel.ViolationTypeID)
		case sel.FreeTextName != nil && strings.TrimSpace(*sel.FreeTextName) != "":
			freeText = append(freeText, strings.TrimSpace(*sel.FreeTextName))
		}
	}

	seen := make(map[string]struct{})
	var resolved []models.ViolationType

	if len(ids) > 0 {
		found, err := s.catalog.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		known := make(map[string]models.ViolationType, len(found))
		for _, vt := range found {
			known[vt.ID] = vt
		}
		for _, id := range ids {
			vt, ok := known[id]
			if !ok {
				s.logger.Warn("skipping unknown violation type", zap.String("violation_type_id", id))
				continue
			}
			if _, dup := seen[vt.ID]; dup {
				continue
			}
			seen[vt.ID] = struct{}{}
			resolved = append(resolved, vt)
		}
	}

	for _, name := range freeText {
		vt, err := s.catalog.Propose(ctx, ProposeViolationTypeRequest{Name: name}, actorID, meta)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[vt.ID]; dup {
			continue
		}
		seen[vt.ID] = struct{}{}
		resolved = append(resolved, *vt)
	}

	if len(resolved) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a citation must carry at least one violation")
	}

	return resolved, nil
}

// priceViolations charges each resolved type at the driver's offense
// tier. Without a linked driver there is no history, so everything
// charges at tier 1.
func (s *CitationService) priceViolations(ctx context.Context, driverID *string, excludeCitationID string, types []models.ViolationType) ([]models.Violation, error) {
	violations := make([]models.Violation, 0, len(types))
	for _, vt := range types {
		tier := 1
		if driverID != nil {
			prior, err := s.repo.CountPriorOffenses(ctx, *driverID, vt.ID, excludeCitationID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offense tier")
			}
			tier = prior + 1
			if tier > models.MaxOffenseTier {
				tier = models.MaxOffenseTier
			}
		}
		violations = append(violations, models.Violation{
			ViolationTypeID: vt.ID,
			OffenseCount:    tier,
			FineAmount:      vt.FineForTier(tier),
		})
	}

	return violations, nil
}

func (s *CitationService) recordAudit(ctx context.Context, actorID string, meta models.LoginRequest, action, citationID string, oldValues map[string]interface{}, newValues map[string]interface{}) {
	var oldPayload []byte
	if oldValues != nil {
		oldPayload, _ = json.Marshal(oldValues)
	}
	s.recordAuditRaw(ctx, actorID, meta, action, citationID, oldPayload, newValues)
}

func (s *CitationService) recordAuditRaw(ctx context.Context, actorID string, meta models.LoginRequest, action, citationID string, oldPayload []byte, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var newPayload []byte
	if newValues != nil {
		newPayload, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "citations",
		ResourceID: &citationID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record citation audit log", zap.Error(err))
	}
}

func validateVehicle(req SubmitCitationRequest) error {
	if !models.ValidVehicleType(req.VehicleType) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown vehicle type %q", req.VehicleType))
	}
	if req.VehicleType == "Other" && (req.VehicleDescription == nil || strings.TrimSpace(*req.VehicleDescription) == "") {
		return appErrors.Clone(appErrors.ErrValidation, "vehicle description is required for type Other")
	}
	return nil
}

func buildCitation(req SubmitCitationRequest, driverID *string) *models.Citation {
	return &models.Citation{
		DriverID:               driverID,
		LastName:               req.LastName,
		FirstName:              req.FirstName,
		MiddleInitial:          req.MiddleInitial,
		Suffix:                 req.Suffix,
		DateOfBirth:            req.DateOfBirth,
		Age:                    req.Age,
		Zone:                   req.Zone,
		Barangay:               req.Barangay,
		Municipality:           req.Municipality,
		Province:               req.Province,
		LicenseNumber:          req.LicenseNumber,
		LicenseType:            req.LicenseType,
		PlateMVEngineChassisNo: req.PlateMVEngineChassisNo,
		VehicleDescription:     req.VehicleDescription,
		ApprehensionDateTime:   req.ApprehensionDateTime,
		PlaceOfApprehension:    req.PlaceOfApprehension,
	}
}

func cloneViolations(src []models.Violation) []models.Violation {
	out := make([]models.Violation, len(src))
	copy(out, src)
	for i := range out {
		out[i].ID = ""
		out[i].CitationID = ""
	}
	return out
}

// appendStatusRemark appends a status-change entry with its reason to
// the remarks trail. Existing remarks are never rewritten, only
// appended to.
func appendStatusRemark(existing *string, from, to models.CitationStatus, actorName, reason string, at time.Time) string {
	entry := fmt.Sprintf("[%s] Status changed from '%s' to '%s' by %s\nReason: %s",
		at.Format("2006-01-02 15:04:05"), from, to, actorName, strings.TrimSpace(reason))
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return entry
	}
	return *existing + "\n\n" + entry
}
