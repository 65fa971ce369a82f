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
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
)

const catalogVersionKey = "violation_types:version"

type violationTypeRepository interface {
	List(ctx context.Context, filter models.ViolationTypeFilter) ([]models.ViolationType, int, error)
	ListActive(ctx context.Context) ([]models.ViolationType, error)
	FindByID(ctx context.Context, id string) (*models.ViolationType, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.ViolationType, error)
	FindByExactName(ctx context.Context, name string) (*models.ViolationType, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	CountReferences(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, vt *models.ViolationType) error
	Update(ctx context.Context, vt *models.ViolationType) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	GetInt64(ctx context.Context, key string) (int64, error)
}

type catalogAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SaveViolationTypeRequest is the payload for creating or updating a
// catalog entry.
type SaveViolationTypeRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	FineAmount1 float64 `json:"fine_amount_1" validate:"gte=0"`
	FineAmount2 float64 `json:"fine_amount_2" validate:"gte=0"`
	FineAmount3 float64 `json:"fine_amount_3" validate:"gte=0"`
	Active      *bool   `json:"active"`
}

// ProposeViolationTypeRequest names a violation not yet in the catalog.
// The entry is created with the default fine schedule for an admin to
// adjust later.
type ProposeViolationTypeRequest struct {
	Name string `json:"name" validate:"required"`
}

// ViolationTypeService manages the violation catalog and its
// read-through cache.
type ViolationTypeService struct {
	repo      violationTypeRepository
	cache     catalogCache
	audit     catalogAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewViolationTypeService creates an instance of ViolationTypeService.
// cache may be nil, in which case every read goes to the database.
func NewViolationTypeService(repo violationTypeRepository, cache catalogCache, audit catalogAuditRepository, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ViolationTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &ViolationTypeService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns paginated catalog entries and pagination metadata.
func (s *ViolationTypeService) List(ctx context.Context, filter models.ViolationTypeFilter) ([]models.ViolationType, *models.Pagination, error) {
	types, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list violation types")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return types, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListActive returns the active catalog read-through the cache. Cache
// keys carry the catalog version, so a bumped version makes every older
// cached copy unreachable without explicit invalidation.
func (s *ViolationTypeService) ListActive(ctx context.Context) ([]models.ViolationType, error) {
	if s.cache == nil {
		return s.listActiveFromDB(ctx)
	}

	version, err := s.cache.GetInt64(ctx, catalogVersionKey)
	if err != nil {
		s.logger.Warn("catalog version lookup failed, bypassing cache", zap.Error(err))
		return s.listActiveFromDB(ctx)
	}

	key := fmt.Sprintf("violation_types:active:v%d", version)
	var cached []models.ViolationType
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	}
	if hit {
		return cached, nil
	}

	types, err := s.listActiveFromDB(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, types, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return types, nil
}

func (s *ViolationTypeService) listActiveFromDB(ctx context.Context) ([]models.ViolationType, error) {
	types, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active violation types")
	}
	return types, nil
}

// FindByIDs returns catalog entries for the given identifiers. Unknown
// identifiers are silently absent from the result.
func (s *ViolationTypeService) FindByIDs(ctx context.Context, ids []string) ([]models.ViolationType, error) {
	types, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation types")
	}
	return types, nil
}

// Get returns a catalog entry by ID.
func (s *ViolationTypeService) Get(ctx context.Context, id string) (*models.ViolationType, error) {
	vt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}
	return vt, nil
}

// Create adds a catalog entry with an explicit fine schedule.
func (s *ViolationTypeService) Create(ctx context.Context, req SaveViolationTypeRequest, actorID string, meta models.LoginRequest) (*models.ViolationType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation type payload")
	}

	name := strings.TrimSpace(req.Name)
	taken, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check violation type name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "violation type already exists")
	}

	vt := &models.ViolationType{
		ID:          uuid.NewString(),
		Name:        name,
		Description: req.Description,
		FineAmount1: req.FineAmount1,
		FineAmount2: req.FineAmount2,
		FineAmount3: req.FineAmount3,
		Active:      true,
	}
	if req.Active != nil {
		vt.Active = *req.Active
	}

	if err := s.repo.Create(ctx, vt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create violation type")
	}

	s.bumpCatalogVersion(ctx)
	s.recordAudit(ctx, actorID, meta, vt.ID, nil, vt)
	return vt, nil
}

// Propose creates a catalog entry from a free-text violation name using
// the default fine schedule. An existing entry with the same name is
// returned as-is so repeat proposals never fork the catalog.
func (s *ViolationTypeService) Propose(ctx context.Context, req ProposeViolationTypeRequest, actorID string, meta models.LoginRequest) (*models.ViolationType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "violation name is required")
	}

	existing, err := s.repo.FindByExactName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up violation type")
	}

	vt := &models.ViolationType{
		ID:          uuid.NewString(),
		Name:        name,
		FineAmount1: models.DefaultFineFirst,
		FineAmount2: models.DefaultFineSecond,
		FineAmount3: models.DefaultFineThird,
		Active:      true,
	}

	if err := s.repo.Create(ctx, vt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposed violation type")
	}

	s.bumpCatalogVersion(ctx)
	s.recordAudit(ctx, actorID, meta, vt.ID, nil, vt)
	return vt, nil
}

// Update modifies a catalog entry. Fine changes apply to future
// citations only.
func (s *ViolationTypeService) Update(ctx context.Context, id string, req SaveViolationTypeRequest, actorID string, meta models.LoginRequest) (*models.ViolationType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation type payload")
	}

	vt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}

	name := strings.TrimSpace(req.Name)
	taken, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check violation type name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "violation type already exists")
	}

	before := *vt

	vt.Name = name
	vt.Description = req.Description
	vt.FineAmount1 = req.FineAmount1
	vt.FineAmount2 = req.FineAmount2
	vt.FineAmount3 = req.FineAmount3
	if req.Active != nil {
		vt.Active = *req.Active
	}

	if err := s.repo.Update(ctx, vt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update violation type")
	}

	s.bumpCatalogVersion(ctx)
	s.recordAudit(ctx, actorID, meta, vt.ID, &before, vt)
	return vt, nil
}

// Deactivate hides an entry from the submission form while keeping the
// fine history of citations that already charge it.
func (s *ViolationTypeService) Deactivate(ctx context.Context, id string, actorID string, meta models.LoginRequest) (*models.ViolationType, error) {
	vt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}

	before := *vt

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate violation type")
	}
	vt.Active = false

	s.bumpCatalogVersion(ctx)
	s.recordAudit(ctx, actorID, meta, vt.ID, &before, vt)
	return vt, nil
}

// Delete removes an unreferenced catalog entry. An entry charged by any
// citation cannot be deleted; the error carries the reference count and
// points at deactivation instead.
func (s *ViolationTypeService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	vt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}

	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count violation type references")
	}
	if refs > 0 {
		return appErrors.Clone(appErrors.ErrDependency,
			fmt.Sprintf("violation type is referenced by %d citation(s); deactivate it instead", refs))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete violation type")
	}

	s.bumpCatalogVersion(ctx)
	s.recordAudit(ctx, actorID, meta, vt.ID, vt, nil)
	return nil
}

func (s *ViolationTypeService) bumpCatalogVersion(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Increment(ctx, catalogVersionKey); err != nil {
		s.logger.Warn("failed to bump catalog version", zap.Error(err))
	}
}

func (s *ViolationTypeService) recordAudit(ctx context.Context, actorID string, meta models.LoginRequest, typeID string, before, after *models.ViolationType) {
	if s.audit == nil {
		return
	}
	var oldPayload, newPayload []byte
	if before != nil {
		oldPayload, _ = json.Marshal(map[string]interface{}{"name": before.Name, "fines": []float64{before.FineAmount1, before.FineAmount2, before.FineAmount3}, "active": before.Active})
	}
	if after != nil {
		newPayload, _ = json.Marshal(map[string]interface{}{"name": after.Name, "fines": []float64{after.FineAmount1, after.FineAmount2, after.FineAmount3}, "active": after.Active})
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCatalogChange,
		Resource:   "violation_types",
		ResourceID: &typeID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record catalog audit log", zap.Error(err))
	}
}
