package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baggao-mto/citation-api/internal/models"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
)

type officerRepository interface {
	List(ctx context.Context, filter models.OfficerFilter) ([]models.Officer, int, error)
	FindByID(ctx context.Context, id string) (*models.Officer, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, officer *models.Officer) error
	Update(ctx context.Context, officer *models.Officer) error
	Delete(ctx context.Context, id string) error
}

type officerAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SaveOfficerRequest is the payload for creating or updating a roster
// entry.
type SaveOfficerRequest struct {
	OfficerName string  `json:"officer_name" validate:"required"`
	BadgeNumber *string `json:"badge_number"`
	Position    *string `json:"position"`
	Active      *bool   `json:"active"`
}

// OfficerService manages the apprehending-officer roster.
type OfficerService struct {
	repo      officerRepository
	audit     officerAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfficerService creates an instance of OfficerService.
func NewOfficerService(repo officerRepository, audit officerAuditRepository, validate *validator.Validate, logger *zap.Logger) *OfficerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OfficerService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns paginated officers and pagination metadata.
func (s *OfficerService) List(ctx context.Context, filter models.OfficerFilter) ([]models.Officer, *models.Pagination, error) {
	officers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list officers")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return officers, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns an officer by ID.
func (s *OfficerService) Get(ctx context.Context, id string) (*models.Officer, error) {
	officer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "officer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer")
	}
	return officer, nil
}

// Create adds a roster entry. Names are unique case-insensitively.
func (s *OfficerService) Create(ctx context.Context, req SaveOfficerRequest, actorID string, meta models.LoginRequest) (*models.Officer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid officer payload")
	}

	name := strings.TrimSpace(req.OfficerName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "officer name is required")
	}

	taken, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check officer name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "officer already exists")
	}

	officer := &models.Officer{
		ID:          uuid.NewString(),
		OfficerName: name,
		BadgeNumber: req.BadgeNumber,
		Position:    req.Position,
		Active:      true,
	}
	if req.Active != nil {
		officer.Active = *req.Active
	}

	if err := s.repo.Create(ctx, officer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create officer")
	}

	s.recordAudit(ctx, actorID, meta, officer.ID, nil, officer)
	return officer, nil
}

// Update modifies a roster entry.
func (s *OfficerService) Update(ctx context.Context, id string, req SaveOfficerRequest, actorID string, meta models.LoginRequest) (*models.Officer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid officer payload")
	}

	officer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "officer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer")
	}

	name := strings.TrimSpace(req.OfficerName)
	taken, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check officer name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "officer already exists")
	}

	before := *officer

	officer.OfficerName = name
	officer.BadgeNumber = req.BadgeNumber
	officer.Position = req.Position
	if req.Active != nil {
		officer.Active = *req.Active
	}

	if err := s.repo.Update(ctx, officer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update officer")
	}

	s.recordAudit(ctx, actorID, meta, officer.ID, &before, officer)
	return officer, nil
}

// Delete removes a roster entry. Citations keep the officer's name
// inline, so history is unaffected.
func (s *OfficerService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	officer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "officer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete officer")
	}

	s.recordAudit(ctx, actorID, meta, officer.ID, officer, nil)
	return nil
}

func (s *OfficerService) recordAudit(ctx context.Context, actorID string, meta models.LoginRequest, officerID string, before, after *models.Officer) {
	if s.audit == nil {
		return
	}
	var oldPayload, newPayload []byte
	if before != nil {
		oldPayload, _ = json.Marshal(map[string]interface{}{"officer_name": before.OfficerName, "active": before.Active})
	}
	if after != nil {
		newPayload, _ = json.Marshal(map[string]interface{}{"officer_name": after.OfficerName, "active": after.Active})
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionOfficerChange,
		Resource:   "officers",
		ResourceID: &officerID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record officer audit log", zap.Error(err))
	}
}
