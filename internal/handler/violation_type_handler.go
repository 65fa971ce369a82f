package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/baggao-mto/citation-api/internal/models"
	"github.com/baggao-mto/citation-api/internal/service"
	appErrors "github.com/baggao-mto/citation-api/pkg/errors"
	"github.com/baggao-mto/citation-api/pkg/response"
)

// ViolationTypeHandler wires the violation catalog to HTTP routes.
type ViolationTypeHandler struct {
	catalog *service.ViolationTypeService
}

// NewViolationTypeHandler constructs a new ViolationTypeHandler.
func NewViolationTypeHandler(catalog *service.ViolationTypeService) *ViolationTypeHandler {
	return &ViolationTypeHandler{catalog: catalog}
}

// List godoc
// @Summary List violation types
// @Description Without filters, returns the cached active catalog.
// @Tags ViolationTypes
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /violation-types [get]
func (h *ViolationTypeHandler) List(c *gin.Context) {
	// The bare listing is the submission form's hot path and served from
	// the cache; any filter falls through to a database query.
	if c.Query("search") == "" && c.Query("active") == "" && c.Query("page") == "" {
		types, err := h.catalog.ListActive(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, types, nil)
		return
	}

	filter := models.ViolationTypeFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if active := c.Query("active"); active != "" {
		switch strings.ToLower(active) {
		case "true":
			val := true
			filter.Active = &val
		case "false":
			val := false
			filter.Active = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	types, pagination, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, pagination)
}

// Get godoc
// @Summary Get a violation type
// @Tags ViolationTypes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Violation type ID"
// @Success 200 {object} response.Envelope
// @Router /violation-types/{id} [get]
func (h *ViolationTypeHandler) Get(c *gin.Context) {
	vt, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vt, nil)
}

// Create godoc
// @Summary Create a violation type
// @Tags ViolationTypes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SaveViolationTypeRequest true "Violation type payload"
// @Success 201 {object} response.Envelope
// @Router /violation-types [post]
func (h *ViolationTypeHandler) Create(c *gin.Context) {
	var req service.SaveViolationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid violation type payload"))
		return
	}

	vt, err := h.catalog.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vt)
}

// Propose godoc
// @Summary Propose a violation type from a free-text name
// @Description Creates the entry with the default fine schedule, or
// @Description returns the existing entry with the same name.
// @Tags ViolationTypes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ProposeViolationTypeRequest true "Proposal"
// @Success 201 {object} response.Envelope
// @Router /violation-types/propose [post]
func (h *ViolationTypeHandler) Propose(c *gin.Context) {
	var req service.ProposeViolationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}

	vt, err := h.catalog.Propose(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vt)
}

// Update godoc
// @Summary Update a violation type
// @Tags ViolationTypes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Violation type ID"
// @Param payload body service.SaveViolationTypeRequest true "Violation type payload"
// @Success 200 {object} response.Envelope
// @Router /violation-types/{id} [put]
func (h *ViolationTypeHandler) Update(c *gin.Context) {
	var req service.SaveViolationTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid violation type payload"))
		return
	}

	vt, err := h.catalog.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vt, nil)
}

// Deactivate godoc
// @Summary Deactivate a violation type
// @Tags ViolationTypes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Violation type ID"
// @Success 200 {object} response.Envelope
// @Router /violation-types/{id}/deactivate [patch]
func (h *ViolationTypeHandler) Deactivate(c *gin.Context) {
	vt, err := h.catalog.Deactivate(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vt, nil)
}

// Delete godoc
// @Summary Delete an unreferenced violation type
// @Tags ViolationTypes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Violation type ID"
// @Success 204
// @Failure 409 {object} response.Envelope "Referenced by citations"
// @Router /violation-types/{id} [delete]
func (h *ViolationTypeHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
