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

// OfficerHandler wires the officer roster to HTTP routes.
type OfficerHandler struct {
	officers *service.OfficerService
}

// NewOfficerHandler constructs a new OfficerHandler.
func NewOfficerHandler(officers *service.OfficerService) *OfficerHandler {
	return &OfficerHandler{officers: officers}
}

// List godoc
// @Summary List apprehending officers
// @Tags Officers
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name or badge number"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /officers [get]
func (h *OfficerHandler) List(c *gin.Context) {
	filter := models.OfficerFilter{
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

	officers, pagination, err := h.officers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, officers, pagination)
}

// Get godoc
// @Summary Get an officer roster entry
// @Tags Officers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Officer ID"
// @Success 200 {object} response.Envelope
// @Router /officers/{id} [get]
func (h *OfficerHandler) Get(c *gin.Context) {
	officer, err := h.officers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, officer, nil)
}

// Create godoc
// @Summary Add an officer to the roster
// @Tags Officers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SaveOfficerRequest true "Officer payload"
// @Success 201 {object} response.Envelope
// @Router /officers [post]
func (h *OfficerHandler) Create(c *gin.Context) {
	var req service.SaveOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid officer payload"))
		return
	}

	officer, err := h.officers.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, officer)
}

// Update godoc
// @Summary Update an officer roster entry
// @Tags Officers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Officer ID"
// @Param payload body service.SaveOfficerRequest true "Officer payload"
// @Success 200 {object} response.Envelope
// @Router /officers/{id} [put]
func (h *OfficerHandler) Update(c *gin.Context) {
	var req service.SaveOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid officer payload"))
		return
	}

	officer, err := h.officers.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, officer, nil)
}

// Delete godoc
// @Summary Remove an officer from the roster
// @Tags Officers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Officer ID"
// @Success 204
// @Router /officers/{id} [delete]
func (h *OfficerHandler) Delete(c *gin.Context) {
	if err := h.officers.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
