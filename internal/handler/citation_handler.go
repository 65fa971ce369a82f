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

// CitationHandler wires citation workflows to HTTP routes.
type CitationHandler struct {
	citations *service.CitationService
	exports   *service.ExportService
}

// NewCitationHandler constructs a new CitationHandler.
func NewCitationHandler(citations *service.CitationService, exports *service.ExportService) *CitationHandler {
	return &CitationHandler{citations: citations, exports: exports}
}

func citationFilterFromQuery(c *gin.Context) models.CitationFilter {
	filter := models.CitationFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if status := c.Query("status"); status != "" {
		val := models.CitationStatus(status)
		filter.Status = &val
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// List godoc
// @Summary List citations
// @Tags Citations
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by ticket, driver name, license or plate"
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /citations [get]
func (h *CitationHandler) List(c *gin.Context) {
	citations, pagination, err := h.citations.List(c.Request.Context(), citationFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, citations, pagination)
}

// Get godoc
// @Summary Get a citation with its violations
// @Tags Citations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Citation ID"
// @Success 200 {object} response.Envelope
// @Router /citations/{id} [get]
func (h *CitationHandler) Get(c *gin.Context) {
	detail, err := h.citations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// NextTicket godoc
// @Summary Preview the next ticket number
// @Tags Citations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /citations/next-ticket [get]
func (h *CitationHandler) NextTicket(c *gin.Context) {
	ticket, err := h.citations.NextTicketNumber(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ticket_number": ticket}, nil)
}

// Create godoc
// @Summary Submit a citation
// @Tags Citations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SubmitCitationRequest true "Citation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Ticket allocation conflict, retry"
// @Router /citations [post]
func (h *CitationHandler) Create(c *gin.Context) {
	var req service.SubmitCitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid citation payload"))
		return
	}

	detail, err := h.citations.Create(c.Request.Context(), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Edit a citation (full replace)
// @Tags Citations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Citation ID"
// @Param payload body service.SubmitCitationRequest true "Citation payload"
// @Success 200 {object} response.Envelope
// @Router /citations/{id} [put]
func (h *CitationHandler) Update(c *gin.Context) {
	var req service.SubmitCitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid citation payload"))
		return
	}

	detail, err := h.citations.Update(c.Request.Context(), c.Param("id"), req, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Change a citation's lifecycle status
// @Tags Citations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Citation ID"
// @Param payload body service.ChangeStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Router /citations/{id}/status [patch]
func (h *CitationHandler) UpdateStatus(c *gin.Context) {
	var req service.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	actorName := "system"
	if claims := claimsFromContext(c); claims != nil {
		actorName = claims.Username
		if claims.FullName != "" {
			actorName = claims.FullName
		}
	}

	detail, err := h.citations.SetStatus(c.Request.Context(), c.Param("id"), req, actorName, actorID(c), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Hard-delete a citation
// @Tags Citations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Citation ID"
// @Success 204
// @Router /citations/{id} [delete]
func (h *CitationHandler) Delete(c *gin.Context) {
	if err := h.citations.Delete(c.Request.Context(), c.Param("id"), actorID(c), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export citations as CSV
// @Tags Citations
// @Produce text/csv
// @Security BearerAuth
// @Param search query string false "Search filter"
// @Param status query string false "Status filter"
// @Success 200 {string} string "CSV content"
// @Router /citations/export [get]
func (h *CitationHandler) Export(c *gin.Context) {
	data, filename, err := h.exports.CitationsCSV(c.Request.Context(), citationFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Ticket godoc
// @Summary Render a citation as a printable PDF ticket
// @Tags Citations
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Citation ID"
// @Success 200 {string} string "PDF content"
// @Router /citations/{id}/ticket [get]
func (h *CitationHandler) Ticket(c *gin.Context) {
	data, filename, err := h.exports.Ticket(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
