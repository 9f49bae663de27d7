package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petclass-api/internal/models"
	"github.com/pawhaven/petclass-api/internal/service"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
	"github.com/pawhaven/petclass-api/pkg/response"
)

// ClassHandler exposes training class endpoints.
type ClassHandler struct {
	classes  *service.ClassService
	waitlist *service.WaitlistService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService, waitlist *service.WaitlistService) *ClassHandler {
	return &ClassHandler{classes: classes, waitlist: waitlist}
}

// List godoc
// @Summary List training classes
// @Tags Classes
// @Produce json
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.classes.List(c.Request.Context(), tenantFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Create godoc
// @Summary Create a training class with its session schedule
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Get godoc
// @Summary Get a training class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Sessions godoc
// @Summary List a class's session schedule
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/sessions [get]
func (h *ClassHandler) Sessions(c *gin.Context) {
	sessions, err := h.classes.ListSessions(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Delete godoc
// @Summary Delete a class without enrollments
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), tenantFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Waitlist godoc
// @Summary List a class's waitlist in FIFO order
// @Tags Waitlist
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/waitlist [get]
func (h *ClassHandler) Waitlist(c *gin.Context) {
	entries, err := h.waitlist.List(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportRoster godoc
// @Summary Export the active roster as CSV or PDF
// @Tags Classes
// @Produce text/csv
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /classes/{id}/roster/export [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	classID := c.Param("id")
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.classes.ExportRoster(c.Request.Context(), tenantFromContext(c), classID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.%s"`, classID, ext))
	c.Data(http.StatusOK, contentType, payload)
}
