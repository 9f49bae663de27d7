package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawhaven/petclass-api/internal/service"
	appErrors "github.com/pawhaven/petclass-api/pkg/errors"
	"github.com/pawhaven/petclass-api/pkg/response"
)

// WaitlistHandler exposes waitlist endpoints.
type WaitlistHandler struct {
	waitlist *service.WaitlistService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// Join godoc
// @Summary Join a class waitlist
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param payload body service.JoinWaitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /waitlist [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	var req service.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.waitlist.Join(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Leave godoc
// @Summary Leave a class waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 204
// @Router /waitlist/{id} [delete]
func (h *WaitlistHandler) Leave(c *gin.Context) {
	if err := h.waitlist.Leave(c.Request.Context(), tenantFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
