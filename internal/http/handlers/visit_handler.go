// Technician visit HTTP handlers.
//
// This file exposes REST endpoints for the nested visit state machine:
//   - POST /requests/{id}/visits  (schedule)
//   - GET  /requests/{id}/visits  (scheduling history)
//   - GET  /visits/{id}           (fetch)
//   - PUT  /visits/{id}/status    (advance the chain)
//   - POST /visits/{id}/confirm   (resident confirmation)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/services"
)

// ScheduleVisitPayload is the JSON payload for proposing a visit.
type ScheduleVisitPayload struct {
	// ProviderID must match the provider assigned to the request.
	ProviderID     string     `json:"provider_id" binding:"required" example:"6c1f2d3e-0b1a-4c5d-8e9f-0123456789ab"`
	TechnicianName string     `json:"technician_name" example:"A. Papadopoulos"`
	ProposedTime   *time.Time `json:"proposed_time,omitempty"`
}

// UpdateVisitStatusPayload is the JSON payload for advancing a visit.
type UpdateVisitStatusPayload struct {
	// Status is the target visit status (single forward step, or cancelled).
	Status string `json:"status" binding:"required" example:"on_the_way"`
	Notes  string `json:"notes" example:"eta 20 minutes"`
}

// ScheduleVisit godoc
// @ID          scheduleVisit
// @Summary     Schedule a technician visit
// @Description Proposes a visit for an assigned request. At most one visit per request
// @Description may be active (non-terminal) at a time.
// @Tags        Visits
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ScheduleVisitPayload  true  "Visit payload"
//
// @Success     201  {object} domain.Visit
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Provider not assigned to this request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Failure     409  {object} handlers.ErrorResponse "Another visit is active or request not assigned"
// @Router      /requests/{id}/visits [post]
func (h *Handlers) ScheduleVisit(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	var req ScheduleVisitPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider_id required")
		return
	}

	v, err := h.visitSvc.Schedule(c.Request.Context(), id, req.ProviderID, req.TechnicianName, req.ProposedTime)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, v)
	case errors.Is(err, services.ErrVisitProviderMismatch):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "provider is not assigned to this request")
	case errors.Is(err, services.ErrConflictingVisit):
		fail(c, http.StatusConflict, ErrCodeConflict, "another visit is already active for this request")
	default:
		failRequestErr(c, err)
	}
}

// ListVisits godoc
// @ID          listVisits
// @Summary     List all visits of a request
// @Tags        Visits
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {array}  domain.Visit
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Router      /requests/{id}/visits [get]
func (h *Handlers) ListVisits(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	visits, err := h.visitSvc.ListByRequest(c.Request.Context(), id)
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, visits)
}

// GetVisit godoc
// @ID          getVisit
// @Summary     Fetch a visit
// @Tags        Visits
// @Produce     json
//
// @Param       id  path  string  true  "Visit ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Visit
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Visit not found"
// @Router      /visits/{id} [get]
func (h *Handlers) GetVisit(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "visit id must be a UUID")
		return
	}
	v, err := h.visitSvc.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrVisitNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "visit not found")
		return
	}
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, v)
}

// UpdateVisitStatus godoc
// @ID          updateVisitStatus
// @Summary     Advance a visit along its status chain
// @Description Visits move strictly forward (scheduled → on_the_way → arrived → working
// @Description → completed); cancellation is allowed from any non-terminal status.
// @Description Reaching "working" or "completed" advances the owning request when possible.
// @Tags        Visits
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Visit ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateVisitStatusPayload  true  "Target status"
//
// @Success     200  {object} domain.Visit
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Visit not found"
// @Failure     409  {object} handlers.ErrorResponse "Illegal chain move"
// @Router      /visits/{id}/status [put]
func (h *Handlers) UpdateVisitStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "visit id must be a UUID")
		return
	}
	var req UpdateVisitStatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	target, okParse := domain.ParseVisitStatus(req.Status)
	if !okParse {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown visit status")
		return
	}

	v, err := h.visitSvc.RecordStatus(c.Request.Context(), id, target, req.Notes)
	switch {
	case err == nil:
		ok(c, http.StatusOK, v)
	case errors.Is(err, services.ErrVisitNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "visit not found")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "illegal visit status move")
	default:
		failRequestErr(c, err)
	}
}

// ConfirmVisit godoc
// @ID          confirmVisit
// @Summary     Confirm a visit as the resident
// @Description Confirmation is independent of the status chain.
// @Tags        Visits
// @Produce     json
//
// @Param       id  path  string  true  "Visit ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Visit
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Visit not found"
// @Router      /visits/{id}/confirm [post]
func (h *Handlers) ConfirmVisit(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "visit id must be a UUID")
		return
	}
	v, err := h.visitSvc.Confirm(c.Request.Context(), id)
	if errors.Is(err, services.ErrVisitNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "visit not found")
		return
	}
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, v)
}
