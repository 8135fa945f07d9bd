// Community vote HTTP handlers.
//
// This file exposes REST endpoints for community voting:
//   - POST /requests/{id}/votes          (cast or replace a vote)
//   - GET  /requests/{id}/votes          (running tally)
//   - POST /requests/{id}/votes/resolve  (apply the resolution policy)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amarati/go-maintenance-backend/internal/services"
)

// CastVotePayload is the JSON payload for casting a vote.
type CastVotePayload struct {
	// Approve is true for a vote in favor. Required; a pointer distinguishes
	// an explicit false from an absent field.
	Approve *bool `json:"approve" binding:"required" example:"true"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Cast or replace a vote on a community request
// @Description Voting again replaces the earlier vote. Only requests in status "voting" accept votes.
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Voter ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Request ID (UUID)"       format(uuid)
// @Param       body       body    handlers.CastVotePayload  true  "Vote payload"
//
// @Success     200  {object} services.Tally
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Failure     409  {object} handlers.ErrorResponse "Request not open for voting"
// @Router      /requests/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	var req CastVotePayload
	if err := c.ShouldBindJSON(&req); err != nil || req.Approve == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "approve required")
		return
	}

	tally, err := h.voteSvc.Cast(c.Request.Context(), actor(c).ID, id, *req.Approve)
	switch {
	case err == nil:
		ok(c, http.StatusOK, tally)
	case errors.Is(err, services.ErrVotingClosed):
		fail(c, http.StatusConflict, ErrCodeVotingClosed, "request is not open for voting")
	default:
		failRequestErr(c, err)
	}
}

// GetTally godoc
// @ID          getVoteTally
// @Summary     Read the running vote tally of a request
// @Tags        Votes
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object} services.Tally
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Router      /requests/{id}/votes [get]
func (h *Handlers) GetTally(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	// The tally of an unknown request is indistinguishable from an empty one,
	// so existence is checked first for a proper 404.
	if _, err := h.reqSvc.Get(c.Request.Context(), id); failRequestErr(c, err) {
		return
	}
	tally, err := h.voteSvc.CurrentTally(c.Request.Context(), id)
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, tally)
}

// ResolveVote godoc
// @ID          resolveVote
// @Summary     Resolve the community vote on a request
// @Description Applies the resolution policy: majority wins among votes cast, ties reject,
// @Description and an unresolved vote past its deadline rejects. Below quorum before the
// @Description deadline, nothing changes and 409 quorum_not_met is returned.
// @Tags        Votes
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.MaintenanceRequest
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Failure     409  {object} handlers.ErrorResponse "Quorum not met or voting closed"
// @Router      /requests/{id}/votes/resolve [post]
func (h *Handlers) ResolveVote(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}

	r, err := h.voteSvc.Resolve(c.Request.Context(), id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, r)
	case errors.Is(err, services.ErrVotingClosed):
		fail(c, http.StatusConflict, ErrCodeVotingClosed, "request is not open for voting")
	case errors.Is(err, services.ErrQuorumNotMet):
		fail(c, http.StatusConflict, ErrCodeQuorumNotMet, "vote quorum not met")
	default:
		failRequestErr(c, err)
	}
}
