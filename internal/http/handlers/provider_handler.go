// Provider directory HTTP handlers.
//
//   - GET /providers       (list, sortable)
//   - GET /providers/{id}  (fetch)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amarati/go-maintenance-backend/internal/services"
)

// ListProviders godoc
// @ID          listProviders
// @Summary     List service providers
// @Description Returns all providers sorted descending by the given attribute.
// @Description Valid sort keys: rating, total_jobs, avg_response_time_hours. Defaults to rating.
// @Tags        Providers
// @Produce     json
//
// @Param       sort_by  query  string  false "Sort attribute"  example(rating)
//
// @Success     200  {array}  domain.ProviderProfile
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /providers [get]
func (h *Handlers) ListProviders(c *gin.Context) {
	providers, err := h.provSvc.List(c.Request.Context(), c.Query("sort_by"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, providers)
}

// GetProvider godoc
// @ID          getProvider
// @Summary     Fetch a provider profile
// @Tags        Providers
// @Produce     json
//
// @Param       id  path  string  true  "Provider ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.ProviderProfile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Provider not found"
// @Router      /providers/{id} [get]
func (h *Handlers) GetProvider(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider id must be a UUID")
		return
	}
	p, err := h.provSvc.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrProviderNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "provider not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}
