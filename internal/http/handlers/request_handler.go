// Maintenance request HTTP handlers.
//
// This file exposes REST endpoints for the request lifecycle:
//   - POST /requests              (submit, idempotent via Idempotency-Key)
//   - GET  /requests              (list, paginated, ETag support)
//   - GET  /requests/my           (submitter-scoped list)
//   - GET  /requests/{id}         (fetch)
//   - GET  /requests/{id}/history (audit trail)
//   - PUT  /requests/{id}/status  (caller-driven transition)
//   - POST /requests/{id}/assign  (provider assignment)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/repo"
	"github.com/amarati/go-maintenance-backend/internal/services"
	"github.com/amarati/go-maintenance-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RequestLifecycle defines the lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RequestLifecycle interface {
	// Create submits a new maintenance request on behalf of the actor.
	Create(ctx context.Context, actor services.Actor, in services.CreateRequestInput) (*domain.MaintenanceRequest, error)
	// Get fetches a request by ID.
	Get(ctx context.Context, id string) (*domain.MaintenanceRequest, error)
	// List returns a page of requests and the total count.
	List(ctx context.Context, statusFilter string, page, pageSize int) ([]domain.MaintenanceRequest, int64, error)
	// ListByUser returns all requests submitted by userID.
	ListByUser(ctx context.Context, userID string) ([]domain.MaintenanceRequest, error)
	// History returns the full status log of a request.
	History(ctx context.Context, requestID string) ([]domain.StatusLogEntry, error)
	// Transition moves a request to the target status.
	Transition(ctx context.Context, actor services.Actor, requestID string, target domain.RequestStatus, notes string) (*domain.MaintenanceRequest, error)
	// AssignProvider assigns a provider to an approved request.
	AssignProvider(ctx context.Context, actor services.Actor, requestID, providerID string, override bool) (*domain.MaintenanceRequest, error)
}

// VoteCaster defines community vote operations.
type VoteCaster interface {
	// Cast upserts the actor's vote and returns the running tally.
	Cast(ctx context.Context, voterID, requestID string, approve bool) (services.Tally, error)
	// CurrentTally returns the running tally.
	CurrentTally(ctx context.Context, requestID string) (services.Tally, error)
	// Resolve applies the resolution policy to a request in voting.
	Resolve(ctx context.Context, requestID string) (*domain.MaintenanceRequest, error)
}

// VisitTracker defines technician visit operations.
type VisitTracker interface {
	// Schedule creates a visit proposal for an assigned request.
	Schedule(ctx context.Context, requestID, providerID, technicianName string, proposedTime *time.Time) (*domain.Visit, error)
	// Get fetches a visit by ID.
	Get(ctx context.Context, visitID string) (*domain.Visit, error)
	// ListByRequest returns all visits of a request.
	ListByRequest(ctx context.Context, requestID string) ([]domain.Visit, error)
	// RecordStatus advances a visit along its status chain.
	RecordStatus(ctx context.Context, visitID string, target domain.VisitStatus, notes string) (*domain.Visit, error)
	// Confirm marks a visit as confirmed by the resident.
	Confirm(ctx context.Context, visitID string) (*domain.Visit, error)
}

// ProviderDirectory defines read access to the provider directory.
type ProviderDirectory interface {
	// List returns providers sorted by the given attribute.
	List(ctx context.Context, sortBy string) ([]domain.ProviderProfile, error)
	// Get fetches a provider profile by ID.
	Get(ctx context.Context, id string) (*domain.ProviderProfile, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for requests, votes, visits, and providers.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	reqSvc   RequestLifecycle
	voteSvc  VoteCaster
	visitSvc VisitTracker
	provSvc  ProviderDirectory
}

// New constructs and returns a Handlers instance bound to the given services.
func New(reqSvc RequestLifecycle, voteSvc VoteCaster, visitSvc VisitTracker, provSvc ProviderDirectory) *Handlers {
	return &Handlers{reqSvc: reqSvc, voteSvc: voteSvc, visitSvc: visitSvc, provSvc: provSvc}
}

// actor extracts the acting identity from the Gin context. Identity is trusted
// headers in this deployment: "X-User-ID" plus "X-User-Role"
// (resident|admin|manager|provider). Missing or unknown values fall back to a
// demo resident.
func actor(c *gin.Context) services.Actor {
	a := services.Actor{ID: "demo-user", Role: services.RoleResident}
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			a.ID = s
		}
	}
	if c == nil || c.Request == nil {
		return a
	}
	if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" && a.ID == "demo-user" {
		a.ID = h
	}
	switch strings.ToLower(strings.TrimSpace(c.GetHeader("X-User-Role"))) {
	case services.RoleAdmin:
		a.Role = services.RoleAdmin
	case services.RoleManager:
		a.Role = services.RoleManager
	case services.RoleProvider:
		a.Role = services.RoleProvider
	}
	return a
}

//
// DTOs
//

// CreateRequestPayload is the JSON payload for submitting a request.
type CreateRequestPayload struct {
	// Title optionally names the request; the description opening is used when empty.
	Title string `json:"title" example:"Leaking kitchen faucet"`
	// Description is the problem statement. It must be non-empty.
	Description string `json:"description" binding:"required,min=1" example:"The kitchen faucet has been dripping for a week"`
	// Category is one of: plumbing, electrical, hvac, cleaning, elevator, structural, other.
	Category string `json:"category" binding:"required" example:"plumbing"`
	// RequestType is "personal" or "community".
	RequestType string `json:"request_type" binding:"required" example:"personal"`
	// Urgency is low, normal, or urgent. Defaults to normal.
	Urgency           string     `json:"urgency" example:"normal"`
	BuildingID        string     `json:"building_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	UnitID            *string    `json:"unit_id,omitempty"`
	PreferredDate     *time.Time `json:"preferred_date,omitempty"`
	PreferredTimeSlot string     `json:"preferred_time_slot,omitempty" example:"morning"`
}

// UpdateStatusPayload is the JSON payload for a caller-driven transition.
type UpdateStatusPayload struct {
	// Status is the target lifecycle status.
	Status string `json:"status" binding:"required" example:"under_review"`
	// Notes optionally annotates the audit entry.
	Notes string `json:"notes" example:"triaged by front desk"`
}

// AssignProviderPayload is the JSON payload for provider assignment.
type AssignProviderPayload struct {
	ProviderID string `json:"provider_id" binding:"required" example:"6c1f2d3e-0b1a-4c5d-8e9f-0123456789ab"`
	// Override permits assigning an unverified provider to a personal request.
	Override bool `json:"override" example:"false"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRequestsResponse wraps a page of requests and pagination information.
type ListRequestsResponse struct {
	Requests   []domain.MaintenanceRequest `json:"requests"`
	Pagination Pagination                  `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// idempotencyKey reads the validated Idempotency-Key for this request, falling
// back to the raw header when no middleware stashed it.
func idempotencyKey(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v
	}
	return ""
}

// lifecycleDB exposes the concrete service's DB handle for best-effort
// transport concerns (ETag stats, idempotency records). Returns nil when the
// handler is wired to a fake.
func (h *Handlers) lifecycleDB() *gorm.DB {
	if svc, ok := h.reqSvc.(*services.RequestService); ok {
		return svc.DB
	}
	return nil
}

// failRequestErr translates common lifecycle errors into HTTP responses.
// Returns false when err is nil.
func failRequestErr(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrRequestNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "maintenance request not found")
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "operation not permitted for this actor")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "requested status change is not allowed")
	case errors.Is(err, services.ErrConcurrentModification):
		fail(c, http.StatusConflict, ErrCodeConcurrentModification, "request was modified concurrently, retry")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
	return true
}

//
// Handlers
//

// CreateRequest godoc
// @ID          createRequest
// @Summary     Submit a maintenance request
// @Description Creates a request in status "submitted" and records the initial audit entry.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       X-User-Role      header  string  false "Role: resident|admin|manager|provider"  example(resident)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.CreateRequestPayload  true  "Request payload"
//
// @Success     201  {object}  domain.MaintenanceRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	ctx := c.Request.Context()
	who := actor(c)

	var req CreateRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Idempotency (replay path) – best effort.
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if db := h.lifecycleDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, who.ID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := h.reqSvc.Get(ctx, rec.RequestID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, prev)
					return
				}
			}
		}
	}

	r, err := h.reqSvc.Create(ctx, who, services.CreateRequestInput{
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		RequestType:       req.RequestType,
		Urgency:           req.Urgency,
		BuildingID:        req.BuildingID,
		UnitID:            req.UnitID,
		PreferredDate:     req.PreferredDate,
		PreferredTimeSlot: req.PreferredTimeSlot,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyDescription),
			errors.Is(err, services.ErrUnknownCategory),
			errors.Is(err, services.ErrUnknownRequestType),
			errors.Is(err, services.ErrUnknownUrgency),
			errors.Is(err, services.ErrMissingBuilding):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if db := h.lifecycleDB(); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, who.ID, idemKey, r.ID, http.StatusCreated, 24*time.Hour)
		}
	}

	ok(c, http.StatusCreated, r)
}

// ListRequests godoc
// @ID          listRequests
// @Summary     List maintenance requests (paginated)
// @Description Returns a page of requests, optionally filtered by status.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Requests
// @Produce     json
//
// @Param       status         query   string  false "Exact status filter"          example(submitted)
// @Param       page           query   int     false "Page number"                   minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"                minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListRequestsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	ctx := c.Request.Context()
	statusFilter := strings.TrimSpace(c.Query("status"))
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.lifecycleDB(); db != nil {
		var status *domain.RequestStatus
		parsedOK := statusFilter == ""
		if statusFilter != "" {
			if st, okParse := domain.ParseRequestStatus(statusFilter); okParse {
				status, parsedOK = &st, true
			}
		}
		if parsedOK {
			count, maxTS, err := repo.RequestsStats(ctx, db, status)
			if err == nil {
				var ts int64
				if maxTS != nil {
					ts = maxTS.Unix()
				}
				etag := fmt.Sprintf(`W/"requests:%s:%d:%d"`, statusFilter, count, ts)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	items, total, err := h.reqSvc.List(ctx, statusFilter, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUnknownStatus) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListRequestsResponse{
		Requests: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// MyRequests godoc
// @ID          myRequests
// @Summary     List the caller's own requests
// @Tags        Requests
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}  domain.MaintenanceRequest
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /requests/my [get]
func (h *Handlers) MyRequests(c *gin.Context) {
	items, err := h.reqSvc.ListByUser(c.Request.Context(), actor(c).ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// GetRequest godoc
// @ID          getRequest
// @Summary     Fetch a maintenance request
// @Tags        Requests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.MaintenanceRequest
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Router      /requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	r, err := h.reqSvc.Get(c.Request.Context(), id)
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, r)
}

// GetHistory godoc
// @ID          getRequestHistory
// @Summary     Fetch the status audit trail of a request
// @Description Returns every status change in order, starting with the submission entry.
// @Tags        Requests
// @Produce     json
//
// @Param       id  path  string  true  "Request ID (UUID)"  format(uuid)
//
// @Success     200  {array}  domain.StatusLogEntry
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Router      /requests/{id}/history [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	log, err := h.reqSvc.History(c.Request.Context(), id)
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, log)
}

// UpdateStatus godoc
// @ID          updateRequestStatus
// @Summary     Transition a request to a new status
// @Description Caller-driven lifecycle moves only. Assignment, vote outcomes, and
// @Description visit-driven progress have their own endpoints.
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID    header  string  false "User ID (demo header)"
// @Param       X-User-Role  header  string  false "Role: resident|admin|manager|provider"
// @Param       id           path    string  true  "Request ID (UUID)"  format(uuid)
// @Param       body         body    handlers.UpdateStatusPayload  true  "Target status"
//
// @Success     200  {object} domain.MaintenanceRequest
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Request not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition or write race"
// @Router      /requests/{id}/status [put]
func (h *Handlers) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	var req UpdateStatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	target, okParse := domain.ParseRequestStatus(req.Status)
	if !okParse {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}

	r, err := h.reqSvc.Transition(c.Request.Context(), actor(c), id, target, req.Notes)
	if failRequestErr(c, err) {
		return
	}
	ok(c, http.StatusOK, r)
}

// AssignProvider godoc
// @ID          assignProvider
// @Summary     Assign a provider to an approved request
// @Tags        Requests
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID    header  string  false "User ID (demo header)"
// @Param       X-User-Role  header  string  false "Role: resident|admin|manager|provider"
// @Param       id           path    string  true  "Request ID (UUID)"  format(uuid)
// @Param       body         body    handlers.AssignProviderPayload  true  "Assignment payload"
//
// @Success     200  {object} domain.MaintenanceRequest
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Request or provider not found"
// @Failure     409  {object} handlers.ErrorResponse "Invalid transition or unverified provider"
// @Router      /requests/{id}/assign [post]
func (h *Handlers) AssignProvider(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request id must be a UUID")
		return
	}
	var req AssignProviderPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider_id required")
		return
	}

	r, err := h.reqSvc.AssignProvider(c.Request.Context(), actor(c), id, req.ProviderID, req.Override)
	switch {
	case err == nil:
		ok(c, http.StatusOK, r)
	case errors.Is(err, services.ErrProviderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "provider not found")
	case errors.Is(err, services.ErrProviderUnverified):
		fail(c, http.StatusConflict, ErrCodeProviderUnverified, "provider is not verified")
	default:
		failRequestErr(c, err)
	}
}
