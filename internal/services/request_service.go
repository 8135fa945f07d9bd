// Package services – RequestService
//
// This file implements the RequestService, the lifecycle engine for
// maintenance requests. It owns every status mutation: it validates requested
// moves against the transition table, enforces actor capabilities and
// data-dependent preconditions (community vs personal routing, provider
// verification), applies the mutation under an optimistic version check, and
// appends the audit log entry as the final write of the same transaction.
// Vote resolution and visit outcomes funnel through unexported methods here,
// preserving the single-writer rule on request status.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// request/actor identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/notify"
	"github.com/amarati/go-maintenance-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestService coordinates the maintenance request lifecycle.
type RequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier receives fire-and-forget lifecycle events after commit.
	Notifier notify.Notifier

	// VoteWindow is how long a community vote stays open once the request
	// enters voting. Past the stamped deadline, unresolved votes reject.
	VoteWindow time.Duration
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewRequestService constructs a RequestService with sane defaults.
func NewRequestService(db *gorm.DB, n notify.Notifier) *RequestService {
	if n == nil {
		n = notify.Nop{}
	}
	return &RequestService{
		DB:          db,
		Notifier:    n,
		VoteWindow:  72 * time.Hour,
		TitleMaxLen: 120,
	}
}

// CreateRequestInput carries the submission payload for a new request.
type CreateRequestInput struct {
	Title             string
	Description       string
	Category          string
	RequestType       string
	Urgency           string
	BuildingID        string
	UnitID            *string
	PreferredDate     *time.Time
	PreferredTimeSlot string
}

// Create validates the submission, persists the request in status submitted,
// and writes the synthetic initial status-log entry in the same transaction.
func (s *RequestService) Create(ctx context.Context, actor Actor, in CreateRequestInput) (*domain.MaintenanceRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("actor.id", actor.ID)),
	)
	defer span.End()

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, ErrEmptyDescription
	}
	category, ok := domain.ParseCategory(in.Category)
	if !ok {
		return nil, ErrUnknownCategory
	}
	reqType, ok := domain.ParseRequestType(in.RequestType)
	if !ok {
		return nil, ErrUnknownRequestType
	}
	urgency, ok := domain.ParseUrgency(in.Urgency)
	if !ok {
		return nil, ErrUnknownUrgency
	}
	if strings.TrimSpace(in.BuildingID) == "" {
		return nil, ErrMissingBuilding
	}

	title := normalizeText(in.Title)
	if title == "" {
		// Fall back to the opening of the description.
		title = normalizeText(desc)
	}
	title = s.clip(title)

	r := &domain.MaintenanceRequest{
		Title:             title,
		Description:       desc,
		Category:          category,
		RequestType:       reqType,
		Urgency:           urgency,
		Status:            domain.StatusSubmitted,
		BuildingID:        strings.TrimSpace(in.BuildingID),
		UnitID:            in.UnitID,
		SubmittedBy:       actor.ID,
		PreferredDate:     in.PreferredDate,
		PreferredTimeSlot: strings.TrimSpace(in.PreferredTimeSlot),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateRequest(ctx, tx, r); err != nil {
			return err
		}
		_, err := repo.AppendStatusLog(ctx, tx, r.ID, "", domain.StatusSubmitted, actor.ID, "Request submitted")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:       notify.KindRequestCreated,
		RequestID:  r.ID,
		BuildingID: r.BuildingID,
		UserID:     r.SubmittedBy,
		ActorID:    actor.ID,
		NewStatus:  string(r.Status),
	})
	return r, nil
}

// Get fetches a request by ID.
func (s *RequestService) Get(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	r, err := repo.GetRequest(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

// List returns a page of requests, optionally filtered by an exact status
// match, most recent first. An unparseable filter returns ErrUnknownStatus.
func (s *RequestService) List(ctx context.Context, statusFilter string, page, pageSize int) ([]domain.MaintenanceRequest, int64, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("filter.status", statusFilter),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	var status *domain.RequestStatus
	if strings.TrimSpace(statusFilter) != "" {
		st, ok := domain.ParseRequestStatus(statusFilter)
		if !ok {
			return nil, 0, ErrUnknownStatus
		}
		status = &st
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountRequests(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.MaintenanceRequest{}, 0, nil
	}

	items, err := repo.ListRequests(ctx, s.DB, status, offset, pageSize)
	return items, total, err
}

// ListByUser returns all requests submitted by userID, most recent first.
func (s *RequestService) ListByUser(ctx context.Context, userID string) ([]domain.MaintenanceRequest, error) {
	return repo.ListRequestsByUser(ctx, s.DB, userID)
}

// History returns the full status log of a request, oldest entry first.
func (s *RequestService) History(ctx context.Context, requestID string) ([]domain.StatusLogEntry, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return repo.ListStatusLog(ctx, s.DB, requestID)
}

// Transition moves a request to the target status on behalf of an actor.
//
// Only caller-driven moves are accepted here: review advancement, routing to
// voting or direct approval, reviewer rejection, and cancellation. Machine
// outcomes (vote resolution, assignment, visit-driven progress/completion)
// have their own entry points so a caller can never skip their
// preconditions. The request is left unchanged on any error.
func (s *RequestService) Transition(ctx context.Context, actor Actor, requestID string, target domain.RequestStatus, notes string) (*domain.MaintenanceRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Transition",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("actor.id", actor.ID),
			attribute.String("target", string(target)),
		),
	)
	defer span.End()

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(req.Status, target) {
		return nil, ErrInvalidTransition
	}

	extra := map[string]any{}
	switch target {
	case domain.StatusUnderReview:
		if !actor.CanReview() {
			return nil, ErrForbidden
		}

	case domain.StatusVoting:
		if !actor.CanReview() {
			return nil, ErrForbidden
		}
		if req.RequestType != domain.TypeCommunity {
			return nil, ErrInvalidTransition
		}
		extra["voting_deadline"] = time.Now().UTC().Add(s.VoteWindow)

	case domain.StatusApproved:
		// Community requests reach approved only through vote resolution.
		if req.Status == domain.StatusVoting || req.RequestType != domain.TypePersonal {
			return nil, ErrInvalidTransition
		}
		if !actor.CanReview() {
			return nil, ErrForbidden
		}

	case domain.StatusRejected:
		// voting -> rejected is the tally's outcome, not a caller move.
		if req.Status == domain.StatusVoting {
			return nil, ErrInvalidTransition
		}
		if !actor.CanReview() {
			return nil, ErrForbidden
		}

	case domain.StatusCancelled:
		if !actor.CanCancel(req.SubmittedBy) {
			return nil, ErrForbidden
		}

	default:
		// assigned via AssignProvider, in_progress/completed via the visit
		// tracker.
		return nil, ErrInvalidTransition
	}

	return s.applyTransition(ctx, actor, req, target, notes, extra)
}

// AssignProvider assigns a verified provider to an approved request and
// transitions it to assigned. Unverified providers are rejected for community
// requests always, and for personal requests unless override is set.
func (s *RequestService) AssignProvider(ctx context.Context, actor Actor, requestID, providerID string, override bool) (*domain.MaintenanceRequest, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "AssignProvider",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("provider.id", providerID),
		),
	)
	defer span.End()

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusApproved {
		return nil, ErrInvalidTransition
	}

	p, err := repo.GetProvider(ctx, s.DB, providerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsVerified {
		if req.RequestType == domain.TypeCommunity || !override {
			return nil, ErrProviderUnverified
		}
	}

	note := fmt.Sprintf("Assigned to %s", p.CompanyName)
	return s.applyTransition(ctx, actor, req, domain.StatusAssigned, note, map[string]any{
		"assigned_provider_id": p.ID,
	})
}

// resolveVoting applies a tally outcome (approved or rejected) to a request
// in voting. Called by the VoteService only.
func (s *RequestService) resolveVoting(ctx context.Context, req *domain.MaintenanceRequest, outcome domain.RequestStatus, note string) (*domain.MaintenanceRequest, error) {
	if req.Status != domain.StatusVoting {
		return nil, ErrVotingClosed
	}
	if outcome != domain.StatusApproved && outcome != domain.StatusRejected {
		return nil, ErrInvalidTransition
	}
	return s.applyTransition(ctx, actorVoteTally, req, outcome, note, nil)
}

// startWork moves an assigned request to in_progress when its visit reaches
// working. A request already in progress is left untouched so repeat visits
// do not fail. Called by the VisitService only.
func (s *RequestService) startWork(ctx context.Context, requestID, note string) error {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == domain.StatusInProgress {
		return nil
	}
	if req.Status != domain.StatusAssigned {
		return ErrInvalidTransition
	}
	_, err = s.applyTransition(ctx, actorVisitTracker, req, domain.StatusInProgress, note, nil)
	return err
}

// completeWork attempts in_progress -> completed when a visit completes.
// Called by the VisitService only.
func (s *RequestService) completeWork(ctx context.Context, requestID, note string) error {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != domain.StatusInProgress {
		return ErrInvalidTransition
	}
	_, err = s.applyTransition(ctx, actorVisitTracker, req, domain.StatusCompleted, note, nil)
	return err
}

// applyTransition performs the guarded status mutation and audit append in
// one transaction, then re-reads the row and publishes the lifecycle event.
// The log append is the last write, so a present entry marks a committed
// transition. AssignedProviderID is cleared whenever the target status does
// not carry a provider, keeping the provider/status invariant intact across
// cancellations.
func (s *RequestService) applyTransition(ctx context.Context, actor Actor, req *domain.MaintenanceRequest, target domain.RequestStatus, note string, extra map[string]any) (*domain.MaintenanceRequest, error) {
	if strings.TrimSpace(note) == "" {
		note = fmt.Sprintf("Status changed from %s to %s", req.Status.Label(), target.Label())
	}

	fields := map[string]any{"status": target}
	for k, v := range extra {
		fields[k] = v
	}
	if !target.CarriesProvider() {
		fields["assigned_provider_id"] = nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateRequestGuarded(ctx, tx, req.ID, req.Version, fields); err != nil {
			return err
		}
		_, err := repo.AppendStatusLog(ctx, tx, req.ID, req.Status, target, actor.ID, note)
		return err
	})
	switch {
	case errors.Is(err, repo.ErrStaleVersion):
		return nil, ErrConcurrentModification
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrRequestNotFound
	case err != nil:
		return nil, err
	}

	updated, err := repo.GetRequest(ctx, s.DB, req.ID)
	if err != nil {
		return nil, err
	}

	kind := notify.KindRequestStatusChanged
	if target == domain.StatusAssigned {
		kind = notify.KindRequestAssigned
	}
	s.Notifier.Publish(ctx, notify.Event{
		Kind:       kind,
		RequestID:  req.ID,
		BuildingID: req.BuildingID,
		UserID:     req.SubmittedBy,
		ActorID:    actor.ID,
		OldStatus:  string(req.Status),
		NewStatus:  string(target),
		Note:       note,
	})
	return updated, nil
}

// clip truncates a title to the configured maximum rune length.
func (s *RequestService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeText trims whitespace and collapses multiple spaces to one.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
