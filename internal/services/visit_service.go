// Package services – VisitService
//
// This file implements the nested per-visit state machine. Visits move
// strictly forward (scheduled -> on_the_way -> arrived -> working ->
// completed) with cancellation reachable from any non-terminal point. At most
// one visit per request may be non-terminal at a time. Reaching working or
// completed is reported back to the lifecycle, which attempts the
// corresponding request transition; the visit tracker itself never writes
// request status.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/notify"
	"github.com/amarati/go-maintenance-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VisitService tracks technician visits for assigned requests.
type VisitService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Lifecycle receives terminal visit outcomes.
	Lifecycle *RequestService
	// Notifier receives fire-and-forget visit events.
	Notifier notify.Notifier
}

// NewVisitService constructs a VisitService.
func NewVisitService(db *gorm.DB, lifecycle *RequestService, n notify.Notifier) *VisitService {
	if n == nil {
		n = notify.Nop{}
	}
	return &VisitService{DB: db, Lifecycle: lifecycle, Notifier: n}
}

// Schedule creates a visit proposal for an assigned request. The proposing
// provider must be the one assigned to the request, and no other non-terminal
// visit may exist.
func (s *VisitService) Schedule(ctx context.Context, requestID, providerID, technicianName string, proposedTime *time.Time) (*domain.Visit, error) {
	tr := otel.Tracer("services/VisitService")
	ctx, span := tr.Start(ctx, "Schedule",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("provider.id", providerID),
		),
	)
	defer span.End()

	req, err := s.Lifecycle.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusAssigned && req.Status != domain.StatusInProgress {
		return nil, ErrInvalidTransition
	}
	if req.AssignedProviderID == nil || *req.AssignedProviderID != providerID {
		return nil, ErrVisitProviderMismatch
	}

	v := &domain.Visit{
		RequestID:      requestID,
		ProviderID:     providerID,
		TechnicianName: technicianName,
		Status:         domain.VisitScheduled,
		ProposedTime:   proposedTime,
	}
	// The active-visit check and the insert share a transaction so two
	// racing schedules cannot both pass the check.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := repo.ActiveVisit(ctx, tx, requestID)
		if err == nil {
			return ErrConflictingVisit
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		return repo.CreateVisit(ctx, tx, v)
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:      notify.KindVisitScheduled,
		RequestID: requestID,
		UserID:    req.SubmittedBy,
		ActorID:   providerID,
		VisitID:   v.ID,
		NewStatus: string(v.Status),
	})
	return v, nil
}

// Get fetches a visit by ID.
func (s *VisitService) Get(ctx context.Context, visitID string) (*domain.Visit, error) {
	v, err := repo.GetVisit(ctx, s.DB, visitID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVisitNotFound
	}
	return v, err
}

// ListByRequest returns all visits of a request in scheduling order.
func (s *VisitService) ListByRequest(ctx context.Context, requestID string) ([]domain.Visit, error) {
	if _, err := s.Lifecycle.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return repo.ListVisits(ctx, s.DB, requestID)
}

// RecordStatus advances a visit along its status chain.
//
// Side effects of particular moves:
//   - working: sets start_time if unset and asks the lifecycle to start work
//     on the owning request (assigned -> in_progress).
//   - completed: sets end_time and asks the lifecycle to attempt
//     in_progress -> completed.
//
// The lifecycle attempt is best-effort: when the owning request can no longer
// take the move (e.g., it was cancelled mid-visit), the visit update stands
// and the refusal is logged by the caller's request-scoped logger via the
// returned visit state.
func (s *VisitService) RecordStatus(ctx context.Context, visitID string, target domain.VisitStatus, notes string) (*domain.Visit, error) {
	tr := otel.Tracer("services/VisitService")
	ctx, span := tr.Start(ctx, "RecordStatus",
		trace.WithAttributes(
			attribute.String("visit.id", visitID),
			attribute.String("target", string(target)),
		),
	)
	defer span.End()

	v, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.Status.CanAdvance(target) {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	fields := map[string]any{"status": target}
	if notes != "" {
		fields["notes"] = notes
	}
	if target == domain.VisitWorking && v.StartTime == nil {
		fields["start_time"] = now
	}
	if target == domain.VisitCompleted {
		fields["end_time"] = now
	}

	if err := repo.UpdateVisit(ctx, s.DB, v.ID, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	switch target {
	case domain.VisitWorking:
		note := fmt.Sprintf("Technician started working (visit %s)", v.ID)
		if err := s.Lifecycle.startWork(ctx, v.RequestID, note); err != nil && !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
	case domain.VisitCompleted:
		note := fmt.Sprintf("Work completed (visit %s)", v.ID)
		if err := s.Lifecycle.completeWork(ctx, v.RequestID, note); err != nil && !errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
	}

	updated, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, notify.Event{
		Kind:      notify.KindVisitStatusChanged,
		RequestID: v.RequestID,
		VisitID:   v.ID,
		OldStatus: string(v.Status),
		NewStatus: string(target),
		Note:      notes,
	})
	return updated, nil
}

// Confirm marks a visit as confirmed by the resident. Confirmation is
// independent of the status chain and may happen at any point after
// scheduling.
func (s *VisitService) Confirm(ctx context.Context, visitID string) (*domain.Visit, error) {
	v, err := s.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateVisit(ctx, s.DB, v.ID, map[string]any{"confirmed_by_resident": true}); err != nil {
		return nil, err
	}
	return s.Get(ctx, visitID)
}
