package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf8"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amarati/go-maintenance-backend/internal/domain"
	"github.com/amarati/go-maintenance-backend/internal/notify"
	"github.com/amarati/go-maintenance-backend/internal/repo"
)

// ----- Shared test fixtures -----

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeNotifier records every published event.
type fakeNotifier struct {
	events []notify.Event
}

func (f *fakeNotifier) Publish(_ context.Context, e notify.Event) {
	f.events = append(f.events, e)
}

func (f *fakeNotifier) last(t *testing.T) notify.Event {
	t.Helper()
	if len(f.events) == 0 {
		t.Fatalf("no events published")
	}
	return f.events[len(f.events)-1]
}

var (
	resident = Actor{ID: "u-res", Role: RoleResident}
	admin    = Actor{ID: "u-adm", Role: RoleAdmin}
	manager  = Actor{ID: "u-mgr", Role: RoleManager}
)

func personalInput() CreateRequestInput {
	return CreateRequestInput{
		Title:       "Leaky faucet",
		Description: "The kitchen faucet drips constantly",
		Category:    "plumbing",
		RequestType: "personal",
		Urgency:     "normal",
		BuildingID:  "b1",
	}
}

func communityInput() CreateRequestInput {
	return CreateRequestInput{
		Title:       "Lobby lighting",
		Description: "Half of the lobby lights are out",
		Category:    "electrical",
		RequestType: "community",
		Urgency:     "urgent",
		BuildingID:  "b1",
	}
}

func seedProvider(t *testing.T, db *gorm.DB, verified bool) *domain.ProviderProfile {
	t.Helper()
	p := &domain.ProviderProfile{
		CompanyName: "AquaFix Ltd",
		Rating:      4.5,
		IsVerified:  verified,
		PriceRange:  domain.PriceMedium,
	}
	if err := repo.CreateProvider(context.Background(), db, p); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	return p
}

// ----- Create -----

func TestCreate_Validation(t *testing.T) {
	s := NewRequestService(newServiceDB(t), nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRequestInput)
		want   error
	}{
		{"empty description", func(in *CreateRequestInput) { in.Description = "  \t " }, ErrEmptyDescription},
		{"unknown category", func(in *CreateRequestInput) { in.Category = "gardening" }, ErrUnknownCategory},
		{"unknown type", func(in *CreateRequestInput) { in.RequestType = "shared" }, ErrUnknownRequestType},
		{"unknown urgency", func(in *CreateRequestInput) { in.Urgency = "asap" }, ErrUnknownUrgency},
		{"missing building", func(in *CreateRequestInput) { in.BuildingID = "  " }, ErrMissingBuilding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := personalInput()
			tc.mutate(&in)
			if _, err := s.Create(ctx, resident, in); !errors.Is(err, tc.want) {
				t.Fatalf("Create = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestCreate_PersistsAndLogsAndNotifies(t *testing.T) {
	db := newServiceDB(t)
	n := &fakeNotifier{}
	s := NewRequestService(db, n)
	ctx := context.Background()

	r, err := s.Create(ctx, resident, personalInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == "" || r.Status != domain.StatusSubmitted || r.SubmittedBy != resident.ID {
		t.Fatalf("unexpected request: %+v", r)
	}
	if r.Version != 1 {
		t.Fatalf("new request version = %d; want 1", r.Version)
	}

	log, err := s.History(ctx, r.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(log))
	}
	if log[0].OldStatus != "" || log[0].NewStatus != domain.StatusSubmitted || log[0].ChangedBy != resident.ID {
		t.Fatalf("unexpected initial entry: %+v", log[0])
	}

	e := n.last(t)
	if e.Kind != notify.KindRequestCreated || e.RequestID != r.ID {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestCreate_TitleFallsBackToDescriptionClipped(t *testing.T) {
	s := NewRequestService(newServiceDB(t), nil)
	s.TitleMaxLen = 10

	in := personalInput()
	in.Title = "   "
	in.Description = "A   very    long description of the problem"
	r, err := s.Create(context.Background(), resident, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if utf8.RuneCountInString(r.Title) != 10 {
		t.Fatalf("title not clipped: %q", r.Title)
	}
	if r.Title != "A very lon" {
		t.Fatalf("title = %q; want normalized prefix of description", r.Title)
	}
}

func TestCreate_UrgencyDefaultsToNormal(t *testing.T) {
	s := NewRequestService(newServiceDB(t), nil)

	in := personalInput()
	in.Urgency = ""
	r, err := s.Create(context.Background(), resident, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Urgency != domain.UrgencyNormal {
		t.Fatalf("urgency = %q; want normal", r.Urgency)
	}
}

// ----- Get / List / History -----

func TestGet_NotFound(t *testing.T) {
	s := NewRequestService(newServiceDB(t), nil)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("Get = %v; want ErrRequestNotFound", err)
	}
}

func TestList_FilterAndPagination(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Create(ctx, resident, personalInput()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, total, err := s.List(ctx, "", 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d; want 3/2", total, len(items))
	}

	items, total, err = s.List(ctx, "submitted", 0, 0) // defaults: page 1, size 20
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("filtered total=%d len=%d; want 3/3", total, len(items))
	}

	items, total, err = s.List(ctx, "completed", 1, 20)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty page, got total=%d len=%d", total, len(items))
	}

	if _, _, err := s.List(ctx, "definitely-not-a-status", 1, 20); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, resident, personalInput()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	other := Actor{ID: "u-other", Role: RoleResident}
	if _, err := s.Create(ctx, other, personalInput()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mine, err := s.ListByUser(ctx, resident.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(mine) != 1 || mine[0].SubmittedBy != resident.ID {
		t.Fatalf("unexpected result: %+v", mine)
	}
}

// ----- Transition -----

func TestTransition_ReviewRequiresReviewer(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, personalInput())

	if _, err := s.Transition(ctx, resident, r.ID, domain.StatusUnderReview, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("resident review = %v; want ErrForbidden", err)
	}
	got, err := s.Transition(ctx, manager, r.ID, domain.StatusUnderReview, "")
	if err != nil {
		t.Fatalf("manager review: %v", err)
	}
	if got.Status != domain.StatusUnderReview {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Version != r.Version+1 {
		t.Fatalf("version = %d; want %d", got.Version, r.Version+1)
	}
}

func TestTransition_IllegalMoveRefused(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, admin, personalInput())

	// submitted -> approved skips review.
	if _, err := s.Transition(ctx, admin, r.ID, domain.StatusApproved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip review = %v; want ErrInvalidTransition", err)
	}
	got, _ := s.Get(ctx, r.ID)
	if got.Status != domain.StatusSubmitted {
		t.Fatalf("request mutated on refused transition: %q", got.Status)
	}
}

func TestTransition_MachineOnlyTargetsRefused(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, admin, personalInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)
	mustTransition(t, s, admin, r.ID, domain.StatusApproved)

	// approved -> assigned is structurally legal but only AssignProvider may do it.
	if _, err := s.Transition(ctx, admin, r.ID, domain.StatusAssigned, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("direct assign = %v; want ErrInvalidTransition", err)
	}
}

func TestTransition_VotingOnlyForCommunity(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	s.VoteWindow = time.Hour
	ctx := context.Background()

	personal, _ := s.Create(ctx, resident, personalInput())
	mustTransition(t, s, admin, personal.ID, domain.StatusUnderReview)
	if _, err := s.Transition(ctx, admin, personal.ID, domain.StatusVoting, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("personal -> voting = %v; want ErrInvalidTransition", err)
	}

	community, _ := s.Create(ctx, resident, communityInput())
	mustTransition(t, s, admin, community.ID, domain.StatusUnderReview)
	got, err := s.Transition(ctx, admin, community.ID, domain.StatusVoting, "")
	if err != nil {
		t.Fatalf("community -> voting: %v", err)
	}
	if got.VotingDeadline == nil {
		t.Fatalf("voting deadline not stamped")
	}
	wantMin := time.Now().UTC().Add(50 * time.Minute)
	if got.VotingDeadline.Before(wantMin) {
		t.Fatalf("deadline %v too early for 1h window", got.VotingDeadline)
	}
}

func TestTransition_CommunityNeverDirectlyApproved(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, communityInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)
	if _, err := s.Transition(ctx, admin, r.ID, domain.StatusApproved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("community -> approved = %v; want ErrInvalidTransition", err)
	}
	// Reviewer rejection stays open to community requests.
	got, err := s.Transition(ctx, admin, r.ID, domain.StatusRejected, "not feasible")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != domain.StatusRejected {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestTransition_CancelPolicy(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, personalInput())

	stranger := Actor{ID: "u-stranger", Role: RoleResident}
	if _, err := s.Transition(ctx, stranger, r.ID, domain.StatusCancelled, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel = %v; want ErrForbidden", err)
	}
	got, err := s.Transition(ctx, resident, r.ID, domain.StatusCancelled, "changed my mind")
	if err != nil {
		t.Fatalf("submitter cancel: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %q", got.Status)
	}
	// Terminal: nothing moves out, not even another cancel.
	if _, err := s.Transition(ctx, admin, r.ID, domain.StatusCancelled, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel of cancelled = %v; want ErrInvalidTransition", err)
	}
}

func TestTransition_CancelAfterAssignClearsProvider(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()
	p := seedProvider(t, db, true)

	r, _ := s.Create(ctx, resident, personalInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)
	mustTransition(t, s, admin, r.ID, domain.StatusApproved)
	assigned, err := s.AssignProvider(ctx, admin, r.ID, p.ID, false)
	if err != nil {
		t.Fatalf("AssignProvider: %v", err)
	}
	if assigned.AssignedProviderID == nil || *assigned.AssignedProviderID != p.ID {
		t.Fatalf("provider not recorded: %+v", assigned)
	}

	got, err := s.Transition(ctx, admin, r.ID, domain.StatusCancelled, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.AssignedProviderID != nil {
		t.Fatalf("provider not cleared on cancel: %v", *got.AssignedProviderID)
	}
}

func TestTransition_StaleReadLosesRace(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, personalInput())
	stale, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Another writer commits first.
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)

	if _, err := s.applyTransition(ctx, admin, stale, domain.StatusUnderReview, "", nil); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("stale apply = %v; want ErrConcurrentModification", err)
	}
}

func TestTransition_AppendsAuditLog(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, personalInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)

	log, err := s.History(ctx, r.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(log))
	}
	last := log[1]
	if last.OldStatus != domain.StatusSubmitted || last.NewStatus != domain.StatusUnderReview {
		t.Fatalf("unexpected entry: %+v", last)
	}
	if last.Notes != "Status changed from Submitted to Under Review" {
		t.Fatalf("default note = %q", last.Notes)
	}
}

// ----- AssignProvider -----

func TestAssignProvider_RequiresApproved(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()
	p := seedProvider(t, db, true)

	r, _ := s.Create(ctx, resident, personalInput())
	if _, err := s.AssignProvider(ctx, admin, r.ID, p.ID, false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("assign on submitted = %v; want ErrInvalidTransition", err)
	}
}

func TestAssignProvider_UnknownProvider(t *testing.T) {
	db := newServiceDB(t)
	s := NewRequestService(db, nil)
	ctx := context.Background()

	r, _ := s.Create(ctx, resident, personalInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)
	mustTransition(t, s, admin, r.ID, domain.StatusApproved)

	if _, err := s.AssignProvider(ctx, admin, r.ID, "ghost", false); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("assign unknown = %v; want ErrProviderNotFound", err)
	}
}

func TestAssignProvider_VerificationPolicy(t *testing.T) {
	db := newServiceDB(t)
	n := &fakeNotifier{}
	s := NewRequestService(db, n)
	ctx := context.Background()
	unverified := seedProvider(t, db, false)

	// Personal request: refused without override, allowed with it.
	r, _ := s.Create(ctx, resident, personalInput())
	mustTransition(t, s, admin, r.ID, domain.StatusUnderReview)
	mustTransition(t, s, admin, r.ID, domain.StatusApproved)

	if _, err := s.AssignProvider(ctx, admin, r.ID, unverified.ID, false); !errors.Is(err, ErrProviderUnverified) {
		t.Fatalf("unverified assign = %v; want ErrProviderUnverified", err)
	}
	got, err := s.AssignProvider(ctx, admin, r.ID, unverified.ID, true)
	if err != nil {
		t.Fatalf("override assign: %v", err)
	}
	if got.Status != domain.StatusAssigned {
		t.Fatalf("status = %q", got.Status)
	}
	if e := n.last(t); e.Kind != notify.KindRequestAssigned {
		t.Fatalf("event kind = %q; want %q", e.Kind, notify.KindRequestAssigned)
	}

	// Community request: override does not help.
	c, _ := s.Create(ctx, resident, communityInput())
	mustTransition(t, s, admin, c.ID, domain.StatusUnderReview)
	mustTransition(t, s, admin, c.ID, domain.StatusVoting)
	if _, err := resolveApproved(ctx, s, c.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := s.AssignProvider(ctx, admin, c.ID, unverified.ID, true); !errors.Is(err, ErrProviderUnverified) {
		t.Fatalf("community override = %v; want ErrProviderUnverified", err)
	}
}

// ----- helpers -----

func mustTransition(t *testing.T, s *RequestService, a Actor, id string, target domain.RequestStatus) *domain.MaintenanceRequest {
	t.Helper()
	r, err := s.Transition(context.Background(), a, id, target, "")
	if err != nil {
		t.Fatalf("transition to %s: %v", target, err)
	}
	return r
}

// resolveApproved short-circuits the vote machinery where a test only needs an
// approved community request.
func resolveApproved(ctx context.Context, s *RequestService, id string) (*domain.MaintenanceRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveVoting(ctx, req, domain.StatusApproved, "Approved by community vote (2 for, 0 against)")
}
