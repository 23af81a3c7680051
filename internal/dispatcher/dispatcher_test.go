package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/config"
	"github.com/relocore/dispatch/internal/model"
	"github.com/relocore/dispatch/internal/pricing"
	"github.com/relocore/dispatch/internal/scoring"
	"github.com/relocore/dispatch/internal/store"
)

// --- mocks ---

type mockStore struct {
	mu          sync.Mutex
	assignments []*model.AssignmentResult
	quotes      []*model.PriceQuote
}

func (m *mockStore) CreateAssignment(ctx context.Context, a *model.AssignmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *mockStore) GetAssignment(ctx context.Context, id uuid.UUID) (*model.AssignmentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListAssignmentsForJob(ctx context.Context, jobID uuid.UUID) ([]*model.AssignmentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AssignmentResult
	for _, a := range m.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) CreateQuote(ctx context.Context, q *model.PriceQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	m.quotes = append(m.quotes, q)
	return nil
}

func (m *mockStore) GetQuote(ctx context.Context, id uuid.UUID) (*model.PriceQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quotes {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetStats(ctx context.Context) (*store.Stats, error) { return &store.Stats{}, nil }
func (m *mockStore) Close() error                                       { return nil }

type mockEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockEvents) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockEvents) Subscribe(subject string, handler func(string, []byte)) error { return nil }
func (m *mockEvents) Close()                                                       {}

func (m *mockEvents) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subjects...)
}

type mockCalendar struct {
	crews     []*model.Crew
	listErr   error
	commitErr error

	mu     sync.Mutex
	deltas []*model.WorkloadDelta
}

func (m *mockCalendar) ListCrews(ctx context.Context) ([]*model.Crew, error) {
	return m.crews, m.listErr
}

func (m *mockCalendar) GetCrew(ctx context.Context, id uuid.UUID) (*model.Crew, error) {
	for _, c := range m.crews {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCalendar) CommitDelta(ctx context.Context, delta *model.WorkloadDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, delta)
	return m.commitErr
}

type mockMarket struct {
	snap *model.MarketSnapshot
	err  error
}

func (m *mockMarket) Snapshot(ctx context.Context, serviceType string) (*model.MarketSnapshot, error) {
	return m.snap, m.err
}

type mockCRM struct {
	profile *model.CustomerProfile
	err     error
}

func (m *mockCRM) GetProfile(ctx context.Context, customerID string) (*model.CustomerProfile, error) {
	return m.profile, m.err
}

// --- fixtures ---

func testDispatcher(cal *mockCalendar, mkt *mockMarket, c *mockCRM) (*Dispatcher, *mockStore, *mockEvents) {
	cfg, _ := config.Load("")
	st := &mockStore{}
	ev := &mockEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := New(st, ev, cal, mkt, c, cfg, logger)
	d.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return d, st, ev
}

func dispatchJob() *model.JobRequest {
	return &model.JobRequest{
		ID:              uuid.New(),
		CustomerID:      "cust-1",
		ServiceType:     "residential_move",
		RequiredSkills:  []string{"packing"},
		EstimatedHours:  4,
		Pickup:          model.Coordinate{Lat: 52.52, Lng: 13.405},
		Delivery:        model.Coordinate{Lat: 52.50, Lng: 13.42},
		RequestedDate:   time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		Urgency:         model.UrgencyNormal,
		CustomerSegment: model.SegmentStandard,
		VolumeM3:        20,
	}
}

func dispatchCrew(id string) *model.Crew {
	return &model.Crew{
		ID:          uuid.MustParse(id),
		Name:        "crew-" + id[:4],
		Members:     []model.CrewMember{{Name: "a", Skills: []string{"packing"}}},
		Base:        model.Coordinate{Lat: 52.52, Lng: 13.405},
		Performance: model.Performance{CompletionRate: 0.9, Satisfaction: 0.9, Efficiency: 0.85},
		Availability: []model.AvailabilitySlot{
			{Date: "2026-09-14", StartHour: 8, EndHour: 18, Capacity: 0.9},
		},
		Version: 3,
	}
}

// --- tests ---

func TestAssignJobEndToEnd(t *testing.T) {
	cal := &mockCalendar{crews: []*model.Crew{dispatchCrew("11111111-1111-1111-1111-111111111111")}}
	d, st, ev := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	result, err := d.AssignJob(context.Background(), dispatchJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Unassigned {
		t.Fatal("expected an assignment")
	}
	if result.ID == uuid.Nil {
		t.Error("assignment must get an ID on persistence")
	}
	if len(st.assignments) != 1 {
		t.Fatalf("expected 1 persisted assignment, got %d", len(st.assignments))
	}
	if len(cal.deltas) != 1 {
		t.Fatalf("expected 1 committed workload delta, got %d", len(cal.deltas))
	}
	if cal.deltas[0].FromVersion != 3 {
		t.Errorf("delta version %d, want crew version 3", cal.deltas[0].FromVersion)
	}
	if subs := ev.published(); len(subs) != 1 {
		t.Errorf("expected 1 published event, got %v", subs)
	}
}

func TestAssignJobUnassignedPersistedNotErrored(t *testing.T) {
	crew := dispatchCrew("11111111-1111-1111-1111-111111111111")
	crew.Availability = nil // fails the slot rule
	cal := &mockCalendar{crews: []*model.Crew{crew}}
	d, st, ev := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	result, err := d.AssignJob(context.Background(), dispatchJob())
	if err != nil {
		t.Fatalf("unassigned is a defined outcome, not an error: %v", err)
	}
	if !result.Unassigned || !result.Escalate {
		t.Fatal("expected an escalating unassigned result")
	}
	if len(st.assignments) != 1 {
		t.Fatalf("unassigned result must be persisted, got %d", len(st.assignments))
	}
	if len(cal.deltas) != 0 {
		t.Error("no workload delta may be committed for an unassigned job")
	}
	if subs := ev.published(); len(subs) != 1 {
		t.Errorf("expected an unassigned event, got %v", subs)
	}
}

func TestAssignJobInvalidRequest(t *testing.T) {
	cal := &mockCalendar{crews: []*model.Crew{dispatchCrew("11111111-1111-1111-1111-111111111111")}}
	d, st, _ := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	job := dispatchJob()
	job.RequiredSkills = nil
	_, err := d.AssignJob(context.Background(), job)
	if !errors.Is(err, model.ErrInvalidJobRequest) {
		t.Fatalf("expected ErrInvalidJobRequest, got %v", err)
	}
	if len(st.assignments) != 0 {
		t.Error("invalid requests must not be persisted")
	}
}

func TestAssignJobCalendarDown(t *testing.T) {
	cal := &mockCalendar{listErr: errors.New("connection refused")}
	d, _, _ := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	_, err := d.AssignJob(context.Background(), dispatchJob())
	if !errors.Is(err, scoring.ErrNoEligibleCrew) {
		t.Fatalf("expected ErrNoEligibleCrew when the pool is unresolvable, got %v", err)
	}
}

func TestAssignJobCommitFailureKeepsAssignment(t *testing.T) {
	cal := &mockCalendar{
		crews:     []*model.Crew{dispatchCrew("11111111-1111-1111-1111-111111111111")},
		commitErr: errors.New("version conflict"),
	}
	d, st, _ := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	result, err := d.AssignJob(context.Background(), dispatchJob())
	if err != nil {
		t.Fatalf("commit failure must not fail the assignment: %v", err)
	}
	if result.Unassigned {
		t.Error("assignment should stand for manual review")
	}
	if len(st.assignments) != 1 {
		t.Error("assignment must stay persisted")
	}
}

func TestReassignJobExcludesPrevious(t *testing.T) {
	prev := dispatchCrew("11111111-1111-1111-1111-111111111111")
	next := dispatchCrew("22222222-2222-2222-2222-222222222222")
	cal := &mockCalendar{crews: []*model.Crew{prev, next}}
	d, _, ev := testDispatcher(cal, &mockMarket{}, &mockCRM{})

	result, err := d.ReassignJob(context.Background(), dispatchJob(), prev.ID, "truck breakdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CrewID == nil || *result.CrewID != next.ID {
		t.Errorf("reassignment picked the previous crew")
	}
	if result.ReassignReason != "truck breakdown" {
		t.Errorf("reason %q not carried", result.ReassignReason)
	}
	if subs := ev.published(); len(subs) != 1 {
		t.Errorf("expected a reassigned event, got %v", subs)
	}
}

func TestQuoteJobEndToEnd(t *testing.T) {
	mkt := &mockMarket{snap: &model.MarketSnapshot{
		CompetitorPrices: []float64{1800, 2000, 2200},
		DemandIndex:      1.1,
		SeasonalFactor:   1.0,
	}}
	c := &mockCRM{profile: &model.CustomerProfile{Segment: model.SegmentStandard, OrderCount: 3}}
	d, st, ev := testDispatcher(&mockCalendar{}, mkt, c)

	quote, err := d.QuoteJob(context.Background(), dispatchJob())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.ID == uuid.Nil {
		t.Error("quote must get an ID on persistence")
	}
	if quote.Total <= 0 {
		t.Errorf("nonpositive total %f", quote.Total)
	}
	if !quote.ValidUntil.After(quote.IssuedAt) {
		t.Error("validity window must extend past issuance")
	}
	if len(st.quotes) != 1 {
		t.Fatalf("expected 1 persisted quote, got %d", len(st.quotes))
	}
	if subs := ev.published(); len(subs) != 1 {
		t.Errorf("expected a quote event, got %v", subs)
	}
}

func TestQuoteJobDegradedMarket(t *testing.T) {
	mkt := &mockMarket{err: errors.New("timeout")}
	c := &mockCRM{err: errors.New("timeout")}
	d, st, _ := testDispatcher(&mockCalendar{}, mkt, c)

	quote, err := d.QuoteJob(context.Background(), dispatchJob())
	if err != nil {
		t.Fatalf("provider outages must degrade the quote, not fail it: %v", err)
	}
	for _, adj := range quote.Adjustments {
		if adj.Name == "competitive" {
			t.Error("competitive adjustment must be skipped without market data")
		}
	}
	if len(st.quotes) != 1 {
		t.Error("degraded quote must still be persisted")
	}
}

func TestGetQuoteStale(t *testing.T) {
	d, st, _ := testDispatcher(&mockCalendar{}, &mockMarket{}, &mockCRM{})

	stale := &model.PriceQuote{
		ID:         uuid.New(),
		ValidUntil: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), // before the frozen clock
	}
	st.quotes = append(st.quotes, stale)

	quote, err := d.GetQuote(context.Background(), stale.ID)
	if !errors.Is(err, pricing.ErrStaleQuote) {
		t.Fatalf("expected ErrStaleQuote, got %v", err)
	}
	if quote == nil || quote.ID != stale.ID {
		t.Error("stale quote must still be returned for context")
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	d, _, _ := testDispatcher(&mockCalendar{}, &mockMarket{}, &mockCRM{})
	quote, err := d.GetQuote(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote != nil {
		t.Error("expected nil for unknown quote")
	}
}
