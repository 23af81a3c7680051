package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Urgency tiers for a job request.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// CustomerSegment classifies the requesting customer.
type CustomerSegment string

const (
	SegmentStandard   CustomerSegment = "standard"
	SegmentVIP        CustomerSegment = "vip"
	SegmentEnterprise CustomerSegment = "enterprise"
)

func (s CustomerSegment) Valid() bool {
	switch s {
	case SegmentStandard, SegmentVIP, SegmentEnterprise:
		return true
	}
	return false
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow is an hour-of-day window, e.g. {9, 12} for 09:00–12:00.
type TimeWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// ServiceItem is an itemized additional service on a job (packing, storage, ...).
type ServiceItem struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// JobRequest is an inbound work order. Immutable once created; produced by
// the intake process, only read here.
type JobRequest struct {
	ID              uuid.UUID       `json:"job_id"`
	CustomerID      string          `json:"customer_id,omitempty"`
	ServiceType     string          `json:"service_type"`
	RequiredSkills  []string        `json:"required_skills"`
	EstimatedHours  float64         `json:"estimated_hours"`
	Pickup          Coordinate      `json:"pickup"`
	Delivery        Coordinate      `json:"delivery"`
	RequestedDate   time.Time       `json:"requested_date"`
	RequiredArrival *time.Time      `json:"required_arrival,omitempty"`
	Urgency         Urgency         `json:"urgency"`
	CustomerSegment CustomerSegment `json:"customer_segment"`
	SpecialHandling []string        `json:"special_handling,omitempty"`
	PreferredWindow *TimeWindow     `json:"preferred_window,omitempty"`

	// Pricing inputs
	VolumeM3           float64       `json:"volume_m3"`
	PickupFloor        int           `json:"pickup_floor"`
	DeliveryFloor      int           `json:"delivery_floor"`
	PickupElevator     bool          `json:"pickup_elevator"`
	DeliveryElevator   bool          `json:"delivery_elevator"`
	ParkingDistanceM   float64       `json:"parking_distance_m"`
	AdditionalServices []ServiceItem `json:"additional_services,omitempty"`
}

// DateKey returns the calendar-day key used by availability and workload maps.
func (j *JobRequest) DateKey() string {
	return j.RequestedDate.Format("2006-01-02")
}

// HasSpecialHandling reports whether any of the given tags is set on the job.
func (j *JobRequest) HasSpecialHandling(tags ...string) bool {
	for _, want := range tags {
		for _, tag := range j.SpecialHandling {
			if strings.EqualFold(tag, want) {
				return true
			}
		}
	}
	return false
}

// CrewMember is one person on a crew.
type CrewMember struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
	Rating float64  `json:"rating"`
}

// Performance is a crew's rolling performance snapshot, each metric in [0,1].
// Updated by the feedback process, only read here.
type Performance struct {
	CompletionRate float64 `json:"completion_rate"`
	Satisfaction   float64 `json:"satisfaction"`
	Efficiency     float64 `json:"efficiency"`
}

// AvailabilitySlot is one bookable window on a crew's calendar. Capacity is
// the fraction of the slot still free, in [0,1].
type AvailabilitySlot struct {
	Date      string  `json:"date"` // 2006-01-02
	StartHour int     `json:"start_hour"`
	EndHour   int     `json:"end_hour"`
	Capacity  float64 `json:"capacity"`
}

// Stop is a scheduled visit already on a crew's day.
type Stop struct {
	JobID    uuid.UUID  `json:"job_id"`
	Label    string     `json:"label"`
	Location Coordinate `json:"location"`
}

// Crew is a long-lived team resource. Availability and workload are resolved
// by the calendar provider before scoring; this engine never mutates a crew
// in place, it returns deltas for the caller to commit.
type Crew struct {
	ID           uuid.UUID          `json:"crew_id"`
	Name         string             `json:"name"`
	Members      []CrewMember       `json:"members"`
	Specialties  []string           `json:"specialties"`
	Base         Coordinate         `json:"base"`
	Performance  Performance        `json:"performance"`
	Availability []AvailabilitySlot `json:"availability"`
	Scheduled    map[string][]Stop  `json:"scheduled,omitempty"` // date key → stops
	Version      int64              `json:"version"`
}

// SlotsFor returns the crew's availability slots for a given date key.
func (c *Crew) SlotsFor(dateKey string) []AvailabilitySlot {
	var out []AvailabilitySlot
	for _, s := range c.Availability {
		if s.Date == dateKey {
			out = append(out, s)
		}
	}
	return out
}

// StopsFor returns the crew's already-scheduled stops for a date key.
func (c *Crew) StopsFor(dateKey string) []Stop {
	return c.Scheduled[dateKey]
}

// JobsOn returns how many jobs the crew already carries on a date.
func (c *Crew) JobsOn(dateKey string) int {
	return len(c.Scheduled[dateKey])
}

// HasSkill reports whether a skill is in the crew's specialty set or in the
// union of its members' skills.
func (c *Crew) HasSkill(skill string) bool {
	for _, s := range c.Specialties {
		if strings.EqualFold(s, skill) {
			return true
		}
	}
	for _, m := range c.Members {
		for _, s := range m.Skills {
			if strings.EqualFold(s, skill) {
				return true
			}
		}
	}
	return false
}

// QualifiedMembers counts members carrying the given skill.
func (c *Crew) QualifiedMembers(skill string) int {
	n := 0
	for _, m := range c.Members {
		for _, s := range m.Skills {
			if strings.EqualFold(s, skill) {
				n++
				break
			}
		}
	}
	return n
}

// RouteSegment is one leg of a tour.
type RouteSegment struct {
	FromLabel   string        `json:"from"`
	ToLabel     string        `json:"to"`
	From        Coordinate    `json:"from_coord"`
	To          Coordinate    `json:"to_coord"`
	DistanceKm  float64       `json:"distance_km"`
	Duration    time.Duration `json:"duration"`
	Instruction string        `json:"instruction,omitempty"`
}

// Route is an ordered tour for one crew on one day, starting and ending at
// its base. Invariant: len(Segments) == stop count + 1.
type Route struct {
	CrewID          uuid.UUID      `json:"crew_id"`
	DateKey         string         `json:"date"`
	Segments        []RouteSegment `json:"segments"`
	TotalDistanceKm float64        `json:"total_distance_km"`
	TotalDuration   time.Duration  `json:"total_duration"`
	Departure       *time.Time     `json:"departure,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"` // construction-only fallback
}

// FactorScore is one sub-score's contribution to a candidate total.
type FactorScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Impact   string  `json:"impact"` // high, medium, low
	Reason   string  `json:"reason,omitempty"`
}

// BackupCandidate is a ranked fallback crew. Backups are not re-routed.
type BackupCandidate struct {
	CrewID uuid.UUID `json:"crew_id"`
	Name   string    `json:"name"`
	Score  float64   `json:"score"`
}

// WorkloadDelta is the calendar mutation the caller must commit after
// accepting an assignment. The engine itself never writes crew state.
type WorkloadDelta struct {
	CrewID      uuid.UUID `json:"crew_id"`
	DateKey     string    `json:"date"`
	AddStop     Stop      `json:"add_stop"`
	CapacityUse float64   `json:"capacity_use"`
	FromVersion int64     `json:"from_version"`
}

// AssignmentResult binds one job to one crew, or records that no crew was
// eligible. Persisted by the caller; may be superseded by a reassignment.
type AssignmentResult struct {
	ID             uuid.UUID         `json:"assignment_id"`
	JobID          uuid.UUID         `json:"job_id"`
	CrewID         *uuid.UUID        `json:"crew_id,omitempty"`
	CrewName       string            `json:"crew_name,omitempty"`
	ScheduledStart *time.Time        `json:"scheduled_start,omitempty"`
	Route          *Route            `json:"route,omitempty"`
	Score          float64           `json:"score"`
	Reasons        []string          `json:"reasons,omitempty"`
	Factors        []FactorScore     `json:"factors,omitempty"`
	Backups        []BackupCandidate `json:"backups,omitempty"`
	Delta          *WorkloadDelta    `json:"delta,omitempty"`

	Unassigned       bool   `json:"unassigned"`
	UnassignedReason string `json:"unassigned_reason,omitempty"`
	Escalate         bool   `json:"escalate"`

	PreviousCrewID *uuid.UUID `json:"previous_crew_id,omitempty"`
	ReassignReason string     `json:"reassign_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PriceAdjustment is one named delta applied on top of the base price.
type PriceAdjustment struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
	Reason  string  `json:"reason,omitempty"`
}

// Discount is one named reduction, computed separately from adjustments.
type Discount struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
	Reason  string  `json:"reason,omitempty"`
}

// PriceQuote is an issued quote. Immutable; expired quotes are re-requested,
// never refreshed in place.
type PriceQuote struct {
	ID          uuid.UUID         `json:"quote_id"`
	JobID       uuid.UUID         `json:"job_id"`
	BasePrice   float64           `json:"base_price"`
	Adjustments []PriceAdjustment `json:"adjustments"`
	Discounts   []Discount        `json:"discounts,omitempty"`
	Subtotal    float64           `json:"subtotal"`
	Tax         float64           `json:"tax"`
	Total       float64           `json:"total"`
	Confidence  float64           `json:"confidence"`
	RangeLow    float64           `json:"range_low"`
	RangeHigh   float64           `json:"range_high"`
	IssuedAt    time.Time         `json:"issued_at"`
	ValidUntil  time.Time         `json:"valid_until"`
}

// Expired reports whether the quote's validity window has passed.
func (q *PriceQuote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}

// MarketSnapshot is the demand/market view supplied by the market provider.
// CompetitorPrices may be empty; consumers must degrade, not fabricate.
type MarketSnapshot struct {
	CompetitorPrices    []float64 `json:"competitor_prices,omitempty"`
	DemandIndex         float64   `json:"demand_index"`     // ~1.0 = normal
	SeasonalFactor      float64   `json:"seasonal_factor"`  // month-indexed multiplier
	CapacityUtilization float64   `json:"capacity_utilization"`
	AsOf                time.Time `json:"as_of"`
}

// CustomerProfile is the customer-intelligence view from the CRM provider.
type CustomerProfile struct {
	Segment          CustomerSegment `json:"segment"`
	LifetimeValue    float64         `json:"lifetime_value"`
	ChurnRisk        float64         `json:"churn_risk"`
	OrderCount       int             `json:"order_count"`
	LoyaltyYears     float64         `json:"loyalty_years"`
	Referred         bool            `json:"referred"`
	FlexibleSchedule bool            `json:"flexible_schedule"`
	BookingLeadDays  int             `json:"booking_lead_days"`
	BundledServices  int             `json:"bundled_services"`
}
