package events

// AssignmentCreatedEvent is published when a crew is chosen for a job.
type AssignmentCreatedEvent struct {
	AssignmentID string   `json:"assignment_id"`
	JobID        string   `json:"job_id"`
	CrewID       string   `json:"crew_id"`
	Score        float64  `json:"score"`
	Reasons      []string `json:"reasons,omitempty"`
	RouteKm      float64  `json:"route_km"`
	Backups      int      `json:"backups"`
}

// AssignmentUnassignedEvent is published for the manual-handling path.
type AssignmentUnassignedEvent struct {
	JobID    string `json:"job_id"`
	Reason   string `json:"reason"`
	Escalate bool   `json:"escalate"`
}

// QuoteIssuedEvent is published once a quote is persisted.
type QuoteIssuedEvent struct {
	QuoteID    string  `json:"quote_id"`
	JobID      string  `json:"job_id"`
	Total      float64 `json:"total"`
	Confidence float64 `json:"confidence"`
	ValidUntil string  `json:"valid_until"`
}
