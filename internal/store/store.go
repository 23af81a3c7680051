// Package store persists the engine's derived outputs — assignment results
// and price quotes. Job requests and crews are owned by external systems and
// only read here.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/relocore/dispatch/internal/model"
)

type Stats struct {
	TotalAssigned   int     `json:"total_assigned"`
	TotalUnassigned int     `json:"total_unassigned"`
	TotalReassigned int     `json:"total_reassigned"`
	TotalQuotes     int     `json:"total_quotes"`
	AvgMatchScore   float64 `json:"avg_match_score"`
}

type Store interface {
	CreateAssignment(ctx context.Context, a *model.AssignmentResult) error
	GetAssignment(ctx context.Context, id uuid.UUID) (*model.AssignmentResult, error)
	ListAssignmentsForJob(ctx context.Context, jobID uuid.UUID) ([]*model.AssignmentResult, error)

	CreateQuote(ctx context.Context, q *model.PriceQuote) error
	GetQuote(ctx context.Context, id uuid.UUID) (*model.PriceQuote, error)

	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
