package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relocore/dispatch/internal/model"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const assignmentColumns = `assignment_id, job_id, crew_id, crew_name, scheduled_start,
	route, score, reasons, factors, backups, delta,
	unassigned, unassigned_reason, escalate,
	previous_crew_id, reassign_reason, created_at`

func (s *PostgresStore) CreateAssignment(ctx context.Context, a *model.AssignmentResult) error {
	routeJSON, _ := json.Marshal(a.Route)
	factorsJSON, _ := json.Marshal(a.Factors)
	backupsJSON, _ := json.Marshal(a.Backups)
	deltaJSON, _ := json.Marshal(a.Delta)

	return s.pool.QueryRow(ctx, `
		INSERT INTO assignments (job_id, crew_id, crew_name, scheduled_start,
			route, score, reasons, factors, backups, delta,
			unassigned, unassigned_reason, escalate,
			previous_crew_id, reassign_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING assignment_id, created_at`,
		a.JobID, a.CrewID, a.CrewName, a.ScheduledStart,
		routeJSON, a.Score, a.Reasons, factorsJSON, backupsJSON, deltaJSON,
		a.Unassigned, a.UnassignedReason, a.Escalate,
		a.PreviousCrewID, a.ReassignReason,
	).Scan(&a.ID, &a.CreatedAt)
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id uuid.UUID) (*model.AssignmentResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments WHERE assignment_id = $1`, id)
	return scanAssignment(row)
}

func (s *PostgresStore) ListAssignmentsForJob(ctx context.Context, jobID uuid.UUID) ([]*model.AssignmentResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments WHERE job_id = $1
		ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AssignmentResult
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*model.AssignmentResult, error) {
	a := &model.AssignmentResult{}
	var routeJSON, factorsJSON, backupsJSON, deltaJSON []byte
	err := row.Scan(
		&a.ID, &a.JobID, &a.CrewID, &a.CrewName, &a.ScheduledStart,
		&routeJSON, &a.Score, &a.Reasons, &factorsJSON, &backupsJSON, &deltaJSON,
		&a.Unassigned, &a.UnassignedReason, &a.Escalate,
		&a.PreviousCrewID, &a.ReassignReason, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if routeJSON != nil {
		_ = json.Unmarshal(routeJSON, &a.Route)
	}
	if factorsJSON != nil {
		_ = json.Unmarshal(factorsJSON, &a.Factors)
	}
	if backupsJSON != nil {
		_ = json.Unmarshal(backupsJSON, &a.Backups)
	}
	if deltaJSON != nil {
		_ = json.Unmarshal(deltaJSON, &a.Delta)
	}
	return a, nil
}

func (s *PostgresStore) CreateQuote(ctx context.Context, q *model.PriceQuote) error {
	adjustmentsJSON, _ := json.Marshal(q.Adjustments)
	discountsJSON, _ := json.Marshal(q.Discounts)

	return s.pool.QueryRow(ctx, `
		INSERT INTO quotes (job_id, base_price, adjustments, discounts,
			subtotal, tax, total, confidence, range_low, range_high,
			issued_at, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING quote_id`,
		q.JobID, q.BasePrice, adjustmentsJSON, discountsJSON,
		q.Subtotal, q.Tax, q.Total, q.Confidence, q.RangeLow, q.RangeHigh,
		q.IssuedAt, q.ValidUntil,
	).Scan(&q.ID)
}

func (s *PostgresStore) GetQuote(ctx context.Context, id uuid.UUID) (*model.PriceQuote, error) {
	q := &model.PriceQuote{}
	var adjustmentsJSON, discountsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT quote_id, job_id, base_price, adjustments, discounts,
			subtotal, tax, total, confidence, range_low, range_high,
			issued_at, valid_until
		FROM quotes WHERE quote_id = $1`, id,
	).Scan(
		&q.ID, &q.JobID, &q.BasePrice, &adjustmentsJSON, &discountsJSON,
		&q.Subtotal, &q.Tax, &q.Total, &q.Confidence, &q.RangeLow, &q.RangeHigh,
		&q.IssuedAt, &q.ValidUntil,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if adjustmentsJSON != nil {
		_ = json.Unmarshal(adjustmentsJSON, &q.Adjustments)
	}
	if discountsJSON != nil {
		_ = json.Unmarshal(discountsJSON, &q.Discounts)
	}
	return q, nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT unassigned),
			COUNT(*) FILTER (WHERE unassigned),
			COUNT(*) FILTER (WHERE previous_crew_id IS NOT NULL),
			COALESCE(AVG(score) FILTER (WHERE NOT unassigned), 0)
		FROM assignments`,
	).Scan(&stats.TotalAssigned, &stats.TotalUnassigned, &stats.TotalReassigned, &stats.AvgMatchScore)
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&stats.TotalQuotes)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
