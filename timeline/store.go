// Package timeline persists the escalation state of each claim. The store
// is the sole point of mutual exclusion for the scheduler: every stage
// advance is a single conditional UPDATE, so an overlapping run loses the
// race and gets ErrConflict instead of double-sending a stage.
package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"

	"cashbus/models"
)

// ErrConflict is returned when a conditional write matched no row: the
// timeline was advanced or resolved by someone else since it was read.
var ErrConflict = fmt.Errorf("timeline state changed since read")

// Store reads and mutates claim timelines.
type Store struct {
	db *sql.DB
}

// NewStore creates a timeline store over the given connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Seed creates the timeline row for a claim whose initial demand letter
// was just confirmed sent. initialSentAt becomes day 0.
func (s *Store) Seed(ctx context.Context, claimID string, initialSentAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO claim_timelines (claim_id, status, initial_sent_at, emails_sent, last_email_at)
        VALUES (?, 'active', ?, 1, ?)`,
		claimID, initialSentAt.UTC(), initialSentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to seed timeline for claim %s: %w", claimID, err)
	}
	log.Infof("Seeded timeline for claim %s (day 0 = %s)", claimID, initialSentAt.UTC().Format(time.RFC3339))
	return nil
}

// Get returns one claim timeline.
func (s *Store) Get(ctx context.Context, claimID string) (*models.ClaimTimeline, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT claim_id, status, initial_sent_at, stage1_sent_at, stage2_sent_at, stage3_sent_at,
               emails_sent, last_email_at
        FROM claim_timelines
        WHERE claim_id = ?`, claimID)
	t, err := scanTimeline(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline for claim %s: %w", claimID, err)
	}
	return t, nil
}

// GetDueForEscalation returns active timelines whose earliest possible
// stage deadline may have passed. Elapsed time is counted in whole local
// days, so a timeline seeded just before a local midnight is 7 days old
// after only a bit more than 6 days of wall time; the cutoff is one day
// generous so the filter can only over-select. The scheduler re-derives
// the exact due stage per timeline, applying the 7-day stage gap and
// local-timezone day boundaries in one place. Reads fresh state every
// run, never a cached candidate list.
func (s *Store) GetDueForEscalation(ctx context.Context, asOf time.Time) ([]models.ClaimTimeline, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT claim_id, status, initial_sent_at, stage1_sent_at, stage2_sent_at, stage3_sent_at,
               emails_sent, last_email_at
        FROM claim_timelines
        WHERE status = 'active'
          AND stage3_sent_at IS NULL
          AND initial_sent_at <= DATE_SUB(?, INTERVAL 6 DAY)
        ORDER BY initial_sent_at`, asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due timelines: %w", err)
	}
	defer rows.Close()

	var timelines []models.ClaimTimeline
	for rows.Next() {
		t, err := scanTimeline(rows)
		if err != nil {
			log.Errorf("Skipping bad timeline row: %v", err)
			continue
		}
		timelines = append(timelines, *t)
	}
	return timelines, rows.Err()
}

// AdvanceStage records a confirmed stage send. The write is conditional on
// the timeline still being active and the stage still unsent; affecting
// zero rows surfaces as ErrConflict and the caller skips the claim this
// run. Earlier unsent stages are backfilled with the same timestamp so the
// stage order invariant holds after a catch-up run. The terminal stage
// also completes the timeline.
func (s *Store) AdvanceStage(ctx context.Context, claimID string, stage int, sentAt time.Time) error {
	ts := sentAt.UTC()

	var query string
	var args []any
	switch stage {
	case 1:
		query = `
            UPDATE claim_timelines
            SET stage1_sent_at = ?, emails_sent = emails_sent + 1, last_email_at = ?
            WHERE claim_id = ? AND status = 'active' AND stage1_sent_at IS NULL`
		args = []any{ts, ts, claimID}
	case 2:
		query = `
            UPDATE claim_timelines
            SET stage1_sent_at = COALESCE(stage1_sent_at, ?), stage2_sent_at = ?,
                emails_sent = emails_sent + 1, last_email_at = ?
            WHERE claim_id = ? AND status = 'active' AND stage2_sent_at IS NULL`
		args = []any{ts, ts, ts, claimID}
	case 3:
		query = `
            UPDATE claim_timelines
            SET stage1_sent_at = COALESCE(stage1_sent_at, ?), stage2_sent_at = COALESCE(stage2_sent_at, ?),
                stage3_sent_at = ?, emails_sent = emails_sent + 1, last_email_at = ?, status = 'complete'
            WHERE claim_id = ? AND status = 'active' AND stage3_sent_at IS NULL`
		args = []any{ts, ts, ts, ts, claimID}
	default:
		return fmt.Errorf("invalid escalation stage %d", stage)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to advance claim %s to stage %d: %w", claimID, stage, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for claim %s: %w", claimID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s stage %d: %w", claimID, stage, ErrConflict)
	}
	return nil
}

// MarkResolved stops escalation permanently: paid or cancelled.
func (s *Store) MarkResolved(ctx context.Context, claimID, status string) error {
	if status != models.TimelinePaid && status != models.TimelineCancelled {
		return fmt.Errorf("invalid resolution status %q", status)
	}
	result, err := s.db.ExecContext(ctx, `
        UPDATE claim_timelines SET status = ? WHERE claim_id = ? AND status = 'active'`,
		status, claimID)
	if err != nil {
		return fmt.Errorf("failed to resolve timeline for claim %s: %w", claimID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for claim %s: %w", claimID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s resolve to %s: %w", claimID, status, ErrConflict)
	}
	log.Infof("Timeline for claim %s resolved as %s", claimID, status)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeline(r rowScanner) (*models.ClaimTimeline, error) {
	var t models.ClaimTimeline
	var stage1, stage2, stage3 sql.NullTime
	if err := r.Scan(&t.ClaimID, &t.Status, &t.InitialSentAt, &stage1, &stage2, &stage3,
		&t.EmailsSent, &t.LastEmailAt); err != nil {
		return nil, err
	}
	if stage1.Valid {
		t.Stage1SentAt = &stage1.Time
	}
	if stage2.Valid {
		t.Stage2SentAt = &stage2.Time
	}
	if stage3.Valid {
		t.Stage3SentAt = &stage3.Time
	}
	return &t, nil
}
