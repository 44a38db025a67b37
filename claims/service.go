// Package claims owns incident intake and the claim records derived from
// them. The escalation scheduler consumes it read-only apart from the
// status flip to in_court at the terminal stage.
package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashbus/common"
	"cashbus/compensation"
	"cashbus/models"
	"cashbus/operators"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoIncidents       = errors.New("claim needs at least one incident")
	ErrIncidentClaimed   = errors.New("incident already attached to a claim")
	ErrOperatorMismatch  = errors.New("incidents span multiple operators")
	ErrInvalidResolution = errors.New("invalid claim resolution")
)

// Service reads and writes incidents and claims.
type Service struct {
	db *sql.DB
}

// NewService creates a claims service over the given connection pool.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Bundle is everything needed to render letters and assemble the lawsuit
// document for one claim.
type Bundle struct {
	Claim        models.Claim
	Incidents    []models.Incident
	Operator     operators.Operator
	ReporterName string
	// RecipientEmail is the operator contact the demand letters go to.
	RecipientEmail string
}

// CreateIncident validates the incident facts through the compensation
// calculator and persists them. Validation failures reject the incident
// before anything is written.
func (s *Service) CreateIncident(ctx context.Context, inc *models.Incident) error {
	if _, err := operators.Lookup(inc.OperatorID); err != nil {
		return err
	}
	if _, err := compensation.Calculate(compensation.Input{
		Kind:         inc.Kind,
		DelayMinutes: inc.DelayMinutes,
		DamageType:   inc.DamageType,
		DamageAmount: inc.DamageAmount,
		OperatorID:   inc.OperatorID,
	}); err != nil {
		return err
	}

	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	if inc.DamageType == "" {
		inc.DamageType = models.DamageNone
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO incidents (id, kind, line_number, station_name, operator_id, scheduled_at,
            observed_at, delay_minutes, damage_type, damage_amount, damage_description,
            reporter_name, reporter_email, reporter_location, gps_accuracy, presence_verdict, receipt_count)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Kind, inc.LineNumber, inc.StationName, inc.OperatorID, inc.ScheduledAt.UTC(),
		nullTime(inc.ObservedAt), inc.DelayMinutes, inc.DamageType, inc.DamageAmount, inc.DamageDescription,
		inc.ReporterName, inc.ReporterEmail, inc.ReporterLocation, inc.GPSAccuracy, inc.PresenceVerdict, inc.ReceiptCount)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	log.Infof("Incident %s recorded: %s on line %s (%s)", inc.ID, inc.Kind, inc.LineNumber, inc.OperatorID)
	return nil
}

// CreateClaim builds one claim from unclaimed incidents against a single
// operator. The amount is the sum of the incidents' computed compensation
// at this moment and is locked in; it is never recomputed later.
func (s *Service) CreateClaim(ctx context.Context, incidentIDs []string, operatorID string) (*models.Claim, error) {
	if len(incidentIDs) == 0 {
		return nil, ErrNoIncidents
	}
	if _, err := operators.Lookup(operatorID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	total := decimal.Zero
	for _, incidentID := range incidentIDs {
		inc, err := scanIncident(tx.QueryRowContext(ctx, incidentQuery+" WHERE id = ? FOR UPDATE", incidentID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to load incident %s: %w", incidentID, err)
		}
		if inc.ClaimID != nil {
			return nil, fmt.Errorf("incident %s: %w", incidentID, ErrIncidentClaimed)
		}
		if inc.OperatorID != operatorID {
			return nil, fmt.Errorf("incident %s: %w", incidentID, ErrOperatorMismatch)
		}

		breakdown, err := compensation.Calculate(compensation.Input{
			Kind:         inc.Kind,
			DelayMinutes: inc.DelayMinutes,
			DamageType:   inc.DamageType,
			DamageAmount: inc.DamageAmount,
			OperatorID:   inc.OperatorID,
		})
		if err != nil {
			return nil, fmt.Errorf("incident %s: %w", incidentID, err)
		}
		total = total.Add(breakdown.TotalCompensation)
	}

	claim := &models.Claim{
		ID:         uuid.New().String(),
		OperatorID: operatorID,
		Amount:     total,
		Status:     models.ClaimSubmitted,
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO claims (id, operator_id, amount, status) VALUES (?, ?, ?, ?)`,
		claim.ID, claim.OperatorID, claim.Amount, claim.Status); err != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}
	for _, incidentID := range incidentIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE incidents SET claim_id = ? WHERE id = ?`, claim.ID, incidentID)
		if err != nil {
			return nil, fmt.Errorf("failed to attach incident %s: %w", incidentID, err)
		}
		common.LogResult("attach incident "+incidentID, result, err, true)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	log.Infof("Claim %s created against %s for %s ILS (%d incidents)",
		claim.ID, operatorID, total.StringFixed(0), len(incidentIDs))
	return claim, nil
}

// GetClaim returns one claim.
func (s *Service) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	var c models.Claim
	err := s.db.QueryRowContext(ctx, `
        SELECT id, operator_id, amount, status, created_at FROM claims WHERE id = ?`, claimID).
		Scan(&c.ID, &c.OperatorID, &c.Amount, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim %s: %w", claimID, err)
	}
	return &c, nil
}

// GetClaimBundle loads the claim with its incidents and the display fields
// needed to render letters and the lawsuit document.
func (s *Service) GetClaimBundle(ctx context.Context, claimID string) (*Bundle, error) {
	claim, err := s.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	op, err := operators.Lookup(claim.OperatorID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, incidentQuery+" WHERE claim_id = ? ORDER BY scheduled_at", claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents for claim %s: %w", claimID, err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident for claim %s: %w", claimID, err)
		}
		incidents = append(incidents, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Claim:          *claim,
		Incidents:      incidents,
		Operator:       op,
		RecipientEmail: op.ContactEmail,
	}
	if len(incidents) > 0 {
		bundle.ReporterName = incidents[0].ReporterName
	}
	return bundle, nil
}

// ResolveClaim records an admin or payment-webhook resolution.
func (s *Service) ResolveClaim(ctx context.Context, claimID, status string) error {
	if status != models.ClaimPaid && status != models.ClaimRejected && status != models.ClaimApproved {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, status)
	}
	result, err := s.db.ExecContext(ctx, `
        UPDATE claims SET status = ? WHERE id = ?`, status, claimID)
	if err != nil {
		return fmt.Errorf("failed to resolve claim %s: %w", claimID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for claim %s: %w", claimID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	log.Infof("Claim %s resolved as %s", claimID, status)
	return nil
}

// MarkInCourt flips a claim to in_court once the escalation ladder is
// exhausted and the lawsuit document is assembled.
func (s *Service) MarkInCourt(ctx context.Context, claimID string) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE claims SET status = ? WHERE id = ? AND status NOT IN (?, ?)`,
		models.ClaimInCourt, claimID, models.ClaimPaid, models.ClaimInCourt)
	if err != nil {
		return fmt.Errorf("failed to mark claim %s in court: %w", claimID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for claim %s: %w", claimID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	return nil
}

const incidentQuery = `
    SELECT id, kind, line_number, station_name, operator_id, scheduled_at, observed_at,
           delay_minutes, damage_type, damage_amount, damage_description,
           reporter_name, reporter_email, reporter_location, gps_accuracy, presence_verdict,
           receipt_count, claim_id, created_at
    FROM incidents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(r rowScanner) (*models.Incident, error) {
	var inc models.Incident
	var observedAt sql.NullTime
	var damageDescription, reporterLocation, presenceVerdict, claimID sql.NullString
	var gpsAccuracy sql.NullFloat64
	if err := r.Scan(&inc.ID, &inc.Kind, &inc.LineNumber, &inc.StationName, &inc.OperatorID,
		&inc.ScheduledAt, &observedAt, &inc.DelayMinutes, &inc.DamageType, &inc.DamageAmount,
		&damageDescription, &inc.ReporterName, &inc.ReporterEmail, &reporterLocation,
		&gpsAccuracy, &presenceVerdict, &inc.ReceiptCount, &claimID, &inc.CreatedAt); err != nil {
		return nil, err
	}
	if observedAt.Valid {
		inc.ObservedAt = &observedAt.Time
	}
	inc.DamageDescription = damageDescription.String
	inc.ReporterLocation = reporterLocation.String
	if gpsAccuracy.Valid {
		inc.GPSAccuracy = &gpsAccuracy.Float64
	}
	if presenceVerdict.Valid {
		inc.PresenceVerdict = &presenceVerdict.String
	}
	if claimID.Valid {
		inc.ClaimID = &claimID.String
	}
	return &inc, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
