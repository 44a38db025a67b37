package claims

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"github.com/shopspring/decimal"

	"cashbus/compensation"
	"cashbus/models"
	"cashbus/operators"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

var incidentColumns = []string{
	"id", "kind", "line_number", "station_name", "operator_id", "scheduled_at", "observed_at",
	"delay_minutes", "damage_type", "damage_amount", "damage_description",
	"reporter_name", "reporter_email", "reporter_location", "gps_accuracy", "presence_verdict",
	"receipt_count", "claim_id", "created_at",
}

func incidentRows(id, operatorID string, delayMinutes int, claimID driver.Value) *sqlmock.Rows {
	return sqlmock.NewRows(incidentColumns).AddRow(
		id, models.KindDelay, "480", "Haifa Merkazit HaMifratz", operatorID,
		time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), nil,
		delayMinutes, models.DamageNone, "0", nil,
		"Noa Levi", "noa@example.com", nil, nil, nil,
		0, claimID, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	)
}

func TestCreateIncidentRejectsBeforeInsert(t *testing.T) {
	it(func() {
		service := NewService(db)

		testCases := []struct {
			name     string
			incident models.Incident
			wantErr  error
		}{
			{
				name: "unknown kind",
				incident: models.Incident{
					Kind:       "teleportation_failure",
					OperatorID: "egged",
					DamageType: models.DamageNone,
				},
				wantErr: compensation.ErrUnknownKind,
			},
			{
				name: "negative damage",
				incident: models.Incident{
					Kind:         models.KindDelay,
					OperatorID:   "egged",
					DamageType:   models.DamageTaxiCost,
					DamageAmount: decimal.NewFromInt(-5),
				},
				wantErr: compensation.ErrNegativeDamage,
			},
			{
				name: "unknown operator",
				incident: models.Incident{
					Kind:       models.KindDelay,
					OperatorID: "hogwarts_express",
					DamageType: models.DamageNone,
				},
				wantErr: operators.ErrUnknownOperator,
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				inc := tc.incident
				err := service.CreateIncident(context.Background(), &inc)
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("CreateIncident: got %v, want %v", err, tc.wantErr)
				}
			})
		}

		// No INSERT was ever expected; a write would fail the mock.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateIncidentPersists(t *testing.T) {
	it(func() {
		service := NewService(db)

		mock.ExpectExec("INSERT INTO incidents").
			WillReturnResult(sqlmock.NewResult(1, 1))

		inc := models.Incident{
			Kind:          models.KindDelay,
			LineNumber:    "480",
			StationName:   "Haifa Merkazit HaMifratz",
			OperatorID:    "egged",
			ScheduledAt:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
			DelayMinutes:  45,
			DamageType:    models.DamageNone,
			ReporterName:  "Noa Levi",
			ReporterEmail: "noa@example.com",
		}
		if err := service.CreateIncident(context.Background(), &inc); err != nil {
			t.Fatalf("CreateIncident: unexpected error: %v", err)
		}
		if inc.ID == "" {
			t.Error("CreateIncident: expected a generated incident ID")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateClaimLocksSummedAmount(t *testing.T) {
	it(func() {
		service := NewService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM incidents").
			WithArgs("inc-1").
			WillReturnRows(incidentRows("inc-1", "egged", 45, nil))
		mock.ExpectQuery("SELECT (.+) FROM incidents").
			WithArgs("inc-2").
			WillReturnRows(incidentRows("inc-2", "egged", 75, nil))
		// 45 min delay pays 65, 75 min pays 130.
		mock.ExpectExec("INSERT INTO claims").
			WithArgs(sqlmock.AnyArg(), "egged", decimal.NewFromInt(195), models.ClaimSubmitted).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE incidents SET claim_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE incidents SET claim_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		claim, err := service.CreateClaim(context.Background(), []string{"inc-1", "inc-2"}, "egged")
		if err != nil {
			t.Fatalf("CreateClaim: unexpected error: %v", err)
		}
		if !claim.Amount.Equal(decimal.NewFromInt(195)) {
			t.Errorf("CreateClaim: amount = %s, want 195", claim.Amount)
		}
		if claim.Status != models.ClaimSubmitted {
			t.Errorf("CreateClaim: status = %s, want %s", claim.Status, models.ClaimSubmitted)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateClaimRejectsClaimedIncident(t *testing.T) {
	it(func() {
		service := NewService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM incidents").
			WithArgs("inc-1").
			WillReturnRows(incidentRows("inc-1", "egged", 45, "claim-0"))
		mock.ExpectRollback()

		_, err := service.CreateClaim(context.Background(), []string{"inc-1"}, "egged")
		if !errors.Is(err, ErrIncidentClaimed) {
			t.Errorf("CreateClaim: got %v, want ErrIncidentClaimed", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateClaimRejectsOperatorMismatch(t *testing.T) {
	it(func() {
		service := NewService(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM incidents").
			WithArgs("inc-1").
			WillReturnRows(incidentRows("inc-1", "dan", 45, nil))
		mock.ExpectRollback()

		_, err := service.CreateClaim(context.Background(), []string{"inc-1"}, "egged")
		if !errors.Is(err, ErrOperatorMismatch) {
			t.Errorf("CreateClaim: got %v, want ErrOperatorMismatch", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateClaimNeedsIncidents(t *testing.T) {
	it(func() {
		service := NewService(db)

		_, err := service.CreateClaim(context.Background(), nil, "egged")
		if !errors.Is(err, ErrNoIncidents) {
			t.Errorf("CreateClaim: got %v, want ErrNoIncidents", err)
		}
	})
}

func TestResolveClaim(t *testing.T) {
	it(func() {
		service := NewService(db)

		if err := service.ResolveClaim(context.Background(), "claim-1", "exploded"); !errors.Is(err, ErrInvalidResolution) {
			t.Errorf("ResolveClaim: got %v, want ErrInvalidResolution", err)
		}

		mock.ExpectExec("UPDATE claims SET status").
			WithArgs(models.ClaimPaid, "claim-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		if err := service.ResolveClaim(context.Background(), "claim-1", models.ClaimPaid); err != nil {
			t.Errorf("ResolveClaim: unexpected error: %v", err)
		}

		mock.ExpectExec("UPDATE claims SET status").
			WithArgs(models.ClaimRejected, "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		if err := service.ResolveClaim(context.Background(), "missing", models.ClaimRejected); !errors.Is(err, ErrNotFound) {
			t.Errorf("ResolveClaim: got %v, want ErrNotFound", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestMarkInCourtGuardsTerminalStatuses(t *testing.T) {
	it(func() {
		service := NewService(db)

		mock.ExpectExec("UPDATE claims SET status").
			WithArgs(models.ClaimInCourt, "claim-1", models.ClaimPaid, models.ClaimInCourt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := service.MarkInCourt(context.Background(), "claim-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkInCourt: got %v, want ErrNotFound", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
