package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Incident kinds. Closed set, validated by the compensation calculator.
const (
	KindDelay      = "delay"
	KindMissedStop = "missed_stop"
	KindNoArrival  = "no_arrival"
)

// Damage claim types. Closed set.
const (
	DamageNone         = "none"
	DamageTaxiCost     = "taxi_cost"
	DamageLostWorkday  = "lost_workday"
	DamageTicketRefund = "ticket_refund"
	DamageOther        = "other"
)

// Claim lifecycle statuses.
const (
	ClaimSubmitted   = "submitted"
	ClaimUnderReview = "under_review"
	ClaimApproved    = "approved"
	ClaimRejected    = "rejected"
	ClaimPaid        = "paid"
	ClaimInCourt     = "in_court"
)

// Timeline statuses. Only "active" timelines are scanned by the
// escalation scheduler.
const (
	TimelineActive    = "active"
	TimelinePaid      = "paid"
	TimelineCancelled = "cancelled"
	TimelineComplete  = "complete"
)

// Incident is one reported bus-service failure. Immutable after creation;
// referenced by at most one claim.
type Incident struct {
	ID                string          `json:"id"`
	Kind              string          `json:"kind"`
	LineNumber        string          `json:"line_number"`
	StationName       string          `json:"station_name"`
	OperatorID        string          `json:"operator_id"`
	ScheduledAt       time.Time       `json:"scheduled_at"`
	ObservedAt        *time.Time      `json:"observed_at,omitempty"`
	DelayMinutes      int             `json:"delay_minutes"`
	DamageType        string          `json:"damage_type"`
	DamageAmount      decimal.Decimal `json:"damage_amount"`
	DamageDescription string          `json:"damage_description,omitempty"`
	ReporterName      string          `json:"reporter_name"`
	ReporterEmail     string          `json:"reporter_email"`
	ReporterLocation  string          `json:"reporter_location,omitempty"`
	GPSAccuracy       *float64        `json:"gps_accuracy,omitempty"`
	PresenceVerdict   *string         `json:"presence_verdict,omitempty"`
	ReceiptCount      int             `json:"receipt_count"`
	ClaimID           *string         `json:"claim_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Claim is the legal demand derived from incidents against one operator.
// Amount is locked at creation time and never recomputed.
type Claim struct {
	ID         string          `json:"id"`
	OperatorID string          `json:"operator_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ClaimTimeline tracks which demand-letter stages were sent and when.
// InitialSentAt is day 0 for all elapsed-day calculations.
type ClaimTimeline struct {
	ClaimID       string     `json:"claim_id"`
	Status        string     `json:"status"`
	InitialSentAt time.Time  `json:"initial_sent_at"`
	Stage1SentAt  *time.Time `json:"stage1_sent_at,omitempty"`
	Stage2SentAt  *time.Time `json:"stage2_sent_at,omitempty"`
	Stage3SentAt  *time.Time `json:"stage3_sent_at,omitempty"`
	EmailsSent    int        `json:"emails_sent"`
	LastEmailAt   time.Time  `json:"last_email_at"`
}

// ErrorResponse is the generic API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the generic API success envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// StageSentAt returns the sent timestamp for stage 1..3, or nil.
func (t *ClaimTimeline) StageSentAt(stage int) *time.Time {
	switch stage {
	case 1:
		return t.Stage1SentAt
	case 2:
		return t.Stage2SentAt
	case 3:
		return t.Stage3SentAt
	}
	return nil
}

// HighestSentStage returns the highest stage with a sent timestamp, 0 if none.
func (t *ClaimTimeline) HighestSentStage() int {
	switch {
	case t.Stage3SentAt != nil:
		return 3
	case t.Stage2SentAt != nil:
		return 2
	case t.Stage1SentAt != nil:
		return 1
	}
	return 0
}

// LastSendTime returns the timestamp of the most recent letter, which is
// the initial demand letter when no escalation stage was sent yet.
func (t *ClaimTimeline) LastSendTime() time.Time {
	if ts := t.StageSentAt(t.HighestSentStage()); ts != nil {
		return *ts
	}
	return t.InitialSentAt
}
