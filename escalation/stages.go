// Package escalation drives claims through the fixed demand-letter ladder:
// a reminder at day 7, a warning at day 14 and a final pre-filing notice
// at day 21, with at least 7 days between any two sends. The interval
// floor follows a small-claims ruling against shorter reminder cycles and
// is never shortened, even when the scheduler is catching up after an
// outage.
package escalation

import (
	"time"

	"cashbus/models"
)

// Stage identifies one step of the escalation ladder.
type Stage int

const (
	StageNone        Stage = 0
	StageReminder    Stage = 1
	StageWarning     Stage = 2
	StageFinalNotice Stage = 3
)

// minStageGapDays is the minimum number of whole days between two
// consecutive letters to the same operator.
const minStageGapDays = 7

// escalationDeadlineDay is the day the ladder ends; earlier letters quote
// the days remaining until this deadline.
const escalationDeadlineDay = 21

// StageSpec defines one ladder step.
type StageSpec struct {
	Stage  Stage
	MinDay int
}

// Ladder is the ordered, closed escalation ladder.
var Ladder = []StageSpec{
	{Stage: StageReminder, MinDay: 7},
	{Stage: StageWarning, MinDay: 14},
	{Stage: StageFinalNotice, MinDay: 21},
}

// Terminal reports whether the stage ends the ladder.
func (s Stage) Terminal() bool {
	return s == StageFinalNotice
}

func (s Stage) String() string {
	switch s {
	case StageReminder:
		return "reminder"
	case StageWarning:
		return "warning"
	case StageFinalNotice:
		return "final_notice"
	}
	return "none"
}

// ComputeDueStage returns the single stage due for a timeline at the given
// instant, if any. It is pure: all temporal logic lives here, decoupled
// from the clock and the store.
//
// Rules:
//   - only active timelines escalate;
//   - elapsed time is counted in whole days in the claim's local timezone;
//   - when several stage thresholds passed (catch-up after an outage),
//     only the highest due stage is returned — the skipped ones get
//     backfilled by the store, not sent;
//   - a stage is never due less than 7 whole days after the previous
//     letter, whatever the day-offset table says.
func ComputeDueStage(t *models.ClaimTimeline, now time.Time, loc *time.Location) (Stage, bool) {
	if t.Status != models.TimelineActive {
		return StageNone, false
	}

	elapsed := elapsedDays(t.InitialSentAt, now, loc)

	due := StageNone
	for _, spec := range Ladder {
		if int(spec.Stage) <= t.HighestSentStage() {
			continue
		}
		if elapsed >= spec.MinDay {
			due = spec.Stage
		}
	}
	if due == StageNone {
		return StageNone, false
	}

	if elapsedDays(t.LastSendTime(), now, loc) < minStageGapDays {
		return StageNone, false
	}
	return due, true
}

// DaysRemaining returns the whole days left until the end of the ladder,
// for the "N days remaining" messaging in non-terminal letters.
func DaysRemaining(t *models.ClaimTimeline, now time.Time, loc *time.Location) int {
	remaining := escalationDeadlineDay - elapsedDays(t.InitialSentAt, now, loc)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// elapsedDays counts whole local days between two instants: the number of
// midnights in loc between them, not 24-hour periods.
func elapsedDays(from, to time.Time, loc *time.Location) int {
	fromLocal := from.In(loc)
	toLocal := to.In(loc)
	fromDate := time.Date(fromLocal.Year(), fromLocal.Month(), fromLocal.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(toLocal.Year(), toLocal.Month(), toLocal.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}
