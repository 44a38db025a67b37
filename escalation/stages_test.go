package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cashbus/models"
)

// Fixed offset stands in for Asia/Jerusalem so tests do not depend on the
// host tz database.
var israelTZ = time.FixedZone("IST", 2*60*60)

func activeTimeline(initial time.Time) *models.ClaimTimeline {
	return &models.ClaimTimeline{
		ClaimID:       "claim-1",
		Status:        models.TimelineActive,
		InitialSentAt: initial,
		EmailsSent:    1,
		LastEmailAt:   initial,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, 1, hour, 0, 0, 0, israelTZ).AddDate(0, 0, day)
}

func TestComputeDueStageLadder(t *testing.T) {
	initial := at(0, 10)

	testCases := []struct {
		name      string
		timeline  *models.ClaimTimeline
		now       time.Time
		wantStage Stage
		wantDue   bool
	}{
		{name: "day 6 below first threshold", timeline: activeTimeline(initial), now: at(6, 10), wantStage: StageNone},
		{name: "day 7 first reminder due", timeline: activeTimeline(initial), now: at(7, 10), wantStage: StageReminder, wantDue: true},
		{name: "day 13 nothing new due", timeline: withStageSent(activeTimeline(initial), 1, at(7, 10)), now: at(13, 10), wantStage: StageNone},
		{name: "day 14 warning due", timeline: withStageSent(activeTimeline(initial), 1, at(7, 10)), now: at(14, 10), wantStage: StageWarning, wantDue: true},
		{name: "day 21 final notice due", timeline: withStageSent(withStageSent(activeTimeline(initial), 1, at(7, 10)), 2, at(14, 10)), now: at(21, 10), wantStage: StageFinalNotice, wantDue: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stage, due := ComputeDueStage(tc.timeline, tc.now, israelTZ)
			assert.Equal(t, tc.wantDue, due)
			assert.Equal(t, tc.wantStage, stage)
		})
	}
}

func TestComputeDueStageCatchUpCollapses(t *testing.T) {
	// Scheduler down for 25 days: only the most escalated stage is due,
	// never a backlog of stale letters.
	tl := activeTimeline(at(0, 10))
	stage, due := ComputeDueStage(tl, at(25, 10), israelTZ)
	assert.True(t, due)
	assert.Equal(t, StageFinalNotice, stage)
}

func TestComputeDueStageMinimumGap(t *testing.T) {
	// Stage 1 went out late (day 9); the day-14 threshold alone does not
	// make stage 2 due, the 7-day interval floor also has to pass.
	tl := withStageSent(activeTimeline(at(0, 10)), 1, at(9, 10))
	tl.EmailsSent = 2

	_, due := ComputeDueStage(tl, at(14, 10), israelTZ)
	assert.False(t, due, "day 14 is only 5 days after the stage 1 letter")

	stage, due := ComputeDueStage(tl, at(16, 10), israelTZ)
	assert.True(t, due)
	assert.Equal(t, StageWarning, stage)
}

func TestComputeDueStageSkipsResolved(t *testing.T) {
	for _, status := range []string{models.TimelinePaid, models.TimelineCancelled, models.TimelineComplete} {
		tl := activeTimeline(at(0, 10))
		tl.Status = status
		_, due := ComputeDueStage(tl, at(30, 10), israelTZ)
		assert.False(t, due, "status %s must never escalate", status)
	}
}

func TestComputeDueStageWholeDayGranularity(t *testing.T) {
	// Elapsed days count local midnights, not 24-hour periods: a letter
	// sent late on day 0 is 7 days old early on day 7.
	initial := time.Date(2025, 3, 1, 23, 50, 0, 0, israelTZ)
	now := time.Date(2025, 3, 8, 0, 10, 0, 0, israelTZ)

	stage, due := ComputeDueStage(activeTimeline(initial), now, israelTZ)
	assert.True(t, due)
	assert.Equal(t, StageReminder, stage)
}

func TestComputeDueStageAfterFinalStage(t *testing.T) {
	tl := activeTimeline(at(0, 10))
	tl = withStageSent(tl, 1, at(7, 10))
	tl = withStageSent(tl, 2, at(14, 10))
	tl = withStageSent(tl, 3, at(21, 10))
	_, due := ComputeDueStage(tl, at(40, 10), israelTZ)
	assert.False(t, due)
}

func TestDaysRemaining(t *testing.T) {
	tl := activeTimeline(at(0, 10))
	assert.Equal(t, 14, DaysRemaining(tl, at(7, 10), israelTZ))
	assert.Equal(t, 7, DaysRemaining(tl, at(14, 10), israelTZ))
	assert.Equal(t, 0, DaysRemaining(tl, at(25, 10), israelTZ))
}

func withStageSent(t *models.ClaimTimeline, stage int, ts time.Time) *models.ClaimTimeline {
	switch stage {
	case 1:
		t.Stage1SentAt = &ts
	case 2:
		t.Stage2SentAt = &ts
	case 3:
		t.Stage3SentAt = &ts
	}
	t.LastEmailAt = ts
	return t
}
