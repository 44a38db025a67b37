package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"

	"cashbus/claims"
	"cashbus/compensation"
	"cashbus/email"
	"cashbus/lawsuit"
	"cashbus/metrics"
	"cashbus/models"
	"cashbus/timeline"
)

// Scheduler is the stateless escalation batch job. It is built per run
// from explicit collaborators; it holds no hidden process-wide state and
// everything temporal comes from the injected clock.
type Scheduler struct {
	store     *timeline.Store
	claims    *claims.Service
	sender    email.Sender
	publisher lawsuit.DocumentPublisher
	loc       *time.Location
	now       func() time.Time
}

// RunStats summarizes one scheduler pass for the operational log.
type RunStats struct {
	Scanned   int
	Sent      int
	Skipped   int
	Failed    int
	Completed int
}

// NewScheduler wires the escalation batch job. publisher may be nil; the
// lawsuit handoff then degrades to log-only.
func NewScheduler(store *timeline.Store, claimsSvc *claims.Service, sender email.Sender, publisher lawsuit.DocumentPublisher, loc *time.Location) *Scheduler {
	return &Scheduler{
		store:     store,
		claims:    claimsSvc,
		sender:    sender,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock overrides the scheduler clock. Tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run executes one escalation pass. Safe to invoke at any cadence and to
// retry: a timeline only advances past a stage after its letter delivery
// is confirmed, and the store rejects concurrent advances, so overlapping
// runs cannot double-send. One claim's failure never aborts the pass.
func (s *Scheduler) Run(ctx context.Context) (*RunStats, error) {
	asOf := s.now()
	stats := &RunStats{}

	timelines, err := s.store.GetDueForEscalation(ctx, asOf)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(timelines)
	log.Infof("Escalation run started: %d candidate timelines as of %s", len(timelines), asOf.Format(time.RFC3339))

	for i := range timelines {
		t := &timelines[i]
		if err := s.processTimeline(ctx, t, asOf, stats); err != nil {
			log.Errorf("Failed to process claim %s: %v", t.ClaimID, err)
			stats.Failed++
		}
	}

	metrics.EscalationScannedTotal.Add(float64(stats.Scanned))
	metrics.EscalationProcessedTotal.WithLabelValues("sent").Add(float64(stats.Sent))
	metrics.EscalationProcessedTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	metrics.EscalationProcessedTotal.WithLabelValues("failed").Add(float64(stats.Failed))
	metrics.EscalationCompletedTotal.Add(float64(stats.Completed))
	metrics.EscalationLastRunSeconds.Set(float64(asOf.Unix()))

	log.Infof("Escalation run finished: scanned=%d sent=%d skipped=%d failed=%d completed=%d",
		stats.Scanned, stats.Sent, stats.Skipped, stats.Failed, stats.Completed)
	return stats, nil
}

// processTimeline advances one claim by at most one stage.
func (s *Scheduler) processTimeline(ctx context.Context, t *models.ClaimTimeline, asOf time.Time, stats *RunStats) error {
	stage, due := ComputeDueStage(t, asOf, s.loc)
	if !due {
		stats.Skipped++
		return nil
	}

	bundle, err := s.claims.GetClaimBundle(ctx, t.ClaimID)
	if err != nil {
		return err
	}

	letter := RenderLetter(stage, LetterData{
		ClaimID:       bundle.Claim.ID,
		OperatorName:  bundle.Operator.DisplayName,
		Amount:        bundle.Claim.Amount,
		ReporterName:  bundle.ReporterName,
		ElapsedDays:   elapsedDays(t.InitialSentAt, asOf, s.loc),
		DaysRemaining: DaysRemaining(t, asOf, s.loc),
	})

	result := s.sender.Send(ctx, bundle.RecipientEmail, letter.Subject, letter.TextBody, letter.HTMLBody)
	if !result.Succeeded {
		// Timeline untouched; the same stage is retried next run.
		err := result.Err
		if err == nil {
			err = errors.New("delivery not confirmed by sender")
		}
		log.WithError(err).Warnf("Stage %s letter for claim %s not delivered", stage, t.ClaimID)
		return err
	}
	log.Infof("Stage %s letter for claim %s delivered (message id %q)", stage, t.ClaimID, result.MessageID)

	if err := s.store.AdvanceStage(ctx, t.ClaimID, int(stage), asOf); err != nil {
		if errors.Is(err, timeline.ErrConflict) {
			// A concurrent run or an admin resolution won the race. The
			// letter went out but the state stands as the other writer
			// left it; re-evaluated next run.
			log.Warnf("Claim %s stage %s advance conflicted, skipping this run", t.ClaimID, stage)
			stats.Skipped++
			return nil
		}
		return err
	}
	stats.Sent++

	if stage.Terminal() {
		s.completeEscalation(ctx, t, bundle, asOf)
		stats.Completed++
	}
	return nil
}

// completeEscalation runs the terminal-stage side effects: claim status to
// in_court, lawsuit document assembled and handed off. All best-effort;
// the stage advance has already committed and a missing document can be
// regenerated from stored facts.
func (s *Scheduler) completeEscalation(ctx context.Context, t *models.ClaimTimeline, bundle *claims.Bundle, sentAt time.Time) {
	if err := s.claims.MarkInCourt(ctx, t.ClaimID); err != nil {
		log.WithError(err).Errorf("Failed to mark claim %s in court", t.ClaimID)
	}

	final := *t
	final.Status = models.TimelineComplete
	ts := sentAt.UTC()
	if final.Stage1SentAt == nil {
		final.Stage1SentAt = &ts
	}
	if final.Stage2SentAt == nil {
		final.Stage2SentAt = &ts
	}
	final.Stage3SentAt = &ts
	final.EmailsSent++
	final.LastEmailAt = ts

	breakdowns := make([]*compensation.Breakdown, len(bundle.Incidents))
	for i, inc := range bundle.Incidents {
		b, err := compensation.Calculate(compensation.Input{
			Kind:         inc.Kind,
			DelayMinutes: inc.DelayMinutes,
			DamageType:   inc.DamageType,
			DamageAmount: inc.DamageAmount,
			OperatorID:   inc.OperatorID,
		})
		if err != nil {
			log.WithError(err).Errorf("Failed to recompute breakdown for incident %s", inc.ID)
			continue
		}
		breakdowns[i] = b
	}

	doc := lawsuit.Assemble(bundle.Claim, bundle.Incidents, final, breakdowns, sentAt)
	if s.publisher == nil {
		log.Infof("Lawsuit document for claim %s assembled (no publisher configured)", t.ClaimID)
		return
	}
	if err := s.publisher.PublishDocument(ctx, doc); err != nil {
		log.WithError(err).Errorf("Failed to hand off lawsuit document for claim %s", t.ClaimID)
		return
	}
	log.Infof("Lawsuit document for claim %s handed off", t.ClaimID)
}
