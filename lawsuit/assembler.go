// Package lawsuit assembles the structured small-claims filing document
// produced at the end of the escalation ladder. Assembly is a
// deterministic template fill over stored facts; rendering and storage of
// the final PDF belong to a downstream collaborator.
package lawsuit

import (
	"fmt"
	"time"

	"cashbus/compensation"
	"cashbus/models"
	"cashbus/operators"
)

// Document is the structured filing content handed to the rendering and
// storage collaborator.
type Document struct {
	ClaimID     string    `json:"claim_id"`
	AssembledAt time.Time `json:"assembled_at"`

	Plaintiff Party `json:"plaintiff"`
	Defendant Party `json:"defendant"`

	// Facts is the chronological facts section.
	Facts []string `json:"facts"`

	// LegalBasis holds the per-incident-kind filing template text.
	LegalBasis []string `json:"legal_basis"`

	// DamagesStatement never asserts a fixed number; the demanded amount
	// is a negotiating position, not the final court ask.
	DamagesStatement string `json:"damages_statement"`

	Evidence []EvidenceItem `json:"evidence"`

	EmailsSent int `json:"emails_sent"`
}

// Party is an identity block in the filing.
type Party struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// EvidenceItem is one entry of the evidence inventory.
type EvidenceItem struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Filing template text per incident kind. Parallel to but distinct from
// the compensation calculator's citation table: these are statement-of-
// claim paragraphs, not demand-letter citations.
var filingBasis = map[string]string{
	models.KindDelay:      "The defendant operated the service materially behind its published timetable, in breach of its service license and of the Consumer Protection Law 5741-1981.",
	models.KindMissedStop: "The defendant's service failed to call at a mandatory stop on its licensed route, in breach of its service license and of the Consumer Protection Law 5741-1981.",
	models.KindNoArrival:  "The defendant's scheduled service did not operate, in breach of its service license and of the Consumer Protection Law 5741-1981.",
}

const dateLayout = "02/01/2006"

// Assemble merges claim, incident and timeline facts into the filing
// document. It is a deterministic template fill: breakdowns are
// recomputed by the caller from incident facts, assembledAt comes from
// the caller's clock, and the claim's locked amount is referenced but
// never asserted as the court ask.
func Assemble(claim models.Claim, incidents []models.Incident, t models.ClaimTimeline, breakdowns []*compensation.Breakdown, assembledAt time.Time) *Document {
	doc := &Document{
		ClaimID:     claim.ID,
		AssembledAt: assembledAt.UTC(),
		Defendant: Party{
			Name:    operators.DisplayName(claim.OperatorID),
			Contact: operatorContact(claim.OperatorID),
		},
		DamagesStatement: fmt.Sprintf(
			"The plaintiff demanded %s ILS in statutory compensation; the amount claimed will be determined at filing.",
			claim.Amount.StringFixed(0)),
		EmailsSent: t.EmailsSent,
	}

	if len(incidents) > 0 {
		doc.Plaintiff = Party{Name: incidents[0].ReporterName, Contact: incidents[0].ReporterEmail}
	}

	for i, inc := range incidents {
		fact := fmt.Sprintf("On %s, line %s at station %s: ", inc.ScheduledAt.Format(dateLayout), inc.LineNumber, inc.StationName)
		if i < len(breakdowns) && breakdowns[i] != nil {
			fact += breakdowns[i].Description
		} else {
			fact += inc.Kind
		}
		doc.Facts = append(doc.Facts, fact)
	}
	doc.Facts = append(doc.Facts,
		fmt.Sprintf("On %s the plaintiff sent the defendant a written compensation demand.", t.InitialSentAt.Format(dateLayout)))
	doc.Facts = append(doc.Facts, stageNoticeFacts(t)...)
	doc.Facts = append(doc.Facts,
		fmt.Sprintf("In total %d written notices were sent; none was answered with payment.", t.EmailsSent))

	seen := map[string]bool{}
	for _, inc := range incidents {
		if basis, ok := filingBasis[inc.Kind]; ok && !seen[inc.Kind] {
			doc.LegalBasis = append(doc.LegalBasis, basis)
			seen[inc.Kind] = true
		}
	}

	doc.Evidence = assembleEvidence(incidents)
	return doc
}

// stageNoticeFacts narrates the escalation notices that were actually
// mailed. A stage carrying the same timestamp as a later stage was
// backfilled by a catch-up advance, not sent; it folds into the notice
// that covered it, keeping the narrative consistent with the email count.
func stageNoticeFacts(t models.ClaimTimeline) []string {
	var facts []string
	for stage := 1; stage <= 3; stage++ {
		ts := t.StageSentAt(stage)
		if ts == nil || stageBackfilled(t, stage) {
			continue
		}
		first := stage
		for first > 1 {
			prev := t.StageSentAt(first - 1)
			if prev == nil || !prev.Equal(*ts) {
				break
			}
			first--
		}
		switch {
		case first == stage-1:
			facts = append(facts, fmt.Sprintf("On %s a written notice (stage %d) was sent; stage %d had fallen due in the interim and was covered by it.",
				ts.Format(dateLayout), stage, first))
		case first < stage:
			facts = append(facts, fmt.Sprintf("On %s a written notice (stage %d) was sent; stages %d to %d had fallen due in the interim and were covered by it.",
				ts.Format(dateLayout), stage, first, stage-1))
		default:
			facts = append(facts, fmt.Sprintf("On %s a further written notice (stage %d) was sent.", ts.Format(dateLayout), stage))
		}
	}
	return facts
}

func stageBackfilled(t models.ClaimTimeline, stage int) bool {
	ts := t.StageSentAt(stage)
	for later := stage + 1; later <= 3; later++ {
		if lts := t.StageSentAt(later); lts != nil && lts.Equal(*ts) {
			return true
		}
	}
	return false
}

// assembleEvidence enumerates what was collected. Sub-sections appear only
// when the underlying fact is present.
func assembleEvidence(incidents []models.Incident) []EvidenceItem {
	var items []EvidenceItem
	receipts := 0
	for _, inc := range incidents {
		if inc.GPSAccuracy != nil {
			items = append(items, EvidenceItem{
				Kind:        "gps_fix",
				Description: fmt.Sprintf("Reporter GPS fix at the station, accuracy %.0f m (incident %s)", *inc.GPSAccuracy, inc.ID),
			})
		}
		if inc.PresenceVerdict != nil {
			items = append(items, EvidenceItem{
				Kind:        "transit_presence_check",
				Description: fmt.Sprintf("Ministry of Transport realtime feed verdict: %s (incident %s)", *inc.PresenceVerdict, inc.ID),
			})
		}
		receipts += inc.ReceiptCount
	}
	if receipts > 0 {
		items = append(items, EvidenceItem{
			Kind:        "receipts",
			Description: fmt.Sprintf("%d expense receipt(s) supporting the declared collateral damage", receipts),
		})
	}
	return items
}

func operatorContact(operatorID string) string {
	op, err := operators.Lookup(operatorID)
	if err != nil {
		return ""
	}
	return op.ContactEmail
}
