package lawsuit

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashbus/compensation"
	"cashbus/models"
)

var assembledAt = time.Date(2025, 3, 22, 7, 30, 0, 0, time.UTC)

func fixture() (models.Claim, []models.Incident, models.ClaimTimeline) {
	day0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	stage1 := day0.AddDate(0, 0, 7)
	stage2 := day0.AddDate(0, 0, 14)
	stage3 := day0.AddDate(0, 0, 21)

	claim := models.Claim{
		ID:         "claim-7",
		OperatorID: "dan",
		Amount:     decimal.NewFromInt(165),
		Status:     models.ClaimInCourt,
		CreatedAt:  day0,
	}
	gps := 8.0
	verdict := "bus_absent"
	incidents := []models.Incident{
		{
			ID:              "inc-1",
			Kind:            models.KindDelay,
			LineNumber:      "5",
			StationName:     "Tel Aviv Central",
			OperatorID:      "dan",
			ScheduledAt:     day0.AddDate(0, 0, -2),
			DelayMinutes:    45,
			DamageType:      models.DamageTaxiCost,
			DamageAmount:    decimal.NewFromInt(100),
			ReporterName:    "Noa Levi",
			ReporterEmail:   "noa@example.com",
			GPSAccuracy:     &gps,
			PresenceVerdict: &verdict,
			ReceiptCount:    2,
		},
	}
	tl := models.ClaimTimeline{
		ClaimID:       "claim-7",
		Status:        models.TimelineComplete,
		InitialSentAt: day0,
		Stage1SentAt:  &stage1,
		Stage2SentAt:  &stage2,
		Stage3SentAt:  &stage3,
		EmailsSent:    4,
		LastEmailAt:   stage3,
	}
	return claim, incidents, tl
}

func breakdownsFor(t *testing.T, incidents []models.Incident) []*compensation.Breakdown {
	t.Helper()
	out := make([]*compensation.Breakdown, len(incidents))
	for i, inc := range incidents {
		b, err := compensation.Calculate(compensation.Input{
			Kind:         inc.Kind,
			DelayMinutes: inc.DelayMinutes,
			DamageType:   inc.DamageType,
			DamageAmount: inc.DamageAmount,
			OperatorID:   inc.OperatorID,
		})
		require.NoError(t, err)
		out[i] = b
	}
	return out
}

func TestAssembleIdentityBlocks(t *testing.T) {
	claim, incidents, tl := fixture()
	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)

	assert.Equal(t, "claim-7", doc.ClaimID)
	assert.Equal(t, "Noa Levi", doc.Plaintiff.Name)
	assert.Equal(t, "noa@example.com", doc.Plaintiff.Contact)
	assert.Equal(t, "Dan Public Transportation Ltd.", doc.Defendant.Name)
	assert.NotEmpty(t, doc.Defendant.Contact)
	assert.Equal(t, assembledAt, doc.AssembledAt)
}

func TestAssembleIsDeterministic(t *testing.T) {
	claim, incidents, tl := fixture()
	breakdowns := breakdownsFor(t, incidents)

	first := Assemble(claim, incidents, tl, breakdowns, assembledAt)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Assemble(claim, incidents, tl, breakdowns, assembledAt))
	}
}

func TestAssembleChronologicalFacts(t *testing.T) {
	claim, incidents, tl := fixture()
	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)

	require.GreaterOrEqual(t, len(doc.Facts), 5)
	assert.Contains(t, doc.Facts[0], "line 5")
	assert.Contains(t, doc.Facts[0], "45 minutes")
	assert.Contains(t, doc.Facts[1], "written compensation demand")
	assert.Contains(t, doc.Facts[len(doc.Facts)-1], "4 written notices")
}

func TestAssembleCollapsedStagesNotNarratedAsSent(t *testing.T) {
	claim, incidents, tl := fixture()

	// Catch-up run: stages 1 and 2 were backfilled with the final
	// notice's timestamp, so only two letters ever went out. The facts
	// must not claim the backfilled stages were mailed, and the notice
	// narrative must agree with the email count.
	collapsed := *tl.Stage3SentAt
	tl.Stage1SentAt = &collapsed
	tl.Stage2SentAt = &collapsed
	tl.EmailsSent = 2

	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)

	var noticeFacts []string
	for _, fact := range doc.Facts {
		if strings.Contains(fact, "notice (stage") {
			noticeFacts = append(noticeFacts, fact)
		}
	}
	require.Len(t, noticeFacts, 1, "only the final notice was actually mailed")
	assert.Contains(t, noticeFacts[0], "stage 3")
	assert.Contains(t, noticeFacts[0], "stages 1 to 2")
	assert.Contains(t, doc.Facts[len(doc.Facts)-1], "2 written notices")
}

func TestAssembleDamagesNeverAssertsFixedAsk(t *testing.T) {
	claim, incidents, tl := fixture()
	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)

	assert.Contains(t, doc.DamagesStatement, "determined at filing")
	assert.Contains(t, doc.DamagesStatement, "165 ILS", "the demanded amount is referenced, not asserted")
}

func TestAssembleLegalBasisPerKind(t *testing.T) {
	claim, incidents, tl := fixture()

	// Two incidents of the same kind produce one basis paragraph.
	second := incidents[0]
	second.ID = "inc-2"
	incidents = append(incidents, second)

	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)
	require.Len(t, doc.LegalBasis, 1)
	assert.Contains(t, doc.LegalBasis[0], "published timetable")
}

func TestAssembleEvidenceInventoryConditional(t *testing.T) {
	claim, incidents, tl := fixture()

	doc := Assemble(claim, incidents, tl, breakdownsFor(t, incidents), assembledAt)
	kinds := map[string]bool{}
	for _, item := range doc.Evidence {
		kinds[item.Kind] = true
	}
	assert.True(t, kinds["gps_fix"])
	assert.True(t, kinds["transit_presence_check"])
	assert.True(t, kinds["receipts"])

	// Strip the optional facts: the sub-sections disappear.
	bare := incidents
	bare[0].GPSAccuracy = nil
	bare[0].PresenceVerdict = nil
	bare[0].ReceiptCount = 0
	doc = Assemble(claim, bare, tl, breakdownsFor(t, bare), assembledAt)
	assert.Empty(t, doc.Evidence)
}
