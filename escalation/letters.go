package escalation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LetterData carries the claim facts embedded in a demand letter. Amount
// is the claim's locked-in amount, never recomputed at render time.
type LetterData struct {
	ClaimID       string
	OperatorName  string
	Amount        decimal.Decimal
	ReporterName  string
	LineNumber    string
	StationName   string
	ElapsedDays   int
	DaysRemaining int
}

// Letter is the rendered content handed to the notification sender.
type Letter struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// RenderLetter renders the stage-specific demand letter.
func RenderLetter(stage Stage, d LetterData) Letter {
	switch stage {
	case StageReminder:
		return renderReminder(d)
	case StageWarning:
		return renderWarning(d)
	case StageFinalNotice:
		return renderFinalNotice(d)
	}
	return Letter{}
}

// RenderInitialLetter renders the day-0 demand letter that opens a claim.
func RenderInitialLetter(d LetterData) Letter {
	subject := fmt.Sprintf("Compensation demand - claim %s", d.ClaimID)
	text := fmt.Sprintf(`To %s,

On behalf of %s we demand statutory compensation of %s ILS for a service
failure on line %s at station %s.

Please confirm payment or respond within 21 days. Absent a response, this
demand will be escalated and ultimately filed with the small claims court.

Claim reference: %s

CashBus Claims`,
		d.OperatorName, d.ReporterName, d.Amount.StringFixed(0), d.LineNumber, d.StationName, d.ClaimID)
	return Letter{Subject: subject, TextBody: text, HTMLBody: wrapHTML(subject, text)}
}

func renderReminder(d LetterData) Letter {
	subject := fmt.Sprintf("Reminder: compensation demand - claim %s", d.ClaimID)
	text := fmt.Sprintf(`To %s,

This is a reminder regarding our compensation demand of %s ILS
(claim %s), sent %d days ago and still unanswered.

%d days remain to settle this demand before the matter is prepared for
filing with the small claims court.

CashBus Claims`,
		d.OperatorName, d.Amount.StringFixed(0), d.ClaimID, d.ElapsedDays, d.DaysRemaining)
	return Letter{Subject: subject, TextBody: text, HTMLBody: wrapHTML(subject, text)}
}

func renderWarning(d LetterData) Letter {
	subject := fmt.Sprintf("Final warning before filing - claim %s", d.ClaimID)
	text := fmt.Sprintf(`To %s,

Our compensation demand of %s ILS (claim %s) remains unanswered after
%d days.

This is a final warning: unless the demand is settled within %d days, a
statement of claim will be filed with the small claims court without
further notice.

CashBus Claims`,
		d.OperatorName, d.Amount.StringFixed(0), d.ClaimID, d.ElapsedDays, d.DaysRemaining)
	return Letter{Subject: subject, TextBody: text, HTMLBody: wrapHTML(subject, text)}
}

func renderFinalNotice(d LetterData) Letter {
	subject := fmt.Sprintf("Notice of filing - claim %s", d.ClaimID)
	text := fmt.Sprintf(`To %s,

Our compensation demand (claim %s) was not settled within 21 days.

A statement of claim is being prepared for the small claims court. The
amount claimed in court will be determined at filing and may exceed the
original demand of %s ILS.

CashBus Claims`,
		d.OperatorName, d.ClaimID, d.Amount.StringFixed(0))
	return Letter{Subject: subject, TextBody: text, HTMLBody: wrapHTML(subject, text)}
}

func wrapHTML(title, text string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%s</title>
</head>
<body>
    <pre style="font-family: inherit; white-space: pre-wrap;">%s</pre>
</body>
</html>`, title, text)
}
