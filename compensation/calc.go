// Package compensation computes the statutory compensation owed for one
// reported incident. The amount tables and citations are legally
// meaningful and deliberately closed; they are not extensible at runtime.
package compensation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"cashbus/models"
	"cashbus/operators"
)

// Validation errors returned before anything is persisted.
var (
	ErrUnknownKind       = errors.New("unknown incident kind")
	ErrUnknownDamageType = errors.New("unknown damage type")
	ErrNegativeDamage    = errors.New("damage amount must not be negative")
)

// Input are the incident facts the calculator derives from.
type Input struct {
	Kind         string
	DelayMinutes int
	DamageType   string
	DamageAmount decimal.Decimal
	OperatorID   string
}

// Breakdown is the computed compensation. Amounts are whole shekels.
type Breakdown struct {
	BaseCompensation   decimal.Decimal `json:"base_compensation"`
	DamageCompensation decimal.Decimal `json:"damage_compensation"`
	TotalCompensation  decimal.Decimal `json:"total_compensation"`
	LegalBasis         string          `json:"legal_basis"`
	Description        string          `json:"description"`
}

// Delay severity thresholds in minutes.
const (
	severeDelayMinutes   = 60
	moderateDelayMinutes = 30
)

// Base statutory amounts in ILS, keyed by (kind, severity bucket).
var (
	delaySevereBase   = decimal.NewFromInt(130)
	delayModerateBase = decimal.NewFromInt(65)
	missedStopBase    = decimal.NewFromInt(60)
	noArrivalBase     = decimal.NewFromInt(100)
)

// Statutory citations per incident kind.
var citations = map[string]string{
	models.KindDelay:      "Public Transport Service Regulations (Timetable Compliance), Reg. 3(a); Consumer Protection Law 5741-1981, s. 2(a)",
	models.KindMissedStop: "Public Transport Service Regulations (Mandatory Stops), Reg. 5(b); Consumer Protection Law 5741-1981, s. 2(a)",
	models.KindNoArrival:  "Public Transport Licensing Ordinance, s. 28(d) (cancelled service); Consumer Protection Law 5741-1981, s. 2(a)",
}

// Per-type caps in ILS for declared collateral damage. Amounts above the
// cap clamp to the cap; they never error.
var damageCaps = map[string]decimal.Decimal{
	models.DamageTaxiCost:     decimal.NewFromInt(200),
	models.DamageLostWorkday:  decimal.NewFromInt(300),
	models.DamageTicketRefund: decimal.NewFromInt(30),
	models.DamageOther:        decimal.NewFromInt(150),
}

// Calculate derives the compensation breakdown from incident facts. It is
// a pure function: same input, same output, no persistence.
func Calculate(in Input) (*Breakdown, error) {
	base, err := baseCompensation(in.Kind, in.DelayMinutes)
	if err != nil {
		return nil, err
	}

	damage, err := damageCompensation(in.DamageType, in.DamageAmount)
	if err != nil {
		return nil, err
	}

	total := base.Add(damage).Round(0)
	operatorName := operators.DisplayName(in.OperatorID)

	return &Breakdown{
		BaseCompensation:   base,
		DamageCompensation: damage,
		TotalCompensation:  total,
		LegalBasis:         fmt.Sprintf("%s; respondent: %s", citations[in.Kind], operatorName),
		Description:        describe(in, operatorName),
	}, nil
}

func baseCompensation(kind string, delayMinutes int) (decimal.Decimal, error) {
	switch kind {
	case models.KindDelay:
		switch {
		case delayMinutes >= severeDelayMinutes:
			return delaySevereBase, nil
		case delayMinutes >= moderateDelayMinutes:
			return delayModerateBase, nil
		default:
			// Short delays carry no statutory base but the incident is
			// still a valid claim seed.
			return decimal.Zero, nil
		}
	case models.KindMissedStop:
		return missedStopBase, nil
	case models.KindNoArrival:
		return noArrivalBase, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func damageCompensation(damageType string, amount decimal.Decimal) (decimal.Decimal, error) {
	if damageType == "" || damageType == models.DamageNone {
		return decimal.Zero, nil
	}
	cap, ok := damageCaps[damageType]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownDamageType, damageType)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeDamage, amount)
	}
	if amount.GreaterThan(cap) {
		amount = cap
	}
	return amount.Round(0), nil
}

func describe(in Input, operatorName string) string {
	switch in.Kind {
	case models.KindDelay:
		return fmt.Sprintf("Service operated by %s departed %d minutes behind the published timetable", operatorName, in.DelayMinutes)
	case models.KindMissedStop:
		return fmt.Sprintf("Service operated by %s skipped a mandatory stop", operatorName)
	case models.KindNoArrival:
		return fmt.Sprintf("Service operated by %s did not arrive", operatorName)
	}
	return ""
}
