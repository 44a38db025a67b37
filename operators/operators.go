// Package operators holds the static registry of licensed Israeli bus
// operators that CashBus files claims against. The set is closed; an
// operator missing here cannot receive demand letters.
package operators

import (
	"errors"
	"fmt"
)

// ErrUnknownOperator is returned by Lookup for ids outside the registry.
var ErrUnknownOperator = errors.New("unknown operator")

// Operator is one licensed bus operator.
type Operator struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	ContactEmail string `json:"contact_email"`
}

var registry = map[string]Operator{
	"egged":          {ID: "egged", DisplayName: "Egged Transportation Ltd.", ContactEmail: "service@egged.co.il"},
	"dan":            {ID: "dan", DisplayName: "Dan Public Transportation Ltd.", ContactEmail: "pniot@dan.co.il"},
	"metropoline":    {ID: "metropoline", DisplayName: "Metropoline Ltd.", ContactEmail: "service@metropoline.com"},
	"kavim":          {ID: "kavim", DisplayName: "Kavim Public Transportation Ltd.", ContactEmail: "mokedkavim@kavim-t.co.il"},
	"superbus":       {ID: "superbus", DisplayName: "Superbus Ltd.", ContactEmail: "info@superbus.co.il"},
	"nateev_express": {ID: "nateev_express", DisplayName: "Nateev Express Ltd.", ContactEmail: "service@nateevexpress.com"},
	"electra_afikim": {ID: "electra_afikim", DisplayName: "Electra Afikim Ltd.", ContactEmail: "callcenter@afikim-t.co.il"},
}

// Lookup returns the operator for the given id.
func Lookup(id string) (Operator, error) {
	op, ok := registry[id]
	if !ok {
		return Operator{}, fmt.Errorf("%w: %q", ErrUnknownOperator, id)
	}
	return op, nil
}

// DisplayName returns the operator display name, or the raw id when the
// operator is unknown. Used for rendering only; validation paths use Lookup.
func DisplayName(id string) string {
	if op, ok := registry[id]; ok {
		return op.DisplayName
	}
	return id
}

// IsKnown reports whether the operator id is registered.
func IsKnown(id string) bool {
	_, ok := registry[id]
	return ok
}
