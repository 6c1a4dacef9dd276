// Package confirm defines what "this hop's effect has landed" means on each
// destination ledger. Every strategy compares a current destination balance
// against the balance snapshot taken before the hop's executor ran.
package confirm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/vitwit/bridgeflow/types"
)

// DefaultTolerance is the rounding band applied on the hop into the core
// ledger, where the bridging mechanism may shave up to 0.1% off the nominal
// amount.
var DefaultTolerance = decimal.NewFromFloat(0.001)

// Strategy judges whether a destination balance proves the hop landed.
type Strategy interface {
	// Satisfied reports whether current, measured against the pre-hop
	// snapshot before, confirms the hop.
	Satisfied(before, current *big.Int) bool

	// Describe names the strategy for logs and failure reports.
	Describe() string
}

// AtLeast requires the destination to be credited the full expected delta.
// Extra unrelated inbound value arriving during the wait window also counts,
// which is exactly right for shared deposit-style addresses.
func AtLeast(expectedDelta *big.Int) Strategy {
	return &atLeast{delta: new(big.Int).Set(expectedDelta)}
}

type atLeast struct {
	delta *big.Int
}

func (s *atLeast) Satisfied(before, current *big.Int) bool {
	want := new(big.Int).Add(before, s.delta)
	return current.Cmp(want) >= 0
}

func (s *atLeast) Describe() string {
	return fmt.Sprintf("at-least +%s", s.delta)
}

// ToleranceBanded requires the credited amount to reach expectedDelta
// reduced by the epsilon fraction, absorbing settlement-ledger rounding.
func ToleranceBanded(expectedDelta *big.Int, epsilon decimal.Decimal) Strategy {
	minimum := decimal.NewFromBigInt(expectedDelta, 0).
		Mul(decimal.NewFromInt(1).Sub(epsilon))
	return &toleranceBanded{delta: new(big.Int).Set(expectedDelta), epsilon: epsilon, minimum: minimum}
}

type toleranceBanded struct {
	delta   *big.Int
	epsilon decimal.Decimal
	minimum decimal.Decimal
}

func (s *toleranceBanded) Satisfied(before, current *big.Int) bool {
	credited := decimal.NewFromBigInt(new(big.Int).Sub(current, before), 0)
	return credited.Cmp(s.minimum) >= 0
}

func (s *toleranceBanded) Describe() string {
	return fmt.Sprintf("at-least +%s within %s", s.delta, s.epsilon)
}

// AnyIncrease only asks for proof that something landed. Used for the first
// hop, where the next step quotes against the new balance anyway.
func AnyIncrease() Strategy {
	return anyIncrease{}
}

type anyIncrease struct{}

func (anyIncrease) Satisfied(before, current *big.Int) bool {
	return current.Cmp(before) > 0
}

func (anyIncrease) Describe() string {
	return "any-increase"
}

// ForMode resolves a hop's static confirmation mode to a Strategy bound to
// its expected delta.
func ForMode(mode types.ConfirmMode, expectedDelta *big.Int, epsilon decimal.Decimal) (Strategy, error) {
	switch mode {
	case types.ConfirmAtLeast:
		return AtLeast(expectedDelta), nil
	case types.ConfirmTolerance:
		return ToleranceBanded(expectedDelta, epsilon), nil
	case types.ConfirmAnyIncrease:
		return AnyIncrease(), nil
	default:
		return nil, fmt.Errorf("unknown confirmation mode %q", mode)
	}
}
