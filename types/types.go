package types

import (
	"math/big"
	"time"
)

// Ledger identifies one of the ledgers a flow may touch. Each ledger has its
// own query mechanism: contract calls on the EVM ledgers, an HTTP info API on
// the core ledger.
type Ledger string

const (
	// LedgerSource is the origin EVM chain where the asset is wrapped.
	LedgerSource Ledger = "source-chain"

	// LedgerBridgeEVM is the intermediate EVM-compatible execution layer.
	LedgerBridgeEVM Ledger = "bridge-evm"

	// LedgerCore is the non-EVM settlement ledger, queried over its REST
	// info endpoint.
	LedgerCore Ledger = "core-ledger"
)

func (l Ledger) String() string {
	return string(l)
}

// IsEVM reports whether balances on this ledger are read via an EVM RPC call.
func (l Ledger) IsEVM() bool {
	return l == LedgerSource || l == LedgerBridgeEVM
}

// Asset is a logical token identity. Its per-ledger on-chain representation
// (contract address or numeric index) lives in the registry and is immutable
// for the lifetime of a flow run.
type Asset string

func (a Asset) String() string {
	return string(a)
}

// ConfirmMode selects how a hop's destination-ledger effect is judged final.
// The mode is a static property of the hop's position in the flow.
type ConfirmMode string

const (
	// ConfirmAtLeast requires the destination balance to reach the pre-hop
	// snapshot plus the full expected delta. Used when fees are paid in a
	// separate native asset and unrelated inbound credits may arrive during
	// the wait.
	ConfirmAtLeast ConfirmMode = "at-least"

	// ConfirmTolerance allows the credited amount to fall short of the
	// expected delta by a small fraction, absorbing settlement-ledger
	// rounding.
	ConfirmTolerance ConfirmMode = "tolerance"

	// ConfirmAnyIncrease only requires the destination balance to exceed the
	// snapshot. Used for the first hop, where landing proof is all the next
	// hop needs.
	ConfirmAnyIncrease ConfirmMode = "any-increase"
)

// HopSpec describes one ledger-to-ledger step of a flow.
type HopSpec struct {
	// Name identifies the hop in logs and failure reports (e.g. "wrap",
	// "bridge", "settle").
	Name string `json:"name" validate:"required"`

	From Ledger `json:"from" validate:"required"`
	To   Ledger `json:"to" validate:"required"`

	// Amount overrides the flow-level amount for this hop. Human-readable
	// decimal string; ledger decimals are applied at execution time.
	Amount string `json:"amount,omitempty"`

	// Mode selects the confirmation predicate for this hop.
	Mode ConfirmMode `json:"mode" validate:"required"`

	// Destination is the receiving address on the To ledger. For hops whose
	// output feeds the next hop it must equal the flow account's address.
	Destination string `json:"destination" validate:"required"`

	// Chained marks a hop whose destination funds the next hop, which makes
	// the destination==account check mandatory during validation.
	Chained bool `json:"chained,omitempty"`
}

// FlowInput is the value constructed once at the boundary (CLI or API) and
// passed into the orchestrator. Nothing below the boundary reads ambient
// process state.
type FlowInput struct {
	Asset Asset `json:"asset" validate:"required"`

	// Account is the single signing identity used across every hop.
	Account string `json:"account" validate:"required"`

	// Amount is the flow-level nominal amount, used by any hop without an
	// override.
	Amount string `json:"amount,omitempty"`

	Hops []HopSpec `json:"hops" validate:"required,min=1,dive"`

	// DryRun makes every executor report its plan without submitting a
	// state-changing action, and skips confirmation entirely.
	DryRun bool `json:"dryRun,omitempty"`
}

// BalanceSnapshot captures a destination balance immediately before a hop's
// executor runs. It is the baseline for that hop's confirmation predicate and
// is discarded once the hop confirms.
type BalanceSnapshot struct {
	Ledger   Ledger    `json:"ledger"`
	Account  string    `json:"account"`
	Asset    Asset     `json:"asset"`
	Amount   *big.Int  `json:"amount"`
	Decimals int       `json:"decimals"`
	TakenAt  time.Time `json:"takenAt"`
}

// FlowState is the orchestrator's position in the per-run state machine.
type FlowState string

const (
	StateValidating FlowState = "validating"
	StateExecuting  FlowState = "executing"
	StateConfirming FlowState = "confirming"
	StateCompleted  FlowState = "completed"
	StateFailed     FlowState = "failed"
)

// HopStatus is the terminal outcome of a single hop within a run.
type HopStatus string

const (
	HopPlanned   HopStatus = "planned"
	HopExecuted  HopStatus = "executed"
	HopConfirmed HopStatus = "confirmed"
	HopFailed    HopStatus = "failed"
	HopSkipped   HopStatus = "skipped"
)

// HopResult records what happened to one hop.
type HopResult struct {
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	From   Ledger    `json:"from"`
	To     Ledger    `json:"to"`
	Amount string    `json:"amount"`
	Status HopStatus `json:"status"`

	// Credited is the observed destination-balance delta once the hop
	// confirmed, in the asset's smallest unit.
	Credited *big.Int `json:"credited,omitempty"`

	Error string `json:"error,omitempty"`
}

// FlowResult aggregates per-hop outcomes for one run. Completed hops are
// never undone; on failure the result carries enough state for the operator
// to resume manually from the failing hop.
type FlowResult struct {
	State    FlowState   `json:"state"`
	Hops     []HopResult `json:"hops"`
	FailedAt int         `json:"failedAt,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Confirmed reports how many hops reached HopConfirmed.
func (r *FlowResult) Confirmed() int {
	n := 0
	for _, h := range r.Hops {
		if h.Status == HopConfirmed {
			n++
		}
	}
	return n
}
