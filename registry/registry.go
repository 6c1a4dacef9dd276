// Package registry holds the immutable mapping from a logical asset to its
// per-ledger on-chain representation. It is declared once and injected into
// both step executors and balance readers, never re-declared per hop.
package registry

import (
	"fmt"

	"github.com/vitwit/bridgeflow/types"
)

// Representation is how one asset appears on one ledger: a contract address
// on the EVM ledgers, a numeric index on the core ledger.
type Representation struct {
	// Address is the token contract (wrapper shares on the source chain,
	// OFT on the bridge EVM). Empty on the core ledger.
	Address string

	// CoreIndex selects the asset's entry in the core ledger's info API.
	// Only meaningful when Ledger == LedgerCore.
	CoreIndex int

	// Decimals is the smallest-unit precision on this ledger.
	Decimals int
}

// Registry maps (asset, ledger) to a Representation. Immutable after New.
type Registry struct {
	entries map[types.Asset]map[types.Ledger]Representation
}

// Entry is one row of the registry table passed to New.
type Entry struct {
	Asset          types.Asset
	Ledger         types.Ledger
	Representation Representation
}

// New builds a registry from a fixed table. Duplicate (asset, ledger) pairs
// are rejected so a flow can never observe two representations for one asset.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[types.Asset]map[types.Ledger]Representation)}
	for _, e := range entries {
		byLedger, ok := r.entries[e.Asset]
		if !ok {
			byLedger = make(map[types.Ledger]Representation)
			r.entries[e.Asset] = byLedger
		}
		if _, dup := byLedger[e.Ledger]; dup {
			return nil, fmt.Errorf("duplicate registry entry for %s on %s", e.Asset, e.Ledger)
		}
		byLedger[e.Ledger] = e.Representation
	}
	return r, nil
}

// Lookup returns the asset's representation on a ledger.
func (r *Registry) Lookup(asset types.Asset, ledger types.Ledger) (Representation, error) {
	rep, ok := r.entries[asset][ledger]
	if !ok {
		return Representation{}, &types.FlowError{
			Code:    types.ErrUnknownAsset,
			Message: fmt.Sprintf("asset %s has no representation on %s", asset, ledger),
			Hop:     -1,
		}
	}
	return rep, nil
}

// Decimals returns the asset's smallest-unit precision on a ledger.
func (r *Registry) Decimals(asset types.Asset, ledger types.Ledger) (int, error) {
	rep, err := r.Lookup(asset, ledger)
	if err != nil {
		return 0, err
	}
	return rep.Decimals, nil
}

// Assets lists every registered asset.
func (r *Registry) Assets() []types.Asset {
	out := make([]types.Asset, 0, len(r.entries))
	for a := range r.entries {
		out = append(out, a)
	}
	return out
}
