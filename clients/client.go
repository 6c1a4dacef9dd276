package clients

import (
	"context"
	"math/big"

	"github.com/vitwit/bridgeflow/types"
)

// BalanceReader reads an account's balance for an asset on one ledger, in the
// asset's smallest unit. Reads are side-effect-free. Implementations keep at
// most one outstanding call at a time so poll loops cannot amplify into the
// endpoint's rate limit.
type BalanceReader interface {
	Balance(ctx context.Context, account string, asset types.Asset) (*big.Int, error)
	Decimals(asset types.Asset) (int, error)
	Ledger() types.Ledger
	Close()
}
