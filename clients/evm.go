package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

const erc20ABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "owner", "type": "address" }
    ],
    "outputs": [
      { "name": "", "type": "uint256" }
    ]
  }
]
`

var _ BalanceReader = (*EVMReader)(nil)

// EVMReader reads ERC20-style balances over an EVM RPC endpoint. One reader
// serves one ledger; the token contract per asset comes from the registry.
type EVMReader struct {
	ledger   types.Ledger
	rpcURL   string
	client   *ethclient.Client
	registry *registry.Registry
	tokenABI abi.ABI

	mu sync.Mutex // serializes RPC calls, one outstanding read per reader
}

// NewEVMReader dials the endpoint and prepares the balanceOf call codec.
func NewEVMReader(ledger types.Ledger, rpcURL string, reg *registry.Registry) (*EVMReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, rpcError(ErrRPCDial, -1, fmt.Errorf("failed to connect to EVM RPC: %w", err))
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parsing erc20 ABI: %w", err)
	}

	return &EVMReader{
		ledger:   ledger,
		rpcURL:   rpcURL,
		client:   client,
		registry: reg,
		tokenABI: parsed,
	}, nil
}

// Balance implements BalanceReader via an eth_call to balanceOf.
func (e *EVMReader) Balance(ctx context.Context, account string, asset types.Asset) (*big.Int, error) {
	rep, err := e.registry.Lookup(asset, e.ledger)
	if err != nil {
		return nil, err
	}

	callData, err := e.tokenABI.Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("packing balanceOf: %w", err)
	}

	contract := common.HexToAddress(rep.Address)
	msg := ethereum.CallMsg{
		To:   &contract,
		Data: callData,
	}

	e.mu.Lock()
	out, err := e.client.CallContract(ctx, msg, nil)
	e.mu.Unlock()
	if err != nil {
		return nil, rpcError(ErrRPCCall, -1, fmt.Errorf("balanceOf %s on %s: %w", asset, e.ledger, err))
	}

	vals, err := e.tokenABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, rpcError(ErrBadBalanceWord, -1, fmt.Errorf("unpacking balanceOf return: %w", err))
	}

	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, rpcError(ErrBadBalanceWord, -1, fmt.Errorf("balanceOf returned %T", vals[0]))
	}
	return bal, nil
}

// Decimals implements BalanceReader from the registry's static table.
func (e *EVMReader) Decimals(asset types.Asset) (int, error) {
	return e.registry.Decimals(asset, e.ledger)
}

// Ledger implements BalanceReader.
func (e *EVMReader) Ledger() types.Ledger {
	return e.ledger
}

// Close implements BalanceReader.
func (e *EVMReader) Close() {
	e.client.Close()
}

func rpcError(code string, hop int, err error) *types.FlowError {
	return &types.FlowError{
		Code:    types.ErrRPC,
		Message: err.Error(),
		Hop:     hop,
		Data:    code,
	}
}
