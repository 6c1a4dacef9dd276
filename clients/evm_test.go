package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

func TestEVMReaderUnknownAsset(t *testing.T) {
	reg, err := registry.New([]registry.Entry{
		{Asset: "TOKEN", Ledger: types.LedgerSource, Representation: registry.Representation{
			Address: "0x1111111111111111111111111111111111111111", Decimals: 18,
		}},
	})
	require.NoError(t, err)

	// Dialing is lazy for HTTP endpoints; no request is made until a call.
	reader, err := NewEVMReader(types.LedgerSource, "http://localhost:1", reg)
	require.NoError(t, err)
	defer reader.Close()

	// The registry rejects the asset before any RPC happens.
	_, err = reader.Balance(context.Background(), "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1", "UNREGISTERED")
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrUnknownAsset, flowErr.Code)

	require.Equal(t, types.LedgerSource, reader.Ledger())

	d, err := reader.Decimals("TOKEN")
	require.NoError(t, err)
	require.Equal(t, 18, d)
}
