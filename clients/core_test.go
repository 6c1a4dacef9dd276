package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

func coreTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{Asset: "TOKEN", Ledger: types.LedgerCore, Representation: registry.Representation{
			CoreIndex: 7, Decimals: 9,
		}},
		{Asset: "OTHER", Ledger: types.LedgerCore, Representation: registry.Representation{
			CoreIndex: 3, Decimals: 9,
		}},
	})
	require.NoError(t, err)
	return reg
}

func quickConfig() CoreReaderConfig {
	return CoreReaderConfig{
		MaxRetries: 0,
		RetryWait:  time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestCoreReaderBalance(t *testing.T) {
	var gotAccount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/info", r.URL.Path)

		var req infoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotAccount = req.Account

		_ = json.NewEncoder(w).Encode(infoResponse{Balances: []infoEntry{
			{AssetIndex: 3, Total: "99"},
			{AssetIndex: 7, Total: "123456789"},
		}})
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	bal, err := reader.Balance(context.Background(), "core-account", "TOKEN")
	require.NoError(t, err)
	require.Equal(t, int64(123456789), bal.Int64())
	require.Equal(t, "core-account", gotAccount)

	bal, err = reader.Balance(context.Background(), "core-account", "OTHER")
	require.NoError(t, err)
	require.Equal(t, int64(99), bal.Int64())
}

func TestCoreReaderMissingEntryIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(infoResponse{Balances: []infoEntry{
			{AssetIndex: 3, Total: "99"},
		}})
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	// The account has no entry for asset index 7: balance zero, not error.
	bal, err := reader.Balance(context.Background(), "core-account", "TOKEN")
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestCoreReaderEmptyAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(infoResponse{})
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	bal, err := reader.Balance(context.Background(), "fresh-account", "TOKEN")
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestCoreReaderHardStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "account malformed", http.StatusBadRequest)
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	_, err = reader.Balance(context.Background(), "core-account", "TOKEN")
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrAPI, flowErr.Code)
}

func TestCoreReaderBadTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(infoResponse{Balances: []infoEntry{
			{AssetIndex: 7, Total: "not-a-number"},
		}})
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	_, err = reader.Balance(context.Background(), "core-account", "TOKEN")
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrAPI, flowErr.Code)
	require.Equal(t, ErrInfoBadTotal, flowErr.Data)
}

func TestCoreReaderUnknownAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an unregistered asset")
	}))
	defer server.Close()

	reader, err := NewCoreReader(server.URL, quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	_, err = reader.Balance(context.Background(), "core-account", "UNREGISTERED")
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrUnknownAsset, flowErr.Code)
}

func TestCoreReaderDecimals(t *testing.T) {
	reader, err := NewCoreReader("http://localhost:1", quickConfig(), coreTestRegistry(t))
	require.NoError(t, err)

	d, err := reader.Decimals("TOKEN")
	require.NoError(t, err)
	require.Equal(t, 9, d)
	require.Equal(t, types.LedgerCore, reader.Ledger())
}
