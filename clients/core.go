package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/vitwit/bridgeflow/logger"
	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

var _ BalanceReader = (*CoreReader)(nil)

// infoRequest is the POST body of the core ledger's per-account info call.
type infoRequest struct {
	Account string `json:"account"`
}

// infoEntry is one per-asset total in the info response. Total is a base-10
// integer string in the asset's smallest unit.
type infoEntry struct {
	AssetIndex int    `json:"assetIndex"`
	Total      string `json:"total"`
}

type infoResponse struct {
	Balances []infoEntry `json:"balances"`
}

// CoreReaderConfig tunes the HTTP retry behavior of the info client.
type CoreReaderConfig struct {
	MaxRetries int
	RetryWait  time.Duration
	Timeout    time.Duration
}

// DefaultCoreReaderConfig keeps retries short: the poll loop above already
// retries on its own cadence, this layer only smooths single flaky requests.
func DefaultCoreReaderConfig() CoreReaderConfig {
	return CoreReaderConfig{
		MaxRetries: 2,
		RetryWait:  500 * time.Millisecond,
		Timeout:    10 * time.Second,
	}
}

// CoreReader reads per-account asset totals from the core ledger's REST info
// endpoint. An account with no entry for the asset has balance zero, not an
// error.
type CoreReader struct {
	baseURL  *url.URL
	client   *retryablehttp.Client
	registry *registry.Registry
	log      logger.Logger

	mu sync.Mutex // one outstanding info call at a time
}

// CoreReaderOpt mutates a CoreReader during construction.
type CoreReaderOpt func(*CoreReader)

// WithCoreLogger routes retry and response logging through the given logger.
func WithCoreLogger(log logger.Logger) CoreReaderOpt {
	return func(c *CoreReader) {
		c.log = log
		c.client.Logger = &retryableHTTPLogger{inner: log}
	}
}

// NewCoreReader builds a reader against the info endpoint base URL.
func NewCoreReader(endpoint string, cfg CoreReaderConfig, reg *registry.Registry, opts ...CoreReaderOpt) (*CoreReader, error) {
	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, apiError(ErrInfoBadEndpoint, fmt.Errorf("parsing info endpoint: %w", err))
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "http"
	}

	client := &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: cfg.Timeout},
		RetryMax:     cfg.MaxRetries,
		RetryWaitMin: cfg.RetryWait,
		RetryWaitMax: 2 * cfg.RetryWait,
		Backoff:      retryablehttp.LinearJitterBackoff,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
	}

	reader := &CoreReader{
		baseURL:  baseURL,
		client:   client,
		registry: reg,
		log:      logger.NoopLogger{},
	}

	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// Balance implements BalanceReader. The info call returns every asset total
// the account holds; the target asset's entry is selected by its registry
// index and absence means zero.
func (c *CoreReader) Balance(ctx context.Context, account string, asset types.Asset) (*big.Int, error) {
	rep, err := c.registry.Lookup(asset, types.LedgerCore)
	if err != nil {
		return nil, err
	}

	var res infoResponse
	if err := c.post(ctx, "info", infoRequest{Account: account}, &res); err != nil {
		return nil, err
	}

	for _, entry := range res.Balances {
		if entry.AssetIndex != rep.CoreIndex {
			continue
		}
		total, ok := new(big.Int).SetString(entry.Total, 10)
		if !ok {
			return nil, apiError(ErrInfoBadTotal, fmt.Errorf("asset %d total %q is not an integer", entry.AssetIndex, entry.Total))
		}
		return total, nil
	}

	// No entry for this asset.
	return new(big.Int), nil
}

// Decimals implements BalanceReader from the registry's static table.
func (c *CoreReader) Decimals(asset types.Asset) (int, error) {
	return c.registry.Decimals(asset, types.LedgerCore)
}

// Ledger implements BalanceReader.
func (c *CoreReader) Ledger() types.Ledger {
	return types.LedgerCore
}

// Close implements BalanceReader.
func (c *CoreReader) Close() {}

func (c *CoreReader) post(ctx context.Context, path string, reqBody, resBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return apiError(ErrInfoRequest, fmt.Errorf("marshaling info request: %w", err))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(path).String(), bytes.NewReader(payload))
	if err != nil {
		return apiError(ErrInfoRequest, fmt.Errorf("creating info request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	res, err := c.client.Do(req)
	c.mu.Unlock()
	if err != nil {
		return apiError(ErrInfoRequest, fmt.Errorf("doing info request: %w", err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return apiError(ErrInfoRequest, fmt.Errorf("reading info response: %w", err))
	}

	if res.StatusCode != http.StatusOK {
		c.log.Debug("info request failed", map[string]any{
			"status": res.Status,
			"body":   string(data),
		})
		return apiError(ErrInfoStatus, fmt.Errorf("info endpoint returned %s: %s", res.Status, string(data)))
	}

	if err := json.Unmarshal(data, resBody); err != nil {
		return apiError(ErrInfoDecode, fmt.Errorf("decoding info response: %w", err))
	}
	return nil
}

func apiError(code string, err error) *types.FlowError {
	return &types.FlowError{
		Code:    types.ErrAPI,
		Message: err.Error(),
		Hop:     -1,
		Data:    code,
	}
}

// retryableHTTPLogger adapts the bridgeflow logger to the
// retryablehttp.LeveledLogger interface.
type retryableHTTPLogger struct {
	inner logger.Logger
}

func (r *retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	r.inner.Error(msg, pairsToFields(keysAndValues))
}

func (r *retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	r.inner.Info(msg, pairsToFields(keysAndValues))
}

func (r *retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.inner.Warn(msg, pairsToFields(keysAndValues))
}

func (r *retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.inner.Debug(msg, pairsToFields(keysAndValues))
}

func pairsToFields(kv []interface{}) map[string]any {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = kv[i+1]
	}
	return fields
}
