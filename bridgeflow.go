// Package bridgeflow moves a token value across three ledgers (a source EVM
// chain, a bridge EVM execution layer and a non-EVM core ledger) by chaining
// independently-submitted hops and confirming each one through external
// balance polling. Cross-ledger hops are fundamentally non-atomic; the engine
// sequences, confirms and reports, it never compensates.
package bridgeflow

import (
	"context"
	"time"

	"github.com/vitwit/bridgeflow/clients"
	"github.com/vitwit/bridgeflow/executor"
	"github.com/vitwit/bridgeflow/flow"
	"github.com/vitwit/bridgeflow/logger"
	"github.com/vitwit/bridgeflow/metrics"
	"github.com/vitwit/bridgeflow/poll"
	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

// Config carries the engine-level knobs. Endpoint URLs and signing
// credentials stay with the callers that build readers and executors.
type Config struct {
	PollInterval    time.Duration `json:"pollInterval,omitempty"`
	PollTimeout     time.Duration `json:"pollTimeout,omitempty"`
	ReportEvery     time.Duration `json:"reportEvery,omitempty"`
	MaxReadFailures int           `json:"maxReadFailures,omitempty"`
	LogLevel        string        `json:"logLevel,omitempty"`
	EnableMetrics   bool          `json:"enableMetrics,omitempty"`
}

// Engine is the top-level entry point: an asset registry, one balance reader
// per ledger, the step executors and the flow orchestrator behind one facade.
type Engine struct {
	registry *registry.Registry
	service  *flow.Service
	poller   *poll.Poller

	log     logger.Logger
	metrics metrics.Recorder
	clock   poll.Opt
}

// New creates an Engine around an immutable asset registry.
func New(reg *registry.Registry, config *Config, opts ...Option) *Engine {
	pollCfg := poll.DefaultConfig()
	level := "info"
	if config != nil {
		if config.PollInterval > 0 {
			pollCfg.Interval = config.PollInterval
		}
		if config.PollTimeout > 0 {
			pollCfg.Timeout = config.PollTimeout
		}
		if config.ReportEvery > 0 {
			pollCfg.ReportEvery = config.ReportEvery
		}
		if config.MaxReadFailures > 0 {
			pollCfg.MaxReadFailures = config.MaxReadFailures
		}
		if config.LogLevel != "" {
			level = config.LogLevel
		}
	}

	e := &Engine{
		registry: reg,
		log:      logger.NewZapLogger(level),
		metrics:  metrics.NoopRecorder{},
	}
	if config != nil && config.EnableMetrics {
		e.metrics = metrics.NewPrometheusRecorder()
	}
	for _, opt := range opts {
		opt(e)
	}

	pollOpts := []poll.Opt{poll.WithLogger(e.log)}
	if e.clock != nil {
		pollOpts = append(pollOpts, e.clock)
	}
	e.poller = poll.New(pollCfg, pollOpts...)
	e.service = flow.NewService(reg, e.poller,
		flow.WithLogger(e.log),
		flow.WithMetrics(e.metrics),
	)
	return e
}

// NewWithDefaults creates an Engine with default configuration.
func NewWithDefaults(reg *registry.Registry) *Engine {
	return New(reg, &Config{LogLevel: "info"})
}

// AddEVMLedger wires a balance reader for an EVM ledger at the given RPC
// endpoint.
func (e *Engine) AddEVMLedger(ledger types.Ledger, rpcURL string) error {
	if !ledger.IsEVM() {
		return &types.FlowError{
			Code:    types.ErrUnsupportedLedger,
			Message: ledger.String() + " is not an EVM ledger",
			Hop:     -1,
		}
	}
	reader, err := clients.NewEVMReader(ledger, rpcURL, e.registry)
	if err != nil {
		return err
	}
	e.service.AddReader(reader)
	return nil
}

// AddCoreLedger wires the core ledger's REST info-API balance reader.
func (e *Engine) AddCoreLedger(endpoint string) error {
	reader, err := clients.NewCoreReader(endpoint, clients.DefaultCoreReaderConfig(), e.registry,
		clients.WithCoreLogger(e.log))
	if err != nil {
		return err
	}
	e.service.AddReader(reader)
	return nil
}

// AddReader registers a custom balance reader, replacing any existing reader
// for the same ledger.
func (e *Engine) AddReader(r clients.BalanceReader) {
	e.service.AddReader(r)
}

// AddExecutor registers the step executor for hops with the given name.
func (e *Engine) AddExecutor(name string, ex executor.StepExecutor) {
	e.service.AddExecutor(name, ex)
}

// Validate checks a flow input without executing anything.
func (e *Engine) Validate(input *types.FlowInput) error {
	return e.service.Validate(input)
}

// Run executes a flow to completion or first failure.
func (e *Engine) Run(ctx context.Context, input *types.FlowInput) (*types.FlowResult, error) {
	return e.service.Run(ctx, input)
}

// Close closes all balance reader connections.
func (e *Engine) Close() {
	e.service.Close()
}

// Version information.
const Version = "1.0.0"
