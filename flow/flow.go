// Package flow drives a multi-hop, multi-ledger transfer to completion. Hops
// run strictly sequentially: the destination balance must be snapshotted
// before a hop's executor runs, and the hop's effect must be observed on the
// destination ledger before the next hop's assumptions hold. The first
// failed or timed-out hop terminates the run; completed hops are never
// compensated, because no rollback across heterogeneous ledgers exists.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitwit/bridgeflow/clients"
	"github.com/vitwit/bridgeflow/confirm"
	"github.com/vitwit/bridgeflow/executor"
	"github.com/vitwit/bridgeflow/logger"
	"github.com/vitwit/bridgeflow/metrics"
	"github.com/vitwit/bridgeflow/poll"
	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
	"github.com/vitwit/bridgeflow/utils"
)

// Service orchestrates flow runs. It owns no keys and submits nothing
// itself; step executors act, the service sequences, confirms and reports.
type Service struct {
	registry  *registry.Registry
	readers   map[types.Ledger]clients.BalanceReader
	executors map[string]executor.StepExecutor
	poller    *poll.Poller
	epsilon   decimal.Decimal
	log       logger.Logger
	metrics   metrics.Recorder
}

// Opt mutates a Service during construction.
type Opt func(*Service)

// WithLogger routes run progress through the given logger.
func WithLogger(log logger.Logger) Opt {
	return func(s *Service) {
		s.log = log
	}
}

// WithMetrics records hop counters and latencies with the given recorder.
func WithMetrics(rec metrics.Recorder) Opt {
	return func(s *Service) {
		s.metrics = rec
	}
}

// WithTolerance overrides the rounding band for tolerance-mode hops.
func WithTolerance(epsilon decimal.Decimal) Opt {
	return func(s *Service) {
		s.epsilon = epsilon
	}
}

// NewService builds a Service around an immutable asset registry and a
// poller. Readers and executors are registered afterwards.
func NewService(reg *registry.Registry, poller *poll.Poller, opts ...Opt) *Service {
	s := &Service{
		registry:  reg,
		readers:   make(map[types.Ledger]clients.BalanceReader),
		executors: make(map[string]executor.StepExecutor),
		poller:    poller,
		epsilon:   confirm.DefaultTolerance,
		log:       logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddReader registers the balance reader for its ledger.
func (s *Service) AddReader(r clients.BalanceReader) {
	s.readers[r.Ledger()] = r
}

// AddExecutor registers the step executor invoked for hops with this name.
func (s *Service) AddExecutor(name string, ex executor.StepExecutor) {
	s.executors[name] = ex
}

// Close closes every registered balance reader.
func (s *Service) Close() {
	for _, r := range s.readers {
		r.Close()
	}
}

// plannedHop is a hop with its amount resolved and converted to the
// destination ledger's smallest unit.
type plannedHop struct {
	spec     types.HopSpec
	amount   string
	rawDelta *big.Int
	decimals int
	strategy confirm.Strategy
}

// Validate checks a flow input without executing anything and without any
// network call. It is idempotent: the same input always yields the same
// accept/reject outcome.
func (s *Service) Validate(input *types.FlowInput) error {
	_, err := s.plan(input)
	return err
}

func (s *Service) plan(input *types.FlowInput) ([]plannedHop, error) {
	if input == nil {
		return nil, types.NewValidationError("flow input is nil")
	}
	if err := utils.ValidateFlowInput(input); err != nil {
		return nil, err
	}

	planned := make([]plannedHop, 0, len(input.Hops))
	for i, hop := range input.Hops {
		amount := hop.Amount
		if amount == "" {
			amount = input.Amount
		}
		if amount == "" {
			return nil, types.NewValidationError("hop %d (%s) has no amount and the flow declares no default", i, hop.Name)
		}

		// A hop whose output funds the next hop must pay to the flow
		// account itself; the account cannot act on funds it does not
		// control on the next ledger.
		if hop.Chained && !strings.EqualFold(hop.Destination, input.Account) {
			return nil, types.NewValidationError(
				"hop %d (%s) is chained but pays to %s, not the flow account %s",
				i, hop.Name, hop.Destination, input.Account)
		}

		if _, ok := s.executors[hop.Name]; !ok {
			return nil, types.NewValidationError("hop %d (%s) has no registered executor", i, hop.Name)
		}
		if _, ok := s.readers[hop.To]; !ok {
			return nil, &types.FlowError{
				Code:    types.ErrUnsupportedLedger,
				Message: fmt.Sprintf("no balance reader configured for %s", hop.To),
				Hop:     i,
			}
		}

		decimals, err := s.registry.Decimals(input.Asset, hop.To)
		if err != nil {
			return nil, err
		}
		rawDelta, err := utils.ParseAmountWithDecimals(amount, decimals)
		if err != nil {
			return nil, types.NewValidationError("hop %d (%s) amount %q: %v", i, hop.Name, amount, err)
		}
		if rawDelta.Sign() <= 0 {
			return nil, types.NewValidationError("hop %d (%s) amount must be positive, got %q", i, hop.Name, amount)
		}

		// Destinations on EVM ledgers must be well-formed addresses;
		// common.HexToAddress would silently coerce a typo into a balance
		// that never moves.
		if hop.To.IsEVM() {
			if err := utils.ValidateEVMAddress(hop.Destination); err != nil {
				return nil, types.NewValidationError("hop %d (%s) destination %q: %v", i, hop.Name, hop.Destination, err)
			}
		}

		// The confirmation mode is a static property of the hop; resolve it
		// here so a bad mode can never surface after an executor has acted.
		strategy, err := confirm.ForMode(hop.Mode, rawDelta, s.epsilon)
		if err != nil {
			return nil, types.NewValidationError("hop %d (%s): %v", i, hop.Name, err)
		}

		planned = append(planned, plannedHop{
			spec:     hop,
			amount:   amount,
			rawDelta: rawDelta,
			decimals: decimals,
			strategy: strategy,
		})
	}
	return planned, nil
}

// Run executes a flow: validate, then per hop snapshot, execute, confirm.
// The returned FlowResult is always non-nil and carries per-hop outcomes;
// on failure it names the failing hop and the progress already made, so the
// operator can resume manually from there.
func (s *Service) Run(ctx context.Context, input *types.FlowInput) (*types.FlowResult, error) {
	result := &types.FlowResult{State: types.StateValidating, FailedAt: -1}

	planned, err := s.plan(input)
	if err != nil {
		result.State = types.StateFailed
		result.Error = err.Error()
		return result, err
	}

	result.Hops = make([]types.HopResult, len(planned))
	for i, p := range planned {
		result.Hops[i] = types.HopResult{
			Index:  i,
			Name:   p.spec.Name,
			From:   p.spec.From,
			To:     p.spec.To,
			Amount: p.amount,
			Status: types.HopPlanned,
		}
	}

	if input.DryRun {
		return s.dryRun(ctx, input, planned, result)
	}

	for i, p := range planned {
		if err := s.runHop(ctx, input, i, p, result); err != nil {
			result.State = types.StateFailed
			result.FailedAt = i
			result.Error = err.Error()
			result.Hops[i].Status = types.HopFailed
			result.Hops[i].Error = err.Error()
			for j := i + 1; j < len(result.Hops); j++ {
				result.Hops[j].Status = types.HopSkipped
			}
			s.log.Error("flow failed", map[string]any{
				"hop":       i,
				"name":      p.spec.Name,
				"confirmed": result.Confirmed(),
				"total":     len(planned),
				"error":     err.Error(),
			})
			return result, err
		}
	}

	result.State = types.StateCompleted
	s.log.Info("flow completed", map[string]any{
		"hops":  len(planned),
		"asset": input.Asset.String(),
	})
	return result, nil
}

// dryRun invokes every executor in reporting mode and never touches the
// poller. The per-hop plan (assets, amounts, resolved addresses) is exactly
// what a live run would use.
func (s *Service) dryRun(ctx context.Context, input *types.FlowInput, planned []plannedHop, result *types.FlowResult) (*types.FlowResult, error) {
	for i, p := range planned {
		res := s.executors[p.spec.Name].Execute(ctx, executor.StepRequest{
			Hop:         p.spec.Name,
			Asset:       input.Asset,
			Amount:      p.amount,
			Destination: p.spec.Destination,
			DryRun:      true,
		})
		if !res.Success {
			err := &types.FlowError{Code: types.ErrExecutorFailure, Message: res.Error, Hop: i}
			result.State = types.StateFailed
			result.FailedAt = i
			result.Error = err.Error()
			result.Hops[i].Status = types.HopFailed
			result.Hops[i].Error = res.Error
			for j := i + 1; j < len(result.Hops); j++ {
				result.Hops[j].Status = types.HopSkipped
			}
			return result, err
		}
		result.Hops[i].Status = types.HopExecuted
		s.log.Info("dry-run hop", map[string]any{
			"hop":         i,
			"name":        p.spec.Name,
			"asset":       input.Asset.String(),
			"amount":      p.amount,
			"destination": p.spec.Destination,
		})
	}
	result.State = types.StateCompleted
	return result, nil
}

func (s *Service) runHop(ctx context.Context, input *types.FlowInput, i int, p plannedHop, result *types.FlowResult) error {
	reader := s.readers[p.spec.To]
	labels := map[string]string{"hop": p.spec.Name, "ledger": p.spec.To.String()}

	// Executing: snapshot the destination first, it is the baseline every
	// confirmation mode measures against.
	result.State = types.StateExecuting
	baseline, err := reader.Balance(ctx, p.spec.Destination, input.Asset)
	if err != nil {
		return fmt.Errorf("snapshotting %s balance on %s: %w", input.Asset, p.spec.To, err)
	}
	snap := types.BalanceSnapshot{
		Ledger:   p.spec.To,
		Account:  p.spec.Destination,
		Asset:    input.Asset,
		Amount:   baseline,
		Decimals: p.decimals,
		TakenAt:  time.Now(),
	}
	before := snap.Amount

	s.log.Info("executing hop", map[string]any{
		"hop":    i,
		"name":   p.spec.Name,
		"from":   p.spec.From.String(),
		"to":     p.spec.To.String(),
		"amount": p.amount,
		"before": before.String(),
	})
	s.metrics.IncCounter("hop_started", labels)

	res := s.executors[p.spec.Name].Execute(ctx, executor.StepRequest{
		Hop:         p.spec.Name,
		Asset:       input.Asset,
		Amount:      p.amount,
		Destination: p.spec.Destination,
	})
	if !res.Success {
		s.metrics.IncCounter("hop_executor_failed", labels)
		return &types.FlowError{Code: types.ErrExecutorFailure, Message: res.Error, Hop: i}
	}
	result.Hops[i].Status = types.HopExecuted
	if res.TxHash != "" {
		s.log.Info("hop submitted", map[string]any{"hop": i, "name": p.spec.Name, "tx": res.TxHash})
	}

	// Confirming: block on the poller until the hop's predicate holds
	// against the pre-execution snapshot.
	result.State = types.StateConfirming
	strategy := p.strategy

	label := fmt.Sprintf("%s on %s (%s)", p.spec.Name, p.spec.To, strategy.Describe())
	confirmStart := time.Now()
	current, err := poll.Until(ctx, s.poller, label,
		func(ctx context.Context) (*big.Int, error) {
			return reader.Balance(ctx, p.spec.Destination, input.Asset)
		},
		func(bal *big.Int) bool {
			return strategy.Satisfied(before, bal)
		},
	)
	if err != nil {
		var timeout *poll.TimeoutError
		if errors.As(err, &timeout) {
			s.metrics.IncCounter("hop_confirmation_timeout", labels)
			return &types.FlowError{
				Code:    types.ErrPollTimeout,
				Message: timeout.Error(),
				Hop:     i,
				Data:    timeout,
			}
		}
		return err
	}

	credited := new(big.Int).Sub(current, before)
	result.Hops[i].Status = types.HopConfirmed
	result.Hops[i].Credited = credited
	s.metrics.IncCounter("hop_confirmed", labels)
	s.metrics.ObserveLatency("confirmation", time.Since(confirmStart), labels)
	s.log.Info("hop confirmed", map[string]any{
		"hop":      i,
		"name":     p.spec.Name,
		"credited": utils.FormatAmountFromBigInt(credited, p.decimals),
	})
	return nil
}
