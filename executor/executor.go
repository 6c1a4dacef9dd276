// Package executor defines the contract between the orchestrator and the
// per-hop step implementations (wrap, bridge-send, settle, ...). A step is
// treated as atomic: the orchestrator only consumes its terminal pass/fail
// signal and never retries a failed step within a run.
package executor

import (
	"context"

	"github.com/vitwit/bridgeflow/types"
)

// StepRequest carries everything a step needs to act, or to describe what it
// would do when DryRun is set.
type StepRequest struct {
	Hop         string
	Asset       types.Asset
	Amount      string
	Destination string
	DryRun      bool
}

// StepResult is the step's terminal signal. TxHash is informational; the
// orchestrator confirms via balance observation, not receipts.
type StepResult struct {
	Success bool
	TxHash  string
	Error   string
}

// StepExecutor performs one hop. Implementations may retry internally but
// must return a terminal result.
type StepExecutor interface {
	Execute(ctx context.Context, req StepRequest) StepResult
}

// Func adapts a plain function to StepExecutor.
type Func func(ctx context.Context, req StepRequest) StepResult

func (f Func) Execute(ctx context.Context, req StepRequest) StepResult {
	return f(ctx, req)
}
