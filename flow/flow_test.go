package flow

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitwit/bridgeflow/executor"
	"github.com/vitwit/bridgeflow/poll"
	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
	"github.com/vitwit/bridgeflow/utils"
)

const (
	account   = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
	recipient = "core-recipient-address"
)

// scriptedReader serves balances from a per-account sequence; once the
// sequence is exhausted the last value repeats. Each Balance call consumes
// one entry, so tests can express "confirms on the Nth poll" directly.
type scriptedReader struct {
	ledger   types.Ledger
	decimals int

	mu    sync.Mutex
	seq   map[string][]int64
	pos   map[string]int
	reads int

	err error
}

func newScriptedReader(ledger types.Ledger, decimals int) *scriptedReader {
	return &scriptedReader{
		ledger:   ledger,
		decimals: decimals,
		seq:      make(map[string][]int64),
		pos:      make(map[string]int),
	}
}

func (r *scriptedReader) script(account string, balances ...int64) {
	r.seq[account] = balances
}

func (r *scriptedReader) Balance(_ context.Context, account string, _ types.Asset) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.err != nil {
		return nil, r.err
	}
	s := r.seq[account]
	if len(s) == 0 {
		return new(big.Int), nil
	}
	i := r.pos[account]
	if i >= len(s) {
		i = len(s) - 1
	} else {
		r.pos[account]++
	}
	return big.NewInt(s[i]), nil
}

func (r *scriptedReader) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *scriptedReader) Decimals(types.Asset) (int, error) { return r.decimals, nil }
func (r *scriptedReader) Ledger() types.Ledger              { return r.ledger }
func (r *scriptedReader) Close()                            {}

// recordingExecutor captures every request and returns a fixed result.
type recordingExecutor struct {
	mu     sync.Mutex
	calls  []executor.StepRequest
	result executor.StepResult
}

func passingExecutor() *recordingExecutor {
	return &recordingExecutor{result: executor.StepResult{Success: true, TxHash: "0xabc"}}
}

func failingExecutor(msg string) *recordingExecutor {
	return &recordingExecutor{result: executor.StepResult{Success: false, Error: msg}}
}

func (e *recordingExecutor) Execute(_ context.Context, req executor.StepRequest) executor.StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req)
	return e.result
}

func (e *recordingExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *recordingExecutor) lastCall() executor.StepRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[len(e.calls)-1]
}

// testRegistry maps TOKEN with 6 decimals on both EVM ledgers and 4 on the
// core ledger, so 0.5 is 500000 raw on the EVM side and 5000 raw on core.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{Asset: "TOKEN", Ledger: types.LedgerSource, Representation: registry.Representation{
			Address: "0x1111111111111111111111111111111111111111", Decimals: 6,
		}},
		{Asset: "TOKEN", Ledger: types.LedgerBridgeEVM, Representation: registry.Representation{
			Address: "0x2222222222222222222222222222222222222222", Decimals: 6,
		}},
		{Asset: "TOKEN", Ledger: types.LedgerCore, Representation: registry.Representation{
			CoreIndex: 7, Decimals: 4,
		}},
	})
	require.NoError(t, err)
	return reg
}

func testPoller() *poll.Poller {
	return poll.New(poll.Config{
		Interval:        time.Millisecond,
		Timeout:         100 * time.Millisecond,
		ReportEvery:     time.Minute,
		MaxReadFailures: 3,
	})
}

func threeHopInput(dryRun bool) *types.FlowInput {
	return &types.FlowInput{
		Asset:   "TOKEN",
		Account: account,
		Amount:  "0.5",
		DryRun:  dryRun,
		Hops: []types.HopSpec{
			{Name: "wrap", From: types.LedgerSource, To: types.LedgerSource,
				Mode: types.ConfirmAnyIncrease, Destination: account, Chained: true},
			{Name: "bridge", From: types.LedgerSource, To: types.LedgerBridgeEVM,
				Mode: types.ConfirmAtLeast, Destination: account, Chained: true},
			{Name: "settle", From: types.LedgerBridgeEVM, To: types.LedgerCore,
				Mode: types.ConfirmTolerance, Destination: recipient},
		},
	}
}

type harness struct {
	service *Service
	source  *scriptedReader
	bridge  *scriptedReader
	core    *scriptedReader
	wrap    *recordingExecutor
	send    *recordingExecutor
	settle  *recordingExecutor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source: newScriptedReader(types.LedgerSource, 6),
		bridge: newScriptedReader(types.LedgerBridgeEVM, 6),
		core:   newScriptedReader(types.LedgerCore, 4),
		wrap:   passingExecutor(),
		send:   passingExecutor(),
		settle: passingExecutor(),
	}
	h.service = NewService(testRegistry(t), testPoller())
	h.service.AddReader(h.source)
	h.service.AddReader(h.bridge)
	h.service.AddReader(h.core)
	h.service.AddExecutor("wrap", h.wrap)
	h.service.AddExecutor("bridge", h.send)
	h.service.AddExecutor("settle", h.settle)
	return h
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)

	// wrap: snapshot 0, first poll still 0, second poll shows an increase.
	h.source.script(account, 0, 0, 1)
	// bridge: 0.5 lands in full (at-least) after five polls.
	h.bridge.script(account, 0, 0, 0, 0, 0, 500000)
	// settle: 0.4995 of the nominal 0.5 lands (0.1% tolerance) on the
	// first poll.
	h.core.script(recipient, 0, 4995)

	result, err := h.service.Run(context.Background(), threeHopInput(false))
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, result.State)
	require.Equal(t, 3, result.Confirmed())

	for i, hr := range result.Hops {
		require.Equal(t, types.HopConfirmed, hr.Status, "hop %d", i)
	}

	require.Equal(t, int64(1), result.Hops[0].Credited.Int64())
	require.Equal(t, int64(500000), result.Hops[1].Credited.Int64())
	require.Equal(t, int64(4995), result.Hops[2].Credited.Int64())
	require.Equal(t, "0.4995", utils.FormatAmountFromBigInt(result.Hops[2].Credited, 4))

	require.Equal(t, 1, h.wrap.callCount())
	require.Equal(t, 1, h.send.callCount())
	require.Equal(t, 1, h.settle.callCount())
	require.Equal(t, recipient, h.settle.lastCall().Destination)
}

func TestRunStopsAtExecutorFailure(t *testing.T) {
	h := newHarness(t)
	h.send = failingExecutor("insufficient balance")
	h.service.AddExecutor("bridge", h.send)

	h.source.script(account, 0, 1)

	result, err := h.service.Run(context.Background(), threeHopInput(false))
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrExecutorFailure, flowErr.Code)
	require.Equal(t, 1, flowErr.Hop)

	require.Equal(t, types.StateFailed, result.State)
	require.Equal(t, 1, result.FailedAt)
	require.Equal(t, types.HopConfirmed, result.Hops[0].Status)
	require.Equal(t, types.HopFailed, result.Hops[1].Status)
	require.Equal(t, types.HopSkipped, result.Hops[2].Status)

	// The hop after the failure is never invoked.
	require.Equal(t, 0, h.settle.callCount())
	require.Equal(t, 0, h.core.readCount())
}

func TestRunConfirmationTimeout(t *testing.T) {
	h := newHarness(t)

	// wrap never lands: the balance plateaus at its snapshot value.
	h.source.script(account, 0, 0)

	result, err := h.service.Run(context.Background(), threeHopInput(false))
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrPollTimeout, flowErr.Code)
	require.Equal(t, 0, flowErr.Hop)

	require.Equal(t, types.StateFailed, result.State)
	require.Equal(t, 0, result.FailedAt)
	require.Equal(t, types.HopFailed, result.Hops[0].Status)
	require.Equal(t, types.HopSkipped, result.Hops[1].Status)
	require.Equal(t, types.HopSkipped, result.Hops[2].Status)

	// The hop was submitted; later hops were not.
	require.Equal(t, 1, h.wrap.callCount())
	require.Equal(t, 0, h.send.callCount())
}

func TestValidateRejectsDestinationMismatch(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(false)
	input.Hops[1].Destination = "0x0000000000000000000000000000000000000bad"

	err := h.service.Validate(input)
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrValidation, flowErr.Code)

	// Validation is idempotent and makes no network call.
	err2 := h.service.Validate(input)
	require.EqualError(t, err2, err.Error())
	require.Equal(t, 0, h.source.readCount())
	require.Equal(t, 0, h.bridge.readCount())
	require.Equal(t, 0, h.core.readCount())
	require.Equal(t, 0, h.wrap.callCount())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(false)
	input.Hops[1].Mode = "eventually"

	err := h.service.Validate(input)
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrValidation, flowErr.Code)
	require.Contains(t, err.Error(), "bridge")
	require.Contains(t, err.Error(), "eventually")

	// Run rejects the same input before any snapshot or executor call;
	// the mode is static, so it can never fail a hop that already acted.
	result, runErr := h.service.Run(context.Background(), input)
	require.Error(t, runErr)
	require.Equal(t, types.StateFailed, result.State)
	require.Equal(t, 0, h.source.readCount())
	require.Equal(t, 0, h.wrap.callCount())
	require.Equal(t, 0, h.send.callCount())

	// A dry run of the same input reports the same rejection, not a clean
	// plan that a live run would then fail on.
	dry := threeHopInput(true)
	dry.Hops[1].Mode = "eventually"
	_, dryErr := h.service.Run(context.Background(), dry)
	require.Error(t, dryErr)
	require.Equal(t, 0, h.wrap.callCount())
}

func TestValidateRejectsMalformedEVMDestination(t *testing.T) {
	h := newHarness(t)

	input := &types.FlowInput{
		Asset:   "TOKEN",
		Account: account,
		Hops: []types.HopSpec{
			{Name: "bridge", From: types.LedgerSource, To: types.LedgerBridgeEVM,
				Mode: types.ConfirmAtLeast, Amount: "0.5",
				Destination: "0x2222222222222222222222222222222222222ZZZ"},
		},
	}

	err := h.service.Validate(input)
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrValidation, flowErr.Code)
	require.Contains(t, err.Error(), "destination")

	require.Equal(t, 0, h.bridge.readCount())
	require.Equal(t, 0, h.send.callCount())

	// Core-ledger destinations are free-form; only EVM hops get the hex
	// address check.
	require.NoError(t, h.service.Validate(threeHopInput(false)))
}

func TestValidateAcceptsCaseInsensitiveAccountMatch(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(false)
	input.Hops[0].Destination = "0xe4d365a5a8fc0dcee9e3c5985d7fcbab8b4a0fe1"

	require.NoError(t, h.service.Validate(input))
}

func TestValidateRejectsMissingAmount(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(false)
	input.Amount = ""
	input.Hops[0].Amount = "0.5"
	input.Hops[2].Amount = "0.5"
	// hop 1 has neither an override nor a flow default.

	err := h.service.Validate(input)
	require.Error(t, err)

	var flowErr *types.FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, types.ErrValidation, flowErr.Code)
	require.Contains(t, err.Error(), "bridge")
}

func TestValidateRejectsBadAmount(t *testing.T) {
	h := newHarness(t)

	for _, amount := range []string{"abc", "-1", "0"} {
		input := threeHopInput(false)
		input.Amount = amount
		err := h.service.Validate(input)
		require.Error(t, err, "amount %q", amount)
	}
}

func TestRunFailsValidationBeforeAnySideEffect(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(false)
	input.Hops[0].Destination = "0x0000000000000000000000000000000000000bad"

	result, err := h.service.Run(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, types.StateFailed, result.State)
	require.Equal(t, 0, h.wrap.callCount())
	require.Equal(t, 0, h.source.readCount())
}

func TestDryRun(t *testing.T) {
	h := newHarness(t)

	input := threeHopInput(true)
	input.Hops[2].Amount = "0.25"

	result, err := h.service.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, result.State)

	// Every executor sees the dry-run flag; nothing polls, nothing reads.
	for _, ex := range []*recordingExecutor{h.wrap, h.send, h.settle} {
		require.Equal(t, 1, ex.callCount())
		require.True(t, ex.lastCall().DryRun)
	}
	require.Equal(t, 0, h.source.readCount())
	require.Equal(t, 0, h.bridge.readCount())
	require.Equal(t, 0, h.core.readCount())

	// The reported plan resolves amounts exactly as a live run would.
	require.Equal(t, "0.5", result.Hops[0].Amount)
	require.Equal(t, "0.5", result.Hops[1].Amount)
	require.Equal(t, "0.25", result.Hops[2].Amount)
	for _, hr := range result.Hops {
		require.Equal(t, types.HopExecuted, hr.Status)
	}
}

func TestRunSnapshotErrorAborts(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("rpc unreachable")

	result, err := h.service.Run(context.Background(), threeHopInput(false))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rpc unreachable")
	require.Equal(t, types.StateFailed, result.State)

	// Nothing was submitted: the snapshot precedes the executor.
	require.Equal(t, 0, h.wrap.callCount())
}

func TestRunTransientPollReadErrors(t *testing.T) {
	h := newHarness(t)

	// One hop only, whose reader fails twice mid-poll then reports the
	// credited balance.
	input := &types.FlowInput{
		Asset:   "TOKEN",
		Account: account,
		Amount:  "0.5",
		Hops: []types.HopSpec{
			{Name: "wrap", From: types.LedgerSource, To: types.LedgerSource,
				Mode: types.ConfirmAnyIncrease, Destination: account, Chained: true},
		},
	}

	flaky := &flakyReader{inner: h.source, failOn: map[int]bool{2: true, 3: true}}
	h.source.script(account, 0, 0, 0, 1)
	h.service.AddReader(flaky)

	result, err := h.service.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, result.State)
}

// flakyReader fails specific calls (1-based) and delegates the rest.
type flakyReader struct {
	inner  *scriptedReader
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (f *flakyReader) Balance(ctx context.Context, account string, asset types.Asset) (*big.Int, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failOn[f.calls]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("transient network error")
	}
	return f.inner.Balance(ctx, account, asset)
}

func (f *flakyReader) Decimals(a types.Asset) (int, error) { return f.inner.Decimals(a) }
func (f *flakyReader) Ledger() types.Ledger                { return f.inner.Ledger() }
func (f *flakyReader) Close()                              {}
