package types

import "fmt"

// FlowError is the error type surfaced by the orchestrator and its
// collaborators. Code is a stable machine-readable string; Hop is the index
// of the failing hop, or -1 when the failure precedes execution.
type FlowError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Hop     int         `json:"hop"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *FlowError) Error() string {
	if e.Hop >= 0 {
		return fmt.Sprintf("%s (hop %d): %s", e.Code, e.Hop, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	// ErrValidation covers unmet flow preconditions: missing amounts,
	// destination/account mismatch. Recoverable by fixing the input.
	ErrValidation = "VALIDATION_FAILED"

	// ErrExecutorFailure means a hop's step executor reported failure. The
	// run aborts at that hop; prior hops are not undone.
	ErrExecutorFailure = "EXECUTOR_FAILED"

	// ErrPollTimeout means the destination balance did not reach the
	// expected condition in time. The underlying transaction may still land
	// out of band of this run.
	ErrPollTimeout = "CONFIRMATION_TIMEOUT"

	// ErrRPC is a hard EVM endpoint failure while snapshotting or polling.
	ErrRPC = "RPC_ERROR"

	// ErrAPI is a hard core-ledger info-API failure.
	ErrAPI = "API_ERROR"

	// ErrUnsupportedLedger means no balance reader is configured for a
	// ledger named by the flow.
	ErrUnsupportedLedger = "UNSUPPORTED_LEDGER"

	// ErrUnknownAsset means the registry has no representation for the
	// asset on the requested ledger.
	ErrUnknownAsset = "UNKNOWN_ASSET"
)

// NewValidationError builds a pre-execution FlowError.
func NewValidationError(format string, args ...interface{}) *FlowError {
	return &FlowError{Code: ErrValidation, Message: fmt.Sprintf(format, args...), Hop: -1}
}
