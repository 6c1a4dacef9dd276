package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/bridgeflow/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseFlowInput parses and structurally validates a FlowInput from JSON.
// Semantic checks (amount resolvability, destination/account consistency)
// belong to the flow service; this only rejects malformed input.
func ParseFlowInput(data []byte) (*types.FlowInput, error) {
	var input types.FlowInput

	if err := json.Unmarshal(data, &input); err != nil {
		return nil, types.NewValidationError("failed to parse flow input: %v", err)
	}

	if err := ValidateFlowInput(&input); err != nil {
		return nil, err
	}

	return &input, nil
}

// ValidateFlowInput runs the struct-tag validation over an already-built
// FlowInput.
func ValidateFlowInput(input *types.FlowInput) error {
	if err := validate.Struct(input); err != nil {
		return types.NewValidationError("validation failed: %v", err)
	}
	return nil
}

// SerializeFlowResult converts a FlowResult to JSON.
func SerializeFlowResult(result *types.FlowResult) ([]byte, error) {
	return json.Marshal(result)
}

// NormalizeJSON formats a value with consistent indentation for display.
func NormalizeJSON(data interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling: %w", err)
	}
	return out, nil
}
