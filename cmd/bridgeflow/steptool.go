package main

import (
	"context"
	"os/exec"
	"strings"

	"github.com/vitwit/bridgeflow/executor"
)

// stepTool runs one hop through an external binary, keeping the process
// boundary out of the orchestrator: the orchestrator only sees the pass/fail
// contract. Exit code 0 is success; on failure the last stderr line becomes
// the reported error.
type stepTool struct {
	binary string
	hop    string
}

func newStepTool(binary, hop string) executor.StepExecutor {
	return &stepTool{binary: binary, hop: hop}
}

func (t *stepTool) Execute(ctx context.Context, req executor.StepRequest) executor.StepResult {
	if t.binary == "" {
		return executor.StepResult{Success: false, Error: "no step tool configured (--step-tool)"}
	}

	args := []string{
		t.hop,
		"--asset", req.Asset.String(),
		"--amount", req.Amount,
		"--to", req.Destination,
	}
	if req.DryRun {
		args = append(args, "--dry-run")
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return executor.StepResult{Success: false, Error: lastLine(string(out), err)}
	}
	return executor.StepResult{Success: true, TxHash: lastLine(string(out), nil)}
}

func lastLine(out string, fallback error) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return last
	}
	if fallback != nil {
		return fallback.Error()
	}
	return ""
}
