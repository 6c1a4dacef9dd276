package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vitwit/bridgeflow"
	"github.com/vitwit/bridgeflow/logger"
	"github.com/vitwit/bridgeflow/types"
	"github.com/vitwit/bridgeflow/utils"
)

func newTransferCmd() *cobra.Command {
	var (
		asset        string
		account      string
		recipient    string
		amount       string
		wrapAmount   string
		bridgeAmount string
		settleAmount string
		dryRun       bool
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Wrap on the source chain, bridge to the bridge EVM, settle on the core ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := defaultRegistry()
			if err != nil {
				return err
			}

			// The account signs on both EVM ledgers; reject a malformed
			// address before building anything.
			if err := utils.ValidateEVMAddress(account); err != nil {
				return fmt.Errorf("--account: %w", err)
			}

			input := &types.FlowInput{
				Asset:   types.Asset(asset),
				Account: account,
				Amount:  amount,
				DryRun:  dryRun,
				Hops: []types.HopSpec{
					{
						Name:        "wrap",
						From:        types.LedgerSource,
						To:          types.LedgerSource,
						Amount:      wrapAmount,
						Mode:        types.ConfirmAnyIncrease,
						Destination: account,
						Chained:     true,
					},
					{
						Name:        "bridge",
						From:        types.LedgerSource,
						To:          types.LedgerBridgeEVM,
						Amount:      bridgeAmount,
						Mode:        types.ConfirmAtLeast,
						Destination: account,
						Chained:     true,
					},
					{
						Name:        "settle",
						From:        types.LedgerBridgeEVM,
						To:          types.LedgerCore,
						Amount:      settleAmount,
						Mode:        types.ConfirmTolerance,
						Destination: recipient,
					},
				},
			}

			engine := bridgeflow.New(reg, &bridgeflow.Config{
				PollInterval: flagPollInterval,
				PollTimeout:  flagPollTimeout,
			}, bridgeflow.WithLogger(logger.NewConsoleLogger(flagLogLevel)))
			defer engine.Close()

			if err := engine.AddEVMLedger(types.LedgerSource, flagSourceRPC); err != nil {
				return err
			}
			if err := engine.AddEVMLedger(types.LedgerBridgeEVM, flagBridgeRPC); err != nil {
				return err
			}
			if err := engine.AddCoreLedger(flagCoreAPI); err != nil {
				return err
			}
			for _, hop := range []string{"wrap", "bridge", "settle"} {
				engine.AddExecutor(hop, newStepTool(flagStepTool, hop))
			}

			// Reject bad input before prompting and before any hop runs.
			if err := engine.Validate(input); err != nil {
				return err
			}

			if !yes && !dryRun {
				if !confirmPrompt(cmd, input) {
					return fmt.Errorf("aborted by user")
				}
			}

			result, runErr := engine.Run(cmd.Context(), input)
			printResult(cmd, result)
			return runErr
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "logical asset identifier")
	cmd.Flags().StringVar(&account, "account", "", "flow account address (destination of chained hops)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "final recipient on the core ledger")
	cmd.Flags().StringVar(&amount, "amount", "", "nominal amount for every hop without an override")
	cmd.Flags().StringVar(&wrapAmount, "wrap-amount", "", "override amount for the wrap hop")
	cmd.Flags().StringVar(&bridgeAmount, "bridge-amount", "", "override amount for the bridge hop")
	cmd.Flags().StringVar(&settleAmount, "settle-amount", "", "override amount for the settle hop")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the hop plan without submitting anything")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func confirmPrompt(cmd *cobra.Command, input *types.FlowInput) bool {
	plan, _ := utils.NormalizeJSON(input)
	cmd.Println(string(plan))
	cmd.Print("Execute this flow? [y/N]: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func printResult(cmd *cobra.Command, result *types.FlowResult) {
	if result == nil {
		return
	}
	out, err := utils.NormalizeJSON(result)
	if err != nil {
		cmd.PrintErrln(err)
		return
	}
	cmd.Println(string(out))
	if result.State == types.StateFailed && result.FailedAt >= 0 {
		cmd.PrintErrf("hop %d of %d failed; %d hop(s) already confirmed and will not be undone\n",
			result.FailedAt+1, len(result.Hops), result.Confirmed())
	}
}
