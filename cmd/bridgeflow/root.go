package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagSourceRPC    string
	flagBridgeRPC    string
	flagCoreAPI      string
	flagStepTool     string
	flagLogLevel     string
	flagPollInterval time.Duration
	flagPollTimeout  time.Duration
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bridgeflow",
		Short:         "Drive multi-hop token transfers across the source chain, bridge EVM and core ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagSourceRPC, "source-rpc", "", "source chain RPC endpoint")
	pf.StringVar(&flagBridgeRPC, "bridge-rpc", "", "bridge EVM RPC endpoint")
	pf.StringVar(&flagCoreAPI, "core-api", "", "core ledger info API base URL")
	pf.StringVar(&flagStepTool, "step-tool", "", "binary invoked to execute individual hops")
	pf.String("registry", "", "path to the JSON asset registry file")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	pf.DurationVar(&flagPollInterval, "poll-interval", 5*time.Second, "balance poll interval")
	pf.DurationVar(&flagPollTimeout, "poll-timeout", 10*time.Minute, "per-hop confirmation timeout")

	// Every persistent flag is also settable via BRIDGEFLOW_* env vars.
	viper.SetEnvPrefix("bridgeflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.OnInitialize(func() {
		_ = viper.BindPFlags(pf)
		flagSourceRPC = viper.GetString("source-rpc")
		flagBridgeRPC = viper.GetString("bridge-rpc")
		flagCoreAPI = viper.GetString("core-api")
		flagStepTool = viper.GetString("step-tool")
	})

	cmd.AddCommand(newTransferCmd())
	return cmd
}

// Execute runs the CLI. A validation or hop failure surfaces as a non-nil
// error, which main maps to exit code 1.
func Execute() error {
	return newRootCmd().Execute()
}
