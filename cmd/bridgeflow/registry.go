package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/vitwit/bridgeflow/registry"
	"github.com/vitwit/bridgeflow/types"
)

// registryFileEntry is one row of the JSON registry file pointed at by
// --registry / BRIDGEFLOW_REGISTRY.
type registryFileEntry struct {
	Asset     string `json:"asset"`
	Ledger    string `json:"ledger"`
	Address   string `json:"address,omitempty"`
	CoreIndex int    `json:"coreIndex,omitempty"`
	Decimals  int    `json:"decimals"`
}

// defaultRegistry loads the asset table from the configured registry file.
// The table is built exactly once per invocation; nothing downstream ever
// re-declares per-token addresses.
func defaultRegistry() (*registry.Registry, error) {
	path := viper.GetString("registry")
	if path == "" {
		return nil, fmt.Errorf("no asset registry configured (--registry or BRIDGEFLOW_REGISTRY)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var rows []registryFileEntry
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing registry file %s: %w", path, err)
	}

	entries := make([]registry.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, registry.Entry{
			Asset:  types.Asset(row.Asset),
			Ledger: types.Ledger(row.Ledger),
			Representation: registry.Representation{
				Address:   row.Address,
				CoreIndex: row.CoreIndex,
				Decimals:  row.Decimals,
			},
		})
	}
	return registry.New(entries)
}
