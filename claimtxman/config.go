package claimtxman

import (
	"github.com/nftlane/nft-bridge-service/config/types"
)

// Config is configuration for the withdraw-auto transaction manager
type Config struct {
	// Enabled whether to enable this module
	Enabled bool `mapstructure:"Enabled"`

	// FrequencyToMonitorTxs frequency of the resending failed txs
	FrequencyToMonitorTxs types.Duration `mapstructure:"FrequencyToMonitorTxs"`

	// RetryInterval is time between each retry
	RetryInterval types.Duration `mapstructure:"RetryInterval"`

	// RetryNumber is the number of retries before giving up
	RetryNumber int `mapstructure:"RetryNumber"`
}
