package etherman

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlane/nft-bridge-service/config/types"
)

// Config represents the configuration of both chain clients.
type Config struct {
	// L1URL is the JSON-RPC endpoint of the origin chain node.
	L1URL string `mapstructure:"L1URL"`
	// L2URL is the JSON-RPC endpoint of the destination rollup node.
	L2URL string `mapstructure:"L2URL"`

	// L1BridgeAddr is the escrow contract emitting request events on L1.
	L1BridgeAddr common.Address `mapstructure:"L1BridgeAddr"`
	// L2BridgeAddr is the bridge contract on the rollup. It also owns
	// every collection the bridge deploys there.
	L2BridgeAddr common.Address `mapstructure:"L2BridgeAddr"`

	// PrivateKey is the keystore signing withdraw completions and
	// collection deployments. Optional for read-only deployments.
	PrivateKey types.KeystoreFileConfig `mapstructure:"PrivateKey"`
}
