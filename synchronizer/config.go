package synchronizer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlane/nft-bridge-service/config/types"
)

// Config represents the configuration of the synchronizer
type Config struct {
	// SyncInterval is the delay interval between reading new chain information
	SyncInterval types.Duration `mapstructure:"SyncInterval"`

	// SyncChunkSize is the number of blocks to sync on each chunk
	SyncChunkSize uint64 `mapstructure:"SyncChunkSize"`

	// GenBlockNumber is the block the bridge contract was deployed at,
	// where a fresh database starts syncing from
	GenBlockNumber uint64 `mapstructure:"GenBlockNumber"`

	// CollectionTemplate is the template reference new rollup
	// collections are instantiated from
	CollectionTemplate common.Hash `mapstructure:"CollectionTemplate"`
}
