package synchronizer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	"github.com/nftlane/nft-bridge-service/collection"
	"github.com/nftlane/nft-bridge-service/etherman"
)

type ethermanInterface interface {
	GetBridgeInfoByBlockRange(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]etherman.Block, map[common.Hash][]etherman.Order, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EthBlockByNumber(ctx context.Context, blockNumber uint64) (*types.Block, error)
	GetNetworkID() uint
}

// storageInterface gathers the methods required to interact with the storage.
type storageInterface interface {
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error
	GetLastBlock(ctx context.Context, networkID uint, dbTx pgx.Tx) (*etherman.Block, error)
	GetPreviousBlock(ctx context.Context, networkID uint, offset uint64, dbTx pgx.Tx) (*etherman.Block, error)
	AddBlock(ctx context.Context, block *etherman.Block, dbTx pgx.Tx) (uint64, error)
	Reset(ctx context.Context, blockNumber uint64, networkID uint, dbTx pgx.Tx) error
	AddBridgeRequest(ctx context.Context, request *etherman.BridgeRequest, dbTx pgx.Tx) (uint64, error)
	AddCollectionPair(ctx context.Context, pair *etherman.CollectionPair, dbTx pgx.Tx) error
	GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error)
}

type collectionDeployer interface {
	DeployBridgeableCollection(ctx context.Context, template common.Hash, saltSeed *big.Int, name, symbol string, controller common.Address) (common.Address, error)
}

type metadataExtractor interface {
	ExtractMetadata(ctx context.Context, source common.Address, tokenIDs []*big.Int) (collection.Metadata, error)
}
