package db

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	ctmtypes "github.com/nftlane/nft-bridge-service/claimtxman/types"
	"github.com/nftlane/nft-bridge-service/db/pgstorage"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
)

// Storage interface
type Storage interface {
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error

	GetLastBlock(ctx context.Context, networkID uint, dbTx pgx.Tx) (*etherman.Block, error)
	GetPreviousBlock(ctx context.Context, networkID uint, offset uint64, dbTx pgx.Tx) (*etherman.Block, error)
	AddBlock(ctx context.Context, block *etherman.Block, dbTx pgx.Tx) (uint64, error)
	Reset(ctx context.Context, blockNumber uint64, networkID uint, dbTx pgx.Tx) error

	AddBridgeRequest(ctx context.Context, request *etherman.BridgeRequest, dbTx pgx.Tx) (uint64, error)
	GetBridgeRequest(ctx context.Context, hash common.Hash, direction etherman.RequestDirection, dbTx pgx.Tx) (*etherman.BridgeRequest, error)
	GetBridgeRequestsByOwner(ctx context.Context, owner common.Address, limit, offset uint, dbTx pgx.Tx) ([]*etherman.BridgeRequest, error)

	AddCollectionPair(ctx context.Context, pair *etherman.CollectionPair, dbTx pgx.Tx) error
	GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error)
	GetCollectionPairByL2(ctx context.Context, collectionL2 *big.Int, dbTx pgx.Tx) (*etherman.CollectionPair, error)

	AddMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) (uint64, error)
	UpdateMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) error
	GetMonitoredTxsByStatus(ctx context.Context, statuses []ctmtypes.MonitoredTxStatus, dbTx pgx.Tx) ([]ctmtypes.MonitoredTx, error)
}

// NewStorage creates a new Storage
func NewStorage(cfg Config) (Storage, error) {
	if cfg.Database == "postgres" {
		return pgstorage.NewPostgresStorage(pgstorage.Config{
			Name:     cfg.Name,
			User:     cfg.User,
			Password: cfg.Password,
			Host:     cfg.Host,
			Port:     cfg.Port,
			MaxConns: cfg.MaxConns,
		})
	}
	return nil, gerror.ErrStorageNotRegister
}

// RunMigrations will execute pending migrations if needed to keep
// the database updated with the latest changes
func RunMigrations(cfg Config) error {
	return pgstorage.RunMigrations(pgstorage.Config{
		Name:     cfg.Name,
		User:     cfg.User,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		MaxConns: cfg.MaxConns,
	})
}
