package server

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/nftlane/nft-bridge-service/etherman"
)

type storageInterface interface {
	GetBridgeRequest(ctx context.Context, hash common.Hash, direction etherman.RequestDirection, dbTx pgx.Tx) (*etherman.BridgeRequest, error)
	GetBridgeRequestsByOwner(ctx context.Context, owner common.Address, limit, offset uint, dbTx pgx.Tx) ([]*etherman.BridgeRequest, error)
	GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error)
	GetCollectionPairByL2(ctx context.Context, collectionL2 *big.Int, dbTx pgx.Tx) (*etherman.CollectionPair, error)
}
