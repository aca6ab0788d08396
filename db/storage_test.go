package db

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlane/nft-bridge-service/db/pgstorage"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) Storage {
	t.Helper()
	if _, ok := os.LookupEnv("NFTLANE_DATABASE_USER"); !ok {
		t.Skip("requires a postgres instance, set NFTLANE_DATABASE_* to run")
	}
	cfg := pgstorage.NewConfigFromEnv()
	require.NoError(t, pgstorage.InitOrReset(cfg))

	storage, err := NewStorage(Config{
		Database: "postgres",
		Name:     cfg.Name,
		User:     cfg.User,
		Password: cfg.Password,
		Host:     cfg.Host,
		Port:     cfg.Port,
		MaxConns: 20,
	})
	require.NoError(t, err)
	return storage
}

func TestBlockStore(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	block := &etherman.Block{
		BlockNumber: 100,
		BlockHash:   common.HexToHash("0x01"),
		ParentHash:  common.HexToHash("0x02"),
		NetworkID:   etherman.MainNetworkID,
		ReceivedAt:  time.Now(),
	}
	_, err := storage.AddBlock(ctx, block, nil)
	require.NoError(t, err)

	last, err := storage.GetLastBlock(ctx, etherman.MainNetworkID, nil)
	require.NoError(t, err)
	assert.Equal(t, block.BlockNumber, last.BlockNumber)
	assert.Equal(t, block.BlockHash, last.BlockHash)

	require.NoError(t, storage.Reset(ctx, 99, etherman.MainNetworkID, nil))
	_, err = storage.GetLastBlock(ctx, etherman.MainNetworkID, nil)
	assert.Error(t, err)
}

func TestBridgeRequestStore(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	blockID, err := storage.AddBlock(ctx, &etherman.Block{
		BlockNumber: 7,
		BlockHash:   common.HexToHash("0x07"),
		ParentHash:  common.HexToHash("0x06"),
		NetworkID:   etherman.MainNetworkID,
		ReceivedAt:  time.Now(),
	}, nil)
	require.NoError(t, err)

	request := &etherman.BridgeRequest{
		Hash:         common.HexToHash("0xaa"),
		Direction:    etherman.DirectionDeposit,
		Header:       big.NewInt(0x0101),
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		CollectionL2: big.NewInt(777),
		OwnerL1:      common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"),
		OwnerL2:      big.NewInt(888),
		Name:         "Everai",
		Symbol:       "DUO",
		URI:          "ipfs://everai",
		TokenIDs:     []*big.Int{big.NewInt(1), big.NewInt(2)},
		NetworkID:    etherman.MainNetworkID,
		TxHash:       common.HexToHash("0xbb"),
		BlockID:      blockID,
	}
	_, err = storage.AddBridgeRequest(ctx, request, nil)
	require.NoError(t, err)

	stored, err := storage.GetBridgeRequest(ctx, request.Hash, etherman.DirectionDeposit, nil)
	require.NoError(t, err)
	assert.Equal(t, request.Name, stored.Name)
	assert.Zero(t, request.Header.Cmp(stored.Header))
	assert.Zero(t, request.CollectionL2.Cmp(stored.CollectionL2))
	require.Len(t, stored.TokenIDs, 2)
	assert.Zero(t, request.TokenIDs[0].Cmp(stored.TokenIDs[0]))
	assert.Equal(t, uint64(7), stored.BlockNumber)

	byOwner, err := storage.GetBridgeRequestsByOwner(ctx, request.OwnerL1, 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, request.Hash, byOwner[0].Hash)
}

func TestCollectionPairStore(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	blockID, err := storage.AddBlock(ctx, &etherman.Block{
		BlockNumber: 1,
		BlockHash:   common.HexToHash("0x01"),
		NetworkID:   etherman.RollupNetworkID,
		ReceivedAt:  time.Now(),
	}, nil)
	require.NoError(t, err)

	pair := &etherman.CollectionPair{
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		CollectionL2: big.NewInt(555),
		Name:         "Everai",
		Symbol:       "DUO",
		BlockID:      blockID,
	}
	require.NoError(t, storage.AddCollectionPair(ctx, pair, nil))

	byL1, err := storage.GetCollectionPairByL1(ctx, pair.CollectionL1, nil)
	require.NoError(t, err)
	assert.Zero(t, pair.CollectionL2.Cmp(byL1.CollectionL2))

	byL2, err := storage.GetCollectionPairByL2(ctx, pair.CollectionL2, nil)
	require.NoError(t, err)
	assert.Equal(t, pair.CollectionL1, byL2.CollectionL1)
}

func TestStorageAtomicity(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	dbTx, err := storage.BeginDBTransaction(ctx)
	require.NoError(t, err)

	_, err = storage.AddBlock(ctx, &etherman.Block{
		BlockNumber: 50,
		BlockHash:   common.HexToHash("0x50"),
		NetworkID:   etherman.MainNetworkID,
		ReceivedAt:  time.Now(),
	}, dbTx)
	require.NoError(t, err)
	require.NoError(t, storage.Rollback(ctx, dbTx))

	_, err = storage.GetLastBlock(ctx, etherman.MainNetworkID, nil)
	assert.Error(t, err)
}
