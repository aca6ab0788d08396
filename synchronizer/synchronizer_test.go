package synchronizer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	"github.com/nftlane/nft-bridge-service/collection"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
	"github.com/nftlane/nft-bridge-service/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testController = common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")

type fakeStorage struct {
	blocks    []*etherman.Block
	requests  []*etherman.BridgeRequest
	pairs     map[common.Address]*etherman.CollectionPair
	commits   int
	rollbacks int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{pairs: make(map[common.Address]*etherman.CollectionPair)}
}

func (f *fakeStorage) BeginDBTransaction(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (f *fakeStorage) Commit(ctx context.Context, dbTx pgx.Tx) error {
	f.commits++
	return nil
}

func (f *fakeStorage) Rollback(ctx context.Context, dbTx pgx.Tx) error {
	f.rollbacks++
	return nil
}

func (f *fakeStorage) GetLastBlock(ctx context.Context, networkID uint, dbTx pgx.Tx) (*etherman.Block, error) {
	if len(f.blocks) == 0 {
		return nil, gerror.ErrStorageNotFound
	}
	return f.blocks[len(f.blocks)-1], nil
}

func (f *fakeStorage) GetPreviousBlock(ctx context.Context, networkID uint, offset uint64, dbTx pgx.Tx) (*etherman.Block, error) {
	idx := len(f.blocks) - 1 - int(offset)
	if idx < 0 {
		return nil, gerror.ErrStorageNotFound
	}
	return f.blocks[idx], nil
}

func (f *fakeStorage) AddBlock(ctx context.Context, block *etherman.Block, dbTx pgx.Tx) (uint64, error) {
	f.blocks = append(f.blocks, block)
	return uint64(len(f.blocks)), nil
}

func (f *fakeStorage) Reset(ctx context.Context, blockNumber uint64, networkID uint, dbTx pgx.Tx) error {
	var kept []*etherman.Block
	for _, b := range f.blocks {
		if b.BlockNumber <= blockNumber {
			kept = append(kept, b)
		}
	}
	f.blocks = kept
	return nil
}

func (f *fakeStorage) AddBridgeRequest(ctx context.Context, request *etherman.BridgeRequest, dbTx pgx.Tx) (uint64, error) {
	f.requests = append(f.requests, request)
	return uint64(len(f.requests)), nil
}

func (f *fakeStorage) AddCollectionPair(ctx context.Context, pair *etherman.CollectionPair, dbTx pgx.Tx) error {
	f.pairs[pair.CollectionL1] = pair
	return nil
}

func (f *fakeStorage) GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error) {
	pair, ok := f.pairs[collectionL1]
	if !ok {
		return nil, gerror.ErrStorageNotFound
	}
	return pair, nil
}

type fakeEtherman struct {
	networkID uint
	chain     map[uint64]*types.Block
	blocks    []etherman.Block
	order     map[common.Hash][]etherman.Order
}

func (f *fakeEtherman) GetBridgeInfoByBlockRange(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]etherman.Block, map[common.Hash][]etherman.Order, error) {
	return f.blocks, f.order, nil
}

func (f *fakeEtherman) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var last uint64
	for n := range f.chain {
		if n > last {
			last = n
		}
	}
	return &types.Header{Number: new(big.Int).SetUint64(last)}, nil
}

func (f *fakeEtherman) EthBlockByNumber(ctx context.Context, blockNumber uint64) (*types.Block, error) {
	block, ok := f.chain[blockNumber]
	if !ok {
		return nil, etherman.ErrNotFound
	}
	return block, nil
}

func (f *fakeEtherman) GetNetworkID() uint { return f.networkID }

type fakeDeployer struct {
	deployed common.Address
	err      error
	calls    int
	name     string
	symbol   string
}

func (f *fakeDeployer) DeployBridgeableCollection(ctx context.Context, template common.Hash, saltSeed *big.Int, name, symbol string, controller common.Address) (common.Address, error) {
	f.calls++
	f.name, f.symbol = name, symbol
	return f.deployed, f.err
}

type fakeExtractor struct {
	meta collection.Metadata
	err  error
}

func (f *fakeExtractor) ExtractMetadata(ctx context.Context, source common.Address, tokenIDs []*big.Int) (collection.Metadata, error) {
	return f.meta, f.err
}

func newTestSync(t *testing.T, networkID uint, storage *fakeStorage, ethMan *fakeEtherman, deployer *fakeDeployer, extractor *fakeExtractor, chWithdrawAuto chan etherman.RequestEvent) *ClientSynchronizer {
	t.Helper()
	ethMan.networkID = networkID
	if extractor == nil {
		extractor = &fakeExtractor{}
	}
	sync, err := NewSynchronizer(storage, ethMan, deployer, extractor, testController,
		chWithdrawAuto, make(chan uint, 1), Config{
			SyncChunkSize:      10,
			GenBlockNumber:     1,
			CollectionTemplate: common.HexToHash("0x10"),
		})
	require.NoError(t, err)
	return sync.(*ClientSynchronizer)
}

func testRequestEvent(t *testing.T, withdrawAuto bool) (protocol.Request, etherman.RequestEvent) {
	t.Helper()
	req := protocol.Request{
		Header:       protocol.EncodeHeader(protocol.KindERC721, false, withdrawAuto),
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		OwnerL1:      common.HexToAddress("0xe0fC04FA2d34a66B779fd5CEe748268032a146c0"),
		OwnerL2:      big.NewInt(888),
		Name:         "Everai",
		Symbol:       "DUO",
		URI:          "ipfs://everai",
		TokenIDs:     []*big.Int{big.NewInt(1), big.NewInt(2)},
	}
	req.Hash = protocol.ComputeHash(big.NewInt(1), req.CollectionL1, req.CollectionL2, req.TokenIDs)
	payload, err := req.Serialize()
	require.NoError(t, err)
	return req, etherman.RequestEvent{
		Hash:    req.Hash,
		Payload: payload,
		TxHash:  common.HexToHash("0xbb"),
	}
}

func testBlockWithRequest(event etherman.RequestEvent) ([]etherman.Block, map[common.Hash][]etherman.Order) {
	block := etherman.Block{
		BlockNumber: 5,
		BlockHash:   common.HexToHash("0x05"),
		ParentHash:  common.HexToHash("0x04"),
		Requests:    []etherman.RequestEvent{event},
		ReceivedAt:  time.Now(),
	}
	order := map[common.Hash][]etherman.Order{
		block.BlockHash: {{Name: etherman.RequestsOrder, Pos: 0}},
	}
	return []etherman.Block{block}, order
}

func TestDepositDeploysMissingCollection(t *testing.T) {
	storage := newFakeStorage()
	deployer := &fakeDeployer{deployed: common.HexToAddress("0x1b50De39A23a44Dad14404Bc7985D671fDC83C35")}
	req, event := testRequestEvent(t, false)
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, deployer, nil, nil)
	require.NoError(t, s.processBlockRange(blocks, order))

	assert.Equal(t, 1, deployer.calls)
	assert.Equal(t, "Everai", deployer.name)
	assert.Equal(t, "DUO", deployer.symbol)

	pair, ok := storage.pairs[req.CollectionL1]
	require.True(t, ok)
	assert.Zero(t, pair.CollectionL2.Cmp(new(big.Int).SetBytes(deployer.deployed.Bytes())))

	require.Len(t, storage.requests, 1)
	stored := storage.requests[0]
	assert.Equal(t, etherman.DirectionDeposit, stored.Direction)
	assert.Equal(t, req.Hash, stored.Hash)
	assert.Zero(t, stored.CollectionL2.Cmp(pair.CollectionL2))
	assert.Equal(t, uint(etherman.MainNetworkID), stored.NetworkID)
	assert.Equal(t, 1, storage.commits)
}

func TestDepositReusesExistingBinding(t *testing.T) {
	storage := newFakeStorage()
	deployer := &fakeDeployer{}
	req, event := testRequestEvent(t, false)
	bound := big.NewInt(4242)
	storage.pairs[req.CollectionL1] = &etherman.CollectionPair{
		CollectionL1: req.CollectionL1,
		CollectionL2: bound,
	}
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, deployer, nil, nil)
	require.NoError(t, s.processBlockRange(blocks, order))

	assert.Zero(t, deployer.calls)
	require.Len(t, storage.requests, 1)
	assert.Zero(t, storage.requests[0].CollectionL2.Cmp(bound))
}

func TestDepositFillsMetadataGapsFromExtractor(t *testing.T) {
	storage := newFakeStorage()
	deployer := &fakeDeployer{deployed: common.HexToAddress("0x1b50De39A23a44Dad14404Bc7985D671fDC83C35")}
	extractor := &fakeExtractor{meta: collection.Metadata{Name: "Chain Name", Symbol: "CHN"}}

	req, _ := testRequestEvent(t, false)
	req.Name, req.Symbol = "", ""
	req.Hash = protocol.ComputeHash(big.NewInt(1), req.CollectionL1, req.CollectionL2, req.TokenIDs)
	payload, err := req.Serialize()
	require.NoError(t, err)
	blocks, order := testBlockWithRequest(etherman.RequestEvent{Hash: req.Hash, Payload: payload})

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, deployer, extractor, nil)
	require.NoError(t, s.processBlockRange(blocks, order))

	assert.Equal(t, "Chain Name", deployer.name)
	assert.Equal(t, "CHN", deployer.symbol)
}

func TestDeployFailureRollsBackBlock(t *testing.T) {
	storage := newFakeStorage()
	deployer := &fakeDeployer{err: errors.New("nonce too low")}
	_, event := testRequestEvent(t, false)
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, deployer, nil, nil)
	err := s.processBlockRange(blocks, order)
	require.Error(t, err)
	assert.Equal(t, 1, storage.rollbacks)
	assert.Zero(t, storage.commits)
	assert.Empty(t, storage.requests)
}

func TestHashMismatchIsSkippedNotFatal(t *testing.T) {
	storage := newFakeStorage()
	deployer := &fakeDeployer{}
	_, event := testRequestEvent(t, false)
	event.Hash = common.HexToHash("0xdeadbeef")
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, deployer, nil, nil)
	require.NoError(t, s.processBlockRange(blocks, order))

	assert.Empty(t, storage.requests)
	assert.Zero(t, deployer.calls)
	assert.Equal(t, 1, storage.commits)
}

func TestUndecodablePayloadIsSkippedNotFatal(t *testing.T) {
	storage := newFakeStorage()
	_, event := testRequestEvent(t, false)
	event.Payload = event.Payload[:3]
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.MainNetworkID, storage, &fakeEtherman{}, &fakeDeployer{}, nil, nil)
	require.NoError(t, s.processBlockRange(blocks, order))

	assert.Empty(t, storage.requests)
	assert.Equal(t, 1, storage.commits)
}

func TestWithdrawAutoQueuedAfterCommit(t *testing.T) {
	storage := newFakeStorage()
	chWithdrawAuto := make(chan etherman.RequestEvent, 1)
	req, event := testRequestEvent(t, true)
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.RollupNetworkID, storage, &fakeEtherman{}, &fakeDeployer{}, nil, chWithdrawAuto)
	require.NoError(t, s.processBlockRange(blocks, order))

	require.Len(t, storage.requests, 1)
	stored := storage.requests[0]
	assert.Equal(t, etherman.DirectionWithdrawal, stored.Direction)
	assert.True(t, stored.WithdrawAuto)

	select {
	case queued := <-chWithdrawAuto:
		assert.Equal(t, req.Hash, queued.Hash)
	default:
		t.Fatal("expected the request on the withdraw-auto lane")
	}
}

func TestWithdrawWithoutAutoFlagIsNotQueued(t *testing.T) {
	storage := newFakeStorage()
	chWithdrawAuto := make(chan etherman.RequestEvent, 1)
	_, event := testRequestEvent(t, false)
	blocks, order := testBlockWithRequest(event)

	s := newTestSync(t, etherman.RollupNetworkID, storage, &fakeEtherman{}, &fakeDeployer{}, nil, chWithdrawAuto)
	require.NoError(t, s.processBlockRange(blocks, order))

	require.Len(t, storage.requests, 1)
	assert.Empty(t, chWithdrawAuto)
}

func TestProcessDeploymentStoresPair(t *testing.T) {
	storage := newFakeStorage()
	deployment := etherman.CollectionDeployment{
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		CollectionL2: big.NewInt(999),
		Name:         "Everai",
		Symbol:       "DUO",
	}
	block := etherman.Block{
		BlockNumber: 9,
		BlockHash:   common.HexToHash("0x09"),
		Deployments: []etherman.CollectionDeployment{deployment},
		ReceivedAt:  time.Now(),
	}
	order := map[common.Hash][]etherman.Order{
		block.BlockHash: {{Name: etherman.DeploymentsOrder, Pos: 0}},
	}

	s := newTestSync(t, etherman.RollupNetworkID, storage, &fakeEtherman{}, &fakeDeployer{}, nil, nil)
	require.NoError(t, s.processBlockRange([]etherman.Block{block}, order))

	pair, ok := storage.pairs[deployment.CollectionL1]
	require.True(t, ok)
	assert.Zero(t, pair.CollectionL2.Cmp(deployment.CollectionL2))
}

func TestCheckReorgFindsCommonAncestor(t *testing.T) {
	storage := newFakeStorage()
	ancestorHeader := &types.Header{Number: big.NewInt(10)}
	ancestor := types.NewBlockWithHeader(ancestorHeader)
	reorgedHeader := &types.Header{Number: big.NewInt(11), ParentHash: ancestor.Hash()}
	reorged := types.NewBlockWithHeader(reorgedHeader)

	storage.blocks = []*etherman.Block{
		{BlockNumber: 10, BlockHash: ancestor.Hash()},
		{BlockNumber: 11, BlockHash: common.HexToHash("0xabad")},
	}
	ethMan := &fakeEtherman{chain: map[uint64]*types.Block{
		10: ancestor,
		11: reorged,
	}}

	s := newTestSync(t, etherman.MainNetworkID, storage, ethMan, &fakeDeployer{}, nil, nil)
	block, err := s.checkReorg(storage.blocks[1])
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(10), block.BlockNumber)
}

func TestCheckReorgNoDivergence(t *testing.T) {
	storage := newFakeStorage()
	header := &types.Header{Number: big.NewInt(10)}
	chainBlock := types.NewBlockWithHeader(header)
	storage.blocks = []*etherman.Block{{BlockNumber: 10, BlockHash: chainBlock.Hash()}}
	ethMan := &fakeEtherman{chain: map[uint64]*types.Block{10: chainBlock}}

	s := newTestSync(t, etherman.MainNetworkID, storage, ethMan, &fakeDeployer{}, nil, nil)
	block, err := s.checkReorg(storage.blocks[0])
	require.NoError(t, err)
	assert.Nil(t, block)
}
