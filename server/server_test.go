package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	requests map[common.Hash]*etherman.BridgeRequest
	byOwner  map[common.Address][]*etherman.BridgeRequest
	byL1     map[common.Address]*etherman.CollectionPair
	byL2     map[string]*etherman.CollectionPair
}

func (f *fakeStorage) GetBridgeRequest(ctx context.Context, hash common.Hash, direction etherman.RequestDirection, dbTx pgx.Tx) (*etherman.BridgeRequest, error) {
	request, ok := f.requests[hash]
	if !ok || request.Direction != direction {
		return nil, gerror.ErrStorageNotFound
	}
	return request, nil
}

func (f *fakeStorage) GetBridgeRequestsByOwner(ctx context.Context, owner common.Address, limit, offset uint, dbTx pgx.Tx) ([]*etherman.BridgeRequest, error) {
	requests := f.byOwner[owner]
	if offset >= uint(len(requests)) {
		return nil, nil
	}
	requests = requests[offset:]
	if limit < uint(len(requests)) {
		requests = requests[:limit]
	}
	return requests, nil
}

func (f *fakeStorage) GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error) {
	pair, ok := f.byL1[collectionL1]
	if !ok {
		return nil, gerror.ErrStorageNotFound
	}
	return pair, nil
}

func (f *fakeStorage) GetCollectionPairByL2(ctx context.Context, collectionL2 *big.Int, dbTx pgx.Tx) (*etherman.CollectionPair, error) {
	pair, ok := f.byL2[collectionL2.String()]
	if !ok {
		return nil, gerror.ErrStorageNotFound
	}
	return pair, nil
}

func testRequest() *etherman.BridgeRequest {
	return &etherman.BridgeRequest{
		Hash:         common.HexToHash("0xbb7ca67ee263bd2bb68dc88b530300222a3700bceca4e537079047fff89a0402"),
		Direction:    etherman.DirectionDeposit,
		Header:       big.NewInt(0x0101),
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		CollectionL2: big.NewInt(777),
		OwnerL1:      common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"),
		Name:         "Everai",
		Symbol:       "DUO",
		URI:          "ipfs://everai",
		TokenIDs:     []*big.Int{big.NewInt(88)},
		NetworkID:    etherman.MainNetworkID,
		BlockNumber:  42,
		TxHash:       common.HexToHash("0xcc"),
		ReceivedAt:   time.Now().UTC(),
	}
}

func newTestServer(storage *fakeStorage) http.Handler {
	return NewServer(Config{HTTPPort: "8080", DefaultPageLimit: 2, MaxPageLimit: 3}, storage).Handler()
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	handler := newTestServer(&fakeStorage{})
	rec := doGet(t, handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRequest(t *testing.T) {
	request := testRequest()
	storage := &fakeStorage{requests: map[common.Hash]*etherman.BridgeRequest{request.Hash: request}}
	handler := newTestServer(storage)

	rec := doGet(t, handler, "/requests/"+request.Hash.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var got requestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, request.Hash.Hex(), got.Hash)
	assert.Equal(t, "deposit", got.Direction)
	require.NotNil(t, got.CollectionL2)
	assert.Equal(t, "777", *got.CollectionL2)
	assert.Nil(t, got.OwnerL2)
	assert.Equal(t, []string{"88"}, got.TokenIDs)
	assert.Equal(t, uint64(42), got.BlockNumber)
}

func TestGetRequestDirectionFilter(t *testing.T) {
	request := testRequest()
	storage := &fakeStorage{requests: map[common.Hash]*etherman.BridgeRequest{request.Hash: request}}
	handler := newTestServer(storage)

	rec := doGet(t, handler, "/requests/"+request.Hash.Hex()+"?direction=withdrawal")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doGet(t, handler, "/requests/"+request.Hash.Hex()+"?direction=sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRequestBadHash(t *testing.T) {
	handler := newTestServer(&fakeStorage{})
	rec := doGet(t, handler, "/requests/nothex")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequestsByOwner(t *testing.T) {
	request := testRequest()
	owner := request.OwnerL1
	storage := &fakeStorage{byOwner: map[common.Address][]*etherman.BridgeRequest{
		owner: {request, request, request},
	}}
	handler := newTestServer(storage)

	rec := doGet(t, handler, "/requests?owner="+owner.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Requests []requestResponse `json:"requests"`
		Limit    uint              `json:"limit"`
		Offset   uint              `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Requests, 2) // default page limit from config
	assert.Equal(t, uint(2), got.Limit)

	rec = doGet(t, handler, "/requests?owner="+owner.Hex()+"&limit=100&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Requests, 1)
	assert.Equal(t, uint(3), got.Limit) // capped at MaxPageLimit

	rec = doGet(t, handler, "/requests?owner=notanaddress")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCollectionByL1(t *testing.T) {
	l1 := common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1")
	pair := &etherman.CollectionPair{CollectionL1: l1, CollectionL2: big.NewInt(777), Name: "Everai", Symbol: "DUO"}
	storage := &fakeStorage{byL1: map[common.Address]*etherman.CollectionPair{l1: pair}}
	handler := newTestServer(storage)

	rec := doGet(t, handler, "/collections/"+l1.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	var got collectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, l1.Hex(), got.CollectionL1)
	require.NotNil(t, got.CollectionL2)
	assert.Equal(t, "777", *got.CollectionL2)
}

func TestGetCollectionByL2Scalar(t *testing.T) {
	pair := &etherman.CollectionPair{
		CollectionL1: common.HexToAddress("0x19661D036D4e590948b9c00eef3807b88fBfA8e1"),
		CollectionL2: big.NewInt(777),
	}
	storage := &fakeStorage{byL2: map[string]*etherman.CollectionPair{"777": pair}}
	handler := newTestServer(storage)

	rec := doGet(t, handler, "/collections/777")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, handler, "/collections/notanumber")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, handler, "/collections/888")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
