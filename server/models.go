package server

import (
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
)

// requestResponse is the JSON shape of one bridge request. Rollup-side
// scalars are rendered as decimal strings; absent ones are null.
type requestResponse struct {
	Hash         string    `json:"hash"`
	Direction    string    `json:"direction"`
	Header       string    `json:"header"`
	WithdrawAuto bool      `json:"withdraw_auto"`
	CollectionL1 string    `json:"collection_l1"`
	CollectionL2 *string   `json:"collection_l2"`
	OwnerL1      string    `json:"owner_l1"`
	OwnerL2      *string   `json:"owner_l2"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	URI          string    `json:"uri"`
	TokenIDs     []string  `json:"token_ids"`
	NetworkID    uint      `json:"network_id"`
	BlockNumber  uint64    `json:"block_number"`
	TxHash       string    `json:"tx_hash"`
	ReceivedAt   time.Time `json:"received_at"`
}

type collectionResponse struct {
	CollectionL1 string  `json:"collection_l1"`
	CollectionL2 *string `json:"collection_l2"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
}

func toRequestResponse(request *etherman.BridgeRequest) requestResponse {
	tokenIDs := make([]string, 0, len(request.TokenIDs))
	for _, id := range request.TokenIDs {
		tokenIDs = append(tokenIDs, id.String())
	}
	return requestResponse{
		Hash:         request.Hash.Hex(),
		Direction:    string(request.Direction),
		Header:       request.Header.String(),
		WithdrawAuto: request.WithdrawAuto,
		CollectionL1: request.CollectionL1.Hex(),
		CollectionL2: bigIntString(request.CollectionL2),
		OwnerL1:      request.OwnerL1.Hex(),
		OwnerL2:      bigIntString(request.OwnerL2),
		Name:         request.Name,
		Symbol:       request.Symbol,
		URI:          request.URI,
		TokenIDs:     tokenIDs,
		NetworkID:    request.NetworkID,
		BlockNumber:  request.BlockNumber,
		TxHash:       request.TxHash.Hex(),
		ReceivedAt:   request.ReceivedAt,
	}
}

func toCollectionResponse(pair *etherman.CollectionPair) collectionResponse {
	return collectionResponse{
		CollectionL1: pair.CollectionL1.Hex(),
		CollectionL2: bigIntString(pair.CollectionL2),
		Name:         pair.Name,
		Symbol:       pair.Symbol,
	}
}

func bigIntString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseUint(v string) (uint, bool) {
	parsed, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}

func isNotFound(err error) bool {
	return errors.Is(err, gerror.ErrStorageNotFound)
}
