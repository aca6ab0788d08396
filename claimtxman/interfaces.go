package claimtxman

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	ctmtypes "github.com/nftlane/nft-bridge-service/claimtxman/types"
)

type ethermanInterface interface {
	EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error)
	SuggestedGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	SignTx(ctx context.Context, sender common.Address, tx *types.Transaction) (*types.Transaction, error)
	SendTx(ctx context.Context, tx *types.Transaction) error
	GetTx(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	GetTxReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SignerAddress() (common.Address, error)
	BridgeAddr() common.Address
}

type storageInterface interface {
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error
	AddMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) (uint64, error)
	UpdateMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) error
	GetMonitoredTxsByStatus(ctx context.Context, statuses []ctmtypes.MonitoredTxStatus, dbTx pgx.Tx) ([]ctmtypes.MonitoredTx, error)
}
