package types

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// MonitoredTxStatusCreated means the tx was just added to the storage
	// and was never sent to the network yet.
	MonitoredTxStatusCreated = MonitoredTxStatus("created")

	// MonitoredTxStatusSent means the tx was sent to the network and is
	// waiting to be mined.
	MonitoredTxStatusSent = MonitoredTxStatus("sent")

	// MonitoredTxStatusConfirmed means the tx was mined and the receipt
	// status is successful.
	MonitoredTxStatusConfirmed = MonitoredTxStatus("confirmed")

	// MonitoredTxStatusFailed means the tx was mined and reverted, or can
	// not be recovered automatically.
	MonitoredTxStatusFailed = MonitoredTxStatus("failed")
)

// ErrAlreadyExists when the object already exists
var ErrAlreadyExists = errors.New("already exists")

// MonitoredTxStatus represents the status of a monitored tx
type MonitoredTxStatus string

// String returns a string representation of the status
func (s MonitoredTxStatus) String() string {
	return string(s)
}

// MonitoredTx is one automatic withdraw completion the service owns
// end to end: the information to build the tx plus everything needed
// to track it until it is confirmed on the origin chain.
type MonitoredTx struct {
	// ID is the tx identifier controlled by the storage
	ID uint64

	// RequestHash identifies the withdraw request this tx pays out
	RequestHash common.Hash

	// From is the sender of the tx, it selects the signing key
	From common.Address

	// To is the bridge contract receiving the withdraw call
	To *common.Address

	// Nonce used to create the tx
	Nonce uint64

	// Value is the tx value
	Value *big.Int

	// Data is the withdraw calldata
	Data []byte

	// Gas is the tx gas limit
	Gas uint64

	// GasPrice is the tx gas price
	GasPrice *big.Int

	// Status of this monitoring
	Status MonitoredTxStatus

	// BlockID is the storage block the tx was seen mined in, used to
	// detect reorged monitored txs
	BlockID uint64

	// History holds the hash of every tx ever sent from this data;
	// retries with a higher gas price produce new entries
	History map[common.Hash]bool

	// CreatedAt date time it was created
	CreatedAt time.Time

	// UpdatedAt last date time it was updated
	UpdatedAt time.Time
}

// Tx uses the current information to build a tx
func (mTx *MonitoredTx) Tx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		To:       mTx.To,
		Nonce:    mTx.Nonce,
		Value:    mTx.Value,
		Data:     mTx.Data,
		Gas:      mTx.Gas,
		GasPrice: mTx.GasPrice,
	})
}

// AddHistory adds a transaction to the monitoring history
func (mTx *MonitoredTx) AddHistory(tx *types.Transaction) error {
	if _, found := mTx.History[tx.Hash()]; found {
		return ErrAlreadyExists
	}
	if mTx.History == nil {
		mTx.History = make(map[common.Hash]bool)
	}
	mTx.History[tx.Hash()] = true
	return nil
}

// HistoryHashSlice returns the current history field as a byte slice set
func (mTx *MonitoredTx) HistoryHashSlice() [][]byte {
	history := make([][]byte, 0, len(mTx.History))
	for h := range mTx.History {
		h := h
		history = append(history, h[:])
	}
	return history
}
