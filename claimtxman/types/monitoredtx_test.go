package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxBuildsFromMonitoredData(t *testing.T) {
	to := common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	mTx := MonitoredTx{
		To:       &to,
		Nonce:    3,
		Value:    big.NewInt(0),
		Data:     []byte{0xca, 0xfe},
		Gas:      100000,
		GasPrice: big.NewInt(1000000000),
	}

	tx := mTx.Tx()
	assert.Equal(t, to, *tx.To())
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, []byte{0xca, 0xfe}, tx.Data())
	assert.Equal(t, uint64(100000), tx.Gas())
}

func TestAddHistory(t *testing.T) {
	mTx := MonitoredTx{}
	tx := types.NewTransaction(0, common.HexToAddress("0x01"), big.NewInt(10), 100000, big.NewInt(1000000000), nil)

	require.NoError(t, mTx.AddHistory(tx))
	assert.ErrorIs(t, mTx.AddHistory(tx), ErrAlreadyExists)

	history := mTx.HistoryHashSlice()
	require.Len(t, history, 1)
	assert.Equal(t, tx.Hash(), common.BytesToHash(history[0]))
}
