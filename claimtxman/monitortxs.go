package claimtxman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	ctmtypes "github.com/nftlane/nft-bridge-service/claimtxman/types"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/log"
	"github.com/nftlane/nft-bridge-service/metrics"
)

// gasPriceBump is the multiplier applied over the suggested gas price
// right before sending, to keep resends ahead of the original tx.
var gasPriceBump = big.NewInt(2)

// MonitorTxs drives every pending monitored tx towards confirmation.
type MonitorTxs struct {
	storage    storageInterface
	ctx        context.Context
	l1Node     ethermanInterface
	cfg        Config
	nonceCache *NonceCache
}

func NewMonitorTxs(ctx context.Context,
	storage storageInterface,
	l1Node ethermanInterface,
	cfg Config,
	nonceCache *NonceCache) *MonitorTxs {
	return &MonitorTxs{
		storage:    storage,
		ctx:        ctx,
		l1Node:     l1Node,
		cfg:        cfg,
		nonceCache: nonceCache,
	}
}

// MonitorTxs processes all pending monitored txs
func (tm *MonitorTxs) MonitorTxs(ctx context.Context) error {
	dbTx, err := tm.storage.BeginDBTransaction(tm.ctx)
	if err != nil {
		return err
	}

	statusesFilter := []ctmtypes.MonitoredTxStatus{
		ctmtypes.MonitoredTxStatusCreated,
		ctmtypes.MonitoredTxStatusSent,
	}
	mTxs, err := tm.storage.GetMonitoredTxsByStatus(ctx, statusesFilter, dbTx)
	if err != nil {
		log.Errorf("failed to get pending monitored txs: %v", err)
		rollbackErr := tm.storage.Rollback(tm.ctx, dbTx)
		if rollbackErr != nil {
			log.Errorf("claimtxman error rolling back state. RollbackErr: %s, err: %v", rollbackErr.Error(), err)
			return rollbackErr
		}
		return fmt.Errorf("failed to get pending monitored txs: %w", err)
	}

	isResetNonce := false // reset the nonce cache at most once per cycle
	log.Debugf("found %v monitored tx to process", len(mTxs))
	for _, mTx := range mTxs {
		mTx := mTx
		mTx.UpdatedAt = time.Now()
		mTxLog := log.WithFields("monitoredTx", mTx.RequestHash.String())

		hasFailedReceipts, allHistoryTxMined, receiptSuccessful := tm.checkTxHistory(ctx, mTx, mTxLog)

		if receiptSuccessful {
			mTx.Status = ctmtypes.MonitoredTxStatusConfirmed
			metrics.RecordMonitoredTxResult(mTx.Status.String())
			if err := tm.storage.UpdateMonitoredTx(ctx, &mTx, dbTx); err != nil {
				mTxLog.Errorf("failed to update monitored tx when confirmed: %v", err)
			}
			continue
		}

		// A tx whose every retry got mined and none succeeded, past the
		// history limit, cannot be recovered automatically.
		if allHistoryTxMined && len(mTx.History) >= maxHistorySize {
			mTx.Status = ctmtypes.MonitoredTxStatusFailed
			metrics.RecordMonitoredTxResult(mTx.Status.String())
			mTxLog.Infof("marked as failed because reached the history size limit (%d)", maxHistorySize)
			if err := tm.storage.UpdateMonitoredTx(ctx, &mTx, dbTx); err != nil {
				mTxLog.Errorf("failed to update monitored tx when max history size limit reached: %v", err)
			}
			continue
		}

		if !allHistoryTxMined {
			// something is still in flight, let the chain decide
			continue
		}

		if hasFailedReceipts {
			mTxLog.Infof("monitored tx needs to be updated")
			if err := tm.reviewMonitoredTx(ctx, &mTx, true); err != nil {
				mTxLog.Errorf("failed to review monitored tx: %v", err)
				continue
			}
		}

		gasPrice, err := tm.l1Node.SuggestedGasPrice(ctx)
		if err != nil {
			mTxLog.Errorf("failed to get suggested gasPrice. Error: %v", err)
			continue
		}
		mTx.GasPrice = new(big.Int).Mul(gasPrice, gasPriceBump)

		tx := mTx.Tx()
		signedTx, err := tm.l1Node.SignTx(ctx, mTx.From, tx)
		if err != nil {
			mTxLog.Errorf("failed to sign tx created from monitored tx: %v", err)
			continue
		}

		err = mTx.AddHistory(signedTx)
		if errors.Is(err, ctmtypes.ErrAlreadyExists) {
			mTxLog.Infof("signed tx already existed in the history")
		} else if err != nil {
			mTxLog.Errorf("failed to add signed tx to monitored tx history: %v", err)
			continue
		}

		// send only if the network does not know the tx already
		_, _, err = tm.l1Node.GetTx(ctx, signedTx.Hash())
		if errors.Is(err, etherman.ErrNotFound) {
			if err := tm.l1Node.SendTx(ctx, signedTx); err != nil {
				mTxLog.Errorf("failed to send tx %s to network: %v", signedTx.Hash().String(), err)
				var reviewNonce bool
				if strings.Contains(err.Error(), "nonce") {
					mTxLog.Infof("nonce error detected, Nonce used: %d", signedTx.Nonce())
					if !isResetNonce {
						isResetNonce = true
						tm.nonceCache.Remove(mTx.From.Hex())
						mTxLog.Infof("nonce cache cleared for address %v", mTx.From.Hex())
					}
					reviewNonce = true
				}
				if err := tm.reviewMonitoredTx(ctx, &mTx, reviewNonce); err != nil {
					mTxLog.Errorf("failed to review monitored tx: %v", err)
				}
			} else {
				mTx.Status = ctmtypes.MonitoredTxStatusSent
			}
		} else if err != nil {
			mTxLog.Error("unexpected error getting tx from the network. Error: ", err)
		} else {
			mTxLog.Infof("signed tx %v already found in the network for the monitored tx", signedTx.Hash().String())
			mTx.Status = ctmtypes.MonitoredTxStatusSent
		}

		if err := tm.storage.UpdateMonitoredTx(ctx, &mTx, dbTx); err != nil {
			mTxLog.Errorf("failed to update monitored tx: %v", err)
			continue
		}
		mTxLog.Infof("signed tx %s added to the monitored tx history", signedTx.Hash().String())
	}

	err = tm.storage.Commit(tm.ctx, dbTx)
	if err != nil {
		log.Errorf("UpdateMonitoredTx committing dbTx, err: %v", err)
		rollbackErr := tm.storage.Rollback(tm.ctx, dbTx)
		if rollbackErr != nil {
			log.Errorf("claimtxman error rolling back state. RollbackErr: %s, err: %v", rollbackErr.Error(), err)
			return rollbackErr
		}
		return err
	}
	return nil
}

// checkTxHistory inspects every tx hash ever sent for this monitored tx.
// It returns hasFailedReceipts, allHistoryTxMined, receiptSuccessful.
func (tm *MonitorTxs) checkTxHistory(ctx context.Context, mTx ctmtypes.MonitoredTx, mTxLog *log.Logger) (bool, bool, bool) {
	hasFailedReceipts := false
	allHistoryTxMined := true
	receiptSuccessful := false
	for txHash := range mTx.History {
		receipt, err := tm.l1Node.GetTxReceipt(ctx, txHash)
		if err != nil {
			if !errors.Is(err, etherman.ErrNotFound) {
				mTxLog.Errorf("failed to check if tx %s was mined: %v", txHash.String(), err)
				continue
			}
			// Not mined. Check the pool; a tx missing from both the
			// chain and the pool was dropped.
			_, _, err = tm.l1Node.GetTx(ctx, txHash)
			for i := 0; i < tm.cfg.RetryNumber && err != nil && !errors.Is(err, etherman.ErrNotFound); i++ {
				time.Sleep(tm.cfg.RetryInterval.Duration)
				_, _, err = tm.l1Node.GetTx(ctx, txHash)
			}
			if errors.Is(err, etherman.ErrNotFound) {
				mTxLog.Infof("tx %s dropped from the pool", txHash.String())
				hasFailedReceipts = true
				continue
			} else if err != nil {
				mTxLog.Errorf("failed to get tx %s: %v", txHash.String(), err)
				continue
			}
			mTxLog.Debugf("tx %s not mined yet", txHash.String())
			allHistoryTxMined = false
			continue
		}

		if receipt.Status == types.ReceiptStatusSuccessful {
			mTxLog.Infof("tx %s was mined successfully", txHash.String())
			receiptSuccessful = true
			break
		}
		hasFailedReceipts = true
	}
	return hasFailedReceipts, allHistoryTxMined, receiptSuccessful
}

// reviewMonitoredTx refreshes the gas and optionally the nonce of a
// monitored tx against the current state of the chain.
func (tm *MonitorTxs) reviewMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, reviewNonce bool) error {
	mTxLog := log.WithFields("monitoredTx", mTx.RequestHash.String())
	mTxLog.Debug("reviewing")
	gas, err := tm.l1Node.EstimateGas(ctx, mTx.From, mTx.To, mTx.Value, mTx.Data)
	for i := 1; err != nil && !strings.Contains(err.Error(), revertedMsg) && i < tm.cfg.RetryNumber; i++ {
		mTxLog.Warnf("error during gas estimation. Retrying... Error: %v", err)
		time.Sleep(tm.cfg.RetryInterval.Duration)
		gas, err = tm.l1Node.EstimateGas(ctx, mTx.From, mTx.To, mTx.Value, mTx.Data)
	}
	if err != nil {
		err := fmt.Errorf("failed to estimate gas: %w", err)
		mTxLog.Errorf("error: %s", err.Error())
		return err
	}

	if gas > mTx.Gas {
		mTxLog.Infof("monitored tx gas updated from %v to %v", mTx.Gas, gas)
		mTx.Gas = gas
	}

	if reviewNonce {
		nonce, err := tm.nonceCache.GetNextNonce(mTx.From)
		if err != nil {
			err := fmt.Errorf("failed to get nonce: %w", err)
			mTxLog.Error(err.Error())
			return err
		}
		if nonce > mTx.Nonce {
			mTxLog.Infof("monitored tx nonce updated from %v to %v", mTx.Nonce, nonce)
			mTx.Nonce = nonce
		}
	}

	return nil
}
