package claimtxman

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	ctmtypes "github.com/nftlane/nft-bridge-service/claimtxman/types"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/log"
)

const (
	maxHistorySize = 10

	// Sending data that reverts on estimation will never succeed; there
	// is no point retrying those.
	revertedMsg = "execution reverted"
)

// ClaimTxManager completes withdraw-auto requests on the origin chain.
// The rollup synchronizer hands it every flagged withdraw request it
// commits; the manager turns each into a withdrawTokens tx and owns it
// until the chain confirms it.
type ClaimTxManager struct {
	ctx    context.Context
	cancel context.CancelFunc

	l1Node         ethermanInterface
	rollupID       uint
	cfg            Config
	chWithdrawAuto <-chan etherman.RequestEvent
	chSynced       chan uint
	storage        storageInterface
	synced         bool
	nonceCache     *NonceCache
	monitorTxs     *MonitorTxs
}

// NewClaimTxManager creates a new withdraw-auto transaction manager.
func NewClaimTxManager(cfg Config, chWithdrawAuto <-chan etherman.RequestEvent, chSynced chan uint, l1Node ethermanInterface, rollupID uint, storage storageInterface) (*ClaimTxManager, error) {
	ctx, cancel := context.WithCancel(context.Background())
	nonceCache, err := NewNonceCache(ctx, l1Node)
	if err != nil {
		cancel()
		return nil, err
	}
	return &ClaimTxManager{
		ctx:            ctx,
		cancel:         cancel,
		l1Node:         l1Node,
		rollupID:       rollupID,
		cfg:            cfg,
		chWithdrawAuto: chWithdrawAuto,
		chSynced:       chSynced,
		storage:        storage,
		nonceCache:     nonceCache,
		monitorTxs:     NewMonitorTxs(ctx, storage, l1Node, cfg, nonceCache),
	}, nil
}

// Start will start the tx management, reading withdraw requests from the
// rollup synchronizer, sending their completion txs to the origin chain
// and monitoring them until they get mined.
func (tm *ClaimTxManager) Start() {
	ticker := time.NewTicker(tm.cfg.FrequencyToMonitorTxs.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-tm.ctx.Done():
			return
		case netID := <-tm.chSynced:
			if netID == tm.rollupID && !tm.synced {
				log.Info("NetworkID synced: ", netID)
				tm.synced = true
			}
		case event := <-tm.chWithdrawAuto:
			log.Debugf("withdraw-auto request %s received", event.Hash)
			if err := tm.addWithdrawTx(event); err != nil {
				log.Errorf("failed to add withdraw tx for request %s: %v", event.Hash, err)
			}
		case <-ticker.C:
			if err := tm.monitorTxs.MonitorTxs(tm.ctx); err != nil {
				log.Errorf("failed to monitor txs: %v", err)
			}
		}
	}
}

// Stop stops the tx management
func (tm *ClaimTxManager) Stop() {
	tm.cancel()
}

func (tm *ClaimTxManager) addWithdrawTx(event etherman.RequestEvent) error {
	dbTx, err := tm.storage.BeginDBTransaction(tm.ctx)
	if err != nil {
		return err
	}
	err = tm.createMonitoredTx(event, dbTx)
	if err != nil {
		log.Errorf("error creating monitored tx for request %s. Error: %v", event.Hash, err)
		rollbackErr := tm.storage.Rollback(tm.ctx, dbTx)
		if rollbackErr != nil {
			log.Errorf("claimtxman error rolling back state. RollbackErr: %v, err: %s", rollbackErr, err.Error())
			return rollbackErr
		}
		return err
	}
	err = tm.storage.Commit(tm.ctx, dbTx)
	if err != nil {
		log.Errorf("error committing monitored tx for request %s. Error: %v", event.Hash, err)
		rollbackErr := tm.storage.Rollback(tm.ctx, dbTx)
		if rollbackErr != nil {
			log.Errorf("claimtxman error rolling back state. RollbackErr: %v, err: %s", rollbackErr, err.Error())
			return rollbackErr
		}
		return err
	}
	return nil
}

func (tm *ClaimTxManager) createMonitoredTx(event etherman.RequestEvent, dbTx pgx.Tx) error {
	// The event carries the serialized request verbatim; the contract
	// re-derives the escrowed token set from it.
	data, err := etherman.WithdrawTokensData(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to build withdraw calldata: %w", err)
	}
	from, err := tm.l1Node.SignerAddress()
	if err != nil {
		return err
	}
	to := tm.l1Node.BridgeAddr()

	gas, err := tm.l1Node.EstimateGas(tm.ctx, from, &to, nil, data)
	for i := 1; err != nil && !strings.Contains(err.Error(), revertedMsg) && i < tm.cfg.RetryNumber; i++ {
		log.Warnf("error while doing gas estimation. Retrying... Error: %v", err)
		time.Sleep(tm.cfg.RetryInterval.Duration)
		gas, err = tm.l1Node.EstimateGas(tm.ctx, from, &to, nil, data)
	}
	if err != nil {
		log.Errorf("failed to estimate gas for request %s. Ignoring tx... Error: %v", event.Hash, err)
		return nil
	}

	nonce, err := tm.nonceCache.GetNextNonce(from)
	if err != nil {
		return fmt.Errorf("failed to get next nonce: %w", err)
	}

	now := time.Now()
	mTx := &ctmtypes.MonitoredTx{
		RequestHash: event.Hash,
		From:        from,
		To:          &to,
		Nonce:       nonce,
		Data:        data,
		Gas:         gas,
		Status:      ctmtypes.MonitoredTxStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err = tm.storage.AddMonitoredTx(tm.ctx, mTx, dbTx); err != nil {
		return fmt.Errorf("failed to add tx to get monitored: %w", err)
	}
	return nil
}
