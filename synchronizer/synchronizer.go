package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/nftlane/nft-bridge-service/collection"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
	"github.com/nftlane/nft-bridge-service/log"
	"github.com/nftlane/nft-bridge-service/metrics"
	"github.com/nftlane/nft-bridge-service/protocol"
)

// Synchronizer keeps the storage in sync with one chain.
type Synchronizer interface {
	Sync() error
	Stop()
}

// ClientSynchronizer scans one chain's bridge contract and persists
// what it finds: blocks, decoded requests, collection bindings. The L1
// instance also resolves and deploys rollup collections for fresh
// deposits; the L2 instance feeds the withdraw-auto lane.
type ClientSynchronizer struct {
	etherMan       ethermanInterface
	storage        storageInterface
	deployer       collectionDeployer
	extractor      metadataExtractor
	controller     common.Address
	ctx            context.Context
	cancelCtx      context.CancelFunc
	cfg            Config
	networkID      uint
	chWithdrawAuto chan<- etherman.RequestEvent
	chSynced       chan uint
	synced         bool
	waitDuration   time.Duration
}

// NewSynchronizer creates and initializes an instance of Synchronizer.
// chWithdrawAuto may be nil when this instance does not feed the
// withdraw-auto lane (the L1 side).
func NewSynchronizer(
	storage storageInterface,
	ethMan ethermanInterface,
	deployer collectionDeployer,
	extractor metadataExtractor,
	controller common.Address,
	chWithdrawAuto chan<- etherman.RequestEvent,
	chSynced chan uint,
	cfg Config) (Synchronizer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &ClientSynchronizer{
		storage:        storage,
		etherMan:       ethMan,
		deployer:       deployer,
		extractor:      extractor,
		controller:     controller,
		ctx:            ctx,
		cancelCtx:      cancel,
		cfg:            cfg,
		networkID:      ethMan.GetNetworkID(),
		chWithdrawAuto: chWithdrawAuto,
		chSynced:       chSynced,
	}, nil
}

// Sync reads the last synced block and keeps following the chain from
// that point. It blocks until Stop is called.
func (s *ClientSynchronizer) Sync() error {
	log.Infof("networkID: %d, synchronization started", s.networkID)
	lastBlockSynced, err := s.storage.GetLastBlock(s.ctx, s.networkID, nil)
	if err != nil {
		if errors.Is(err, gerror.ErrStorageNotFound) {
			log.Warnf("networkID: %d, no synced blocks stored. Using genesis block %d", s.networkID, s.cfg.GenBlockNumber)
			lastBlockSynced = &etherman.Block{
				BlockNumber: s.cfg.GenBlockNumber,
				NetworkID:   s.networkID,
			}
		} else {
			log.Fatalf("networkID: %d, unexpected error getting the latest block: %v", s.networkID, err)
		}
	}
	for {
		select {
		case <-s.ctx.Done():
			log.Debugf("networkID: %d, synchronizer ctx done", s.networkID)
			return nil
		case <-time.After(s.waitDuration):
			if lastBlockSynced, err = s.syncBlocks(lastBlockSynced); err != nil {
				log.Warnf("networkID: %d, error syncing blocks: %v", s.networkID, err)
				if s.ctx.Err() != nil {
					continue
				}
				lastBlockSynced, err = s.storage.GetLastBlock(s.ctx, s.networkID, nil)
				if err != nil {
					log.Fatalf("networkID: %d, error getting lastBlockSynced to resume the synchronization: %v", s.networkID, err)
				}
			}
		}
	}
}

// Stop function stops the synchronizer
func (s *ClientSynchronizer) Stop() {
	s.cancelCtx()
}

// syncBlocks syncs from the given block to the latest known one,
// checking reorgs first.
func (s *ClientSynchronizer) syncBlocks(lastBlockSynced *etherman.Block) (*etherman.Block, error) {
	block, err := s.checkReorg(lastBlockSynced)
	if err != nil {
		return lastBlockSynced, fmt.Errorf("networkID: %d, error checking reorgs: %w", s.networkID, err)
	}
	if block != nil {
		log.Infof("networkID: %d, reorg detected. Resetting storage to block %d", s.networkID, block.BlockNumber)
		if err = s.resetState(block.BlockNumber); err != nil {
			return lastBlockSynced, fmt.Errorf("networkID: %d, error resetting the state to a previous block: %w", s.networkID, err)
		}
		return block, nil
	}

	header, err := s.etherMan.HeaderByNumber(s.ctx, nil)
	if err != nil {
		return lastBlockSynced, err
	}
	lastKnownBlock := header.Number

	var fromBlock uint64
	if lastBlockSynced.BlockNumber > 0 {
		fromBlock = lastBlockSynced.BlockNumber + 1
	}

	for {
		toBlock := fromBlock + s.cfg.SyncChunkSize

		log.Debugf("networkID: %d, getting bridge info from block %d to block %d", s.networkID, fromBlock, toBlock)
		blocks, order, err := s.etherMan.GetBridgeInfoByBlockRange(s.ctx, fromBlock, &toBlock)
		if err != nil {
			return lastBlockSynced, err
		}
		if err = s.processBlockRange(blocks, order); err != nil {
			return lastBlockSynced, err
		}
		if len(blocks) > 0 {
			lastBlockSynced = &blocks[len(blocks)-1]
		}
		metrics.SetLastSyncedBlockNum(s.networkID, lastBlockSynced.BlockNumber)
		fromBlock = toBlock + 1

		if lastKnownBlock.Cmp(new(big.Int).SetUint64(toBlock)) < 1 {
			if !s.synced {
				log.Infof("networkID %d synced", s.networkID)
				s.waitDuration = s.cfg.SyncInterval.Duration
				s.synced = true
				s.chSynced <- s.networkID
			}
			break
		}
		if len(blocks) == 0 {
			// Store the last block of the empty range so the reorg
			// detector always has a recent anchor.
			fb, err := s.etherMan.EthBlockByNumber(s.ctx, toBlock)
			if err != nil {
				return lastBlockSynced, err
			}
			b := etherman.Block{
				BlockNumber: fb.NumberU64(),
				BlockHash:   fb.Hash(),
				ParentHash:  fb.ParentHash(),
				ReceivedAt:  time.Unix(int64(fb.Time()), 0),
			}
			if err = s.processBlockRange([]etherman.Block{b}, order); err != nil {
				return lastBlockSynced, err
			}
			lastBlockSynced = &b
			log.Debugf("networkID: %d, storing empty block %d", s.networkID, b.BlockNumber)
		}
	}
	return lastBlockSynced, nil
}

// processBlockRange stores each block and its events in one atomic db
// transaction per block: either the whole block lands or none of it.
func (s *ClientSynchronizer) processBlockRange(blocks []etherman.Block, order map[common.Hash][]etherman.Order) error {
	for i := range blocks {
		dbTx, err := s.storage.BeginDBTransaction(s.ctx)
		if err != nil {
			return err
		}
		blocks[i].NetworkID = s.networkID
		blockID, err := s.storage.AddBlock(s.ctx, &blocks[i], dbTx)
		if err != nil {
			return s.rollback(dbTx, fmt.Errorf("error storing block %d: %w", blocks[i].BlockNumber, err))
		}
		var withdrawAuto []etherman.RequestEvent
		for _, element := range order[blocks[i].BlockHash] {
			switch element.Name {
			case etherman.RequestsOrder:
				event := blocks[i].Requests[element.Pos]
				queued, err := s.processRequest(event, blockID, dbTx)
				if err != nil {
					return s.rollback(dbTx, err)
				}
				if queued {
					withdrawAuto = append(withdrawAuto, event)
				}
			case etherman.WithdrawalsOrder:
				if err := s.processWithdrawalCompleted(blocks[i].Withdrawals[element.Pos], blockID, dbTx); err != nil {
					return s.rollback(dbTx, err)
				}
			case etherman.DeploymentsOrder:
				if err := s.processDeployment(blocks[i].Deployments[element.Pos], blockID, dbTx); err != nil {
					return s.rollback(dbTx, err)
				}
			}
		}
		if err := s.storage.Commit(s.ctx, dbTx); err != nil {
			return err
		}
		// Hand requests to the withdraw-auto lane only once their block
		// is durably stored.
		for _, event := range withdrawAuto {
			s.chWithdrawAuto <- event
		}
	}
	return nil
}

// processRequest decodes one request event and stores it. Malformed or
// invalid requests are logged and skipped with no state change; they
// never block the rest of the chain. It reports whether the request
// must be queued on the withdraw-auto lane after commit.
func (s *ClientSynchronizer) processRequest(event etherman.RequestEvent, blockID uint64, dbTx pgx.Tx) (bool, error) {
	request, _, err := protocol.Deserialize(event.Payload, 0)
	if err != nil {
		log.Errorf("networkID: %d, discarding undecodable request %s in tx %s: %v", s.networkID, event.Hash, event.TxHash, err)
		return false, nil
	}
	if request.Hash != event.Hash {
		log.Errorf("networkID: %d, discarding request in tx %s: %v (declared %s, encoded %s)",
			s.networkID, event.TxHash, gerror.ErrHashMismatch, event.Hash, request.Hash)
		return false, nil
	}
	header, err := protocol.DecodeHeader(request.Header)
	if err != nil {
		log.Errorf("networkID: %d, discarding request %s with bad header: %v", s.networkID, event.Hash, err)
		return false, nil
	}

	stored := &etherman.BridgeRequest{
		Hash:         request.Hash,
		Header:       request.Header,
		WithdrawAuto: header.WithdrawAuto,
		CollectionL1: request.CollectionL1,
		CollectionL2: request.CollectionL2,
		OwnerL1:      request.OwnerL1,
		OwnerL2:      request.OwnerL2,
		Name:         request.Name,
		Symbol:       request.Symbol,
		URI:          request.URI,
		TokenIDs:     request.TokenIDs,
		NetworkID:    s.networkID,
		BlockID:      blockID,
		TxHash:       event.TxHash,
	}

	if s.networkID == etherman.MainNetworkID {
		stored.Direction = etherman.DirectionDeposit
		resolved, err := s.resolveCollection(&request, event.Hash, blockID, dbTx)
		if err != nil {
			if errors.Is(err, collection.ErrValidation) {
				log.Errorf("networkID: %d, discarding invalid request %s: %v", s.networkID, event.Hash, err)
				return false, nil
			}
			return false, err
		}
		stored.CollectionL2 = resolved
	} else {
		stored.Direction = etherman.DirectionWithdrawal
	}

	if _, err := s.storage.AddBridgeRequest(s.ctx, stored, dbTx); err != nil {
		return false, fmt.Errorf("error storing request %s: %w", event.Hash, err)
	}
	metrics.RecordSynchronizerEvent(s.networkID, string(stored.Direction))

	queue := s.networkID == etherman.RollupNetworkID &&
		s.chWithdrawAuto != nil &&
		protocol.CanUseWithdrawAuto(request.Header)
	return queue, nil
}

// resolveCollection decides which rollup collection a deposit maps
// onto, deploying a fresh one when no binding exists yet. Deployment
// failure is fatal and rolls the whole block back.
func (s *ClientSynchronizer) resolveCollection(request *protocol.Request, hash common.Hash, blockID uint64, dbTx pgx.Tx) (*big.Int, error) {
	var (
		l1Bound common.Address
		l2Bound *big.Int
	)
	pair, err := s.storage.GetCollectionPairByL1(s.ctx, request.CollectionL1, dbTx)
	if err == nil {
		l1Bound = pair.CollectionL1
		l2Bound = pair.CollectionL2
	} else if !errors.Is(err, gerror.ErrStorageNotFound) {
		return nil, err
	}

	resolved, err := collection.Resolve(request.CollectionL1, request.CollectionL2, l1Bound, l2Bound)
	if err != nil || resolved != nil {
		return resolved, err
	}

	// No rollup counterpart yet: deploy one. The request's descriptive
	// strings win over what the source contract reports.
	name, symbol := request.Name, request.Symbol
	if name == "" || symbol == "" {
		meta, err := s.extractor.ExtractMetadata(s.ctx, request.CollectionL1, nil)
		if err == nil {
			if name == "" {
				name = meta.Name
			}
			if symbol == "" {
				symbol = meta.Symbol
			}
		}
	}
	salt := new(big.Int).SetBytes(request.CollectionL1.Bytes())
	deployed, err := s.deployer.DeployBridgeableCollection(s.ctx, s.cfg.CollectionTemplate, salt, name, symbol, s.controller)
	if err != nil {
		return nil, fmt.Errorf("error deploying collection for request %s: %w", hash, err)
	}
	resolved = new(big.Int).SetBytes(deployed.Bytes())
	metrics.RecordCollectionDeployed(s.networkID)

	if err := s.storage.AddCollectionPair(s.ctx, &etherman.CollectionPair{
		CollectionL1: request.CollectionL1,
		CollectionL2: resolved,
		Name:         name,
		Symbol:       symbol,
		BlockID:      blockID,
	}, dbTx); err != nil {
		return nil, fmt.Errorf("error storing collection pair for request %s: %w", hash, err)
	}
	return resolved, nil
}

// processWithdrawalCompleted stores the completion record of a request
// that came down from the rollup and was paid out on the origin chain.
func (s *ClientSynchronizer) processWithdrawalCompleted(event etherman.WithdrawEvent, blockID uint64, dbTx pgx.Tx) error {
	request, _, err := protocol.Deserialize(event.Payload, 0)
	if err != nil {
		log.Errorf("networkID: %d, discarding undecodable withdrawal %s in tx %s: %v", s.networkID, event.Hash, event.TxHash, err)
		return nil
	}
	stored := &etherman.BridgeRequest{
		Hash:         request.Hash,
		Direction:    etherman.DirectionWithdrawal,
		Header:       request.Header,
		CollectionL1: request.CollectionL1,
		CollectionL2: request.CollectionL2,
		OwnerL1:      request.OwnerL1,
		OwnerL2:      request.OwnerL2,
		Name:         request.Name,
		Symbol:       request.Symbol,
		URI:          request.URI,
		TokenIDs:     request.TokenIDs,
		NetworkID:    s.networkID,
		BlockID:      blockID,
		TxHash:       event.TxHash,
	}
	if _, err := s.storage.AddBridgeRequest(s.ctx, stored, dbTx); err != nil {
		return fmt.Errorf("error storing withdrawal %s: %w", event.Hash, err)
	}
	return nil
}

// processDeployment stores a binding announced by the rollup bridge.
func (s *ClientSynchronizer) processDeployment(deployment etherman.CollectionDeployment, blockID uint64, dbTx pgx.Tx) error {
	pair := &etherman.CollectionPair{
		CollectionL1: deployment.CollectionL1,
		CollectionL2: deployment.CollectionL2,
		Name:         deployment.Name,
		Symbol:       deployment.Symbol,
		BlockID:      blockID,
	}
	if err := s.storage.AddCollectionPair(s.ctx, pair, dbTx); err != nil {
		return fmt.Errorf("error storing deployed collection %s: %w", deployment.CollectionL1, err)
	}
	return nil
}

func (s *ClientSynchronizer) rollback(dbTx pgx.Tx, err error) error {
	if rollbackErr := s.storage.Rollback(s.ctx, dbTx); rollbackErr != nil {
		log.Errorf("networkID: %d, error rolling back: %v, after: %v", s.networkID, rollbackErr, err)
		return rollbackErr
	}
	return err
}

// checkReorg walks back from the latest synced block until the stored
// hashes match the chain again. It returns the first block both sides
// agree on, or nil when there was no reorg.
func (s *ClientSynchronizer) checkReorg(latestBlock *etherman.Block) (*etherman.Block, error) {
	if latestBlock.BlockHash == (common.Hash{}) {
		// Fresh database, nothing stored to compare yet.
		return nil, nil
	}
	var depth uint64
	block := latestBlock
	for {
		chainBlock, err := s.etherMan.EthBlockByNumber(s.ctx, block.BlockNumber)
		if err != nil {
			if errors.Is(err, etherman.ErrNotFound) {
				// The block vanished from the chain, keep walking back.
				chainBlock = nil
			} else {
				return nil, err
			}
		}
		if chainBlock != nil && chainBlock.Hash() == block.BlockHash {
			if depth == 0 {
				return nil, nil
			}
			return block, nil
		}
		log.Debugf("networkID: %d, block %d reorged (stored hash %s)", s.networkID, block.BlockNumber, block.BlockHash)
		depth++
		block, err = s.storage.GetPreviousBlock(s.ctx, s.networkID, depth, nil)
		if errors.Is(err, gerror.ErrStorageNotFound) {
			log.Warnf("networkID: %d, reorg deeper than stored history, restarting from genesis block %d", s.networkID, s.cfg.GenBlockNumber)
			return &etherman.Block{BlockNumber: s.cfg.GenBlockNumber, NetworkID: s.networkID}, nil
		} else if err != nil {
			return nil, err
		}
	}
}

// resetState discards every block above blockNumber and everything
// synced from them.
func (s *ClientSynchronizer) resetState(blockNumber uint64) error {
	dbTx, err := s.storage.BeginDBTransaction(s.ctx)
	if err != nil {
		return err
	}
	if err := s.storage.Reset(s.ctx, blockNumber, s.networkID, dbTx); err != nil {
		return s.rollback(dbTx, err)
	}
	return s.storage.Commit(s.ctx, dbTx)
}
