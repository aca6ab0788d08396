package pgstorage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"
	ctmtypes "github.com/nftlane/nft-bridge-service/claimtxman/types"
	"github.com/nftlane/nft-bridge-service/etherman"
	"github.com/nftlane/nft-bridge-service/gerror"
	"github.com/nftlane/nft-bridge-service/log"
)

// PostgresStorage implements the Storage interface.
type PostgresStorage struct {
	*pgxpool.Pool
}

type execQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// NewPostgresStorage creates a new Storage DB
func NewPostgresStorage(cfg Config) (*PostgresStorage, error) {
	config, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=%d", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.MaxConns))
	if err != nil {
		log.Errorf("unable to parse DB config: %v", err)
		return nil, err
	}
	db, err := pgxpool.ConnectConfig(context.Background(), config)
	if err != nil {
		log.Errorf("unable to connect to database: %v", err)
		return nil, err
	}
	return &PostgresStorage{db}, nil
}

// getExecQuerier determines which execQuerier to use, dbTx or the main pgxpool
func (p *PostgresStorage) getExecQuerier(dbTx pgx.Tx) execQuerier {
	if dbTx != nil {
		return dbTx
	}
	return p
}

// BeginDBTransaction starts a transaction block.
func (p *PostgresStorage) BeginDBTransaction(ctx context.Context) (pgx.Tx, error) {
	return p.Begin(ctx)
}

// Commit commits a db transaction.
func (p *PostgresStorage) Commit(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Commit(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// Rollback rollbacks a db transaction.
func (p *PostgresStorage) Rollback(ctx context.Context, dbTx pgx.Tx) error {
	if dbTx != nil {
		return dbTx.Rollback(ctx)
	}
	return gerror.ErrNilDBTransaction
}

// GetLastBlock gets the last synced block of a network.
func (p *PostgresStorage) GetLastBlock(ctx context.Context, networkID uint, dbTx pgx.Tx) (*etherman.Block, error) {
	var (
		block etherman.Block
		id    uint64
	)
	const getLastBlockSQL = "SELECT id, block_num, block_hash, parent_hash, network_id, received_at FROM sync.block WHERE network_id = $1 ORDER BY block_num DESC LIMIT 1"

	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, getLastBlockSQL, networkID).Scan(&id, &block.BlockNumber, &block.BlockHash, &block.ParentHash, &block.NetworkID, &block.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetPreviousBlock gets the offset previous block respect to the latest
// synced one. Used to walk back during reorg detection.
func (p *PostgresStorage) GetPreviousBlock(ctx context.Context, networkID uint, offset uint64, dbTx pgx.Tx) (*etherman.Block, error) {
	var block etherman.Block
	const getPreviousBlockSQL = "SELECT block_num, block_hash, parent_hash, network_id, received_at FROM sync.block WHERE network_id = $1 ORDER BY block_num DESC LIMIT 1 OFFSET $2"

	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, getPreviousBlockSQL, networkID, offset).Scan(&block.BlockNumber, &block.BlockHash, &block.ParentHash, &block.NetworkID, &block.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, err
	}
	return &block, nil
}

// AddBlock adds a new block to the storage and returns its id.
func (p *PostgresStorage) AddBlock(ctx context.Context, block *etherman.Block, dbTx pgx.Tx) (uint64, error) {
	var blockID uint64
	const addBlockSQL = "INSERT INTO sync.block (block_num, block_hash, parent_hash, network_id, received_at) VALUES ($1, $2, $3, $4, $5) RETURNING id"

	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, addBlockSQL, block.BlockNumber, block.BlockHash, block.ParentHash, block.NetworkID, block.ReceivedAt).Scan(&blockID)
	return blockID, err
}

// Reset removes every block of a network above blockNumber and, through
// cascading, everything synced from those blocks.
func (p *PostgresStorage) Reset(ctx context.Context, blockNumber uint64, networkID uint, dbTx pgx.Tx) error {
	const resetSQL = "DELETE FROM sync.block WHERE block_num > $1 AND network_id = $2"

	e := p.getExecQuerier(dbTx)
	_, err := e.Exec(ctx, resetSQL, blockNumber, networkID)
	return err
}

// AddBridgeRequest persists one decoded request.
func (p *PostgresStorage) AddBridgeRequest(ctx context.Context, request *etherman.BridgeRequest, dbTx pgx.Tx) (uint64, error) {
	var requestID uint64
	const addRequestSQL = `
		INSERT INTO bridge.request (hash, direction, header, withdraw_auto, collection_l1, collection_l2,
			owner_l1, owner_l2, name, symbol, uri, token_ids, network_id, tx_hash, block_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`

	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, addRequestSQL, request.Hash, request.Direction, request.Header.String(), request.WithdrawAuto,
		request.CollectionL1, bigIntString(request.CollectionL2), request.OwnerL1, bigIntString(request.OwnerL2),
		request.Name, request.Symbol, request.URI, pq.Array(bigIntStrings(request.TokenIDs)),
		request.NetworkID, request.TxHash, request.BlockID).Scan(&requestID)
	return requestID, err
}

// GetBridgeRequest gets one request by hash and direction.
func (p *PostgresStorage) GetBridgeRequest(ctx context.Context, hash common.Hash, direction etherman.RequestDirection, dbTx pgx.Tx) (*etherman.BridgeRequest, error) {
	const getRequestSQL = `
		SELECT r.id, r.hash, r.direction, r.header, r.withdraw_auto, r.collection_l1, r.collection_l2,
			r.owner_l1, r.owner_l2, r.name, r.symbol, r.uri, r.token_ids, r.network_id, r.tx_hash,
			r.block_id, b.block_num, b.received_at
		FROM bridge.request r INNER JOIN sync.block b ON b.id = r.block_id
		WHERE r.hash = $1 AND r.direction = $2`

	e := p.getExecQuerier(dbTx)
	request, err := scanBridgeRequest(e.QueryRow(ctx, getRequestSQL, hash, direction))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, err
	}
	return request, nil
}

// GetBridgeRequestsByOwner gets the paginated requests declaring the
// given origin-chain owner, newest first.
func (p *PostgresStorage) GetBridgeRequestsByOwner(ctx context.Context, owner common.Address, limit, offset uint, dbTx pgx.Tx) ([]*etherman.BridgeRequest, error) {
	const getRequestsSQL = `
		SELECT r.id, r.hash, r.direction, r.header, r.withdraw_auto, r.collection_l1, r.collection_l2,
			r.owner_l1, r.owner_l2, r.name, r.symbol, r.uri, r.token_ids, r.network_id, r.tx_hash,
			r.block_id, b.block_num, b.received_at
		FROM bridge.request r INNER JOIN sync.block b ON b.id = r.block_id
		WHERE r.owner_l1 = $1 ORDER BY r.id DESC LIMIT $2 OFFSET $3`

	e := p.getExecQuerier(dbTx)
	rows, err := e.Query(ctx, getRequestsSQL, owner, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*etherman.BridgeRequest
	for rows.Next() {
		request, err := scanBridgeRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// AddCollectionPair persists a new collection binding.
func (p *PostgresStorage) AddCollectionPair(ctx context.Context, pair *etherman.CollectionPair, dbTx pgx.Tx) error {
	const addPairSQL = "INSERT INTO bridge.collection_pair (collection_l1, collection_l2, name, symbol, block_id) VALUES ($1, $2, $3, $4, $5)"

	e := p.getExecQuerier(dbTx)
	_, err := e.Exec(ctx, addPairSQL, pair.CollectionL1, bigIntString(pair.CollectionL2), pair.Name, pair.Symbol, pair.BlockID)
	return err
}

// GetCollectionPairByL1 gets the binding of an origin-chain collection.
func (p *PostgresStorage) GetCollectionPairByL1(ctx context.Context, collectionL1 common.Address, dbTx pgx.Tx) (*etherman.CollectionPair, error) {
	const getPairSQL = "SELECT collection_l1, collection_l2, name, symbol, block_id FROM bridge.collection_pair WHERE collection_l1 = $1"

	e := p.getExecQuerier(dbTx)
	return scanCollectionPair(e.QueryRow(ctx, getPairSQL, collectionL1))
}

// GetCollectionPairByL2 gets the binding of a rollup collection.
func (p *PostgresStorage) GetCollectionPairByL2(ctx context.Context, collectionL2 *big.Int, dbTx pgx.Tx) (*etherman.CollectionPair, error) {
	const getPairSQL = "SELECT collection_l1, collection_l2, name, symbol, block_id FROM bridge.collection_pair WHERE collection_l2 = $1"

	e := p.getExecQuerier(dbTx)
	return scanCollectionPair(e.QueryRow(ctx, getPairSQL, bigIntString(collectionL2)))
}

// AddMonitoredTx persists a new monitored withdraw tx.
func (p *PostgresStorage) AddMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) (uint64, error) {
	var id uint64
	const addMonitoredTxSQL = `
		INSERT INTO bridge.monitored_tx (request_hash, from_addr, to_addr, nonce, value, data, gas, gas_price, status, history, block_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`

	e := p.getExecQuerier(dbTx)
	err := e.QueryRow(ctx, addMonitoredTxSQL, mTx.RequestHash, mTx.From, mTx.To, mTx.Nonce, bigIntString(mTx.Value),
		mTx.Data, mTx.Gas, bigIntString(mTx.GasPrice), mTx.Status, pq.Array(mTx.HistoryHashSlice()),
		zeroAsNil(mTx.BlockID), mTx.CreatedAt, mTx.UpdatedAt).Scan(&id)
	return id, err
}

// UpdateMonitoredTx updates the mutable monitoring fields of a tx.
func (p *PostgresStorage) UpdateMonitoredTx(ctx context.Context, mTx *ctmtypes.MonitoredTx, dbTx pgx.Tx) error {
	const updateMonitoredTxSQL = `
		UPDATE bridge.monitored_tx
		SET nonce = $2, gas = $3, gas_price = $4, status = $5, history = $6, block_id = $7, updated_at = $8
		WHERE id = $1`

	e := p.getExecQuerier(dbTx)
	_, err := e.Exec(ctx, updateMonitoredTxSQL, mTx.ID, mTx.Nonce, mTx.Gas, bigIntString(mTx.GasPrice),
		mTx.Status, pq.Array(mTx.HistoryHashSlice()), zeroAsNil(mTx.BlockID), mTx.UpdatedAt)
	return err
}

// GetMonitoredTxsByStatus gets every monitored tx in one of the given
// statuses, oldest first.
func (p *PostgresStorage) GetMonitoredTxsByStatus(ctx context.Context, statuses []ctmtypes.MonitoredTxStatus, dbTx pgx.Tx) ([]ctmtypes.MonitoredTx, error) {
	const getMonitoredTxsSQL = `
		SELECT id, request_hash, from_addr, to_addr, nonce, value, data, gas, gas_price, status, history, coalesce(block_id, 0), created_at, updated_at
		FROM bridge.monitored_tx WHERE status = ANY($1) ORDER BY created_at`

	statusStrings := make([]string, 0, len(statuses))
	for _, status := range statuses {
		statusStrings = append(statusStrings, status.String())
	}
	e := p.getExecQuerier(dbTx)
	rows, err := e.Query(ctx, getMonitoredTxsSQL, pq.Array(statusStrings))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mTxs []ctmtypes.MonitoredTx
	for rows.Next() {
		var (
			mTx      ctmtypes.MonitoredTx
			value    *string
			gasPrice *string
			history  [][]byte
		)
		err := rows.Scan(&mTx.ID, &mTx.RequestHash, &mTx.From, &mTx.To, &mTx.Nonce, &value, &mTx.Data,
			&mTx.Gas, &gasPrice, &mTx.Status, pq.Array(&history), &mTx.BlockID, &mTx.CreatedAt, &mTx.UpdatedAt)
		if err != nil {
			return nil, err
		}
		mTx.Value = stringToBigInt(value)
		mTx.GasPrice = stringToBigInt(gasPrice)
		mTx.History = make(map[common.Hash]bool, len(history))
		for _, h := range history {
			mTx.History[common.BytesToHash(h)] = true
		}
		mTxs = append(mTxs, mTx)
	}
	return mTxs, rows.Err()
}

type row interface {
	Scan(dest ...interface{}) error
}

func scanBridgeRequest(r row) (*etherman.BridgeRequest, error) {
	var (
		request      etherman.BridgeRequest
		header       string
		collectionL2 *string
		ownerL2      *string
		tokenIDs     []string
	)
	err := r.Scan(&request.ID, &request.Hash, &request.Direction, &header, &request.WithdrawAuto,
		&request.CollectionL1, &collectionL2, &request.OwnerL1, &ownerL2, &request.Name, &request.Symbol,
		&request.URI, pq.Array(&tokenIDs), &request.NetworkID, &request.TxHash, &request.BlockID,
		&request.BlockNumber, &request.ReceivedAt)
	if err != nil {
		return nil, err
	}
	if request.Header, err = parseBigInt(header); err != nil {
		return nil, err
	}
	request.CollectionL2 = stringToBigInt(collectionL2)
	request.OwnerL2 = stringToBigInt(ownerL2)
	request.TokenIDs = make([]*big.Int, len(tokenIDs))
	for i, id := range tokenIDs {
		if request.TokenIDs[i], err = parseBigInt(id); err != nil {
			return nil, err
		}
	}
	return &request, nil
}

func scanCollectionPair(r row) (*etherman.CollectionPair, error) {
	var (
		pair         etherman.CollectionPair
		collectionL2 *string
	)
	err := r.Scan(&pair.CollectionL1, &collectionL2, &pair.Name, &pair.Symbol, &pair.BlockID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gerror.ErrStorageNotFound
	} else if err != nil {
		return nil, err
	}
	pair.CollectionL2 = stringToBigInt(collectionL2)
	return &pair, nil
}

// bigIntString renders an optional scalar for a nullable varchar column.
func bigIntString(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func bigIntStrings(values []*big.Int) []string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = v.String()
	}
	return strs
}

func stringToBigInt(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric column value %q", s)
	}
	return v, nil
}

func zeroAsNil(v uint64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
