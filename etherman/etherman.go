package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	configtypes "github.com/nftlane/nft-bridge-service/config/types"
	"github.com/nftlane/nft-bridge-service/log"
)

const (
	// MainNetworkID is the network id of the origin chain.
	MainNetworkID uint = 0
	// RollupNetworkID is the network id of the destination rollup.
	RollupNetworkID uint = 1
)

var (
	depositRequestSignatureHash     = crypto.Keccak256Hash([]byte("DepositRequestInitiated(bytes32,uint256,uint256[])"))
	withdrawRequestSignatureHash    = crypto.Keccak256Hash([]byte("WithdrawRequestCompleted(bytes32,uint256,uint256[])"))
	collectionDeployedSignatureHash = crypto.Keccak256Hash([]byte("CollectionDeployed(address,address,string,string)"))

	withdrawMethodSelector = crypto.Keccak256([]byte("withdrawTokens(uint256[])"))[:4]
	deployMethodSelector   = crypto.Keccak256([]byte("deployCollection(bytes32,uint256,bytes)"))[:4]

	// ErrNotFound is used when the object is not found
	ErrNotFound = errors.New("not found")
	// ErrPrivateKeyNotFound is used when the client has no signer loaded
	ErrPrivateKeyNotFound = errors.New("private key not found")
	// ErrTxReverted is used when a mined transaction has a failed status
	ErrTxReverted = errors.New("transaction reverted")
)

var (
	requestEventArguments = abi.Arguments{
		{Name: "blockTimestamp", Type: mustABIType("uint256")},
		{Name: "payload", Type: mustABIType("uint256[]")},
	}
	collectionDeployedArguments = abi.Arguments{
		{Name: "name", Type: mustABIType("string")},
		{Name: "symbol", Type: mustABIType("string")},
	}
	withdrawMethodArguments = abi.Arguments{
		{Name: "payload", Type: mustABIType("uint256[]")},
	}
	deployMethodArguments = abi.Arguments{
		{Name: "template", Type: mustABIType("bytes32")},
		{Name: "salt", Type: mustABIType("uint256")},
		{Name: "constructorArgs", Type: mustABIType("bytes")},
	}
)

func mustABIType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

type ethereumClient interface {
	ethereum.ChainReader
	ethereum.ChainStateReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.LogFilterer
	ethereum.TransactionReader
	ethereum.TransactionSender

	bind.ContractBackend
}

// Client is a simple implementation of EtherMan.
type Client struct {
	EtherClient ethereumClient
	bridgeAddr  common.Address
	auth        *bind.TransactOpts
	networkID   uint
}

// NewClient creates a new etherman client connected to the origin chain.
func NewClient(cfg Config) (*Client, error) {
	return newClient(cfg.L1URL, cfg.L1BridgeAddr, cfg.PrivateKey, MainNetworkID)
}

// NewL2Client creates a new etherman client connected to the rollup.
func NewL2Client(cfg Config) (*Client, error) {
	return newClient(cfg.L2URL, cfg.L2BridgeAddr, cfg.PrivateKey, RollupNetworkID)
}

func newClient(url string, bridgeAddr common.Address, ks configtypes.KeystoreFileConfig, networkID uint) (*Client, error) {
	ethClient, err := ethclient.Dial(url)
	if err != nil {
		log.Errorf("error connecting to %s: %+v", url, err)
		return nil, err
	}
	var auth *bind.TransactOpts
	if ks.Path != "" {
		chainID, err := ethClient.ChainID(context.Background())
		if err != nil {
			return nil, err
		}
		auth, err = newAuthFromKeystore(ks, chainID)
		if err != nil {
			return nil, err
		}
	}
	return &Client{EtherClient: ethClient, bridgeAddr: bridgeAddr, auth: auth, networkID: networkID}, nil
}

func newAuthFromKeystore(ks configtypes.KeystoreFileConfig, chainID *big.Int) (*bind.TransactOpts, error) {
	keystoreEncrypted, err := os.ReadFile(filepath.Clean(ks.Path))
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(keystoreEncrypted, ks.Password)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key.PrivateKey, chainID)
}

// GetNetworkID returns the network id this client is connected to.
func (etherMan *Client) GetNetworkID() uint {
	return etherMan.networkID
}

// BridgeAddr returns the bridge contract address this client points at.
func (etherMan *Client) BridgeAddr() common.Address {
	return etherMan.bridgeAddr
}

// GetBridgeInfoByBlockRange retrieves every bridge event included in the
// given block range, grouped per block and ordered as emitted.
func (etherMan *Client) GetBridgeInfoByBlockRange(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]Block, map[common.Hash][]Order, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{etherMan.bridgeAddr},
	}
	if toBlock != nil {
		query.ToBlock = new(big.Int).SetUint64(*toBlock)
	}
	return etherMan.readEvents(ctx, query)
}

// GetBridgeInfoByBlock retrieves the bridge events included in one block.
func (etherMan *Client) GetBridgeInfoByBlock(ctx context.Context, blockNumber uint64, blockHash *common.Hash) ([]Block, map[common.Hash][]Order, error) {
	query := ethereum.FilterQuery{
		BlockHash: blockHash,
		Addresses: []common.Address{etherMan.bridgeAddr},
	}
	if blockHash == nil {
		blockNumBigInt := new(big.Int).SetUint64(blockNumber)
		query.FromBlock = blockNumBigInt
		query.ToBlock = blockNumBigInt
	}
	return etherMan.readEvents(ctx, query)
}

func (etherMan *Client) readEvents(ctx context.Context, query ethereum.FilterQuery) ([]Block, map[common.Hash][]Order, error) {
	logs, err := etherMan.EtherClient.FilterLogs(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	var blocks []Block
	blocksOrder := make(map[common.Hash][]Order)
	for _, vLog := range logs {
		if err := etherMan.processEvent(ctx, vLog, &blocks, blocksOrder); err != nil {
			log.Warnf("error processing event: %v. vLog: %+v", err, vLog)
			return nil, nil, err
		}
	}
	return blocks, blocksOrder, nil
}

func (etherMan *Client) processEvent(ctx context.Context, vLog types.Log, blocks *[]Block, blocksOrder map[common.Hash][]Order) error {
	if len(vLog.Topics) == 0 {
		// Anonymous event, nothing to dispatch on.
		return nil
	}
	switch vLog.Topics[0] {
	case depositRequestSignatureHash:
		request, err := parseRequestEvent(vLog)
		if err != nil {
			return err
		}
		block, err := etherMan.blockFor(ctx, vLog, blocks)
		if err != nil {
			return err
		}
		block.Requests = append(block.Requests, request)
		blocksOrder[block.BlockHash] = append(blocksOrder[block.BlockHash], Order{Name: RequestsOrder, Pos: len(block.Requests) - 1})
		return nil
	case withdrawRequestSignatureHash:
		request, err := parseRequestEvent(vLog)
		if err != nil {
			return err
		}
		block, err := etherMan.blockFor(ctx, vLog, blocks)
		if err != nil {
			return err
		}
		block.Withdrawals = append(block.Withdrawals, WithdrawEvent(request))
		blocksOrder[block.BlockHash] = append(blocksOrder[block.BlockHash], Order{Name: WithdrawalsOrder, Pos: len(block.Withdrawals) - 1})
		return nil
	case collectionDeployedSignatureHash:
		deployment, err := parseCollectionDeployedEvent(vLog)
		if err != nil {
			return err
		}
		block, err := etherMan.blockFor(ctx, vLog, blocks)
		if err != nil {
			return err
		}
		block.Deployments = append(block.Deployments, deployment)
		blocksOrder[block.BlockHash] = append(blocksOrder[block.BlockHash], Order{Name: DeploymentsOrder, Pos: len(block.Deployments) - 1})
		return nil
	}
	log.Debugf("event not registered: %+v", vLog)
	return nil
}

// blockFor returns the Block accumulating events for vLog, creating it
// when vLog opens a new block. Logs arrive ordered by block, so only
// the last element can match.
func (etherMan *Client) blockFor(ctx context.Context, vLog types.Log, blocks *[]Block) (*Block, error) {
	if len(*blocks) == 0 || (*blocks)[len(*blocks)-1].BlockHash != vLog.BlockHash {
		fullBlock, err := etherMan.EtherClient.BlockByHash(ctx, vLog.BlockHash)
		if err != nil {
			return nil, fmt.Errorf("error getting block %s: %w", vLog.BlockHash, err)
		}
		*blocks = append(*blocks, Block{
			BlockNumber: vLog.BlockNumber,
			BlockHash:   vLog.BlockHash,
			ParentHash:  fullBlock.ParentHash(),
			NetworkID:   etherMan.networkID,
			ReceivedAt:  time.Unix(int64(fullBlock.Time()), 0),
		})
	}
	return &(*blocks)[len(*blocks)-1], nil
}

func parseRequestEvent(vLog types.Log) (RequestEvent, error) {
	if len(vLog.Topics) < 2 { //nolint:gomnd
		return RequestEvent{}, fmt.Errorf("request event %s misses the hash topic", vLog.TxHash)
	}
	values, err := requestEventArguments.Unpack(vLog.Data)
	if err != nil {
		return RequestEvent{}, fmt.Errorf("error unpacking request event data: %w", err)
	}
	timestamp, ok := values[0].(*big.Int)
	if !ok {
		return RequestEvent{}, fmt.Errorf("unexpected blockTimestamp type %T", values[0])
	}
	payload, ok := values[1].([]*big.Int)
	if !ok {
		return RequestEvent{}, fmt.Errorf("unexpected payload type %T", values[1])
	}
	return RequestEvent{
		Hash:        vLog.Topics[1],
		Timestamp:   timestamp.Uint64(),
		Payload:     payload,
		BlockNumber: vLog.BlockNumber,
		TxHash:      vLog.TxHash,
	}, nil
}

func parseCollectionDeployedEvent(vLog types.Log) (CollectionDeployment, error) {
	if len(vLog.Topics) < 3 { //nolint:gomnd
		return CollectionDeployment{}, fmt.Errorf("collection deployed event %s misses address topics", vLog.TxHash)
	}
	values, err := collectionDeployedArguments.Unpack(vLog.Data)
	if err != nil {
		return CollectionDeployment{}, fmt.Errorf("error unpacking collection deployed event data: %w", err)
	}
	name, ok := values[0].(string)
	if !ok {
		return CollectionDeployment{}, fmt.Errorf("unexpected name type %T", values[0])
	}
	symbol, ok := values[1].(string)
	if !ok {
		return CollectionDeployment{}, fmt.Errorf("unexpected symbol type %T", values[1])
	}
	return CollectionDeployment{
		CollectionL1: common.BytesToAddress(vLog.Topics[1].Bytes()),
		CollectionL2: new(big.Int).SetBytes(vLog.Topics[2].Bytes()),
		Name:         name,
		Symbol:       symbol,
		BlockNumber:  vLog.BlockNumber,
	}, nil
}

// EthBlockByNumber function retrieves the chain block by number.
func (etherMan *Client) EthBlockByNumber(ctx context.Context, blockNumber uint64) (*types.Block, error) {
	block, err := etherMan.EtherClient.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return block, nil
}

// HeaderByNumber returns a block header from the current canonical
// chain. If number is nil, the latest known header is returned.
func (etherMan *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return etherMan.EtherClient.HeaderByNumber(ctx, number)
}

// CallContract performs a read-only contract call against the latest state.
func (etherMan *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return etherMan.EtherClient.CallContract(ctx, call, blockNumber)
}

// CurrentNonce returns the mined nonce of the given account.
func (etherMan *Client) CurrentNonce(ctx context.Context, account common.Address) (uint64, error) {
	return etherMan.EtherClient.NonceAt(ctx, account, nil)
}

// PendingNonce returns the pending nonce of the given account.
func (etherMan *Client) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return etherMan.EtherClient.PendingNonceAt(ctx, account)
}

// EstimateGas returns the estimated gas for the tx.
func (etherMan *Client) EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	return etherMan.EtherClient.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Value: value, Data: data})
}

// SuggestedGasPrice returns the gas price suggested by the node.
func (etherMan *Client) SuggestedGasPrice(ctx context.Context) (*big.Int, error) {
	return etherMan.EtherClient.SuggestGasPrice(ctx)
}

// SignTx signs the tx with the loaded signer. The sender must match it.
func (etherMan *Client) SignTx(ctx context.Context, sender common.Address, tx *types.Transaction) (*types.Transaction, error) {
	if etherMan.auth == nil || etherMan.auth.From != sender {
		return nil, ErrPrivateKeyNotFound
	}
	return etherMan.auth.Signer(etherMan.auth.From, tx)
}

// SendTx sends the tx to the network.
func (etherMan *Client) SendTx(ctx context.Context, tx *types.Transaction) error {
	return etherMan.EtherClient.SendTransaction(ctx, tx)
}

// GetTx gets a transaction by its hash.
func (etherMan *Client) GetTx(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	tx, isPending, err := etherMan.EtherClient.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, ErrNotFound
	}
	return tx, isPending, err
}

// GetTxReceipt gets a transaction receipt by its hash.
func (etherMan *Client) GetTxReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := etherMan.EtherClient.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrNotFound
	}
	return receipt, err
}

// WaitTxToBeMined waits until tx is mined or the timeout expires, and
// fails if the mined tx reverted.
func (etherMan *Client) WaitTxToBeMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	receipt, err := bind.WaitMined(ctx, etherMan.EtherClient, tx)
	if err != nil {
		return err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash())
	}
	return nil
}

// SignerAddress returns the account the loaded keystore signs with.
func (etherMan *Client) SignerAddress() (common.Address, error) {
	if etherMan.auth == nil {
		return common.Address{}, ErrPrivateKeyNotFound
	}
	return etherMan.auth.From, nil
}

// WithdrawTokensData builds the calldata completing a withdraw request
// on the bridge contract.
func WithdrawTokensData(payload []*big.Int) ([]byte, error) {
	args, err := withdrawMethodArguments.Pack(payload)
	if err != nil {
		return nil, fmt.Errorf("error packing withdraw payload: %w", err)
	}
	return append(append([]byte{}, withdrawMethodSelector...), args...), nil
}

// DeployCollection asks the bridge contract to instantiate a new
// collection from the given template and waits for the creation tx to
// be mined. It returns the address the bridge deployed to.
func (etherMan *Client) DeployCollection(ctx context.Context, template common.Hash, salt *big.Int, constructorArgs []byte) (common.Address, error) {
	if etherMan.auth == nil {
		return common.Address{}, ErrPrivateKeyNotFound
	}
	args, err := deployMethodArguments.Pack(template, salt, constructorArgs)
	if err != nil {
		return common.Address{}, fmt.Errorf("error packing deployCollection arguments: %w", err)
	}
	data := append(append([]byte{}, deployMethodSelector...), args...)

	nonce, err := etherMan.EtherClient.PendingNonceAt(ctx, etherMan.auth.From)
	if err != nil {
		return common.Address{}, err
	}
	gasPrice, err := etherMan.EtherClient.SuggestGasPrice(ctx)
	if err != nil {
		return common.Address{}, err
	}
	to := etherMan.bridgeAddr
	gas, err := etherMan.EtherClient.EstimateGas(ctx, ethereum.CallMsg{From: etherMan.auth.From, To: &to, Data: data})
	if err != nil {
		return common.Address{}, err
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, Gas: gas, GasPrice: gasPrice, Data: data})
	signedTx, err := etherMan.auth.Signer(etherMan.auth.From, tx)
	if err != nil {
		return common.Address{}, err
	}
	if err := etherMan.EtherClient.SendTransaction(ctx, signedTx); err != nil {
		return common.Address{}, err
	}
	receipt, err := bind.WaitMined(ctx, etherMan.EtherClient, signedTx)
	if err != nil {
		return common.Address{}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return common.Address{}, fmt.Errorf("%w: collection deployment %s", ErrTxReverted, signedTx.Hash())
	}
	for _, vLog := range receipt.Logs {
		if vLog.Topics[0] == collectionDeployedSignatureHash && len(vLog.Topics) >= 3 { //nolint:gomnd
			return common.BytesToAddress(vLog.Topics[2].Bytes()), nil
		}
	}
	return common.Address{}, fmt.Errorf("collection deployment %s emitted no CollectionDeployed event", signedTx.Hash())
}
