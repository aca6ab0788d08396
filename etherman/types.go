package etherman

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// RequestsOrder identifies a deposit request event
	RequestsOrder EventOrder = "Requests"
	// WithdrawalsOrder identifies a completed withdraw event
	WithdrawalsOrder EventOrder = "Withdrawals"
	// DeploymentsOrder identifies a collection deployment event
	DeploymentsOrder EventOrder = "Deployments"
)

// EventOrder is the type used to identify the events order
type EventOrder string

// Order contains the event order to let the synchronizer store the information following this order
type Order struct {
	Name EventOrder
	Pos  int
}

// Block struct
type Block struct {
	BlockNumber uint64
	BlockHash   common.Hash
	ParentHash  common.Hash
	NetworkID   uint
	Requests    []RequestEvent
	Withdrawals []WithdrawEvent
	Deployments []CollectionDeployment

	ReceivedAt time.Time
}

// RequestEvent is one DepositRequestInitiated log: a user escrowed
// tokens on the origin chain and the serialized request left for the
// rollup. Payload is the raw word stream, decoded later by the
// synchronizer.
type RequestEvent struct {
	Hash        common.Hash
	Timestamp   uint64
	Payload     []*big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// WithdrawEvent is one WithdrawRequestCompleted log: escrowed tokens
// were handed back on the origin chain for a request coming down from
// the rollup.
type WithdrawEvent struct {
	Hash        common.Hash
	Timestamp   uint64
	Payload     []*big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// CollectionDeployment is one CollectionDeployed log: the rollup bridge
// instantiated a new collection bound to an origin-chain one.
type CollectionDeployment struct {
	CollectionL1 common.Address
	CollectionL2 *big.Int
	Name         string
	Symbol       string
	BlockNumber  uint64
}

const (
	// DirectionDeposit marks requests leaving the origin chain.
	DirectionDeposit RequestDirection = "deposit"
	// DirectionWithdrawal marks requests coming down from the rollup.
	DirectionWithdrawal RequestDirection = "withdrawal"
)

// RequestDirection tells which chain a request left from.
type RequestDirection string

// BridgeRequest is a decoded request persisted by the synchronizer,
// enriched with its chain context.
type BridgeRequest struct {
	ID           uint64
	Hash         common.Hash
	Direction    RequestDirection
	Header       *big.Int
	WithdrawAuto bool
	CollectionL1 common.Address
	CollectionL2 *big.Int
	OwnerL1      common.Address
	OwnerL2      *big.Int
	Name         string
	Symbol       string
	URI          string
	TokenIDs     []*big.Int
	NetworkID    uint
	BlockID      uint64
	BlockNumber  uint64
	TxHash       common.Hash
	ReceivedAt   time.Time
}

// CollectionPair is the persistent one-to-one binding between an
// origin-chain collection and its rollup counterpart.
type CollectionPair struct {
	CollectionL1 common.Address
	CollectionL2 *big.Int
	Name         string
	Symbol       string
	BlockID      uint64
}
