package claimtxman

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	cacheSize = 1000
)

// NonceCache hands out strictly increasing nonces per sender, surviving
// the node's pending view lagging behind our own sends.
type NonceCache struct {
	ctx        context.Context
	l1Node     ethermanInterface
	nonceCache *lru.Cache[string, uint64]
}

func NewNonceCache(ctx context.Context, l1Node ethermanInterface) (*NonceCache, error) {
	cache, err := lru.New[string, uint64](int(cacheSize))
	if err != nil {
		return nil, err
	}
	return &NonceCache{
		ctx:        ctx,
		l1Node:     l1Node,
		nonceCache: cache,
	}, nil
}

func (nc *NonceCache) GetNextNonce(from common.Address) (uint64, error) {
	nonce, err := nc.l1Node.PendingNonce(nc.ctx, from)
	if err != nil {
		return 0, err
	}
	if tempNonce, found := nc.nonceCache.Get(from.Hex()); found {
		if tempNonce >= nonce {
			nonce = tempNonce + 1
		}
	}
	nc.nonceCache.Add(from.Hex(), nonce)
	return nonce, nil
}

func (nc *NonceCache) Remove(from string) {
	nc.nonceCache.Remove(from)
}
