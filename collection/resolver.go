package collection

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Resolve decides which L2 collection a request maps onto, given the
// addresses the request declares and the binding the bridge currently
// records. It is a pure function over its inputs; committing the
// resulting binding is the caller's job.
//
// A nil *big.Int means the address is absent (no rollup counterpart).
// A nil result with a nil error is the deploy signal: no collection
// exists yet on the destination chain and the caller must create one.
//
// Once a pair of collections is bound, neither side may change: any
// request declaring a different address on either side fails.
func Resolve(l1Request common.Address, l2Request *big.Int, l1Bound common.Address, l2Bound *big.Int) (*big.Int, error) {
	if l1Request == (common.Address{}) {
		return nil, ErrMissingL1Address
	}

	if l2Request == nil || l2Request.Sign() == 0 {
		if l2Bound == nil || l2Bound.Sign() == 0 {
			return nil, nil
		}
		// Already bound; omitting the L2 address in the request is legal.
		return new(big.Int).Set(l2Bound), nil
	}

	if l2Bound != nil && l2Bound.Sign() != 0 && l2Bound.Cmp(l2Request) != 0 {
		return nil, ErrL2AddressMismatch
	}
	if l1Bound != (common.Address{}) && l1Bound != l1Request {
		return nil, ErrL1AddressMismatch
	}
	if l2Bound == nil || l2Bound.Sign() == 0 {
		return nil, nil
	}
	return new(big.Int).Set(l2Bound), nil
}
