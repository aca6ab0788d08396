package collection

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every binding-rule failure. A match
// aborts the current request with no binding-state change.
var ErrValidation = errors.New("validation error")

var (
	// ErrMissingL1Address is used when a request omits the mainnet
	// collection address. That address is the authoritative origin of
	// every request and must always be present.
	ErrMissingL1Address = fmt.Errorf("%w: missing L1 collection address", ErrValidation)

	// ErrL1AddressMismatch is used when the request's L1 address differs
	// from the one already bound to the L2 collection.
	ErrL1AddressMismatch = fmt.Errorf("%w: L1 collection address mismatch", ErrValidation)

	// ErrL2AddressMismatch is used when the request's L2 address differs
	// from the one already bound to the L1 collection.
	ErrL2AddressMismatch = fmt.Errorf("%w: L2 collection address mismatch", ErrValidation)
)
