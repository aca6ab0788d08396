package protocol

import (
	"errors"
	"fmt"
)

// ErrDecoding is the parent of every malformed-stream failure. Callers
// triage with errors.Is(err, protocol.ErrDecoding) and treat a match as
// fatal to the current request, with no state change.
var ErrDecoding = errors.New("decoding error")

var (
	// ErrShortBuffer is used when the word stream ends before the fixed part of a request.
	ErrShortBuffer = fmt.Errorf("%w: truncated word stream", ErrDecoding)

	// ErrBadLengthPrefix is used when a length prefix describes more words than remain.
	ErrBadLengthPrefix = fmt.Errorf("%w: length prefix exceeds remaining words", ErrDecoding)

	// ErrUnsupportedVersion is used when the header version byte is not a known protocol version.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported header version", ErrDecoding)

	// ErrUnknownCollectionKind is used when the header kind byte matches no discriminant.
	ErrUnknownCollectionKind = fmt.Errorf("%w: unknown collection kind", ErrDecoding)

	// ErrWordOutOfRange is used when a scalar does not fit the wire word bound.
	ErrWordOutOfRange = fmt.Errorf("%w: word out of range", ErrDecoding)

	// ErrAddressOverflow is used when a word is too wide for an L1 address.
	// Width mismatches are a hard failure, never a silent narrowing.
	ErrAddressOverflow = fmt.Errorf("%w: address width overflow", ErrDecoding)
)

// ErrArrayAlignment is used when tokenValues, tokenURIs or newOwners
// are neither empty nor aligned with tokenIds.
var ErrArrayAlignment = errors.New("token arrays must be empty or aligned with token ids")
