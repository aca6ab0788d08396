package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// wordBits is the width of one wire word. Every encoded unit is an
// unsigned scalar in [0, 2^256): wide enough to carry a 256-bit hash or
// any chain address without truncation.
const wordBits = 256

// stringChunkSize is the number of bytes packed per word when encoding
// strings. 31 keeps every chunk strictly below the word bound.
const stringChunkSize = 31

var (
	wordBound = new(big.Int).Lsh(big.NewInt(1), wordBits)
	wordMask  = new(big.Int).Sub(wordBound, big.NewInt(1))
)

// validWord reports whether w fits the wire word range.
func validWord(w *big.Int) bool {
	return w != nil && w.Sign() >= 0 && w.Cmp(wordBound) < 0
}

func addressToWord(addr common.Address) *big.Int {
	return new(big.Int).SetBytes(addr.Bytes())
}

// wordToAddress narrows a word to an L1 address, failing on overflow.
func wordToAddress(w *big.Int) (common.Address, error) {
	if !validWord(w) {
		return common.Address{}, ErrWordOutOfRange
	}
	if w.BitLen() > common.AddressLength*8 {
		return common.Address{}, ErrAddressOverflow
	}
	var addr common.Address
	w.FillBytes(addr[:])
	return addr, nil
}

func hashToWord(h common.Hash) *big.Int {
	return new(big.Int).SetBytes(h.Bytes())
}

func wordToHash(w *big.Int) (common.Hash, error) {
	if !validWord(w) {
		return common.Hash{}, ErrWordOutOfRange
	}
	var h common.Hash
	w.FillBytes(h[:])
	return h, nil
}

// optionalToWord widens an optional rollup-side scalar; absent encodes
// as the zero word, which is unreachable as a real rollup address.
func optionalToWord(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// wordToOptional is the inverse: the zero word decodes to nil.
func wordToOptional(w *big.Int) (*big.Int, error) {
	if !validWord(w) {
		return nil, ErrWordOutOfRange
	}
	if w.Sign() == 0 {
		return nil, nil
	}
	return new(big.Int).Set(w), nil
}

// packString encodes s as a length-prefix word (count of packed words)
// followed by big-endian 31-byte chunks. The empty string is the single
// zero word.
func packString(s string) []*big.Int {
	b := []byte(s)
	n := (len(b) + stringChunkSize - 1) / stringChunkSize
	words := make([]*big.Int, 0, n+1)
	words = append(words, big.NewInt(int64(n)))
	for i := 0; i < n; i++ {
		end := (i + 1) * stringChunkSize
		if end > len(b) {
			end = len(b)
		}
		words = append(words, new(big.Int).SetBytes(b[i*stringChunkSize:end]))
	}
	return words
}

// stringSerializedLength is the exact word count packString produces.
func stringSerializedLength(s string) uint64 {
	return 1 + uint64((len(s)+stringChunkSize-1)/stringChunkSize)
}

// unpackString reads a packed string at words[offset] and returns it
// together with the offset past the consumed region. Intermediate
// chunks keep their full 31-byte width; the final chunk is stored
// without leading zeroes, so strings are expected to be NUL-free text.
func unpackString(words []*big.Int, offset int) (string, int, error) {
	n, offset, err := readLength(words, offset)
	if err != nil {
		return "", 0, err
	}
	if n == 0 {
		return "", offset, nil
	}
	buf := make([]byte, 0, n*stringChunkSize)
	chunk := make([]byte, stringChunkSize)
	for i := 0; i < n; i++ {
		w := words[offset+i]
		if !validWord(w) || w.BitLen() > stringChunkSize*8 {
			return "", 0, ErrWordOutOfRange
		}
		if i == n-1 {
			buf = append(buf, w.Bytes()...)
		} else {
			w.FillBytes(chunk)
			buf = append(buf, chunk...)
		}
	}
	return string(buf), offset + n, nil
}

// readLength consumes one length-prefix word and checks that the
// announced run actually fits in the remaining stream.
func readLength(words []*big.Int, offset int) (int, int, error) {
	if offset < 0 || offset >= len(words) {
		return 0, 0, ErrShortBuffer
	}
	prefix := words[offset]
	if !validWord(prefix) || !prefix.IsInt64() {
		return 0, 0, ErrBadLengthPrefix
	}
	n := int(prefix.Int64())
	offset++
	if n < 0 || n > len(words)-offset {
		return 0, 0, ErrBadLengthPrefix
	}
	return n, offset, nil
}
