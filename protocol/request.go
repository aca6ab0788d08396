package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// fixedWords is the constant-size prefix of every serialized request:
// header, hash, collectionL1, collectionL2, ownerL1, ownerL2.
const fixedWords = 6

// Request is one cross-chain NFT transfer message. It is a value
// object: construct it, serialize it, never mutate it afterwards.
//
// CollectionL2, OwnerL2 and NewOwners are rollup-side scalars. A nil
// CollectionL2 means the collection has no rollup counterpart bound
// yet; on the wire it is the zero word.
type Request struct {
	Header *big.Int
	Hash   common.Hash

	CollectionL1 common.Address
	CollectionL2 *big.Int
	OwnerL1      common.Address
	OwnerL2      *big.Int

	Name   string
	Symbol string
	URI    string

	// TokenIDs is the ordered set of tokens being transferred.
	// TokenValues, TokenURIs and NewOwners are each either empty or
	// exactly len(TokenIDs) long, never partially aligned.
	TokenIDs    []*big.Int
	TokenValues []*big.Int
	TokenURIs   []string
	NewOwners   []*big.Int
}

// SerializedLength returns the exact number of words Serialize emits,
// computed without building the buffer, so callers can preallocate or
// estimate transmission cost.
func (r *Request) SerializedLength() uint64 {
	n := uint64(fixedWords)
	n += stringSerializedLength(r.Name)
	n += stringSerializedLength(r.Symbol)
	n += stringSerializedLength(r.URI)
	n += 1 + uint64(len(r.TokenIDs))
	n += 1 + uint64(len(r.TokenValues))
	n++
	for _, u := range r.TokenURIs {
		n += stringSerializedLength(u)
	}
	n += 1 + uint64(len(r.NewOwners))
	return n
}

// Serialize encodes the request into its canonical word sequence:
// the fixed part, the three descriptive strings, then the four
// length-prefixed variable arrays.
func (r *Request) Serialize() ([]*big.Int, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	words := make([]*big.Int, 0, r.SerializedLength())
	words = append(words,
		new(big.Int).Set(r.Header),
		hashToWord(r.Hash),
		addressToWord(r.CollectionL1),
		optionalToWord(r.CollectionL2),
		addressToWord(r.OwnerL1),
		optionalToWord(r.OwnerL2),
	)
	words = append(words, packString(r.Name)...)
	words = append(words, packString(r.Symbol)...)
	words = append(words, packString(r.URI)...)
	words = appendWordArray(words, r.TokenIDs)
	words = appendWordArray(words, r.TokenValues)
	words = append(words, big.NewInt(int64(len(r.TokenURIs))))
	for _, u := range r.TokenURIs {
		words = append(words, packString(u)...)
	}
	words = appendWordArray(words, r.NewOwners)
	return words, nil
}

// Deserialize decodes one request starting at words[offset] and returns
// it together with the offset one past the consumed region, so that
// several requests can be packed consecutively inside one envelope.
//
// The stream being shorter than its encoded lengths, an unsupported
// header, or any out-of-range word is a DecodingError.
func Deserialize(words []*big.Int, offset int) (Request, int, error) {
	if offset < 0 || len(words)-offset < fixedWords {
		return Request{}, 0, ErrShortBuffer
	}
	if _, err := DecodeHeader(words[offset]); err != nil {
		return Request{}, 0, err
	}

	var (
		r   Request
		err error
	)
	r.Header = new(big.Int).Set(words[offset])
	if r.Hash, err = wordToHash(words[offset+1]); err != nil {
		return Request{}, 0, err
	}
	if r.CollectionL1, err = wordToAddress(words[offset+2]); err != nil {
		return Request{}, 0, err
	}
	if r.CollectionL2, err = wordToOptional(words[offset+3]); err != nil {
		return Request{}, 0, err
	}
	if r.OwnerL1, err = wordToAddress(words[offset+4]); err != nil {
		return Request{}, 0, err
	}
	if r.OwnerL2, err = wordToOptional(words[offset+5]); err != nil {
		return Request{}, 0, err
	}
	offset += fixedWords

	if r.Name, offset, err = unpackString(words, offset); err != nil {
		return Request{}, 0, err
	}
	if r.Symbol, offset, err = unpackString(words, offset); err != nil {
		return Request{}, 0, err
	}
	if r.URI, offset, err = unpackString(words, offset); err != nil {
		return Request{}, 0, err
	}
	if r.TokenIDs, offset, err = unpackWordArray(words, offset); err != nil {
		return Request{}, 0, err
	}
	if r.TokenValues, offset, err = unpackWordArray(words, offset); err != nil {
		return Request{}, 0, err
	}

	uriCount, offset, err := readLength(words, offset)
	if err != nil {
		return Request{}, 0, err
	}
	if uriCount > 0 {
		r.TokenURIs = make([]string, uriCount)
		for i := 0; i < uriCount; i++ {
			if r.TokenURIs[i], offset, err = unpackString(words, offset); err != nil {
				return Request{}, 0, err
			}
		}
	}

	if r.NewOwners, offset, err = unpackWordArray(words, offset); err != nil {
		return Request{}, 0, err
	}

	if err = r.validate(); err != nil {
		return Request{}, 0, err
	}
	return r, offset, nil
}

// validate enforces the alignment invariant and the word bound on every
// scalar field. Serialization fails rather than truncates.
func (r *Request) validate() error {
	if !validWord(r.Header) {
		return ErrWordOutOfRange
	}
	n := len(r.TokenIDs)
	if (len(r.TokenValues) != 0 && len(r.TokenValues) != n) ||
		(len(r.TokenURIs) != 0 && len(r.TokenURIs) != n) ||
		(len(r.NewOwners) != 0 && len(r.NewOwners) != n) {
		return ErrArrayAlignment
	}
	if r.CollectionL2 != nil && !validWord(r.CollectionL2) {
		return ErrWordOutOfRange
	}
	if r.OwnerL2 != nil && !validWord(r.OwnerL2) {
		return ErrWordOutOfRange
	}
	for _, arr := range [][]*big.Int{r.TokenIDs, r.TokenValues, r.NewOwners} {
		for _, w := range arr {
			if !validWord(w) {
				return ErrWordOutOfRange
			}
		}
	}
	return nil
}

func appendWordArray(words []*big.Int, arr []*big.Int) []*big.Int {
	words = append(words, big.NewInt(int64(len(arr))))
	for _, w := range arr {
		words = append(words, new(big.Int).Set(w))
	}
	return words
}

func unpackWordArray(words []*big.Int, offset int) ([]*big.Int, int, error) {
	n, offset, err := readLength(words, offset)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, offset, nil
	}
	arr := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		w := words[offset+i]
		if !validWord(w) {
			return nil, 0, ErrWordOutOfRange
		}
		arr[i] = new(big.Int).Set(w)
	}
	return arr, offset + n, nil
}
