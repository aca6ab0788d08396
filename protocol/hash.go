package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ComputeHash derives the identity tag of a request from its binding
// fields: the sequence salt, both collection addresses and the ordered
// token ids. Keccak-256 over the fixed-width concatenation
//
//	salt(32) || collectionL1(32, zero padded) || collectionL2(32) || id(32)...
//
// Any bit change in a binding field changes the hash. The descriptive
// strings (name, symbol, URIs) are informational and deliberately not
// covered. A nil collectionL2 hashes as the zero scalar.
func ComputeHash(salt *big.Int, collectionL1 common.Address, collectionL2 *big.Int, tokenIDs []*big.Int) common.Hash {
	buf := make([]byte, 0, common.HashLength*(3+len(tokenIDs)))
	var w [common.HashLength]byte

	appendWord := func(v *big.Int) {
		if v == nil {
			v = new(big.Int)
		}
		new(big.Int).And(v, wordMask).FillBytes(w[:])
		buf = append(buf, w[:]...)
	}

	appendWord(salt)
	buf = append(buf, common.LeftPadBytes(collectionL1.Bytes(), common.HashLength)...)
	appendWord(collectionL2)
	for _, id := range tokenIDs {
		appendWord(id)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(buf) //nolint:errcheck,gosec
	return common.BytesToHash(h.Sum(nil))
}
