package collection

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractCaller performs read-only contract calls. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Metadata is what could be read off a source collection contract.
// Fields the contract did not answer for are empty.
type Metadata struct {
	Name        string
	Symbol      string
	BaseURI     string
	PerTokenURI []string
}

var (
	nameSelector    = crypto.Keccak256([]byte("name()"))[:4]
	symbolSelector  = crypto.Keccak256([]byte("symbol()"))[:4]
	baseURISelector = crypto.Keccak256([]byte("baseURI()"))[:4]

	// Both historically common per-token URI spellings, probed in order.
	// The single-supply form first, then the multi-supply one.
	tokenURISelectors = [][]byte{
		crypto.Keccak256([]byte("tokenURI(uint256)"))[:4],
		crypto.Keccak256([]byte("uri(uint256)"))[:4],
	}
)

// Extractor reads descriptive metadata from arbitrary third-party
// collection contracts. Those contracts are untrusted: every read is
// best effort and a non-conforming token never aborts the batch.
type Extractor struct {
	caller ContractCaller
}

// NewExtractor creates a new Extractor.
func NewExtractor(caller ContractCaller) *Extractor {
	return &Extractor{caller: caller}
}

// ExtractMetadata reads name, symbol and base URI from the source
// collection and, when token ids are supplied, a per-token URI for each.
// PerTokenURI is aligned with tokenIDs; a token whose URI could not be
// read or decoded gets the empty string.
func (e *Extractor) ExtractMetadata(ctx context.Context, source common.Address, tokenIDs []*big.Int) (Metadata, error) {
	m := Metadata{
		Name:    e.callString(ctx, source, nameSelector),
		Symbol:  e.callString(ctx, source, symbolSelector),
		BaseURI: e.callString(ctx, source, baseURISelector),
	}
	if len(tokenIDs) == 0 {
		return m, nil
	}

	m.PerTokenURI = make([]string, len(tokenIDs))
	var id [common.HashLength]byte
	for i, tokenID := range tokenIDs {
		if tokenID == nil {
			continue
		}
		tokenID.FillBytes(id[:])
		for _, selector := range tokenURISelectors {
			uri, ok := e.tryCallString(ctx, source, append(bytes.Clone(selector), id[:]...))
			if ok {
				m.PerTokenURI[i] = uri
				break
			}
		}
	}
	return m, nil
}

func (e *Extractor) callString(ctx context.Context, to common.Address, data []byte) string {
	s, _ := e.tryCallString(ctx, to, data)
	return s
}

func (e *Extractor) tryCallString(ctx context.Context, to common.Address, data []byte) (string, bool) {
	ret, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil || len(ret) == 0 {
		return "", false
	}
	return decodeStringResult(ret)
}

// decodeStringResult accepts the two response shapes seen in the wild:
// the standard dynamic string encoding, and a single packed word holding
// the text inline, NUL padded.
func decodeStringResult(ret []byte) (string, bool) {
	if s, err := unpackABIString(ret); err == nil {
		return s, true
	}
	if len(ret) == common.HashLength {
		return string(bytes.Trim(ret, "\x00")), true
	}
	return "", false
}

func unpackABIString(ret []byte) (string, error) {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		return "", err
	}
	values, err := abi.Arguments{{Type: stringTy}}.Unpack(ret)
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected decoded type %T", values[0])
	}
	return s, nil
}
