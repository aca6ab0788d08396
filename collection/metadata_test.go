package collection

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContractCaller answers calls by selector. A missing entry means
// the contract reverts.
type fakeContractCaller struct {
	responses map[string][]byte
}

func (c *fakeContractCaller) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, errors.New("malformed calldata")
	}
	ret, ok := c.responses[string(call.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return ret, nil
}

func encodeABIString(t *testing.T, s string) []byte {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	ret, err := abi.Arguments{{Type: stringTy}}.Pack(s)
	require.NoError(t, err)
	return ret
}

func packedWord(s string) []byte {
	var w [common.HashLength]byte
	copy(w[:], s)
	return w[:]
}

func TestExtractMetadata(t *testing.T) {
	caller := &fakeContractCaller{responses: map[string][]byte{
		string(nameSelector):          encodeABIString(t, "Everai"),
		string(symbolSelector):        packedWord("DUO"),
		string(baseURISelector):       encodeABIString(t, "ipfs://everai/"),
		string(tokenURISelectors[0]): encodeABIString(t, "ipfs://everai/1"),
	}}

	m, err := NewExtractor(caller).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "Everai", m.Name)
	assert.Equal(t, "DUO", m.Symbol)
	assert.Equal(t, "ipfs://everai/", m.BaseURI)
	assert.Equal(t, []string{"ipfs://everai/1"}, m.PerTokenURI)
}

func TestExtractMetadataFallsBackToSecondURISelector(t *testing.T) {
	caller := &fakeContractCaller{responses: map[string][]byte{
		string(nameSelector):          encodeABIString(t, "Multi"),
		string(symbolSelector):        encodeABIString(t, "MUL"),
		string(tokenURISelectors[1]): encodeABIString(t, "https://example.com/{id}.json"),
	}}

	m, err := NewExtractor(caller).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), []*big.Int{big.NewInt(9)})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/{id}.json"}, m.PerTokenURI)
}

func TestExtractMetadataToleratesNonConformingTokens(t *testing.T) {
	// No URI entry point answers at all: every token still gets a slot,
	// holding the empty fallback, and extraction completes.
	caller := &fakeContractCaller{responses: map[string][]byte{
		string(nameSelector):   encodeABIString(t, "Stubborn"),
		string(symbolSelector): encodeABIString(t, "STB"),
	}}

	ids := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	m, err := NewExtractor(caller).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), ids)
	require.NoError(t, err)
	assert.Equal(t, "Stubborn", m.Name)
	assert.Equal(t, []string{"", "", ""}, m.PerTokenURI)
}

func TestExtractMetadataUndecodableResponse(t *testing.T) {
	caller := &fakeContractCaller{responses: map[string][]byte{
		string(nameSelector):          encodeABIString(t, "Odd"),
		string(symbolSelector):        encodeABIString(t, "ODD"),
		string(tokenURISelectors[0]): {0x01, 0x02, 0x03}, // neither shape
		string(tokenURISelectors[1]): {},
	}}

	m, err := NewExtractor(caller).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), []*big.Int{big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, m.PerTokenURI)
}

func TestExtractMetadataWithoutTokenIDs(t *testing.T) {
	caller := &fakeContractCaller{responses: map[string][]byte{
		string(nameSelector):   encodeABIString(t, "NoTokens"),
		string(symbolSelector): encodeABIString(t, "NTK"),
	}}

	m, err := NewExtractor(caller).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), nil)
	require.NoError(t, err)
	assert.Equal(t, "NoTokens", m.Name)
	assert.Nil(t, m.PerTokenURI)
}

func TestExtractMetadataUnreachableNameIsEmpty(t *testing.T) {
	m, err := NewExtractor(&fakeContractCaller{}).ExtractMetadata(context.Background(), common.HexToAddress("0x01"), nil)
	require.NoError(t, err)
	assert.Empty(t, m.Name)
	assert.Empty(t, m.Symbol)
}

func TestDecodeStringResult(t *testing.T) {
	s, ok := decodeStringResult(packedWord("hello"))
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = decodeStringResult(encodeABIString(t, "dynamic string longer than thirty two bytes for sure"))
	assert.True(t, ok)
	assert.Equal(t, "dynamic string longer than thirty two bytes for sure", s)

	_, ok = decodeStringResult(bytes.Repeat([]byte{0xff}, 7))
	assert.False(t, ok)
}
