package protocol

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeaderVectors(t *testing.T) {
	tests := []struct {
		name         string
		kind         CollectionKind
		burnAuto     bool
		withdrawAuto bool
		expected     int64
	}{
		{"erc721 no flags", KindERC721, false, false, 0x0101},
		{"erc1155 no flags", KindERC1155, false, false, 0x0201},
		{"erc721 burn auto", KindERC721, true, false, 0x010101},
		{"erc721 both flags", KindERC721, true, true, 0x01010101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word := EncodeHeader(tt.kind, tt.burnAuto, tt.withdrawAuto)
			assert.Equal(t, 0, word.Cmp(big.NewInt(tt.expected)))
		})
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, kind := range []CollectionKind{KindERC721, KindERC1155} {
		for _, burnAuto := range []bool{false, true} {
			for _, withdrawAuto := range []bool{false, true} {
				word := EncodeHeader(kind, burnAuto, withdrawAuto)
				h, err := DecodeHeader(word)
				require.NoError(t, err)
				assert.Equal(t, uint8(CurrentVersion), h.Version)
				assert.Equal(t, kind, h.Kind)
				assert.Equal(t, burnAuto, h.BurnAuto)
				assert.Equal(t, withdrawAuto, h.WithdrawAuto)
				assert.Equal(t, withdrawAuto, CanUseWithdrawAuto(word))
			}
		}
	}
}

func TestDecodeHeaderIgnoresHighWords(t *testing.T) {
	// Garbage above the four header bytes must not disturb decoding.
	word := EncodeHeader(KindERC1155, true, true)
	word.Or(word, new(big.Int).Lsh(big.NewInt(0xdead), 64))

	h, err := DecodeHeader(word)
	require.NoError(t, err)
	assert.Equal(t, KindERC1155, h.Kind)
	assert.True(t, h.BurnAuto)
	assert.True(t, h.WithdrawAuto)
	assert.True(t, CanUseWithdrawAuto(word))
}

func TestDecodeHeaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		word     *big.Int
		expected error
	}{
		{"unsupported version", big.NewInt(0x0102), ErrUnsupportedVersion},
		{"version zero", big.NewInt(0x0100), ErrUnsupportedVersion},
		{"unknown kind", big.NewInt(0x0301), ErrUnknownCollectionKind},
		{"kind zero", big.NewInt(0x0001), ErrUnknownCollectionKind},
		{"negative word", big.NewInt(-1), ErrWordOutOfRange},
		{"nil word", nil, ErrWordOutOfRange},
		{"word above bound", new(big.Int).Lsh(big.NewInt(1), 256), ErrWordOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.word)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.ErrorIs(t, err, ErrDecoding)
		})
	}
}

func TestCanUseWithdrawAutoRequiresExactOne(t *testing.T) {
	// The flag byte must equal 1, not merely be non zero.
	word := big.NewInt(0x02000101)
	assert.False(t, CanUseWithdrawAuto(word))
	assert.False(t, CanUseWithdrawAuto(nil))
}
