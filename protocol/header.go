package protocol

import "math/big"

// CurrentVersion is the only protocol version this codec understands.
const CurrentVersion = 1

// CollectionKind discriminates the supply model of a bridged collection.
type CollectionKind uint8

const (
	// KindERC721 is a single-supply collection.
	KindERC721 CollectionKind = 1
	// KindERC1155 is a multi-supply collection.
	KindERC1155 CollectionKind = 2
)

// Header byte positions inside the packed word, low to high:
// [version][kind][burnAuto][withdrawAuto].
const (
	headerVersionShift      = 0
	headerKindShift         = 8
	headerBurnAutoShift     = 16
	headerWithdrawAutoShift = 24
)

var headerFieldsMask = big.NewInt(0xffffffff)

// Header is the unpacked request descriptor.
type Header struct {
	Version      uint8
	Kind         CollectionKind
	BurnAuto     bool
	WithdrawAuto bool
}

// EncodeHeader packs the descriptor into one wire word. The version is
// always CurrentVersion. Pure and total: flags are booleans and the
// kind is a closed enum.
func EncodeHeader(kind CollectionKind, useBurnAuto, useWithdrawAuto bool) *big.Int {
	w := uint64(CurrentVersion) << headerVersionShift
	w |= uint64(kind) << headerKindShift
	if useBurnAuto {
		w |= 1 << headerBurnAutoShift
	}
	if useWithdrawAuto {
		w |= 1 << headerWithdrawAutoShift
	}
	return new(big.Int).SetUint64(w)
}

// DecodeHeader unpacks a header word. Each field is read from its fixed
// byte position, so the big-integer form dropping trailing zero bytes
// cannot change what is recovered.
func DecodeHeader(word *big.Int) (Header, error) {
	if !validWord(word) {
		return Header{}, ErrWordOutOfRange
	}
	low := new(big.Int).And(word, headerFieldsMask).Uint64()
	h := Header{
		Version:      uint8(low >> headerVersionShift),
		Kind:         CollectionKind(uint8(low >> headerKindShift)),
		BurnAuto:     uint8(low>>headerBurnAutoShift) == 1,
		WithdrawAuto: uint8(low>>headerWithdrawAutoShift) == 1,
	}
	if h.Version != CurrentVersion {
		return Header{}, ErrUnsupportedVersion
	}
	if h.Kind != KindERC721 && h.Kind != KindERC1155 {
		return Header{}, ErrUnknownCollectionKind
	}
	return h, nil
}

// CanUseWithdrawAuto reports whether the withdraw-auto flag byte of the
// header word equals 1. Callers branch transfer completion on it: a set
// flag means the destination-side transfer auto-completes without a
// separate claim step.
func CanUseWithdrawAuto(word *big.Int) bool {
	if !validWord(word) {
		return false
	}
	low := new(big.Int).And(word, headerFieldsMask).Uint64()
	return uint8(low>>headerWithdrawAutoShift) == 1
}
