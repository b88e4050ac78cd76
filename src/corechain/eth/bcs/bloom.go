package bcs

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/ethereum/go-ethereum/crypto"
)

// bloomBits is the width of an Ethereum header's logs bloom (2048 bits).
const bloomBits = 2048

// bloomPositions returns the three bit indices bloom9 sets for data, the
// same scheme go-ethereum's core/types.Bloom9 uses: for each of the first
// three 16-bit windows of Keccak256(data), take the low 11 bits as a bit
// index into the 2048-bit filter.
func bloomPositions(data []byte) [3]uint {
	h := crypto.Keccak256(data)
	var pos [3]uint
	for i := 0; i < 3; i++ {
		pos[i] = uint(h[i*2+1]) + uint(h[i*2])<<8
		pos[i] &= bloomBits - 1
	}
	return pos
}

// AddressFilter wraps a header's raw 2048-bit logs bloom in a bitset.BitSet
// so addressOfInterest tests are a handful of bit lookups instead of
// hand-rolled byte/shift arithmetic. The filter backs the needed-data
// decision: a header's logsBloom is tested against the managed address
// before receipts are requested.
type AddressFilter struct {
	bits *bitset.BitSet
}

// NewAddressFilter loads a header's raw logsBloom bytes (256 bytes, MSB
// first per the Ethereum yellow paper's bit ordering) into a filter.
func NewAddressFilter(logsBloom [256]byte) *AddressFilter {
	bs := bitset.New(bloomBits)
	for byteIdx, b := range logsBloom {
		if b == 0 {
			continue
		}
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			if b&(1<<uint(bitIdx)) != 0 {
				// Ethereum blooms are big-endian bit-numbered: byte 0 holds
				// bits [2047..2040], high bit first.
				pos := uint((255-byteIdx)*8 + bitIdx)
				bs.Set(pos)
			}
		}
	}
	return &AddressFilter{bits: bs}
}

// MayMatchAddress reports whether addr's three bloom positions are all set
// in this header's filter. A false return is a definitive non-match; a
// true return still requires fetching the block's receipts to confirm.
func (f *AddressFilter) MayMatchAddress(addr []byte) bool {
	return f.mayMatch(addr)
}

// MayMatchTopic reports the same test for a log topic (event signature or
// indexed argument), used alongside the address test when deciding
// whether a header's receipts are worth fetching.
func (f *AddressFilter) MayMatchTopic(topic []byte) bool {
	return f.mayMatch(topic)
}

func (f *AddressFilter) mayMatch(data []byte) bool {
	pos := bloomPositions(data)
	for _, p := range pos {
		if !f.bits.Test(p) {
			return false
		}
	}
	return true
}
