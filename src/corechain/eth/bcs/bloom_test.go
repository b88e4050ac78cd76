package bcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// bloomWithData returns a raw 2048-bit header bloom with exactly data's
// three bloom9 positions set, using the same bit numbering
// NewAddressFilter reads (byte 0 holds bits 2047..2040).
func bloomWithData(data ...[]byte) [256]byte {
	var bloom [256]byte
	for _, d := range data {
		for _, p := range bloomPositions(d) {
			bloom[255-p/8] |= 1 << (p % 8)
		}
	}
	return bloom
}

var testAddr = []byte{
	0x93, 0x2a, 0x27, 0xe1, 0xbc, 0x84, 0xf5, 0xb7, 0x4c, 0x29,
	0xaf, 0x3d, 0x88, 0x89, 0x26, 0xb1, 0x30, 0x7f, 0x4a, 0x5c,
}

func TestAddressFilterEmptyBloomNeverMatches(t *testing.T) {
	f := NewAddressFilter([256]byte{})
	assert.False(t, f.MayMatchAddress(testAddr))
}

func TestAddressFilterMatchesAddressItContains(t *testing.T) {
	f := NewAddressFilter(bloomWithData(testAddr))
	assert.True(t, f.MayMatchAddress(testAddr))
}

func TestAddressFilterMatchesTopicItContains(t *testing.T) {
	topic := []byte("Transfer(address,address,uint256)")
	f := NewAddressFilter(bloomWithData(topic))
	assert.True(t, f.MayMatchTopic(topic))
	assert.False(t, f.MayMatchTopic([]byte("Approval(address,address,uint256)")))
}

func TestBloomPositionsAreStableAndBounded(t *testing.T) {
	p1 := bloomPositions(testAddr)
	p2 := bloomPositions(testAddr)
	assert.Equal(t, p1, p2)
	for _, p := range p1 {
		assert.Less(t, p, uint(bloomBits))
	}
}
