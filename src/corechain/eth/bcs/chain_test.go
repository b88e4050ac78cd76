package bcs

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
)

func hashN(n byte) corechain.Hash {
	var h corechain.Hash
	h[0] = n
	return h
}

func header(n byte, number uint64, parent byte, td int64) *Header {
	return &Header{
		Hash:            hashN(n),
		ParentHash:      hashN(parent),
		Number:          number,
		TotalDifficulty: big.NewInt(td),
		Timestamp:       uint64(number),
	}
}

// assertInvariant checks the universal BCS chain invariant:
// every orphan is known but unreachable from chain, and the tail is
// reachable from head via parent pointers.
func assertInvariant(t *testing.T, c *Chain) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	for hash := range c.orphans {
		_, alsoChained := c.chained[hash]
		assert.False(t, alsoChained, "orphan %v must not also be chained", hash)
	}

	cur := c.head
	seen := map[corechain.Hash]bool{}
	for cur != nil && cur.Hash != c.tail.Hash {
		assert.False(t, seen[cur.Hash], "parent-pointer cycle detected")
		seen[cur.Hash] = true
		next, ok := c.chained[cur.ParentHash]
		if !ok {
			break
		}
		cur = next
	}
}

func TestChainExtendSimple(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)

	b1 := header(1, 1, 0, 100)
	needsSync, _ := c.Extend(b1)
	assert.False(t, needsSync)
	assert.Equal(t, b1.Hash, c.Head().Hash)
	assertInvariant(t, c)
}

func TestChainExtendOrphanWhenParentMissing(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)

	// block 5's parent (4) has never arrived: it becomes an orphan, and a
	// sync is requested.
	b5 := header(5, 5, 4, 500)
	needsSync, lowest := c.Extend(b5)
	assert.True(t, needsSync)
	assert.Equal(t, uint64(5), lowest)

	orphans := c.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, b5.Hash, orphans[0].Hash)
	assertInvariant(t, c)
}

func TestChainExtendChainsOrphanOnceParentArrives(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)

	b2 := header(2, 2, 1, 200)
	c.Extend(b2) // orphaned: parent (1) unknown

	b1 := header(1, 1, 0, 100)
	needsSync, _ := c.Extend(b1) // chains atop genesis, then recursively chains b2
	assert.False(t, needsSync)

	assert.Equal(t, b2.Hash, c.Head().Hash)
	assert.Empty(t, c.Orphans())
	assertInvariant(t, c)
}

func TestChainReorgOrphansDivergentBranch(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)

	b1 := header(1, 1, 0, 100)
	b2a := header(2, 2, 1, 200)
	c.Extend(b1)
	c.Extend(b2a)
	require.Equal(t, b2a.Hash, c.Head().Hash)

	var orphaned []corechain.Hash
	c.OnOrphaned = func(h corechain.Hash) { orphaned = append(orphaned, h) }

	// A competing block at height 2 with a different parent than b2a's
	// sibling position: attach directly atop b1, which is "deeper in
	// chain" relative to the current head (b2a), triggering the reorg path.
	b2b := header(9, 2, 1, 999)
	needsSync, _ := c.Extend(b2b)
	assert.False(t, needsSync)
	assert.Equal(t, b2b.Hash, c.Head().Hash)
	assert.Contains(t, orphaned, b2a.Hash)
	assertInvariant(t, c)
}

func TestChainUnwindOrphansTopBlocks(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)
	b1 := header(1, 1, 0, 100)
	b2 := header(2, 2, 1, 200)
	c.Extend(b1)
	c.Extend(b2)

	var orphaned []corechain.Hash
	c.OnOrphaned = func(h corechain.Hash) { orphaned = append(orphaned, h) }

	c.Unwind(2)
	assert.Equal(t, genesis.Hash, c.Head().Hash)
	assert.ElementsMatch(t, []corechain.Hash{b2.Hash, b1.Hash}, orphaned)
	assertInvariant(t, c)
}
