// Package bcs implements the Ethereum block-chain-sync core: a header
// chain with orphan handling, an N-ary search sync strategy that locates
// blocks where a managed address's account state changed, a uniform
// provision-result protocol, transaction-status reconciliation, and a
// periodic dispatcher, expressed against this core's RPC-polling
// corechain/rpc.Client rather than a dedicated light-protocol peer pool
// (see corechain/utxo's package doc for the same simplification applied
// to the UTXO family).
package bcs

import (
	"math/big"
	"sort"
	"sync"

	"github.com/arcsign/walletcore/corechain"
)

// BlockDataStatus tracks completion of one per-block data kind.
type BlockDataStatus int

const (
	StatusNeeded BlockDataStatus = iota
	StatusDataPending
	StatusComplete
)

// Header is one block's chain-relevant fields plus the per-kind data
// status the dispatcher uses to decide what's still needed.
type Header struct {
	Hash            corechain.Hash
	ParentHash      corechain.Hash
	Number          uint64
	TotalDifficulty *big.Int
	Timestamp       uint64
	LogsBloom       [256]byte // raw 2048-bit header bloom, tested by bloom.go

	Transactions BlockDataStatus
	Receipts     BlockDataStatus
	AccountState BlockDataStatus
	HeaderProof  BlockDataStatus
}

// Complete reports whether every data kind this block needs has arrived.
func (h *Header) Complete() bool {
	return h.Transactions == StatusComplete && h.Receipts == StatusComplete &&
		h.AccountState == StatusComplete && h.HeaderProof == StatusComplete
}

// orphanRetentionBlocks is how far behind head a complete orphan is kept
// before being purged.
const orphanRetentionBlocks = 10

// Chain holds the chained block list (newest at head, reachable back to
// tail) plus the set of known-but-unchained orphan blocks.
type Chain struct {
	mu sync.Mutex

	head *Header
	tail *Header

	chained map[corechain.Hash]*Header
	orphans map[corechain.Hash]*Header

	// OnOrphaned is invoked (outside the lock) for every block hash that
	// moves from chained to orphan, so the owning sub-manager can re-pend
	// that block's transactions/logs for status re-resolution.
	OnOrphaned func(blockHash corechain.Hash)
}

// NewChain seeds the chain at genesis (or a previously-persisted tail).
func NewChain(genesis *Header) *Chain {
	c := &Chain{
		head:    genesis,
		tail:    genesis,
		chained: map[corechain.Hash]*Header{genesis.Hash: genesis},
		orphans: map[corechain.Hash]*Header{},
	}
	return c
}

// Head returns the current chain head.
func (c *Chain) Head() *Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Tail returns the oldest retained chained block.
func (c *Chain) Tail() *Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tail
}

// Block looks up a block by hash, chained or orphaned.
func (c *Chain) Block(hash corechain.Hash) (*Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.chained[hash]; ok {
		return b, true
	}
	b, ok := c.orphans[hash]
	return b, ok
}

// Orphans returns every currently orphaned block.
func (c *Chain) Orphans() []*Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Header, 0, len(c.orphans))
	for _, b := range c.orphans {
		out = append(out, b)
	}
	return out
}

// Unwind converts the top depth blocks of the chain back to orphans,
// handling a peer-announced reorg while no sync is active.
func (c *Chain) Unwind(depth uint64) {
	c.mu.Lock()
	var orphaned []corechain.Hash
	cur := c.head
	for i := uint64(0); i < depth && cur != nil && cur.Hash != c.tail.Hash; i++ {
		delete(c.chained, cur.Hash)
		c.orphans[cur.Hash] = cur
		orphaned = append(orphaned, cur.Hash)
		parent, ok := c.chained[cur.ParentHash]
		if !ok {
			break
		}
		cur = parent
	}
	c.head = cur
	cb := c.OnOrphaned
	c.mu.Unlock()
	if cb != nil {
		for _, h := range orphaned {
			cb(h)
		}
	}
}

// Extend applies the chain-extension rules for a newly received block
// b. It returns needsSync = true and the lowest orphan number when a gap
// must be recovered via a sync round.
func (c *Chain) Extend(b *Header) (needsSync bool, syncFromNumber uint64) {
	c.mu.Lock()

	if _, already := c.chained[b.Hash]; already {
		c.mu.Unlock()
		return false, 0
	}

	parent, parentChained := c.chained[b.ParentHash]

	switch {
	case !parentChained:
		// Parent absent or itself an orphan: b becomes an orphan too.
		c.orphans[b.Hash] = b
		lowest := b.Number
		for _, o := range c.orphans {
			if o.Number < lowest {
				lowest = o.Number
			}
		}
		c.mu.Unlock()
		return true, lowest

	case b.ParentHash == c.head.Hash:
		c.extendHead(b)
		c.mu.Unlock()
		return false, 0

	default:
		// Parent is deeper in chain: reorg. Every block between head and
		// parent becomes an orphan, then b is chained atop parent.
		var orphaned []corechain.Hash
		cur := c.head
		for cur.Hash != parent.Hash && cur.Hash != c.tail.Hash {
			delete(c.chained, cur.Hash)
			c.orphans[cur.Hash] = cur
			orphaned = append(orphaned, cur.Hash)
			next, ok := c.chained[cur.ParentHash]
			if !ok {
				break
			}
			cur = next
		}
		c.head = parent
		c.extendHead(b)
		c.mu.Unlock()
		cb := c.OnOrphaned
		if cb != nil {
			for _, h := range orphaned {
				cb(h)
			}
		}
		return false, 0
	}
}

// extendHead assumes the caller holds c.mu; it sets b as the new head and
// recursively chains any orphans whose parent is now chained, breaking
// ties among same-parent candidates by higher total difficulty then lower
// timestamp, and finally purges retired complete orphans.
func (c *Chain) extendHead(b *Header) {
	c.chained[b.Hash] = b
	c.head = b

	for {
		var candidates []*Header
		for _, o := range c.orphans {
			if o.ParentHash == c.head.Hash {
				candidates = append(candidates, o)
			}
		}
		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool {
			tdCmp := candidates[i].TotalDifficulty.Cmp(candidates[j].TotalDifficulty)
			if tdCmp != 0 {
				return tdCmp > 0
			}
			return candidates[i].Timestamp < candidates[j].Timestamp
		})
		winner := candidates[0]
		delete(c.orphans, winner.Hash)
		c.chained[winner.Hash] = winner
		c.head = winner
	}

	c.purgeRetiredOrphans()
}

// purgeRetiredOrphans assumes c.mu is held.
func (c *Chain) purgeRetiredOrphans() {
	if c.head.Number < orphanRetentionBlocks {
		return
	}
	horizon := c.head.Number - orphanRetentionBlocks
	for hash, o := range c.orphans {
		if o.Number < horizon && o.Complete() {
			delete(c.orphans, hash)
		}
	}
}

// ReclaimTail clips the tail forward by count blocks once the chain has
// grown past the persistence horizon, returning the clipped headers for
// the listener's save-blocks callback.
func (c *Chain) ReclaimTail(count uint64) []*Header {
	c.mu.Lock()
	defer c.mu.Unlock()

	var reclaimed []*Header
	cur := c.tail
	for i := uint64(0); i < count; i++ {
		next, ok := findChild(c.chained, cur.Hash)
		if !ok || next.Hash == c.head.Hash {
			break
		}
		reclaimed = append(reclaimed, cur)
		cur = next
	}
	c.tail = cur
	for _, h := range reclaimed {
		delete(c.chained, h.Hash)
	}
	return reclaimed
}

func findChild(chained map[corechain.Hash]*Header, parent corechain.Hash) (*Header, bool) {
	for _, b := range chained {
		if b.ParentHash == parent {
			return b, true
		}
	}
	return nil, false
}
