package bcs

import (
	"context"
	"sync"
	"time"

	"github.com/arcsign/walletcore/corechain"
)

// dispatchPeriod is the interval of the periodic status-query timer.
const dispatchPeriod = 7 * time.Second

// reclaimInterval is how many new chained blocks trigger one persistence
// reclaim round.
const reclaimInterval = 500

// QueryStatuses asks every available peer for the current status of the
// given transaction hashes, returning one report per (peer, hash) pair
// observed. The dispatcher itself is peer-count-agnostic: it only needs
// the deduplicated hash set and a way to fan the query out.
type QueryStatuses func(ctx context.Context, hashes []corechain.Hash) ([]StatusReport, error)

// StatusReport is one peer's answer for one hash, fed into a Reconciler.
type StatusReport struct {
	Hash   corechain.Hash
	Status TxStatus
}

// SaveBlocks persists a reclaimed tail range to the embedder's store.
type SaveBlocks func(headers []*Header)

// Dispatcher owns the chain, the pending transaction/log hash sets, and
// the periodic status-query timer plus the 500-block persistence reclaim.
type Dispatcher struct {
	chain       *Chain
	reconciler  *Reconciler
	queryPeers  QueryStatuses
	saveBlocks  SaveBlocks
	period      time.Duration
	reclaimSize uint64

	mu          sync.Mutex
	pendingTx   map[corechain.Hash]struct{}
	pendingLogs map[corechain.Hash]corechain.Hash // log hash -> owning tx hash
	included    map[corechain.Hash][]corechain.Hash // block hash -> tx hashes definitively included there

	// OnRePended is invoked, outside the lock, for every transaction
	// re-pended because its block was orphaned, so the owning sub-manager
	// can demote the corresponding transfer back to pending.
	OnRePended func(txHash corechain.Hash)

	blocksSinceReclaim uint64

	stopCh  chan struct{}
	stopped bool
}

// NewDispatcher builds a Dispatcher around chain. queryPeers and
// saveBlocks implement the embedder-facing side of status polling and
// block persistence.
func NewDispatcher(chain *Chain, queryPeers QueryStatuses, saveBlocks SaveBlocks) *Dispatcher {
	return &Dispatcher{
		chain:       chain,
		reconciler:  NewReconciler(),
		queryPeers:  queryPeers,
		saveBlocks:  saveBlocks,
		period:      dispatchPeriod,
		reclaimSize: reclaimInterval,
		pendingTx:   map[corechain.Hash]struct{}{},
		pendingLogs: map[corechain.Hash]corechain.Hash{},
		included:    map[corechain.Hash][]corechain.Hash{},
		stopCh:      make(chan struct{}),
	}
}

// MarkIncluded records that txHash's transaction arrived in a chained
// block — the sole definitive inclusion signal — un-pending it from
// status polling while remembering the block association so a later
// orphaning of that block re-pends it.
func (d *Dispatcher) MarkIncluded(txHash, blockHash corechain.Hash) {
	d.mu.Lock()
	delete(d.pendingTx, txHash)
	d.included[blockHash] = append(d.included[blockHash], txHash)
	d.mu.Unlock()
	d.reconciler.Forget(txHash)
}

// HandleOrphaned moves every transaction definitively included in
// blockHash back to the pending set for status re-resolution; wire it to
// Chain.OnOrphaned.
func (d *Dispatcher) HandleOrphaned(blockHash corechain.Hash) {
	d.mu.Lock()
	txs := d.included[blockHash]
	delete(d.included, blockHash)
	for _, tx := range txs {
		d.pendingTx[tx] = struct{}{}
	}
	cb := d.OnRePended
	d.mu.Unlock()
	for _, tx := range txs {
		d.reconciler.Forget(tx)
		if cb != nil {
			cb(tx)
		}
	}
}

// IsPending reports whether txHash is currently in the status-query set.
func (d *Dispatcher) IsPending(txHash corechain.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pendingTx[txHash]
	return ok
}

// HandleReports feeds externally delivered status reports (a
// TRANSACTION_STATUSES provision result) through the two-of-a-kind
// reconciler, exactly as a timed dispatch round would.
func (d *Dispatcher) HandleReports(reports []StatusReport) {
	for _, r := range reports {
		if d.reconciler.Report(r.Hash, r.Status) {
			d.unpend(r.Hash)
		}
	}
}

// PendTransaction adds hash to the set queried every dispatch round.
func (d *Dispatcher) PendTransaction(hash corechain.Hash) {
	d.mu.Lock()
	d.pendingTx[hash] = struct{}{}
	d.mu.Unlock()
}

// PendLog adds a log, owned by txHash, to the set queried every round (its
// owning transaction's hash is what's actually queried).
func (d *Dispatcher) PendLog(logHash, txHash corechain.Hash) {
	d.mu.Lock()
	d.pendingLogs[logHash] = txHash
	d.mu.Unlock()
}

// Run starts the periodic dispatcher loop; it returns when ctx is
// cancelled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

// dispatchOnce builds the deduplicated hash set and asks all peers for
// status, feeding every report through the two-of-a-kind reconciler.
func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	d.mu.Lock()
	seen := make(map[corechain.Hash]struct{}, len(d.pendingTx)+len(d.pendingLogs))
	for h := range d.pendingTx {
		seen[h] = struct{}{}
	}
	for _, txHash := range d.pendingLogs {
		seen[txHash] = struct{}{}
	}
	hashes := make([]corechain.Hash, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	d.mu.Unlock()

	if len(hashes) == 0 || d.queryPeers == nil {
		return
	}
	reports, err := d.queryPeers(ctx, hashes)
	if err != nil {
		return
	}
	for _, r := range reports {
		if d.reconciler.Report(r.Hash, r.Status) {
			d.unpend(r.Hash)
		}
	}
}

func (d *Dispatcher) unpend(hash corechain.Hash) {
	d.mu.Lock()
	delete(d.pendingTx, hash)
	for logHash, tx := range d.pendingLogs {
		if tx == hash {
			delete(d.pendingLogs, logHash)
		}
	}
	d.mu.Unlock()
	d.reconciler.Forget(hash)
}

// NotifyChained must be called once per newly chained block; it drives the
// 500-block persistence reclaim.
func (d *Dispatcher) NotifyChained() {
	d.mu.Lock()
	d.blocksSinceReclaim++
	due := d.blocksSinceReclaim >= d.reclaimSize
	if due {
		d.blocksSinceReclaim = 0
	}
	d.mu.Unlock()

	if due && d.saveBlocks != nil {
		reclaimed := d.chain.ReclaimTail(d.reclaimSize)
		if len(reclaimed) > 0 {
			d.saveBlocks(reclaimed)
		}
	}
}

// Stop ends the dispatcher's periodic loop.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	close(d.stopCh)
}
