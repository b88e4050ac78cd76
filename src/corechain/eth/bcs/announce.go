package bcs

import (
	"context"
	"math/big"

	"github.com/arcsign/walletcore/corechain"
)

// chtPeriod is the block spacing of canonical hash trie roots; only a
// header sitting on a CHT boundary needs a header-proof.
const chtPeriod = 4096

// Announcement is a peer-reported chain head.
type Announcement struct {
	HeadHash        corechain.Hash
	HeadNumber      uint64
	TotalDifficulty *big.Int
	ReorgDepth      uint64
	SyncInProgress  bool
}

// Engine ties a Chain to a Searcher and a header fetcher: unwind on
// reorg, request the affected header range, then run each new header
// through Chain.Extend.
type Engine struct {
	Chain    *Chain
	Searcher *Searcher

	// Dispatcher receives NotifyChained for every block Extend accepts
	// without orphaning, driving the 500-block persistence reclaim and the
	// re-pending of transactions whose block is later orphaned.
	Dispatcher *Dispatcher

	// ManagedAddress is the 20-byte address whose transactions and logs
	// this engine tracks; each accepted header's logsBloom is tested
	// against it to decide whether the block's receipts are worth
	// fetching. Empty disables the bloom test (receipts always needed).
	ManagedAddress []byte
}

// HandleAnnouncement processes one peer announcement.
func (e *Engine) HandleAnnouncement(ctx context.Context, a Announcement) error {
	if a.ReorgDepth > 0 && !a.SyncInProgress {
		e.Chain.Unwind(a.ReorgDepth)
	}

	tail := a.HeadNumber - a.ReorgDepth
	head := a.HeadNumber

	numbers := make([]uint64, 0, head-tail+1)
	for n := tail; n <= head; n++ {
		numbers = append(numbers, n)
	}
	headers, err := e.fetchHeaders(ctx, numbers)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := e.HandleHeader(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// HandleHeader runs one received header through Chain.Extend, discarding
// duplicates and invalid headers, issuing a recovery sync when a gap is
// found, and otherwise notifying the dispatcher of the extension.
func (e *Engine) HandleHeader(ctx context.Context, h *Header) error {
	if h == nil || h.Hash.IsZero() {
		return nil
	}
	if err := ValidateDifficulty(h); err != nil {
		return nil
	}
	if _, exists := e.Chain.Block(h.Hash); exists {
		return nil
	}

	e.decideNeededData(h)

	needsSync, fromNumber := e.Chain.Extend(h)
	if needsSync {
		return e.Searcher.Sync(ctx, fromNumber, h.Number)
	}
	if e.Dispatcher != nil {
		e.Dispatcher.NotifyChained()
	}
	return nil
}

// decideNeededData marks which per-block data kinds a newly received
// header still requires: bodies always (transaction matches can only be
// confirmed against the full body), receipts only when the header's
// logsBloom may contain the managed address, account state only if bodies
// do not suffice (never, for a bodies-first sync), and a header proof only
// on a CHT boundary.
func (e *Engine) decideNeededData(h *Header) {
	h.Transactions = StatusNeeded

	h.Receipts = StatusComplete
	if len(e.ManagedAddress) == 0 || NewAddressFilter(h.LogsBloom).MayMatchAddress(e.ManagedAddress) {
		h.Receipts = StatusNeeded
	}

	h.AccountState = StatusComplete

	h.HeaderProof = StatusComplete
	if h.Number != 0 && h.Number%chtPeriod == 0 {
		h.HeaderProof = StatusNeeded
	}
}

// fetchHeaders runs one header request through the provision protocol: a
// NODE_INACTIVE failure is resubmitted once, transparently, against
// whatever endpoint the underlying client rotates to next; any other
// failure (or a second NODE_INACTIVE) terminates the containing sync.
func (e *Engine) fetchHeaders(ctx context.Context, numbers []uint64) ([]*Header, error) {
	var headers []*Header
	accept := func(payload interface{}) error {
		headers = payload.([]*Header)
		return nil
	}

	result := e.headersAttempt(ctx, numbers)
	resubmitted := false
	if err := HandleResult(result, func() {
		resubmitted = true
		result = e.headersAttempt(ctx, numbers)
	}, accept); err != nil {
		return nil, err
	}
	if !resubmitted {
		return headers, nil
	}

	if err := HandleResult(result, func() {}, accept); err != nil {
		return nil, err
	}
	if headers == nil {
		return nil, &ProvisionError{Type: ProvisionHeaders, Reason: result.ErrorReason}
	}
	return headers, nil
}

// headersAttempt issues one FetchHeaders call and wraps its outcome as a
// ProvisionResult, classifying retryable transport failures as
// NODE_INACTIVE so HandleResult resubmits them.
func (e *Engine) headersAttempt(ctx context.Context, numbers []uint64) ProvisionResult {
	headers, err := e.Searcher.FetchHeaders(ctx, numbers)
	if err != nil {
		reason := err.Error()
		if corechain.IsRetryable(err) {
			reason = NodeInactive
		}
		return ProvisionResult{Type: ProvisionHeaders, ErrorReason: reason}
	}
	return ProvisionResult{Type: ProvisionHeaders, Success: true, Payload: headers}
}
