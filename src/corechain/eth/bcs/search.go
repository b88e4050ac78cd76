package bcs

import (
	"context"
	"math/big"
)

// maxHeadersPerRequest is the largest linear header batch a single peer
// request may cover.
const maxHeadersPerRequest = 192

// narySmall is the size of the validated linear tail
// appended to every N-ary split, and the sub-sync size once a moderate
// range is split into consecutive linear chunks.
const narySmall = 64

// naryLinearLarge bounds how large a range may be and still be handled as
// consecutive SMALL-sized linear sub-syncs rather than a full N-ary split.
const naryLinearLarge = narySmall * 8

// AccountState is the minimal per-block account snapshot the N-ary search
// diffs to discover blocks of interest: each consecutive pair of headers
// whose account state differs is recursively synced.
type AccountState struct {
	Nonce   uint64
	Balance *big.Int
}

// Equal reports whether two snapshots are identical.
func (a AccountState) Equal(b AccountState) bool {
	if a.Nonce != b.Nonce {
		return false
	}
	if (a.Balance == nil) != (b.Balance == nil) {
		return false
	}
	return a.Balance == nil || a.Balance.Cmp(b.Balance) == 0
}

// tileRange tiles a range exactly: scan count in [100,191]
// and pick the count with the smallest remainder (highest count breaks
// ties), then step = range / count.
func tileRange(rangeLen uint64) (step uint64, count int) {
	bestCount := 100
	bestRemainder := rangeLen % 100
	for c := 101; c <= 191; c++ {
		r := rangeLen % uint64(c)
		if r < bestRemainder || (r == bestRemainder && c > bestCount) {
			bestRemainder = r
			bestCount = c
		}
	}
	return rangeLen / uint64(bestCount), bestCount
}

// FetchHeaders retrieves headers at the given block numbers, in order.
type FetchHeaders func(ctx context.Context, numbers []uint64) ([]*Header, error)

// FetchAccountState retrieves the managed address's account snapshot as of
// a given header.
type FetchAccountState func(ctx context.Context, h *Header) (AccountState, error)

// OnBlockOfInterest is called once for every header the search concludes
// warrants full data retrieval (an exact leaf range where the account
// state is known to have changed, or a linear range examined directly).
type OnBlockOfInterest func(ctx context.Context, h *Header) error

// Searcher runs the N-ary search sync strategy for one address between a
// known-good tail and a target head.
type Searcher struct {
	FetchHeaders      FetchHeaders
	FetchAccountState FetchAccountState
	OnBlockOfInterest OnBlockOfInterest
}

// Sync discovers every block in (tail, head] where the account changed,
// splitting three ways on range size: one linear request, consecutive
// linear chunks, or an N-ary parent with a validated linear tail.
func (s *Searcher) Sync(ctx context.Context, tail, head uint64) error {
	rangeLen := head - tail
	switch {
	case rangeLen <= maxHeadersPerRequest:
		return s.syncLinear(ctx, tail, head)
	case rangeLen <= naryLinearLarge:
		return s.syncLinearChunks(ctx, tail, head)
	default:
		naryHead := head - narySmall
		if err := s.syncNary(ctx, tail, naryHead); err != nil {
			return err
		}
		return s.Sync(ctx, naryHead, head)
	}
}

// syncLinear requests every header in [tail, head] individually — the base
// case, small enough for one batched request.
func (s *Searcher) syncLinear(ctx context.Context, tail, head uint64) error {
	numbers := make([]uint64, 0, head-tail+1)
	for n := tail; n <= head; n++ {
		numbers = append(numbers, n)
	}
	headers, err := s.FetchHeaders(ctx, numbers)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := s.OnBlockOfInterest(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// syncLinearChunks splits a moderate range into consecutive SMALL-sized
// linear sub-syncs.
func (s *Searcher) syncLinearChunks(ctx context.Context, tail, head uint64) error {
	for lo := tail; lo < head; lo += narySmall {
		hi := lo + narySmall
		if hi > head {
			hi = head
		}
		if err := s.syncLinear(ctx, lo, hi); err != nil {
			return err
		}
	}
	return nil
}

// syncNary runs one round of the N-ary search over [tail, head]: fetch
// count+1 evenly spaced headers, fetch the account state at each, and
// recursively sync every consecutive pair whose state differs.
func (s *Searcher) syncNary(ctx context.Context, tail, head uint64) error {
	if head <= tail {
		return nil
	}
	step, count := tileRange(head - tail)

	numbers := make([]uint64, 0, count+1)
	for i := 0; i <= count; i++ {
		n := tail + uint64(i)*step
		if i == count {
			// The tiling remainder rides on the last sub-range, so the
			// probe grid always reaches head exactly.
			n = head
		}
		numbers = append(numbers, n)
	}
	headers, err := s.FetchHeaders(ctx, numbers)
	if err != nil {
		return err
	}

	states := make([]AccountState, len(headers))
	for i, h := range headers {
		st, err := s.FetchAccountState(ctx, h)
		if err != nil {
			return err
		}
		states[i] = st
	}

	for i := 1; i < len(headers); i++ {
		if states[i-1].Equal(states[i]) {
			continue
		}
		if err := s.Sync(ctx, headers[i-1].Number, headers[i].Number); err != nil {
			return err
		}
	}
	return nil
}
