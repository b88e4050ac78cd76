package bcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
)

func TestDecideNeededDataReceiptsGatedByBloom(t *testing.T) {
	e := &Engine{ManagedAddress: testAddr}

	cold := header(1, 1, 0, 100)
	e.decideNeededData(cold)
	assert.Equal(t, StatusNeeded, cold.Transactions, "bodies are always needed")
	assert.Equal(t, StatusComplete, cold.Receipts, "an empty bloom rules the address out")
	assert.Equal(t, StatusComplete, cold.AccountState)
	assert.Equal(t, StatusComplete, cold.HeaderProof)

	hot := header(2, 2, 1, 200)
	hot.LogsBloom = bloomWithData(testAddr)
	e.decideNeededData(hot)
	assert.Equal(t, StatusNeeded, hot.Receipts, "a bloom hit requires the receipts")
}

func TestDecideNeededDataHeaderProofOnCHTBoundary(t *testing.T) {
	e := &Engine{}

	boundary := header(3, chtPeriod, 2, 300)
	e.decideNeededData(boundary)
	assert.Equal(t, StatusNeeded, boundary.HeaderProof)

	ordinary := header(4, chtPeriod+1, 3, 400)
	e.decideNeededData(ordinary)
	assert.Equal(t, StatusComplete, ordinary.HeaderProof)
}

func TestHandleAnnouncementUnwindsOnReorg(t *testing.T) {
	genesis := header(0, 0, 0, 0)
	c := NewChain(genesis)
	b1 := header(1, 1, 0, 100)
	b2 := header(2, 2, 1, 200)
	c.Extend(b1)
	c.Extend(b2)

	// The replacement branch the announcing peer serves for [1, 2].
	r1 := header(8, 1, 0, 150)
	r2 := header(9, 2, 8, 250)
	byNumber := map[uint64]*Header{1: r1, 2: r2}

	e := &Engine{
		Chain: c,
		Searcher: &Searcher{
			FetchHeaders: func(ctx context.Context, numbers []uint64) ([]*Header, error) {
				out := make([]*Header, 0, len(numbers))
				for _, n := range numbers {
					out = append(out, byNumber[n])
				}
				return out, nil
			},
		},
	}

	require.NoError(t, e.HandleAnnouncement(context.Background(), Announcement{
		HeadHash:   r2.Hash,
		HeadNumber: 2,
		ReorgDepth: 2,
	}))

	assert.Equal(t, r2.Hash, c.Head().Hash)
	orphanHashes := map[corechain.Hash]bool{}
	for _, o := range c.Orphans() {
		orphanHashes[o.Hash] = true
	}
	assert.True(t, orphanHashes[b1.Hash])
	assert.True(t, orphanHashes[b2.Hash])
	assertInvariant(t, c)
}

func TestFetchHeadersResubmitsOnNodeInactive(t *testing.T) {
	want := []*Header{header(1, 1, 0, 100)}
	calls := 0
	e := &Engine{
		Searcher: &Searcher{
			FetchHeaders: func(ctx context.Context, numbers []uint64) ([]*Header, error) {
				calls++
				if calls == 1 {
					return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "node inactive", nil, nil)
				}
				return want, nil
			},
		},
	}

	got, err := e.fetchHeaders(context.Background(), []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, calls, "a NODE_INACTIVE failure resubmits transparently")
}

func TestFetchHeadersTerminatesOnNonRetryableError(t *testing.T) {
	calls := 0
	e := &Engine{
		Searcher: &Searcher{
			FetchHeaders: func(ctx context.Context, numbers []uint64) ([]*Header, error) {
				calls++
				return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed header", nil)
			},
		},
	}

	_, err := e.fetchHeaders(context.Background(), []uint64{1})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a non-retryable failure terminates the sync without resubmission")
}

func TestFetchHeadersGivesUpAfterSecondNodeInactive(t *testing.T) {
	calls := 0
	e := &Engine{
		Searcher: &Searcher{
			FetchHeaders: func(ctx context.Context, numbers []uint64) ([]*Header, error) {
				calls++
				return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "node inactive", nil, nil)
			},
		},
	}

	_, err := e.fetchHeaders(context.Background(), []uint64{1})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
