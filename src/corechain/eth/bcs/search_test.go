package bcs

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileRangeExactTiling(t *testing.T) {
	// 15000 divides evenly by several counts in [100,191]; the highest
	// (150) wins the tie on remainder 0.
	step, count := tileRange(15000)
	assert.Equal(t, 150, count)
	assert.Equal(t, uint64(100), step)
	assert.Equal(t, uint64(0), 15000%uint64(count))
}

func TestTileRangePicksSmallestRemainder(t *testing.T) {
	for _, rangeLen := range []uint64{1000, 12345, 99991, 1 << 20} {
		step, count := tileRange(rangeLen)
		require.GreaterOrEqual(t, count, 100)
		require.LessOrEqual(t, count, 191)
		require.Equal(t, rangeLen/uint64(count), step)

		best := rangeLen % uint64(count)
		for c := 100; c <= 191; c++ {
			assert.LessOrEqual(t, best, rangeLen%uint64(c),
				"count %d has a smaller remainder than the chosen %d for range %d", c, count, rangeLen)
		}
	}
}

// searchHarness fabricates headers on demand and answers account-state
// queries from a single step function: nonce 0 strictly below changeAt,
// nonce 1 at and above it.
type searchHarness struct {
	changeAt     uint64
	headerRounds int
	stateQueries int
	examined     map[uint64]bool
}

func newSearchHarness(changeAt uint64) *searchHarness {
	return &searchHarness{changeAt: changeAt, examined: map[uint64]bool{}}
}

func (s *searchHarness) fetchHeaders(ctx context.Context, numbers []uint64) ([]*Header, error) {
	s.headerRounds++
	out := make([]*Header, 0, len(numbers))
	for _, n := range numbers {
		var h Header
		h.Number = n
		h.Hash[0] = byte(n >> 16)
		h.Hash[1] = byte(n >> 8)
		h.Hash[2] = byte(n)
		h.Hash[3] = 1
		h.TotalDifficulty = big.NewInt(int64(n + 1))
		out = append(out, &h)
	}
	return out, nil
}

func (s *searchHarness) fetchAccountState(ctx context.Context, h *Header) (AccountState, error) {
	s.stateQueries++
	if h.Number >= s.changeAt {
		return AccountState{Nonce: 1, Balance: big.NewInt(5)}, nil
	}
	return AccountState{Nonce: 0, Balance: big.NewInt(0)}, nil
}

func (s *searchHarness) onBlockOfInterest(ctx context.Context, h *Header) error {
	s.examined[h.Number] = true
	return nil
}

func TestNarySearchFindsSingleChangeBlock(t *testing.T) {
	const head = uint64(100000)
	const changeAt = uint64(54321)

	harness := newSearchHarness(changeAt)
	s := &Searcher{
		FetchHeaders:      harness.fetchHeaders,
		FetchAccountState: harness.fetchAccountState,
		OnBlockOfInterest: harness.onBlockOfInterest,
	}

	require.NoError(t, s.Sync(context.Background(), 0, head))

	assert.True(t, harness.examined[changeAt],
		"the block where the account changed must be examined header-by-header")

	// O(log(range)/log(count)) rounds: a 100k range with count >= 100
	// needs two or three N-ary levels plus a handful of linear leaves,
	// nowhere near one request per block.
	assert.Less(t, harness.headerRounds, 60, "header request rounds must stay logarithmic")
	assert.Less(t, harness.stateQueries, 1500, "account-state probes must stay bounded")
}

func TestNarySearchSkipsUnchangedRanges(t *testing.T) {
	// No account change anywhere: the search must never recurse into a
	// sub-range, only the N-ary probes and the validated linear tail run.
	harness := newSearchHarness(1 << 62)
	s := &Searcher{
		FetchHeaders:      harness.fetchHeaders,
		FetchAccountState: harness.fetchAccountState,
		OnBlockOfInterest: harness.onBlockOfInterest,
	}

	require.NoError(t, s.Sync(context.Background(), 0, 100000))

	for n := range harness.examined {
		assert.GreaterOrEqual(t, n, uint64(100000-narySmall),
			"only the linear tail may be examined when no state changed")
	}
}

func TestSyncSmallRangeIsOneLinearRequest(t *testing.T) {
	harness := newSearchHarness(50)
	s := &Searcher{
		FetchHeaders:      harness.fetchHeaders,
		FetchAccountState: harness.fetchAccountState,
		OnBlockOfInterest: harness.onBlockOfInterest,
	}

	require.NoError(t, s.Sync(context.Background(), 0, 100))
	assert.Equal(t, 1, harness.headerRounds)
	assert.Zero(t, harness.stateQueries, "a linear sync never probes account state")
	assert.True(t, harness.examined[50])
}
