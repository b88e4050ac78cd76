package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordMsg struct {
	n   int
	out *[]int
	mu  *sync.Mutex
	wg  *sync.WaitGroup
}

func (m recordMsg) Handle(ctx context.Context) {
	defer m.wg.Done()
	m.mu.Lock()
	*m.out = append(*m.out, m.n)
	m.mu.Unlock()
}

func TestLoopDeliversInFIFOOrder(t *testing.T) {
	l := NewLoop(16)
	l.Start(context.Background())
	defer l.Stop()

	var mu sync.Mutex
	var out []int
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		l.Post(recordMsg{n: i, out: &out, mu: &mu, wg: &wg})
	}
	wg.Wait()

	require.Len(t, out, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, out[i])
	}
}

func TestLoopStartTwiceIsNoOp(t *testing.T) {
	l := NewLoop(4)
	l.Start(context.Background())
	l.Start(context.Background())
	l.Stop()
}

func TestLoopPostAfterStopIsSilentNoOp(t *testing.T) {
	l := NewLoop(4)
	l.Start(context.Background())
	l.Stop()

	var mu sync.Mutex
	var out []int
	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		l.Post(recordMsg{n: 1, out: &out, mu: &mu, wg: &wg})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post after Stop must not block")
	}
	mu.Lock()
	assert.Empty(t, out)
	mu.Unlock()
}
