package manager

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/model"
	"github.com/arcsign/walletcore/wallet"
)

const testChainType corechain.ChainType = "test-mgr-chain"

var installTestHandlersOnce sync.Once

func installTestHandlers(t *testing.T) {
	t.Helper()
	installTestHandlersOnce.Do(func() { installTestHandlersNow(t) })
}

func installTestHandlersNow(t *testing.T) {
	h := &corechain.Handlers{
		Type: testChainType,
		Account: corechain.AccountHandlers{
			FromSeed:          func([]byte) (interface{}, error) { return nil, nil },
			FromPublicKey:     func([]byte) (interface{}, error) { return nil, nil },
			FromSerialization: func([]byte) (interface{}, error) { return nil, nil },
			ToSerialization:   func(interface{}) []byte { return nil },
			Address:           func(interface{}) (corechain.ChainAddress, error) { return nil, nil },
		},
		Address: corechain.AddressHandlers{
			String: func(corechain.ChainAddress) string { return "" },
			Equal:  func(a, b corechain.ChainAddress) bool { return true },
		},
		Transfer: corechain.TransferHandlers{
			Build: func(interface{}, corechain.ChainAddress, *big.Int, corechain.ChainFeeBasis) (corechain.ChainTransfer, error) {
				return nil, nil
			},
			Sign:    func(corechain.ChainTransfer, *corechain.Key) error { return nil },
			Sources: func(corechain.ChainTransfer) []corechain.ChainAddress { return nil },
			Targets: func(corechain.ChainTransfer) []corechain.ChainAddress { return nil },
			Amount:  func(corechain.ChainTransfer) *big.Int { return nil },
			Fee:     func(corechain.ChainTransfer) corechain.ChainFeeBasis { return nil },
			Hash:    func(corechain.ChainTransfer) corechain.Hash { return corechain.Hash{} },
		},
		Wallet: corechain.WalletHandlers{
			Create:  func(interface{}) (interface{}, error) { return "sub-wallet", nil },
			Balance: func(interface{}) (*big.Int, error) { return big.NewInt(0), nil },
			GetAddress: func(interface{}, corechain.AddressScheme) (corechain.ChainAddress, error) {
				return nil, nil
			},
			SetDefaultFeeBasis: func(interface{}, corechain.ChainFeeBasis) error { return nil },
			EstimateFee: func(interface{}, corechain.ChainAddress, *big.Int) (corechain.ChainFeeBasis, error) {
				return nil, nil
			},
		},
		Manager: corechain.ManagerHandlers{
			RecoverTransfer: func(interface{}, corechain.TransferRecoveryFields) (corechain.ChainTransfer, error) {
				return nil, nil
			},
		},
	}
	require.NoError(t, corechain.DefaultRegistry().Install(h))
}

func testNetwork() *model.Network {
	n := model.NewNetwork("test-net", "Test Net", testChainType, false, 6, nil)
	n.AddCurrency(model.NewCurrency("native", "Native", "NAT"))
	return n
}

type fakeSubManager struct {
	mu           sync.Mutex
	connectCalls int
	syncCalls    int
	stopped      bool
}

func (f *fakeSubManager) ChainType() corechain.ChainType { return testChainType }
func (f *fakeSubManager) Connect(ctx context.Context, peer string) error {
	f.mu.Lock()
	f.connectCalls++
	f.mu.Unlock()
	return nil
}
func (f *fakeSubManager) Disconnect(ctx context.Context) error { return nil }
func (f *fakeSubManager) Sync(ctx context.Context) error {
	f.mu.Lock()
	f.syncCalls++
	f.mu.Unlock()
	return nil
}
func (f *fakeSubManager) SyncToDepth(ctx context.Context, depth uint64) error { return nil }
func (f *fakeSubManager) Sign(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer, key *corechain.Key) error {
	return nil
}
func (f *fakeSubManager) Submit(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	return nil
}
func (f *fakeSubManager) SubmitSigned(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	return nil
}
func (f *fakeSubManager) SetMode(ctx context.Context, mode int) error { return nil }
func (f *fakeSubManager) SetNetworkReachable(reachable bool)         {}
func (f *fakeSubManager) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

var _ corechain.SubManager = (*fakeSubManager)(nil)

type recordingListener struct {
	mu     sync.Mutex
	events []Event
	trace  []string
}

func (l *recordingListener) OnManagerEvent(m *Manager, e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.trace = append(l.trace, e.Kind.String())
	l.mu.Unlock()
}

func (l *recordingListener) OnWalletEvent(m *Manager, w *wallet.Wallet, e wallet.Event) {
	l.mu.Lock()
	l.trace = append(l.trace, e.Kind.String())
	l.mu.Unlock()
}

func (l *recordingListener) OnTransferEvent(m *Manager, w *wallet.Wallet, tr *model.Transfer, e TransferEvent) {
	l.mu.Lock()
	l.trace = append(l.trace, e.Kind.String())
	l.mu.Unlock()
}

func (l *recordingListener) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

func (l *recordingListener) traceCopy() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.trace))
	copy(out, l.trace)
	return out
}

func newTestManager(t *testing.T, sub *fakeSubManager, listener *recordingListener) *Manager {
	t.Helper()
	installTestHandlers(t)

	m, err := New(Config{
		ChainType: testChainType,
		Account:   &account.Account{UIDS: "uid"},
		Network:   testNetwork(),
		Listener:  listener,
		NewSubManager: func(*Manager) (corechain.SubManager, error) {
			return sub, nil
		},
	})
	require.NoError(t, err)
	return m
}

func TestManagerCreationEventOrder(t *testing.T) {
	listener := &recordingListener{}
	m := newTestManager(t, &fakeSubManager{}, listener)

	assert.Equal(t,
		[]string{"MANAGER_CREATED", "WALLET_CREATED", "MANAGER_WALLET_ADDED"},
		listener.traceCopy())
	assert.Equal(t, StateCreated, m.State())
	assert.Contains(t, m.Wallets(), m.PrimaryWallet())
}

func TestManagerPersistedTransferReplayEventOrder(t *testing.T) {
	installTestHandlers(t)
	listener := &recordingListener{}

	native := model.NewCurrency("native", "Native", "NAT")
	unit := model.NewBaseUnit(native, "native-base", "Native", "NAT")
	persisted := model.NewTransfer(testChainType,
		model.NewGenericAddress(testChainType, []byte("from")),
		model.NewGenericAddress(testChainType, []byte("to")),
		model.NewAmountFromUint64(10, unit), unit, nil, model.DirectionReceived)

	_, err := New(Config{
		ChainType: testChainType,
		Account:   &account.Account{UIDS: "uid"},
		Network:   testNetwork(),
		Listener:  listener,
		LoadPersistedTransfers: func() ([]*model.Transfer, error) {
			return []*model.Transfer{persisted}, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"MANAGER_CREATED", "WALLET_CREATED", "MANAGER_WALLET_ADDED",
		"TRANSFER_CREATED", "WALLET_TRANSFER_ADDED", "WALLET_BALANCE_UPDATED",
	}, listener.traceCopy())
}

func TestManagerConnectTransitionsThroughSyncingToConnected(t *testing.T) {
	listener := &recordingListener{}
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, listener)

	require.NoError(t, m.Connect(context.Background(), ""))
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 1, sub.connectCalls)
	assert.Equal(t, 1, sub.syncCalls)

	kinds := listener.kinds()
	assert.Contains(t, kinds, EventChanged)
	assert.Contains(t, kinds, EventSyncStarted)
	assert.Contains(t, kinds, EventSyncStopped)
}

func TestManagerRepeatedConnectIsNoOp(t *testing.T) {
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, &recordingListener{})

	require.NoError(t, m.Connect(context.Background(), ""))
	require.NoError(t, m.Connect(context.Background(), ""))
	assert.Equal(t, 1, sub.connectCalls, "connect from CONNECTED must be a no-op")
}

func TestManagerDisconnectSetsState(t *testing.T) {
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, &recordingListener{})

	require.NoError(t, m.Connect(context.Background(), ""))
	require.NoError(t, m.Disconnect(context.Background(), "user requested"))
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManagerSurvivesConcurrentLifecycleCalls(t *testing.T) {
	sub := &fakeSubManager{}
	listener := &recordingListener{}
	m := newTestManager(t, sub, listener)
	m.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := context.Background()
			for j := 0; j < 25; j++ {
				switch (n + j) % 4 {
				case 0:
					_ = m.Connect(ctx, "")
				case 1:
					_ = m.Disconnect(ctx, "test")
				case 2:
					_ = m.Sync(ctx)
				case 3:
					_ = m.SetMode(ctx, Mode((n+j)%4))
				}
			}
		}(i)
	}
	wg.Wait()
	m.Stop()

	assert.Equal(t, StateDeleted, m.State())
	assert.True(t, sub.stopped)

	// Every MANAGER_CHANGED in the trace must report a transition between
	// legal states; concurrency must never fabricate an impossible pair.
	for _, e := range listener.events {
		if e.Kind != EventChanged {
			continue
		}
		assert.NotEqual(t, e.OldState, e.NewState)
		assert.LessOrEqual(t, int(e.NewState), int(StateDeleted))
	}
}

func TestManagerSetModeWhileConnectedResyncs(t *testing.T) {
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, &recordingListener{})

	require.NoError(t, m.Connect(context.Background(), ""))
	before := sub.syncCalls
	require.NoError(t, m.SetMode(context.Background(), ModeBRDWithP2PSend))
	assert.Equal(t, before+1, sub.syncCalls, "a mode change while connected triggers a fresh sync")
}

func TestManagerSetModeWhileDisconnectedIsSilent(t *testing.T) {
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, &recordingListener{})

	require.NoError(t, m.SetMode(context.Background(), ModeP2POnly))
	assert.Zero(t, sub.syncCalls)
	assert.Equal(t, StateCreated, m.State())
}

func TestManagerRecordsEventsThroughAuditTrail(t *testing.T) {
	installTestHandlers(t)
	dir := t.TempDir()

	m, err := New(Config{
		ChainType:   testChainType,
		Account:     &account.Account{UIDS: "uid"},
		Network:     testNetwork(),
		Listener:    &recordingListener{},
		StoragePath: dir,
	})
	require.NoError(t, err)
	m.Stop()

	raw, err := os.ReadFile(filepath.Join(dir, "events.ndjson"))
	require.NoError(t, err)
	trail := string(raw)
	assert.Contains(t, trail, "MANAGER_CREATED")
	assert.Contains(t, trail, "WALLET_CREATED")
	assert.Contains(t, trail, "MANAGER_WALLET_ADDED")
}

func TestManagerReportBlockHeightIsMonotonic(t *testing.T) {
	listener := &recordingListener{}
	m := newTestManager(t, &fakeSubManager{}, listener)

	m.ReportBlockHeight(100)
	m.ReportBlockHeight(50) // stale, dropped
	m.ReportBlockHeight(101)

	assert.Equal(t, uint64(101), m.Network.Height())
	var heights []uint64
	for _, e := range listener.events {
		if e.Kind == EventBlockHeightUpdated {
			heights = append(heights, e.Height)
		}
	}
	assert.Equal(t, []uint64{100, 101}, heights)
}

func TestManagerUnregisterWallet(t *testing.T) {
	listener := &recordingListener{}
	m := newTestManager(t, &fakeSubManager{}, listener)

	assert.False(t, m.UnregisterWallet(m.PrimaryWallet()), "the primary wallet is never removable")

	native := model.NewCurrency("tok", "Token", "TOK")
	unit := model.NewBaseUnit(native, "tok-base", "Token", "TOK")
	w := wallet.New(testChainType, unit, unit, nil, nil)
	m.RegisterWallet(w)
	require.Contains(t, m.Wallets(), w)

	assert.True(t, m.UnregisterWallet(w))
	assert.NotContains(t, m.Wallets(), w)
	assert.Equal(t, wallet.StateDeleted, w.State())
	assert.Contains(t, listener.traceCopy(), "MANAGER_WALLET_DELETED")
}

func TestManagerStopStopsSubManagerAndDeletes(t *testing.T) {
	sub := &fakeSubManager{}
	m := newTestManager(t, sub, &recordingListener{})
	m.Start(context.Background())

	m.Stop()
	assert.True(t, sub.stopped)
	assert.Equal(t, StateDeleted, m.State())
}
