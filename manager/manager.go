// Package manager implements the WalletManager: lifecycle state machine,
// event loop, dispatch to per-chain sub-managers, and the wallet
// collection.
package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/metrics"
	"github.com/arcsign/walletcore/events"
	"github.com/arcsign/walletcore/model"
	"github.com/arcsign/walletcore/wallet"
)

// Manager is the WalletManager: a type tag, a reference to its Account and
// Network, client/listener callbacks, address-scheme preference, state,
// a primary Wallet, an ordered Wallets list, a storage path, a sub-manager
// handle, a lock, and an owned event loop.
type Manager struct {
	mu sync.Mutex

	ChainType    corechain.ChainType
	Account      *account.Account
	Network      *model.Network
	Client       corechain.Client
	Listener     Listener
	AddressScheme corechain.AddressScheme
	StoragePath  string

	state     State
	mode      Mode
	reachable bool
	primary   *wallet.Wallet
	wallets []*wallet.Wallet
	sub     corechain.SubManager

	loop    *events.Loop
	metrics metrics.CoreMetrics
	audit   *events.AuditLog
}

// Config bundles the construction parameters. There is no env/config-file
// layer; that belongs to the embedding application, not this core.
type Config struct {
	ChainType     corechain.ChainType
	Account       *account.Account
	Network       *model.Network
	Client        corechain.Client
	Listener      Listener
	AddressScheme corechain.AddressScheme
	StoragePath   string
	Mode          Mode

	// Metrics records sign/submit/sync timings. Defaults to the in-memory
	// Prometheus-text aggregate when nil.
	Metrics metrics.CoreMetrics

	// AuditLog is the structured NDJSON event trail every manager/wallet/
	// transfer event is recorded through, in addition to listener delivery.
	// When nil and StoragePath is set, one is opened under the storage path.
	AuditLog *events.AuditLog

	// NewSubManager constructs the per-chain-family sync engine. Injected
	// rather than hardcoded so UTXO/Ethereum/generic sub-managers stay
	// decoupled from this package.
	NewSubManager func(*Manager) (corechain.SubManager, error)

	// LoadPersistedTransfers supplies any transfers the embedder's file
	// service already has on disk for this account+network, replayed into
	// the primary wallet at construction time.
	LoadPersistedTransfers func() ([]*model.Transfer, error)
}

// New constructs a Manager in CREATED state and emits the creation event
// sequence: MANAGER_CREATED, WALLET_CREATED(primary), MANAGER_WALLET_ADDED,
// and then, for each persisted transfer loaded: TRANSFER_CREATED (wallet
// package's EventTransferAdded carries this), WALLET_TRANSFER_ADDED,
// WALLET_BALANCE_UPDATED. This ordering is a hard contract for embedders.
func New(cfg Config) (*Manager, error) {
	m := &Manager{
		ChainType:     cfg.ChainType,
		Account:       cfg.Account,
		Network:       cfg.Network,
		Client:        cfg.Client,
		Listener:      cfg.Listener,
		AddressScheme: cfg.AddressScheme,
		StoragePath:   cfg.StoragePath,
		state:         StateCreated,
		mode:          cfg.Mode,
		reachable:     true,
		loop:          events.NewLoop(256),
		metrics:       cfg.Metrics,
	}
	if m.metrics == nil {
		m.metrics = metrics.NewPrometheusMetrics()
	}

	m.audit = cfg.AuditLog
	if m.audit == nil && cfg.StoragePath != "" {
		if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
			return nil, err
		}
		audit, err := events.NewAuditLog(filepath.Join(cfg.StoragePath, "events.ndjson"))
		if err != nil {
			return nil, err
		}
		m.audit = audit
	}

	h, err := corechain.DefaultRegistry().Lookup(cfg.ChainType)
	if err != nil {
		return nil, err
	}
	native := cfg.Network.NativeCurrency()
	defaultUnit := model.NewBaseUnit(native, native.UID+"-base", native.Name, native.Code)

	subWallet, err := h.Wallet.Create(m.Account)
	if err != nil {
		return nil, err
	}
	m.primary = wallet.New(cfg.ChainType, defaultUnit, defaultUnit, subWallet, walletListenerAdapter{m})

	if cfg.NewSubManager != nil {
		sub, err := cfg.NewSubManager(m)
		if err != nil {
			return nil, err
		}
		m.sub = sub
		if recoverer, ok := sub.(TransferRecoverer); ok {
			recoverer.SetOnTransferRecovered(m.handleRecoveredTransferGeneric)
		}
	}

	m.mu.Lock()
	m.wallets = append(m.wallets, m.primary)
	m.mu.Unlock()

	m.emit(Event{Kind: EventCreated})
	m.notifyWallet(m.primary, wallet.Event{Kind: wallet.EventCreated})
	m.emit(Event{Kind: EventWalletAdded, Wallet: m.primary})

	if cfg.LoadPersistedTransfers != nil {
		transfers, err := cfg.LoadPersistedTransfers()
		if err == nil {
			for _, t := range transfers {
				m.primary.AddTransfer(t)
			}
		}
	}

	if cfg.ChainType == corechain.ChainTypeETH {
		m.installTokens()
	}

	return m, nil
}

// Start launches the manager's event loop.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Start(ctx)
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PrimaryWallet returns the manager's always-present primary wallet — the
// invariant that a WalletManager's primary Wallet is always present in its
// Wallets list.
func (m *Manager) PrimaryWallet() *wallet.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// Wallets returns a snapshot of the manager's wallet collection.
func (m *Manager) Wallets() []*wallet.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*wallet.Wallet, len(m.wallets))
	copy(out, m.wallets)
	return out
}

// NewWallet constructs a wallet whose event stream feeds this manager's
// listener trio. Pair with RegisterWallet to make it visible in the
// Wallets list — token wallets are created on demand, not up front.
func (m *Manager) NewWallet(chainType corechain.ChainType, defaultUnit, unitForFee *model.Unit, subWallet interface{}) *wallet.Wallet {
	return wallet.New(chainType, defaultUnit, unitForFee, subWallet, walletListenerAdapter{m})
}

// RegisterWallet adds a new token wallet on demand (Ethereum) or a
// currency wallet (generic), emitting WALLET_ADDED.
func (m *Manager) RegisterWallet(w *wallet.Wallet) {
	m.mu.Lock()
	m.wallets = append(m.wallets, w)
	m.mu.Unlock()
	m.notifyWallet(w, wallet.Event{Kind: wallet.EventCreated})
	m.emit(Event{Kind: EventWalletAdded, Wallet: w})
}

// UnregisterWallet removes a previously registered token/currency wallet,
// marking it DELETED and emitting WALLET_DELETED at both the wallet and
// manager levels. The primary wallet cannot be removed: it is always
// present in the Wallets list.
func (m *Manager) UnregisterWallet(w *wallet.Wallet) bool {
	m.mu.Lock()
	if w == m.primary {
		m.mu.Unlock()
		return false
	}
	idx := -1
	for i, existing := range m.wallets {
		if existing == w {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	m.wallets = append(m.wallets[:idx], m.wallets[idx+1:]...)
	m.mu.Unlock()

	w.MarkDeleted()
	m.notifyWallet(w, wallet.Event{Kind: wallet.EventDeleted})
	m.emit(Event{Kind: EventWalletDeleted, Wallet: w})
	return true
}

// ReportBlockHeight records a newly observed chain height: the network's
// height advances (monotonic non-decreasing) and BLOCK_HEIGHT_UPDATED is
// emitted. A stale (lower or equal) observation is silently dropped.
func (m *Manager) ReportBlockHeight(height uint64) {
	if height <= m.Network.Height() {
		return
	}
	m.Network.SetHeight(height)
	m.emit(Event{Kind: EventBlockHeightUpdated, Height: height})
}

// ReportSyncProgress surfaces a sub-manager's progress through a long
// sync as SYNC_CONTINUES{percent}.
func (m *Manager) ReportSyncProgress(percent float64) {
	m.emit(Event{Kind: EventSyncContinues, SyncPercent: percent})
}

func (m *Manager) setState(new State) {
	m.mu.Lock()
	old := m.state
	m.state = new
	m.mu.Unlock()
	if old != new {
		m.emit(Event{Kind: EventChanged, OldState: old, NewState: new})
	}
}

// Connect transitions CREATED/DISCONNECTED -> CONNECTED -> SYNCING.
// Repeated Connect from CONNECTED is a no-op.
func (m *Manager) Connect(ctx context.Context, peer string) error {
	cur := m.State()
	if cur == StateConnected || cur == StateSyncing {
		return nil
	}
	if m.sub != nil {
		if err := m.sub.Connect(ctx, peer); err != nil {
			return err
		}
	}
	m.setState(StateConnected)
	return m.Sync(ctx)
}

// Disconnect transitions any state to DISCONNECTED{reason}.
func (m *Manager) Disconnect(ctx context.Context, reason string) error {
	if m.sub != nil {
		if err := m.sub.Disconnect(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	old := m.state
	m.state = StateDisconnected
	m.mu.Unlock()
	m.emit(Event{Kind: EventChanged, OldState: old, NewState: StateDisconnected, DisconnectReason: reason})
	return nil
}

// Sync re-enters SYNCING.
func (m *Manager) Sync(ctx context.Context) error {
	m.setState(StateSyncing)
	m.emit(Event{Kind: EventSyncStarted})
	start := time.Now()
	var err error
	if m.sub != nil {
		err = m.sub.Sync(ctx)
	}
	m.metrics.RecordSyncRound(string(m.ChainType), 0, time.Since(start))
	m.emit(Event{Kind: EventSyncStopped})
	if err == nil {
		m.setState(StateConnected)
	}
	return err
}

// SyncToDepth requests a resync back to a specific depth (used to recover
// from a detected gap, e.g. BCS orphan recovery).
func (m *Manager) SyncToDepth(ctx context.Context, depth uint64) error {
	if m.sub == nil {
		return nil
	}
	return m.sub.SyncToDepth(ctx, depth)
}

// SetMode changes the sync strategy. Settable silently while disconnected,
// or causes a sync-stopped/connected transition then a new sync while
// connected.
func (m *Manager) SetMode(ctx context.Context, mode Mode) error {
	m.mu.Lock()
	m.mode = mode
	wasConnected := m.state == StateConnected || m.state == StateSyncing
	m.mu.Unlock()

	if m.sub != nil {
		if err := m.sub.SetMode(ctx, int(mode)); err != nil {
			return err
		}
	}
	if wasConnected {
		m.emit(Event{Kind: EventSyncStopped})
		return m.Sync(ctx)
	}
	return nil
}

// SetNetworkReachable informs the sub-manager of a connectivity change
// detected by the embedder (e.g. an OS reachability callback), letting it
// pause/resume retries without a full Disconnect/Connect cycle. A
// lost-then-recovered network emits SYNC_RECOMMENDED, since transfers may
// have landed while unreachable.
func (m *Manager) SetNetworkReachable(reachable bool) {
	if m.sub != nil {
		m.sub.SetNetworkReachable(reachable)
	}
	m.mu.Lock()
	recovered := reachable && !m.reachable
	m.reachable = reachable
	m.mu.Unlock()
	if recovered {
		m.emit(Event{Kind: EventSyncRecommended})
	}
}

// Stop cancels all pending work: stops the sub-manager, then stops the
// event loop.
func (m *Manager) Stop() {
	if m.sub != nil {
		m.sub.Stop()
	}
	m.loop.Stop()
	m.setState(StateDeleted)
	if m.audit != nil {
		_ = m.audit.Sync()
	}
}

// Wipe deletes every persisted artifact for this manager's account on its
// network: blocks, peers, transactions, transfers. The on-disk layout
// keys by the account's serialization identifier then the network UID, so
// other accounts and other networks under the same storage path are
// untouched. Call only after Stop.
func (m *Manager) Wipe() error {
	if m.StoragePath == "" {
		return nil
	}
	dir := filepath.Join(m.StoragePath, m.Account.SerializationIdentifier(), m.Network.UID)
	return os.RemoveAll(dir)
}

// listenerCall carries one listener delivery onto the manager's event loop.
type listenerCall struct {
	deliver func()
}

func (c listenerCall) Handle(ctx context.Context) { c.deliver() }

// dispatch delivers one listener callback, via the event loop once it is
// running (so producers never block on a slow listener) and synchronously
// before Start (so the creation event sequence reaches the listener before
// New returns). Both paths preserve per-manager delivery order: pre-Start
// emissions happen on the constructing goroutine alone, post-Start
// emissions drain through the loop's single goroutine in FIFO order.
func (m *Manager) dispatch(deliver func()) {
	if m.Listener == nil {
		return
	}
	if m.loop.Running() {
		m.loop.Post(listenerCall{deliver: deliver})
		return
	}
	deliver()
}

// record appends one entry to the structured audit trail. Every event is
// recorded here before listener dispatch, so the trail and the listener
// see the same creation order.
func (m *Manager) record(kind, status, detail string) {
	if m.audit == nil {
		return
	}
	m.audit.Record(events.AuditEntry{
		ManagerID: m.Network.UID,
		Timestamp: time.Now(),
		Kind:      kind,
		Status:    status,
		Detail:    detail,
	})
}

func (m *Manager) emit(e Event) {
	status := ""
	if e.Kind == EventChanged {
		status = e.OldState.String() + "->" + e.NewState.String()
	}
	m.record(e.Kind.String(), status, e.DisconnectReason)
	m.dispatch(func() { m.Listener.OnManagerEvent(m, e) })
}

func (m *Manager) notifyWallet(w *wallet.Wallet, e wallet.Event) {
	m.record(e.Kind.String(), "", "")
	m.dispatch(func() { m.Listener.OnWalletEvent(m, w, e) })
}

func (m *Manager) notifyTransfer(w *wallet.Wallet, t *model.Transfer, e TransferEvent) {
	status := ""
	if e.Kind == TransferEventChanged {
		status = e.OldState.Kind.String() + "->" + e.NewState.Kind.String()
	}
	m.record(e.Kind.String(), status, t.Hash.String())
	m.dispatch(func() { m.Listener.OnTransferEvent(m, w, t, e) })
}

// walletListenerAdapter routes a wallet's own event stream out to the
// embedder's listener trio. A transfer-bearing wallet event is preceded by
// its transfer-level equivalent, so the embedder always sees the transfer
// exist (or change) before the wallet reports membership; a wallet state
// change is additionally surfaced as a manager-level WALLET_CHANGED for
// embedders watching only the manager stream.
type walletListenerAdapter struct {
	m *Manager
}

func (a walletListenerAdapter) OnWalletEvent(w *wallet.Wallet, e wallet.Event) {
	switch e.Kind {
	case wallet.EventTransferAdded:
		a.m.notifyTransfer(w, e.Transfer, TransferEvent{Kind: TransferEventCreated})
	case wallet.EventTransferChanged:
		a.m.notifyTransfer(w, e.Transfer, TransferEvent{
			Kind:     TransferEventChanged,
			OldState: e.OldTransferState,
			NewState: e.NewTransferState,
		})
	case wallet.EventTransferDeleted:
		a.m.notifyTransfer(w, e.Transfer, TransferEvent{Kind: TransferEventDeleted})
	}

	a.m.notifyWallet(w, e)

	if e.Kind == wallet.EventChanged {
		a.m.emit(Event{Kind: EventWalletChanged, Wallet: w})
	}
}

var _ wallet.Listener = walletListenerAdapter{}
