package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/rpc"
	"github.com/arcsign/walletcore/corechain/storage"
	"github.com/arcsign/walletcore/model"
)

// dispatchPeriod is the generic family's periodic transfer-discovery
// timer.
const dispatchPeriod = 10 * time.Second

// rippleEpochOffset converts an XRPL "ripple epoch" timestamp (seconds
// since 2000-01-01T00:00:00Z) to Unix time.
const rippleEpochOffset = 946684800

// SubManager is the generic-family corechain.SubManager: rippled-style
// JSON-RPC polling for sequence/balance/fee (Sync), an account_tx-driven
// N-ary-free linear scan for newly seen transactions (SyncToDepth and the
// periodic dispatcher below), and persistence of every discovered transfer
// through a storage.TransferStateStore so a restart doesn't re-announce
// transfers the embedder has already seen.
//
// Only XRP has a concrete handler today (see registry.go); the other
// SLIP-44 entries install inert stub vtables and are never wrapped by a
// SubManager, so this type is wired directly to *xrpSubWallet rather than
// an abstracted generic sub-wallet interface.
type SubManager struct {
	chainType corechain.ChainType
	client    rpc.Client
	wallet    *xrpSubWallet
	store     storage.TransferStateStore
	period    time.Duration

	mu          sync.Mutex
	reachable   bool
	lastLedger  uint64
	running     bool
	stopCh      chan struct{}
	stopped     bool
	onRecovered func(fields corechain.TransferRecoveryFields)
}

// NewSubManager builds the generic sub-manager bound to wallet's single
// sub-wallet record and client. store may be nil, disabling persistence of
// discovered transfers (an embedder that supplies no file service).
func NewSubManager(chainType corechain.ChainType, client rpc.Client, wallet *xrpSubWallet, store storage.TransferStateStore) *SubManager {
	return &SubManager{
		chainType: chainType,
		client:    client,
		wallet:    wallet,
		store:     store,
		period:    dispatchPeriod,
		reachable: true,
		stopCh:    make(chan struct{}),
	}
}

// NewDefaultSubManager builds the generic sub-manager over the default
// stack: an rpc.Dial transport and, when storagePath is non-empty, a
// flat-file transfer store so discovered transfers survive a restart.
// wallet is the handler-created sub-wallet handle (Wallet.Create's
// return value).
func NewDefaultSubManager(chainType corechain.ChainType, endpoints []string, storagePath string, wallet interface{}) (*SubManager, error) {
	sw, ok := wallet.(*xrpSubWallet)
	if !ok {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete,
			"wallet is not a generic sub-wallet handle", nil)
	}
	client, err := rpc.Dial(endpoints)
	if err != nil {
		return nil, err
	}
	var store storage.TransferStateStore
	if storagePath != "" {
		store, err = storage.NewFileTransferStore(filepath.Join(storagePath, "transfers.json"))
		if err != nil {
			return nil, err
		}
	}
	return NewSubManager(chainType, client, sw, store), nil
}

// SetOnTransferRecovered registers the callback invoked, outside any lock,
// once per newly discovered transfer each dispatch round. The manager
// package wires this to its own recovery pipeline (manager.TransferRecoverer);
// a nil callback is a valid, inert configuration.
func (m *SubManager) SetOnTransferRecovered(fn func(fields corechain.TransferRecoveryFields)) {
	m.mu.Lock()
	m.onRecovered = fn
	m.mu.Unlock()
}

func (m *SubManager) ChainType() corechain.ChainType { return m.chainType }

// Connect probes the node with a cheap, side-effect-free call, then starts
// the periodic dispatcher loop (idempotent: a repeated Connect will not
// spawn a second loop).
func (m *SubManager) Connect(ctx context.Context, peer string) error {
	if _, err := m.client.Call(ctx, "fee", nil); err != nil {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "fee probe failed", nil, err)
	}
	m.mu.Lock()
	alreadyRunning := m.running
	m.running = true
	m.mu.Unlock()
	if !alreadyRunning {
		go m.run(context.Background())
	}
	return nil
}

func (m *SubManager) Disconnect(ctx context.Context) error {
	return nil
}

// Sync refreshes the sub-wallet's sequence number, drops balance, and
// default fee quote from the node, the generic-family equivalent of the
// UTXO/Ethereum sub-managers' own Sync.
func (m *SubManager) Sync(ctx context.Context) error {
	m.wallet.mu.Lock()
	addr := m.wallet.address
	m.wallet.mu.Unlock()

	raw, err := m.client.Call(ctx, "account_info", map[string]interface{}{
		"account":      addr,
		"ledger_index": "validated",
	})
	if err != nil {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "account_info failed", nil, err)
	}
	var resp struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
			Balance  string `json:"Balance"`
		} `json:"account_data"`
		LedgerIndex uint64 `json:"ledger_current_index"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed account_info response", err)
	}
	balance, ok := new(big.Int).SetString(resp.AccountData.Balance, 10)
	if !ok {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed drops balance", nil)
	}

	baseFee := m.fetchBaseFee(ctx)
	feeU256, err := newUint256FromBig(big.NewInt(int64(baseFee)))
	if err != nil {
		return err
	}

	m.wallet.mu.Lock()
	m.wallet.sequence = resp.AccountData.Sequence
	m.wallet.balance = balance
	m.wallet.defaultFee = model.NewGenericFeeBasis(feeU256, 1.0, nil)
	m.wallet.mu.Unlock()

	if resp.LedgerIndex > 0 {
		m.mu.Lock()
		if resp.LedgerIndex > m.lastLedger {
			m.lastLedger = resp.LedgerIndex
		}
		m.mu.Unlock()
	}
	return nil
}

// fetchBaseFee quotes rippled's current base fee in drops, falling back to
// the conventional 10-drop floor if the node's response is unusable.
func (m *SubManager) fetchBaseFee(ctx context.Context) uint64 {
	const fallback = 10
	raw, err := m.client.Call(ctx, "fee", nil)
	if err != nil {
		return fallback
	}
	var resp struct {
		Drops struct {
			BaseFee string `json:"base_fee"`
		} `json:"drops"`
	}
	if json.Unmarshal(raw, &resp) != nil {
		return fallback
	}
	v, err := strconv.ParseUint(resp.Drops.BaseFee, 10, 64)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}

// SyncToDepth re-scans account_tx from depth ledgers behind the sub-
// manager's last known ledger, discovering (and reporting/persisting) any
// transfer the periodic dispatcher may have missed, e.g. after a gap in
// connectivity.
func (m *SubManager) SyncToDepth(ctx context.Context, depth uint64) error {
	m.mu.Lock()
	head := m.lastLedger
	m.mu.Unlock()
	from := uint64(0)
	if head > depth {
		from = head - depth
	}
	return m.discoverTransfers(ctx, from)
}

// run drives the 10-second periodic dispatcher until ctx is cancelled or
// Stop is called, matching the Dispatcher/run idiom the Ethereum BCS
// package uses for its own periodic status-query loop.
func (m *SubManager) run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			reachable := m.reachable
			from := m.lastLedger
			m.mu.Unlock()
			if !reachable {
				continue
			}
			_ = m.discoverTransfers(ctx, from)
		}
	}
}

// discoverTransfers queries account_tx for every transaction touching the
// wallet's address since ledger fromLedger, persists each newly seen one
// via store, and reports it through onRecovered. This is the generic
// family's half of the recovery pipeline; the wallet-level half (dedupe by
// hash, TRANSFER_ADDED/TRANSFER_CHANGED, BALANCE_UPDATED) lives in the
// manager package once the handler registry's RecoverTransfer has rebuilt
// a ChainTransfer from the reported fields.
func (m *SubManager) discoverTransfers(ctx context.Context, fromLedger uint64) error {
	m.wallet.mu.Lock()
	addr := m.wallet.address
	m.wallet.mu.Unlock()

	raw, err := m.client.Call(ctx, "account_tx", map[string]interface{}{
		"account":          addr,
		"ledger_index_min": int64(fromLedger),
		"ledger_index_max": -1,
		"binary":           false,
	})
	if err != nil {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "account_tx failed", nil, err)
	}
	var resp struct {
		Transactions []struct {
			Meta struct {
				TransactionResult string `json:"TransactionResult"`
			} `json:"meta"`
			Tx struct {
				Hash        string `json:"hash"`
				Account     string `json:"Account"`
				Destination string `json:"Destination"`
				Amount      string `json:"Amount"`
				Fee         string `json:"Fee"`
				Date        int64  `json:"date"`
			} `json:"tx"`
			LedgerIndex uint64 `json:"ledger_index"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed account_tx response", err)
	}

	m.mu.Lock()
	onRecovered := m.onRecovered
	m.mu.Unlock()

	highest := fromLedger
	for _, entry := range resp.Transactions {
		if entry.LedgerIndex > highest {
			highest = entry.LedgerIndex
		}
		if m.store != nil {
			if existing, _ := m.store.Get(entry.Tx.Hash); existing != nil {
				continue
			}
		}
		amount, ok := new(big.Int).SetString(entry.Tx.Amount, 10)
		if !ok {
			continue
		}
		fee, ok := new(big.Int).SetString(entry.Tx.Fee, 10)
		if !ok {
			fee = new(big.Int)
		}

		status := storage.TransferStatusConfirmed
		state := "included"
		if entry.Meta.TransactionResult != "tesSUCCESS" {
			status = storage.TransferStatusFailed
			state = "errored"
		}
		seen := time.Unix(rippleEpochOffset+entry.Tx.Date, 0)

		if m.store != nil {
			if err := m.store.Set(entry.Tx.Hash, &storage.TransferState{
				Hash:      entry.Tx.Hash,
				ChainType: string(m.chainType),
				Status:    status,
				FirstSeen: seen,
				LastRetry: seen,
			}); err != nil {
				return fmt.Errorf("generic: persist discovered transfer: %w", err)
			}
		}

		if onRecovered == nil {
			continue
		}
		onRecovered(corechain.TransferRecoveryFields{
			Hash:        entry.Tx.Hash,
			From:        entry.Tx.Account,
			To:          entry.Tx.Destination,
			Amount:      amount,
			Currency:    string(m.chainType),
			Fee:         fee,
			Timestamp:   rippleEpochOffset + entry.Tx.Date,
			BlockHeight: entry.LedgerIndex,
			State:       state,
		})
	}

	if highest > fromLedger {
		m.mu.Lock()
		if highest > m.lastLedger {
			m.lastLedger = highest
		}
		m.mu.Unlock()
	}
	return nil
}

func (m *SubManager) Sign(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer, key *corechain.Key) error {
	h := &xrpHandler{chainType: m.chainType}
	return h.transferSign(transfer, key)
}

func (m *SubManager) Submit(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	return m.SubmitSigned(ctx, wallet, transfer)
}

// SubmitSigned submits a signed transfer's blob via rippled's "submit"
// method. The blob is this build's own deterministic encoding (see
// xrpTransfer's doc comment), not XRPL's real binary serialization.
func (m *SubManager) SubmitSigned(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	t := transfer.(*xrpTransfer)
	if t.signature == nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "transfer has not been signed", nil)
	}
	blob := xrpSigningPayload(t)
	blob = append(blob, t.publicKey...)
	blob = append(blob, t.signature...)
	_, err := m.client.Call(ctx, "submit", map[string]interface{}{"tx_blob": fmt.Sprintf("%x", blob)})
	return err
}

// SetMode rejects anything but the Client-polling mode (0): the generic
// family has no P2P network of its own to switch to.
func (m *SubManager) SetMode(ctx context.Context, mode int) error {
	if mode != 0 {
		return corechain.NewNonRetryableError(corechain.ErrCodeUnsupportedAsset,
			"generic chains support only client-polling sync", nil)
	}
	return nil
}

func (m *SubManager) SetNetworkReachable(reachable bool) {
	m.mu.Lock()
	m.reachable = reachable
	m.mu.Unlock()
}

func (m *SubManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	close(m.stopCh)
}

var _ corechain.SubManager = (*SubManager)(nil)
