package utxo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/rpc"
	"github.com/arcsign/walletcore/model"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
)

// SubManager is the UTXO-family corechain.SubManager: it polls a single
// RPC endpoint's mempool/UTXO set for the wallet's derived addresses
// instead of running a full P2P peer pool (see package doc), which keeps
// this core's surface to "JSON-RPC node required" rather than "embedded
// P2P stack required".
type SubManager struct {
	chainType corechain.ChainType
	client    rpc.Client
	wallet    *subWallet

	mu        sync.Mutex
	reachable bool
	stopCh    chan struct{}
	stopped   bool
}

// NewSubManager builds the UTXO sub-manager bound to wallet's single
// sub-wallet record and client.
func NewSubManager(chainType corechain.ChainType, client rpc.Client, wallet *subWallet) *SubManager {
	return &SubManager{chainType: chainType, client: client, wallet: wallet, reachable: true}
}

// NewDefaultSubManager builds the UTXO sub-manager over the default
// rpc.Dial transport (HTTP failover, or WebSocket for a single ws://
// endpoint). wallet is the handler-created sub-wallet handle
// (Wallet.Create's return value).
func NewDefaultSubManager(chainType corechain.ChainType, endpoints []string, wallet interface{}) (*SubManager, error) {
	sw, ok := wallet.(*subWallet)
	if !ok {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete,
			"wallet is not a UTXO sub-wallet handle", nil)
	}
	client, err := rpc.Dial(endpoints)
	if err != nil {
		return nil, err
	}
	return NewSubManager(chainType, client, sw), nil
}

func (m *SubManager) ChainType() corechain.ChainType { return m.chainType }

func (m *SubManager) Connect(ctx context.Context, peer string) error {
	_, err := m.client.Call(ctx, "getblockcount", nil)
	return err
}

func (m *SubManager) Disconnect(ctx context.Context) error {
	return nil
}

// Sync refreshes the sub-wallet's UTXO set from the node and, when no
// default fee is set yet, seeds it from the node's fee estimate; the
// UTXO-family equivalent of a BCS sync round.
func (m *SubManager) Sync(ctx context.Context) error {
	m.wallet.mu.Lock()
	addr, err := deriveReceiveAddress(m.wallet.mpk, m.wallet.params, 0, false)
	unit := m.wallet.defaultFee
	m.wallet.mu.Unlock()
	if err != nil {
		return err
	}

	raw, err := m.client.Call(ctx, "listunspent", []interface{}{0, 9999999, []string{addr}})
	if err != nil {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "listunspent failed", nil, err)
	}
	var entries []struct {
		TxID string  `json:"txid"`
		Vout uint32  `json:"vout"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed listunspent response", err)
	}

	utxos := make([]UTXOOutput, 0, len(entries))
	for _, e := range entries {
		h, err := chainhash.NewHashFromStr(e.TxID)
		if err != nil {
			continue
		}
		utxos = append(utxos, UTXOOutput{TxID: corechain.Hash(*h), Vout: e.Vout, Value: int64(e.Amount * 1e8), Address: addr})
	}

	feeRaw, err := m.client.Call(ctx, "estimatesmartfee", []interface{}{3})
	var feePerKB int64 = 1000 // 1 sat/byte fallback
	if err == nil {
		var feeResp struct {
			FeeRate float64 `json:"feerate"`
		}
		if json.Unmarshal(feeRaw, &feeResp) == nil && feeResp.FeeRate > 0 {
			feePerKB = int64(feeResp.FeeRate * 1e8)
		}
	}

	m.wallet.mu.Lock()
	m.wallet.utxos = utxos
	if unit == nil {
		m.wallet.defaultFee = model.NewUTXOFeeBasis(uint256.NewInt(uint64(feePerKB)), 0, nil)
	}
	m.wallet.mu.Unlock()
	return nil
}

func (m *SubManager) SyncToDepth(ctx context.Context, depth uint64) error {
	return m.Sync(ctx)
}

func (m *SubManager) Sign(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer, key *corechain.Key) error {
	t := transfer.(*Transfer)
	if err := signTransaction(t.tx, t.inputs, key); err != nil {
		return err
	}
	t.signed = true
	t.hash = corechain.HashOf(serializeTx(t.tx))
	return nil
}

func (m *SubManager) Submit(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	return m.SubmitSigned(ctx, wallet, transfer)
}

func (m *SubManager) SubmitSigned(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	t := transfer.(*Transfer)
	if !t.signed {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "transfer has not been signed", nil)
	}
	hexTx := fmt.Sprintf("%x", serializeTx(t.tx))
	_, err := m.client.Call(ctx, "sendrawtransaction", []interface{}{hexTx})
	return err
}

func (m *SubManager) SetMode(ctx context.Context, mode int) error {
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
	if m.stopCh != nil {
		close(m.stopCh)
	}
}

var _ corechain.SubManager = (*SubManager)(nil)
