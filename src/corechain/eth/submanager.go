package eth

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/eth/bcs"
	"github.com/arcsign/walletcore/corechain/rpc"
	"github.com/arcsign/walletcore/corechain/storage"
	"github.com/arcsign/walletcore/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// SubManager is the Ethereum-family corechain.SubManager: nonce/balance
// refresh and gas pricing over plain JSON-RPC polling (Sync), with deeper
// block-of-interest discovery delegated to a bcs.Chain/Searcher pair
// (SyncToDepth) for the account's transaction/log history.
type SubManager struct {
	chainID *big.Int
	client  rpc.Client
	wallet  *subWallet
	fees    *feeEstimator

	chain      *bcs.Chain
	searcher   *bcs.Searcher
	dispatcher *bcs.Dispatcher
	engine     *bcs.Engine

	files corechain.FileService // optional; backs reclaimed-block persistence

	mu          sync.Mutex
	reachable   bool
	dispatching bool
	stopDisp    context.CancelFunc

	// tokens tracks ERC-20 records installed from the network's currency
	// list, keyed by lowercase contract hex. A record exists before any
	// token wallet does; the embedder's register-wallet call consults it.
	tokens map[string]*ERC20Token
}

// NewSubManager builds the Ethereum sub-manager. genesis seeds the BCS
// header chain (the manager's persisted tail, or the network genesis on
// first run).
func NewSubManager(chainID int64, client rpc.Client, wallet *subWallet, genesis *bcs.Header) *SubManager {
	chain := bcs.NewChain(genesis)
	m := &SubManager{
		chainID:   big.NewInt(chainID),
		client:    client,
		wallet:    wallet,
		fees:      newFeeEstimator(client),
		chain:     chain,
		reachable: true,
		tokens:    make(map[string]*ERC20Token),
	}
	m.searcher = &bcs.Searcher{
		FetchHeaders:      m.fetchHeaders,
		FetchAccountState: m.fetchAccountState,
	}
	m.dispatcher = bcs.NewDispatcher(chain, m.queryStatuses, m.saveBlocks)
	chain.OnOrphaned = m.dispatcher.HandleOrphaned
	m.engine = &bcs.Engine{
		Chain:          chain,
		Searcher:       m.searcher,
		Dispatcher:     m.dispatcher,
		ManagedAddress: wallet.address.Bytes(),
	}
	m.searcher.OnBlockOfInterest = func(ctx context.Context, h *bcs.Header) error {
		return m.engine.HandleHeader(ctx, h)
	}
	return m
}

// NewDefaultSubManager builds the Ethereum sub-manager over the default
// transport/persistence stack: an rpc.Dial client for endpoints (HTTP
// failover, or WebSocket for a single ws:// endpoint) and, when
// storagePath is non-empty, a LevelDB-backed file service for reclaimed
// block headers. wallet is the handler-created sub-wallet handle
// (Wallet.Create's return value).
func NewDefaultSubManager(chainID int64, endpoints []string, storagePath string, wallet interface{}, genesis *bcs.Header) (*SubManager, error) {
	sw, ok := wallet.(*subWallet)
	if !ok {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeHandlerIncomplete,
			"wallet is not an ethereum sub-wallet handle", nil)
	}
	client, err := rpc.Dial(endpoints)
	if err != nil {
		return nil, err
	}
	m := NewSubManager(chainID, client, sw, genesis)
	if storagePath != "" {
		store, err := storage.NewLevelDBStore(filepath.Join(storagePath, "eth-bcs"))
		if err != nil {
			return nil, err
		}
		m.SetFileService(storage.NewBlobFileService(store))
	}
	return m, nil
}

// SetFileService installs the embedder's keyed blob store; reclaimed
// chain-tail headers are persisted under the block type. Call before
// Connect.
func (m *SubManager) SetFileService(files corechain.FileService) {
	m.files = files
}

// Dispatcher exposes the BCS periodic dispatcher so the manager layer can
// pend transfer hashes for status polling.
func (m *SubManager) Dispatcher() *bcs.Dispatcher { return m.dispatcher }

// Announce feeds one peer-announced head through the BCS engine: unwind
// on reorg, fetch the affected header range, extend the chain.
func (m *SubManager) Announce(ctx context.Context, a bcs.Announcement) error {
	return m.engine.HandleAnnouncement(ctx, a)
}

func (m *SubManager) ChainType() corechain.ChainType { return corechain.ChainTypeETH }

func (m *SubManager) Connect(ctx context.Context, peer string) error {
	if _, err := m.client.Call(ctx, "eth_blockNumber", nil); err != nil {
		return err
	}
	m.mu.Lock()
	if !m.dispatching {
		m.dispatching = true
		dispCtx, cancel := context.WithCancel(context.Background())
		m.stopDisp = cancel
		go m.dispatcher.Run(dispCtx)
	}
	m.mu.Unlock()
	return nil
}

func (m *SubManager) Disconnect(ctx context.Context) error {
	return nil
}

// Sync refreshes the wallet's nonce, balance (or token balance) and
// default gas price from the node.
func (m *SubManager) Sync(ctx context.Context) error {
	m.wallet.mu.Lock()
	addr, token := m.wallet.address, m.wallet.token
	m.wallet.mu.Unlock()

	nonceRaw, err := m.client.Call(ctx, "eth_getTransactionCount", []interface{}{addr.Hex(), "pending"})
	if err != nil {
		return corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getTransactionCount failed", nil, err)
	}
	var nonceHex string
	if err := json.Unmarshal(nonceRaw, &nonceHex); err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed nonce response", err)
	}
	nonce, err := hexutil.DecodeUint64(nonceHex)
	if err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed nonce hex", err)
	}

	var balance *big.Int
	if token == nil {
		balance, err = m.fetchETHBalance(ctx, addr)
	} else {
		balance, err = m.fetchTokenBalance(ctx, addr, token)
	}
	if err != nil {
		return err
	}

	gasPrice, err := m.fees.gasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(30e9) // 30 Gwei fallback
	}
	gasPriceU256, _ := uint256FromBig(gasPrice)

	m.wallet.mu.Lock()
	m.wallet.nonce = nonce
	m.wallet.balance = balance
	m.wallet.defaultFee = model.NewETHFeeBasis(21000, gasPriceU256, nil)
	m.wallet.mu.Unlock()
	return nil
}

// SyncToDepth runs the BCS N-ary search over the last depth blocks up to
// the current head (starting no earlier than the chain's tail),
// discovering every block where the address's account changed.
func (m *SubManager) SyncToDepth(ctx context.Context, depth uint64) error {
	head := m.chain.Head()
	tail := m.chain.Tail()
	from := tail.Number
	if head.Number > depth && head.Number-depth > from {
		from = head.Number - depth
	}
	return m.searcher.Sync(ctx, from, head.Number)
}

func (m *SubManager) Sign(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer, key *corechain.Key) error {
	t := transfer.(*Transfer)
	signed, err := signTransaction(m.chainID, t.tx, key)
	if err != nil {
		return err
	}
	t.signed = signed
	t.hash, _ = corechain.HashFromBytes(signed.Hash().Bytes())
	return nil
}

func (m *SubManager) Submit(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	return m.SubmitSigned(ctx, wallet, transfer)
}

func (m *SubManager) SubmitSigned(ctx context.Context, wallet interface{}, transfer corechain.ChainTransfer) error {
	t := transfer.(*Transfer)
	if t.signed == nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "transfer has not been signed", nil)
	}
	raw, err := t.signed.MarshalBinary()
	if err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "failed to encode signed transaction", err)
	}
	_, err = m.client.Call(ctx, "eth_sendRawTransaction", []interface{}{"0x" + fmt.Sprintf("%x", raw)})
	if err == nil {
		// Poll the submitted hash every dispatch round until two peers
		// agree on a terminal status or its block lands in chain.
		m.dispatcher.PendTransaction(t.hash)
	}
	return err
}

// InstallToken creates or updates the ERC-20 record for a currency whose
// issuer names a token contract. No wallet is created here; the token is
// only made known so balances/transfers can be tracked once one exists.
// ERC-20 metadata queries are deferred to first wallet use, so decimals
// default to the overwhelmingly common 18 until then.
func (m *SubManager) InstallToken(contractAddress, symbol, uid string) error {
	addr := common.HexToAddress(contractAddress)
	key := strings.ToLower(addr.Hex())
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tokens[key]; ok {
		existing.Symbol = symbol
		return nil
	}
	m.tokens[key] = &ERC20Token{Contract: addr, Symbol: symbol, Decimals: 18}
	return nil
}

// Token returns the installed record for a token contract, if any.
func (m *SubManager) Token(contractAddress string) (*ERC20Token, bool) {
	key := strings.ToLower(common.HexToAddress(contractAddress).Hex())
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[key]
	return t, ok
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
	cancel := m.stopDisp
	m.stopDisp = nil
	m.dispatching = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.dispatcher.Stop()
}

// queryStatuses is the dispatcher's QueryStatuses callback: one
// eth_getTransactionReceipt probe per pending hash. A receipt means
// INCLUDED (advisory; definitive inclusion still requires the block in
// chain), a known-but-unmined transaction means PENDING, and anything the
// node cannot see at all is UNKNOWN.
func (m *SubManager) queryStatuses(ctx context.Context, hashes []corechain.Hash) ([]bcs.StatusReport, error) {
	reports := make([]bcs.StatusReport, 0, len(hashes))
	for _, h := range hashes {
		raw, err := m.client.Call(ctx, "eth_getTransactionReceipt", []interface{}{h.String()})
		if err != nil {
			return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getTransactionReceipt failed", nil, err)
		}
		var receipt struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &receipt); err == nil && receipt.Status != "" {
			status := bcs.StatusIncluded
			if receipt.Status == "0x0" {
				status = bcs.StatusErrored
			}
			reports = append(reports, bcs.StatusReport{Hash: h, Status: status})
			continue
		}

		txRaw, err := m.client.Call(ctx, "eth_getTransactionByHash", []interface{}{h.String()})
		if err != nil || string(txRaw) == "null" || len(txRaw) == 0 {
			reports = append(reports, bcs.StatusReport{Hash: h, Status: bcs.StatusUnknown})
			continue
		}
		reports = append(reports, bcs.StatusReport{Hash: h, Status: bcs.StatusPending})
	}
	return reports, nil
}

// saveBlocks persists a reclaimed chain-tail range through the embedder's
// file service, one blob per header keyed by block hash.
func (m *SubManager) saveBlocks(headers []*bcs.Header) {
	if m.files == nil {
		return
	}
	for _, h := range headers {
		blob, err := json.Marshal(h)
		if err != nil {
			continue
		}
		_ = m.files.Put(corechain.BlobTypeBlock, h.Hash, blob)
	}
}

// fetchETHBalance reads the primary wallet's native ETH balance.
func (m *SubManager) fetchETHBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	raw, err := m.client.Call(ctx, "eth_getBalance", []interface{}{addr.Hex(), "latest"})
	if err != nil {
		return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getBalance failed", nil, err)
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed balance response", err)
	}
	balance, err := hexutil.DecodeBig(hex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed balance hex", err)
	}
	return balance, nil
}

// fetchTokenBalance reads an ERC-20 token balance via a static
// balanceOf(address) eth_call, encoding the call data the same way
// erc20.go encodes a transfer.
func (m *SubManager) fetchTokenBalance(ctx context.Context, addr common.Address, token *ERC20Token) (*big.Int, error) {
	data := encodeERC20BalanceOf(addr)
	callArgs := map[string]interface{}{
		"to":   token.Contract.Hex(),
		"data": "0x" + fmt.Sprintf("%x", data),
	}
	raw, err := m.client.Call(ctx, "eth_call", []interface{}{callArgs, "latest"})
	if err != nil {
		return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_call balanceOf failed", nil, err)
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed eth_call response", err)
	}
	balance, err := hexutil.DecodeBig(hex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed token balance hex", err)
	}
	return balance, nil
}

// fetchHeaders is the bcs.FetchHeaders callback: one eth_getBlockByNumber
// per requested block number, translated into bcs.Header.
func (m *SubManager) fetchHeaders(ctx context.Context, numbers []uint64) ([]*bcs.Header, error) {
	headers := make([]*bcs.Header, 0, len(numbers))
	for _, n := range numbers {
		raw, err := m.client.Call(ctx, "eth_getBlockByNumber", []interface{}{hexutil.EncodeUint64(n), false})
		if err != nil {
			return nil, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getBlockByNumber failed", nil, err)
		}
		var block struct {
			Hash            string `json:"hash"`
			ParentHash      string `json:"parentHash"`
			Number          string `json:"number"`
			TotalDifficulty string `json:"totalDifficulty"`
			Timestamp       string `json:"timestamp"`
			LogsBloom       string `json:"logsBloom"`
		}
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed block response", err)
		}
		h, err := decodeHeader(block.Hash, block.ParentHash, block.Number, block.TotalDifficulty, block.Timestamp, block.LogsBloom)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// fetchAccountState is the bcs.FetchAccountState callback: the managed
// wallet's nonce/balance as of the given historical block.
func (m *SubManager) fetchAccountState(ctx context.Context, h *bcs.Header) (bcs.AccountState, error) {
	m.wallet.mu.Lock()
	addr := m.wallet.address
	m.wallet.mu.Unlock()

	tag := hexutil.EncodeUint64(h.Number)
	nonceRaw, err := m.client.Call(ctx, "eth_getTransactionCount", []interface{}{addr.Hex(), tag})
	if err != nil {
		return bcs.AccountState{}, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getTransactionCount failed", nil, err)
	}
	var nonceHex string
	if err := json.Unmarshal(nonceRaw, &nonceHex); err != nil {
		return bcs.AccountState{}, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed nonce response", err)
	}
	nonce, err := hexutil.DecodeUint64(nonceHex)
	if err != nil {
		return bcs.AccountState{}, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed nonce hex", err)
	}

	balanceRaw, err := m.client.Call(ctx, "eth_getBalance", []interface{}{addr.Hex(), tag})
	if err != nil {
		return bcs.AccountState{}, corechain.NewRetryableError(corechain.ErrCodeRPCUnavailable, "eth_getBalance failed", nil, err)
	}
	var balanceHex string
	if err := json.Unmarshal(balanceRaw, &balanceHex); err != nil {
		return bcs.AccountState{}, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed balance response", err)
	}
	balance, err := hexutil.DecodeBig(balanceHex)
	if err != nil {
		return bcs.AccountState{}, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed balance hex", err)
	}
	return bcs.AccountState{Nonce: nonce, Balance: balance}, nil
}

// decodeHeader turns an eth_getBlockByNumber response's hex-encoded fields
// into a bcs.Header with every data-kind status set to StatusNeeded; the
// dispatcher fills those in as transactions/receipts/proofs/state arrive.
func decodeHeader(hashHex, parentHex, numberHex, totalDifficultyHex, timestampHex, logsBloomHex string) (*bcs.Header, error) {
	hash, err := corechain.HashFromHex(hashHex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed block hash", err)
	}
	parent, err := corechain.HashFromHex(parentHex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed parent hash", err)
	}
	number, err := hexutil.DecodeUint64(numberHex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed block number", err)
	}
	timestamp, err := hexutil.DecodeUint64(timestampHex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed timestamp", err)
	}
	var totalDifficulty *big.Int
	if totalDifficultyHex != "" {
		totalDifficulty, err = hexutil.DecodeBig(totalDifficultyHex)
		if err != nil {
			return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed total difficulty", err)
		}
	} else {
		totalDifficulty = new(big.Int)
	}
	bloomBytes, err := hexutil.Decode(logsBloomHex)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "malformed logsBloom", err)
	}
	var bloom [256]byte
	copy(bloom[:], bloomBytes)
	return &bcs.Header{
		Hash:            hash,
		ParentHash:      parent,
		Number:          number,
		TotalDifficulty: totalDifficulty,
		Timestamp:       timestamp,
		LogsBloom:       bloom,
	}, nil
}

// uint256FromBig truncates a big.Int gas price into the 256-bit wei field
// model.FeeBasis carries; gas prices never approach the 256-bit ceiling.
func uint256FromBig(v *big.Int) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("eth: gas price %s overflows uint256", v.String())
	}
	return u, nil
}

var _ corechain.SubManager = (*SubManager)(nil)
