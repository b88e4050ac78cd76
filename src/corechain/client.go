package corechain

import "context"

// CallbackState is an opaque cookie the embedder echoes back verbatim with
// its announce-result call, coupling an asynchronous Client response to the
// request that produced it.
type CallbackState interface{}

// Client is the embedder-implemented callback interface invoked by the
// core for all chain-family-agnostic and common network I/O. BRD-mode
// sub-managers (UTXO BRD, Ethereum BRD, generic) drive their sync loops
// entirely through this interface; P2P modes use the chain-family native
// network instead and only fall back to Client for submission.
type Client interface {
	// GetBlockNumber requests the chain's current best-known height.
	GetBlockNumber(ctx context.Context, state CallbackState) error

	// SubmitTransaction submits raw signed transaction bytes. hash, if
	// non-nil, is the embedder's own precomputed hash for correlation.
	SubmitTransaction(ctx context.Context, state CallbackState, raw []byte, hash *Hash) error
}

// UTXOClient extends Client with the UTXO family's address-indexed
// transaction history query.
type UTXOClient interface {
	Client

	// GetTransactions requests all transactions touching any of addresses
	// within [begBlock, endBlock].
	GetTransactions(ctx context.Context, state CallbackState, addresses []string, begBlock, endBlock uint64) error
}

// EthereumClient extends Client with the Ethereum family's account-state,
// gas, log and block queries.
type EthereumClient interface {
	Client

	GetEtherBalance(ctx context.Context, state CallbackState, address string) error
	GetTokenBalance(ctx context.Context, state CallbackState, address, tokenContract string) error
	GetGasPrice(ctx context.Context, state CallbackState) error
	EstimateGas(ctx context.Context, state CallbackState, from, to string, amount []byte, data []byte) error
	GetTransactionsETH(ctx context.Context, state CallbackState, address string, begBlock, endBlock uint64) error
	GetLogs(ctx context.Context, state CallbackState, contract, address, event string, begBlock, endBlock uint64) error
	GetBlocks(ctx context.Context, state CallbackState, address string, interestSet uint32, begBlock, endBlock uint64) error
	GetTokens(ctx context.Context, state CallbackState) error
	GetNonce(ctx context.Context, state CallbackState, address string) error
}

// GenericClient extends Client with the pluggable account-model family's
// transfer-history query, used by the generic sub-manager's periodic
// dispatcher.
type GenericClient interface {
	Client

	GetTransfers(ctx context.Context, state CallbackState, address string, begBlock, endBlock uint64) error
}

// PersistenceOp tags a mutation delivered to an update-* persistence
// callback.
type PersistenceOp int

const (
	PersistAdd PersistenceOp = iota
	PersistRemove
	PersistUpdate
)

// PersistenceListener is the save/load hook surface delegated to the
// embedder's file service. blob is a chain-specific byte string whose hash
// is the set key.
type PersistenceListener interface {
	SaveBlocks(blocks [][]byte) error
	SavePeers(peers [][]byte) error
	UpdateTransaction(op PersistenceOp, blob []byte) error
	UpdateLog(op PersistenceOp, blob []byte) error
}

// BlobType names a file-service blob category.
type BlobType string

const (
	BlobTypeTransaction BlobType = "transaction"
	BlobTypeBlock       BlobType = "block"
	BlobTypePeer        BlobType = "peer"
	BlobTypeTransfer    BlobType = "transfer"
)

// FileService is the embedder-supplied keyed blob store. The core creates
// "types" and stores/retrieves blobs under those types, keyed by hash.
type FileService interface {
	Put(typ BlobType, key Hash, blob []byte) error
	Get(typ BlobType, key Hash) ([]byte, bool, error)
	Delete(typ BlobType, key Hash) error
	All(typ BlobType) (map[Hash][]byte, error)
}
