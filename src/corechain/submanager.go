package corechain

import "context"

// SubManager is the per-chain-family sync/signing engine a WalletManager
// dispatches every lifecycle operation to: a UTXO peer-and-chain manager, an
// Ethereum BCS-based manager, or a generic manager. Every WalletManager
// lifecycle operation (connect, disconnect, sync, sync-to-depth, sign,
// submit, submit-signed, set-mode, set-network-reachable) switches on the
// manager's chain-type tag and calls the equivalent here.
type SubManager interface {
	ChainType() ChainType

	Connect(ctx context.Context, peer string) error
	Disconnect(ctx context.Context) error
	Sync(ctx context.Context) error
	SyncToDepth(ctx context.Context, depth uint64) error

	// Sign signs transfer using key, which must have already had its
	// secret derived by the caller (the manager derives the seed from the
	// phrase, calls this, then zeroizes the seed).
	Sign(ctx context.Context, wallet interface{}, transfer ChainTransfer, key *Key) error

	Submit(ctx context.Context, wallet interface{}, transfer ChainTransfer) error
	SubmitSigned(ctx context.Context, wallet interface{}, transfer ChainTransfer) error

	SetMode(ctx context.Context, mode int) error
	SetNetworkReachable(reachable bool)

	// Stop cancels all pending work: closes peer sockets or cancels the
	// periodic timer. Provisions that arrive afterwards are dropped
	// silently.
	Stop()
}
