package manager

import (
	"github.com/arcsign/walletcore/model"
	"github.com/arcsign/walletcore/wallet"
)

// EventKind enumerates WalletManager-level event types.
type EventKind int

const (
	EventCreated EventKind = iota
	EventChanged
	EventDeleted
	EventWalletAdded
	EventWalletChanged
	EventWalletDeleted
	EventSyncStarted
	EventSyncContinues
	EventSyncStopped
	EventSyncRecommended
	EventBlockHeightUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "MANAGER_CREATED"
	case EventChanged:
		return "MANAGER_CHANGED"
	case EventDeleted:
		return "MANAGER_DELETED"
	case EventWalletAdded:
		return "MANAGER_WALLET_ADDED"
	case EventWalletChanged:
		return "MANAGER_WALLET_CHANGED"
	case EventWalletDeleted:
		return "MANAGER_WALLET_DELETED"
	case EventSyncStarted:
		return "SYNC_STARTED"
	case EventSyncContinues:
		return "SYNC_CONTINUES"
	case EventSyncStopped:
		return "SYNC_STOPPED"
	case EventSyncRecommended:
		return "SYNC_RECOMMENDED"
	case EventBlockHeightUpdated:
		return "BLOCK_HEIGHT_UPDATED"
	default:
		return "UNKNOWN"
	}
}

// Event is the payload delivered to Listener.OnManagerEvent.
type Event struct {
	Kind EventKind

	OldState, NewState State
	Wallet             *wallet.Wallet
	SyncPercent        float64
	Height             uint64
	DisconnectReason   string
}

// TransferEventKind enumerates transfer-level event types.
type TransferEventKind int

const (
	TransferEventCreated TransferEventKind = iota
	TransferEventChanged
	TransferEventDeleted
)

func (k TransferEventKind) String() string {
	switch k {
	case TransferEventCreated:
		return "TRANSFER_CREATED"
	case TransferEventChanged:
		return "TRANSFER_CHANGED"
	case TransferEventDeleted:
		return "TRANSFER_DELETED"
	default:
		return "UNKNOWN"
	}
}

// TransferEvent is the payload delivered to Listener.OnTransferEvent.
type TransferEvent struct {
	Kind TransferEventKind

	OldState, NewState model.TransferState
}

// Listener is the embedder's callback trio. Events from a single manager
// are delivered in creation order, always with the manager's and wallet's
// locks released; a transfer's CREATED event precedes the wallet-level
// TRANSFER_ADDED carrying the same transfer.
type Listener interface {
	OnManagerEvent(m *Manager, e Event)
	OnWalletEvent(m *Manager, w *wallet.Wallet, e wallet.Event)
	OnTransferEvent(m *Manager, w *wallet.Wallet, t *model.Transfer, e TransferEvent)
}
