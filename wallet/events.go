package wallet

import "github.com/arcsign/walletcore/model"

// EventKind enumerates wallet-level event types.
type EventKind int

const (
	EventCreated EventKind = iota
	EventChanged
	EventDeleted
	EventTransferAdded
	EventTransferChanged
	EventTransferSubmitted
	EventTransferDeleted
	EventBalanceUpdated
	EventFeeBasisUpdated
	EventFeeBasisEstimated
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "WALLET_CREATED"
	case EventChanged:
		return "WALLET_CHANGED"
	case EventDeleted:
		return "WALLET_DELETED"
	case EventTransferAdded:
		return "WALLET_TRANSFER_ADDED"
	case EventTransferChanged:
		return "WALLET_TRANSFER_CHANGED"
	case EventTransferSubmitted:
		return "WALLET_TRANSFER_SUBMITTED"
	case EventTransferDeleted:
		return "WALLET_TRANSFER_DELETED"
	case EventBalanceUpdated:
		return "WALLET_BALANCE_UPDATED"
	case EventFeeBasisUpdated:
		return "WALLET_FEE_BASIS_UPDATED"
	case EventFeeBasisEstimated:
		return "WALLET_FEE_BASIS_ESTIMATED"
	default:
		return "UNKNOWN"
	}
}

// Event is the payload delivered to Listener.OnWalletEvent.
type Event struct {
	Kind EventKind

	OldState, NewState State
	Transfer           *model.Transfer
	Balance            *model.Amount
	FeeBasis           *model.FeeBasis

	// Transfer-state transition carried by EventTransferChanged.
	OldTransferState, NewTransferState model.TransferState

	// FEE_BASIS_ESTIMATED payload.
	Cookie           interface{}
	EstimateStatus   string
}
