package model

import (
	"time"

	"github.com/arcsign/walletcore/corechain"
)

// TransferDirection records whether a Transfer's value left the wallet,
// arrived at it, or was recovered back to it (e.g. change, or a failed-send
// refund observed on-chain).
type TransferDirection int

const (
	DirectionSent TransferDirection = iota
	DirectionReceived
	DirectionRecovered
)

// TransferStateKind discriminates the TransferState union.
type TransferStateKind int

const (
	StateCreated TransferStateKind = iota
	StateSigned
	StateSubmitted
	StateIncluded
	StateErrored
	StateDeleted
)

func (k TransferStateKind) String() string {
	switch k {
	case StateCreated:
		return "CREATED"
	case StateSigned:
		return "SIGNED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateIncluded:
		return "INCLUDED"
	case StateErrored:
		return "ERRORED"
	case StateDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// TransferState is a discriminated union. Kind values double as the
// wire/callback encoding: CREATED=0, SIGNED=1, SUBMITTED=2, INCLUDED=3
// (with payload), ERRORED=4 (with message), DELETED=5.
type TransferState struct {
	Kind TransferStateKind

	// INCLUDED payload.
	BlockNumber      uint64
	TransactionIndex uint32
	Timestamp        time.Time
	Fee              *Amount

	// ERRORED payload.
	ErrorMessage string // truncated to 128 bytes by ErroredState
}

func CreatedState() TransferState { return TransferState{Kind: StateCreated} }
func SignedState() TransferState  { return TransferState{Kind: StateSigned} }
func SubmittedState() TransferState { return TransferState{Kind: StateSubmitted} }

func IncludedState(blockNumber uint64, txIndex uint32, ts time.Time, fee *Amount) TransferState {
	return TransferState{Kind: StateIncluded, BlockNumber: blockNumber, TransactionIndex: txIndex, Timestamp: ts, Fee: fee}
}

func ErroredState(message string) TransferState {
	if len(message) > 128 {
		message = message[:128]
	}
	return TransferState{Kind: StateErrored, ErrorMessage: message}
}

func DeletedState() TransferState { return TransferState{Kind: StateDeleted} }

// IsTerminal reports whether no further transition is expected absent a
// reorg. ERRORED is not terminal: a later chain extension may still
// promote the transfer it marks.
func (s TransferState) IsTerminal() bool {
	return s.Kind == StateIncluded || s.Kind == StateDeleted
}

// Transfer carries a chain-specific underlying transaction reference
// (Underlying) behind a uniform set of fields common to all three chain
// families.
type Transfer struct {
	ChainType corechain.ChainType

	Source *Address
	Target *Address

	Amount        *Amount
	UnitForFee    *Unit
	EstimatedFee  *FeeBasis
	ConfirmedFee  *FeeBasis // nil until INCLUDED

	State     TransferState
	Direction TransferDirection
	Hash      corechain.Hash // zero value until signed

	// Underlying is the chain-specific transaction object (wire bytes, a
	// btcutil.Tx, a go-ethereum *types.Transaction, or a generic handler's
	// opaque payload). It is exclusively owned by this Transfer and is not
	// independently reference-counted, matching the ownership model's
	// "sub-chain objects released together with the wrapping object" rule.
	Underlying interface{}
}

// NewTransfer constructs a freshly CREATED transfer.
func NewTransfer(chainType corechain.ChainType, source, target *Address, amount *Amount, unitForFee *Unit, estimatedFee *FeeBasis, direction TransferDirection) *Transfer {
	return &Transfer{
		ChainType:    chainType,
		Source:       source,
		Target:       target,
		Amount:       amount,
		UnitForFee:   unitForFee,
		EstimatedFee: estimatedFee,
		State:        CreatedState(),
		Direction:    direction,
	}
}

// SetState transitions the transfer's state. It does not itself enforce the
// state machine — callers (wallet/manager) are responsible for only driving
// legal transitions and for emitting the corresponding TRANSFER_CHANGED event.
func (t *Transfer) SetState(s TransferState) {
	t.State = s
}
