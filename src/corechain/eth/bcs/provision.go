package bcs

// ProvisionType discriminates the uniform data-request protocol: BCS
// consumes every kind of peer-sourced data through one result shape
// instead of a bespoke response type per RPC method.
type ProvisionType int

const (
	ProvisionHeaders ProvisionType = iota
	ProvisionBlockProofs
	ProvisionBlockBodies
	ProvisionTransactionReceipts
	ProvisionAccounts
	ProvisionTransactionStatuses
	ProvisionSubmitTransaction
)

// NodeInactive is the one error reason that triggers transparent
// resubmission rather than terminating the containing sync.
const NodeInactive = "NODE_INACTIVE"

// ProvisionResult is either Success (carrying Payload) or an ErrorReason.
type ProvisionResult struct {
	Type        ProvisionType
	Success     bool
	Payload     interface{}
	ErrorReason string
}

// Resubmit is called with the same provision request when a result arrives
// with ErrorReason == NodeInactive; BCS logic never observes the failure.
type Resubmit func()

// HandleResult dispatches one provision result: NODE_INACTIVE resubmits
// transparently, any other error is returned to terminate the containing
// sync, and success invokes onSuccess with the typed payload.
func HandleResult(result ProvisionResult, resubmit Resubmit, onSuccess func(interface{}) error) error {
	if result.Success {
		return onSuccess(result.Payload)
	}
	if result.ErrorReason == NodeInactive {
		resubmit()
		return nil
	}
	return &ProvisionError{Type: result.Type, Reason: result.ErrorReason}
}

// ProvisionError reports a non-retryable provision failure that terminates
// the sync round it occurred in.
type ProvisionError struct {
	Type   ProvisionType
	Reason string
}

func (e *ProvisionError) Error() string {
	return "bcs: provision failed: " + e.Reason
}
