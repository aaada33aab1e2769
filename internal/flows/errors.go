package flows

import "errors"

var (
	// ErrBusy reports an action invoked while another one is in flight.
	ErrBusy = errors.New("operation in progress")
	// ErrValidation reports input rejected before any remote call.
	ErrValidation = errors.New("validation failed")
	// ErrFlowState reports an action invoked without its precondition,
	// such as verifying a secondary step with no stored token.
	ErrFlowState = errors.New("invalid flow state")
	// ErrRemote wraps a failure returned by the remote service.
	ErrRemote = errors.New("remote operation failed")
	// ErrRetryDenied reports a retry blocked by the retry policy.
	ErrRetryDenied = errors.New("retry denied")
)
