package authflow

import (
	"errors"

	"github.com/calmreach/authflow/internal/flows"
)

var (
	// ErrBusy is an exported constant or variable used by the flow client.
	ErrBusy = flows.ErrBusy
	// ErrValidation is an exported constant or variable used by the flow client.
	ErrValidation = flows.ErrValidation
	// ErrFlowState is an exported constant or variable used by the flow client.
	ErrFlowState = flows.ErrFlowState
	// ErrRemote is an exported constant or variable used by the flow client.
	ErrRemote = flows.ErrRemote
	// ErrRetryDenied is an exported constant or variable used by the flow client.
	ErrRetryDenied = flows.ErrRetryDenied

	// ErrClientNotReady is an exported constant or variable used by the flow client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrNilService is an exported constant or variable used by the flow client.
	ErrNilService = errors.New("account service is required")
	// ErrConfigInvalid is an exported constant or variable used by the flow client.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrVaultUnavailable is an exported constant or variable used by the flow client.
	ErrVaultUnavailable = errors.New("challenge vault unavailable")
)
