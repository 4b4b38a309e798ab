package query

import "errors"

var (
	// ErrInvalidInput marks a request that can never succeed as sent.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInterpretationFailed is returned by the interpreter when the model call fails or its
	// reply is not a JSON object.
	ErrInterpretationFailed = errors.New("interpretation failed")
	// ErrSynthesisFailed is returned by the synthesizer; the orchestrator never surfaces it.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrBackendUnavailable wraps every fetch failure. The report package error stays in the chain.
	ErrBackendUnavailable = errors.New("analytics backend unavailable")
)
