package llm

import "errors"

var (
	// ErrEndpointFault covers transport failures, non-2xx statuses and
	// timeouts from a completion or embedding endpoint.
	ErrEndpointFault = errors.New("completion endpoint fault")

	// ErrMalformedOutput marks model output that could not be parsed
	// into the shape the caller asked for.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrRetrievalFault covers failures of either search arm or the
	// embedding step that feeds it.
	ErrRetrievalFault = errors.New("retrieval fault")

	// ErrIterationExhausted means a loop hit its iteration ceiling
	// before the model signalled completion.
	ErrIterationExhausted = errors.New("max iterations reached without completion")
)
