package rtc

import "errors"

var (
	// ErrNotInitialized means an operation ran before its prerequisite
	// setup (initialize/capture) completed.
	ErrNotInitialized = errors.New("not initialized")

	// ErrNegotiationFailed means the platform rejected an SDP or ICE
	// application.
	ErrNegotiationFailed = errors.New("negotiation failed")
)
