package domain

import "errors"

// Domain errors represent error conditions in the feedrelay domain.
// These errors are returned wrapped and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("feedrelay: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("feedrelay: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("feedrelay: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("feedrelay: invalid configuration")

	// ErrFetch is returned when a feed could not be downloaded
	// (network error or a status other than 200).
	ErrFetch = errors.New("feedrelay: fetch failed")

	// ErrParse is returned by a parse strategy that cannot read the document.
	ErrParse = errors.New("feedrelay: parse failed")

	// ErrSend is returned when the device link rejects a message.
	ErrSend = errors.New("feedrelay: send failed")

	// ErrConfigPayload is returned for a malformed configuration payload.
	ErrConfigPayload = errors.New("feedrelay: malformed configuration payload")

	// ErrLinkClosed fails sends that were pending when the device session ended.
	ErrLinkClosed = errors.New("feedrelay: link closed")

	// ErrNoPeer fails sends issued while no device is connected.
	ErrNoPeer = errors.New("feedrelay: no device connected")

	// ErrAckTimeout fails sends the device never acknowledged.
	ErrAckTimeout = errors.New("feedrelay: ack timeout")
)
