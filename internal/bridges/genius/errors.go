package genius

import "errors"

// Domain errors for the Genius bridge package.
var (
	// ErrShortPacket is returned by packet accessors when the frame is too
	// short to contain the requested field.
	ErrShortPacket = errors.New("genius: packet too short")

	// ErrBusy is returned when a transmission is requested while another
	// one is in flight. Requests are rejected, never queued.
	ErrBusy = errors.New("genius: transmission in progress")

	// ErrUnknownAction is returned for an action name outside the
	// supported set.
	ErrUnknownAction = errors.New("genius: unknown action")

	// ErrMalformedRequest is returned when an action request cannot be
	// decoded or carries an invalid line id.
	ErrMalformedRequest = errors.New("genius: malformed request")

	// ErrBlocked is returned when a fire alarm is requested while the
	// alarm blocker is active.
	ErrBlocked = errors.New("genius: alarm actions blocked")

	// ErrTransmissionTimedOut marks a burst that hit the hard timeout.
	// It is reported in the completion event, not returned to callers.
	ErrTransmissionTimedOut = errors.New("genius: transmission timed out")

	// ErrNotRunning is returned when a request reaches a sequencer that
	// has not been started or has stopped.
	ErrNotRunning = errors.New("genius: sequencer not running")
)
