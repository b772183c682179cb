package fri

import "errors"

var (
	// ErrNotConnected indicates that no transport is established, so no
	// command can be sent.
	ErrNotConnected = errors.New("fri: not connected")

	// ErrConnClosed indicates that the transport was closed while a command
	// was in flight.
	ErrConnClosed = errors.New("fri: connection closed")

	// ErrMalformedReply indicates that an inbound message is too short for
	// the state it announces. Malformed input is logged and dropped; it never
	// completes a pending command.
	ErrMalformedReply = errors.New("fri: malformed reply")

	// ErrReplyTimeout indicates that no reply arrived within the configured
	// reply timeout. It is only returned when a reply timeout is configured;
	// the default is to wait indefinitely.
	ErrReplyTimeout = errors.New("fri: reply timeout")
)

var (
	// ErrCommandRejected indicates the controller rejected the command.
	ErrCommandRejected = errors.New("fri: command rejected")

	// ErrCommandUnknown indicates the controller did not recognize the command.
	ErrCommandUnknown = errors.New("fri: command unknown to controller")

	// ErrCommandFailed indicates the controller accepted the command but
	// reported it did not take effect.
	ErrCommandFailed = errors.New("fri: command accepted without success")

	// ErrReplyMismatch indicates the reply echoed a different command ID than
	// the one in flight. It guards against stale or misrouted replies being
	// attributed to the current call.
	ErrReplyMismatch = errors.New("fri: reply command ID mismatch")

	// ErrControlEnded indicates the controller ended external control while a
	// command was awaited.
	ErrControlEnded = errors.New("fri: control ended by controller")

	// ErrFRIEnded indicates the controller ended the cyclic FRI session while
	// a command was awaited.
	ErrFRIEnded = errors.New("fri: FRI session ended by controller")
)

var (
	// ErrInvalidJointCount indicates a joint vector whose length differs
	// from JointCount.
	ErrInvalidJointCount = errors.New("fri: joint vector length mismatch")

	// ErrInvalidMultiplier indicates a receive multiplier below 1.
	ErrInvalidMultiplier = errors.New("fri: receive multiplier must be >= 1")
)
