// Package sunrise provides the command-channel session with a KUKA Sunrise
// controller: a blocking operation set (Connect, StartFRI, ActivateControl,
// SetJointImpedanceControlMode, ...) built on a single-outstanding-command
// correlator.
//
// Exactly one command may be in flight at a time. Each facade operation
// encodes its wire message via the fri package, publishes its intent to wait,
// sends the message through the transport and blocks the calling goroutine
// until the controller's reply arrives. Replies are matched against the sent
// command by the echoed command ID.
//
// The controller may also emit unsolicited session-termination events
// (ErrorControlEnded, ErrorFRIEnded) outside of any command exchange. With no
// command in flight these are delivered exactly once to the handlers
// registered with WithControlEndedHandler and WithFRIEndedHandler, on a
// detached goroutine; while a command is in flight they complete that command
// with an error instead.
//
// Concurrency contract: the design supports one caller at a time. Invoking a
// second facade operation before the first returns is undefined behavior.
package sunrise
