// Package friudp implements the cyclic real-time data exchange of an FRI
// session: the controller sends a robot state frame over UDP at the configured
// send period, and the client answers every Nth frame (the receive
// multiplier) with a joint command frame.
//
// Unlike the command channel there is no request/response correlation; the
// exchange is a fixed-rate producer/consumer pair keyed only by the frame
// sequence number, which the client echoes so the controller can measure
// tracking performance.
//
// The frame layout implemented here is the driver's own framing. The vendor
// interconnection protocol is device specific and is configured on the
// controller side; this package standardizes only the structural content:
// session metadata, per-joint values and named IO values.
package friudp
