// Package fri implements the wire protocol of the FRI command channel used to
// configure and supervise a real-time control session on a KUKA Sunrise
// controller.
//
// The command channel is a point-to-point byte stream. Every outbound message
// starts with a single opcode byte (CommandID) optionally followed by a
// payload; every inbound message starts with a single state byte
// (CommandState) that classifies it as a command reply or an unsolicited
// session-termination event.
//
// The package provides:
//   - The protocol enumerations: CommandID, CommandState, CommandSuccess,
//     ControlModeID and ClientCommandModeID, with their stable wire values.
//   - A pure codec: EncodeCommand, EncodeCommandWithPayload,
//     EncodeControlMode, EncodeFRIConfig and DecodeReply.
//   - The Transport contract consumed by the session layer, implemented over
//     TCP by the fritcp package.
//
// The blocking command correlation on top of this protocol lives in the
// sunrise package; the cyclic real-time data exchange lives in friudp.
package fri
