package fri

import (
	"encoding/binary"
	"math"
)

// Fixed payload prefixes expected by the controller. They follow the mode
// selector of a joint impedance SetControlMode command and open the payload
// of a SetFRIConfig command.
var (
	ControlModeHeader = []byte{0xC0, 0x01}
	FRIConfigHeader   = []byte{0xC4, 0x01}
)

// All multi-byte payload values are encoded little-endian with fixed width:
// 8 bytes for float64 values, 4 bytes for integers.
var payloadOrder = binary.LittleEndian

// Reply is a decoded inbound command-channel message.
//
// ID and Success are only meaningful for the states that carry them: an
// Accepted reply carries both, a Rejected reply carries only ID.
type Reply struct {
	State   CommandState
	ID      CommandID
	Success CommandSuccess
}

// EncodeCommand encodes a command without payload as its single opcode byte.
func EncodeCommand(id CommandID) []byte {
	return []byte{byte(id)}
}

// EncodeCommandWithPayload encodes the opcode byte followed by the payload
// bytes in order.
func EncodeCommandWithPayload(id CommandID, payload []byte) []byte {
	msg := make([]byte, 0, 1+len(payload))
	msg = append(msg, byte(id))
	msg = append(msg, payload...)

	return msg
}

// EncodeControlMode builds the payload of a SetControlMode command.
//
// For PositionControlMode the payload is the mode selector byte alone. For
// JointImpedanceControlMode the selector is followed by ControlModeHeader and
// each stiffness value then each damping value as 8-byte floats, in the exact
// order received.
//
// Vector lengths are not validated against JointCount here; a mismatched
// vector is a caller error that surfaces as a rejection from the controller.
func EncodeControlMode(mode ControlModeID, stiffness []float64, damping []float64) []byte {
	if mode != JointImpedanceControlMode {
		return []byte{byte(mode)}
	}

	payload := make([]byte, 0, 1+len(ControlModeHeader)+(len(stiffness)+len(damping))*8)
	payload = append(payload, byte(mode))
	payload = append(payload, ControlModeHeader...)
	for _, js := range stiffness {
		payload = payloadOrder.AppendUint64(payload, math.Float64bits(js))
	}
	for _, jd := range damping {
		payload = payloadOrder.AppendUint64(payload, math.Float64bits(jd))
	}

	return payload
}

// EncodeFRIConfig builds the payload of a SetFRIConfig command:
// FRIConfigHeader followed by the remote UDP port, the send period in
// milliseconds and the receive multiplier, each as a 4-byte integer.
func EncodeFRIConfig(remotePort int, sendPeriodMS int, receiveMultiplier int) []byte {
	payload := make([]byte, 0, len(FRIConfigHeader)+12)
	payload = append(payload, FRIConfigHeader...)
	payload = payloadOrder.AppendUint32(payload, uint32(remotePort))        //nolint:gosec
	payload = payloadOrder.AppendUint32(payload, uint32(sendPeriodMS))      //nolint:gosec
	payload = payloadOrder.AppendUint32(payload, uint32(receiveMultiplier)) //nolint:gosec

	return payload
}

// DecodeReply decodes an inbound command-channel message.
//
// The first byte selects the CommandState. An Accepted reply requires at
// least 3 bytes (state, echoed command ID, success flag) and a Rejected reply
// at least 2 (state, echoed command ID); shorter input returns
// ErrMalformedReply and no reply. The session-termination states and Unknown
// carry no further fields. A first byte outside the enumerated states decodes
// to Unknown.
func DecodeReply(data []byte) (Reply, error) {
	if len(data) == 0 {
		return Reply{}, ErrMalformedReply
	}

	switch state := CommandState(data[0]); state {
	case Accepted:
		if len(data) < 3 {
			return Reply{}, ErrMalformedReply
		}

		return Reply{State: Accepted, ID: CommandID(data[1]), Success: CommandSuccess(data[2])}, nil

	case Rejected:
		if len(data) < 2 {
			return Reply{}, ErrMalformedReply
		}

		return Reply{State: Rejected, ID: CommandID(data[1])}, nil

	case Unknown, ErrorControlEnded, ErrorFRIEnded:
		return Reply{State: state}, nil

	default:
		return Reply{State: Unknown}, nil
	}
}
