package friudp

import (
	"encoding/binary"
	"errors"
	"maps"
	"math"
	"slices"

	"github.com/kukabot/go-fri/fri"
)

// ErrInvalidFrame indicates an inbound datagram that is not a well-formed
// frame: wrong magic, unknown frame type, truncated fixed section or a
// truncated IO section.
var ErrInvalidFrame = errors.New("friudp: invalid frame")

const (
	frameMagic byte = 0xFD

	stateFrameType   byte = 0x01
	commandFrameType byte = 0x02

	// fixed section sizes, excluding the variable IO section
	stateFrameFixedSize   = 2 + 4 + 3 + 8 + 2*fri.JointCount*8
	commandFrameFixedSize = 2 + 4 + 1 + fri.JointCount*8

	maxIONameLen = 255
)

var frameOrder = binary.LittleEndian

// SessionState is the FRI session state reported by the controller.
type SessionState byte

const (
	SessionIdle SessionState = iota
	SessionMonitoringWait
	SessionMonitoringReady
	SessionCommandingWait
	SessionCommandingActive
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionMonitoringWait:
		return "monitoring-wait"
	case SessionMonitoringReady:
		return "monitoring-ready"
	case SessionCommandingWait:
		return "commanding-wait"
	case SessionCommandingActive:
		return "commanding-active"
	default:
		return "unknown"
	}
}

// ConnectionQuality is the controller's rating of the cyclic link.
type ConnectionQuality byte

const (
	QualityPoor ConnectionQuality = iota
	QualityFair
	QualityGood
	QualityExcellent
)

// String returns the string representation of the connection quality.
func (q ConnectionQuality) String() string {
	switch q {
	case QualityPoor:
		return "poor"
	case QualityFair:
		return "fair"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// SafetyState is the controller's safety controller state.
type SafetyState byte

const (
	SafetyNormal SafetyState = iota
	SafetyStop1
	SafetyStop0
)

// String returns the string representation of the safety state.
func (s SafetyState) String() string {
	switch s {
	case SafetyNormal:
		return "normal"
	case SafetyStop1:
		return "safety-stop-1"
	case SafetyStop0:
		return "safety-stop-0"
	default:
		return "unknown"
	}
}

// RobotState is one cyclic state frame from the controller.
type RobotState struct {
	// Sequence increases by one per frame; the client echoes it in its
	// command frame.
	Sequence uint32

	SessionState SessionState
	Quality      ConnectionQuality
	SafetyState  SafetyState

	// TrackingPerformance is 1.0 when the robot tracks the commanded values
	// perfectly and approaches 0.0 as it falls behind.
	TrackingPerformance float64

	MeasuredJointPositions [fri.JointCount]float64
	ExternalTorques        [fri.JointCount]float64

	// IOValues carries the named controller outputs of this frame.
	IOValues map[string]float64
}

// JointCommand is one cyclic command frame from the client.
type JointCommand struct {
	// Sequence echoes the state frame this command answers.
	Sequence uint32

	Mode        fri.ClientCommandModeID
	JointValues [fri.JointCount]float64

	// IOValues carries the named client outputs of this frame.
	IOValues map[string]float64
}

// EncodeRobotState encodes the state frame. IO values are written in
// lexicographic name order so the encoding is deterministic.
func EncodeRobotState(rs *RobotState) []byte {
	buf := make([]byte, 0, stateFrameFixedSize+ioSectionSize(rs.IOValues))
	buf = append(buf, frameMagic, stateFrameType)
	buf = frameOrder.AppendUint32(buf, rs.Sequence)
	buf = append(buf, byte(rs.SessionState), byte(rs.Quality), byte(rs.SafetyState))
	buf = frameOrder.AppendUint64(buf, math.Float64bits(rs.TrackingPerformance))
	for _, v := range rs.MeasuredJointPositions {
		buf = frameOrder.AppendUint64(buf, math.Float64bits(v))
	}
	for _, v := range rs.ExternalTorques {
		buf = frameOrder.AppendUint64(buf, math.Float64bits(v))
	}

	return appendIOSection(buf, rs.IOValues)
}

// DecodeRobotState decodes a state frame.
func DecodeRobotState(data []byte) (*RobotState, error) {
	if len(data) < stateFrameFixedSize || data[0] != frameMagic || data[1] != stateFrameType {
		return nil, ErrInvalidFrame
	}

	rs := &RobotState{
		Sequence:     frameOrder.Uint32(data[2:6]),
		SessionState: SessionState(data[6]),
		Quality:      ConnectionQuality(data[7]),
		SafetyState:  SafetyState(data[8]),
	}

	pos := 9
	rs.TrackingPerformance = math.Float64frombits(frameOrder.Uint64(data[pos : pos+8]))
	pos += 8
	for i := range rs.MeasuredJointPositions {
		rs.MeasuredJointPositions[i] = math.Float64frombits(frameOrder.Uint64(data[pos : pos+8]))
		pos += 8
	}
	for i := range rs.ExternalTorques {
		rs.ExternalTorques[i] = math.Float64frombits(frameOrder.Uint64(data[pos : pos+8]))
		pos += 8
	}

	ioValues, err := decodeIOSection(data[pos:])
	if err != nil {
		return nil, err
	}
	rs.IOValues = ioValues

	return rs, nil
}

// EncodeJointCommand encodes the command frame. IO values are written in
// lexicographic name order so the encoding is deterministic.
func EncodeJointCommand(cmd *JointCommand) []byte {
	buf := make([]byte, 0, commandFrameFixedSize+ioSectionSize(cmd.IOValues))
	buf = append(buf, frameMagic, commandFrameType)
	buf = frameOrder.AppendUint32(buf, cmd.Sequence)
	buf = append(buf, byte(cmd.Mode))
	for _, v := range cmd.JointValues {
		buf = frameOrder.AppendUint64(buf, math.Float64bits(v))
	}

	return appendIOSection(buf, cmd.IOValues)
}

// DecodeJointCommand decodes a command frame.
func DecodeJointCommand(data []byte) (*JointCommand, error) {
	if len(data) < commandFrameFixedSize || data[0] != frameMagic || data[1] != commandFrameType {
		return nil, ErrInvalidFrame
	}

	cmd := &JointCommand{
		Sequence: frameOrder.Uint32(data[2:6]),
		Mode:     fri.ClientCommandModeID(data[6]),
	}

	pos := 7
	for i := range cmd.JointValues {
		cmd.JointValues[i] = math.Float64frombits(frameOrder.Uint64(data[pos : pos+8]))
		pos += 8
	}

	ioValues, err := decodeIOSection(data[pos:])
	if err != nil {
		return nil, err
	}
	cmd.IOValues = ioValues

	return cmd, nil
}

func ioSectionSize(ioValues map[string]float64) int {
	size := 1
	for name := range ioValues {
		size += 1 + len(name) + 8
	}

	return size
}

// appendIOSection appends [count][len name value]... with names in sorted
// order. Names longer than 255 bytes are skipped; setters reject them before
// they can get here.
func appendIOSection(buf []byte, ioValues map[string]float64) []byte {
	names := slices.Sorted(maps.Keys(ioValues))
	names = slices.DeleteFunc(names, func(name string) bool { return len(name) > maxIONameLen })
	if len(names) > 255 {
		names = names[:255]
	}

	buf = append(buf, byte(len(names)))
	for _, name := range names {
		buf = append(buf, byte(len(name)))
		buf = append(buf, name...)
		buf = frameOrder.AppendUint64(buf, math.Float64bits(ioValues[name]))
	}

	return buf
}

func decodeIOSection(data []byte) (map[string]float64, error) {
	if len(data) < 1 {
		return nil, ErrInvalidFrame
	}

	count := int(data[0])
	if count == 0 {
		return nil, nil
	}

	ioValues := make(map[string]float64, count)
	pos := 1
	for range count {
		if pos >= len(data) {
			return nil, ErrInvalidFrame
		}

		nameLen := int(data[pos])
		pos++
		if pos+nameLen+8 > len(data) {
			return nil, ErrInvalidFrame
		}

		name := string(data[pos : pos+nameLen])
		pos += nameLen
		ioValues[name] = math.Float64frombits(frameOrder.Uint64(data[pos : pos+8]))
		pos += 8
	}

	return ioValues, nil
}
