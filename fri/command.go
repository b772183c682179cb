package fri

// JointCount is the number of joints of the supported LBR manipulators.
// Stiffness and damping vectors must carry exactly this many values.
const JointCount = 7

// CommandID is the single-byte opcode of an outbound command-channel message.
type CommandID byte

// Command opcodes. The numeric assignments are part of the wire protocol and
// must not be reordered.
const (
	// Connect opens a command session on the controller.
	Connect CommandID = iota + 1
	// Disconnect ends the command session.
	Disconnect
	// StartFRI starts the cyclic real-time data exchange.
	StartFRI
	// EndFRI stops the cyclic real-time data exchange.
	EndFRI
	// ActivateControl hands joint command authority to the client.
	ActivateControl
	// DeactivateControl returns joint command authority to the controller.
	DeactivateControl
	// SetControlMode selects position or joint impedance control.
	SetControlMode
	// SetCommandMode selects the client command mode of the cyclic channel.
	SetCommandMode
	// SetFRIConfig pushes the cyclic channel configuration to the controller.
	SetFRIConfig
)

// String returns the string representation of the command opcode.
func (id CommandID) String() string {
	switch id {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case StartFRI:
		return "start-fri"
	case EndFRI:
		return "end-fri"
	case ActivateControl:
		return "activate-control"
	case DeactivateControl:
		return "deactivate-control"
	case SetControlMode:
		return "set-control-mode"
	case SetCommandMode:
		return "set-command-mode"
	case SetFRIConfig:
		return "set-fri-config"
	default:
		return "unknown"
	}
}

// CommandState classifies an inbound command-channel message by its first byte.
type CommandState byte

// Inbound message states.
const (
	// Accepted indicates the echoed command was accepted; a success flag follows.
	Accepted CommandState = iota + 1
	// Rejected indicates the echoed command was rejected by the controller.
	Rejected
	// Unknown indicates the controller did not recognize the command.
	Unknown
	// ErrorControlEnded signals that the controller ended external control.
	ErrorControlEnded
	// ErrorFRIEnded signals that the controller ended the cyclic FRI session.
	ErrorFRIEnded
)

// IsSessionEnded returns true for the unsolicited session-termination states.
func (cs CommandState) IsSessionEnded() bool {
	return cs == ErrorControlEnded || cs == ErrorFRIEnded
}

// String returns the string representation of the command state.
func (cs CommandState) String() string {
	switch cs {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unknown:
		return "unknown"
	case ErrorControlEnded:
		return "error-control-ended"
	case ErrorFRIEnded:
		return "error-fri-ended"
	default:
		return "invalid"
	}
}

// CommandSuccess is the success flag carried by an Accepted reply.
type CommandSuccess byte

const (
	// NoSuccess indicates the accepted command did not take effect.
	NoSuccess CommandSuccess = iota
	// Success indicates the accepted command took effect.
	Success
)

// String returns the string representation of the success flag.
func (s CommandSuccess) String() string {
	if s == Success {
		return "success"
	}
	return "no-success"
}

// ControlModeID selects the controller-side control mode in a SetControlMode
// command. It is carried as the first payload byte.
type ControlModeID byte

const (
	// PositionControlMode selects stiff position control.
	PositionControlMode ControlModeID = iota + 1
	// JointImpedanceControlMode selects joint impedance control with
	// per-joint stiffness and damping parameters.
	JointImpedanceControlMode
)

// String returns the string representation of the control mode.
func (m ControlModeID) String() string {
	switch m {
	case PositionControlMode:
		return "position-control"
	case JointImpedanceControlMode:
		return "joint-impedance-control"
	default:
		return "unknown"
	}
}

// ClientCommandModeID selects what quantity the client commands on the cyclic
// channel. It is carried as the payload byte of a SetCommandMode command.
type ClientCommandModeID byte

const (
	// PositionCommandMode commands joint positions.
	PositionCommandMode ClientCommandModeID = iota + 1
	// WrenchCommandMode commands a Cartesian wrench overlay.
	WrenchCommandMode
	// TorqueCommandMode commands joint torque overlays.
	TorqueCommandMode
)

// String returns the string representation of the client command mode.
func (m ClientCommandModeID) String() string {
	switch m {
	case PositionCommandMode:
		return "position"
	case WrenchCommandMode:
		return "wrench"
	case TorqueCommandMode:
		return "torque"
	default:
		return "unknown"
	}
}
