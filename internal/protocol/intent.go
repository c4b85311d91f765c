package protocol

import "math"

// Intent ops.
const (
	OpGrab     = "GRAB"
	OpRelease  = "RELEASE"
	OpToss     = "TOSS"
	OpPress    = "PRESS"
	OpLock     = "LOCK"
	OpLockBoth = "LOCK_BOTH"
	OpFocus    = "FOCUS"
	OpMove     = "MOVE"
	OpView     = "VIEW"
)

// Hand sides on the wire. An empty side means ANY and is only valid for TOSS.
const (
	SideLeft  = "L"
	SideRight = "R"
	SideAny   = "ANY"
)

// INTENT (client -> server). Seq is per player and must increase; intents with
// a seq at or below the last applied one are dropped as retransmissions.
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Op              string `json:"op"`

	Side    string `json:"side,omitempty"`
	Pressed bool   `json:"pressed,omitempty"`

	// FOCUS: nil clears the focus point.
	Point *[3]float64 `json:"point,omitempty"`

	// MOVE: x is strafe (right positive), y is forward.
	Move [2]float64 `json:"move,omitempty"`

	// VIEW: radians.
	Yaw   float64 `json:"yaw,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
}

// Validate returns an error code and message, or "" when the intent is well formed.
func (m IntentMsg) Validate() (code, message string) {
	if m.Seq == 0 {
		return ErrBadRequest, "seq must be > 0"
	}
	switch m.Op {
	case OpGrab, OpRelease, OpPress, OpLock:
		if m.Side != SideLeft && m.Side != SideRight {
			return ErrBadRequest, "side must be L or R"
		}
	case OpToss:
		switch m.Side {
		case "", SideAny, SideLeft, SideRight:
		default:
			return ErrBadRequest, "bad side"
		}
	case OpLockBoth:
	case OpFocus:
		if m.Point != nil && !finite(m.Point[0], m.Point[1], m.Point[2]) {
			return ErrBadRequest, "bad focus point"
		}
	case OpMove:
		if !finite(m.Move[0], m.Move[1]) {
			return ErrBadRequest, "bad move"
		}
	case OpView:
		if !finite(m.Yaw, m.Pitch) {
			return ErrBadRequest, "bad view"
		}
	default:
		return ErrBadRequest, "unknown op"
	}
	return "", ""
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
