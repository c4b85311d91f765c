package world

import (
	"math"

	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/vec"
)

const maxPitch = 1.5

func (w *World) applyIntent(p *Player, in protocol.IntentMsg) protocol.IntentResult {
	res := protocol.IntentResult{Seq: in.Seq, Op: in.Op, Result: magnet.OK.String()}
	if code, _ := in.Validate(); code != "" {
		res.Result = magnet.Rejected.String()
		res.Code = code
		return res
	}
	side, _ := hands.ParseSide(in.Side)

	var out hands.Outcome
	switch in.Op {
	case protocol.OpGrab:
		out = p.Hands.Grab(side, w.handsEnv(p))
	case protocol.OpRelease:
		out = p.Hands.Release(side, w.handsEnv(p))
	case protocol.OpToss:
		out = p.Hands.Toss(side, w.handsEnv(p))
	case protocol.OpPress:
		out = p.Hands.Press(side, in.Pressed, w.handsEnv(p))
	case protocol.OpLock:
		p.Hands.ToggleLock(side)
		return res
	case protocol.OpLockBoth:
		p.Hands.ToggleLockBoth()
		return res
	case protocol.OpFocus:
		if in.Point == nil {
			p.Hands.SetFocus(vec.Zero, false)
		} else {
			p.Hands.SetFocus(vec.Vec3{X: in.Point[0], Y: in.Point[1], Z: in.Point[2]}, true)
		}
		return res
	case protocol.OpMove:
		m := vec.Vec3{X: in.Move[0], Z: in.Move[1]}.ClampLen(1)
		p.Move = [2]float64{m.X, m.Z}
		return res
	case protocol.OpView:
		p.Yaw = math.Remainder(in.Yaw, 2*math.Pi)
		p.Pitch = max(-maxPitch, min(maxPitch, in.Pitch))
		return res
	}
	res.Result = out.Result.String()
	res.Code = resultCode(out.Result)
	res.Magnet = string(out.Magnet)
	return res
}

// resultCode maps a transition result onto the wire error taxonomy. OK and
// Noop are not errors.
func resultCode(r magnet.Result) string {
	switch r {
	case magnet.Rejected:
		return protocol.ErrConflict
	case magnet.Duplicate:
		return protocol.ErrDuplicate
	case magnet.Stale:
		return protocol.ErrStale
	default:
		return ""
	}
}
