package main

import (
	"math"

	"emotionbank.games/internal/protocol"
)

const (
	// Ticks between decisions.
	thinkEvery = 25
	grabRange  = 1.2
	holdTicks  = 100
)

// bot walks to the nearest free magnet, grabs it with the left hand, carries
// it for a while and tosses it.
type bot struct {
	seq      uint64
	heldFrom uint64
}

func (b *bot) intent(in protocol.IntentMsg) protocol.IntentMsg {
	b.seq++
	in.Type = protocol.TypeIntent
	in.ProtocolVersion = protocol.Version
	in.Seq = b.seq
	return in
}

func (b *bot) decide(st *protocol.StateMsg) []protocol.IntentMsg {
	if st.Tick%thinkEvery != 0 || len(st.Hands) == 0 {
		return nil
	}
	self, ok := findEntity(st, st.PlayerID)
	if !ok {
		return nil
	}

	if held := st.Hands[0].Held; held != "" {
		if b.heldFrom == 0 {
			b.heldFrom = st.Tick
		}
		if st.Tick-b.heldFrom < holdTicks {
			return nil
		}
		b.heldFrom = 0
		return []protocol.IntentMsg{b.intent(protocol.IntentMsg{Op: protocol.OpToss, Side: protocol.SideLeft})}
	}
	b.heldFrom = 0

	target, dist, ok := nearestFreeMagnet(st, self.Pos)
	if !ok {
		return []protocol.IntentMsg{b.intent(protocol.IntentMsg{Op: protocol.OpMove})}
	}
	dx := target.Pos[0] - self.Pos[0]
	dz := target.Pos[2] - self.Pos[2]
	yaw := math.Atan2(dx, dz)
	// Look down at magnets on the floor once close.
	pitch := 0.0
	if dist < 2*grabRange {
		pitch = 0.6
	}
	out := []protocol.IntentMsg{b.intent(protocol.IntentMsg{Op: protocol.OpView, Yaw: yaw, Pitch: pitch})}
	if dist <= grabRange {
		out = append(out,
			b.intent(protocol.IntentMsg{Op: protocol.OpMove}),
			b.intent(protocol.IntentMsg{Op: protocol.OpGrab, Side: protocol.SideLeft}),
		)
		return out
	}
	return append(out, b.intent(protocol.IntentMsg{Op: protocol.OpMove, Move: [2]float64{0, 1}}))
}

func findEntity(st *protocol.StateMsg, id string) (protocol.EntityState, bool) {
	for _, e := range st.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return protocol.EntityState{}, false
}

func nearestFreeMagnet(st *protocol.StateMsg, from [3]float64) (protocol.MagnetState, float64, bool) {
	var best protocol.MagnetState
	bestDist := math.Inf(1)
	for _, m := range st.Magnets {
		if m.State != "FREE" || m.Holder != "" {
			continue
		}
		dx := m.Pos[0] - from[0]
		dz := m.Pos[2] - from[2]
		if d := math.Hypot(dx, dz); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best, bestDist, !math.IsInf(bestDist, 1)
}
