package main

import (
	"math"
	"testing"

	"emotionbank.games/internal/protocol"
)

func state(tick uint64, held string, magnets ...protocol.MagnetState) *protocol.StateMsg {
	return &protocol.StateMsg{
		Tick:     tick,
		PlayerID: "P1",
		Hands:    []protocol.HandState{{Side: "L", Held: held}, {Side: "R"}},
		Entities: []protocol.EntityState{{ID: "P1", Kind: "PLAYER"}},
		Magnets:  magnets,
	}
}

func TestBotWalksTowardNearestFreeMagnet(t *testing.T) {
	b := &bot{}
	st := state(25,
		"",
		protocol.MagnetState{ID: "far", State: "FREE", Pos: [3]float64{0, 0, 10}},
		protocol.MagnetState{ID: "near", State: "FREE", Pos: [3]float64{3, 0, 0}},
		protocol.MagnetState{ID: "stuck", State: "ATTACHED", Pos: [3]float64{0.1, 0, 0}},
		protocol.MagnetState{ID: "held", State: "FREE", Holder: "P2/L", Pos: [3]float64{0.2, 0, 0}},
	)
	out := b.decide(st)
	if len(out) != 2 || out[0].Op != protocol.OpView || out[1].Op != protocol.OpMove {
		t.Fatalf("intents: %+v", out)
	}
	if math.Abs(out[0].Yaw-math.Pi/2) > 1e-9 || out[1].Move != [2]float64{0, 1} {
		t.Fatalf("yaw=%v move=%v", out[0].Yaw, out[1].Move)
	}
	if out[0].Seq != 1 || out[1].Seq != 2 {
		t.Fatalf("seqs: %d %d", out[0].Seq, out[1].Seq)
	}
	for _, in := range out {
		if code, msg := in.Validate(); code != "" {
			t.Fatalf("invalid intent %+v: %s", in, msg)
		}
	}

	// Off-beat ticks do nothing.
	if out := b.decide(state(26, "")); out != nil {
		t.Fatalf("off-beat: %+v", out)
	}
}

func TestBotGrabsInRangeThenTosses(t *testing.T) {
	b := &bot{}
	out := b.decide(state(50, "", protocol.MagnetState{ID: "m", State: "FREE", Pos: [3]float64{0, 0, 1}}))
	if len(out) != 3 || out[2].Op != protocol.OpGrab || out[2].Side != protocol.SideLeft || out[0].Pitch == 0 {
		t.Fatalf("grab: %+v", out)
	}

	if out := b.decide(state(75, "m")); out != nil {
		t.Fatalf("tossed too early: %+v", out)
	}
	if out := b.decide(state(150, "m")); out != nil {
		t.Fatalf("tossed too early: %+v", out)
	}
	out = b.decide(state(175, "m"))
	if len(out) != 1 || out[0].Op != protocol.OpToss {
		t.Fatalf("toss: %+v", out)
	}
}
