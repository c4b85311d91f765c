package world

import (
	"math"
	"testing"

	"emotionbank.games/internal/protocol"
)

func TestIntentSeqDedupe(t *testing.T) {
	w := newTestWorld(t, quietScene)
	id, out := join(t, w, "a")
	<-out

	w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: id, Intent: intent(1, protocol.OpMove, "")}})
	st := lastState(t, out)
	if len(st.Results) != 1 || st.Results[0].Result != "OK" || st.LastSeq != 1 {
		t.Fatalf("first: %+v", st)
	}

	w.StepOnce(nil, nil, []IntentEnvelope{
		{PlayerID: id, Intent: intent(1, protocol.OpMove, "")},
		{PlayerID: id, Intent: intent(2, protocol.OpLock, protocol.SideLeft)},
	})
	st = lastState(t, out)
	if len(st.Results) != 2 {
		t.Fatalf("results: %+v", st.Results)
	}
	if r := st.Results[0]; r.Seq != 1 || r.Result != "DUPLICATE" || r.Code != protocol.ErrDuplicate {
		t.Fatalf("duplicate: %+v", r)
	}
	if r := st.Results[1]; r.Seq != 2 || r.Result != "OK" || r.Code != "" {
		t.Fatalf("lock: %+v", r)
	}
	if st.LastSeq != 2 || !st.Hands[0].Locked || st.Hands[1].Locked {
		t.Fatalf("state: %+v", st)
	}
}

func TestIntentValidationRejects(t *testing.T) {
	w := newTestWorld(t, quietScene)
	id, out := join(t, w, "a")
	<-out

	bad := intent(5, protocol.OpGrab, "X")
	w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: id, Intent: bad}})
	st := lastState(t, out)
	if len(st.Results) != 1 || st.Results[0].Result != "REJECTED" || st.Results[0].Code != protocol.ErrBadRequest {
		t.Fatalf("results: %+v", st.Results)
	}
	if st.LastSeq != 5 {
		t.Fatalf("rejected intent should still consume its seq: %d", st.LastSeq)
	}
	if st.Hands[0].Held != "" {
		t.Fatalf("rejected grab held something")
	}
}

func TestIntentForUnknownPlayerIgnored(t *testing.T) {
	w := newTestWorld(t, quietScene)
	before := w.Frame().Digest
	_, d := w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: "P9", Intent: intent(1, protocol.OpMove, "")}})
	if d == before || d == "" {
		t.Fatalf("step did not publish a new digest")
	}
	if len(w.players) != 0 {
		t.Fatalf("players=%d", len(w.players))
	}
}

func TestViewAndMoveClamp(t *testing.T) {
	w := newTestWorld(t, quietScene)
	id, _ := join(t, w, "a")

	view := intent(1, protocol.OpView, "")
	view.Yaw = 3 * math.Pi
	view.Pitch = 4
	move := intent(2, protocol.OpMove, "")
	move.Move = [2]float64{3, 4}
	w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: id, Intent: view}, {PlayerID: id, Intent: move}})

	p := w.players["P1"]
	if math.Abs(p.Yaw) > math.Pi+1e-9 {
		t.Fatalf("yaw not wrapped: %v", p.Yaw)
	}
	if p.Pitch != maxPitch {
		t.Fatalf("pitch=%v", p.Pitch)
	}
	if l := math.Hypot(p.Move[0], p.Move[1]); math.Abs(l-1) > 1e-9 {
		t.Fatalf("move len=%v", l)
	}
}

func TestGrabThenLeaveReleasesMagnet(t *testing.T) {
	w := newTestWorld(t, quietScene)
	out := make(chan []byte, 1)
	resp := make(chan JoinResponse, 1)
	w.StepOnce(
		[]JoinRequest{{Name: "a", Out: out, Resp: resp}},
		nil,
		[]IntentEnvelope{{PlayerID: "P1", Intent: intent(1, protocol.OpGrab, protocol.SideLeft)}},
	)
	if r := <-resp; r.Welcome.PlayerID != "P1" {
		t.Fatalf("player id %q", r.Welcome.PlayerID)
	}
	st := lastState(t, out)
	if len(st.Results) != 1 || st.Results[0].Result != "OK" || st.Results[0].Magnet != "m1" {
		t.Fatalf("grab: %+v", st.Results)
	}
	if st.Hands[0].Held != "m1" {
		t.Fatalf("left hand: %+v", st.Hands[0])
	}
	m, _ := findMagnet(w.Frame(), "m1")
	if m.Holder != "P1/L" || m.State != "FREE" {
		t.Fatalf("held magnet: %+v", m)
	}

	// A second grab on the same hand is a no-op.
	w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: "P1", Intent: intent(2, protocol.OpGrab, protocol.SideLeft)}})
	st = lastState(t, out)
	if st.Results[0].Result != "NOOP" || st.Hands[0].Held != "m1" {
		t.Fatalf("regrab: %+v", st)
	}

	w.StepOnce(nil, []string{"P1"}, nil)
	f := w.Frame()
	if len(f.Leaves) != 1 || f.Leaves[0] != "P1" {
		t.Fatalf("leaves: %v", f.Leaves)
	}
	m, _ = findMagnet(f, "m1")
	if m.Holder != "" {
		t.Fatalf("magnet still held after leave: %+v", m)
	}
	for _, e := range f.Entities {
		if e.ID == "P1" {
			t.Fatalf("player still in frame")
		}
	}
	if _, ok := w.space.Pose("P1"); ok {
		t.Fatalf("player body not removed")
	}
}

func TestLeaveUnknownPlayerNotRecorded(t *testing.T) {
	w := newTestWorld(t, quietScene)
	w.StepOnce(nil, []string{"P7"}, nil)
	if len(w.Frame().Leaves) != 0 {
		t.Fatalf("leaves: %v", w.Frame().Leaves)
	}
}

func TestTossThrowsHeldMagnet(t *testing.T) {
	w := newTestWorld(t, quietScene)
	out := make(chan []byte, 1)
	w.StepOnce(
		[]JoinRequest{{Name: "a", Out: out}},
		nil,
		[]IntentEnvelope{{PlayerID: "P1", Intent: intent(1, protocol.OpGrab, protocol.SideRight)}},
	)
	lastState(t, out)
	w.StepOnce(nil, nil, []IntentEnvelope{{PlayerID: "P1", Intent: intent(2, protocol.OpToss, protocol.SideAny)}})
	st := lastState(t, out)
	if st.Results[0].Result != "OK" || st.Results[0].Magnet != "m1" {
		t.Fatalf("toss: %+v", st.Results)
	}
	if st.Hands[1].Held != "" {
		t.Fatalf("right hand still holds %q", st.Hands[1].Held)
	}
	v, _ := w.space.Velocity("m1")
	if v.Z <= 0 {
		t.Fatalf("tossed magnet not moving forward: %+v", v)
	}
}
