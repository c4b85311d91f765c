package world

import (
	"encoding/json"
	"testing"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

func readFrame(t *testing.T, ch chan []byte) observerproto.FrameMsg {
	t.Helper()
	var b []byte
	select {
	case b = <-ch:
	default:
		t.Fatalf("no frame")
	}
	var msg observerproto.FrameMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return msg
}

func TestObserverKeepsOnlyLatestFrame(t *testing.T) {
	w := newTestWorld(t, nil)
	ch := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "o1", TickOut: ch})

	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)

	msg := readFrame(t, ch)
	if msg.Type != observerproto.TypeFrame || msg.Tick != 2 {
		t.Fatalf("frame: type=%s tick=%d", msg.Type, msg.Tick)
	}
	if msg.Digest != w.Frame().Digest || len(msg.Digest) != 64 {
		t.Fatalf("digest %q", msg.Digest)
	}
	if len(msg.Transitions) != 0 || len(msg.Fired) != 0 {
		t.Fatalf("transitions sent without subscription")
	}
}

func TestObserverEntityFilterAndTransitions(t *testing.T) {
	w := newTestWorld(t, boxOnlyScene)
	join(t, w, "a")

	all := make(chan []byte, 1)
	boxOnly := make(chan []byte, 1)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "all", TickOut: all})
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "box", TickOut: boxOnly, Entities: []string{"box"}, Transitions: true})

	w.contacts.Push(physics.Collision{
		A: "box", B: "m_stay", LayerA: physics.LayerBox, LayerB: physics.LayerMagnet,
		Point: vec.Vec3{X: 0.6, Y: 0.6}, Impulse: 1,
	})
	w.StepOnce(nil, nil, nil)

	full := readFrame(t, all)
	if len(full.Entities) != 2 {
		t.Fatalf("unfiltered entities: %d", len(full.Entities))
	}
	f := readFrame(t, boxOnly)
	if len(f.Entities) != 1 || f.Entities[0].ID != "box" {
		t.Fatalf("filtered entities: %+v", f.Entities)
	}
	if len(f.Transitions) != 1 || f.Transitions[0].Op != "ATTACH" || f.Transitions[0].Result != "OK" {
		t.Fatalf("transitions: %+v", f.Transitions)
	}

	// Resubscribe without a filter.
	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "box"})
	w.StepOnce(nil, nil, nil)
	if f := readFrame(t, boxOnly); len(f.Entities) != 2 {
		t.Fatalf("after resubscribe: %d entities", len(f.Entities))
	}

	w.handleObserverLeave("box")
	<-all
	w.StepOnce(nil, nil, nil)
	if len(boxOnly) != 0 {
		t.Fatalf("frame sent after leave")
	}
	readFrame(t, all)
}

func TestObserverJoinIgnoresIncompleteRequest(t *testing.T) {
	w := newTestWorld(t, nil)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "x"})
	w.handleObserverJoin(ObserverJoinRequest{TickOut: make(chan []byte, 1)})
	if len(w.observers) != 0 {
		t.Fatalf("observers=%d", len(w.observers))
	}
}

func TestSendLatestReplacesStale(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q", got)
	}
}
