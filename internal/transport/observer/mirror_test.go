package observer

import (
	"testing"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/tuning"
)

func frame(tick uint64, entities ...protocol.EntityState) observerproto.FrameMsg {
	return observerproto.FrameMsg{Type: observerproto.TypeFrame, Tick: tick, Entities: entities}
}

func box(version uint64, abandonment float64) protocol.EntityState {
	return protocol.EntityState{ID: "box", Kind: "BOX", Version: version, Emotions: map[string]float64{"ABANDONMENT": abandonment, "FEAR": 0.9}}
}

func TestMirrorAppliesNewerVersionsOnly(t *testing.T) {
	w := newQuietWorld(t)
	m, err := NewMirror(Bootstrap(w))
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}

	if ch := m.Apply(frame(1, box(1, 0.2)), false); len(ch) != 1 || ch[0].ID != "box" {
		t.Fatalf("changes: %+v", ch)
	}
	if got := m.Read("box", emotion.Abandonment); got != 0.2 {
		t.Fatalf("abandonment=%v", got)
	}
	// FEAR does not apply to boxes in the default table.
	if got := m.Read("box", emotion.Fear); got != 0 {
		t.Fatalf("fear on box=%v", got)
	}

	// Same version on a later tick: no change.
	if ch := m.Apply(frame(2, box(1, 0.5)), false); len(ch) != 0 {
		t.Fatalf("stale version applied: %+v", ch)
	}
	// Older tick is ignored entirely.
	if ch := m.Apply(frame(1, box(9, 0.9)), false); ch != nil || m.Tick() != 2 {
		t.Fatalf("old tick applied: %+v tick=%d", ch, m.Tick())
	}
	m.Apply(frame(3, box(2, 0.4)), false)
	if got := m.Read("box", emotion.Abandonment); got != 0.4 {
		t.Fatalf("abandonment=%v", got)
	}
}

func TestMirrorForgetsMissingEntities(t *testing.T) {
	m, err := NewMirror(Bootstrap(newQuietWorld(t)))
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	p := protocol.EntityState{ID: "P1", Kind: "PLAYER", Version: 1, Emotions: map[string]float64{"FEAR": 0.3}}
	m.Apply(frame(0, box(1, 0.1), p), false)
	if m.Len() != 2 || m.Read("P1", emotion.Fear) != 0.3 {
		t.Fatalf("len=%d fear=%v", m.Len(), m.Read("P1", emotion.Fear))
	}
	// A filtered frame keeps what it does not mention.
	m.Apply(frame(1, box(2, 0.1)), true)
	if m.Len() != 2 {
		t.Fatalf("filtered frame dropped entities: %d", m.Len())
	}
	m.Apply(frame(2, box(2, 0.1)), false)
	if m.Len() != 1 || m.Read("P1", emotion.Fear) != 0 {
		t.Fatalf("player not forgotten: len=%d", m.Len())
	}
}

func TestMirrorRejectsUnknownDefinition(t *testing.T) {
	_, err := NewMirror(observerproto.BootstrapResponse{Definitions: []observerproto.DefinitionInfo{{Kind: "JOY", ConvergenceRate: 1}}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMirrorFollowsLiveWorld(t *testing.T) {
	cfg := tuning.Defaults()
	w := newWorldWith(t, cfg)
	m, err := NewMirror(Bootstrap(w))
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	w.StepOnce(nil, nil, nil)
	f := w.Frame()
	m.Apply(observerproto.FrameMsg{Tick: f.Tick, Entities: f.Entities}, false)
	for _, e := range f.Entities {
		for name, v := range e.Emotions {
			k, _ := emotion.ParseKind(name)
			if got := m.Read(e.ID, k); e.Version > 0 && got != v {
				t.Fatalf("%s %s: mirror=%v frame=%v", e.ID, name, got, v)
			}
		}
	}
}
