package world

import (
	"math"
	"testing"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/vec"
)

func boxOnlyScene(cfg *tuning.Tuning) {
	cfg.Scene = tuning.Scene{
		SpawnPoints: [][3]float64{{-4, 0.5, 0}},
		Boxes:       []tuning.SceneBox{{ID: "box", Pos: [3]float64{0, 0.6, 0}}},
		Magnets:     []tuning.SceneMagnet{{ID: "m_stay", Word: "STAY", Pos: [3]float64{20, 0.15, 20}}},
	}
}

type auditRecorder struct{ entries []AuditEntry }

func (a *auditRecorder) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func touchBox(w *World) {
	w.contacts.Push(physics.Collision{
		A:       "box",
		B:       "m_stay",
		LayerA:  physics.LayerBox,
		LayerB:  physics.LayerMagnet,
		Point:   vec.Vec3{X: 0.6, Y: 0.6},
		Normal:  vec.Right,
		Impulse: 1,
	})
}

func TestContactAttachesAndLowersTarget(t *testing.T) {
	attached := newTestWorld(t, boxOnlyScene)
	plain := newTestWorld(t, boxOnlyScene)
	audit := &auditRecorder{}
	attached.SetAuditLogger(audit)

	touchBox(attached)
	attached.StepOnce(nil, nil, nil)
	plain.StepOnce(nil, nil, nil)

	f := attached.Frame()
	if len(f.Transitions) != 1 {
		t.Fatalf("transitions: %+v", f.Transitions)
	}
	if tr := f.Transitions[0]; tr.Op != magnet.OpAttach || tr.Result != magnet.OK || tr.Host != "box" {
		t.Fatalf("transition: %+v", tr)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "ATTACH" || audit.entries[0].Actor != "contact" {
		t.Fatalf("audit: %+v", audit.entries)
	}

	for i := 0; i < 60; i++ {
		attached.StepOnce(nil, nil, nil)
		plain.StepOnce(nil, nil, nil)
	}

	f = attached.Frame()
	m, _ := findMagnet(f, "m_stay")
	if m.State != "ATTACHED" || m.Host != "box" {
		t.Fatalf("magnet: %+v", m)
	}
	// The attached magnet rides along with its host.
	if d := math.Hypot(m.Pos[0]-f.Entities[0].Pos[0], m.Pos[2]-f.Entities[0].Pos[2]); d > 1 {
		t.Fatalf("magnet %v far from host %v", m.Pos, f.Entities[0].Pos)
	}
	if len(f.Entities[0].Words) != 1 || f.Entities[0].Words[0] != "STAY" {
		t.Fatalf("words: %v", f.Entities[0].Words)
	}

	got, _ := f.Intensity("box", emotion.Abandonment)
	if math.Abs(got-0.09) > 1e-9 {
		t.Fatalf("attached abandonment=%v want 0.09", got)
	}
	want, _ := plain.Frame().Intensity("box", emotion.Abandonment)
	if math.Abs(want-0.3) > 1e-9 {
		t.Fatalf("plain abandonment=%v want 0.3", want)
	}
}

func TestContactIsIdempotentWithinTick(t *testing.T) {
	w := newTestWorld(t, boxOnlyScene)
	touchBox(w)
	touchBox(w)
	w.StepOnce(nil, nil, nil)
	f := w.Frame()
	if len(f.Transitions) != 2 {
		t.Fatalf("transitions: %+v", f.Transitions)
	}
	if f.Transitions[1].Result != magnet.Duplicate {
		t.Fatalf("second contact: %+v", f.Transitions[1])
	}
	if words := f.Entities[0].Words; len(words) != 1 {
		t.Fatalf("words: %v", words)
	}
}

func TestHardContactStripsMagnet(t *testing.T) {
	w := newTestWorld(t, boxOnlyScene)
	touchBox(w)
	w.StepOnce(nil, nil, nil)

	w.contacts.Push(physics.Collision{
		A:       "m_stay",
		B:       "rock",
		LayerA:  physics.LayerMagnet,
		LayerB:  physics.LayerDefault,
		Impulse: w.cfg.Magnets.StripImpulseThreshold + 1,
	})
	w.StepOnce(nil, nil, nil)
	f := w.Frame()
	if len(f.Transitions) != 1 || f.Transitions[0].Op != magnet.OpStrip || f.Transitions[0].Result != magnet.OK {
		t.Fatalf("strip: %+v", f.Transitions)
	}
	m, _ := findMagnet(f, "m_stay")
	if m.State != "FREE" || m.Host != "" {
		t.Fatalf("magnet after strip: %+v", m)
	}
	if len(f.Entities[0].Words) != 0 {
		t.Fatalf("words after strip: %v", f.Entities[0].Words)
	}
}

func TestLeaveDetachesMagnetsOnPlayer(t *testing.T) {
	w := newTestWorld(t, boxOnlyScene)
	audit := &auditRecorder{}
	w.SetAuditLogger(audit)
	id, _ := join(t, w, "a")

	w.contacts.Push(physics.Collision{
		A:       physics.BodyID(id),
		B:       "m_stay",
		LayerA:  physics.LayerPlayer,
		LayerB:  physics.LayerMagnet,
		Point:   vec.Vec3{X: -4, Y: 1},
		Impulse: 1,
	})
	w.StepOnce(nil, nil, nil)
	if m, _ := findMagnet(w.Frame(), "m_stay"); m.Host != id {
		t.Fatalf("not attached to player: %+v", m)
	}

	w.StepOnce(nil, []string{id}, nil)
	m, _ := findMagnet(w.Frame(), "m_stay")
	if m.State != "FREE" {
		t.Fatalf("magnet still attached to a removed player: %+v", m)
	}
	last := audit.entries[len(audit.entries)-1]
	if last.Action != "DETACH" || last.Actor != id || last.Reason != "host removed" {
		t.Fatalf("audit: %+v", last)
	}
}
