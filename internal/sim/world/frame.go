package world

import (
	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/effects"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
)

// Frame is the published, immutable result of one tick. Readers must not
// modify it.
type Frame struct {
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`

	Entities []protocol.EntityState `json:"entities"`
	Magnets  []protocol.MagnetState `json:"magnets"`

	Joins       []string            `json:"joins,omitempty"`
	Leaves      []string            `json:"leaves,omitempty"`
	Transitions []magnet.Transition `json:"transitions,omitempty"`
	Fired       []effects.Fired     `json:"fired,omitempty"`
}

func (w *World) publish(f Frame) { w.frame.Store(&f) }

// Frame returns the last published frame. Safe from any goroutine.
func (w *World) Frame() *Frame { return w.frame.Load() }

// Intensity reads the last published value of kind for an entity.
func (f *Frame) Intensity(id string, kind emotion.Kind) (float64, bool) {
	for i := range f.Entities {
		if f.Entities[i].ID == id {
			v, ok := f.Entities[i].Emotions[kind.String()]
			return v, ok
		}
	}
	return 0, false
}

func (w *World) entityStates() []protocol.EntityState {
	out := make([]protocol.EntityState, 0, len(w.boxes)+len(w.players))
	for _, b := range w.sortedBoxes() {
		out = append(out, w.entityState(b.ID, emotion.Box, b.Replica, !b.Effects.Phased))
	}
	for _, p := range w.sortedPlayers() {
		out = append(out, w.entityState(p.ID, emotion.Player, p.Replica, true))
	}
	return out
}

func (w *World) entityState(id physics.BodyID, kind emotion.EntityKind, r *emotion.Replica, visible bool) protocol.EntityState {
	pose, _ := w.space.Pose(id)
	snap := r.Snapshot()
	es := protocol.EntityState{
		ID:       string(id),
		Kind:     kind.String(),
		Pos:      v3(pose.Pos),
		Rot:      [4]float64{pose.Rot.W, pose.Rot.X, pose.Rot.Y, pose.Rot.Z},
		Visible:  visible,
		Version:  snap.Version,
		Emotions: make(map[string]float64, len(snap.Values)),
	}
	for k, v := range snap.Values {
		es.Emotions[k.String()] = v
	}
	for _, wd := range w.registry.Words(id) {
		es.Words = append(es.Words, wd.String())
	}
	return es
}

func (w *World) magnetStates() []protocol.MagnetState {
	ms := w.registry.Magnets()
	out := make([]protocol.MagnetState, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		pose, _ := w.space.Pose(m.ID)
		out = append(out, protocol.MagnetState{
			ID:     string(m.ID),
			Word:   m.Word.String(),
			State:  m.State().String(),
			Host:   string(m.Host()),
			Holder: m.Holder(),
			Pos:    v3(pose.Pos),
		})
	}
	return out
}

func handStates(p *Player) []protocol.HandState {
	out := make([]protocol.HandState, 0, 2)
	for _, s := range []hands.Side{hands.Left, hands.Right} {
		h := p.Hands.Hand(s)
		out = append(out, protocol.HandState{
			Side:    s.String(),
			Pressed: h.Pressed,
			Locked:  h.Locked,
			Held:    string(h.Held),
		})
	}
	return out
}
