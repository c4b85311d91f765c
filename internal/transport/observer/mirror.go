package observer

import (
	"fmt"
	"sort"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/sim/emotion"
)

// Mirror is the client side of the observer stream. It keeps one observer
// replica per entity and feeds frames into them. Not safe for concurrent use.
type Mirror struct {
	defs     map[emotion.EntityKind][]emotion.Definition
	replicas map[string]*emotion.Replica
	kinds    map[string]emotion.EntityKind
	tick     uint64
	started  bool
}

// Change is one entity whose replica accepted a newer snapshot.
type Change struct {
	ID      string
	Version uint64
	Values  map[emotion.Kind]float64
}

func NewMirror(b observerproto.BootstrapResponse) (*Mirror, error) {
	m := &Mirror{
		defs:     map[emotion.EntityKind][]emotion.Definition{},
		replicas: map[string]*emotion.Replica{},
		kinds:    map[string]emotion.EntityKind{},
	}
	for _, info := range b.Definitions {
		k, err := emotion.ParseKind(info.Kind)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", info.Kind, err)
		}
		d := emotion.Definition{Kind: k, Color: info.Color, ConvergenceRate: info.ConvergenceRate}
		applies := make([]emotion.EntityKind, 0, len(info.AppliesTo))
		for _, s := range info.AppliesTo {
			ek, err := emotion.ParseEntityKind(s)
			if err != nil {
				return nil, fmt.Errorf("definition %q: %w", info.Kind, err)
			}
			applies = append(applies, ek)
		}
		d.AppliesTo = emotion.SetOf(applies...)
		for _, ek := range applies {
			m.defs[ek] = append(m.defs[ek], d)
		}
	}
	return m, nil
}

// Apply feeds one frame. Frames at or before the last applied tick are
// ignored. Entities missing from an unfiltered frame are forgotten.
func (m *Mirror) Apply(f observerproto.FrameMsg, filtered bool) []Change {
	if m.started && f.Tick <= m.tick {
		return nil
	}
	m.started = true
	m.tick = f.Tick

	var changes []Change
	seen := make(map[string]bool, len(f.Entities))
	for _, e := range f.Entities {
		seen[e.ID] = true
		ek, err := emotion.ParseEntityKind(e.Kind)
		if err != nil {
			continue
		}
		r := m.replicas[e.ID]
		if r == nil || m.kinds[e.ID] != ek {
			r = emotion.NewObserver(m.defs[ek])
			m.replicas[e.ID] = r
			m.kinds[e.ID] = ek
		}
		snap := emotion.Snapshot{Version: e.Version, Values: make(map[emotion.Kind]float64, len(e.Emotions))}
		for name, v := range e.Emotions {
			if k, err := emotion.ParseKind(name); err == nil {
				snap.Values[k] = v
			}
		}
		if r.Apply(snap) {
			s := r.Snapshot()
			changes = append(changes, Change{ID: e.ID, Version: s.Version, Values: s.Values})
		}
	}
	if !filtered {
		for id := range m.replicas {
			if !seen[id] {
				delete(m.replicas, id)
				delete(m.kinds, id)
			}
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes
}

// Read returns the mirrored intensity, or 0 for unknown entities and kinds.
func (m *Mirror) Read(id string, k emotion.Kind) float64 {
	if r := m.replicas[id]; r != nil {
		return r.Read(k)
	}
	return 0
}

func (m *Mirror) Tick() uint64 { return m.tick }

func (m *Mirror) Len() int { return len(m.replicas) }
