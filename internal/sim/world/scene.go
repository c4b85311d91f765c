package world

import (
	"sort"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

// Scene tracks which bodies are emotional entities, by kind. It is the world
// context handed to the effect layer.
type Scene struct {
	q   physics.Query
	ids map[emotion.EntityKind][]physics.BodyID
}

func NewScene(q physics.Query) *Scene {
	return &Scene{q: q, ids: map[emotion.EntityKind][]physics.BodyID{}}
}

func (s *Scene) Track(kind emotion.EntityKind, id physics.BodyID) {
	ids := s.ids[kind]
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	s.ids[kind] = ids
}

func (s *Scene) Untrack(id physics.BodyID) {
	for k, ids := range s.ids {
		for i, o := range ids {
			if o == id {
				s.ids[k] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	}
}

// IDs returns the tracked ids of kind in id order.
func (s *Scene) IDs(kind emotion.EntityKind) []physics.BodyID {
	return append([]physics.BodyID(nil), s.ids[kind]...)
}

// PositionsOf returns current positions in id order. Bodies without a pose are skipped.
func (s *Scene) PositionsOf(kind emotion.EntityKind) []vec.Vec3 {
	ids := s.ids[kind]
	out := make([]vec.Vec3, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.q.Pose(id); ok {
			out = append(out, p.Pos)
		}
	}
	return out
}
