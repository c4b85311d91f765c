package effects

import (
	"math"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/vec"
)

// Provider is the world-context collaborator. PositionsOf must be free of side
// effects; the world calls it once per tick through Capture.
type Provider interface {
	PositionsOf(kind emotion.EntityKind) []vec.Vec3
}

// Tracked is the per-tick snapshot of tracked entity positions.
type Tracked struct {
	Players []vec.Vec3
}

func Capture(p Provider) Tracked {
	return Tracked{Players: append([]vec.Vec3(nil), p.PositionsOf(emotion.Player)...)}
}

// Context is what one entity sees this tick.
type Context struct {
	Self    vec.Pose
	Words   []emotion.Word
	Players []vec.Vec3
	// Others excludes the entity itself when it is a player.
	Others []vec.Vec3
}

func (t Tracked) Context(self vec.Pose, kind emotion.EntityKind, words []emotion.Word) Context {
	ctx := Context{Self: self, Words: words, Players: t.Players, Others: t.Players}
	if kind == emotion.Player {
		ctx.Others = without(t.Players, self.Pos)
	}
	return ctx
}

// without drops the first position equal to p. Positions come from the same
// physics state, so the match is exact.
func without(ps []vec.Vec3, p vec.Vec3) []vec.Vec3 {
	for i, q := range ps {
		if q == p {
			out := make([]vec.Vec3, 0, len(ps)-1)
			out = append(out, ps[:i]...)
			return append(out, ps[i+1:]...)
		}
	}
	return ps
}

// NearestDistance returns +Inf when there is nobody else.
func (c Context) NearestDistance() float64 {
	best := math.Inf(1)
	for _, p := range c.Others {
		if d := c.Self.Pos.Dist(p); d < best {
			best = d
		}
	}
	return best
}
