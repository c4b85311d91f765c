// Package effects derives per-tick emotion targets from world context and
// attached words, and turns converged intensities into physical actions.
// Both halves are driven by data tables, one per entity kind.
package effects

import (
	"math"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

type Variant interface {
	Entity() emotion.EntityKind
	ComputeTarget(kind emotion.Kind, ctx Context) (float64, bool)
	ApplyEffect(kind emotion.Kind, intensity, dt float64, env *Env)
}

// Rand is satisfied by *math/rand/v2.Rand.
type Rand interface {
	Float64() float64
}

// State is the per-entity effect memory carried across ticks.
type State struct {
	DenialTimer float64 `json:"denial_timer"`
	Phased      bool    `json:"phased"`
}

// Env is what ApplyEffect may touch. Def is filled per kind by Apply.
type Env struct {
	Body  physics.BodyID
	Mass  float64
	Ctx   Context
	Def   emotion.Definition
	Sink  physics.Sink
	Rand  Rand
	State *State
}

// Fired reports one action for the tick log.
type Fired struct {
	Body   physics.BodyID `json:"body"`
	Kind   emotion.Kind   `json:"kind"`
	Action string         `json:"action"`
}

type Policy struct {
	entity  emotion.EntityKind
	targets map[emotion.Kind]Target
	factors map[emotion.Kind]map[emotion.Word]float64
	rules   []Rule
	floor   float64

	// OnFire, if set, observes every action that fires.
	OnFire func(Fired)
}

func NewBox(t Table) *Policy    { return newPolicy(emotion.Box, t) }
func NewPlayer(t Table) *Policy { return newPolicy(emotion.Player, t) }

func newPolicy(e emotion.EntityKind, t Table) *Policy {
	p := &Policy{
		entity:  e,
		targets: map[emotion.Kind]Target{},
		factors: map[emotion.Kind]map[emotion.Word]float64{},
		rules:   append([]Rule(nil), t.Rules...),
		floor:   t.Floor,
	}
	for _, tr := range t.Targets {
		p.targets[tr.Kind] = tr
	}
	for _, m := range t.Multipliers {
		if p.factors[m.Kind] == nil {
			p.factors[m.Kind] = map[emotion.Word]float64{}
		}
		p.factors[m.Kind][m.Word] = m.Factor
	}
	return p
}

func (p *Policy) Entity() emotion.EntityKind { return p.entity }

func (p *Policy) ComputeTarget(kind emotion.Kind, ctx Context) (float64, bool) {
	t, ok := p.targets[kind]
	if !ok {
		return 0, false
	}
	return ApplyWords(t.eval(ctx), p.factors[kind], ctx.Words, p.floor), true
}

func (p *Policy) ApplyEffect(kind emotion.Kind, intensity, dt float64, env *Env) {
	for _, r := range p.rules {
		if r.Kind != kind || intensity <= r.Threshold {
			continue
		}
		if !p.triggered(r, intensity, dt, env) {
			continue
		}
		act(r, intensity, env)
		if p.OnFire != nil {
			p.OnFire(Fired{Body: env.Body, Kind: kind, Action: r.Action.String()})
		}
	}
}

func (p *Policy) triggered(r Rule, intensity, dt float64, env *Env) bool {
	switch r.Trigger {
	case Continuous:
		return true
	case Chance:
		rate := r.Rate
		if rate <= 0 {
			rate = env.Def.StumbleChancePerSecond
		}
		return env.Rand.Float64() < ChanceOf(rate, intensity, dt)
	case Periodic:
		if env.State == nil {
			return false
		}
		env.State.DenialTimer += dt
		if env.State.DenialTimer < Period(intensity, env.Def.PhaseIntervalSeconds, r.Floor) {
			return false
		}
		env.State.DenialTimer = 0
		return true
	}
	return false
}

func act(r Rule, intensity float64, env *Env) {
	switch r.Action {
	case Drift:
		dir := driftDirection(env.Ctx)
		if dir == vec.Zero {
			return
		}
		env.Sink.AddForce(env.Body, dir.Scale(env.Def.BaseDriftStrength*intensity))
	case Phase:
		env.State.Phased = !env.State.Phased
		env.Sink.SetCollidable(env.Body, !env.State.Phased)
	case Jolt:
		a := 2 * math.Pi * env.Rand.Float64()
		dv := vec.Vec3{X: math.Cos(a), Z: math.Sin(a)}.Scale(env.Def.RandomImpulseStrength)
		if env.Mass > 0 {
			dv = dv.Scale(1 / env.Mass)
		}
		env.Sink.AddImpulse(env.Body, dv)
	case Sway:
		axis := vec.Vec3{Z: env.Rand.Float64()*2 - 1}
		env.Sink.AddTorque(env.Body, axis.Scale(r.Magnitude*intensity))
	case Stumble:
		side := env.Ctx.Self.Right().Scale(env.Rand.Float64()*2 - 1).Normalized()
		env.Sink.AddImpulse(env.Body, side.Scale(r.Magnitude))
	}
}

// driftDirection points horizontally away from the tracked players'
// centroid, or along the entity's forward axis when it sits on the centroid.
func driftDirection(ctx Context) vec.Vec3 {
	c, ok := vec.Centroid(ctx.Players)
	if !ok {
		return vec.Zero
	}
	dir := ctx.Self.Pos.Sub(c).Horizontal()
	if dir.LenSq() < 0.01 {
		dir = ctx.Self.Forward().Horizontal()
	}
	return dir.Normalized()
}

// SetTargets feeds the replica one target per defined kind. Kinds without a
// definition are skipped.
func SetTargets(v Variant, r *emotion.Replica, ctx Context) {
	for _, k := range emotion.Kinds() {
		if !r.Has(k) {
			continue
		}
		if t, ok := v.ComputeTarget(k, ctx); ok {
			r.SetTarget(k, t)
		}
	}
}

// Apply runs the effect policy for every defined kind using converged values.
func Apply(v Variant, r *emotion.Replica, dt float64, env *Env) {
	for _, k := range emotion.Kinds() {
		def, ok := r.Definition(k)
		if !ok {
			continue
		}
		env.Def = def
		v.ApplyEffect(k, r.Read(k), dt, env)
	}
}
