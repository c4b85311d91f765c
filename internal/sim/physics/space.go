package physics

import (
	"errors"
	"math"
	"sort"

	"emotionbank.games/internal/sim/vec"
)

var (
	ErrDuplicateBody = errors.New("duplicate body id")
	ErrBadBody       = errors.New("body needs an id and a positive radius")
)

type SpaceConfig struct {
	Gravity        vec.Vec3
	LinearDamping  float64
	AngularDamping float64
	Restitution    float64
	GroundY        float64
}

type BodyDef struct {
	ID        BodyID
	Layer     Layer
	Radius    float64
	Mass      float64
	Pose      vec.Pose
	Kinematic bool
}

type BodyState struct {
	ID         BodyID   `json:"id"`
	Layer      Layer    `json:"layer"`
	Radius     float64  `json:"radius"`
	Mass       float64  `json:"mass"`
	Pose       vec.Pose `json:"pose"`
	Vel        vec.Vec3 `json:"vel"`
	AngVel     vec.Vec3 `json:"ang_vel"`
	Kinematic  bool     `json:"kinematic"`
	Collidable bool     `json:"collidable"`
}

type body struct {
	BodyState
	force  vec.Vec3
	torque vec.Vec3
}

type pairKey struct{ a, b BodyID }

func makePair(a, b BodyID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Space is a single-threaded sphere integrator. It must only be driven from
// the world loop.
type Space struct {
	cfg SpaceConfig

	bodies   map[BodyID]*body
	order    []BodyID
	ignored  map[pairKey]bool
	touching map[pairKey]bool
}

func NewSpace(cfg SpaceConfig) *Space {
	return &Space{
		cfg:      cfg,
		bodies:   map[BodyID]*body{},
		ignored:  map[pairKey]bool{},
		touching: map[pairKey]bool{},
	}
}

func (s *Space) Add(def BodyDef) error {
	if def.ID == "" || def.Radius <= 0 {
		return ErrBadBody
	}
	if _, ok := s.bodies[def.ID]; ok {
		return ErrDuplicateBody
	}
	if def.Mass <= 0 {
		def.Mass = 1
	}
	if def.Pose.Rot == (vec.Quat{}) {
		def.Pose.Rot = vec.Identity
	}
	s.bodies[def.ID] = &body{BodyState: BodyState{
		ID:         def.ID,
		Layer:      def.Layer,
		Radius:     def.Radius,
		Mass:       def.Mass,
		Pose:       def.Pose,
		Kinematic:  def.Kinematic,
		Collidable: true,
	}}
	s.order = append(s.order, def.ID)
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	return nil
}

func (s *Space) Remove(id BodyID) {
	if _, ok := s.bodies[id]; !ok {
		return
	}
	delete(s.bodies, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for k := range s.ignored {
		if k.a == id || k.b == id {
			delete(s.ignored, k)
		}
	}
	for k := range s.touching {
		if k.a == id || k.b == id {
			delete(s.touching, k)
		}
	}
}

func (s *Space) AddForce(id BodyID, accel vec.Vec3) {
	if b := s.bodies[id]; b != nil && !b.Kinematic {
		b.force = b.force.Add(accel)
	}
}

func (s *Space) AddTorque(id BodyID, angAccel vec.Vec3) {
	if b := s.bodies[id]; b != nil && !b.Kinematic {
		b.torque = b.torque.Add(angAccel)
	}
}

func (s *Space) AddImpulse(id BodyID, dv vec.Vec3) {
	if b := s.bodies[id]; b != nil && !b.Kinematic {
		b.Vel = b.Vel.Add(dv)
	}
}

func (s *Space) SetKinematic(id BodyID, on bool) {
	if b := s.bodies[id]; b != nil {
		b.Kinematic = on
		if on {
			b.Vel, b.AngVel = vec.Zero, vec.Zero
			b.force, b.torque = vec.Zero, vec.Zero
		}
	}
}

func (s *Space) SetVelocity(id BodyID, v vec.Vec3) {
	if b := s.bodies[id]; b != nil {
		b.Vel = v
	}
}

func (s *Space) SetPose(id BodyID, p vec.Pose) {
	if b := s.bodies[id]; b != nil {
		b.Pose = p
	}
}

func (s *Space) SetCollidable(id BodyID, on bool) {
	if b := s.bodies[id]; b != nil {
		b.Collidable = on
	}
}

// IgnorePair toggles contact resolution for a pair. Re-enabled pairs count as
// already touching, so bodies that still overlap do not report a new contact.
func (s *Space) IgnorePair(a, b BodyID, on bool) {
	k := makePair(a, b)
	if on {
		s.ignored[k] = true
		return
	}
	if s.ignored[k] {
		delete(s.ignored, k)
		s.touching[k] = true
	}
}

func (s *Space) Pose(id BodyID) (vec.Pose, bool) {
	b := s.bodies[id]
	if b == nil {
		return vec.Pose{}, false
	}
	return b.Pose, true
}

func (s *Space) Velocity(id BodyID) (vec.Vec3, bool) {
	b := s.bodies[id]
	if b == nil {
		return vec.Zero, false
	}
	return b.Vel, true
}

func (s *Space) Collidable(id BodyID) bool {
	b := s.bodies[id]
	return b != nil && b.Collidable
}

// Raycast returns the nearest collidable body on mask hit by the ray.
func (s *Space) Raycast(origin, dir vec.Vec3, maxDist float64, mask Layer) (Hit, bool) {
	d := dir.Normalized()
	if d == vec.Zero || maxDist <= 0 {
		return Hit{}, false
	}
	best := Hit{Distance: math.Inf(1)}
	found := false
	for _, id := range s.order {
		b := s.bodies[id]
		if !b.Collidable || !mask.Has(b.Layer) {
			continue
		}
		oc := origin.Sub(b.Pose.Pos)
		half := oc.Dot(d)
		c := oc.LenSq() - b.Radius*b.Radius
		disc := half*half - c
		if disc < 0 {
			continue
		}
		t := -half - math.Sqrt(disc)
		if t < 0 {
			// Origin inside the sphere counts as a hit at distance 0.
			if c > 0 {
				continue
			}
			t = 0
		}
		if t > maxDist || t >= best.Distance {
			continue
		}
		p := origin.Add(d.Scale(t))
		best = Hit{Body: id, Point: p, Normal: p.Sub(b.Pose.Pos).Normalized(), Distance: t}
		found = true
	}
	return best, found
}

// Step integrates every dynamic body by dt, resolves sphere contacts and
// reports contacts that began during this step in deterministic order.
func (s *Space) Step(dt float64, onCollision func(Collision)) {
	if dt <= 0 {
		return
	}
	for _, id := range s.order {
		b := s.bodies[id]
		if b.Kinematic {
			b.force, b.torque = vec.Zero, vec.Zero
			continue
		}
		b.Vel = b.Vel.Add(s.cfg.Gravity.Add(b.force).Scale(dt))
		b.Vel = b.Vel.Scale(1 / (1 + s.cfg.LinearDamping*dt))
		b.AngVel = b.AngVel.Add(b.torque.Scale(dt))
		b.AngVel = b.AngVel.Scale(1 / (1 + s.cfg.AngularDamping*dt))
		b.Pose.Pos = b.Pose.Pos.Add(b.Vel.Scale(dt))
		b.Pose.Rot = b.Pose.Rot.Integrate(b.AngVel, dt)
		b.force, b.torque = vec.Zero, vec.Zero

		if floor := s.cfg.GroundY + b.Radius; b.Pose.Pos.Y < floor {
			b.Pose.Pos.Y = floor
			if b.Vel.Y < 0 {
				b.Vel.Y = -b.Vel.Y * s.cfg.Restitution
			}
		}
	}

	touching := make(map[pairKey]bool, len(s.touching))
	for i := 0; i < len(s.order); i++ {
		a := s.bodies[s.order[i]]
		if !a.Collidable {
			continue
		}
		for j := i + 1; j < len(s.order); j++ {
			b := s.bodies[s.order[j]]
			if !b.Collidable || (a.Kinematic && b.Kinematic) {
				continue
			}
			key := makePair(a.ID, b.ID)
			if s.ignored[key] {
				continue
			}
			delta := b.Pose.Pos.Sub(a.Pose.Pos)
			dist := delta.Len()
			reach := a.Radius + b.Radius
			if dist >= reach {
				continue
			}
			touching[key] = true
			n := delta.Normalized()
			if n == vec.Zero {
				n = vec.Up
			}
			impulse := s.resolve(a, b, n, reach-dist)
			if !s.touching[key] && onCollision != nil {
				onCollision(Collision{
					A:       a.ID,
					B:       b.ID,
					LayerA:  a.Layer,
					LayerB:  b.Layer,
					Point:   a.Pose.Pos.Add(n.Scale(a.Radius)),
					Normal:  n,
					Impulse: impulse,
				})
			}
		}
	}
	s.touching = touching
}

func invMass(b *body) float64 {
	if b.Kinematic {
		return 0
	}
	return 1 / b.Mass
}

func (s *Space) resolve(a, b *body, n vec.Vec3, depth float64) float64 {
	ia, ib := invMass(a), invMass(b)
	sum := ia + ib
	if sum == 0 {
		return 0
	}
	a.Pose.Pos = a.Pose.Pos.Sub(n.Scale(depth * ia / sum))
	b.Pose.Pos = b.Pose.Pos.Add(n.Scale(depth * ib / sum))

	vn := b.Vel.Sub(a.Vel).Dot(n)
	if vn >= 0 {
		return 0
	}
	j := -(1 + s.cfg.Restitution) * vn / sum
	a.Vel = a.Vel.Sub(n.Scale(j * ia))
	b.Vel = b.Vel.Add(n.Scale(j * ib))
	return j
}

// States returns every body in id order.
func (s *Space) States() []BodyState {
	out := make([]BodyState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bodies[id].BodyState)
	}
	return out
}

// Restore overwrites dynamic state of existing bodies.
func (s *Space) Restore(states []BodyState) {
	for _, st := range states {
		b := s.bodies[st.ID]
		if b == nil {
			continue
		}
		b.BodyState = st
	}
}

// Pair is an unordered body pair, stored with A < B.
type Pair struct {
	A BodyID `json:"a"`
	B BodyID `json:"b"`
}

func sortedPairs(m map[pairKey]bool) []Pair {
	out := make([]Pair, 0, len(m))
	for k := range m {
		out = append(out, Pair{A: k.a, B: k.b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func (s *Space) Touching() []Pair { return sortedPairs(s.touching) }
func (s *Space) Ignored() []Pair  { return sortedPairs(s.ignored) }

// RestorePairs reinstalls contact bookkeeping so a resumed space reports the
// same contact-begin events as the exporting one.
func (s *Space) RestorePairs(touching, ignored []Pair) {
	s.touching = make(map[pairKey]bool, len(touching))
	for _, p := range touching {
		s.touching[makePair(p.A, p.B)] = true
	}
	s.ignored = make(map[pairKey]bool, len(ignored))
	for _, p := range ignored {
		s.ignored[makePair(p.A, p.B)] = true
	}
}
