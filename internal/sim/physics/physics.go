// Package physics is the boundary between the simulation core and the rigid
// body integrator. The core only talks to Sink and Query; Space is a small
// deterministic sphere integrator used by the server and tests.
package physics

import "emotionbank.games/internal/sim/vec"

type BodyID string

// Layer is a collision layer bitmask.
type Layer uint32

const (
	LayerDefault Layer = 1 << iota
	LayerBox
	LayerPlayer
	LayerMagnet
	LayerHand

	LayerAll Layer = 0xffffffff
)

func (l Layer) Has(other Layer) bool { return l&other != 0 }

// Sink accepts physical actions from the effect and manipulation layers.
type Sink interface {
	AddForce(id BodyID, accel vec.Vec3)
	AddTorque(id BodyID, angAccel vec.Vec3)
	AddImpulse(id BodyID, dv vec.Vec3)
	SetKinematic(id BodyID, on bool)
	SetVelocity(id BodyID, v vec.Vec3)
	SetPose(id BodyID, p vec.Pose)
	SetCollidable(id BodyID, on bool)
	// IgnorePair disables contact resolution between two bodies, as a joint would.
	IgnorePair(a, b BodyID, on bool)
}

type Query interface {
	Pose(id BodyID) (vec.Pose, bool)
	Velocity(id BodyID) (vec.Vec3, bool)
	Raycast(origin, dir vec.Vec3, maxDist float64, mask Layer) (Hit, bool)
}

type World interface {
	Sink
	Query
}

type Hit struct {
	Body     BodyID
	Point    vec.Vec3
	Normal   vec.Vec3
	Distance float64
}

// Collision is reported once when two bodies begin touching.
type Collision struct {
	A, B           BodyID
	LayerA, LayerB Layer
	Point          vec.Vec3
	Normal         vec.Vec3 // from A toward B
	Impulse        float64
}
