package vec

import "math"

// Quat is a unit rotation quaternion.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var Identity = Quat{W: 1}

// FromYawPitch builds a rotation that first pitches around X, then yaws around Y.
// Angles are radians; positive pitch looks down.
func FromYawPitch(yaw, pitch float64) Quat {
	return AxisAngle(Up, yaw).Mul(AxisAngle(Right, pitch))
}

func AxisAngle(axis Vec3, angle float64) Quat {
	a := axis.Normalized()
	s := math.Sin(angle / 2)
	return Quat{W: math.Cos(angle / 2), X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

func (q Quat) Conj() Quat { return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z} }

func (q Quat) Normalized() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n < 1e-12 {
		return Identity
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Integrate advances q by angular velocity w (rad/s) over dt.
func (q Quat) Integrate(w Vec3, dt float64) Quat {
	angle := w.Len() * dt
	if angle < 1e-12 {
		return q
	}
	return AxisAngle(w, angle).Mul(q).Normalized()
}
