package vec

import "math"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var (
	Zero    = Vec3{}
	Up      = Vec3{Y: 1}
	Forward = Vec3{Z: 1}
	Right   = Vec3{X: 1}
)

func (a Vec3) Add(b Vec3) Vec3             { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3             { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3        { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64          { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float64                { return math.Sqrt(a.Dot(a)) }
func (a Vec3) LenSq() float64              { return a.Dot(a) }
func (a Vec3) Dist(b Vec3) float64         { return a.Sub(b).Len() }
func (a Vec3) Horizontal() Vec3            { return Vec3{X: a.X, Z: a.Z} }
func (a Vec3) Lerp(b Vec3, t float64) Vec3 { return a.Add(b.Sub(a).Scale(t)) }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Normalized returns the unit vector, or Zero for a (near) zero-length input.
func (a Vec3) Normalized() Vec3 {
	l := a.Len()
	if l < 1e-9 {
		return Zero
	}
	return a.Scale(1 / l)
}

// ClampLen limits the length of a to max.
func (a Vec3) ClampLen(max float64) Vec3 {
	l := a.Len()
	if l <= max || l == 0 {
		return a
	}
	return a.Scale(max / l)
}

// Centroid averages pts; ok is false for an empty set.
func Centroid(pts []Vec3) (Vec3, bool) {
	if len(pts) == 0 {
		return Zero, false
	}
	var sum Vec3
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(pts))), true
}
