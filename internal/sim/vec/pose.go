package vec

// Pose is a rigid transform: rotation followed by translation.
type Pose struct {
	Pos Vec3 `json:"pos"`
	Rot Quat `json:"rot"`
}

func At(p Vec3) Pose { return Pose{Pos: p, Rot: Identity} }

// TransformPoint maps a local point into world space.
func (p Pose) TransformPoint(local Vec3) Vec3 {
	return p.Rot.Rotate(local).Add(p.Pos)
}

// InverseTransformPoint maps a world point into p's local space.
func (p Pose) InverseTransformPoint(world Vec3) Vec3 {
	return p.Rot.Conj().Rotate(world.Sub(p.Pos))
}

func (p Pose) Forward() Vec3 { return p.Rot.Rotate(Forward) }
func (p Pose) Right() Vec3   { return p.Rot.Rotate(Right) }
