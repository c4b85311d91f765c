// Package hands is the per-player manipulation controller: two hands that
// grab, hold, release and toss magnets. It runs on the authority only.
package hands

import (
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/vec"
)

type Side uint8

const (
	Left Side = iota
	Right
	// Any is only meaningful for Toss: left hand first, then right.
	Any
)

func (s Side) String() string {
	switch s {
	case Left:
		return "L"
	case Right:
		return "R"
	default:
		return "ANY"
	}
}

func ParseSide(s string) (Side, bool) {
	switch s {
	case "L", "LEFT":
		return Left, true
	case "R", "RIGHT":
		return Right, true
	case "", "ANY":
		return Any, true
	}
	return Any, false
}

// GrabMask is what the grab probe can hit. Player bodies are excluded so the
// probe never stops inside the grabbing player.
const GrabMask = physics.LayerMagnet | physics.LayerBox | physics.LayerDefault

type Hand struct {
	Pressed bool           `json:"pressed"`
	Locked  bool           `json:"locked"`
	Held    physics.BodyID `json:"held,omitempty"`
}

type Focus struct {
	Point vec.Vec3 `json:"point"`
	Valid bool     `json:"valid"`
}

// Magnets is the slice of the magnet registry the controller needs.
type Magnets interface {
	IsMagnet(id physics.BodyID) bool
	Take(id physics.BodyID, holder string, holderBody physics.BodyID) magnet.Transition
	Drop(id physics.BodyID, holder string) magnet.Transition
	Carry(id physics.BodyID, holder string, p vec.Pose) bool
}

// Env is the world as seen by one player's hands during one tick.
type Env struct {
	Query   physics.Query
	Sink    physics.Sink
	Magnets Magnets
	// Body is the player's yaw-only body pose; View adds pitch.
	Body vec.Pose
	View vec.Quat
	DT   float64
}

type Outcome struct {
	Op     string         `json:"op"`
	Side   Side           `json:"side"`
	Magnet physics.BodyID `json:"magnet,omitempty"`
	Result magnet.Result  `json:"result"`
}

type Controller struct {
	player    physics.BodyID
	cfg       tuning.Hands
	eyeHeight float64

	hands [2]Hand
	focus Focus
}

func New(player physics.BodyID, cfg tuning.Hands, eyeHeight float64) *Controller {
	return &Controller{player: player, cfg: cfg, eyeHeight: eyeHeight}
}

func (c *Controller) Hand(s Side) Hand {
	if s > Right {
		return Hand{}
	}
	return c.hands[s]
}

func (c *Controller) Focus() Focus { return c.focus }

// Holder is the coupling key used in the magnet registry.
func (c *Controller) Holder(s Side) string { return string(c.player) + "/" + s.String() }

func (c *Controller) Grab(s Side, env *Env) Outcome {
	out := Outcome{Op: "GRAB", Side: s, Result: magnet.Noop}
	if s > Right {
		out.Result = magnet.Rejected
		return out
	}
	h := &c.hands[s]
	if h.Held != "" {
		out.Magnet = h.Held
		return out
	}
	eye := env.Body.Pos.Add(vec.Up.Scale(c.eyeHeight))
	hit, ok := env.Query.Raycast(eye, env.View.Rotate(vec.Forward), c.cfg.GrabRange, GrabMask)
	if !ok || !env.Magnets.IsMagnet(hit.Body) {
		return out
	}
	out.Magnet = hit.Body
	tr := env.Magnets.Take(hit.Body, c.Holder(s), c.player)
	out.Result = tr.Result
	if tr.Applied() {
		h.Held = hit.Body
		env.Magnets.Carry(hit.Body, c.Holder(s), vec.Pose{Pos: c.Anchor(s, env.Body, env.DT), Rot: env.Body.Rot})
	}
	return out
}

// Release uncouples a held magnet. Releasing an empty hand is a no-op.
func (c *Controller) Release(s Side, env *Env) Outcome {
	out := Outcome{Op: "RELEASE", Side: s, Result: magnet.Noop}
	if s > Right {
		out.Result = magnet.Rejected
		return out
	}
	h := &c.hands[s]
	if h.Held == "" {
		return out
	}
	out.Magnet = h.Held
	out.Result = env.Magnets.Drop(h.Held, c.Holder(s)).Result
	h.Held = ""
	return out
}

// Toss uncouples the held magnet and throws it forward and up from the hand,
// whatever the lock state.
func (c *Controller) Toss(s Side, env *Env) Outcome {
	if s == Any {
		s = Left
		if c.hands[Left].Held == "" {
			s = Right
		}
	}
	out := Outcome{Op: "TOSS", Side: s, Result: magnet.Noop}
	if s > Right {
		out.Result = magnet.Rejected
		return out
	}
	h := &c.hands[s]
	if h.Held == "" {
		return out
	}
	id := h.Held
	out.Magnet = id
	from := c.Anchor(s, env.Body, env.DT)
	tr := env.Magnets.Drop(id, c.Holder(s))
	h.Held = ""
	out.Result = tr.Result
	if !tr.Applied() {
		return out
	}
	dir := env.Body.Forward().Scale(c.cfg.TossForward).Add(vec.Up.Scale(c.cfg.TossUp)).Normalized()
	env.Sink.SetVelocity(id, vec.Zero)
	env.Sink.SetPose(id, vec.Pose{Pos: from, Rot: env.Body.Rot})
	env.Sink.AddImpulse(id, dir.Scale(c.cfg.TossSpeed))
	return out
}

// Press handles the hand button. A press edge grabs; a release edge lets go
// unless the hand is locked. Repeated states are no-ops.
func (c *Controller) Press(s Side, pressed bool, env *Env) Outcome {
	if s > Right {
		return Outcome{Op: "PRESS", Side: s, Result: magnet.Rejected}
	}
	h := &c.hands[s]
	if h.Pressed == pressed {
		return Outcome{Op: "PRESS", Side: s, Result: magnet.Noop}
	}
	h.Pressed = pressed
	if pressed {
		return c.Grab(s, env)
	}
	if h.Locked {
		return Outcome{Op: "RELEASE", Side: s, Magnet: h.Held, Result: magnet.Noop}
	}
	return c.Release(s, env)
}

// ToggleLock flips the latch only. It never releases by itself.
func (c *Controller) ToggleLock(s Side) {
	if s > Right {
		return
	}
	c.hands[s].Locked = !c.hands[s].Locked
}

func (c *Controller) ToggleLockBoth() {
	on := !c.hands[Left].Locked
	c.hands[Left].Locked = on
	c.hands[Right].Locked = on
}

func (c *Controller) SetFocus(p vec.Vec3, valid bool) {
	c.focus = Focus{Point: p, Valid: valid}
}

// Destroy force-releases both hands. It must run before the player's body
// is removed.
func (c *Controller) Destroy(env *Env) []Outcome {
	var out []Outcome
	for _, s := range []Side{Left, Right} {
		if c.hands[s].Held != "" {
			out = append(out, c.Release(s, env))
		}
		c.hands[s] = Hand{}
	}
	c.focus = Focus{}
	return out
}

// Anchor is where the hand sits: in front of the body at hand height, offset
// to its side, pulled toward a valid focus point within FocusMaxDistance.
func (c *Controller) Anchor(s Side, body vec.Pose, dt float64) vec.Vec3 {
	base := body.Pos.Add(vec.Up.Scale(c.cfg.HandHeight))
	sign := 1.0
	if s == Left {
		sign = -1
	}
	target := base.Add(body.Right().Scale(sign * c.cfg.SideOffset)).Add(body.Forward().Scale(c.cfg.HandDistance))
	if !c.focus.Valid || c.cfg.FocusMaxDistance <= 0 {
		return target
	}
	f := c.focus.Point
	f.Y = base.Y
	dist := base.Dist(f)
	if dist > c.cfg.FocusMaxDistance {
		return target
	}
	t := emotion.Clamp01(1 - dist/c.cfg.FocusMaxDistance)
	return target.Lerp(f, emotion.Clamp01(t*c.cfg.FocusAttractionStrength*dt))
}

// Carry moves held magnets to their hand anchors. A hand whose coupling is
// gone is cleared.
func (c *Controller) Carry(env *Env) {
	for _, s := range []Side{Left, Right} {
		h := &c.hands[s]
		if h.Held == "" {
			continue
		}
		p := vec.Pose{Pos: c.Anchor(s, env.Body, env.DT), Rot: env.Body.Rot}
		if !env.Magnets.Carry(h.Held, c.Holder(s), p) {
			h.Held = ""
		}
	}
}

// State is the persisted form of a controller.
type State struct {
	Hands [2]Hand `json:"hands"`
	Focus Focus   `json:"focus"`
}

func (c *Controller) Export() State { return State{Hands: c.hands, Focus: c.focus} }

func (c *Controller) Import(s State) {
	c.hands = s.Hands
	c.focus = s.Focus
}
