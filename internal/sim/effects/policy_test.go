package effects

import (
	"math"
	"testing"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/vec"
)

type recSink struct {
	forces     []vec.Vec3
	torques    []vec.Vec3
	impulses   []vec.Vec3
	collidable []bool
}

func (s *recSink) AddForce(_ physics.BodyID, a vec.Vec3)  { s.forces = append(s.forces, a) }
func (s *recSink) AddTorque(_ physics.BodyID, a vec.Vec3) { s.torques = append(s.torques, a) }
func (s *recSink) AddImpulse(_ physics.BodyID, v vec.Vec3) {
	s.impulses = append(s.impulses, v)
}
func (s *recSink) SetKinematic(physics.BodyID, bool)               {}
func (s *recSink) SetVelocity(physics.BodyID, vec.Vec3)            {}
func (s *recSink) SetPose(physics.BodyID, vec.Pose)                {}
func (s *recSink) IgnorePair(physics.BodyID, physics.BodyID, bool) {}
func (s *recSink) SetCollidable(_ physics.BodyID, on bool) {
	s.collidable = append(s.collidable, on)
}

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

func defaultTables(t *testing.T) (Table, Table) {
	t.Helper()
	box, player, err := Tables(tuning.Defaults())
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	return box, player
}

func TestStayMultiplierScenario(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	ctx := Tracked{}.Context(vec.At(vec.Zero), emotion.Box, []emotion.Word{emotion.Stay})
	got, ok := p.ComputeTarget(emotion.Abandonment, ctx)
	if !ok || got != 0.09 {
		t.Fatalf("target=%v ok=%v want 0.09", got, ok)
	}
}

func TestWordOrderIndependence(t *testing.T) {
	box, player := defaultTables(t)
	for _, p := range []*Policy{NewBox(box), NewPlayer(player)} {
		for _, k := range emotion.Kinds() {
			for a := emotion.Word(0); int(a) < emotion.NumWords; a++ {
				for b := emotion.Word(0); int(b) < emotion.NumWords; b++ {
					ab := Tracked{}.Context(vec.At(vec.Zero), p.Entity(), []emotion.Word{a, b})
					ba := Tracked{}.Context(vec.At(vec.Zero), p.Entity(), []emotion.Word{b, a})
					x, okx := p.ComputeTarget(k, ab)
					y, oky := p.ComputeTarget(k, ba)
					if x != y || okx != oky {
						t.Fatalf("%s %s: {%s,%s}=%v {%s,%s}=%v", p.Entity(), k, a, b, x, b, a, y)
					}
				}
			}
		}
	}
}

func TestApplyWordsFloor(t *testing.T) {
	f := map[emotion.Word]float64{emotion.Stay: 0.3, emotion.DontLeave: 0.3}
	words := []emotion.Word{emotion.Stay, emotion.DontLeave, emotion.Stay}
	if got := ApplyWords(0.3, f, words, 0.01); got != 0.01 {
		t.Fatalf("stacked=%v want floor 0.01", got)
	}
	if got := ApplyWords(0.005, f, words, 0.01); got != 0.005 {
		t.Fatalf("floor raised a low base: %v", got)
	}
	if got := ApplyWords(0.4, f, []emotion.Word{emotion.Warmth}, 0.01); got != 0.4 {
		t.Fatalf("unmatched word changed target: %v", got)
	}
}

func TestFearProximityTarget(t *testing.T) {
	_, player := defaultTables(t)
	p := NewPlayer(player)
	self := vec.At(vec.Vec3{})
	alone := Tracked{Players: []vec.Vec3{self.Pos}}.Context(self, emotion.Player, nil)
	if got, _ := p.ComputeTarget(emotion.Fear, alone); got != 0.8 {
		t.Fatalf("alone=%v want 0.8", got)
	}
	near := Tracked{Players: []vec.Vec3{self.Pos, {X: 3}}}.Context(self, emotion.Player, nil)
	if got, _ := p.ComputeTarget(emotion.Fear, near); got != 0.25 {
		t.Fatalf("near=%v want 0.25", got)
	}
	far := Tracked{Players: []vec.Vec3{{X: 10}, self.Pos}}.Context(self, emotion.Player, []emotion.Word{emotion.Warmth})
	if got, _ := p.ComputeTarget(emotion.Fear, far); math.Abs(got-0.32) > 1e-12 {
		t.Fatalf("far+warmth=%v want 0.32", got)
	}
}

func TestDenialPeriodScenario(t *testing.T) {
	if got := Period(0.5, 3.0, 0.5); got != 6.0 {
		t.Fatalf("period=%v want 6", got)
	}
	if got := Period(1, 0.1, 0.5); got != 0.5 {
		t.Fatalf("period below floor=%v", got)
	}
	if got := Period(0, 3, 0.5); got != 300 {
		t.Fatalf("zero intensity period=%v", got)
	}
}

func TestDenialTogglesCollision(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	sink := &recSink{}
	st := &State{}
	env := &Env{Body: "box", Sink: sink, Rand: fixedRand(0.99), State: st}
	env.Def = emotion.Definition{Kind: emotion.Denial, ConvergenceRate: 1, PhaseIntervalSeconds: 3}

	for i := 0; i < 23; i++ {
		p.ApplyEffect(emotion.Denial, 0.5, 0.25, env)
	}
	if len(sink.collidable) != 0 {
		t.Fatalf("toggled early after %.1fs", st.DenialTimer)
	}
	p.ApplyEffect(emotion.Denial, 0.5, 0.25, env)
	if len(sink.collidable) != 1 || sink.collidable[0] || !st.Phased {
		t.Fatalf("expected phase out at 6s, got %v phased=%v", sink.collidable, st.Phased)
	}
	p.ApplyEffect(emotion.Denial, 0.01, 0.25, env)
	if st.DenialTimer != 0 {
		t.Fatalf("timer advanced below threshold: %v", st.DenialTimer)
	}
}

func TestAbandonmentDriftsAwayFromPlayers(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	sink := &recSink{}
	self := vec.At(vec.Vec3{X: 2})
	ctx := Tracked{Players: []vec.Vec3{{X: 0}, {X: 0, Z: 0}}}.Context(self, emotion.Box, nil)
	env := &Env{Body: "box", Ctx: ctx, Sink: sink, Rand: fixedRand(0), State: &State{}}
	env.Def = emotion.Definition{Kind: emotion.Abandonment, ConvergenceRate: 1, BaseDriftStrength: 5}
	p.ApplyEffect(emotion.Abandonment, 0.5, 0.02, env)
	if len(sink.forces) != 1 || sink.forces[0] != (vec.Vec3{X: 2.5}) {
		t.Fatalf("forces=%v want [(2.5,0,0)]", sink.forces)
	}

	sink.forces = nil
	p.ApplyEffect(emotion.Abandonment, 0.005, 0.02, env)
	if len(sink.forces) != 0 {
		t.Fatalf("drift below threshold")
	}
	env.Ctx = Tracked{}.Context(self, emotion.Box, nil)
	p.ApplyEffect(emotion.Abandonment, 0.5, 0.02, env)
	if len(sink.forces) != 0 {
		t.Fatalf("drift with no tracked players")
	}
}

func TestAngerChanceScalesWithIntensity(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	def := emotion.Definition{Kind: emotion.Anger, ConvergenceRate: 1, RandomImpulseStrength: 2}

	// p = 0.3 * 1.0 * 0.02 = 0.006
	sink := &recSink{}
	env := &Env{Body: "box", Mass: 2, Sink: sink, Rand: fixedRand(0.0059), Def: def}
	p.ApplyEffect(emotion.Anger, 1, 0.02, env)
	if len(sink.impulses) != 1 {
		t.Fatalf("expected jolt, got %v", sink.impulses)
	}
	if l := sink.impulses[0].Len(); math.Abs(l-1) > 1e-12 || sink.impulses[0].Y != 0 {
		t.Fatalf("jolt=%v want horizontal, |dv|=1", sink.impulses[0])
	}
	env.Rand = fixedRand(0.0061)
	p.ApplyEffect(emotion.Anger, 1, 0.02, env)
	if len(sink.impulses) != 1 {
		t.Fatalf("jolt fired above probability")
	}
}

func TestFearSwayAndStumble(t *testing.T) {
	_, player := defaultTables(t)
	p := NewPlayer(player)
	sink := &recSink{}
	env := &Env{Body: "p1", Mass: 1, Ctx: Context{Self: vec.At(vec.Zero)}, Sink: sink, Rand: fixedRand(0.001)}
	env.Def = emotion.Definition{Kind: emotion.Fear, ConvergenceRate: 1, StumbleChancePerSecond: 0.3}

	p.ApplyEffect(emotion.Fear, 0.3, 0.02, env)
	if len(sink.torques) != 1 || len(sink.impulses) != 0 {
		t.Fatalf("below stumble threshold: torques=%v impulses=%v", sink.torques, sink.impulses)
	}
	want := vec.Vec3{Z: (0.001*2 - 1) * 5 * 0.3}
	if math.Abs(sink.torques[0].Z-want.Z) > 1e-12 {
		t.Fatalf("torque=%v want %v", sink.torques[0], want)
	}
	p.ApplyEffect(emotion.Fear, 0.8, 0.02, env)
	if len(sink.impulses) != 1 {
		t.Fatalf("expected stumble, impulses=%v", sink.impulses)
	}
	if got := sink.impulses[0]; math.Abs(got.X+2) > 1e-9 || got.Y != 0 || got.Z != 0 {
		t.Fatalf("stumble=%v want (-2,0,0)", got)
	}
}

func TestMissingDefinitionSkipsKind(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	r := emotion.NewAuthority([]emotion.Definition{
		{Kind: emotion.Denial, AppliesTo: emotion.SetOf(emotion.Box), ConvergenceRate: 1, PhaseIntervalSeconds: 3},
	})
	ctx := Tracked{Players: []vec.Vec3{{X: 5}}}.Context(vec.At(vec.Zero), emotion.Box, nil)
	SetTargets(p, r, ctx)
	r.Tick(1)
	if r.Read(emotion.Abandonment) != 0 || r.Read(emotion.Denial) != 0.4 {
		t.Fatalf("abandon=%v denial=%v", r.Read(emotion.Abandonment), r.Read(emotion.Denial))
	}
	sink := &recSink{}
	Apply(p, r, 0.02, &Env{Body: "box", Ctx: ctx, Sink: sink, Rand: fixedRand(0), State: &State{}})
	if len(sink.forces) != 0 {
		t.Fatalf("abandonment applied without a definition")
	}
}

func TestOnFireReportsAction(t *testing.T) {
	box, _ := defaultTables(t)
	p := NewBox(box)
	var got []Fired
	p.OnFire = func(f Fired) { got = append(got, f) }
	env := &Env{Body: "box", Sink: &recSink{}, Rand: fixedRand(0), Def: emotion.Definition{Kind: emotion.Anger, RandomImpulseStrength: 1}}
	p.ApplyEffect(emotion.Anger, 0.5, 0.02, env)
	if len(got) != 1 || got[0].Action != "JOLT" || got[0].Body != "box" {
		t.Fatalf("fired=%v", got)
	}
}
