package emotion

import (
	"math"
	"math/rand/v2"
	"testing"
)

func fearDef(rate float64) Definition {
	return Definition{Kind: Fear, AppliesTo: SetOf(Player), ConvergenceRate: rate}
}

func TestReplicaConvergesWithoutOvershoot(t *testing.T) {
	r := NewAuthority([]Definition{fearDef(1.0)})
	for i := 0; i < 8; i++ {
		r.SetTarget(Fear, 0.8)
		r.Tick(0.1)
	}
	if got := r.Read(Fear); got != 0.8 {
		t.Fatalf("after 8 ticks fear=%v want 0.8", got)
	}
	r.SetTarget(Fear, 0.8)
	r.Tick(0.1)
	if got := r.Read(Fear); got != 0.8 {
		t.Fatalf("tick 9 overshoot: fear=%v", got)
	}
}

func TestReplicaStaysInRangeAndRateLimited(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const rate = 0.7
	r := NewAuthority([]Definition{fearDef(rate)})
	prev := r.Read(Fear)
	for i := 0; i < 5000; i++ {
		// Targets deliberately stray outside [0,1].
		r.SetTarget(Fear, rng.Float64()*3-1)
		dt := rng.Float64() * 0.2
		r.Tick(dt)
		cur := r.Read(Fear)
		if cur < 0 || cur > 1 {
			t.Fatalf("step %d: current %v out of range", i, cur)
		}
		if math.Abs(cur-prev) > rate*dt+1e-9 {
			t.Fatalf("step %d: moved %v > %v", i, math.Abs(cur-prev), rate*dt)
		}
		prev = cur
	}
}

func TestReplicaTargetIsTransient(t *testing.T) {
	r := NewAuthority([]Definition{fearDef(1)})
	r.SetTarget(Fear, 1)
	r.Tick(0.1)
	r.Tick(0.1) // no target this tick
	if got := r.Read(Fear); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("fear=%v want 0.1", got)
	}
}

func TestReplicaIgnoresObserverAndMissingDefinition(t *testing.T) {
	obs := NewObserver([]Definition{fearDef(1)})
	obs.SetTarget(Fear, 1)
	if obs.Tick(1) {
		t.Fatalf("observer tick reported change")
	}
	if obs.Read(Fear) != 0 {
		t.Fatalf("observer wrote current")
	}

	auth := NewAuthority([]Definition{fearDef(1)})
	auth.SetTarget(Anger, 1)
	auth.SetTarget(Fear, 0.5)
	auth.Tick(1)
	if auth.Read(Anger) != 0 {
		t.Fatalf("anger without definition moved")
	}
	if auth.Read(Fear) != 0.5 {
		t.Fatalf("fear=%v want 0.5", auth.Read(Fear))
	}
}

func TestReplicaVersionBumpsOnlyOnChange(t *testing.T) {
	r := NewAuthority([]Definition{fearDef(1)})
	r.SetTarget(Fear, 0)
	if r.Tick(0.1) || r.Version() != 0 {
		t.Fatalf("no-op tick bumped version")
	}
	r.SetTarget(Fear, 1)
	if !r.Tick(0.1) || r.Version() != 1 {
		t.Fatalf("changing tick did not bump version: %d", r.Version())
	}
}

func TestObserverApplyDropsStaleSnapshots(t *testing.T) {
	auth := NewAuthority([]Definition{fearDef(1)})
	obs := NewObserver([]Definition{fearDef(1)})

	auth.SetTarget(Fear, 1)
	auth.Tick(0.2)
	older := auth.Snapshot()
	auth.SetTarget(Fear, 1)
	auth.Tick(0.2)
	newer := auth.Snapshot()

	if !obs.Apply(newer) {
		t.Fatalf("newer snapshot rejected")
	}
	if obs.Apply(older) {
		t.Fatalf("older snapshot applied")
	}
	if obs.Apply(newer) {
		t.Fatalf("duplicate snapshot applied")
	}
	if got := obs.Read(Fear); math.Abs(got-0.4) > 1e-12 {
		t.Fatalf("observer fear=%v want 0.4", got)
	}
	if auth.Apply(newer) {
		t.Fatalf("authority accepted a replicated snapshot")
	}
}

func TestDuplicateDefinitionFirstWins(t *testing.T) {
	r := NewAuthority([]Definition{fearDef(0.5), fearDef(2)})
	d, ok := r.Definition(Fear)
	if !ok || d.ConvergenceRate != 0.5 {
		t.Fatalf("definition=%+v ok=%v", d, ok)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("kind %v: got %v err %v", k, got, err)
		}
	}
	for i := 0; i < NumWords; i++ {
		w := Word(i)
		got, err := ParseWord(w.String())
		if err != nil || got != w {
			t.Fatalf("word %v: got %v err %v", w, got, err)
		}
	}
	if _, err := ParseWord("hug"); err != ErrUnknownWord {
		t.Fatalf("expected ErrUnknownWord, got %v", err)
	}
}
