package effects

import (
	"fmt"
	"sort"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/tuning"
)

// Target is the base target of one kind. Radius > 0 makes it a proximity
// rule: Near when another player is within Radius, Far otherwise.
type Target struct {
	Kind   emotion.Kind
	Base   float64
	Radius float64
	Near   float64
	Far    float64
}

func (t Target) eval(ctx Context) float64 {
	if t.Radius <= 0 {
		return t.Base
	}
	if ctx.NearestDistance() > t.Radius {
		return t.Far
	}
	return t.Near
}

type Multiplier struct {
	Kind   emotion.Kind
	Word   emotion.Word
	Factor float64
}

type Trigger uint8

const (
	Continuous Trigger = iota
	Chance
	Periodic
)

type Action uint8

const (
	Drift Action = iota
	Phase
	Jolt
	Sway
	Stumble
)

func (a Action) String() string {
	switch a {
	case Drift:
		return "DRIFT"
	case Phase:
		return "PHASE"
	case Jolt:
		return "JOLT"
	case Sway:
		return "SWAY"
	case Stumble:
		return "STUMBLE"
	default:
		return "UNKNOWN"
	}
}

// Rule is one row of the effect policy: above Threshold, Trigger decides
// whether Action fires this tick.
//
// Rate is the per-second base rate of a Chance trigger; zero means the
// definition's StumbleChancePerSecond. Floor is the minimum period of a
// Periodic trigger. Magnitude scales Sway and Stumble; Drift and Jolt take
// their strength from the definition.
type Rule struct {
	Kind      emotion.Kind
	Threshold float64
	Trigger   Trigger
	Action    Action
	Rate      float64
	Floor     float64
	Magnitude float64
}

type Table struct {
	Targets     []Target
	Multipliers []Multiplier
	Rules       []Rule
	Floor       float64
}

// Tables builds the box and player tables from tuning.
func Tables(tt tuning.Tuning) (box, player Table, err error) {
	box.Floor, player.Floor = tt.TargetFloor, tt.TargetFloor
	pick := func(entity emotion.EntityKind) *Table {
		if entity == emotion.Box {
			return &box
		}
		return &player
	}
	for i, r := range tt.Targets {
		e, k, err := parse(r.Entity, r.Emotion)
		if err != nil {
			return box, player, fmt.Errorf("targets[%d]: %w", i, err)
		}
		t := pick(e)
		t.Targets = append(t.Targets, Target{Kind: k, Base: r.Base, Radius: r.Radius, Near: r.Near, Far: r.Far})
	}
	for i, m := range tt.Multipliers {
		e, k, err := parse(m.Entity, m.Emotion)
		if err != nil {
			return box, player, fmt.Errorf("multipliers[%d]: %w", i, err)
		}
		w, err := emotion.ParseWord(m.Word)
		if err != nil {
			return box, player, fmt.Errorf("multipliers[%d]: %w", i, err)
		}
		t := pick(e)
		t.Multipliers = append(t.Multipliers, Multiplier{Kind: k, Word: w, Factor: m.Factor})
	}

	b := tt.Box
	box.Rules = []Rule{
		{Kind: emotion.Abandonment, Threshold: b.AbandonThreshold, Trigger: Continuous, Action: Drift},
		{Kind: emotion.Denial, Threshold: b.DenialThreshold, Trigger: Periodic, Action: Phase, Floor: b.DenialFloorSeconds},
		{Kind: emotion.Anger, Threshold: b.AngerThreshold, Trigger: Chance, Action: Jolt, Rate: b.AngerBaseRate},
	}
	p := tt.Player
	player.Rules = []Rule{
		{Kind: emotion.Fear, Threshold: p.SwayThreshold, Trigger: Continuous, Action: Sway, Magnitude: p.SwayTorque},
		{Kind: emotion.Fear, Threshold: p.StumbleThreshold, Trigger: Chance, Action: Stumble, Magnitude: p.StumbleImpulse},
		{Kind: emotion.Anger, Threshold: p.AngerThreshold, Trigger: Chance, Action: Jolt, Rate: p.AngerBaseRate},
	}
	return box, player, nil
}

func parse(entity, kind string) (emotion.EntityKind, emotion.Kind, error) {
	e, err := emotion.ParseEntityKind(entity)
	if err != nil {
		return 0, 0, err
	}
	k, err := emotion.ParseKind(kind)
	if err != nil {
		return 0, 0, err
	}
	return e, k, nil
}

// ApplyWords multiplies base by every factor matched by words. Factors are
// applied in word order, so the result does not depend on attach order.
// When anything matched, the result does not drop below min(base, floor).
func ApplyWords(base float64, factors map[emotion.Word]float64, words []emotion.Word, floor float64) float64 {
	matched := make([]emotion.Word, 0, len(words))
	for _, w := range words {
		if _, ok := factors[w]; ok {
			matched = append(matched, w)
		}
	}
	if len(matched) == 0 {
		return emotion.Clamp01(base)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	v := base
	for _, w := range matched {
		v *= factors[w]
	}
	if lo := min(base, floor); v < lo {
		v = lo
	}
	return emotion.Clamp01(v)
}

// Period is the denial toggle period: max(floor, interval/intensity).
func Period(intensity, interval, floor float64) float64 {
	return max(floor, interval/max(intensity, 0.01))
}

// ChanceOf is the per-tick probability rate*intensity*dt.
func ChanceOf(rate, intensity, dt float64) float64 {
	return rate * intensity * dt
}
