package emotion

import (
	"math"
)

// convergeEpsilon absorbs float drift so a value that is one rate-step away
// lands exactly on its target instead of stopping a hair short.
const convergeEpsilon = 1e-9

// MoveToward moves cur toward target by at most maxDelta and never overshoots.
func MoveToward(cur, target, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return cur
	}
	d := target - cur
	if math.Abs(d) <= maxDelta+convergeEpsilon {
		return target
	}
	if d > 0 {
		return cur + maxDelta
	}
	return cur - maxDelta
}

// Reader is the read-only face of a replica. Safe to hand to effect code and
// transports; it exposes no mutation.
type Reader interface {
	Read(k Kind) float64
	Has(k Kind) bool
	Version() uint64
}

// Snapshot is the replicated form of a replica.
type Snapshot struct {
	Version uint64           `json:"version"`
	Values  map[Kind]float64 `json:"values"`
}

// Replica holds the intensities of one entity. The authority replica is the
// only writer of current values; observer replicas only accept snapshots.
// Not safe for concurrent use: the authority replica belongs to the world loop.
type Replica struct {
	role Role

	defs      [NumKinds]*Definition
	current   [NumKinds]float64
	target    [NumKinds]float64
	hasTarget [NumKinds]bool

	version uint64
}

func NewAuthority(defs []Definition) *Replica { return newReplica(RoleAuthority, defs) }
func NewObserver(defs []Definition) *Replica  { return newReplica(RoleObserver, defs) }

func newReplica(role Role, defs []Definition) *Replica {
	r := &Replica{role: role}
	for i := range defs {
		d := defs[i]
		if !d.Kind.Valid() || d.ConvergenceRate <= 0 {
			continue
		}
		// First definition per kind wins.
		if r.defs[d.Kind] != nil {
			continue
		}
		r.defs[d.Kind] = &d
	}
	return r
}

func (r *Replica) Role() Role { return r.role }

func (r *Replica) Has(k Kind) bool { return k.Valid() && r.defs[k] != nil }

// Definition returns the active definition for k.
func (r *Replica) Definition(k Kind) (Definition, bool) {
	if !r.Has(k) {
		return Definition{}, false
	}
	return *r.defs[k], true
}

// SetTarget records the target for the next Tick. Ignored for observers and
// for kinds with no definition.
func (r *Replica) SetTarget(k Kind, target float64) {
	if r.role != RoleAuthority || !r.Has(k) || math.IsNaN(target) {
		return
	}
	r.target[k] = Clamp01(target)
	r.hasTarget[k] = true
}

// Tick converges every kind that received a target since the previous tick.
// It reports whether any current value changed.
func (r *Replica) Tick(dt float64) bool {
	if r.role != RoleAuthority {
		return false
	}
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	changed := false
	for i := 0; i < NumKinds; i++ {
		if !r.hasTarget[i] {
			continue
		}
		r.hasTarget[i] = false
		def := r.defs[i]
		next := Clamp01(MoveToward(r.current[i], r.target[i], def.ConvergenceRate*dt))
		if next != r.current[i] {
			r.current[i] = next
			changed = true
		}
	}
	if changed {
		r.version++
	}
	return changed
}

func (r *Replica) Read(k Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return r.current[k]
}

func (r *Replica) Version() uint64 { return r.version }

func (r *Replica) View() Reader { return view{r} }

func (r *Replica) Snapshot() Snapshot {
	s := Snapshot{Version: r.version, Values: make(map[Kind]float64, NumKinds)}
	for i := 0; i < NumKinds; i++ {
		if r.defs[i] != nil {
			s.Values[Kind(i)] = r.current[i]
		}
	}
	return s
}

// Apply installs a replicated snapshot on an observer replica. Snapshots that
// are not newer than the held one are dropped, so reordered or duplicated
// deliveries never roll a value back.
func (r *Replica) Apply(s Snapshot) bool {
	if r.role != RoleObserver || s.Version <= r.version {
		return false
	}
	for k, v := range s.Values {
		if !r.Has(k) {
			continue
		}
		r.current[k] = Clamp01(v)
	}
	r.version = s.Version
	return true
}

// Restore overwrites current values on the authority replica. Used only when
// resuming from a persisted snapshot before the first tick.
func (r *Replica) Restore(s Snapshot) {
	if r.role != RoleAuthority {
		return
	}
	for k, v := range s.Values {
		if r.Has(k) {
			r.current[k] = Clamp01(v)
		}
	}
	r.version = s.Version
}

type view struct{ r *Replica }

func (v view) Read(k Kind) float64 { return v.r.Read(k) }
func (v view) Has(k Kind) bool     { return v.r.Has(k) }
func (v view) Version() uint64     { return v.r.Version() }

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
