package magnet

import (
	"errors"
	"sort"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

var (
	ErrDuplicateMagnet = errors.New("duplicate magnet id")
	ErrUnknownHost     = errors.New("unknown attach point host")
)

type Op uint8

const (
	OpAttach Op = iota + 1
	OpStrip
	OpDetach
	OpTake
	OpDrop
)

func (o Op) String() string {
	switch o {
	case OpAttach:
		return "ATTACH"
	case OpStrip:
		return "STRIP"
	case OpDetach:
		return "DETACH"
	case OpTake:
		return "TAKE"
	case OpDrop:
		return "DROP"
	default:
		return "NONE"
	}
}

type Result uint8

const (
	OK Result = iota
	Noop
	Rejected
	Duplicate
	Stale
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Noop:
		return "NOOP"
	case Rejected:
		return "REJECTED"
	case Duplicate:
		return "DUPLICATE"
	case Stale:
		return "STALE"
	default:
		return "UNKNOWN"
	}
}

// Transition describes one evaluated state change request.
type Transition struct {
	Tick   uint64         `json:"tick"`
	Op     Op             `json:"op"`
	Magnet physics.BodyID `json:"magnet"`
	Host   physics.BodyID `json:"host,omitempty"`
	Result Result         `json:"result"`
}

func (t Transition) Applied() bool { return t.Result == OK }

type PoseFunc func(physics.BodyID) (vec.Pose, bool)

// Registry is driven only from the world loop.
type Registry struct {
	sink physics.Sink

	magnets map[physics.BodyID]*Magnet
	points  map[physics.BodyID][]physics.BodyID

	tick uint64
	seq  uint64
}

func NewRegistry(sink physics.Sink) *Registry {
	return &Registry{
		sink:    sink,
		magnets: map[physics.BodyID]*Magnet{},
		points:  map[physics.BodyID][]physics.BodyID{},
	}
}

// Begin marks the start of tick t. Contacts are deduplicated per tick.
func (r *Registry) Begin(t uint64) { r.tick = t }

func (r *Registry) Add(m Magnet) error {
	if _, ok := r.magnets[m.ID]; ok {
		return ErrDuplicateMagnet
	}
	m.state = Free
	m.host = ""
	m.holder = ""
	m.holderBody = ""
	r.magnets[m.ID] = &m
	return nil
}

// Remove forgets a destroyed magnet and cleans up its attach point membership.
func (r *Registry) Remove(id physics.BodyID) {
	m, ok := r.magnets[id]
	if !ok {
		return
	}
	if m.state == Attached {
		r.unlink(m)
	}
	delete(r.magnets, id)
}

func (r *Registry) AddHost(id physics.BodyID) {
	if _, ok := r.points[id]; !ok {
		r.points[id] = nil
	}
}

// RemoveHost drops the attach point of a destroyed host and frees every
// magnet that was attached to it.
func (r *Registry) RemoveHost(id physics.BodyID) []Transition {
	members, ok := r.points[id]
	if !ok {
		return nil
	}
	var out []Transition
	for _, mid := range append([]physics.BodyID(nil), members...) {
		m := r.magnets[mid]
		if m == nil {
			continue
		}
		r.free(m)
		r.mark(m)
		out = append(out, Transition{Tick: r.tick, Op: OpDetach, Magnet: mid, Host: id, Result: OK})
	}
	delete(r.points, id)
	return out
}

func (r *Registry) HasHost(id physics.BodyID) bool {
	_, ok := r.points[id]
	return ok
}

// Contact evaluates a begin-contact event for every magnet in it, A side
// first. The result is empty when neither body is a known magnet.
func (r *Registry) Contact(c physics.Collision, pose PoseFunc) []Transition {
	var out []Transition
	if m := r.magnets[c.A]; m != nil {
		out = append(out, r.contact(m, c.B, c.LayerB, c, pose))
	}
	if m := r.magnets[c.B]; m != nil {
		out = append(out, r.contact(m, c.A, c.LayerA, c, pose))
	}
	return out
}

func (r *Registry) contact(m *Magnet, other physics.BodyID, otherLayer physics.Layer, c physics.Collision, pose PoseFunc) Transition {
	t := Transition{Tick: r.tick, Magnet: m.ID, Host: other}
	if m.state == Free {
		t.Op = OpAttach
	} else {
		t.Op = OpStrip
		t.Host = m.host
	}
	if r.transitioned(m) {
		t.Result = Duplicate
		return t
	}
	if m.Held() {
		t.Result = Rejected
		return t
	}

	if m.state == Attached {
		if c.Impulse <= m.StripImpulse {
			t.Result = Noop
			return t
		}
		r.free(m)
		r.mark(m)
		t.Result = OK
		return t
	}

	if !m.Accepts.Has(otherLayer) {
		t.Result = Rejected
		return t
	}
	if _, ok := r.points[other]; !ok {
		t.Result = Rejected
		return t
	}
	hp, ok := pose(other)
	if !ok {
		t.Result = Stale
		return t
	}
	r.seq++
	m.state = Attached
	m.host = other
	m.offset = hp.InverseTransformPoint(c.Point)
	m.seq = r.seq
	r.mark(m)
	r.points[other] = append(r.points[other], m.ID)
	r.sink.SetKinematic(m.ID, true)
	r.sink.SetVelocity(m.ID, vec.Zero)
	r.sink.IgnorePair(m.ID, other, true)
	t.Result = OK
	return t
}

// Detach frees an attached magnet. Repeated calls are no-ops.
func (r *Registry) Detach(id physics.BodyID) Transition {
	t := Transition{Tick: r.tick, Op: OpDetach, Magnet: id}
	m, ok := r.magnets[id]
	if !ok {
		t.Result = Stale
		return t
	}
	t.Host = m.host
	if m.state != Attached {
		t.Result = Noop
		return t
	}
	r.free(m)
	r.mark(m)
	t.Result = OK
	return t
}

// Take forces a magnet Free and couples it to holder. A magnet already held
// by anyone is rejected.
func (r *Registry) Take(id physics.BodyID, holder string, holderBody physics.BodyID) Transition {
	t := Transition{Tick: r.tick, Op: OpTake, Magnet: id, Host: holderBody}
	m, ok := r.magnets[id]
	if !ok {
		t.Result = Stale
		return t
	}
	if m.Held() {
		t.Result = Rejected
		return t
	}
	if m.state == Attached {
		r.free(m)
	}
	m.holder = holder
	m.holderBody = holderBody
	r.mark(m)
	r.sink.SetKinematic(m.ID, true)
	r.sink.SetVelocity(m.ID, vec.Zero)
	r.sink.IgnorePair(m.ID, holderBody, true)
	t.Result = OK
	return t
}

// Drop removes the hand coupling and returns the magnet to free simulation.
func (r *Registry) Drop(id physics.BodyID, holder string) Transition {
	t := Transition{Tick: r.tick, Op: OpDrop, Magnet: id}
	m, ok := r.magnets[id]
	if !ok {
		t.Result = Stale
		return t
	}
	if m.holder != holder || holder == "" {
		t.Result = Noop
		return t
	}
	t.Host = m.holderBody
	r.sink.IgnorePair(m.ID, m.holderBody, false)
	r.sink.SetKinematic(m.ID, false)
	m.holder = ""
	m.holderBody = ""
	r.mark(m)
	t.Result = OK
	return t
}

// Carry moves a held magnet to the hand pose.
func (r *Registry) Carry(id physics.BodyID, holder string, p vec.Pose) bool {
	m, ok := r.magnets[id]
	if !ok || m.holder != holder || holder == "" {
		return false
	}
	r.sink.SetPose(id, p)
	r.sink.SetVelocity(id, vec.Zero)
	return true
}

// Follow slaves every attached magnet to its host: worldPos = host * offset.
// Magnets whose host pose is gone are freed and reported.
func (r *Registry) Follow(pose PoseFunc) []Transition {
	var stale []Transition
	for _, host := range r.hostIDs() {
		hp, ok := pose(host)
		for _, mid := range append([]physics.BodyID(nil), r.points[host]...) {
			m := r.magnets[mid]
			if m == nil {
				continue
			}
			if !ok {
				r.free(m)
				r.mark(m)
				stale = append(stale, Transition{Tick: r.tick, Op: OpDetach, Magnet: mid, Host: host, Result: Stale})
				continue
			}
			r.sink.SetPose(mid, vec.Pose{Pos: hp.TransformPoint(m.offset), Rot: hp.Rot})
			r.sink.SetVelocity(mid, vec.Zero)
		}
	}
	return stale
}

func (r *Registry) Magnet(id physics.BodyID) (Magnet, bool) {
	m, ok := r.magnets[id]
	if !ok {
		return Magnet{}, false
	}
	return *m, true
}

func (r *Registry) IsMagnet(id physics.BodyID) bool {
	_, ok := r.magnets[id]
	return ok
}

// Magnets returns copies sorted by id.
func (r *Registry) Magnets() []Magnet {
	out := make([]Magnet, 0, len(r.magnets))
	for _, m := range r.magnets {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Attached returns the magnets attached to host in attach order.
func (r *Registry) Attached(host physics.BodyID) []Magnet {
	ids := r.points[host]
	out := make([]Magnet, 0, len(ids))
	for _, id := range ids {
		if m := r.magnets[id]; m != nil {
			out = append(out, *m)
		}
	}
	return out
}

func (r *Registry) Words(host physics.BodyID) []emotion.Word {
	ids := r.points[host]
	out := make([]emotion.Word, 0, len(ids))
	for _, id := range ids {
		if m := r.magnets[id]; m != nil {
			out = append(out, m.Word)
		}
	}
	return out
}

func (r *Registry) mark(m *Magnet)              { m.stamp = r.tick + 1 }
func (r *Registry) transitioned(m *Magnet) bool { return m.stamp == r.tick+1 }

func (r *Registry) free(m *Magnet) {
	r.unlink(m)
	r.sink.IgnorePair(m.ID, m.host, false)
	r.sink.SetKinematic(m.ID, false)
	m.state = Free
	m.host = ""
	m.offset = vec.Zero
	m.seq = 0
}

func (r *Registry) unlink(m *Magnet) {
	members := r.points[m.host]
	for i, id := range members {
		if id == m.ID {
			r.points[m.host] = append(members[:i:i], members[i+1:]...)
			return
		}
	}
}

func (r *Registry) hostIDs() []physics.BodyID {
	out := make([]physics.BodyID, 0, len(r.points))
	for id := range r.points {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Export returns magnet records sorted by id and the registered hosts.
func (r *Registry) Export() ([]Record, []physics.BodyID) {
	ms := r.Magnets()
	out := make([]Record, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].record())
	}
	return out, r.hostIDs()
}

// Seq is the attach counter. It must survive a resume so later attaches get
// the same sequence numbers.
func (r *Registry) Seq() uint64 { return r.seq }

// Import replaces the registry contents. Attach order is rebuilt from the
// recorded sequence numbers. Physics state is restored separately.
func (r *Registry) Import(recs []Record, hosts []physics.BodyID, tick, seq uint64) error {
	r.magnets = map[physics.BodyID]*Magnet{}
	r.points = map[physics.BodyID][]physics.BodyID{}
	r.tick = tick
	r.seq = seq
	for _, h := range hosts {
		r.points[h] = nil
	}
	sorted := append([]Record(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, rec := range sorted {
		if _, ok := r.magnets[rec.ID]; ok {
			return ErrDuplicateMagnet
		}
		m := &Magnet{
			ID:           rec.ID,
			Word:         rec.Word,
			Accepts:      rec.Accepts,
			StripImpulse: rec.StripImpulse,
			state:        rec.State,
			host:         rec.Host,
			offset:       rec.Offset,
			seq:          rec.Seq,
			holder:       rec.Holder,
			holderBody:   rec.HolderBody,
			stamp:        rec.Stamp,
		}
		if m.state == Attached {
			if _, ok := r.points[m.host]; !ok {
				return ErrUnknownHost
			}
			r.points[m.host] = append(r.points[m.host], m.ID)
		}
		if m.seq > r.seq {
			r.seq = m.seq
		}
		r.magnets[m.ID] = m
	}
	return nil
}
