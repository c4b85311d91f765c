// Package magnet owns the Free/Attached lifecycle of word magnets and the
// attachment points that aggregate them per host. Registry is the only
// writer of both, so membership and magnet state change together.
package magnet

import (
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

type State uint8

const (
	Free State = iota
	Attached
)

func (s State) String() string {
	if s == Attached {
		return "ATTACHED"
	}
	return "FREE"
}

type Magnet struct {
	ID           physics.BodyID
	Word         emotion.Word
	Accepts      physics.Layer
	StripImpulse float64

	state  State
	host   physics.BodyID
	offset vec.Vec3
	seq    uint64

	holder     string
	holderBody physics.BodyID

	stamp uint64 // last transition tick + 1, 0 if never
}

func (m *Magnet) State() State               { return m.state }
func (m *Magnet) Host() physics.BodyID       { return m.host }
func (m *Magnet) Offset() vec.Vec3           { return m.offset }
func (m *Magnet) Holder() string             { return m.holder }
func (m *Magnet) Held() bool                 { return m.holder != "" }
func (m *Magnet) HolderBody() physics.BodyID { return m.holderBody }

// Record is the persisted form of a magnet.
type Record struct {
	ID           physics.BodyID `json:"id"`
	Word         emotion.Word   `json:"word"`
	Accepts      physics.Layer  `json:"accepts"`
	StripImpulse float64        `json:"strip_impulse"`
	State        State          `json:"state"`
	Host         physics.BodyID `json:"host,omitempty"`
	Offset       vec.Vec3       `json:"offset"`
	Seq          uint64         `json:"seq,omitempty"`
	Holder       string         `json:"holder,omitempty"`
	HolderBody   physics.BodyID `json:"holder_body,omitempty"`
	Stamp        uint64         `json:"stamp,omitempty"`
}

func (m *Magnet) record() Record {
	return Record{
		ID:           m.ID,
		Word:         m.Word,
		Accepts:      m.Accepts,
		StripImpulse: m.StripImpulse,
		State:        m.state,
		Host:         m.host,
		Offset:       m.offset,
		Seq:          m.seq,
		Holder:       m.holder,
		HolderBody:   m.holderBody,
		Stamp:        m.stamp,
	}
}
