package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/vec"
)

// stateDigest hashes everything that influences future ticks. Two worlds fed
// the same joins, leaves and intents must produce the same digest every tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, w.nextPlayerNum)
	if rs, err := w.pcg.MarshalBinary(); err == nil {
		h.Write(rs)
	}

	for _, st := range w.space.States() {
		h.Write([]byte(st.ID))
		digestWriteU64(h, &tmp, uint64(st.Layer))
		digestWriteVec(h, &tmp, st.Pose.Pos)
		digestWriteQuat(h, &tmp, st.Pose.Rot)
		digestWriteVec(h, &tmp, st.Vel)
		digestWriteVec(h, &tmp, st.AngVel)
		h.Write([]byte{boolByte(st.Kinematic), boolByte(st.Collidable)})
	}
	for _, p := range w.space.Ignored() {
		h.Write([]byte(p.A))
		h.Write([]byte(p.B))
	}
	digestWriteU64(h, &tmp, uint64(w.contacts.Len()))

	recs, hosts := w.registry.Export()
	digestWriteU64(h, &tmp, w.registry.Seq())
	for _, r := range recs {
		h.Write([]byte(r.ID))
		h.Write([]byte{byte(r.Word), byte(r.State)})
		h.Write([]byte(r.Host))
		digestWriteVec(h, &tmp, r.Offset)
		digestWriteU64(h, &tmp, r.Seq)
		h.Write([]byte(r.Holder))
	}
	for _, id := range hosts {
		h.Write([]byte(id))
	}

	for _, b := range w.sortedBoxes() {
		h.Write([]byte(b.ID))
		digestWriteReplica(h, &tmp, b.Replica)
		digestWriteF64(h, &tmp, b.Effects.DenialTimer)
		h.Write([]byte{boolByte(b.Effects.Phased)})
	}
	for _, p := range w.sortedPlayers() {
		h.Write([]byte(p.ID))
		digestWriteReplica(h, &tmp, p.Replica)
		digestWriteU64(h, &tmp, p.LastSeq)
		digestWriteF64(h, &tmp, p.Yaw)
		digestWriteF64(h, &tmp, p.Pitch)
		digestWriteF64(h, &tmp, p.Move[0])
		digestWriteF64(h, &tmp, p.Move[1])
		hs := p.Hands.Export()
		for _, s := range []hands.Side{hands.Left, hands.Right} {
			hd := hs.Hands[s]
			h.Write([]byte{boolByte(hd.Pressed), boolByte(hd.Locked)})
			h.Write([]byte(hd.Held))
		}
		h.Write([]byte{boolByte(hs.Focus.Valid)})
		digestWriteVec(h, &tmp, hs.Focus.Point)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteReplica(h hashWriter, tmp *[8]byte, r *emotion.Replica) {
	digestWriteU64(h, tmp, r.Version())
	for _, k := range emotion.Kinds() {
		if r.Has(k) {
			digestWriteF64(h, tmp, r.Read(k))
		}
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v vec.Vec3) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
	digestWriteF64(h, tmp, v.Z)
}

func digestWriteQuat(h hashWriter, tmp *[8]byte, q vec.Quat) {
	digestWriteF64(h, tmp, q.W)
	digestWriteF64(h, tmp, q.X)
	digestWriteF64(h, tmp, q.Y)
	digestWriteF64(h, tmp, q.Z)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
