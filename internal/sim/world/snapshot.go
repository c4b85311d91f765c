package world

import (
	"fmt"

	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/physics"
)

// ExportSnapshot must be called from the world loop goroutine, after the
// step for nowTick.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	h := snapshot.Header{Version: snapshot.Version, Tick: nowTick}
	if f := w.Frame(); f != nil && f.Tick == nowTick {
		h.Digest = f.Digest
	}
	rs, _ := w.pcg.MarshalBinary()
	recs, hosts := w.registry.Export()

	s := snapshot.SnapshotV1{
		Header:         h,
		Tuning:         w.cfg,
		TuningDigest:   w.digest,
		EmotionsDigest: w.table.Digest,
		RNG:            rs,
		NextPlayerNum:  w.nextPlayerNum,
		Bodies:         w.space.States(),
		Touching:       w.space.Touching(),
		Ignored:        w.space.Ignored(),
		Contacts:       w.contacts.Pending(),
		Magnets:        recs,
		Hosts:          hosts,
		MagnetSeq:      w.registry.Seq(),
	}
	for _, b := range w.sortedBoxes() {
		s.Boxes = append(s.Boxes, snapshot.BoxV1{
			ID:       b.ID,
			Emotions: b.Replica.Snapshot(),
			Effects:  b.Effects,
		})
	}
	for _, p := range w.sortedPlayers() {
		s.Players = append(s.Players, snapshot.PlayerV1{
			ID:       p.ID,
			Name:     p.Name,
			Yaw:      p.Yaw,
			Pitch:    p.Pitch,
			Move:     p.Move,
			LastSeq:  p.LastSeq,
			Emotions: p.Replica.Snapshot(),
			Effects:  p.Effects,
			Hands:    p.Hands.Export(),
		})
	}
	return s
}

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// The world must have been created with the snapshot's tuning and emotion
// table. Restored players have no connection; callers decide whether to
// remove them. This must be called only before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.TuningDigest != w.digest {
		return fmt.Errorf("snapshot tuning mismatch: world=%s snap=%s", w.digest, s.TuningDigest)
	}
	if s.EmotionsDigest != w.table.Digest {
		return fmt.Errorf("snapshot emotions mismatch: world=%s snap=%s", w.table.Digest, s.EmotionsDigest)
	}

	w.resetPhysics()
	w.contacts.Restore(nil)
	w.boxes = map[physics.BodyID]*Box{}
	w.players = map[physics.BodyID]*Player{}
	w.clients = map[physics.BodyID]chan []byte{}

	for _, b := range s.Bodies {
		if err := w.space.Add(physics.BodyDef{
			ID:        b.ID,
			Layer:     b.Layer,
			Radius:    b.Radius,
			Mass:      b.Mass,
			Pose:      b.Pose,
			Kinematic: b.Kinematic,
		}); err != nil {
			return fmt.Errorf("body %s: %w", b.ID, err)
		}
	}
	w.space.Restore(s.Bodies)
	w.space.RestorePairs(s.Touching, s.Ignored)

	if err := w.registry.Import(s.Magnets, s.Hosts, s.Header.Tick, s.MagnetSeq); err != nil {
		return fmt.Errorf("magnets: %w", err)
	}

	for _, bs := range s.Boxes {
		if _, ok := w.space.Pose(bs.ID); !ok {
			return fmt.Errorf("box %s has no body", bs.ID)
		}
		b := &Box{ID: bs.ID, Replica: emotion.NewAuthority(w.table.For(emotion.Box)), Effects: bs.Effects}
		b.Replica.Restore(bs.Emotions)
		w.boxes[b.ID] = b
		w.scene.Track(emotion.Box, b.ID)
	}
	for _, ps := range s.Players {
		if _, ok := w.space.Pose(ps.ID); !ok {
			return fmt.Errorf("player %s has no body", ps.ID)
		}
		p := &Player{
			ID:      ps.ID,
			Name:    ps.Name,
			Replica: emotion.NewAuthority(w.table.For(emotion.Player)),
			Effects: ps.Effects,
			Hands:   hands.New(ps.ID, w.cfg.Hands, w.cfg.Player.EyeHeight),
			Yaw:     ps.Yaw,
			Pitch:   ps.Pitch,
			Move:    ps.Move,
			LastSeq: ps.LastSeq,
		}
		p.Replica.Restore(ps.Emotions)
		p.Hands.Import(ps.Hands)
		w.players[p.ID] = p
		w.scene.Track(emotion.Player, p.ID)
	}

	w.contacts.Restore(s.Contacts)
	if err := w.pcg.UnmarshalBinary(s.RNG); err != nil {
		return fmt.Errorf("rng state: %w", err)
	}
	w.nextPlayerNum = s.NextPlayerNum
	w.tick.Store(s.Header.Tick + 1)
	w.publish(Frame{
		Tick:     s.Header.Tick,
		Digest:   s.Header.Digest,
		Entities: w.entityStates(),
		Magnets:  w.magnetStates(),
	})
	return nil
}

// PlayerIDs lists players in id order. Only safe before Run, e.g. to evict
// players restored from a snapshot.
func (w *World) PlayerIDs() []string {
	out := make([]string, 0, len(w.players))
	for _, p := range w.sortedPlayers() {
		out = append(out, string(p.ID))
	}
	return out
}
