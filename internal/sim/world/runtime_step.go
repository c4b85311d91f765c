package world

import (
	"encoding/json"
	"time"

	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/effects"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

// stepInternal runs one tick. Phases, in order:
//  1. leaves, joins, intents (arrival order), queued contacts, attached and held magnets follow
//  2. targets from the settled attachment sets
//  3. replica convergence
//  4. effects
//
// then physics integration (new contacts are queued for the next tick) and publishing.
func (w *World) stepInternal(joins []JoinRequest, leaves []string, intents []IntentEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	dt := w.dt()

	w.transitions = w.transitions[:0]
	w.fired = w.fired[:0]
	for id := range w.results {
		delete(w.results, id)
	}
	w.registry.Begin(nowTick)

	// Phase 1: membership changes at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if p := w.players[physics.BodyID(id)]; p != nil {
			w.removePlayer(p)
			w.log.Printf("leave %s", id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinPlayer(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.Welcome.PlayerID != "" {
			recordedJoins = append(recordedJoins, RecordedJoin{PlayerID: resp.Welcome.PlayerID, Name: req.Name})
		}
	}

	recorded := make([]RecordedIntent, 0, len(intents))
	for _, env := range intents {
		p := w.players[physics.BodyID(env.PlayerID)]
		if p == nil {
			continue
		}
		in := env.Intent
		if in.Seq <= p.LastSeq {
			w.results[p.ID] = append(w.results[p.ID], protocol.IntentResult{
				Seq:    in.Seq,
				Op:     in.Op,
				Result: magnet.Duplicate.String(),
				Code:   protocol.ErrDuplicate,
			})
			continue
		}
		p.LastSeq = in.Seq
		recorded = append(recorded, RecordedIntent{PlayerID: env.PlayerID, Intent: in})
		w.results[p.ID] = append(w.results[p.ID], w.applyIntent(p, in))
	}

	for _, c := range w.contacts.Drain() {
		for _, tr := range w.registry.Contact(c, w.space.Pose) {
			w.noteTransition(tr, "contact", "")
		}
	}
	for _, tr := range w.registry.Follow(w.space.Pose) {
		w.noteTransition(tr, "follow", "host gone")
	}
	players := w.sortedPlayers()
	boxes := w.sortedBoxes()
	for _, p := range players {
		p.Hands.Carry(w.handsEnv(p))
	}

	// Phase 2: targets. The tracked snapshot is taken once so every entity sees
	// the same positions.
	tracked := effects.Capture(w.scene)
	boxCtx := make([]effects.Context, len(boxes))
	for i, b := range boxes {
		pose, _ := w.space.Pose(b.ID)
		boxCtx[i] = tracked.Context(pose, emotion.Box, w.registry.Words(b.ID))
		effects.SetTargets(w.boxPolicy, b.Replica, boxCtx[i])
	}
	playerCtx := make([]effects.Context, len(players))
	for i, p := range players {
		playerCtx[i] = tracked.Context(w.facing(p), emotion.Player, w.registry.Words(p.ID))
		effects.SetTargets(w.playerPolicy, p.Replica, playerCtx[i])
	}

	// Phase 3: convergence.
	for _, b := range boxes {
		b.Replica.Tick(dt)
	}
	for _, p := range players {
		p.Replica.Tick(dt)
	}

	// Phase 4: effects.
	for i, b := range boxes {
		effects.Apply(w.boxPolicy, b.Replica, dt, &effects.Env{
			Body:  b.ID,
			Mass:  w.cfg.Box.Mass,
			Ctx:   boxCtx[i],
			Sink:  w.space,
			Rand:  w.rng,
			State: &b.Effects,
		})
	}
	for i, p := range players {
		effects.Apply(w.playerPolicy, p.Replica, dt, &effects.Env{
			Body:  p.ID,
			Mass:  w.cfg.Player.Mass,
			Ctx:   playerCtx[i],
			Sink:  w.space,
			Rand:  w.rng,
			State: &p.Effects,
		})
		w.applyMove(p)
	}

	w.space.Step(dt, func(c physics.Collision) {
		if !w.contacts.Push(c) {
			w.log.Printf("tick %d: collision queue full, dropped %s/%s", nowTick, c.A, c.B)
		}
	})

	digest := w.stateDigest(nowTick)
	frame := Frame{
		Tick:        nowTick,
		Digest:      digest,
		Entities:    w.entityStates(),
		Magnets:     w.magnetStates(),
		Joins:       joinIDs(recordedJoins),
		Leaves:      recordedLeaves,
		Transitions: append([]magnet.Transition(nil), w.transitions...),
		Fired:       append([]effects.Fired(nil), w.fired...),
	}
	w.publish(frame)
	w.sendStates(&frame)
	w.stepObservers(&frame)

	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Joins: recordedJoins, Leaves: recordedLeaves, Intents: recorded, Digest: digest})
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			select {
			case w.snapshotSink <- w.ExportSnapshot(nowTick):
			default:
				// Drop snapshot if sink is backed up.
				w.log.Printf("tick %d: snapshot sink busy, skipped", nowTick)
			}
		}
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.metrics.Store(WorldMetrics{
		Tick:      nextTick,
		Players:   len(w.players),
		Boxes:     len(w.boxes),
		Magnets:   len(w.registry.Magnets()),
		Observers: len(w.observers),
		QueueDepths: QueueDepths{
			Inbox:    len(w.inbox),
			Join:     len(w.join),
			Leave:    len(w.leave),
			Contacts: w.contacts.Len(),
		},
		ContactsDropped: w.contacts.Dropped(),
		StepMS:          stepMS,
	})
}

// applyMove turns the movement input into a velocity change toward the
// desired horizontal velocity, clamped per tick.
func (w *World) applyMove(p *Player) {
	v, ok := w.space.Velocity(p.ID)
	if !ok {
		return
	}
	f := w.facing(p)
	want := f.Right().Scale(p.Move[0]).Add(f.Forward().Scale(p.Move[1])).Horizontal()
	want = want.ClampLen(1).Scale(w.cfg.Player.MoveSpeed)
	change := want.Sub(v.Horizontal())
	if change.LenSq() < 1e-12 {
		return
	}
	w.space.AddImpulse(p.ID, change.ClampLen(w.cfg.Player.MaxVelocity))
}

func (w *World) noteTransition(tr magnet.Transition, actor, reason string) {
	w.transitions = append(w.transitions, tr)
	if !tr.Applied() && tr.Result != magnet.Stale {
		return
	}
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(AuditEntry{
			Tick:   tr.Tick,
			Actor:  actor,
			Action: tr.Op.String(),
			Magnet: string(tr.Magnet),
			Host:   string(tr.Host),
			Result: tr.Result.String(),
			Reason: reason,
		})
	}
}

// sendStates pushes a STATE message to every connected player.
func (w *World) sendStates(f *Frame) {
	for _, p := range w.sortedPlayers() {
		out := w.clients[p.ID]
		if out == nil {
			continue
		}
		msg := protocol.StateMsg{
			Type:            protocol.TypeState,
			ProtocolVersion: protocol.Version,
			Tick:            f.Tick,
			PlayerID:        string(p.ID),
			LastSeq:         p.LastSeq,
			Hands:           handStates(p),
			Entities:        f.Entities,
			Magnets:         f.Magnets,
			Results:         w.results[p.ID],
		}
		if fc := p.Hands.Focus(); fc.Valid {
			msg.Focus = &[3]float64{fc.Point.X, fc.Point.Y, fc.Point.Z}
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(out, b)
	}
}

func joinIDs(js []RecordedJoin) []string {
	if len(js) == 0 {
		return nil
	}
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.PlayerID
	}
	return out
}

func v3(v vec.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
