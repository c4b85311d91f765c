package world

import (
	"context"
	"fmt"
	"time"

	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
)

func (w *World) Run(ctx context.Context) error {
	defer w.doneOnce.Do(func() { close(w.done) })
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingIntents []IntentEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingSnapshots []snapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingSnapshots = append(pendingSnapshots, req)
		case env := <-w.inbox:
			pendingIntents = append(pendingIntents, env)
		case <-ticker.C:
			w.stepInternal(pendingJoins, pendingLeaves, pendingIntents)
			w.handleSnapshotRequests(pendingSnapshots)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingIntents = pendingIntents[:0]
			pendingSnapshots = pendingSnapshots[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Done is closed once Run has returned. Nothing drains the request channels
// after that.
func (w *World) Done() <-chan struct{} { return w.done }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, intents []IntentEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(joins, leaves, intents)
	return tick, w.Frame().Digest
}

func (w *World) joinPlayer(req JoinRequest) JoinResponse {
	name := req.Name
	if name == "" {
		name = "player"
	}
	w.nextPlayerNum++
	n := w.nextPlayerNum
	id := physics.BodyID(fmt.Sprintf("%s%d", tuning.PlayerIDPrefix, n))
	if _, err := w.addPlayer(id, name, w.spawnPoint(n)); err != nil {
		w.log.Printf("join %q: %v", name, err)
		return JoinResponse{}
	}
	if req.Out != nil {
		w.clients[id] = req.Out
	}
	w.log.Printf("join %s (%s)", id, name)

	kinds := make([]string, 0, emotion.NumKinds)
	for _, k := range w.table.Kinds() {
		kinds = append(kinds, k.String())
	}
	words := make([]string, 0, emotion.NumWords)
	for i := 0; i < emotion.NumWords; i++ {
		words = append(words, emotion.Word(i).String())
	}
	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       req.SessionID,
		PlayerID:        string(id),
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			Seed:       w.cfg.Seed,
			Emotions:   kinds,
			Words:      words,
		},
		Catalogs: protocol.CatalogDigests{
			EmotionsDigest: w.table.Digest,
			TuningDigest:   w.digest,
		},
	}}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
