package main

import (
	"errors"
	"fmt"
	"slices"

	elog "emotionbank.games/internal/persistence/log"
	"emotionbank.games/internal/sim/world"
)

var errDone = errors.New("done")

// replay re-steps every logged tick at or after the world's current tick and
// compares digests from verifyFrom on. toTick 0 means to the end of the log.
func replay(w *world.World, dataDir string, verifyFrom, toTick uint64) (uint64, error) {
	startTick := w.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	var checked uint64
	seen := false
	err := elog.ReadTicks(dataDir, func(entry world.TickLogEntry) error {
		if entry.Tick < startTick {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errDone
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		seen = true

		joins := make([]world.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name})
		}
		intents := make([]world.IntentEnvelope, 0, len(entry.Intents))
		for _, ri := range entry.Intents {
			intents = append(intents, world.IntentEnvelope{PlayerID: ri.PlayerID, Intent: ri.Intent})
		}

		tick, gotDigest := w.StepOnce(joins, entry.Leaves, intents)
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if want := recordedJoinIDs(entry); !slices.Equal(w.Frame().Joins, want) {
			return fmt.Errorf("join ids diverged at tick %d: got=%v want=%v", tick, w.Frame().Joins, want)
		}
		if tick >= verifyFrom {
			checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return checked, err
	}
	if !seen {
		return 0, fmt.Errorf("no logged ticks at or after %d", startTick)
	}
	return checked, nil
}

func recordedJoinIDs(e world.TickLogEntry) []string {
	out := make([]string, 0, len(e.Joins))
	for _, j := range e.Joins {
		out = append(out, j.PlayerID)
	}
	return out
}
