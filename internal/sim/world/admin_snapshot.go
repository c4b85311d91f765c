package world

import (
	"context"
	"errors"
)

var (
	ErrNoSnapshotSink = errors.New("snapshot sink not configured")
	ErrSnapshotBusy   = errors.New("snapshot sink busy")
	ErrNoTickYet      = errors.New("no completed tick")
)

type snapshotReq struct {
	resp chan snapshotResp
}

type snapshotResp struct {
	tick uint64
	err  error
}

// RequestSnapshot asks the world loop to export the last completed tick to
// the snapshot sink and returns that tick. Safe from any goroutine.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case w.admin <- snapshotReq{resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.tick, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// handleSnapshotRequests answers every pending request with one export.
func (w *World) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	var r snapshotResp
	cur := w.tick.Load()
	switch {
	case w.snapshotSink == nil:
		r.err = ErrNoSnapshotSink
	case cur == 0:
		r.err = ErrNoTickYet
	default:
		r.tick = cur - 1
		select {
		case w.snapshotSink <- w.ExportSnapshot(r.tick):
		default:
			r.err = ErrSnapshotBusy
		}
	}
	for _, req := range reqs {
		select {
		case req.resp <- r:
		default:
		}
	}
}
