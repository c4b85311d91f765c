package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emotionbank.games/internal/persistence/indexdb"
	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/sim/catalogs"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/world"
)

var quiet = log.New(io.Discard, "", 0)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.TickRateHz = 100
	w, err := world.New(cfg, catalogs.Defaults(), quiet)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func do(t *testing.T, h http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicAndAdmin(t *testing.T) {
	w := newWorld(t)
	w.StepOnce(nil, nil, nil)
	h := newRouter(routerDeps{world: w, logger: quiet, enableAdmin: true})

	if rec := do(t, h, "GET", "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	rec := do(t, h, "GET", "/metrics", "")
	if !strings.Contains(rec.Body.String(), `emotionbank_world_entities{kind="box"} 1`) {
		t.Fatalf("metrics:\n%s", rec.Body.String())
	}

	if rec := do(t, h, "GET", "/admin/v1/frame", "192.0.2.1:1234"); rec.Code != http.StatusForbidden {
		t.Fatalf("remote admin: %d", rec.Code)
	}
	rec = do(t, h, "GET", "/admin/v1/frame", "127.0.0.1:1234")
	var f world.Frame
	if err := json.NewDecoder(rec.Body).Decode(&f); err != nil || f.Digest != w.Frame().Digest {
		t.Fatalf("frame: %v %+v", err, f)
	}

	rec = do(t, h, "GET", "/admin/v1/entities/box", "127.0.0.1:1234")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"box"`) {
		t.Fatalf("entity: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, "GET", "/admin/v1/entities/nope", "127.0.0.1:1234"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown entity: %d", rec.Code)
	}
	if rec := do(t, h, "GET", "/admin/v1/snapshot", "127.0.0.1:1234"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: %d", rec.Code)
	}
	// No index configured.
	if rec := do(t, h, "GET", "/admin/v1/audits", "127.0.0.1:1234"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("audits without index: %d", rec.Code)
	}
}

func TestRouterAdminDisabled(t *testing.T) {
	h := newRouter(routerDeps{world: newWorld(t), logger: quiet})
	if rec := do(t, h, "GET", "/admin/v1/frame", "127.0.0.1:1234"); rec.Code != http.StatusNotFound {
		t.Fatalf("admin disabled: %d", rec.Code)
	}
}

func TestAdminSnapshotWritesFileAndIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	w := newWorld(t)
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	done := make(chan error, 1)
	go func() { done <- writeSnapshots(ctx, dir, snapCh, idx, quiet) }()

	h := newRouter(routerDeps{world: w, index: idx, logger: quiet, enableAdmin: true})
	rec := do(t, h, "POST", "/admin/v1/snapshot", "127.0.0.1:1234")
	var resp struct {
		OK   bool   `json:"ok"`
		Tick uint64 `json:"tick"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || !resp.OK {
		t.Fatalf("snapshot: %d %v %+v", rec.Code, err, resp)
	}

	path := snapshotPath(dir, resp.Tick)
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot file %s never written", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := latestSnapshot(dir); got != path {
		t.Fatalf("latest=%q want %q", got, path)
	}
	cancel()
	<-done
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	idx, err = indexdb.OpenSQLite(filepath.Join(dir, "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	snaps, err := idx.Snapshots(context.Background(), 5)
	if err != nil || len(snaps) != 1 || snaps[0].Tick != resp.Tick {
		t.Fatalf("indexed snapshots: %v %+v", err, snaps)
	}
}

func TestLatestSnapshotPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"9.snap.zst", "100.snap.zst", "20.snap.zst", "x.snap.zst", "200.tmp"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "100.snap.zst" {
		t.Fatalf("latest=%q", got)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir: %q", got)
	}
}

func TestBuildWorldResumesWithSnapshotTuning(t *testing.T) {
	dir := t.TempDir()
	cfg := tuning.Defaults()
	cfg.Seed = 42
	src, err := world.New(cfg, catalogs.Defaults(), quiet)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	src.StepOnce([]world.JoinRequest{{Name: "ana"}}, nil, nil)
	src.StepOnce(nil, nil, nil)
	path := snapshotPath(dir, 1)
	if err := snapshot.WriteSnapshot(path, src.ExportSnapshot(1)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The tuning path does not exist; the snapshot carries its own.
	w, restored, err := buildWorld(filepath.Join(dir, "missing.yaml"), path, catalogs.Defaults(), quiet)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if w.Tuning().Seed != 42 || w.CurrentTick() != 2 {
		t.Fatalf("seed=%d tick=%d", w.Tuning().Seed, w.CurrentTick())
	}
	if len(restored) != 1 || restored[0] != "P1" {
		t.Fatalf("restored=%v", restored)
	}

	if _, _, err := buildWorld(filepath.Join(dir, "missing.yaml"), "", catalogs.Defaults(), quiet); err == nil {
		t.Fatalf("expected error for missing tuning on fresh start")
	}
}
