package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/sim/catalogs"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst (optional; replays from tick 0 without it)")
		dataDir    = flag.String("data", "./data", "data dir containing events/")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "tuning yaml used when no snapshot is given (default <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	table, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	w, snapTick, err := buildWorld(*snapPath, *configDir, *tuningPath, table)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	checked, err := replay(w, *dataDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (start tick=%d, now=%d)\n", checked, snapTick, w.CurrentTick())
}

func buildWorld(snapPath, configDir, tuningPath string, table *catalogs.Table) (*world.World, uint64, error) {
	quiet := log.New(io.Discard, "", 0)
	if snapPath == "" {
		if tuningPath == "" {
			tuningPath = filepath.Join(configDir, "tuning.yaml")
		}
		cfg, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, 0, fmt.Errorf("load tuning: %w", err)
		}
		w, err := world.New(cfg, table, quiet)
		return w, 0, err
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, 0, fmt.Errorf("read snapshot: %w", err)
	}
	fmt.Printf("snapshot v%d tick=%d seed=%d players=%d boxes=%d magnets=%d\n",
		snap.Header.Version, snap.Header.Tick, snap.Tuning.Seed, len(snap.Players), len(snap.Boxes), len(snap.Magnets))

	w, err := world.New(snap.Tuning, table, quiet)
	if err != nil {
		return nil, 0, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, 0, fmt.Errorf("import snapshot: %w", err)
	}
	return w, snap.Header.Tick, nil
}
