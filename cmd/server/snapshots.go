package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"emotionbank.games/internal/persistence/indexdb"
	"emotionbank.games/internal/persistence/snapshot"
)

func snapshotPath(dataDir string, tick uint64) string {
	return filepath.Join(dataDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

func latestSnapshot(dataDir string) string {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

// writeSnapshots persists every snapshot the world hands over until ctx ends.
func writeSnapshots(ctx context.Context, dataDir string, ch <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-ch:
			path := snapshotPath(dataDir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			logger.Printf("snapshot tick=%d players=%d magnets=%d", snap.Header.Tick, len(snap.Players), len(snap.Magnets))
			idx.RecordSnapshot(path, snap)
		}
	}
}
