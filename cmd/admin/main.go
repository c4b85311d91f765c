package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	elog "emotionbank.games/internal/persistence/log"
	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "frame":
			frameCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

type snapFile struct {
	Tick   uint64 `json:"tick"`
	Path   string `json:"path"`
	Digest string `json:"digest,omitempty"`
	Err    string `json:"error,omitempty"`
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := listSnapshots(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, f := range files {
		printJSON(f)
	}
}

// listSnapshots returns <data>/snapshots/<tick>.snap.zst files in tick order
// with their headers.
func listSnapshots(dataDir string) ([]snapFile, error) {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []snapFile
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		f := snapFile{Tick: tick, Path: filepath.Join(dir, name)}
		if h, err := snapshot.ReadHeader(f.Path); err != nil {
			f.Err = err.Error()
		} else {
			f.Digest = h.Digest
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

type snapSummary struct {
	Tick           uint64            `json:"tick"`
	Digest         string            `json:"digest"`
	TuningDigest   string            `json:"tuning_digest"`
	EmotionsDigest string            `json:"emotions_digest"`
	Seed           int64             `json:"seed"`
	Bodies         int               `json:"bodies"`
	Boxes          int               `json:"boxes"`
	Players        []string          `json:"players"`
	Magnets        map[string]string `json:"magnets"`
}

func summarize(s snapshot.SnapshotV1) snapSummary {
	out := snapSummary{
		Tick:           s.Header.Tick,
		Digest:         s.Header.Digest,
		TuningDigest:   s.TuningDigest,
		EmotionsDigest: s.EmotionsDigest,
		Seed:           s.Tuning.Seed,
		Bodies:         len(s.Bodies),
		Boxes:          len(s.Boxes),
		Players:        make([]string, 0, len(s.Players)),
		Magnets:        make(map[string]string, len(s.Magnets)),
	}
	for _, p := range s.Players {
		out.Players = append(out.Players, string(p.ID))
	}
	for _, m := range s.Magnets {
		switch {
		case m.Host != "":
			out.Magnets[string(m.ID)] = fmt.Sprintf("%s on %s", m.State, m.Host)
		case m.Holder != "":
			out.Magnets[string(m.ID)] = fmt.Sprintf("%s held by %s", m.State, m.Holder)
		default:
			out.Magnets[string(m.ID)] = m.State.String()
		}
	}
	return out
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (default latest under -data)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		files, err := listSnapshots(*dataDir)
		if err != nil || len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot")
			os.Exit(2)
		}
		path = files[len(files)-1].Path
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(snap))
}

type auditFilter struct {
	Magnet    string
	Host      string
	Action    string
	SinceTick uint64
	ToTick    uint64
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if f.Magnet != "" && e.Magnet != f.Magnet {
		return false
	}
	if f.Host != "" && e.Host != f.Host {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if e.Tick < f.SinceTick {
		return false
	}
	return f.ToTick == 0 || e.Tick <= f.ToTick
}

// readAudit scans the hourly audit logs under dataDir/audit in order.
func readAudit(dataDir string, f auditFilter) ([]world.AuditEntry, error) {
	files, err := elog.Files(filepath.Join(dataDir, "audit"), elog.AuditPrefix)
	if err != nil {
		return nil, err
	}
	var out []world.AuditEntry
	for _, path := range files {
		err := elog.ReadLines(path, func(e world.AuditEntry) error {
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	var f auditFilter
	fs.StringVar(&f.Magnet, "magnet", "", "magnet id filter")
	fs.StringVar(&f.Host, "host", "", "host body id filter")
	fs.StringVar(&f.Action, "action", "", "ATTACH, STRIP or DETACH")
	fs.Uint64Var(&f.SinceTick, "since_tick", 0, "first tick (inclusive)")
	fs.Uint64Var(&f.ToTick, "to_tick", 0, "last tick (inclusive, 0=all)")
	_ = fs.Parse(args)
	f.Action = strings.ToUpper(strings.TrimSpace(f.Action))

	recs, err := readAudit(*dataDir, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range recs {
		printJSON(e)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
