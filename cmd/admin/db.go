package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data|-db PATH] [-limit N] [-player P] [-magnet M] [-from_tick T] snapshots|ticks|intents|audits|catalogs"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/index/world.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	player := fs.String("player", "", "player_id filter (intents)")
	magnetID := fs.String("magnet", "", "magnet filter (audits)")
	fromTick := fs.Uint64("from_tick", 0, "first tick (ticks, intents, audits)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, queryOpts{
		Limit:    *limit,
		Player:   strings.TrimSpace(*player),
		Magnet:   strings.TrimSpace(*magnetID),
		FromTick: *fromTick,
	}, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type queryOpts struct {
	Limit    int
	Player   string
	Magnet   string
	FromTick uint64
}

type tickRow struct {
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest"`
	Joins   int    `json:"joins"`
	Leaves  int    `json:"leaves"`
	Intents int    `json:"intents"`
}

type intentRow struct {
	Tick     uint64          `json:"tick"`
	PlayerID string          `json:"player_id"`
	Seq      uint64          `json:"seq"`
	Op       string          `json:"op"`
	Intent   json.RawMessage `json:"intent"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

type snapshotRow struct {
	Tick    uint64 `json:"tick"`
	Path    string `json:"path"`
	Digest  string `json:"digest,omitempty"`
	Players int    `json:"players"`
	Boxes   int    `json:"boxes"`
	Magnets int    `json:"magnets"`
}

// runQuery runs one named read-only query and hands each row to emit.
func runQuery(db *sql.DB, q string, o queryOpts, emit func(any)) error {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	from := int64(o.FromTick)

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick, path, COALESCE(digest,''), players, boxes, magnets FROM snapshots ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r snapshotRow
			if err := rows.Scan(&r.Tick, &r.Path, &r.Digest, &r.Players, &r.Boxes, &r.Magnets); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick, digest, joins, leaves, intents FROM ticks WHERE tick >= ? ORDER BY tick LIMIT ?`, from, o.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r tickRow
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Intents); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "intents":
		query := `SELECT tick, player_id, seq, op, intent_json FROM intents WHERE tick >= ?`
		args := []any{from}
		if o.Player != "" {
			query += ` AND player_id = ?`
			args = append(args, o.Player)
		}
		query += ` ORDER BY tick, idx LIMIT ?`
		args = append(args, o.Limit)
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r intentRow
			var raw string
			if err := rows.Scan(&r.Tick, &r.PlayerID, &r.Seq, &r.Op, &raw); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Intent = json.RawMessage(raw)
			emit(r)
		}
		return rows.Err()

	case "audits":
		query := `SELECT raw_json FROM audits WHERE tick >= ?`
		args := []any{from}
		if o.Magnet != "" {
			query += ` AND magnet = ?`
			args = append(args, o.Magnet)
		}
		query += ` ORDER BY tick, seq LIMIT ?`
		args = append(args, o.Limit)
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(json.RawMessage(raw))
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name, digest, updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r catalogRow
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}
