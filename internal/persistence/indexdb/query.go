package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"emotionbank.games/internal/sim/world"
)

type AuditQuery struct {
	Magnet   string
	Host     string
	FromTick uint64
	Limit    int
}

// Audits returns indexed transitions in tick order. Writes still queued are
// not visible until the writer commits.
func (s *SQLiteIndex) Audits(ctx context.Context, q AuditQuery) ([]world.AuditEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("index disabled")
	}
	where := []string{"tick >= ?"}
	args := []any{int64(q.FromTick)}
	if q.Magnet != "" {
		where = append(where, "magnet = ?")
		args = append(args, q.Magnet)
	}
	if q.Host != "" {
		where = append(where, "host = ?")
		args = append(args, q.Host)
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM audits WHERE `+strings.Join(where, " AND ")+` ORDER BY tick, seq LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type SnapshotInfo struct {
	Tick    uint64 `json:"tick"`
	Path    string `json:"path"`
	Digest  string `json:"digest,omitempty"`
	Players int    `json:"players"`
	Boxes   int    `json:"boxes"`
	Magnets int    `json:"magnets"`
}

// Snapshots lists recorded snapshots, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if s == nil {
		return nil, fmt.Errorf("index disabled")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, path, COALESCE(digest,''), players, boxes, magnets FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var si SnapshotInfo
		var tick int64
		if err := rows.Scan(&tick, &si.Path, &si.Digest, &si.Players, &si.Boxes, &si.Magnets); err != nil {
			return nil, err
		}
		si.Tick = uint64(tick)
		out = append(out, si)
	}
	return out, rows.Err()
}

// CatalogDigest returns the stored digest for a catalog name.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("index disabled")
	}
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	return d, err
}
