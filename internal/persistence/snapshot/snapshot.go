package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"emotionbank.games/internal/sim/effects"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest,omitempty"`
}

// SnapshotV1 is everything needed to resume a world at Header.Tick+1 and
// produce the same digests as the recorded run.
type SnapshotV1 struct {
	Header Header `json:"header"`

	// Effective configuration, so a resume does not depend on files on disk.
	Tuning         tuning.Tuning `json:"tuning"`
	TuningDigest   string        `json:"tuning_digest"`
	EmotionsDigest string        `json:"emotions_digest"`

	RNG           []byte `json:"rng"`
	NextPlayerNum uint64 `json:"next_player_num"`

	Bodies   []physics.BodyState `json:"bodies"`
	Touching []physics.Pair      `json:"touching,omitempty"`
	Ignored  []physics.Pair      `json:"ignored,omitempty"`
	Contacts []physics.Collision `json:"contacts,omitempty"`

	Magnets   []magnet.Record  `json:"magnets"`
	Hosts     []physics.BodyID `json:"hosts"`
	MagnetSeq uint64           `json:"magnet_seq"`

	Boxes   []BoxV1    `json:"boxes"`
	Players []PlayerV1 `json:"players,omitempty"`
}

type BoxV1 struct {
	ID       physics.BodyID   `json:"id"`
	Emotions emotion.Snapshot `json:"emotions"`
	Effects  effects.State    `json:"effects"`
}

type PlayerV1 struct {
	ID      physics.BodyID `json:"id"`
	Name    string         `json:"name"`
	Yaw     float64        `json:"yaw"`
	Pitch   float64        `json:"pitch"`
	Move    [2]float64     `json:"move"`
	LastSeq uint64         `json:"last_seq"`

	Emotions emotion.Snapshot `json:"emotions"`
	Effects  effects.State    `json:"effects"`
	Hands    hands.State      `json:"hands"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools that only need the tick; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
