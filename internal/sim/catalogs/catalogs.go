package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"emotionbank.games/internal/sim/emotion"
)

var ErrDuplicateDefinition = errors.New("duplicate emotion definition")

//go:embed emotions.schema.json
var emotionsSchemaJSON string

var emotionsSchema = jsonschema.MustCompileString("emotions.schema.json", emotionsSchemaJSON)

// Table is the immutable per-kind definition table. It is safe for
// concurrent reads.
type Table struct {
	byKind [emotion.NumKinds]*emotion.Definition
	Digest string
}

type definitionJSON struct {
	Kind                   string   `json:"kind"`
	AppliesTo              []string `json:"applies_to"`
	Color                  string   `json:"color,omitempty"`
	ConvergenceRate        float64  `json:"convergence_rate"`
	MaxCameraJitterDeg     float64  `json:"max_camera_jitter_deg,omitempty"`
	MaxHandJitter          float64  `json:"max_hand_jitter,omitempty"`
	MaxBodyTiltDeg         float64  `json:"max_body_tilt_deg,omitempty"`
	StumbleChancePerSecond float64  `json:"stumble_chance_per_second,omitempty"`
	BaseDriftStrength      float64  `json:"base_drift_strength,omitempty"`
	RandomImpulseStrength  float64  `json:"random_impulse_strength,omitempty"`
	PhaseIntervalSeconds   float64  `json:"phase_interval_seconds,omitempty"`
}

// FileName is the definitions file inside a config directory.
const FileName = "emotions.json"

// Load reads <configDir>/emotions.json.
func Load(configDir string) (*Table, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, FileName))
	if err != nil {
		return nil, err
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("emotions.json: %w", err)
	}
	return t, nil
}

// Parse validates raw against the definitions schema and builds a Table.
func Parse(raw []byte) (*Table, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := emotionsSchema.Validate(doc); err != nil {
		return nil, err
	}

	var defs []definitionJSON
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, err
	}
	out := make([]emotion.Definition, 0, len(defs))
	for _, d := range defs {
		def, err := d.toDefinition()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	t, err := New(out)
	if err != nil {
		return nil, err
	}
	t.Digest = sha256Hex(raw)
	return t, nil
}

// New builds a table from already-typed definitions.
func New(defs []emotion.Definition) (*Table, error) {
	t := &Table{}
	for i := range defs {
		d := defs[i]
		if !d.Kind.Valid() {
			return nil, emotion.ErrUnknownKind
		}
		if d.ConvergenceRate <= 0 {
			return nil, fmt.Errorf("%s: convergence_rate must be > 0", d.Kind)
		}
		if t.byKind[d.Kind] != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDefinition, d.Kind)
		}
		t.byKind[d.Kind] = &d
	}
	b, _ := json.Marshal(t.All())
	t.Digest = sha256Hex(b)
	return t, nil
}

func (d definitionJSON) toDefinition() (emotion.Definition, error) {
	k, err := emotion.ParseKind(d.Kind)
	if err != nil {
		return emotion.Definition{}, err
	}
	var set emotion.EntitySet
	for _, a := range d.AppliesTo {
		e, err := emotion.ParseEntityKind(a)
		if err != nil {
			return emotion.Definition{}, err
		}
		set |= emotion.SetOf(e)
	}
	return emotion.Definition{
		Kind:                   k,
		AppliesTo:              set,
		Color:                  d.Color,
		ConvergenceRate:        d.ConvergenceRate,
		MaxCameraJitterDeg:     d.MaxCameraJitterDeg,
		MaxHandJitter:          d.MaxHandJitter,
		MaxBodyTiltDeg:         d.MaxBodyTiltDeg,
		StumbleChancePerSecond: d.StumbleChancePerSecond,
		BaseDriftStrength:      d.BaseDriftStrength,
		RandomImpulseStrength:  d.RandomImpulseStrength,
		PhaseIntervalSeconds:   d.PhaseIntervalSeconds,
	}, nil
}

func (t *Table) Get(k emotion.Kind) (emotion.Definition, bool) {
	if t == nil || !k.Valid() || t.byKind[k] == nil {
		return emotion.Definition{}, false
	}
	return *t.byKind[k], true
}

// For returns the definitions that apply to entity kind e, in kind order.
func (t *Table) For(e emotion.EntityKind) []emotion.Definition {
	var out []emotion.Definition
	for _, d := range t.All() {
		if d.AppliesTo.Has(e) {
			out = append(out, d)
		}
	}
	return out
}

// All returns copies of every definition in kind order.
func (t *Table) All() []emotion.Definition {
	if t == nil {
		return nil
	}
	out := make([]emotion.Definition, 0, emotion.NumKinds)
	for _, d := range t.byKind {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (t *Table) Kinds() []emotion.Kind {
	var out []emotion.Kind
	for _, d := range t.All() {
		out = append(out, d.Kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Defaults mirrors the shipped emotion assets.
func Defaults() *Table {
	t, err := New([]emotion.Definition{
		{
			Kind: emotion.Fear, AppliesTo: emotion.SetOf(emotion.Player), Color: "#7a5cff",
			ConvergenceRate: 1, MaxCameraJitterDeg: 2, MaxHandJitter: 0.05, MaxBodyTiltDeg: 6,
			StumbleChancePerSecond: 0.3, BaseDriftStrength: 3, RandomImpulseStrength: 2, PhaseIntervalSeconds: 3,
		},
		{
			Kind: emotion.Abandonment, AppliesTo: emotion.SetOf(emotion.Box), Color: "#3fa7d6",
			ConvergenceRate: 0.5, BaseDriftStrength: 5, RandomImpulseStrength: 2, PhaseIntervalSeconds: 3,
		},
		{
			Kind: emotion.Denial, AppliesTo: emotion.SetOf(emotion.Box), Color: "#c7c7c7",
			ConvergenceRate: 0.5, BaseDriftStrength: 3, RandomImpulseStrength: 2, PhaseIntervalSeconds: 3,
		},
		{
			Kind: emotion.Anger, AppliesTo: emotion.SetOf(emotion.Box, emotion.Player), Color: "#e63946",
			ConvergenceRate: 1, MaxCameraJitterDeg: 1, MaxHandJitter: 0.03, MaxBodyTiltDeg: 3,
			StumbleChancePerSecond: 0.3, BaseDriftStrength: 3, RandomImpulseStrength: 2, PhaseIntervalSeconds: 3,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
