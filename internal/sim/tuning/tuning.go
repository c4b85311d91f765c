package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"emotionbank.games/internal/sim/emotion"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int     `yaml:"tick_rate_hz"`
	Seed               int64   `yaml:"seed"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`
	CollisionQueueSize int     `yaml:"collision_queue_size"`
	IntentQueueSize    int     `yaml:"intent_queue_size"`
	TargetFloor        float64 `yaml:"target_floor"`

	Physics Physics `yaml:"physics"`
	Box     Box     `yaml:"box"`
	Player  Player  `yaml:"player"`
	Hands   Hands   `yaml:"hands"`
	Magnets Magnets `yaml:"magnets"`

	Targets     []TargetRule `yaml:"targets"`
	Multipliers []Multiplier `yaml:"multipliers"`

	Scene Scene `yaml:"scene"`
}

type Physics struct {
	Gravity        float64 `yaml:"gravity"`
	LinearDamping  float64 `yaml:"linear_damping"`
	AngularDamping float64 `yaml:"angular_damping"`
	Restitution    float64 `yaml:"restitution"`
}

type Box struct {
	Radius             float64 `yaml:"radius"`
	Mass               float64 `yaml:"mass"`
	AbandonThreshold   float64 `yaml:"abandon_threshold"`
	DenialThreshold    float64 `yaml:"denial_threshold"`
	DenialFloorSeconds float64 `yaml:"denial_floor_seconds"`
	AngerThreshold     float64 `yaml:"anger_threshold"`
	AngerBaseRate      float64 `yaml:"anger_base_rate"`
}

type Player struct {
	Radius           float64 `yaml:"radius"`
	Mass             float64 `yaml:"mass"`
	EyeHeight        float64 `yaml:"eye_height"`
	MoveSpeed        float64 `yaml:"move_speed"`
	MaxVelocity      float64 `yaml:"max_velocity"`
	SwayTorque       float64 `yaml:"sway_torque"`
	SwayThreshold    float64 `yaml:"sway_threshold"`
	StumbleImpulse   float64 `yaml:"stumble_impulse"`
	StumbleThreshold float64 `yaml:"stumble_threshold"`
	AngerThreshold   float64 `yaml:"anger_threshold"`
	AngerBaseRate    float64 `yaml:"anger_base_rate"`
}

type Hands struct {
	GrabRange               float64 `yaml:"grab_range"`
	HandDistance            float64 `yaml:"hand_distance"`
	HandHeight              float64 `yaml:"hand_height"`
	SideOffset              float64 `yaml:"side_offset"`
	TossSpeed               float64 `yaml:"toss_speed"`
	TossForward             float64 `yaml:"toss_forward"`
	TossUp                  float64 `yaml:"toss_up"`
	FocusAttractionStrength float64 `yaml:"focus_attraction_strength"`
	FocusMaxDistance        float64 `yaml:"focus_max_distance"`
}

type Magnets struct {
	Radius                float64  `yaml:"radius"`
	Mass                  float64  `yaml:"mass"`
	StripImpulseThreshold float64  `yaml:"strip_impulse_threshold"`
	Accepts               []string `yaml:"accepts"`
}

// TargetRule sets the base target of one emotion on one entity kind. A rule
// with Radius > 0 is a proximity rule: Near when another player is within
// Radius, Far otherwise.
type TargetRule struct {
	Entity  string  `yaml:"entity"`
	Emotion string  `yaml:"emotion"`
	Base    float64 `yaml:"base"`
	Radius  float64 `yaml:"radius,omitempty"`
	Near    float64 `yaml:"near,omitempty"`
	Far     float64 `yaml:"far,omitempty"`
}

type Multiplier struct {
	Entity  string  `yaml:"entity"`
	Emotion string  `yaml:"emotion"`
	Word    string  `yaml:"word"`
	Factor  float64 `yaml:"factor"`
}

type Scene struct {
	SpawnPoints [][3]float64  `yaml:"spawn_points"`
	Boxes       []SceneBox    `yaml:"boxes"`
	Magnets     []SceneMagnet `yaml:"magnets"`
}

type SceneBox struct {
	ID  string     `yaml:"id"`
	Pos [3]float64 `yaml:"pos"`
}

type SceneMagnet struct {
	ID   string     `yaml:"id"`
	Word string     `yaml:"word"`
	Pos  [3]float64 `yaml:"pos"`
}

// Load reads path on top of Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return errors.New("tick_rate_hz must be > 0")
	}
	if t.CollisionQueueSize <= 0 || t.IntentQueueSize <= 0 {
		return errors.New("queue sizes must be > 0")
	}
	if t.TargetFloor < 0 || t.TargetFloor >= 1 {
		return fmt.Errorf("target_floor %v out of [0,1)", t.TargetFloor)
	}
	if t.Box.DenialFloorSeconds <= 0 {
		return errors.New("box.denial_floor_seconds must be > 0")
	}
	for i, r := range t.Targets {
		if _, _, err := parsePair(r.Entity, r.Emotion); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}
	for i, m := range t.Multipliers {
		if _, _, err := parsePair(m.Entity, m.Emotion); err != nil {
			return fmt.Errorf("multipliers[%d]: %w", i, err)
		}
		if _, err := emotion.ParseWord(m.Word); err != nil {
			return fmt.Errorf("multipliers[%d]: %w: %q", i, err, m.Word)
		}
		if m.Factor < 0 {
			return fmt.Errorf("multipliers[%d]: negative factor", i)
		}
	}
	for _, a := range t.Magnets.Accepts {
		if _, err := emotion.ParseEntityKind(a); err != nil {
			return fmt.Errorf("magnets.accepts: %w: %q", err, a)
		}
	}
	seen := map[string]bool{}
	for _, b := range t.Scene.Boxes {
		if strings.TrimSpace(b.ID) == "" || seen[b.ID] {
			return fmt.Errorf("scene.boxes: empty or duplicate id %q", b.ID)
		}
		if IsPlayerID(b.ID) {
			return fmt.Errorf("scene.boxes: id %q is reserved for players", b.ID)
		}
		seen[b.ID] = true
	}
	for _, m := range t.Scene.Magnets {
		if strings.TrimSpace(m.ID) == "" || seen[m.ID] {
			return fmt.Errorf("scene.magnets: empty or duplicate id %q", m.ID)
		}
		if IsPlayerID(m.ID) {
			return fmt.Errorf("scene.magnets: id %q is reserved for players", m.ID)
		}
		seen[m.ID] = true
		if _, err := emotion.ParseWord(m.Word); err != nil {
			return fmt.Errorf("scene.magnets[%s]: %w", m.ID, err)
		}
	}
	return nil
}

// Player bodies are named PlayerIDPrefix followed by a join counter.
const PlayerIDPrefix = "P"

// IsPlayerID reports whether id falls in the player namespace (P1, P2, ...).
func IsPlayerID(id string) bool {
	n, ok := strings.CutPrefix(id, PlayerIDPrefix)
	if !ok || n == "" {
		return false
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parsePair(entity, kind string) (emotion.EntityKind, emotion.Kind, error) {
	e, err := emotion.ParseEntityKind(entity)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", err, entity)
	}
	k, err := emotion.ParseKind(kind)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", err, kind)
	}
	return e, k, nil
}
