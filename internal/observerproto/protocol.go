package observerproto

import "emotionbank.games/internal/protocol"

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.2"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional entity id filter; empty means everything.
	Entities []string `json:"entities,omitempty"`
	// Include attachment transitions and fired effects.
	Transitions bool `json:"transitions,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	WorldParams     WorldParams      `json:"world_params"`
	Definitions     []DefinitionInfo `json:"definitions"`
}

type WorldParams struct {
	TickRateHz     int    `json:"tick_rate_hz"`
	Seed           int64  `json:"seed"`
	EmotionsDigest string `json:"emotions_digest"`
}

// DefinitionInfo is the presentation slice of an emotion definition an
// observer needs to render intensities.
type DefinitionInfo struct {
	Kind               string   `json:"kind"`
	AppliesTo          []string `json:"applies_to"`
	Color              string   `json:"color,omitempty"`
	ConvergenceRate    float64  `json:"convergence_rate"`
	MaxCameraJitterDeg float64  `json:"max_camera_jitter_deg,omitempty"`
	MaxHandJitter      float64  `json:"max_hand_jitter,omitempty"`
	MaxBodyTiltDeg     float64  `json:"max_body_tilt_deg,omitempty"`
}

// Server -> Client. Sent every tick. A frame carries full state; observers
// apply entity emotions only when Version moved forward.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Digest          string `json:"digest"`

	Entities []protocol.EntityState `json:"entities"`
	Magnets  []protocol.MagnetState `json:"magnets"`

	Joins       []string         `json:"joins,omitempty"`
	Leaves      []string         `json:"leaves,omitempty"`
	Transitions []TransitionInfo `json:"transitions,omitempty"`
	Fired       []FiredInfo      `json:"fired,omitempty"`
}

type TransitionInfo struct {
	Op     string `json:"op"`
	Magnet string `json:"magnet"`
	Host   string `json:"host,omitempty"`
	Result string `json:"result"`
}

type FiredInfo struct {
	Body   string `json:"body"`
	Kind   string `json:"kind"`
	Action string `json:"action"`
}
