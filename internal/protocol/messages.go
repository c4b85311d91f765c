package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue    int  `json:"max_queue,omitempty"`
	AckRequired bool `json:"ack_required,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	PlayerID        string         `json:"player_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz int      `json:"tick_rate_hz"`
	Seed       int64    `json:"seed"`
	Emotions   []string `json:"emotions"`
	Words      []string `json:"words"`
}

type CatalogDigests struct {
	EmotionsDigest string `json:"emotions_digest"`
	TuningDigest   string `json:"tuning_digest,omitempty"`
}

// ACK (server -> client), sent per intent when the client asked for acks.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          uint64 `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// STATE (server -> client), sent every tick to each connected player. Every
// message carries full state, so a dropped one is never needed later.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	PlayerID        string         `json:"player_id"`
	LastSeq         uint64         `json:"last_seq"`
	Hands           []HandState    `json:"hands"`
	Focus           *[3]float64    `json:"focus,omitempty"`
	Entities        []EntityState  `json:"entities"`
	Magnets         []MagnetState  `json:"magnets"`
	Results         []IntentResult `json:"results,omitempty"`
}

type HandState struct {
	Side    string `json:"side"`
	Pressed bool   `json:"pressed"`
	Locked  bool   `json:"locked"`
	Held    string `json:"held,omitempty"`
}

// EntityState is one emotional entity (box or player) as replicated.
type EntityState struct {
	ID       string             `json:"id"`
	Kind     string             `json:"kind"`
	Pos      [3]float64         `json:"pos"`
	Rot      [4]float64         `json:"rot"`
	Visible  bool               `json:"visible"`
	Version  uint64             `json:"version"`
	Emotions map[string]float64 `json:"emotions"`
	Words    []string           `json:"words,omitempty"`
}

type MagnetState struct {
	ID     string     `json:"id"`
	Word   string     `json:"word"`
	State  string     `json:"state"`
	Host   string     `json:"host,omitempty"`
	Holder string     `json:"holder,omitempty"`
	Pos    [3]float64 `json:"pos"`
}

// IntentResult reports how one intent resolved in the tick it was applied.
type IntentResult struct {
	Seq    uint64 `json:"seq"`
	Op     string `json:"op"`
	Result string `json:"result"`
	Code   string `json:"code,omitempty"`
	Magnet string `json:"magnet,omitempty"`
}
