package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"emotionbank.games/internal/persistence/snapshot"
	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/catalogs"
	"emotionbank.games/internal/sim/effects"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/magnet"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/tuning"
	"emotionbank.games/internal/sim/vec"
)

type JoinRequest struct {
	Name      string
	SessionID string
	Out       chan []byte
	Resp      chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type IntentEnvelope struct {
	PlayerID string
	Intent   protocol.IntentMsg
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type RecordedIntent struct {
	PlayerID string             `json:"player_id"`
	Intent   protocol.IntentMsg `json:"intent"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Intents []RecordedIntent `json:"intents,omitempty"`
	Digest  string           `json:"digest"`
}

// AuditEntry records one applied attachment transition.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // ATTACH, STRIP, DETACH
	Magnet string `json:"magnet"`
	Host   string `json:"host,omitempty"`
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine, except
// Frame, Metrics and CurrentTick which are safe from any goroutine.
type World struct {
	cfg    tuning.Tuning
	table  *catalogs.Table
	log    *log.Logger
	digest string // tuning digest

	tick atomic.Uint64

	space    *physics.Space
	registry *magnet.Registry
	contacts *magnet.Queue
	scene    *Scene

	boxPolicy    *effects.Policy
	playerPolicy *effects.Policy

	pcg *rand.PCG
	rng *rand.Rand

	boxes   map[physics.BodyID]*Box
	players map[physics.BodyID]*Player
	clients map[physics.BodyID]chan []byte

	nextPlayerNum uint64

	inbox chan IntentEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	done     chan struct{}
	doneOnce sync.Once

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	observers     map[string]*observerClient

	admin chan snapshotReq

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	// Per-tick scratch, reset at the start of every step.
	transitions []magnet.Transition
	fired       []effects.Fired
	results     map[physics.BodyID][]protocol.IntentResult

	frame   atomic.Pointer[Frame]
	metrics atomic.Value
}

func New(cfg tuning.Tuning, table *catalogs.Table, logger *log.Logger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("nil emotion table")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags)
	}
	boxRules, playerRules, err := effects.Tables(cfg)
	if err != nil {
		return nil, err
	}
	// YAML keeps nil and empty lists equal, so the digest survives a snapshot round trip.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)

	w := &World{
		cfg:           cfg,
		table:         table,
		log:           logger,
		digest:        hex.EncodeToString(sum[:]),
		contacts:      magnet.NewQueue(cfg.CollisionQueueSize),
		boxPolicy:     effects.NewBox(boxRules),
		playerPolicy:  effects.NewPlayer(playerRules),
		boxes:         map[physics.BodyID]*Box{},
		players:       map[physics.BodyID]*Player{},
		clients:       map[physics.BodyID]chan []byte{},
		inbox:         make(chan IntentEnvelope, cfg.IntentQueueSize),
		join:          make(chan JoinRequest, 64),
		leave:         make(chan string, 64),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		observers:     map[string]*observerClient{},
		admin:         make(chan snapshotReq, 8),
		results:       map[physics.BodyID][]protocol.IntentResult{},
	}
	w.boxPolicy.OnFire = w.onFire
	w.playerPolicy.OnFire = w.onFire
	w.seedRNG(cfg.Seed)
	w.resetPhysics()

	for _, b := range cfg.Scene.Boxes {
		if err := w.addBox(physics.BodyID(b.ID), vec.Vec3{X: b.Pos[0], Y: b.Pos[1], Z: b.Pos[2]}); err != nil {
			return nil, fmt.Errorf("scene box %s: %w", b.ID, err)
		}
	}
	accepts := acceptLayers(cfg.Magnets.Accepts)
	for _, m := range cfg.Scene.Magnets {
		word, err := emotion.ParseWord(m.Word)
		if err != nil {
			return nil, fmt.Errorf("scene magnet %s: %w", m.ID, err)
		}
		id := physics.BodyID(m.ID)
		err = w.space.Add(physics.BodyDef{
			ID:     id,
			Layer:  physics.LayerMagnet,
			Radius: cfg.Magnets.Radius,
			Mass:   cfg.Magnets.Mass,
			Pose:   vec.At(vec.Vec3{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}),
		})
		if err == nil {
			err = w.registry.Add(magnet.Magnet{ID: id, Word: word, Accepts: accepts, StripImpulse: cfg.Magnets.StripImpulseThreshold})
		}
		if err != nil {
			return nil, fmt.Errorf("scene magnet %s: %w", m.ID, err)
		}
	}
	w.publish(Frame{Entities: w.entityStates(), Magnets: w.magnetStates()})
	return w, nil
}

// seedRNG derives the effect RNG from the configured seed.
func (w *World) seedRNG(seed int64) {
	w.pcg = rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	w.rng = rand.New(w.pcg)
}

func (w *World) resetPhysics() {
	w.space = physics.NewSpace(physics.SpaceConfig{
		Gravity:        vec.Vec3{Y: w.cfg.Physics.Gravity},
		LinearDamping:  w.cfg.Physics.LinearDamping,
		AngularDamping: w.cfg.Physics.AngularDamping,
		Restitution:    w.cfg.Physics.Restitution,
	})
	w.registry = magnet.NewRegistry(w.space)
	w.scene = NewScene(w.space)
}

func acceptLayers(names []string) physics.Layer {
	var l physics.Layer
	for _, n := range names {
		switch k, _ := emotion.ParseEntityKind(n); k {
		case emotion.Box:
			l |= physics.LayerBox
		case emotion.Player:
			l |= physics.LayerPlayer
		}
	}
	return l
}

func (w *World) onFire(f effects.Fired) { w.fired = append(w.fired, f) }

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- IntentEnvelope                       { return w.inbox }
func (w *World) Join() chan<- JoinRequest                           { return w.join }
func (w *World) Leave() chan<- string                               { return w.leave }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Tuning and Table are immutable after New and safe to read from any goroutine.
func (w *World) Tuning() tuning.Tuning  { return w.cfg }
func (w *World) Table() *catalogs.Table { return w.table }
func (w *World) TuningDigest() string   { return w.digest }
func (w *World) TickRateHz() int        { return w.cfg.TickRateHz }
func (w *World) dt() float64            { return 1 / float64(w.cfg.TickRateHz) }
