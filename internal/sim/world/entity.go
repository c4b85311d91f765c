package world

import (
	"fmt"

	"emotionbank.games/internal/sim/effects"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/hands"
	"emotionbank.games/internal/sim/physics"
	"emotionbank.games/internal/sim/vec"
)

type Box struct {
	ID      physics.BodyID
	Replica *emotion.Replica
	Effects effects.State
}

type Player struct {
	ID   physics.BodyID
	Name string

	Replica *emotion.Replica
	Effects effects.State
	Hands   *hands.Controller

	Yaw   float64
	Pitch float64
	// Move is the last movement input: x strafe, y forward, length <= 1.
	Move [2]float64

	LastSeq uint64
}

// facing is the yaw-only pose of the player body.
func (w *World) facing(p *Player) vec.Pose {
	pose, _ := w.space.Pose(p.ID)
	return vec.Pose{Pos: pose.Pos, Rot: vec.AxisAngle(vec.Up, p.Yaw)}
}

func (w *World) handsEnv(p *Player) *hands.Env {
	return &hands.Env{
		Query:   w.space,
		Sink:    w.space,
		Magnets: w.registry,
		Body:    w.facing(p),
		View:    vec.FromYawPitch(p.Yaw, p.Pitch),
		DT:      w.dt(),
	}
}

func (w *World) addBox(id physics.BodyID, pos vec.Vec3) error {
	if err := w.space.Add(physics.BodyDef{
		ID:     id,
		Layer:  physics.LayerBox,
		Radius: w.cfg.Box.Radius,
		Mass:   w.cfg.Box.Mass,
		Pose:   vec.At(pos),
	}); err != nil {
		return err
	}
	w.boxes[id] = &Box{ID: id, Replica: emotion.NewAuthority(w.table.For(emotion.Box))}
	w.scene.Track(emotion.Box, id)
	w.registry.AddHost(id)
	return nil
}

func (w *World) spawnPoint(n uint64) vec.Vec3 {
	pts := w.cfg.Scene.SpawnPoints
	if len(pts) == 0 {
		return vec.Vec3{Y: w.cfg.Player.Radius}
	}
	p := pts[(n-1)%uint64(len(pts))]
	return vec.Vec3{X: p[0], Y: p[1], Z: p[2]}
}

func (w *World) addPlayer(id physics.BodyID, name string, pos vec.Vec3) (*Player, error) {
	if _, ok := w.players[id]; ok {
		return nil, fmt.Errorf("duplicate player %s", id)
	}
	if err := w.space.Add(physics.BodyDef{
		ID:     id,
		Layer:  physics.LayerPlayer,
		Radius: w.cfg.Player.Radius,
		Mass:   w.cfg.Player.Mass,
		Pose:   vec.At(pos),
	}); err != nil {
		return nil, err
	}
	p := &Player{
		ID:      id,
		Name:    name,
		Replica: emotion.NewAuthority(w.table.For(emotion.Player)),
		Hands:   hands.New(id, w.cfg.Hands, w.cfg.Player.EyeHeight),
	}
	w.players[id] = p
	w.scene.Track(emotion.Player, id)
	w.registry.AddHost(id)
	return p, nil
}

// removePlayer tears a player down in dependency order: hands first, then
// the attach point, then the body.
func (w *World) removePlayer(p *Player) {
	for _, o := range p.Hands.Destroy(w.handsEnv(p)) {
		w.log.Printf("leave %s: released %s (%s)", p.ID, o.Magnet, o.Result)
	}
	for _, tr := range w.registry.RemoveHost(p.ID) {
		w.noteTransition(tr, string(p.ID), "host removed")
	}
	w.scene.Untrack(p.ID)
	w.space.Remove(p.ID)
	delete(w.players, p.ID)
	delete(w.clients, p.ID)
	delete(w.results, p.ID)
}

// sortedPlayers returns players in id order.
func (w *World) sortedPlayers() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, id := range w.scene.IDs(emotion.Player) {
		if p := w.players[id]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (w *World) sortedBoxes() []*Box {
	out := make([]*Box, 0, len(w.boxes))
	for _, id := range w.scene.IDs(emotion.Box) {
		if b := w.boxes[id]; b != nil {
			out = append(out, b)
		}
	}
	return out
}
