package world

import (
	"encoding/json"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/protocol"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one FRAME per tick on TickOut. Slow observers lose older frames, never the
// latest one.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte

	Entities    []string
	Transitions bool
}

// ObserverSubscribeRequest updates an existing observer session subscription settings.
type ObserverSubscribeRequest struct {
	SessionID string

	Entities    []string
	Transitions bool
}

type observerClient struct {
	id      string
	tickOut chan []byte

	filter      map[string]bool
	transitions bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	c := &observerClient{id: req.SessionID, tickOut: req.TickOut}
	c.configure(req.Entities, req.Transitions)
	w.observers[req.SessionID] = c
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if c := w.observers[req.SessionID]; c != nil {
		c.configure(req.Entities, req.Transitions)
	}
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (c *observerClient) configure(entities []string, transitions bool) {
	c.filter = nil
	if len(entities) > 0 {
		c.filter = make(map[string]bool, len(entities))
		for _, id := range entities {
			c.filter[id] = true
		}
	}
	c.transitions = transitions
}

func (w *World) stepObservers(f *Frame) {
	if len(w.observers) == 0 {
		return
	}
	var full []byte
	for _, c := range w.observers {
		if c.filter == nil && !c.transitions {
			if full == nil {
				b, err := json.Marshal(frameMsg(f, nil, false))
				if err != nil {
					return
				}
				full = b
			}
			sendLatest(c.tickOut, full)
			continue
		}
		b, err := json.Marshal(frameMsg(f, c.filter, c.transitions))
		if err != nil {
			continue
		}
		sendLatest(c.tickOut, b)
	}
}

func frameMsg(f *Frame, filter map[string]bool, transitions bool) observerproto.FrameMsg {
	msg := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            f.Tick,
		Digest:          f.Digest,
		Entities:        f.Entities,
		Magnets:         f.Magnets,
		Joins:           f.Joins,
		Leaves:          f.Leaves,
	}
	if filter != nil {
		msg.Entities = make([]protocol.EntityState, 0, len(filter))
		for _, e := range f.Entities {
			if filter[e.ID] {
				msg.Entities = append(msg.Entities, e)
			}
		}
	}
	if !transitions {
		return msg
	}
	for _, tr := range f.Transitions {
		msg.Transitions = append(msg.Transitions, observerproto.TransitionInfo{
			Op:     tr.Op.String(),
			Magnet: string(tr.Magnet),
			Host:   string(tr.Host),
			Result: tr.Result.String(),
		})
	}
	for _, fi := range f.Fired {
		msg.Fired = append(msg.Fired, observerproto.FiredInfo{
			Body:   string(fi.Body),
			Kind:   fi.Kind.String(),
			Action: fi.Action,
		})
	}
	return msg
}
