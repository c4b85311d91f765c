package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/sim/world"
)

const maxFilter = 256

type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote disables the loopback-only check.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Bootstrap describes the world an observer is about to subscribe to.
func Bootstrap(w *world.World) observerproto.BootstrapResponse {
	cfg := w.Tuning()
	table := w.Table()
	defs := table.All()
	infos := make([]observerproto.DefinitionInfo, 0, len(defs))
	for _, d := range defs {
		var applies []string
		for _, ek := range []emotion.EntityKind{emotion.Box, emotion.Player} {
			if d.AppliesTo.Has(ek) {
				applies = append(applies, ek.String())
			}
		}
		infos = append(infos, observerproto.DefinitionInfo{
			Kind:               d.Kind.String(),
			AppliesTo:          applies,
			Color:              d.Color,
			ConvergenceRate:    d.ConvergenceRate,
			MaxCameraJitterDeg: d.MaxCameraJitterDeg,
			MaxHandJitter:      d.MaxHandJitter,
			MaxBodyTiltDeg:     d.MaxBodyTiltDeg,
		})
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Tick:            w.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickRateHz:     cfg.TickRateHz,
			Seed:           cfg.Seed,
			EmotionsDigest: table.Digest,
		},
		Definitions: infos,
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(Bootstrap(s.world))
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := "O" + strconv.FormatUint(s.nextID.Add(1), 10)
		tickOut := make(chan []byte, 1)

		joinReq := world.ObserverJoinRequest{
			SessionID:   sid,
			TickOut:     tickOut,
			Entities:    sub.Entities,
			Transitions: sub.Transitions,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.log.Printf("observer: %s subscribed from %s", sid, r.RemoteAddr)
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-tickOut:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := decodeSubscribe(msg)
			if !ok {
				continue
			}
			req := world.ObserverSubscribeRequest{
				SessionID:   sid,
				Entities:    sub.Entities,
				Transitions: sub.Transitions,
			}
			select {
			case s.world.ObserverSubscribe() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if len(sub.Entities) > maxFilter {
		sub.Entities = sub.Entities[:maxFilter]
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
