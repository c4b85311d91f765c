package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"emotionbank.games/internal/protocol"
	"emotionbank.games/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// session is the per-connection state the reader loop owns.
type session struct {
	id       string
	playerID string
	out      chan []byte
	acks     chan []byte
	ack      bool
	lastSeq  uint64
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := s.handshake(ctx, conn)
		if sess == nil {
			return
		}
		s.log.Printf("ws: session %s player %s connected from %s", sess.id, sess.playerID, r.RemoteAddr)

		// Writer goroutine. STATE frames and ACKs share the connection.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-sess.acks:
				case b = <-sess.out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handleMessage(sess, msg)
		}

		s.leave(sess.playerID)
		s.log.Printf("ws: session %s closed", sess.id)
	}
}

// leave hands the player back to the world, which force-releases everything
// it held. It waits for as long as the world loop runs.
func (s *Server) leave(playerID string) {
	select {
	case s.world.Leave() <- playerID:
	case <-s.world.Done():
		s.log.Printf("ws: world stopped before leave of %s", playerID)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "player"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 4
	}
	if maxQ > 64 {
		maxQ = 64
	}
	sess := &session{
		id:   uuid.NewString(),
		out:  make(chan []byte, maxQ),
		acks: make(chan []byte, 64),
		ack:  hello.Capabilities.AckRequired,
	}

	respCh := make(chan world.JoinResponse, 1)
	select {
	case s.world.Join() <- world.JoinRequest{Name: name, SessionID: sess.id, Out: sess.out, Resp: respCh}:
	case <-ctx.Done():
		return nil
	case <-time.After(2 * time.Second):
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return nil
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		return nil
	}
	if resp.Welcome.PlayerID == "" {
		closeWith(conn, websocket.CloseInternalServerErr, "join failed")
		return nil
	}
	sess.playerID = resp.Welcome.PlayerID

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- sess.playerID
		return nil
	}
	return sess
}

// handleMessage routes one client message. Intents are checked for version,
// ordering and shape here; the world applies them at the next tick.
func (s *Server) handleMessage(sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeIntent {
		return
	}
	var in protocol.IntentMsg
	if err := json.Unmarshal(msg, &in); err != nil {
		s.sendAck(sess, 0, protocol.ErrProtoBadRequest, "bad json")
		return
	}
	if in.ProtocolVersion != protocol.Version {
		s.sendAck(sess, in.Seq, protocol.ErrProtoBadRequest, "bad protocol_version")
		return
	}
	if in.Seq != 0 && in.Seq <= sess.lastSeq {
		s.sendAck(sess, in.Seq, protocol.ErrDuplicate, "seq already seen")
		return
	}
	if code, message := in.Validate(); code != "" {
		if in.Seq > sess.lastSeq {
			sess.lastSeq = in.Seq
		}
		s.sendAck(sess, in.Seq, code, message)
		return
	}

	select {
	case s.world.Inbox() <- world.IntentEnvelope{PlayerID: sess.playerID, Intent: in}:
		sess.lastSeq = in.Seq
		s.sendAck(sess, in.Seq, "", "")
	default:
		s.sendAck(sess, in.Seq, protocol.ErrWorldBusy, "inbox full")
	}
}

func (s *Server) sendAck(sess *session, seq uint64, code, message string) {
	if !sess.ack {
		return
	}
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          seq,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
		ServerTick:      s.world.CurrentTick(),
	})
	if err != nil {
		return
	}
	select {
	case sess.acks <- b:
	default:
		// Client is not reading; STATE still reports results.
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
