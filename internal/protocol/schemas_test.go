package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip validates the JSON form of a Go value, so the structs and the
// schemas cannot drift apart.
func roundTrip(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate %s: %v", b, err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile(t, "hello.schema.json"), `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"p1",
	  "capabilities":{"max_queue":8,"ack_required":true}
	}`)

	validate(compile(t, "intent.schema.json"), `{
	  "type":"INTENT",
	  "protocol_version":"1.0",
	  "seq":7,
	  "op":"FOCUS",
	  "point":[1.5,0,2]
	}`)

	validate(compile(t, "subscribe.schema.json"), `{
	  "type":"SUBSCRIBE",
	  "protocol_version":"0.2",
	  "entities":["box"],
	  "transitions":true
	}`)
}

func TestSchemas_RejectBadIntent(t *testing.T) {
	s := compile(t, "intent.schema.json")
	for _, raw := range []string{
		`{"type":"INTENT","protocol_version":"1.0","seq":0,"op":"GRAB","side":"L"}`,
		`{"type":"INTENT","protocol_version":"1.0","seq":1,"op":"GRAB"}`,
		`{"type":"INTENT","protocol_version":"1.0","seq":1,"op":"PRESS","side":"ANY"}`,
		`{"type":"INTENT","protocol_version":"1.0","seq":1,"op":"JUMP"}`,
	} {
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
}

func TestSchemas_GoMessages(t *testing.T) {
	entity := protocol.EntityState{
		ID:       "box",
		Kind:     "BOX",
		Pos:      [3]float64{0, 0.6, 0},
		Rot:      [4]float64{1, 0, 0, 0},
		Visible:  true,
		Version:  3,
		Emotions: map[string]float64{"ABANDONMENT": 0.3, "DENIAL": 0.12},
		Words:    []string{"STAY"},
	}
	mag := protocol.MagnetState{ID: "m_stay", Word: "STAY", State: "ATTACHED", Host: "box", Pos: [3]float64{0.6, 0.6, 0}}

	roundTrip(t, compile(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "8c1d6c0e-5d0b-4a8e-9d7e-2f9f7f1f6a11",
		PlayerID:        "P1",
		WorldParams: protocol.WorldParams{
			TickRateHz: 50,
			Seed:       1337,
			Emotions:   []string{"FEAR", "ANGER"},
			Words:      []string{"STAY"},
		},
		Catalogs: protocol.CatalogDigests{EmotionsDigest: "deadbeef"},
	})

	roundTrip(t, compile(t, "intent.schema.json"), protocol.IntentMsg{
		Type:            protocol.TypeIntent,
		ProtocolVersion: protocol.Version,
		Seq:             1,
		Op:              protocol.OpPress,
		Side:            protocol.SideRight,
		Pressed:         true,
	})

	roundTrip(t, compile(t, "ack.schema.json"), protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          4,
		Code:            protocol.ErrDuplicate,
		ServerTick:      10,
	})

	roundTrip(t, compile(t, "state.schema.json"), protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            10,
		PlayerID:        "P1",
		LastSeq:         4,
		Hands:           []protocol.HandState{{Side: "L", Held: "m_help"}, {Side: "R", Locked: true}},
		Focus:           &[3]float64{1, 0, 1},
		Entities:        []protocol.EntityState{entity},
		Magnets:         []protocol.MagnetState{mag},
		Results:         []protocol.IntentResult{{Seq: 4, Op: "GRAB", Result: "OK", Magnet: "m_help"}},
	})

	roundTrip(t, compile(t, "frame.schema.json"), observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            10,
		Digest:          "0000000000000000000000000000000000000000000000000000000000000000",
		Entities:        []protocol.EntityState{entity},
		Magnets:         []protocol.MagnetState{mag},
		Joins:           []string{"P1"},
		Transitions:     []observerproto.TransitionInfo{{Op: "ATTACH", Magnet: "m_stay", Host: "box", Result: "OK"}},
		Fired:           []observerproto.FiredInfo{{Body: "box", Kind: "ABANDONMENT", Action: "DRIFT"}},
	})
}
