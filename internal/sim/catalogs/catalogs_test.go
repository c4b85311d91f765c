package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emotionbank.games/internal/sim/emotion"
)

func TestLoadShippedConfig(t *testing.T) {
	tbl, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(tbl.Kinds()); got != int(emotion.NumKinds) {
		t.Fatalf("kinds=%d want %d", got, emotion.NumKinds)
	}
	if tbl.Digest == "" {
		t.Fatalf("missing digest")
	}
	boxKinds := tbl.For(emotion.Box)
	if len(boxKinds) != 3 {
		t.Fatalf("box definitions=%d want 3", len(boxKinds))
	}
	fear, ok := tbl.Get(emotion.Fear)
	if !ok || fear.AppliesTo.Has(emotion.Box) || !fear.AppliesTo.Has(emotion.Player) {
		t.Fatalf("fear def: %+v ok=%v", fear, ok)
	}
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	tbl, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	for _, k := range emotion.Kinds() {
		a, _ := tbl.Get(k)
		b, _ := def.Get(k)
		if a != b {
			t.Fatalf("%s: shipped %+v defaults %+v", k, a, b)
		}
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          `[]`,
		"unknown kind":   `[{"kind":"JOY","applies_to":["BOX"],"convergence_rate":1}]`,
		"zero rate":      `[{"kind":"FEAR","applies_to":["BOX"],"convergence_rate":0}]`,
		"no entity":      `[{"kind":"FEAR","applies_to":[],"convergence_rate":1}]`,
		"unknown field":  `[{"kind":"FEAR","applies_to":["BOX"],"convergence_rate":1,"speed":2}]`,
		"not json":       `{`,
		"bad phase":      `[{"kind":"FEAR","applies_to":["BOX"],"convergence_rate":1,"phase_interval_seconds":0}]`,
		"unknown entity": `[{"kind":"FEAR","applies_to":["TREE"],"convergence_rate":1}]`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseDuplicateKind(t *testing.T) {
	raw := `[
		{"kind":"FEAR","applies_to":["BOX"],"convergence_rate":1},
		{"kind":"FEAR","applies_to":["PLAYER"],"convergence_rate":2}
	]`
	_, err := Parse([]byte(raw))
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("expected ErrDuplicateDefinition, got %v", err)
	}
}

func TestLoadWrapsFileName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "emotions.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(dir)
	if err == nil || !strings.HasPrefix(err.Error(), "emotions.json: ") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestForIsKindOrdered(t *testing.T) {
	defs := Defaults().For(emotion.Box)
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Kind >= defs[i].Kind {
			t.Fatalf("not ordered: %v", defs)
		}
	}
}
