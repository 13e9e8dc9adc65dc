package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vocira/vocira/internal/classify"
)

// testDoc builds a small but complete scenario document. Tests mutate the
// returned map before marshalling it.
func testDoc() map[string]any {
	return map[string]any{
		"id":         "energy_fr",
		"agent_name": "Julie",
		"company":    "Voltea",
		"theme":      "energy",
		"rail":       []string{"intro", "identity"},
		"fallbacks": map[string]string{
			"silence": "bye_failed",
			"unknown": "intro",
			"deny":    "bye_failed",
		},
		"variables": map[string]string{"offer": "le bilan gratuit"},
		"steps": map[string]any{
			"intro": map[string]any{
				"audio":                map[string]any{"source": "pre_recorded", "path": "intro.wav"},
				"timeout_s":            10,
				"barge_in_enabled":     true,
				"max_autonomous_turns": 2,
				"qualification_weight": 0,
				"intent_mapping":       map[string]string{"affirm": "identity", "*": "bye_failed"},
			},
			"identity": map[string]any{
				"audio":                map[string]any{"source": "pre_recorded", "path": "identity.wav"},
				"qualification_weight": 40,
				"intent_mapping":       map[string]string{"affirm": "bye", "deny": "bye_failed"},
			},
			"bye": map[string]any{
				"audio":    map[string]any{"source": "pre_recorded", "path": "bye.wav"},
				"result":   "completed",
				"is_leads": true,
			},
			"bye_failed": map[string]any{
				"audio": map[string]any{"source": "none"},
			},
		},
	}
}

func writeAudioFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func parseDoc(t *testing.T, doc map[string]any, promptsDir string) (*Scenario, error) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return Parse(data, promptsDir)
}

func mustParse(t *testing.T, doc map[string]any) *Scenario {
	t.Helper()
	dir := t.TempDir()
	writeAudioFiles(t, dir, "intro.wav", "identity.wav", "bye.wav")
	s, err := parseDoc(t, doc, dir)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return s
}

func TestParseValidScenario(t *testing.T) {
	s := mustParse(t, testDoc())

	if s.Entry() != "intro" {
		t.Errorf("entry should be the first rail step, got %s", s.Entry())
	}
	if s.Theme() != "energy" {
		t.Errorf("unexpected theme %s", s.Theme())
	}

	step, ok := s.Step("intro")
	if !ok {
		t.Fatal("intro step missing")
	}
	if !step.BargeIn || step.MaxAutonomousTurns != 2 {
		t.Error("intro step lost its settings")
	}
}

func TestLegacyByeStepsAreTerminal(t *testing.T) {
	s := mustParse(t, testDoc())

	bye, _ := s.Step("bye")
	if !bye.Terminal || bye.Result != ResultCompleted {
		t.Errorf("bye should be implicitly terminal/completed, got terminal=%v result=%q", bye.Terminal, bye.Result)
	}

	byeFailed, _ := s.Step("bye_failed")
	if !byeFailed.Terminal || byeFailed.Result != ResultFailed {
		t.Errorf("bye_failed should be implicitly terminal/failed, got terminal=%v result=%q", byeFailed.Terminal, byeFailed.Result)
	}
}

func TestValidateRejectsUnknownIntent(t *testing.T) {
	doc := testDoc()
	doc["steps"].(map[string]any)["intro"].(map[string]any)["intent_mapping"] = map[string]string{"maybe_later": "bye"}

	_, err := parseDoc(t, doc, "")
	if err == nil || !strings.Contains(err.Error(), "unknown intent") {
		t.Errorf("expected unknown intent error, got %v", err)
	}
}

func TestValidateRejectsDanglingStepRef(t *testing.T) {
	doc := testDoc()
	doc["steps"].(map[string]any)["intro"].(map[string]any)["intent_mapping"] = map[string]string{"affirm": "nowhere"}

	_, err := parseDoc(t, doc, "")
	if err == nil || !strings.Contains(err.Error(), "undefined step") {
		t.Errorf("expected undefined step error, got %v", err)
	}
}

func TestValidateRejectsMissingAudioFile(t *testing.T) {
	dir := t.TempDir()
	writeAudioFiles(t, dir, "intro.wav", "bye.wav") // identity.wav deliberately absent

	_, err := parseDoc(t, testDoc(), dir)
	if err == nil || !strings.Contains(err.Error(), "audio file missing") {
		t.Errorf("expected missing audio error, got %v", err)
	}
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	doc := testDoc()
	doc["steps"].(map[string]any)["intro"].(map[string]any)["timeout_s"] = -1
	doc["steps"].(map[string]any)["identity"].(map[string]any)["max_autonomous_turns"] = -2

	_, err := parseDoc(t, doc, "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "negative timeout") || !strings.Contains(err.Error(), "negative max_autonomous_turns") {
		t.Errorf("validation should aggregate both problems, got %v", err)
	}
}

func TestValidateRejectsTerminalStarvedCycle(t *testing.T) {
	doc := testDoc()
	// Two steps that only route to each other, with fallbacks redirected
	// into the cycle so nothing escapes to a terminal.
	doc["fallbacks"] = map[string]string{"unknown": "ping"}
	doc["rail"] = []string{"ping"}
	doc["steps"] = map[string]any{
		"ping": map[string]any{
			"audio":          map[string]any{"source": "none"},
			"intent_mapping": map[string]string{"*": "pong"},
		},
		"pong": map[string]any{
			"audio":          map[string]any{"source": "none"},
			"intent_mapping": map[string]string{"*": "ping"},
		},
	}

	_, err := parseDoc(t, doc, "")
	if err == nil || !strings.Contains(err.Error(), "cannot reach any terminal") {
		t.Errorf("expected terminal reachability error, got %v", err)
	}
}

func TestValidateRejectsTTSWithoutText(t *testing.T) {
	doc := testDoc()
	doc["steps"].(map[string]any)["bye_failed"].(map[string]any)["audio"] = map[string]any{"source": "tts"}

	_, err := parseDoc(t, doc, "")
	if err == nil || !strings.Contains(err.Error(), "tts audio without text") {
		t.Errorf("expected tts text error, got %v", err)
	}
}

func TestRoutePrecedence(t *testing.T) {
	s := mustParse(t, testDoc())

	cases := []struct {
		step   string
		intent classify.Intent
		want   string
	}{
		{"intro", classify.IntentAffirm, "identity"},       // step mapping
		{"intro", classify.IntentDeny, "bye_failed"},       // step wildcard
		{"identity", classify.IntentDeny, "bye_failed"},    // direct mapping
		{"identity", classify.IntentSilence, "bye_failed"}, // scenario fallback
		{"identity", classify.IntentQuestion, "intro"},     // fallback["unknown"]
	}
	for _, tc := range cases {
		got, err := s.Route(tc.step, tc.intent)
		if err != nil {
			t.Errorf("Route(%s, %s): %v", tc.step, tc.intent, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Route(%s, %s) = %s, want %s", tc.step, tc.intent, got, tc.want)
		}
	}
}

func TestRouteNoRoute(t *testing.T) {
	doc := testDoc()
	doc["fallbacks"] = map[string]string{}
	s := mustParse(t, doc)

	if _, err := s.Route("identity", classify.IntentQuestion); err == nil {
		t.Error("expected ErrNoRoute without fallbacks")
	}
}

func TestSerialiseRoundTripKeepsRouting(t *testing.T) {
	dir := t.TempDir()
	writeAudioFiles(t, dir, "intro.wav", "identity.wav", "bye.wav")

	first, err := parseDoc(t, testDoc(), dir)
	if err != nil {
		t.Fatal(err)
	}

	data, err := first.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	second, err := Parse(data, dir)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if !reflect.DeepEqual(first.RoutingTable(), second.RoutingTable()) {
		t.Error("routing table changed across serialise/load round trip")
	}
}

func TestInterpolate(t *testing.T) {
	vars := map[string]string{"first_name": "Marie", "agent_name": "Julie"}

	got := Interpolate("Bonjour {{first_name}}, je suis {{ agent_name }}.", vars)
	if got != "Bonjour Marie, je suis Julie." {
		t.Errorf("unexpected interpolation: %q", got)
	}

	// Unknown placeholders stay visible instead of vanishing.
	got = Interpolate("Offre: {{offer_name}}", vars)
	if got != "Offre: {{offer_name}}" {
		t.Errorf("unknown placeholder should be untouched, got %q", got)
	}
}

func TestVariablesMergeContactOverScenario(t *testing.T) {
	s := mustParse(t, testDoc())

	vars := s.Variables(map[string]string{"first_name": "Marie", "offer": "autre"})
	if vars["agent_name"] != "Julie" || vars["company"] != "Voltea" {
		t.Error("scenario identity variables missing")
	}
	if vars["offer"] != "autre" {
		t.Error("contact variables should win on collision")
	}
	if vars["first_name"] != "Marie" {
		t.Error("contact variables missing")
	}
}
