// Package scenario loads, validates and interprets the JSON conversation
// documents that drive a call: step lookup, intent routing, variable
// interpolation and qualification scoring. Scenarios are immutable after
// load; every authoring mistake is rejected here, never at call time.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// SourceKind discriminates where a step's prompt audio comes from.
type SourceKind string

const (
	SourcePreRecorded SourceKind = "pre_recorded"
	SourceTTS         SourceKind = "tts"
	SourceNone        SourceKind = "none"
)

// Audio is the polymorphic prompt source of a step. Pre-recorded steps
// carry a file path; tts steps carry the text their prompt was rendered
// from (rendering happens ahead of the campaign, never mid-call); none
// plays nothing.
type Audio struct {
	Source SourceKind `json:"source"`
	Path   string     `json:"path,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// StepResult is the terminal outcome a step assigns to the call.
type StepResult string

const (
	ResultCompleted StepResult = "completed"
	ResultFailed    StepResult = "failed"
	ResultNoAnswer  StepResult = "no_answer"
)

// Action is a tagged record executed when a terminal step is reached.
// Only the dispatch is interpreted here; executors live elsewhere.
type Action struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Step is one node of the conversation graph: one prompt, one listen, one
// routing decision.
type Step struct {
	Audio               Audio             `json:"audio"`
	TimeoutS            int               `json:"timeout_s,omitempty"`
	BargeIn             bool              `json:"barge_in_enabled,omitempty"`
	MaxAutonomousTurns  int               `json:"max_autonomous_turns,omitempty"`
	Terminal            bool              `json:"is_terminal,omitempty"`
	Result              StepResult        `json:"result,omitempty"`
	LeadsGate           bool              `json:"is_leads,omitempty"`
	QualificationWeight float64           `json:"qualification_weight,omitempty"`
	IntentMapping       map[string]string `json:"intent_mapping,omitempty"`
	Actions             []Action          `json:"actions,omitempty"`
}

// IsDeterminant reports whether the step contributes to the qualification
// score.
func (s *Step) IsDeterminant() bool {
	return s.QualificationWeight > 0
}

// document is the raw JSON shape of a scenario file.
type document struct {
	ID        string            `json:"id"`
	AgentName string            `json:"agent_name"`
	Company   string            `json:"company"`
	VoiceID   string            `json:"voice_id,omitempty"`
	Theme     string            `json:"theme"`
	Rail      []string          `json:"rail"`
	Fallbacks map[string]string `json:"fallbacks,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Steps     map[string]*Step  `json:"steps"`
}

// Scenario is a validated, immutable conversation document.
type Scenario struct {
	doc document
}

// Load reads and validates a scenario file. promptsDir resolves relative
// audio paths; pass "" to skip the audio-file existence check (inspection
// tools only; the dialer always validates audio).
func Load(path, promptsDir string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data, promptsDir)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse unmarshals, normalises and validates a scenario document.
func Parse(data []byte, promptsDir string) (*Scenario, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	s := &Scenario{doc: doc}
	s.normalise()
	if err := s.validate(promptsDir); err != nil {
		return nil, err
	}
	return s, nil
}

// Legacy scenarios end on steps named bye / bye_* without is_terminal.
func isLegacyTerminalName(id string) bool {
	return id == "bye" || strings.HasPrefix(id, "bye_")
}

// normalise fills the defaults validation and routing rely on: legacy bye
// steps become terminal, and terminal steps without an explicit result get
// one from their name.
func (s *Scenario) normalise() {
	for id, step := range s.doc.Steps {
		if isLegacyTerminalName(id) {
			step.Terminal = true
		}
		if step.Terminal && step.Result == "" {
			if strings.HasPrefix(id, "bye_") {
				step.Result = ResultFailed
			} else {
				step.Result = ResultCompleted
			}
		}
	}
}

// ID returns the scenario identifier.
func (s *Scenario) ID() string { return s.doc.ID }

// Theme selects the objection library used by the processing phase.
func (s *Scenario) Theme() string { return s.doc.Theme }

// AgentName is the bot's display name, available as {{agent_name}}.
func (s *Scenario) AgentName() string { return s.doc.AgentName }

// Company is available as {{company}}.
func (s *Scenario) Company() string { return s.doc.Company }

// VoiceID identifies the pre-rendered voice of the prompts.
func (s *Scenario) VoiceID() string { return s.doc.VoiceID }

// Entry returns the first step of the rail.
func (s *Scenario) Entry() string { return s.doc.Rail[0] }

// Rail returns the ordered determinant path, copied.
func (s *Scenario) Rail() []string {
	rail := make([]string, len(s.doc.Rail))
	copy(rail, s.doc.Rail)
	return rail
}

// Step looks a node up by id.
func (s *Scenario) Step(id string) (*Step, bool) {
	step, ok := s.doc.Steps[id]
	return step, ok
}

// StepIDs returns every step id, unordered.
func (s *Scenario) StepIDs() []string {
	ids := make([]string, 0, len(s.doc.Steps))
	for id := range s.doc.Steps {
		ids = append(ids, id)
	}
	return ids
}

// Variables merges the scenario substitution table with extra (typically
// contact fields); extra wins on collision.
func (s *Scenario) Variables(extra map[string]string) map[string]string {
	vars := make(map[string]string, len(s.doc.Variables)+len(extra)+2)
	for k, v := range s.doc.Variables {
		vars[k] = v
	}
	vars["agent_name"] = s.doc.AgentName
	vars["company"] = s.doc.Company
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// Bytes serialises the scenario back to JSON. Loading the output yields an
// equivalent routing graph.
func (s *Scenario) Bytes() ([]byte, error) {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialise scenario: %w", err)
	}
	return data, nil
}

var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Interpolate substitutes {{name}} placeholders from vars. Unknown
// placeholders are left untouched so authoring mistakes stay visible.
func Interpolate(text string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}
