package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

// Package session holds the mutable record of one investigation run.
//
// Responsibilities:
//   - Track the step counter, probe history, hypotheses, evidence log,
//     seen signatures, and termination state of a single debug session
//   - Rebuild the full evidence text deterministically from session
//     state each step (not a rolling accumulator)
//   - Render the final Markdown report
//   - Persist finished sessions to SQLite for later review
//
// A session is owned by exactly one control loop; nothing here is safe
// for concurrent use and nothing needs to be.

// Confidence levels used by hypotheses and the final diagnosis.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Hypothesis is one candidate explanation proposed by the Reasoner.
type Hypothesis struct {
	ID         string `json:"id"`
	Statement  string `json:"statement"`
	Confidence string `json:"confidence"`
	Rationale  string `json:"rationale,omitempty"`
}

// Diagnosis is the Reasoner's final conclusion for a session.
type Diagnosis struct {
	RootCause        string   `json:"root_cause"`
	Confidence       string   `json:"confidence"`
	RecommendedFixes []string `json:"recommended_fixes"`
	AdditionalNotes  string   `json:"additional_notes,omitempty"`
}

// ProbeCall records one executed probe within a session.
type ProbeCall struct {
	Step       int                    `json:"step"`
	ProbeName  string                 `json:"probe_name"`
	Args       map[string]interface{} `json:"args"`
	Signature  string                 `json:"signature"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Result     probe.Result           `json:"result"`
	Error      string                 `json:"error,omitempty"`
}

// Duration is the wall-clock time the probe took.
func (c *ProbeCall) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// Succeeded reports whether the call completed without an execution
// error.
func (c *ProbeCall) Succeeded() bool {
	return c.Error == ""
}

// DebugSession is the state of one investigation run.
type DebugSession struct {
	ID             string
	InitialProblem string
	WorkspaceRoot  string
	MaxSteps       int
	CurrentStep    int

	ProbeHistory []ProbeCall
	Hypotheses   []Hypothesis
	EvidenceLog  []string
	Signatures   map[string]bool
	Results      probe.ResultsCache

	ShouldStop bool
	StopReason string
	Diagnosis  *Diagnosis

	StartedAt  time.Time
	FinishedAt time.Time

	clk clock.Clock
}

// New creates a session with a fresh id. maxSteps must be at least 1.
func New(clk clock.Clock, problem, workspaceRoot string, maxSteps int) (*DebugSession, error) {
	if maxSteps < 1 {
		return nil, fmt.Errorf("max steps must be at least 1, got %d", maxSteps)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &DebugSession{
		ID:             uuid.New().String(),
		InitialProblem: problem,
		WorkspaceRoot:  workspaceRoot,
		MaxSteps:       maxSteps,
		Signatures:     map[string]bool{},
		Results:        probe.ResultsCache{},
		StartedAt:      clk.Now().UTC(),
		clk:            clk,
	}, nil
}

// StepsRemaining returns the unused part of the step budget.
func (s *DebugSession) StepsRemaining() int {
	return s.MaxSteps - s.CurrentStep
}

// Terminal reports whether the loop must not start another step.
func (s *DebugSession) Terminal() bool {
	return s.ShouldStop || s.CurrentStep >= s.MaxSteps
}

// SeenSignature records a plan signature, reporting whether it was
// already present.
func (s *DebugSession) SeenSignature(sig string) bool {
	if s.Signatures[sig] {
		return true
	}
	s.Signatures[sig] = true
	return false
}

// AddProbeCall appends an executed probe to the history and caches its
// raw result for dependency resolution.
func (s *DebugSession) AddProbeCall(call ProbeCall) {
	s.ProbeHistory = append(s.ProbeHistory, call)
	s.Results.Put(call.Result)
}

// AddEvidence appends one digested finding, prefixed with its step and
// probe name.
func (s *DebugSession) AddEvidence(step int, probeName, text string) {
	s.EvidenceLog = append(s.EvidenceLog, fmt.Sprintf("[Step %d - %s] %s", step, probeName, text))
}

// AddSkipNote records that a planned probe was skipped as a duplicate.
// The step is consumed but nothing is appended to the probe history.
func (s *DebugSession) AddSkipNote(step int, probeName string) {
	s.EvidenceLog = append(s.EvidenceLog,
		fmt.Sprintf("[Step %d] Repeated request for %s with identical arguments - skipped", step, probeName))
}

// AddNote records a free-form evidence note, used for degraded failures.
func (s *DebugSession) AddNote(step int, text string) {
	s.EvidenceLog = append(s.EvidenceLog, fmt.Sprintf("[Step %d] %s", step, text))
}

// Finish freezes the session with a stop reason and timestamp.
func (s *DebugSession) Finish(reason string) {
	if reason != "" {
		s.StopReason = reason
	}
	s.FinishedAt = s.clk.Now().UTC()
}

// EvidenceText rebuilds the complete evidence block presented to the
// Reasoner. It is recomputed fresh from session state every step, so a
// mid-session failure can never corrupt the accumulated view.
func (s *DebugSession) EvidenceText() string {
	var b strings.Builder

	b.WriteString("--- Debug Session Info ---\n")
	fmt.Fprintf(&b, "Initial problem: %s\n", s.InitialProblem)
	fmt.Fprintf(&b, "Steps used: %d/%d (%d remaining)\n", s.CurrentStep, s.MaxSteps, s.StepsRemaining())
	if remaining := s.StepsRemaining(); remaining <= 2 && remaining > 0 {
		fmt.Fprintf(&b, "NOTE: Only %d step(s) remain. Focus on concluding the investigation.\n", remaining)
	}

	b.WriteString("\n--- Previously Executed Probes ---\n")
	if len(s.ProbeHistory) == 0 {
		b.WriteString("(none)\n")
	}
	for i, call := range s.ProbeHistory {
		outcome := "ok"
		if !call.Succeeded() {
			outcome = "error: " + call.Error
		}
		fmt.Fprintf(&b, "%d. %s(%s) -> %s\n", i+1, call.ProbeName, compactArgs(call.Args), outcome)
	}

	b.WriteString("\n--- Evidence Gathered ---\n")
	if len(s.EvidenceLog) == 0 {
		b.WriteString("(no evidence yet)\n")
	}
	for _, entry := range s.EvidenceLog {
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return b.String()
}

// ProbesSummary renders a one-line-per-probe digest of the history,
// handed to the Reasoner for the final diagnosis.
func (s *DebugSession) ProbesSummary() string {
	if len(s.ProbeHistory) == 0 {
		return "(no probes executed)"
	}
	var b strings.Builder
	for _, call := range s.ProbeHistory {
		outcome := "ok"
		if !call.Succeeded() {
			outcome = "error"
		}
		fmt.Fprintf(&b, "step %d: %s(%s) [%s, %dms]\n",
			call.Step, call.ProbeName, compactArgs(call.Args), outcome, call.Duration().Milliseconds())
	}
	return b.String()
}

// compactArgs renders arguments as canonical JSON, with the empty map
// shown as nothing.
func compactArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	buf, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(buf)
}
