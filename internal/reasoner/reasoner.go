package reasoner

import (
	"context"

	"github.com/gumshoe-dev/gumshoe/internal/session"
)

// Package reasoner defines the decision-making interface consumed by
// the control loop, plus an OpenAI-compatible implementation.
//
// Responsibilities:
//   - Generate hypotheses from the current evidence
//   - Plan the next probe given the tool catalog
//   - Digest one raw probe result into a short finding
//   - Decide whether to stop investigating
//   - Produce the final diagnosis
//
// The Reasoner is opaque and non-deterministic; the control loop treats
// every call as fallible and degrades failures to evidence notes.

// Hypotheses is the outcome of one hypothesis-generation round.
type Hypotheses struct {
	Hypotheses  []session.Hypothesis `json:"hypotheses"`
	KeyUnknowns []string             `json:"key_unknowns,omitempty"`
}

// ProbePlan is the Reasoner's proposal for the next probe. ProbeArgsText
// is the literal argument text; the orchestration engine parses,
// sanitizes, and resolves it.
type ProbePlan struct {
	ProbeName      string `json:"probe_name"`
	ProbeArgsText  string `json:"probe_args"`
	ExpectedSignal string `json:"expected_signal,omitempty"`
	StopIf         string `json:"stop_if,omitempty"`
}

// StopDecision is the Reasoner's verdict on whether to keep going.
type StopDecision struct {
	ShouldStop      bool   `json:"should_stop"`
	Confidence      string `json:"confidence,omitempty"`
	Reasoning       string `json:"reasoning,omitempty"`
	MissingEvidence string `json:"missing_evidence,omitempty"`
}

// Reasoner is the five-function decision interface driven by the
// control loop.
type Reasoner interface {
	// GenerateHypotheses proposes ranked explanations for the evidence.
	GenerateHypotheses(ctx context.Context, evidence string) (Hypotheses, error)

	// PlanProbe picks the next probe from the catalog text.
	PlanProbe(ctx context.Context, evidence, hypothesesText, toolsSpec string) (ProbePlan, error)

	// DigestEvidence compresses one raw probe result into a short
	// finding, given the digest accumulated so far.
	DigestEvidence(ctx context.Context, rawResultText, priorDigestText string) (string, error)

	// DecideStop decides whether enough evidence has been gathered.
	DecideStop(ctx context.Context, evidence, hypothesesText string, stepsUsed, stepsRemaining int) (StopDecision, error)

	// Diagnose produces the final root-cause conclusion. It is called
	// exactly once per session, after the loop exits.
	Diagnose(ctx context.Context, initialProblem, evidence, probesSummary string) (session.Diagnosis, error)
}
