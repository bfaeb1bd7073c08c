package loop

import (
	"github.com/gumshoe-dev/gumshoe/internal/reasoner"
	"github.com/gumshoe-dev/gumshoe/internal/session"
)

// Hooks are optional callbacks fired at fixed points of each step so a
// UI or telemetry layer can follow the investigation live. All fields
// may be nil; hooks run synchronously on the loop goroutine and must
// not block.
type Hooks struct {
	// OnStep fires when a step begins or changes activity.
	OnStep func(step int, activity string)

	// OnProbeDone fires after a probe call completes.
	OnProbeDone func(step int, probeName string, success bool)

	// OnFinding fires with each newly digested finding.
	OnFinding func(finding string)

	// OnHypotheses fires with the current hypothesis set.
	OnHypotheses func(hypotheses []session.Hypothesis)

	// OnStopDecision fires with each stop verdict.
	OnStopDecision func(decision reasoner.StopDecision)
}

func (h Hooks) fireStep(step int, activity string) {
	if h.OnStep != nil {
		h.OnStep(step, activity)
	}
}

func (h Hooks) fireProbeDone(step int, probeName string, success bool) {
	if h.OnProbeDone != nil {
		h.OnProbeDone(step, probeName, success)
	}
}

func (h Hooks) fireFinding(finding string) {
	if h.OnFinding != nil {
		h.OnFinding(finding)
	}
}

func (h Hooks) fireHypotheses(hypotheses []session.Hypothesis) {
	if h.OnHypotheses != nil {
		h.OnHypotheses(hypotheses)
	}
}

func (h Hooks) fireStopDecision(decision reasoner.StopDecision) {
	if h.OnStopDecision != nil {
		h.OnStopDecision(decision)
	}
}
