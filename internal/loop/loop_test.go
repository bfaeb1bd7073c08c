package loop

import (
	"context"
	"fmt"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
	"github.com/gumshoe-dev/gumshoe/internal/reasoner"
	"github.com/gumshoe-dev/gumshoe/internal/session"
)

// scriptedReasoner replays canned plans and stop decisions, recording
// how many times each function was called.
type scriptedReasoner struct {
	plans     []reasoner.ProbePlan
	stopAfter int // stop on this step; 0 means never

	hypothesesCalls int
	planCalls       int
	digestCalls     int
	stopCalls       int
	diagnoseCalls   int

	planErr     error
	diagnoseErr error
}

func (r *scriptedReasoner) GenerateHypotheses(ctx context.Context, evidence string) (reasoner.Hypotheses, error) {
	r.hypothesesCalls++
	return reasoner.Hypotheses{Hypotheses: []session.Hypothesis{
		{ID: "H1", Statement: "the app container is crash looping", Confidence: session.ConfidenceMedium},
	}}, nil
}

func (r *scriptedReasoner) PlanProbe(ctx context.Context, evidence, hypothesesText, toolsSpec string) (reasoner.ProbePlan, error) {
	r.planCalls++
	if r.planErr != nil {
		return reasoner.ProbePlan{}, r.planErr
	}
	idx := r.planCalls - 1
	if idx >= len(r.plans) {
		idx = len(r.plans) - 1
	}
	return r.plans[idx], nil
}

func (r *scriptedReasoner) DigestEvidence(ctx context.Context, rawResultText, priorDigestText string) (string, error) {
	r.digestCalls++
	return fmt.Sprintf("finding %d", r.digestCalls), nil
}

func (r *scriptedReasoner) DecideStop(ctx context.Context, evidence, hypothesesText string, stepsUsed, stepsRemaining int) (reasoner.StopDecision, error) {
	r.stopCalls++
	if r.stopAfter > 0 && stepsUsed >= r.stopAfter {
		return reasoner.StopDecision{ShouldStop: true, Confidence: session.ConfidenceHigh, Reasoning: "root cause identified"}, nil
	}
	return reasoner.StopDecision{ShouldStop: false}, nil
}

func (r *scriptedReasoner) Diagnose(ctx context.Context, initialProblem, evidence, probesSummary string) (session.Diagnosis, error) {
	r.diagnoseCalls++
	if r.diagnoseErr != nil {
		return session.Diagnosis{}, r.diagnoseErr
	}
	return session.Diagnosis{
		RootCause:        "the app container exits because its env file is missing",
		Confidence:       session.ConfidenceHigh,
		RecommendedFixes: []string{"restore the .env file"},
	}, nil
}

// testRegistry builds a registry of argument-passthrough probes that
// never touch a container engine.
func testRegistry(t *testing.T, runs map[string]int) *probe.Registry {
	t.Helper()
	reg := probe.NewRegistry()

	mk := func(name string, fail bool) *probe.Spec {
		return &probe.Spec{
			Name:        name,
			Description: "test probe " + name,
			Scope:       probe.ScopeConfig,
			Args:        map[string]string{"target": "what to inspect"},
			Run: func(ctx context.Context, inv probe.Invocation) probe.Result {
				runs[name]++
				if fail {
					return probe.Fail(name, "simulated failure")
				}
				return probe.Ok(name, map[string]interface{}{"target": inv.Args["target"]})
			},
		}
	}

	require.NoError(t, reg.Register(mk("inspect_alpha", false)))
	require.NoError(t, reg.Register(mk("inspect_beta", false)))
	require.NoError(t, reg.Register(mk("inspect_broken", true)))
	require.NoError(t, reg.Finalize())
	return reg
}

func newTestLoop(t *testing.T, r reasoner.Reasoner, reg *probe.Registry, maxSteps int) *Loop {
	t.Helper()
	inv := probe.NewInvoker(reg, nil, nil, t.TempDir(), nil)
	res := probe.NewResolver(reg, inv, t.TempDir(), nil)
	l, err := New(Options{
		Registry: reg,
		Invoker:  inv,
		Resolver: res,
		Reasoner: r,
		Clock:    clock.NewMock(),
		MaxSteps: maxSteps,
	})
	require.NoError(t, err)
	return l
}

func TestRunStopsAtBudgetWithOneDiagnosis(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
		{ProbeName: "inspect_beta", ProbeArgsText: `{"target":"b"}`},
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"c"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 3)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Equal(t, 3, sess.CurrentStep)
	assert.Len(t, sess.ProbeHistory, 3)
	assert.Equal(t, 1, r.diagnoseCalls)
	require.NotNil(t, sess.Diagnosis)
	assert.Equal(t, "step budget exhausted", sess.StopReason)
	assert.False(t, sess.FinishedAt.IsZero())
}

func TestRunStopsEarlyOnReasonerDecision(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{
		plans: []reasoner.ProbePlan{
			{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
			{ProbeName: "inspect_beta", ProbeArgsText: `{"target":"b"}`},
			{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"c"}`},
		},
		stopAfter: 2,
	}
	l := newTestLoop(t, r, testRegistry(t, runs), 10)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Equal(t, 2, sess.CurrentStep)
	assert.Len(t, sess.ProbeHistory, 2)
	assert.Equal(t, "root cause identified", sess.StopReason)
	assert.Equal(t, 1, r.diagnoseCalls)
	require.NotNil(t, sess.Diagnosis)
	assert.Equal(t, session.ConfidenceHigh, sess.Diagnosis.Confidence)
}

func TestRunSkipsDuplicatePlanButConsumesStep(t *testing.T) {
	runs := map[string]int{}
	// Same literal plan twice, then a fresh one.
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
		{ProbeName: "inspect_beta", ProbeArgsText: `{"target":"b"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 3)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Equal(t, 3, sess.CurrentStep)
	assert.Len(t, sess.ProbeHistory, 2, "duplicate must not append a probe call")
	assert.Equal(t, 1, runs["inspect_alpha"])
	assert.Equal(t, 1, runs["inspect_beta"])

	found := false
	for _, entry := range sess.EvidenceLog {
		if entry == "[Step 2] Repeated request for inspect_alpha with identical arguments - skipped" {
			found = true
		}
	}
	assert.True(t, found, "expected a skip note in the evidence log, got: %v", sess.EvidenceLog)
}

func TestRunArgumentOrderDoesNotDefeatDedup(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a","extra":"x"}`},
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"extra":"x","target":"a"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 2)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Len(t, sess.ProbeHistory, 1)
	assert.Equal(t, 1, runs["inspect_alpha"])
}

func TestRunProbeFailureDoesNotAbortSession(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_broken", ProbeArgsText: `{"target":"a"}`},
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"b"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 2)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	require.Len(t, sess.ProbeHistory, 2)
	assert.False(t, sess.ProbeHistory[0].Succeeded())
	assert.Equal(t, "simulated failure", sess.ProbeHistory[0].Error)
	assert.True(t, sess.ProbeHistory[1].Succeeded())
	assert.Equal(t, 1, r.diagnoseCalls)
}

func TestRunUnknownProbeStillCountsAsExecuted(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "no_such_probe", ProbeArgsText: `{}`},
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 2)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	require.Len(t, sess.ProbeHistory, 2)
	assert.False(t, sess.ProbeHistory[0].Succeeded())
	assert.Contains(t, sess.ProbeHistory[0].Error, "unknown probe")
}

func TestRunMalformedPlanTextFallsBackToBestEffortParse(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_alpha", ProbeArgsText: "target=a"},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 1)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	require.Len(t, sess.ProbeHistory, 1)
	assert.True(t, sess.ProbeHistory[0].Succeeded())
	assert.Equal(t, "a", sess.ProbeHistory[0].Args["target"])
}

func TestRunPlanFailureDegradesToNote(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{
		plans:   []reasoner.ProbePlan{{ProbeName: "inspect_alpha", ProbeArgsText: `{}`}},
		planErr: fmt.Errorf("model unavailable"),
	}
	l := newTestLoop(t, r, testRegistry(t, runs), 2)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Equal(t, 2, sess.CurrentStep, "failed planning still consumes steps")
	assert.Empty(t, sess.ProbeHistory)
	assert.Equal(t, 1, r.diagnoseCalls)

	foundNote := false
	for _, entry := range sess.EvidenceLog {
		if entry == "[Step 1] Reasoner plan call failed: model unavailable" {
			foundNote = true
		}
	}
	assert.True(t, foundNote, "expected a degradation note, got: %v", sess.EvidenceLog)
}

func TestRunDiagnoseFailureYieldsInconclusiveDiagnosis(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{
		plans:       []reasoner.ProbePlan{{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`}},
		diagnoseErr: fmt.Errorf("model unavailable"),
	}
	l := newTestLoop(t, r, testRegistry(t, runs), 1)

	sess, err := l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	require.NotNil(t, sess.Diagnosis)
	assert.Equal(t, session.ConfidenceLow, sess.Diagnosis.Confidence)
	assert.Contains(t, sess.Diagnosis.RootCause, "inconclusive")
}

func TestRunCancelledContext(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{plans: []reasoner.ProbePlan{
		{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`},
	}}
	l := newTestLoop(t, r, testRegistry(t, runs), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, err := l.Run(ctx, "service is down")
	require.Error(t, err)
	require.NotNil(t, sess)
	assert.Contains(t, sess.StopReason, "cancelled")
	assert.Equal(t, 0, r.diagnoseCalls, "a cancelled session must not diagnose")
}

func TestRunHooksFire(t *testing.T) {
	runs := map[string]int{}
	r := &scriptedReasoner{
		plans:     []reasoner.ProbePlan{{ProbeName: "inspect_alpha", ProbeArgsText: `{"target":"a"}`}},
		stopAfter: 1,
	}
	reg := testRegistry(t, runs)
	inv := probe.NewInvoker(reg, nil, nil, t.TempDir(), nil)
	res := probe.NewResolver(reg, inv, t.TempDir(), nil)

	var steps, probesDone, findings, hypotheses, stops int
	l, err := New(Options{
		Registry: reg,
		Invoker:  inv,
		Resolver: res,
		Reasoner: r,
		Clock:    clock.NewMock(),
		MaxSteps: 3,
		Hooks: Hooks{
			OnStep:         func(step int, activity string) { steps++ },
			OnProbeDone:    func(step int, name string, success bool) { probesDone++ },
			OnFinding:      func(finding string) { findings++ },
			OnHypotheses:   func(h []session.Hypothesis) { hypotheses++ },
			OnStopDecision: func(d reasoner.StopDecision) { stops++ },
		},
	})
	require.NoError(t, err)

	_, err = l.Run(context.Background(), "service is down")
	require.NoError(t, err)

	assert.Greater(t, steps, 0)
	assert.Equal(t, 1, probesDone)
	assert.Equal(t, 1, findings)
	assert.Equal(t, 1, hypotheses)
	assert.Equal(t, 1, stops)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	runs := map[string]int{}
	reg := testRegistry(t, runs)
	inv := probe.NewInvoker(reg, nil, nil, "", nil)
	res := probe.NewResolver(reg, inv, "", nil)
	_, err = New(Options{Registry: reg, Invoker: inv, Resolver: res, Reasoner: &scriptedReasoner{}, MaxSteps: 0})
	assert.Error(t, err)
}

func TestDigestDelta(t *testing.T) {
	tests := []struct {
		name    string
		updated string
		prior   string
		want    string
	}{
		{"echoed prior stripped", "old evidence\nnew finding", "old evidence", "new finding"},
		{"no echo keeps whole output", "completely fresh digest", "old evidence", "completely fresh digest"},
		{"empty prior keeps whole output", "first finding", "", "first finding"},
		{"identical digest yields nothing", "old evidence", "old evidence", ""},
		{"whitespace trimmed", "  old evidence\n  new finding  ", "old evidence", "new finding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, digestDelta(tt.updated, tt.prior))
		})
	}
}
