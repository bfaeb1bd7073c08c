package session

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

func newTestSession(t *testing.T) (*DebugSession, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	s, err := New(clk, "web container restarts every few seconds", "/ws", 5)
	require.NoError(t, err)
	return s, clk
}

func TestNewRejectsZeroSteps(t *testing.T) {
	_, err := New(clock.NewMock(), "problem", "/ws", 0)
	assert.Error(t, err)
}

func TestStepAccounting(t *testing.T) {
	s, _ := newTestSession(t)

	assert.Equal(t, 5, s.StepsRemaining())
	assert.False(t, s.Terminal())

	s.CurrentStep = 5
	assert.Equal(t, 0, s.StepsRemaining())
	assert.True(t, s.Terminal())

	s.CurrentStep = 2
	s.ShouldStop = true
	assert.True(t, s.Terminal())
}

func TestSeenSignature(t *testing.T) {
	s, _ := newTestSession(t)

	assert.False(t, s.SeenSignature("abc123def456"))
	assert.True(t, s.SeenSignature("abc123def456"))
	assert.False(t, s.SeenSignature("ffffffffffff"))
}

func TestAddProbeCallCachesResult(t *testing.T) {
	s, clk := newTestSession(t)

	result := probe.Ok("containers_state", map[string]interface{}{"count": 2})
	s.AddProbeCall(ProbeCall{
		Step:       1,
		ProbeName:  "containers_state",
		Signature:  "abc123def456",
		StartedAt:  clk.Now(),
		FinishedAt: clk.Now().Add(120 * time.Millisecond),
		Result:     result,
	})

	require.Len(t, s.ProbeHistory, 1)
	cached, ok := s.Results.Get("containers_state")
	require.True(t, ok)
	assert.Equal(t, 2, cached.Data["count"])
	assert.Equal(t, 120*time.Millisecond, s.ProbeHistory[0].Duration())
	assert.True(t, s.ProbeHistory[0].Succeeded())
}

func TestEvidenceTextLayout(t *testing.T) {
	s, clk := newTestSession(t)

	s.CurrentStep = 2
	s.AddProbeCall(ProbeCall{
		Step:      1,
		ProbeName: "containers_state",
		Args:      map[string]interface{}{},
		StartedAt: clk.Now(), FinishedAt: clk.Now(),
		Result: probe.Ok("containers_state", nil),
	})
	s.AddProbeCall(ProbeCall{
		Step:      2,
		ProbeName: "container_logs",
		Args:      map[string]interface{}{"container": "web", "tail": 100},
		StartedAt: clk.Now(), FinishedAt: clk.Now(),
		Result: probe.Fail("container_logs", "daemon unreachable"),
		Error:  "daemon unreachable",
	})
	s.AddEvidence(1, "containers_state", "two containers, one restarting")

	text := s.EvidenceText()

	assert.Contains(t, text, "--- Debug Session Info ---")
	assert.Contains(t, text, "Initial problem: web container restarts every few seconds")
	assert.Contains(t, text, "Steps used: 2/5 (3 remaining)")
	assert.NotContains(t, text, "NOTE: Only")

	assert.Contains(t, text, "--- Previously Executed Probes ---")
	assert.Contains(t, text, "1. containers_state() -> ok")
	assert.Contains(t, text, `2. container_logs({"container":"web","tail":100}) -> error: daemon unreachable`)

	assert.Contains(t, text, "--- Evidence Gathered ---")
	assert.Contains(t, text, "[Step 1 - containers_state] two containers, one restarting")
}

func TestEvidenceTextBudgetWarning(t *testing.T) {
	s, _ := newTestSession(t)

	s.CurrentStep = 4
	assert.Contains(t, s.EvidenceText(), "NOTE: Only 1 step(s) remain")

	s.CurrentStep = 5
	assert.NotContains(t, s.EvidenceText(), "NOTE: Only")
}

func TestEvidenceTextIsRebuiltFreshEachCall(t *testing.T) {
	s, _ := newTestSession(t)

	first := s.EvidenceText()
	assert.Contains(t, first, "(none)")
	assert.Contains(t, first, "(no evidence yet)")

	s.CurrentStep = 1
	s.AddNote(1, "Reasoner plan call failed: model unavailable")

	second := s.EvidenceText()
	assert.Contains(t, second, "[Step 1] Reasoner plan call failed: model unavailable")
	assert.NotContains(t, second, "(no evidence yet)")
}

func TestSkipNoteFormat(t *testing.T) {
	s, _ := newTestSession(t)
	s.AddSkipNote(3, "container_logs")

	require.Len(t, s.EvidenceLog, 1)
	assert.Equal(t,
		"[Step 3] Repeated request for container_logs with identical arguments - skipped",
		s.EvidenceLog[0])
}

func TestFinish(t *testing.T) {
	s, clk := newTestSession(t)
	clk.Add(90 * time.Second)

	s.Finish("step budget exhausted")

	assert.Equal(t, "step budget exhausted", s.StopReason)
	assert.Equal(t, 90*time.Second, s.FinishedAt.Sub(s.StartedAt))

	// Finishing with an empty reason keeps the existing one.
	s.Finish("")
	assert.Equal(t, "step budget exhausted", s.StopReason)
}

func TestRenderReport(t *testing.T) {
	s, clk := newTestSession(t)
	s.CurrentStep = 2
	s.AddProbeCall(ProbeCall{
		Step:      1,
		ProbeName: "containers_state",
		StartedAt: clk.Now(), FinishedAt: clk.Now().Add(50 * time.Millisecond),
		Result: probe.Ok("containers_state", nil),
	})
	s.AddEvidence(1, "containers_state", "web is restarting")
	s.Hypotheses = []Hypothesis{{ID: "H1", Statement: "missing env file", Confidence: ConfidenceHigh}}
	s.Diagnosis = &Diagnosis{
		RootCause:        "the web container exits because .env is missing",
		Confidence:       ConfidenceHigh,
		RecommendedFixes: []string{"restore the .env file", "add a healthcheck"},
	}
	s.Finish("root cause identified")

	report := RenderReport(s)

	assert.Contains(t, report, "# Debug Session Report")
	assert.Contains(t, report, "- **Steps used**: 2/5")
	assert.Contains(t, report, "## Diagnosis")
	assert.Contains(t, report, "**Root cause** (high confidence): the web container exits because .env is missing")
	assert.Contains(t, report, "1. restore the .env file")
	assert.Contains(t, report, "## Final Hypotheses")
	assert.Contains(t, report, "- **H1** (high): missing env file")
	assert.Contains(t, report, "| 1 | containers_state | `{}` | ok | 50ms |")
	assert.Contains(t, report, "- [Step 1 - containers_state] web is restarting")
}
