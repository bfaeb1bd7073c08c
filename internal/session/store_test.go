package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumshoe-dev/gumshoe/internal/probe"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "gumshoe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func finishedSession(t *testing.T) *DebugSession {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	s, err := New(clk, "db container cannot reach postgres", "/ws", 5)
	require.NoError(t, err)

	s.CurrentStep = 2
	s.AddProbeCall(ProbeCall{
		Step:      1,
		ProbeName: "containers_state",
		Args:      map[string]interface{}{},
		Signature: "aaaaaaaaaaaa",
		StartedAt: clk.Now(), FinishedAt: clk.Now().Add(30 * time.Millisecond),
		Result: probe.Ok("containers_state", map[string]interface{}{"count": 2}),
	})
	s.AddProbeCall(ProbeCall{
		Step:      2,
		ProbeName: "tcp_connection",
		Args:      map[string]interface{}{"host": "postgres", "port": 5432},
		Signature: "bbbbbbbbbbbb",
		StartedAt: clk.Now(), FinishedAt: clk.Now().Add(40 * time.Millisecond),
		Result: probe.Fail("tcp_connection", "dial timeout"),
		Error:  "dial timeout",
	})
	s.AddEvidence(1, "containers_state", "both containers report running")
	s.Hypotheses = []Hypothesis{{ID: "H1", Statement: "postgres not listening", Confidence: ConfidenceMedium}}
	s.Diagnosis = &Diagnosis{
		RootCause:        "postgres listens on localhost only",
		Confidence:       ConfidenceHigh,
		RecommendedFixes: []string{"set listen_addresses = '*'"},
	}
	clk.Add(time.Minute)
	s.Finish("root cause identified")
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := finishedSession(t)
	report := RenderReport(sess)

	require.NoError(t, store.SaveSession(ctx, sess, report))

	rec, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, sess.ID, rec.ID)
	assert.Equal(t, sess.InitialProblem, rec.Problem)
	assert.Equal(t, "/ws", rec.WorkspaceRoot)
	assert.Equal(t, 2, rec.Steps)
	assert.Equal(t, 5, rec.MaxSteps)
	assert.Equal(t, "root cause identified", rec.StopReason)
	assert.Equal(t, "postgres listens on localhost only", rec.Diagnosis.RootCause)
	assert.Equal(t, ConfidenceHigh, rec.Diagnosis.Confidence)
	assert.Equal(t, []string{"set listen_addresses = '*'"}, rec.Diagnosis.RecommendedFixes)
	require.Len(t, rec.Hypotheses, 1)
	assert.Equal(t, "H1", rec.Hypotheses[0].ID)
	require.Len(t, rec.EvidenceLog, 1)
	assert.Equal(t, report, rec.Report)

	require.Len(t, rec.ProbeCalls, 2)
	assert.Equal(t, "containers_state", rec.ProbeCalls[0].ProbeName)
	assert.True(t, rec.ProbeCalls[0].Success)
	assert.Equal(t, "tcp_connection", rec.ProbeCalls[1].ProbeName)
	assert.False(t, rec.ProbeCalls[1].Success)
	assert.Equal(t, "dial timeout", rec.ProbeCalls[1].Error)
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := finishedSession(t)

	require.NoError(t, store.SaveSession(ctx, sess, "first"))
	require.NoError(t, store.SaveSession(ctx, sess, "second"))

	rec, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Report)
	assert.Len(t, rec.ProbeCalls, 2, "probe calls must not duplicate on re-save")
}

func TestStoreGetMissingSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := finishedSession(t)
	second := finishedSession(t)
	require.NoError(t, store.SaveSession(ctx, first, ""))
	require.NoError(t, store.SaveSession(ctx, second, ""))

	summaries, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	ids := []string{summaries[0].ID, summaries[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	assert.Equal(t, "postgres listens on localhost only", summaries[0].RootCause)
}
