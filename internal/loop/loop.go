package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gumshoe-dev/gumshoe/internal/audit"
	"github.com/gumshoe-dev/gumshoe/internal/metrics"
	"github.com/gumshoe-dev/gumshoe/internal/probe"
	"github.com/gumshoe-dev/gumshoe/internal/reasoner"
	"github.com/gumshoe-dev/gumshoe/internal/session"
)

// Package loop drives one debug session through the investigation state
// machine: Planning, Executing, Digesting, Deciding, repeated up to the
// step budget, then exactly one Diagnose.
//
// Responsibilities:
//   - Alternate Reasoner calls with probe execution under the budget
//   - Gate every planned call through the literal-plan signature so a
//     repeated request is skipped but still costs a step
//   - Run sanitization, dependency resolution, and validation before
//     dispatch
//   - Degrade every mid-step failure (Reasoner errors, malformed plans,
//     probe failures) to an evidence note; only external cancellation
//     aborts a session
//   - Fire UI hooks and record audit events at each transition
//
// The loop is strictly sequential. One step completes fully before the
// next begins; no two probes and no two Reasoner calls overlap.

// Options wires the loop's collaborators.
type Options struct {
	Registry      *probe.Registry
	Invoker       *probe.Invoker
	Resolver      *probe.Resolver
	Reasoner      reasoner.Reasoner
	Audit         audit.Logger
	Clock         clock.Clock
	Log           *zap.Logger
	Hooks         Hooks
	WorkspaceRoot string
	MaxSteps      int
}

// Loop runs debug sessions. One Loop can run sessions sequentially;
// concurrent sessions need independent Loop, Invoker, and cache
// instances.
type Loop struct {
	registry      *probe.Registry
	invoker       *probe.Invoker
	resolver      *probe.Resolver
	reasoner      reasoner.Reasoner
	audit         audit.Logger
	clk           clock.Clock
	log           *zap.Logger
	hooks         Hooks
	workspaceRoot string
	maxSteps      int
}

// New builds a loop from its collaborators.
func New(opts Options) (*Loop, error) {
	if opts.Registry == nil || opts.Invoker == nil || opts.Resolver == nil {
		return nil, fmt.Errorf("registry, invoker, and resolver are required")
	}
	if opts.Reasoner == nil {
		return nil, fmt.Errorf("reasoner is required")
	}
	if opts.MaxSteps < 1 {
		return nil, fmt.Errorf("max steps must be at least 1, got %d", opts.MaxSteps)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Loop{
		registry:      opts.Registry,
		invoker:       opts.Invoker,
		resolver:      opts.Resolver,
		reasoner:      opts.Reasoner,
		audit:         opts.Audit,
		clk:           opts.Clock,
		log:           opts.Log,
		hooks:         opts.Hooks,
		workspaceRoot: opts.WorkspaceRoot,
		maxSteps:      opts.MaxSteps,
	}, nil
}

// Run executes one full debug session for the given problem statement.
// The returned session always carries a diagnosis, even when the run
// was degraded; the error is non-nil only for invalid input or external
// cancellation.
func (l *Loop) Run(ctx context.Context, problem string) (*session.DebugSession, error) {
	sess, err := session.New(l.clk, problem, l.workspaceRoot, l.maxSteps)
	if err != nil {
		return nil, err
	}
	l.log.Info("debug session started",
		zap.String("session_id", sess.ID),
		zap.Int("max_steps", sess.MaxSteps))
	if l.audit != nil {
		l.audit.LogSessionStarted(ctx, sess.ID, problem)
	}

	toolsSpec := l.registry.CatalogText()

	for !sess.Terminal() {
		if ctx.Err() != nil {
			return l.cancel(ctx, sess)
		}
		sess.CurrentStep++
		l.step(ctx, sess, toolsSpec)
	}

	if ctx.Err() != nil {
		return l.cancel(ctx, sess)
	}

	l.diagnose(ctx, sess)

	if sess.StopReason == "" {
		sess.Finish("step budget exhausted")
	} else {
		sess.Finish("")
	}

	metrics.SessionsTotal.WithLabelValues("completed").Inc()
	metrics.SessionSteps.Observe(float64(sess.CurrentStep))
	metrics.SessionDuration.Observe(sess.FinishedAt.Sub(sess.StartedAt).Seconds())
	if l.audit != nil {
		l.audit.LogSessionFinished(ctx, sess.ID, sess.CurrentStep, sess.FinishedAt.Sub(sess.StartedAt))
	}
	l.log.Info("debug session finished",
		zap.String("session_id", sess.ID),
		zap.Int("steps", sess.CurrentStep),
		zap.String("stop_reason", sess.StopReason))
	return sess, nil
}

// step runs one full Planning/Executing/Digesting/Deciding iteration.
// Every failure inside it degrades to an evidence note.
func (l *Loop) step(ctx context.Context, sess *session.DebugSession, toolsSpec string) {
	step := sess.CurrentStep

	// Planning: hypotheses first, then the next probe.
	l.hooks.fireStep(step, "generating hypotheses")
	hyps, err := l.reasoner.GenerateHypotheses(ctx, sess.EvidenceText())
	if err != nil {
		l.reasonerFailed(ctx, sess, "hypotheses", err)
	} else if len(hyps.Hypotheses) > 0 {
		sess.Hypotheses = hyps.Hypotheses
		l.hooks.fireHypotheses(sess.Hypotheses)
	}

	l.hooks.fireStep(step, "planning next probe")
	plan, err := l.reasoner.PlanProbe(ctx, sess.EvidenceText(), hypothesesText(sess), toolsSpec)
	if err != nil {
		l.reasonerFailed(ctx, sess, "plan", err)
		return
	}

	// Dedup gate over the literal plan, before any resolution.
	rawArgs := probe.ParseArgsText(plan.ProbeArgsText)
	sig := probe.Signature(plan.ProbeName, rawArgs)
	if sess.SeenSignature(sig) {
		l.log.Debug("duplicate plan skipped",
			zap.String("probe", plan.ProbeName),
			zap.String("signature", sig))
		sess.AddSkipNote(step, plan.ProbeName)
		metrics.DedupSkips.Inc()
		if l.audit != nil {
			l.audit.LogProbeSkipped(ctx, sess.ID, plan.ProbeName, step)
		}
		return
	}

	// Executing.
	l.hooks.fireStep(step, fmt.Sprintf("running probe %s", plan.ProbeName))
	call := l.execute(ctx, sess, plan.ProbeName, rawArgs, sig)
	sess.AddProbeCall(call)
	l.hooks.fireProbeDone(step, call.ProbeName, call.Succeeded())
	if l.audit != nil {
		var execErr error
		if !call.Succeeded() {
			execErr = fmt.Errorf("%s", call.Error)
		}
		l.audit.LogProbeExecuted(ctx, sess.ID, call.ProbeName, step, execErr, call.Duration())
	}

	// Digesting.
	l.hooks.fireStep(step, "digesting result")
	prior := strings.Join(sess.EvidenceLog, "\n")
	digest, err := l.reasoner.DigestEvidence(ctx, rawResultText(call.Result), prior)
	if err != nil {
		l.reasonerFailed(ctx, sess, "digest", err)
	} else if finding := digestDelta(digest, prior); finding != "" {
		sess.AddEvidence(step, call.ProbeName, finding)
		l.hooks.fireFinding(finding)
	}

	// Deciding.
	l.hooks.fireStep(step, "deciding whether to stop")
	decision, err := l.reasoner.DecideStop(ctx, sess.EvidenceText(), hypothesesText(sess), sess.CurrentStep, sess.StepsRemaining())
	if err != nil {
		l.reasonerFailed(ctx, sess, "stop", err)
		return
	}
	l.hooks.fireStopDecision(decision)
	if decision.ShouldStop {
		sess.ShouldStop = true
		reason := decision.Reasoning
		if reason == "" {
			reason = "reasoner decided enough evidence was gathered"
		}
		sess.StopReason = reason
	}
}

// execute runs sanitize, resolve, validate, dispatch for one planned
// call and wraps the outcome in a timestamped ProbeCall.
func (l *Loop) execute(ctx context.Context, sess *session.DebugSession, name string, rawArgs map[string]interface{}, sig string) session.ProbeCall {
	started := l.clk.Now().UTC()

	args := rawArgs
	var result probe.Result

	spec, err := l.registry.Lookup(name)
	if err != nil {
		// Unknown names go straight to the invoker, which answers with
		// a structured error result.
		result = l.invoker.Invoke(ctx, name, rawArgs)
	} else {
		args = probe.Sanitize(spec, rawArgs)
		args = l.resolver.Resolve(ctx, spec, args, sess.Results)
		if verr := probe.Validate(spec, args); verr != nil {
			// Validation failures never reach the probe body.
			result = probe.Fail(name, verr.Error())
		} else {
			result = l.invoker.Invoke(ctx, name, args)
		}
	}

	call := session.ProbeCall{
		Step:       sess.CurrentStep,
		ProbeName:  result.ProbeName,
		Args:       args,
		Signature:  sig,
		StartedAt:  started,
		FinishedAt: l.clk.Now().UTC(),
		Result:     result,
	}
	if !result.Success {
		call.Error = result.Error
	}
	return call
}

// diagnose requests the final conclusion. It runs exactly once per
// session; a Reasoner failure degrades to an inconclusive diagnosis
// rather than an aborted session.
func (l *Loop) diagnose(ctx context.Context, sess *session.DebugSession) {
	l.hooks.fireStep(sess.CurrentStep, "producing diagnosis")
	diag, err := l.reasoner.Diagnose(ctx, sess.InitialProblem, sess.EvidenceText(), sess.ProbesSummary())
	if err != nil {
		l.reasonerFailed(ctx, sess, "diagnose", err)
		diag = session.Diagnosis{
			RootCause:       "inconclusive: the final diagnosis request failed",
			Confidence:      session.ConfidenceLow,
			AdditionalNotes: err.Error(),
		}
	}
	sess.Diagnosis = &diag
}

// cancel freezes a session interrupted from outside.
func (l *Loop) cancel(ctx context.Context, sess *session.DebugSession) (*session.DebugSession, error) {
	cause := context.Cause(ctx)
	sess.Finish(fmt.Sprintf("cancelled: %v", cause))
	metrics.SessionsTotal.WithLabelValues("cancelled").Inc()
	if l.audit != nil {
		l.audit.Log(context.Background(), audit.NewEvent(audit.EventSessionCancelled).
			WithSession(sess.ID).
			WithResult(audit.ResultFailure).
			WithDescription(sess.StopReason))
	}
	l.log.Warn("debug session cancelled",
		zap.String("session_id", sess.ID),
		zap.Int("steps", sess.CurrentStep))
	return sess, cause
}

// reasonerFailed degrades one failed Reasoner call to an evidence note.
func (l *Loop) reasonerFailed(ctx context.Context, sess *session.DebugSession, function string, err error) {
	l.log.Warn("reasoner call failed",
		zap.String("session_id", sess.ID),
		zap.String("function", function),
		zap.Error(err))
	sess.AddNote(sess.CurrentStep, fmt.Sprintf("Reasoner %s call failed: %v", function, err))
	if l.audit != nil {
		l.audit.LogReasonerFailure(ctx, sess.ID, function, err)
	}
}

// hypothesesText renders the current hypotheses for Reasoner prompts.
func hypothesesText(sess *session.DebugSession) string {
	if len(sess.Hypotheses) == 0 {
		return "(no hypotheses yet)"
	}
	var b strings.Builder
	for i, h := range sess.Hypotheses {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, h.Confidence, h.Statement)
		if h.Rationale != "" {
			fmt.Fprintf(&b, " (%s)", h.Rationale)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// rawResultText renders one probe result for the digest request.
func rawResultText(r probe.Result) string {
	buf, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", r)
	}
	return string(buf)
}

// digestDelta keeps only the part of the updated digest beyond the
// prior one when the Reasoner echoed it back; otherwise the whole
// output is the finding.
func digestDelta(updated, prior string) string {
	updated = strings.TrimSpace(updated)
	if prior != "" && strings.HasPrefix(updated, prior) {
		return strings.TrimSpace(strings.TrimPrefix(updated, prior))
	}
	return updated
}
