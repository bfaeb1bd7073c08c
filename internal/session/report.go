package session

import (
	"fmt"
	"strings"
	"time"
)

// RenderReport produces the Markdown investigation report for a
// finished session.
func RenderReport(s *DebugSession) string {
	var b strings.Builder

	b.WriteString("# Debug Session Report\n\n")
	fmt.Fprintf(&b, "- **Session**: `%s`\n", s.ID)
	fmt.Fprintf(&b, "- **Problem**: %s\n", s.InitialProblem)
	fmt.Fprintf(&b, "- **Workspace**: `%s`\n", s.WorkspaceRoot)
	fmt.Fprintf(&b, "- **Steps used**: %d/%d\n", s.CurrentStep, s.MaxSteps)
	if s.StopReason != "" {
		fmt.Fprintf(&b, "- **Stop reason**: %s\n", s.StopReason)
	}
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "- **Duration**: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}

	if s.Diagnosis != nil {
		b.WriteString("\n## Diagnosis\n\n")
		fmt.Fprintf(&b, "**Root cause** (%s confidence): %s\n", s.Diagnosis.Confidence, s.Diagnosis.RootCause)
		if len(s.Diagnosis.RecommendedFixes) > 0 {
			b.WriteString("\n**Recommended fixes**:\n\n")
			for _, fix := range s.Diagnosis.RecommendedFixes {
				fmt.Fprintf(&b, "1. %s\n", fix)
			}
		}
		if s.Diagnosis.AdditionalNotes != "" {
			fmt.Fprintf(&b, "\n%s\n", s.Diagnosis.AdditionalNotes)
		}
	}

	if len(s.Hypotheses) > 0 {
		b.WriteString("\n## Final Hypotheses\n\n")
		for _, h := range s.Hypotheses {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", h.ID, h.Confidence, h.Statement)
		}
	}

	b.WriteString("\n## Probes Executed\n\n")
	if len(s.ProbeHistory) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString("| Step | Probe | Arguments | Outcome | Duration |\n")
		b.WriteString("|------|-------|-----------|---------|----------|\n")
		for _, call := range s.ProbeHistory {
			outcome := "ok"
			if !call.Succeeded() {
				outcome = "error: " + call.Error
			}
			args := compactArgs(call.Args)
			if args == "" {
				args = "{}"
			}
			fmt.Fprintf(&b, "| %d | %s | `%s` | %s | %s |\n",
				call.Step, call.ProbeName, args, outcome, call.Duration().Round(time.Millisecond))
		}
	}

	b.WriteString("\n## Evidence Log\n\n")
	if len(s.EvidenceLog) == 0 {
		b.WriteString("(no evidence gathered)\n")
	}
	for _, entry := range s.EvidenceLog {
		fmt.Fprintf(&b, "- %s\n", entry)
	}

	return b.String()
}
