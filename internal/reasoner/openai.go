package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gumshoe-dev/gumshoe/internal/metrics"
	"github.com/gumshoe-dev/gumshoe/internal/session"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 2048
	DefaultTimeout   = 120 * time.Second
)

// Config holds the connection settings for an OpenAI-compatible API.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client implements Reasoner over an OpenAI-compatible chat-completions
// endpoint. Every function instructs the model to answer in JSON and
// falls back to a degraded interpretation when it does not.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

// OpenAI-compatible API structures
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient builds a Reasoner client. An empty API key is allowed for
// local OpenAI-compatible servers that ignore authentication.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

const systemPrompt = "You are a container debugging assistant. You investigate failures " +
	"in containerized applications by choosing introspection probes and reasoning over " +
	"their results. Always answer with a single JSON object and nothing else."

func (c *Client) GenerateHypotheses(ctx context.Context, evidence string) (Hypotheses, error) {
	prompt := fmt.Sprintf(`Given the evidence below, list the most plausible explanations for the failure.

%s

Respond with JSON:
{"hypotheses": [{"id": "H1", "statement": "...", "confidence": "low|medium|high", "rationale": "..."}],
 "key_unknowns": ["..."]}`, evidence)

	content, err := c.complete(ctx, "hypotheses", prompt)
	if err != nil {
		return Hypotheses{}, err
	}

	var out Hypotheses
	if jerr := json.Unmarshal([]byte(extractJSONBlock(content)), &out); jerr != nil || len(out.Hypotheses) == 0 {
		// Free-text fallback: keep the whole answer as one hypothesis.
		c.log.Debug("hypotheses response was not JSON, using free-text fallback")
		return Hypotheses{Hypotheses: []session.Hypothesis{{
			ID:         "H1",
			Statement:  truncate(strings.TrimSpace(content), 400),
			Confidence: session.ConfidenceMedium,
		}}}, nil
	}
	for i := range out.Hypotheses {
		if out.Hypotheses[i].ID == "" {
			out.Hypotheses[i].ID = fmt.Sprintf("H%d", i+1)
		}
		if out.Hypotheses[i].Confidence == "" {
			out.Hypotheses[i].Confidence = session.ConfidenceMedium
		}
	}
	return out, nil
}

func (c *Client) PlanProbe(ctx context.Context, evidence, hypothesesText, toolsSpec string) (ProbePlan, error) {
	prompt := fmt.Sprintf(`Choose the single next probe that best tests the current hypotheses.

Available probes:
%s

Current hypotheses:
%s

Evidence so far:
%s

Respond with JSON:
{"probe_name": "...", "probe_args": "{...literal JSON arguments...}",
 "expected_signal": "what the result would show", "stop_if": "result that would justify stopping"}`,
		toolsSpec, hypothesesText, evidence)

	content, err := c.complete(ctx, "plan", prompt)
	if err != nil {
		return ProbePlan{}, err
	}

	var plan ProbePlan
	if jerr := json.Unmarshal([]byte(extractJSONBlock(content)), &plan); jerr != nil {
		return ProbePlan{}, fmt.Errorf("unparseable probe plan: %w", jerr)
	}
	if plan.ProbeName == "" {
		return ProbePlan{}, fmt.Errorf("probe plan names no probe")
	}
	return plan, nil
}

func (c *Client) DigestEvidence(ctx context.Context, rawResultText, priorDigestText string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the salient facts of this probe result in at most three sentences.
Mention only what matters for diagnosing the failure.

Prior findings:
%s

New probe result:
%s

Respond with JSON: {"updated_digest": "..."}`, priorDigestText, rawResultText)

	content, err := c.complete(ctx, "digest", prompt)
	if err != nil {
		return "", err
	}

	var out struct {
		UpdatedDigest string `json:"updated_digest"`
	}
	if jerr := json.Unmarshal([]byte(extractJSONBlock(content)), &out); jerr == nil && out.UpdatedDigest != "" {
		return out.UpdatedDigest, nil
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) DecideStop(ctx context.Context, evidence, hypothesesText string, stepsUsed, stepsRemaining int) (StopDecision, error) {
	prompt := fmt.Sprintf(`Decide whether the investigation has gathered enough evidence to conclude.
Steps used: %d. Steps remaining: %d.

Current hypotheses:
%s

Evidence:
%s

Respond with JSON:
{"should_stop": true|false, "confidence": "low|medium|high",
 "reasoning": "...", "missing_evidence": "..."}`, stepsUsed, stepsRemaining, hypothesesText, evidence)

	content, err := c.complete(ctx, "stop", prompt)
	if err != nil {
		return StopDecision{}, err
	}

	var decision StopDecision
	if jerr := json.Unmarshal([]byte(extractJSONBlock(content)), &decision); jerr != nil {
		// An unparseable verdict means keep investigating.
		lower := strings.ToLower(content)
		decision = StopDecision{
			ShouldStop: strings.Contains(lower, `"should_stop": true`) || strings.HasPrefix(strings.TrimSpace(lower), "yes"),
			Reasoning:  truncate(strings.TrimSpace(content), 300),
		}
	}
	return decision, nil
}

func (c *Client) Diagnose(ctx context.Context, initialProblem, evidence, probesSummary string) (session.Diagnosis, error) {
	prompt := fmt.Sprintf(`Produce the final diagnosis for this debug session.

Initial problem:
%s

Probes executed:
%s

Evidence:
%s

Respond with JSON:
{"root_cause": "...", "confidence": "low|medium|high",
 "recommended_fixes": ["..."], "additional_notes": "..."}`, initialProblem, probesSummary, evidence)

	content, err := c.complete(ctx, "diagnose", prompt)
	if err != nil {
		return session.Diagnosis{}, err
	}

	var diagnosis session.Diagnosis
	if jerr := json.Unmarshal([]byte(extractJSONBlock(content)), &diagnosis); jerr != nil || diagnosis.RootCause == "" {
		return session.Diagnosis{
			RootCause:  truncate(strings.TrimSpace(content), 600),
			Confidence: session.ConfidenceLow,
		}, nil
	}
	if diagnosis.Confidence == "" {
		diagnosis.Confidence = session.ConfidenceLow
	}
	return diagnosis, nil
}

// complete performs one chat round-trip and returns the raw content.
func (c *Client) complete(ctx context.Context, function, prompt string) (string, error) {
	timer := time.Now()
	content, err := c.doRequest(ctx, prompt)
	metrics.ReasonerRequestDuration.WithLabelValues(function).Observe(time.Since(timer).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ReasonerRequests.WithLabelValues(function, status).Inc()
	return content, err
}

func (c *Client) doRequest(ctx context.Context, prompt string) (string, error) {
	request := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.2,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoner request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoner API error (status %d): %s", resp.StatusCode, truncate(string(responseBody), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in reasoner response")
	}
	return parsed.Choices[0].Message.Content, nil
}
