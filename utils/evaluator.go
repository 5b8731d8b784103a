package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"promptforge/models"
)

// Evaluator is the client for the external AI scoring/generation service.
// Calls are bounded by the request context; on timeout or failure the caller
// must leave any cached scores untouched.
type Evaluator struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

func NewEvaluator(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *Evaluator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Evaluator{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Timeout:    timeout,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// SectionFeedback is one named feedback block from the evaluator's response.
type SectionFeedback struct {
	Name     string   `json:"name"`
	Comments []string `json:"comments"`
}

// EvaluationResult is the parsed evaluator response. Score is nil when the
// service did not return a parseable score, which is distinct from scoring
// zero.
type EvaluationResult struct {
	Score    *float64          `json:"score,omitempty"`
	Sections []SectionFeedback `json:"sections"`
	Raw      string            `json:"-"`
}

type evaluateRequest struct {
	Content string `json:"content"`
}

type generateRequest struct {
	Content string `json:"content"`
	Section string `json:"section"`
}

// EvaluateChain concatenates the member prompts in order and asks the
// service for a score and per-section feedback.
func (e *Evaluator) EvaluateChain(ctx context.Context, chainName string, prompts []models.Prompt) (*EvaluationResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chain: %s\n\n", chainName)
	for i, p := range prompts {
		fmt.Fprintf(&b, "# Step %d: %s\n\n", i+1, p.Name)
		b.WriteString(p.Render())
		b.WriteString("\n\n")
	}
	return e.evaluate(ctx, b.String())
}

// ScorePrompt evaluates a single prompt.
func (e *Evaluator) ScorePrompt(ctx context.Context, prompt *models.Prompt) (*EvaluationResult, error) {
	return e.evaluate(ctx, prompt.Render())
}

func (e *Evaluator) evaluate(ctx context.Context, content string) (*EvaluationResult, error) {
	raw, err := e.post(ctx, "/v1/evaluate", evaluateRequest{Content: content})
	if err != nil {
		return nil, err
	}
	return ParseEvaluation(raw), nil
}

// GenerateSection asks the service to draft one methodology section for a
// prompt, given the sections written so far.
func (e *Evaluator) GenerateSection(ctx context.Context, prompt *models.Prompt, section string) (string, error) {
	raw, err := e.post(ctx, "/v1/generate", generateRequest{Content: prompt.Render(), Section: section})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (e *Evaluator) post(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", models.NewInternalError("could not encode evaluator request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", models.NewInternalError("could not build evaluator request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		if e.Logger != nil {
			e.Logger.WithError(err).Warn("evaluator request failed")
		}
		return "", models.NewExternalServiceError("the AI service did not respond, try again later")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewExternalServiceError("could not read AI service response")
	}
	if resp.StatusCode != http.StatusOK {
		if e.Logger != nil {
			e.Logger.WithField("status", resp.StatusCode).Warn("evaluator returned an error")
		}
		return "", models.NewExternalServiceError("the AI service returned an error, try again later")
	}
	return string(raw), nil
}

var scoreLineRe = regexp.MustCompile(`(?i)\bscore\b[^0-9]*([0-9]+(?:\.[0-9]+)?)`)

// ParseEvaluation parses the evaluator's semi-structured text contract: an
// overall score on a line mentioning "score", then zero or more "## "-headed
// sections, each optionally carrying hyphen-bulleted comments. Missing or
// malformed pieces are dropped, never fatal.
func ParseEvaluation(raw string) *EvaluationResult {
	result := &EvaluationResult{Raw: raw}

	var current *SectionFeedback
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "## ") {
			name := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if name == "" {
				current = nil
				continue
			}
			result.Sections = append(result.Sections, SectionFeedback{Name: name})
			current = &result.Sections[len(result.Sections)-1]
			continue
		}

		if result.Score == nil && current == nil {
			if m := scoreLineRe.FindStringSubmatch(line); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 10 {
					result.Score = &v
					continue
				}
			}
		}

		if current != nil && strings.HasPrefix(line, "- ") {
			comment := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if comment != "" {
				current.Comments = append(current.Comments, comment)
			}
		}
	}
	return result
}
