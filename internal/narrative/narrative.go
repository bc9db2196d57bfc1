// Package narrative turns the dashboard statistics into a written analysis
// using a hosted language model.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/observability"
)

const (
	MissingKeyMessage = "API Key is missing. Please check your environment configuration to enable AI insights."
	FailureMessage    = "Failed to generate insights. Please try again later."
	EmptyMessage      = "No insights could be generated."

	DefaultQuery = "Analyze my sales performance this month. What are the key takeaways?"

	trendWindow = 7
)

const systemInstruction = `You are an expert E-commerce Data Analyst for a WeChat Shop (Video Accounts).
Your goal is to provide actionable business insights based on the provided JSON data.
Focus on trends, anomalies, and growth opportunities.
Keep the tone professional yet encouraging.
Output Markdown formatted text.`

// Model generates text for a system instruction and a prompt.
type Model interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Analyst struct {
	model   Model
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyst returns an Analyst. A nil model means no credential is
// configured and every request gets MissingKeyMessage.
func NewAnalyst(model Model, timeout time.Duration, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{model: model, timeout: timeout, logger: logger}
}

func (a *Analyst) Enabled() bool {
	return a.model != nil
}

// Analyze never fails; problems degrade to one of the fixed messages.
func (a *Analyst) Analyze(ctx context.Context, stats models.Stats, query string) string {
	if a.model == nil {
		observability.NarrativeRequests.WithLabelValues("disabled").Inc()
		return MissingKeyMessage
	}

	prompt, err := BuildPrompt(stats, query)
	if err != nil {
		a.logger.Error("build narrative prompt", "error", err)
		observability.NarrativeRequests.WithLabelValues("error").Inc()
		return FailureMessage
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.model.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		a.logger.Error("narrative generation failed", "error", err, "duration", time.Since(start))
		observability.NarrativeRequests.WithLabelValues("error").Inc()
		return FailureMessage
	}

	if strings.TrimSpace(text) == "" {
		observability.NarrativeRequests.WithLabelValues("empty").Inc()
		return EmptyMessage
	}

	a.logger.Info("narrative generated", "chars", len(text), "duration", time.Since(start))
	observability.NarrativeRequests.WithLabelValues("ok").Inc()
	return text
}

// BuildPrompt renders the data context and the user's question.
func BuildPrompt(stats models.Stats, query string) (string, error) {
	trend := stats.DailyTrend
	if len(trend) > trendWindow {
		trend = trend[len(trend)-trendWindow:]
	}

	trendJSON, err := json.Marshal(trend)
	if err != nil {
		return "", fmt.Errorf("marshal trend: %w", err)
	}
	productsJSON, err := json.Marshal(stats.TopProducts)
	if err != nil {
		return "", fmt.Errorf("marshal products: %w", err)
	}
	regionsJSON, err := json.Marshal(stats.RegionDist)
	if err != nil {
		return "", fmt.Errorf("marshal regions: %w", err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	var b strings.Builder
	b.WriteString("Dataset Summary:\n")
	fmt.Fprintf(&b, "- Recent Sales Trend (Last %d days): %s\n", trendWindow, trendJSON)
	fmt.Fprintf(&b, "- Top Performing Products: %s\n", productsJSON)
	fmt.Fprintf(&b, "- Geographic Distribution: %s\n", regionsJSON)
	fmt.Fprintf(&b, "\nUser Query: %s", query)
	return b.String(), nil
}

// RenderHTML converts the Markdown answer to HTML. Raw HTML in the answer is
// not passed through.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
