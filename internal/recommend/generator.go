package recommend

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MaxRecommendations caps the suggestion list regardless of what the
// provider returns.
const MaxRecommendations = 3

// DefaultTimeout bounds a single provider attempt. The ingestion
// pipeline is serialized, so this is also the worst-case stall one slow
// provider call can add to unrelated producers.
const DefaultTimeout = 5 * time.Second

// promptTemplate is the fixed-shape instruction sent to the provider.
// The fused detail text is embedded as context.
const promptTemplate = "You are the fusiond recommendation engine.\n" +
	"Generate exactly 3 crisp, executive-level actionable recommendations.\n" +
	"Do not explain — only output numbered bullet points.\n\n" +
	"Fusion Context:\n%s\n"

// fallbackRecommendations is returned whenever the provider is
// unconfigured, fails or times out. Always exactly 3 entries.
var fallbackRecommendations = []string{
	"Recommendations are unavailable: the reasoning provider could not be reached.",
	"Verify the provider API key and network connectivity, then send another update.",
	"Perception fusion is still running; the context above reflects the latest observations.",
}

// bulletPrefix matches leading list markers: "1.", "2)", "-", "*", "•".
var bulletPrefix = regexp.MustCompile(`^(?:\d+[.)]|[-*•]+)\s*`)

// Generator owns the recommendation step of the ingestion pipeline.
type Generator struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGenerator creates a generator backed by the given provider. A nil
// logger is replaced with a no-op logger.
func NewGenerator(provider Provider, timeout time.Duration, logger *zap.Logger) *Generator {
	if provider == nil {
		provider = Unavailable()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Fallback returns a copy of the fixed fallback list.
func Fallback() []string {
	return append([]string(nil), fallbackRecommendations...)
}

// Generate asks the provider for at most MaxRecommendations short
// action items grounded in the fused detail text.
//
// Generate never returns an error: any provider failure, timeout or
// missing credential degrades to the fixed fallback list so the
// ingestion call that triggered it still succeeds.
func (g *Generator) Generate(ctx context.Context, fusedDetail string) []string {
	if !g.provider.Available() {
		return Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(promptTemplate, fusedDetail)

	raw, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		g.logger.Warn("recommendation provider call failed, using fallback",
			zap.Error(err),
			zap.Duration("timeout", g.timeout),
		)
		return Fallback()
	}

	recs := parseRecommendations(raw, MaxRecommendations)
	if len(recs) == 0 {
		g.logger.Warn("recommendation provider returned no usable lines, using fallback")
		return Fallback()
	}
	return recs
}

// parseRecommendations splits the provider's free-text response into at
// most max clean entries: one per line, list markers and whitespace
// stripped, empty lines discarded.
func parseRecommendations(raw string, max int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
