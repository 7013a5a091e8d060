package advisor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hiddenpointz/Next-Move/internal/logging"
)

// Static messages used when the generative call is skipped or fails.
const (
	StableMessage   = "Stability is in the healthy range, no corrective action needed."
	FallbackMessage = "Advisory service unavailable. Review the indicator table and revisit when conditions change."
)

// stabilityThreshold is the coherence above which the generative call is
// skipped entirely; a stable reading needs no custom plan.
const stabilityThreshold = 0.70

// Snapshot is the post-aggregation indicator state the prompt is built
// from. The advisor depends on aggregated values, so it always runs after
// the source fan-in, never concurrently with it.
type Snapshot struct {
	Coherence     float64
	CognitiveLoad float64
	Reserve       float64
	MarketScore   float64
}

// Advisor turns an indicator snapshot into a short list of recommended
// actions. Every failure path terminates in a static message; Advise has
// no error return by design.
type Advisor struct {
	manager   *Manager
	maxTokens int
	timeout   time.Duration
}

// New creates an Advisor over the given providers.
func New(manager *Manager, maxTokens int, timeout time.Duration) *Advisor {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Advisor{manager: manager, maxTokens: maxTokens, timeout: timeout}
}

// Advise returns an ordered list of recommendation strings. The list is
// never empty and never nil.
func (a *Advisor) Advise(ctx context.Context, snap Snapshot) []string {
	if snap.Coherence > stabilityThreshold {
		return []string{StableMessage}
	}

	provider := a.manager.Pick()
	if provider == nil {
		logging.Debug("no advisory provider configured, using fallback message")
		return []string{FallbackMessage}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := provider.Generate(callCtx, Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildPrompt(snap),
		MaxTokens:    a.maxTokens,
		Temperature:  0.2,
	})
	if err != nil {
		logging.Warn("advisory generation failed, using fallback message",
			"provider", provider.Name(), "err", err)
		return []string{FallbackMessage}
	}

	actions := parseActions(resp.Content)
	if len(actions) == 0 {
		logging.Warn("advisory response had no parseable actions",
			"provider", provider.Name())
		return []string{FallbackMessage}
	}

	logging.Info("advisory generated",
		"provider", provider.Name(), "model", resp.Model, "actions", len(actions))
	return actions
}

const systemPrompt = "You are a pragmatic decision-support assistant. " +
	"Answer only with a numbered list of exactly three concrete, specific actions. " +
	"One sentence each. No preamble, no closing remarks."

func buildPrompt(snap Snapshot) string {
	return fmt.Sprintf(
		"Current stability indicators:\n"+
			"- coherence: %.3f (below the %.2f stability threshold)\n"+
			"- cognitive load: %.2f\n"+
			"- reserve: %.2f\n"+
			"- market score: %.2f\n\n"+
			"Recommend three concrete actions to improve stability.",
		snap.Coherence, stabilityThreshold, snap.CognitiveLoad, snap.Reserve, snap.MarketScore)
}

// listLine matches "1. action", "2) action", "- action", "* action".
var listLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s+(.+)$`)

// parseActions extracts up to three list items from the model output.
// Bare non-empty lines count too, so a model that skips numbering still
// produces usable actions.
func parseActions(content string) []string {
	var actions []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := listLine.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[1])
		}
		actions = append(actions, line)
		if len(actions) == 3 {
			break
		}
	}
	return actions
}
