package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hiddenpointz/Next-Move/internal/advisor"
	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/logging"
	"github.com/hiddenpointz/Next-Move/internal/signal"
	"github.com/hiddenpointz/Next-Move/internal/sources"
)

// ErrEmptyInput is returned by Process for blank text. It is the only
// error Process can return: every external failure degrades to a
// documented default instead.
var ErrEmptyInput = errors.New("engine: empty input text")

// defaultWeights backs the guard in New for malformed weight slices.
var defaultWeights = config.DefaultConfig().Engine.Weights

// Engine is the aggregator. It owns only its fixed configuration
// constants, its adapters and the session ledger; all state is explicit
// and caller-injected, nothing is ambient.
type Engine struct {
	cfg      config.EngineConfig
	adapters []sources.Adapter
	timeout  time.Duration
	advisor  *advisor.Advisor
	ledger   *Ledger
}

// New creates an Engine. The adapter slice is indexed by domain internally;
// passing no adapter for a domain means that domain always contributes its
// documented default. A nil advisor degrades to the static fallback message.
// A weight slice of the wrong length is replaced with the documented
// defaults, so a hand-edited config file cannot take down Process.
func New(cfg config.EngineConfig, adapters []sources.Adapter, timeout time.Duration, adv *advisor.Advisor) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if len(cfg.Weights) != len(defaultWeights) {
		cfg.Weights = defaultWeights
	}
	return &Engine{
		cfg:      cfg,
		adapters: adapters,
		timeout:  timeout,
		advisor:  adv,
		ledger:   NewLedger(),
	}
}

// Ledger exposes the session history ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// History returns the session's coherence sequence in call order.
func (e *Engine) History(sessionID string) []float64 {
	return e.ledger.History(sessionID)
}

// Process runs one full triangulation turn for the given session and text
// and returns the completed immutable record. Given non-empty text it
// always succeeds, regardless of the health of any external dependency.
func (e *Engine) Process(ctx context.Context, sessionID, text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	// Serialize same-session turns; other sessions proceed in parallel.
	sess := e.ledger.acquire(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Cheap synchronous signals first.
	tri := signal.Extract(text)
	domains := signal.Classify(text)

	// Fan out to the selected external sources.
	results := e.fetchSources(ctx, domains, text)

	record := e.assemble(tri, results)
	record.Turn = sess.nextTurn()

	// Advisory runs last: its prompt includes post-aggregation values.
	record.Prescriptions = e.advise(ctx, record)

	sess.append(record.Coherence)

	logging.Info("turn processed",
		"session", sessionID,
		"turn", record.Turn,
		"coherence", fmt.Sprintf("%.4f", record.Coherence),
		"tier", record.Verdict.Tier,
		"fallbacks", len(record.Triangulation.Fallbacks))

	return record, nil
}

// fetchSources runs the adapters whose domain was selected, concurrently
// and each under its own timeout. Unselected adapters are not called at
// all; their documented default is used directly. A slow adapter cannot
// block or cancel its siblings.
func (e *Engine) fetchSources(ctx context.Context, domains map[signal.Domain]bool, text string) map[signal.Domain]sources.Result {
	results := make(map[signal.Domain]sources.Result, len(e.adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, a := range e.adapters {
		if !domains[a.Domain()] {
			mu.Lock()
			results[a.Domain()] = a.Default()
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(a sources.Adapter) {
			defer wg.Done()
			res := sources.FetchOrDefault(ctx, a, text, e.timeout)
			mu.Lock()
			results[a.Domain()] = res
			mu.Unlock()
		}(a)
	}
	wg.Wait()

	// Domains with no registered adapter still need a neutral entry.
	for _, d := range []signal.Domain{signal.DomainMarket, signal.DomainLiterature, signal.DomainEncyclopedia} {
		if _, ok := results[d]; !ok {
			results[d] = builtinDefault(d)
		}
	}

	return results
}

// builtinDefault mirrors the documented per-source fallback constants for
// domains that have no adapter registered at all.
func builtinDefault(d signal.Domain) sources.Result {
	switch d {
	case signal.DomainMarket:
		return sources.Result{Score: 5.0, Meta: map[string]string{"volatility": "0.30"}, Fallback: true}
	case signal.DomainLiterature:
		return sources.Result{Score: 3.0, Fallback: true}
	default:
		return sources.Result{Score: 4.0, Fallback: true}
	}
}

// assemble computes the full indicator set from the triangulated inputs.
// Everything here is a fixed deterministic transform; the only clamping is
// the variance floor and the [0,10] bound on the advisory score.
func (e *Engine) assemble(tri signal.Triangulation, results map[signal.Domain]sources.Result) *Record {
	market := results[signal.DomainMarket]
	literature := results[signal.DomainLiterature]
	encyclopedia := results[signal.DomainEncyclopedia]

	advisoryScore := clamp10((literature.Score + encyclopedia.Score) / 2)

	w := e.cfg.Weights
	magnitude := w[0]*tri.UserIntensity +
		w[1]*tri.ScienceSignal +
		w[2]*tri.AIConsistency +
		w[3]*market.Score +
		w[4]*advisoryScore

	variance := (10 - magnitude) / e.cfg.VarianceDivisor
	if variance < 0.01 {
		variance = 0.01
	}

	// Exponent argument is non-negative, so coherence stays in (0,1].
	coherence := math.Exp(-(e.cfg.DecaySlope*variance + e.cfg.DecayOffset))

	sign := AgencyBraking
	if coherence >= e.cfg.OmegaCrit {
		sign = AgencyGrowth
	}

	triangulation := Triangulation{
		UserIntensity:     tri.UserIntensity,
		ScienceSignal:     tri.ScienceSignal,
		AIConsistency:     tri.AIConsistency,
		MarketScore:       market.Score,
		AdvisoryScore:     advisoryScore,
		LiteratureScore:   literature.Score,
		EncyclopediaScore: encyclopedia.Score,
		SourceMeta:        map[string]map[string]string{},
	}
	for name, res := range map[string]sources.Result{
		"market":       market,
		"literature":   literature,
		"encyclopedia": encyclopedia,
	} {
		if res.Fallback {
			triangulation.Fallbacks = append(triangulation.Fallbacks, name)
			continue
		}
		triangulation.SourceMeta[name] = res.Meta
	}

	return &Record{
		CreatedAt:          time.Now(),
		Coherence:          coherence,
		Instability:        math.Sqrt(variance),
		AgencyTensionRatio: (coherence / e.cfg.OmegaRef) * 1.2,
		ResidualTension:    e.cfg.OmegaRef - coherence,
		AgencySign:         sign,
		Verdict:            e.verdict(coherence, sign),
		Indicators: map[string]float64{
			"entropy":        0.7 * variance,
			"cognitive_load": 0.5 * tri.UserIntensity,
			"latency":        0.4 * (10 - market.Score),
			"reserve":        0.6 * tri.ScienceSignal,
			"drag":           0.3 * (10 - tri.AIConsistency),
			"noise":          0.2 * tri.UserIntensity,
			"repair":         0.5 * tri.AIConsistency,
			"trust":          0.4 * tri.ScienceSignal,
			"exposure":       0.2 * (10 - advisoryScore),
			"momentum":       1.1 * coherence,
		},
		Triangulation: triangulation,
	}
}

func (e *Engine) verdict(coherence float64, sign AgencySign) Verdict {
	switch {
	case coherence >= e.cfg.StabilityThreshold:
		return Verdict{Tier: TierStable, Summary: "Coherence is in the stable band; conditions support the current course."}
	case coherence >= e.cfg.CautionThreshold:
		if sign == AgencyGrowth {
			return Verdict{Tier: TierCaution, Summary: "Coherence is holding above the critical threshold but has limited margin."}
		}
		return Verdict{Tier: TierCaution, Summary: "Coherence is degrading; the trajectory has turned toward braking."}
	default:
		return Verdict{Tier: TierCritical, Summary: "Coherence is below the caution band; prioritize the prescribed actions."}
	}
}

func (e *Engine) advise(ctx context.Context, record *Record) []string {
	if e.advisor == nil {
		return []string{advisor.FallbackMessage}
	}
	return e.advisor.Advise(ctx, advisor.Snapshot{
		Coherence:     record.Coherence,
		CognitiveLoad: record.Indicators["cognitive_load"],
		Reserve:       record.Indicators["reserve"],
		MarketScore:   record.Triangulation.MarketScore,
	})
}

func clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
