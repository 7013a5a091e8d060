package engine

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/signal"
	"github.com/hiddenpointz/Next-Move/internal/sources"
)

// testAdapter is a controllable sources.Adapter.
type testAdapter struct {
	domain signal.Domain
	def    sources.Result
	score  float64
	err    error
	calls  int
	delay  time.Duration
}

func (a *testAdapter) Name() string          { return string(a.domain) }
func (a *testAdapter) Domain() signal.Domain { return a.domain }
func (a *testAdapter) Default() sources.Result {
	d := a.def
	d.Fallback = true
	return d
}
func (a *testAdapter) Fetch(ctx context.Context, _ string) (sources.Result, error) {
	a.calls++
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return sources.Result{}, ctx.Err()
		}
	}
	if a.err != nil {
		return sources.Result{}, a.err
	}
	return sources.Result{Score: a.score}, nil
}

func defaultAdapters() (market, literature, encyclopedia *testAdapter) {
	market = &testAdapter{domain: signal.DomainMarket, def: sources.Result{Score: 5.0}, score: 7.0}
	literature = &testAdapter{domain: signal.DomainLiterature, def: sources.Result{Score: 3.0}, score: 6.0}
	encyclopedia = &testAdapter{domain: signal.DomainEncyclopedia, def: sources.Result{Score: 4.0}, score: 8.0}
	return
}

func newTestEngine(adapters ...sources.Adapter) *Engine {
	return New(config.DefaultConfig().Engine, adapters, time.Second, nil)
}

func TestProcessEmptyText(t *testing.T) {
	e := newTestEngine()

	if _, err := e.Process(context.Background(), "s1", "   "); err != ErrEmptyInput {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if got := e.History("s1"); len(got) != 0 {
		t.Errorf("history must be unchanged after no-op, got %v", got)
	}
}

func TestProcessNeutralText(t *testing.T) {
	// No extractor keywords, no domain keywords: base triangulation,
	// no adapter called, all external scores at their fallback defaults.
	market, literature, encyclopedia := defaultAdapters()
	e := newTestEngine(market, literature, encyclopedia)

	rec, err := e.Process(context.Background(), "s1", "the weather was mild today")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if market.calls+literature.calls+encyclopedia.calls != 0 {
		t.Error("no adapter should be called for a domainless text")
	}

	tri := rec.Triangulation
	if tri.UserIntensity != 5 || tri.ScienceSignal != 4 || tri.AIConsistency != 8 {
		t.Errorf("expected base triangulation 5/4/8, got %+v", tri)
	}
	if tri.MarketScore != 5.0 || tri.LiteratureScore != 3.0 || tri.EncyclopediaScore != 4.0 {
		t.Errorf("expected fallback scores 5/3/4, got %+v", tri)
	}
	if len(tri.Fallbacks) != 3 {
		t.Errorf("expected all three sources marked as fallbacks, got %v", tri.Fallbacks)
	}

	// Deterministic numeric path for the documented constants.
	magnitude := 0.25*5 + 0.20*4 + 0.15*8 + 0.20*5 + 0.20*3.5
	variance := (10 - magnitude) / 4
	wantCoherence := math.Exp(-(0.4*variance + 0.3))
	if math.Abs(rec.Coherence-wantCoherence) > 1e-12 {
		t.Errorf("expected coherence %v, got %v", wantCoherence, rec.Coherence)
	}
	if math.Abs(rec.Instability-math.Sqrt(variance)) > 1e-12 {
		t.Errorf("instability should be sqrt(variance)")
	}
}

func TestProcessAllAdaptersFailing(t *testing.T) {
	market, literature, encyclopedia := defaultAdapters()
	market.err = fmt.Errorf("connection refused")
	literature.err = fmt.Errorf("HTTP 500")
	encyclopedia.err = fmt.Errorf("malformed payload")
	e := newTestEngine(market, literature, encyclopedia)

	// Text selects all three domains, so all three adapters are tried.
	rec, err := e.Process(context.Background(), "s1",
		"what is the evidence that crypto prices follow the economy")
	if err != nil {
		t.Fatalf("Process must not fail when every adapter fails: %v", err)
	}

	tri := rec.Triangulation
	if tri.MarketScore != 5.0 {
		t.Errorf("expected market fallback 5.0, got %v", tri.MarketScore)
	}
	if tri.LiteratureScore != 3.0 {
		t.Errorf("expected literature fallback 3.0, got %v", tri.LiteratureScore)
	}
	if tri.EncyclopediaScore != 4.0 {
		t.Errorf("expected encyclopedia fallback 4.0, got %v", tri.EncyclopediaScore)
	}
	assertInvariants(t, rec)
}

func TestProcessSlowAdapterTimesOut(t *testing.T) {
	market, literature, encyclopedia := defaultAdapters()
	market.delay = 5 * time.Second
	e := New(config.DefaultConfig().Engine,
		[]sources.Adapter{market, literature, encyclopedia}, 50*time.Millisecond, nil)

	start := time.Now()
	rec, err := e.Process(context.Background(), "s1", "research on stock market history")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("slow adapter blocked the pipeline for %v", elapsed)
	}
	if rec.Triangulation.MarketScore != 5.0 {
		t.Errorf("timed-out adapter must fall back, got %v", rec.Triangulation.MarketScore)
	}
	// Siblings were not cancelled by the slow adapter.
	if rec.Triangulation.LiteratureScore != 6.0 {
		t.Errorf("expected live literature score 6.0, got %v", rec.Triangulation.LiteratureScore)
	}
}

func TestProcessInvariantsAcrossInputs(t *testing.T) {
	market, literature, encyclopedia := defaultAdapters()
	e := newTestEngine(market, literature, encyclopedia)

	texts := []string{
		"x",
		"I must definitely invest, I guarantee it, but there is risk",
		"research research research evidence evidence data proof study",
		"but maybe risk might perhaps however unsure doubt",
		"what is the history of the stock market economy definition",
	}

	for i, text := range texts {
		rec, err := e.Process(context.Background(), fmt.Sprintf("s%d", i), text)
		if err != nil {
			t.Fatalf("Process(%q) failed: %v", text, err)
		}
		assertInvariants(t, rec)
	}
}

func assertInvariants(t *testing.T, rec *Record) {
	t.Helper()

	if !(rec.Coherence > 0 && rec.Coherence <= 1) {
		t.Errorf("coherence %v outside (0,1]", rec.Coherence)
	}
	if rec.Instability < 0.1 { // sqrt(0.01)
		t.Errorf("instability %v below floor", rec.Instability)
	}
	for name, v := range rec.Indicators {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("indicator %s is not finite: %v", name, v)
		}
	}
	if len(rec.Prescriptions) == 0 {
		t.Error("prescriptions must never be empty")
	}

	want := AgencyBraking
	if rec.Coherence >= 0.368 {
		want = AgencyGrowth
	}
	if rec.AgencySign != want {
		t.Errorf("agency sign %s inconsistent with coherence %v", rec.AgencySign, rec.Coherence)
	}
}

func TestProcessMalformedWeights(t *testing.T) {
	// A hand-edited config file can carry a weight slice of any length;
	// the engine must substitute the documented defaults, not panic.
	cfg := config.DefaultConfig().Engine
	cfg.Weights = []float64{0.5, 0.5}
	e := New(cfg, nil, time.Second, nil)

	rec, err := e.Process(context.Background(), "s1", "the weather was mild today")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Same numeric path as the default-weight neutral-text case.
	magnitude := 0.25*5 + 0.20*4 + 0.15*8 + 0.20*5 + 0.20*3.5
	variance := (10 - magnitude) / 4
	wantCoherence := math.Exp(-(0.4*variance + 0.3))
	if math.Abs(rec.Coherence-wantCoherence) > 1e-12 {
		t.Errorf("expected default-weight coherence %v, got %v", wantCoherence, rec.Coherence)
	}
	assertInvariants(t, rec)
}

func TestAgencySignBoundary(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	e := New(cfg, nil, time.Second, nil)

	// Drive assemble directly so the boundary can be pinned exactly:
	// set the critical threshold to the coherence this input produces.
	tri := signal.Extract("plain text")
	rec := e.assemble(tri, e.fetchSources(context.Background(), nil, ""))

	e.cfg.OmegaCrit = rec.Coherence
	at := e.assemble(tri, e.fetchSources(context.Background(), nil, ""))
	if at.AgencySign != AgencyGrowth {
		t.Errorf("coherence equal to the threshold must classify as GROWTH")
	}

	e.cfg.OmegaCrit = rec.Coherence + 1e-9
	above := e.assemble(tri, e.fetchSources(context.Background(), nil, ""))
	if above.AgencySign != AgencyBraking {
		t.Errorf("coherence below the threshold must classify as BRAKING")
	}
}

func TestTurnNumbering(t *testing.T) {
	e := newTestEngine()

	for want := 1; want <= 3; want++ {
		rec, err := e.Process(context.Background(), "alpha", "some text")
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if rec.Turn != want {
			t.Errorf("expected turn %d, got %d", want, rec.Turn)
		}
	}

	// Independent session starts at 1 again.
	rec, err := e.Process(context.Background(), "beta", "other text")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if rec.Turn != 1 {
		t.Errorf("new session should start at turn 1, got %d", rec.Turn)
	}
}

func TestHistoryMatchesRecords(t *testing.T) {
	e := newTestEngine()

	var want []float64
	inputs := []string{"first turn", "definitely the second", "third, but risky"}
	for _, text := range inputs {
		rec, err := e.Process(context.Background(), "s1", text)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		want = append(want, rec.Coherence)
	}

	got := e.History("s1")
	if len(got) != len(want) {
		t.Fatalf("expected history length %d, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %v, want record coherence %v", i, got[i], want[i])
		}
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	e := newTestEngine()
	if got := e.History("nope"); got == nil || len(got) != 0 {
		t.Errorf("unknown session should yield empty non-nil history, got %v", got)
	}
}

func TestVerdictTiers(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		coherence float64
		want      RiskTier
	}{
		{0.80, TierStable},
		{0.70, TierStable},
		{0.60, TierCaution},
		{0.50, TierCaution},
		{0.40, TierCritical},
		{0.10, TierCritical},
	}
	for _, tt := range tests {
		if got := e.verdict(tt.coherence, AgencyGrowth).Tier; got != tt.want {
			t.Errorf("verdict(%v) = %s, want %s", tt.coherence, got, tt.want)
		}
	}
}

func TestNilAdvisorFallsBack(t *testing.T) {
	e := newTestEngine()
	rec, err := e.Process(context.Background(), "s1", "text")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(rec.Prescriptions) != 1 {
		t.Errorf("expected single fallback prescription, got %v", rec.Prescriptions)
	}
}
