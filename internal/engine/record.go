// Package engine implements the aggregator: it triangulates the heuristic
// text signals, the external source scores and the generative advisory into
// one deterministic indicator record per turn, and keeps the per-session
// coherence ledger.
package engine

import "time"

// AgencySign classifies the system trajectory against the critical
// coherence threshold.
type AgencySign string

const (
	AgencyGrowth  AgencySign = "GROWTH"
	AgencyBraking AgencySign = "BRAKING"
)

// RiskTier buckets coherence against the two fixed cut points.
type RiskTier string

const (
	TierStable   RiskTier = "STABLE"
	TierCaution  RiskTier = "CAUTION"
	TierCritical RiskTier = "CRITICAL"
)

// Triangulation holds the five source quantities the magnitude is built
// from, each clamped to [0,10], plus the raw per-source scores and
// metadata behind the derived advisory score.
type Triangulation struct {
	UserIntensity float64
	ScienceSignal float64
	AIConsistency float64
	MarketScore   float64
	AdvisoryScore float64

	// Raw external scores feeding AdvisoryScore, kept for display.
	LiteratureScore   float64
	EncyclopediaScore float64

	// SourceMeta maps source name to its raw metadata (price, count,
	// extract length, ...). Nil entries mean the source fell back.
	SourceMeta map[string]map[string]string

	// Fallbacks lists the sources whose documented default was used,
	// including sources skipped because their domain was not selected.
	Fallbacks []string
}

// Verdict is the human-readable classification of a record.
type Verdict struct {
	Tier    RiskTier
	Summary string
}

// Record is one processed turn. It is immutable after construction and
// owned by the caller, which may archive or discard it.
type Record struct {
	Turn      int
	CreatedAt time.Time

	// Coherence is the primary stability scalar, always in (0,1].
	Coherence float64
	// Instability is the square root of the variance.
	Instability float64
	// AgencyTensionRatio is coherence normalized against the reference
	// constant.
	AgencyTensionRatio float64
	// ResidualTension is the reference constant minus coherence; may be
	// negative.
	ResidualTension float64

	AgencySign AgencySign
	Verdict    Verdict

	// Indicators holds the named secondary metrics (entropy,
	// cognitive_load, latency, reserve, drag, noise, repair, trust,
	// exposure, momentum). All values are finite.
	Indicators map[string]float64

	Triangulation Triangulation

	// Prescriptions is the ordered recommendation list. Never nil,
	// possibly a single static message.
	Prescriptions []string
}
