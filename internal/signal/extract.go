// Package signal provides pure text heuristics: the keyword-density signal
// extractor and the external-data domain classifier. All functions are
// stateless: text in, bounded scores out. No side effects.
package signal

import "regexp"

// Triangulation is the heuristic signal set extracted from user text.
// All values are bounded: intensity and science in [1,10] via min(10, base+n),
// consistency in [1,10] via max(1, base-n). Absence of matches yields the
// base value, never zero.
type Triangulation struct {
	UserIntensity float64 // certainty-word density, base 5
	ScienceSignal float64 // evidence-word density, base 4
	AIConsistency float64 // base 8, reduced by hedge-word density
}

const (
	baseIntensity   = 5.0
	baseScience     = 4.0
	baseConsistency = 8.0
)

// Word-boundary matching so "but" does not count inside "button".
var (
	certaintyWords = regexp.MustCompile(`(?i)\b(definitely|must|always|never|guarantee|certain|absolutely|sure|obviously)\b`)
	evidenceWords  = regexp.MustCompile(`(?i)\b(research|study|studies|evidence|data|proof|proven|source|experiment|tested)\b`)
	hedgeWords     = regexp.MustCompile(`(?i)\b(but|maybe|risk|risky|might|perhaps|however|unsure|doubt|unless)\b`)
)

// Extract computes the heuristic triangulation for the given text.
// Hedge words reduce apparent consistency; certainty and evidence words
// raise intensity and science respectively.
func Extract(text string) Triangulation {
	certainty := len(certaintyWords.FindAllStringIndex(text, -1))
	evidence := len(evidenceWords.FindAllStringIndex(text, -1))
	hedges := len(hedgeWords.FindAllStringIndex(text, -1))

	return Triangulation{
		UserIntensity: capHigh(baseIntensity + float64(certainty)),
		ScienceSignal: capHigh(baseScience + float64(evidence)),
		AIConsistency: capLow(baseConsistency - float64(hedges)),
	}
}

func capHigh(v float64) float64 {
	if v > 10 {
		return 10
	}
	return v
}

func capLow(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}
