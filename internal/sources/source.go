// Package sources provides the external data source adapters for the
// triangulation pipeline: market quote, literature count and encyclopedia
// summary. Each adapter turns one flaky HTTP service into a bounded score
// in [0,10]; the fallback wrapper guarantees that no adapter failure ever
// escapes into the aggregator.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/hiddenpointz/Next-Move/internal/logging"
	"github.com/hiddenpointz/Next-Move/internal/signal"
)

// Result is one adapter's contribution to the triangulation.
type Result struct {
	Score    float64           // bounded to [0,10]
	Meta     map[string]string // raw metadata for the record, may be nil
	Fallback bool              // true when the documented default was substituted
}

// Adapter is the uniform contract for an external source. Fetch must
// respect ctx and return an error on any network, payload or protocol
// problem; converting that error into the default score is the wrapper's
// job, not the adapter's.
type Adapter interface {
	Name() string
	Domain() signal.Domain
	Default() Result
	Fetch(ctx context.Context, query string) (Result, error)
}

// FetchOrDefault runs one adapter under its timeout and converts every
// failure mode (error, timeout, panic, out-of-range score) into the
// adapter's documented default. This is the only call site the aggregator
// uses, so the error-suppression discipline lives in exactly one place.
func FetchOrDefault(ctx context.Context, a Adapter, query string, timeout time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("source adapter panicked", "source", a.Name(), "panic", fmt.Sprint(r))
			res = a.Default()
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Fetch(fetchCtx, query)
	if err != nil {
		logging.Warn("source adapter failed, using default",
			"source", a.Name(), "err", err, "elapsed", time.Since(start))
		return a.Default()
	}

	res.Score = clampScore(res.Score)
	logging.Debug("source adapter ok",
		"source", a.Name(), "score", res.Score, "elapsed", time.Since(start))
	return res
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
