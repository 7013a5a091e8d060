package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/signal"
)

const defaultMarketEndpoint = "https://finnhub.io/api/v1"

// MarketSource scores current market conditions from a live quote.
// The score is neutral (5) at zero daily change and moves with the percent
// change; volatility metadata tracks the magnitude of the move.
type MarketSource struct {
	endpoint string
	symbol   string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

// marketQuote is the Finnhub quote payload.
type marketQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	PreviousClose float64 `json:"pc"`
}

// NewMarketSource creates the market adapter from config.
func NewMarketSource(cfg config.MarketConfig) *MarketSource {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultMarketEndpoint
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = "SPY"
	}
	return &MarketSource{
		endpoint: endpoint,
		symbol:   symbol,
		apiKey:   cfg.APIKey,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1), // free tier: 60 RPM
	}
}

func (s *MarketSource) Name() string { return "market" }

func (s *MarketSource) Domain() signal.Domain { return signal.DomainMarket }

// Default is the documented neutral fallback: score 5.0, volatility 0.3.
func (s *MarketSource) Default() Result {
	return Result{
		Score:    5.0,
		Meta:     map[string]string{"volatility": "0.30"},
		Fallback: true,
	}
}

// Fetch queries the quote endpoint for the configured symbol. The user
// text is not part of the query; the market signal is ambient.
func (s *MarketSource) Fetch(ctx context.Context, _ string) (Result, error) {
	if s.apiKey == "" {
		return Result{}, fmt.Errorf("market: no API key configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	u := fmt.Sprintf("%s/quote?symbol=%s", s.endpoint, url.QueryEscape(s.symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("market: create request: %w", err)
	}
	req.Header.Set("X-Finnhub-Token", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("market: fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("market: HTTP %d", resp.StatusCode)
	}

	var quote marketQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return Result{}, fmt.Errorf("market: decode quote: %w", err)
	}
	if quote.Current <= 0 {
		return Result{}, fmt.Errorf("market: empty quote for %s", s.symbol)
	}

	// Neutral at zero change, pushed up or down by the day's move.
	score := clampScore(5.0 + quote.ChangePercent)
	volatility := math.Min(1.0, math.Abs(quote.ChangePercent)/10.0)

	return Result{
		Score: score,
		Meta: map[string]string{
			"symbol":     s.symbol,
			"price":      fmt.Sprintf("%.2f", quote.Current),
			"change_pct": fmt.Sprintf("%.2f", quote.ChangePercent),
			"volatility": fmt.Sprintf("%.2f", volatility),
		},
	}, nil
}
