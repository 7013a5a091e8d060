package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/signal"
)

func TestMarketFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Finnhub-Token") != "test-key" {
			t.Errorf("missing auth header")
		}
		if got := r.URL.Query().Get("symbol"); got != "SPY" {
			t.Errorf("expected symbol SPY, got %s", got)
		}
		fmt.Fprint(w, `{"c": 450.12, "d": 4.5, "dp": 1.5, "pc": 445.62}`)
	}))
	defer server.Close()

	src := NewMarketSource(config.MarketConfig{Endpoint: server.URL, APIKey: "test-key"})
	res, err := src.Fetch(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if res.Score != 6.5 {
		t.Errorf("expected score 5+1.5=6.5, got %v", res.Score)
	}
	if res.Meta["volatility"] != "0.15" {
		t.Errorf("expected volatility 0.15, got %s", res.Meta["volatility"])
	}
	if res.Fallback {
		t.Error("successful fetch should not be marked as fallback")
	}
}

func TestMarketFetchNoKey(t *testing.T) {
	src := NewMarketSource(config.MarketConfig{})
	if _, err := src.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error when no API key configured")
	}
}

func TestMarketFetchBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer server.Close()

	src := NewMarketSource(config.MarketConfig{Endpoint: server.URL, APIKey: "k"})
	if _, err := src.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error on malformed payload")
	}
}

func TestMarketDefault(t *testing.T) {
	def := NewMarketSource(config.MarketConfig{}).Default()
	if def.Score != 5.0 {
		t.Errorf("expected neutral default 5.0, got %v", def.Score)
	}
	if def.Meta["volatility"] != "0.30" {
		t.Errorf("expected default volatility 0.30, got %s", def.Meta["volatility"])
	}
	if !def.Fallback {
		t.Error("default must be marked as fallback")
	}
}

func TestLiteratureFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("db"); got != "pubmed" {
			t.Errorf("expected db=pubmed, got %s", got)
		}
		fmt.Fprint(w, `{"esearchresult": {"count": "99"}}`)
	}))
	defer server.Close()

	src := NewLiteratureSource(config.EndpointConfig{Endpoint: server.URL})
	res, err := src.Fetch(context.Background(), "sleep deprivation")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	want := math.Log(100)
	if math.Abs(res.Score-want) > 1e-9 {
		t.Errorf("expected score ln(1+99)=%v, got %v", want, res.Score)
	}
	if res.Meta["count"] != "99" {
		t.Errorf("expected count metadata 99, got %s", res.Meta["count"])
	}
}

func TestLiteratureFetchHugeCountCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult": {"count": "50000000"}}`)
	}))
	defer server.Close()

	src := NewLiteratureSource(config.EndpointConfig{Endpoint: server.URL})
	res, err := src.Fetch(context.Background(), "cells")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Score != 10 {
		t.Errorf("expected score capped at 10, got %v", res.Score)
	}
}

func TestLiteratureFetchBadCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult": {"count": "not-a-number"}}`)
	}))
	defer server.Close()

	src := NewLiteratureSource(config.EndpointConfig{Endpoint: server.URL})
	if _, err := src.Fetch(context.Background(), "x"); err == nil {
		t.Error("expected error on non-numeric count")
	}
}

func TestEncyclopediaFetch(t *testing.T) {
	extract := ""
	for i := 0; i < 40; i++ {
		extract += "0123456789" // 400 chars total
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"title": "Rome", "extract": %q}`, extract)
	}))
	defer server.Close()

	src := NewEncyclopediaSource(config.EndpointConfig{Endpoint: server.URL})
	res, err := src.Fetch(context.Background(), "what is the history of rome exactly")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Score != 5.0 {
		t.Errorf("expected score 400/80=5.0, got %v", res.Score)
	}
}

func TestEncyclopediaTitleTruncation(t *testing.T) {
	if got := titleFromQuery("one two three four five six seven"); got != "one two three four five" {
		t.Errorf("expected first five words, got %q", got)
	}
}

func TestEncyclopediaFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	src := NewEncyclopediaSource(config.EndpointConfig{Endpoint: server.URL})
	if _, err := src.Fetch(context.Background(), "obscure thing"); err == nil {
		t.Error("expected error on HTTP 404")
	}
}

// stubAdapter lets the wrapper tests force specific behaviors.
type stubAdapter struct {
	fetch func(ctx context.Context, query string) (Result, error)
}

func (s *stubAdapter) Name() string          { return "stub" }
func (s *stubAdapter) Domain() signal.Domain { return signal.DomainMarket }
func (s *stubAdapter) Default() Result       { return Result{Score: 5.0, Fallback: true} }
func (s *stubAdapter) Fetch(ctx context.Context, query string) (Result, error) {
	return s.fetch(ctx, query)
}

func TestFetchOrDefaultError(t *testing.T) {
	a := &stubAdapter{fetch: func(context.Context, string) (Result, error) {
		return Result{}, fmt.Errorf("boom")
	}}
	res := FetchOrDefault(context.Background(), a, "q", time.Second)
	if !res.Fallback || res.Score != 5.0 {
		t.Errorf("expected default on error, got %+v", res)
	}
}

func TestFetchOrDefaultTimeout(t *testing.T) {
	a := &stubAdapter{fetch: func(ctx context.Context, _ string) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	start := time.Now()
	res := FetchOrDefault(context.Background(), a, "q", 50*time.Millisecond)
	if !res.Fallback {
		t.Errorf("expected default on timeout, got %+v", res)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not enforced")
	}
}

func TestFetchOrDefaultPanic(t *testing.T) {
	a := &stubAdapter{fetch: func(context.Context, string) (Result, error) {
		panic("adapter bug")
	}}
	res := FetchOrDefault(context.Background(), a, "q", time.Second)
	if !res.Fallback || res.Score != 5.0 {
		t.Errorf("expected default on panic, got %+v", res)
	}
}

func TestFetchOrDefaultClampsScore(t *testing.T) {
	a := &stubAdapter{fetch: func(context.Context, string) (Result, error) {
		return Result{Score: 42}, nil
	}}
	res := FetchOrDefault(context.Background(), a, "q", time.Second)
	if res.Score != 10 {
		t.Errorf("expected score clamped to 10, got %v", res.Score)
	}
}
