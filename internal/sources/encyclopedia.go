package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/signal"
)

const defaultEncyclopediaEndpoint = "https://en.wikipedia.org/api/rest_v1"

// EncyclopediaSource scores how much settled reference material exists for
// the topic, keyed by the opening words of the user's text. A longer
// summary extract means a better-documented topic.
type EncyclopediaSource struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// pageSummary is the subset of the Wikipedia REST summary we read.
type pageSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// NewEncyclopediaSource creates the encyclopedia adapter from config.
func NewEncyclopediaSource(cfg config.EndpointConfig) *EncyclopediaSource {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEncyclopediaEndpoint
	}
	return &EncyclopediaSource{
		endpoint: endpoint,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

func (s *EncyclopediaSource) Name() string { return "encyclopedia" }

func (s *EncyclopediaSource) Domain() signal.Domain { return signal.DomainEncyclopedia }

// Default is the documented fallback score 4.0.
func (s *EncyclopediaSource) Default() Result {
	return Result{Score: 4.0, Fallback: true}
}

// Fetch looks up the page summary for the first few words of the text and
// maps the extract length through a linear cap: min(10, len/80).
func (s *EncyclopediaSource) Fetch(ctx context.Context, query string) (Result, error) {
	title := titleFromQuery(query)
	if title == "" {
		return Result{}, fmt.Errorf("encyclopedia: empty query")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	u := fmt.Sprintf("%s/page/summary/%s", s.endpoint, url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("encyclopedia: create request: %w", err)
	}
	req.Header.Set("User-Agent", "nextmove/0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("encyclopedia: fetch summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("encyclopedia: HTTP %d", resp.StatusCode)
	}

	var summary pageSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return Result{}, fmt.Errorf("encyclopedia: decode summary: %w", err)
	}

	score := float64(len(summary.Extract)) / 80.0
	if score > 10 {
		score = 10
	}

	return Result{
		Score: score,
		Meta: map[string]string{
			"title":       summary.Title,
			"extract_len": fmt.Sprintf("%d", len(summary.Extract)),
		},
	}, nil
}

// titleFromQuery takes the first five words of the text as the lookup key.
func titleFromQuery(query string) string {
	words := strings.Fields(query)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}
