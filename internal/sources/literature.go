package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiddenpointz/Next-Move/internal/config"
	"github.com/hiddenpointz/Next-Move/internal/signal"
)

const defaultLiteratureEndpoint = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// LiteratureSource scores how much published research touches the user's
// text, via a PubMed search count. More literature = stronger evidence
// signal, compressed logarithmically so a thousand hits doesn't dominate.
type LiteratureSource struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// esearch is the subset of the eutils JSON response we read.
// Count arrives as a string, not a number.
type esearch struct {
	Result struct {
		Count string `json:"count"`
	} `json:"esearchresult"`
}

// NewLiteratureSource creates the literature adapter from config.
func NewLiteratureSource(cfg config.EndpointConfig) *LiteratureSource {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultLiteratureEndpoint
	}
	return &LiteratureSource{
		endpoint: endpoint,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(rate.Every(350*time.Millisecond), 1), // NCBI asks for <=3 rps without a key
	}
}

func (s *LiteratureSource) Name() string { return "literature" }

func (s *LiteratureSource) Domain() signal.Domain { return signal.DomainLiterature }

// Default is the documented fallback score 3.0.
func (s *LiteratureSource) Default() Result {
	return Result{Score: 3.0, Fallback: true}
}

// Fetch searches the publication database with the raw user text and maps
// the result count through min(10, ln(1+count)).
func (s *LiteratureSource) Fetch(ctx context.Context, query string) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	u := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&retmode=json&term=%s",
		s.endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, fmt.Errorf("literature: create request: %w", err)
	}
	req.Header.Set("User-Agent", "nextmove/0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("literature: fetch count: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("literature: HTTP %d", resp.StatusCode)
	}

	var parsed esearch
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("literature: decode response: %w", err)
	}

	count, err := strconv.Atoi(parsed.Result.Count)
	if err != nil {
		return Result{}, fmt.Errorf("literature: bad count %q: %w", parsed.Result.Count, err)
	}

	score := math.Min(10, math.Log(1+float64(count)))

	return Result{
		Score: score,
		Meta:  map[string]string{"count": strconv.Itoa(count)},
	}, nil
}
