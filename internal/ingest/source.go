// Package ingest implements the scheduled market-data pipeline: it pulls
// recent daily closes from a quote source into the price store and derives
// technical indicators from the updated history.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Bar is a single daily close observation for a symbol.
type Bar struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
}

// Source supplies daily close bars for a symbol set over an inclusive
// date range (YYYY-MM-DD).
type Source interface {
	DailyCloses(ctx context.Context, symbols []string, start, end string) ([]Bar, error)
}

// HTTPSource fetches bars from a JSON quote endpoint.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPSource creates a source for the given quote service base URL.
func NewHTTPSource(baseURL string, log zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "quotes").Logger(),
	}
}

// DailyCloses requests bars for the symbols from the quote service.
func (s *HTTPSource) DailyCloses(ctx context.Context, symbols []string, start, end string) ([]Bar, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("start", start)
	params.Set("end", end)
	endpoint := s.baseURL + "/v1/daily?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	s.log.Debug().Int("symbols", len(symbols)).Str("start", start).Str("end", end).Msg("Fetching daily closes")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Prices []Bar `json:"prices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}

	return payload.Prices, nil
}
