// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
)

// maxErrorBodySize limits how much of an error response is read for reporting.
const maxErrorBodySize = 64 * 1024

// HTTPJSONConfig configures an HTTPJSONProvider.
type HTTPJSONConfig struct {
	BaseURL   string
	Path      string // Default: /v1/quotes
	HealthURL string // HEAD target for IsAvailable; defaults to BaseURL
	APIKey    string // Sent as X-API-Key when set
	BatchSize int    // Identifiers per request; default 50
	Timeout   time.Duration
	Limits    RateLimits
}

// HTTPJSONProvider fetches values from a JSON quote endpoint:
//
//	GET {base}{path}?ids=A,B&type=mutual_fund
//	{"data": [{"identifier": "A", "fields": {"nav": 10.2}, "as_of": "..."}]}
//
// Non-2xx responses are returned as *resilience.HTTPError so the retry
// executor and the error classifier see the status and Retry-After hint.
type HTTPJSONProvider struct {
	name   string
	cfg    HTTPJSONConfig
	client *http.Client
}

type quoteEnvelope struct {
	Data  []RawRecord `json:"data"`
	Error string      `json:"error,omitempty"`
}

// NewHTTPJSONProvider creates a provider named name. A nil client gets one
// with cfg.Timeout (30s by default).
func NewHTTPJSONProvider(name string, cfg HTTPJSONConfig, client *http.Client) *HTTPJSONProvider {
	if cfg.Path == "" {
		cfg.Path = "/v1/quotes"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = cfg.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPJSONProvider{name: name, cfg: cfg, client: client}
}

// Name implements Provider.
func (p *HTTPJSONProvider) Name() string { return p.name }

// RateLimits implements Provider.
func (p *HTTPJSONProvider) RateLimits() RateLimits { return p.cfg.Limits }

// IsAvailable implements Provider. Any answer below 500 counts as alive.
func (p *HTTPJSONProvider) IsAvailable(ctx context.Context) bool {
	if p.cfg.HealthURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.HealthURL, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// FetchData implements Provider. Identifiers are requested in batches; the
// first failing batch aborts the fetch.
func (p *HTTPJSONProvider) FetchData(ctx context.Context, identifiers []string, opts FetchOptions) ([]RawRecord, error) {
	out := make([]RawRecord, 0, len(identifiers))
	for start := 0; start < len(identifiers); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(identifiers) {
			end = len(identifiers)
		}
		batch, err := p.fetchBatch(ctx, identifiers[start:end], opts)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (p *HTTPJSONProvider) fetchBatch(ctx context.Context, ids []string, opts FetchOptions) ([]RawRecord, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	if opts.InvestmentType != "" {
		params.Set("type", string(opts.InvestmentType))
	}
	reqURL := fmt.Sprintf("%s%s?%s", p.cfg.BaseURL, p.cfg.Path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPError(resp, readBodyForError(resp.Body))
	}

	var env quoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, models.NewSyncError(models.ErrorDataParsingFailed,
			fmt.Sprintf("failed to parse %s response: %v", p.name, err))
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%s reported an error: %s", p.name, env.Error)
	}
	return env.Data, nil
}

// ValidateData implements Provider.
func (p *HTTPJSONProvider) ValidateData(records []RawRecord) bool {
	return ValidateRaw(records)
}

// TransformData implements Provider.
func (p *HTTPJSONProvider) TransformData(records []RawRecord) ([]models.Record, error) {
	return TransformRaw(p.name, records)
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}
