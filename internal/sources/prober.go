// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoProbeTarget is returned by a Prober that has nothing to probe for a source.
var ErrNoProbeTarget = errors.New("no probe target configured")

// Prober checks whether a source is reachable.
type Prober interface {
	Probe(ctx context.Context, source string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, source string) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, source string) error {
	return f(ctx, source)
}

// HTTPProber probes sources with a HEAD request. Any response below 500 counts
// as alive: many providers reject HEAD on their API root with 4xx, which
// still proves the host answers.
type HTTPProber struct {
	client  *http.Client
	targets map[string]string
}

// NewHTTPProber creates a prober for the given source -> URL targets.
func NewHTTPProber(client *http.Client, targets map[string]string) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	t := make(map[string]string, len(targets))
	for source, url := range targets {
		if url != "" {
			t[source] = url
		}
	}
	return &HTTPProber{client: client, targets: t}
}

// Probe issues one HEAD request to the source's target.
func (p *HTTPProber) Probe(ctx context.Context, source string) error {
	target, ok := p.targets[source]
	if !ok {
		return ErrNoProbeTarget
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
