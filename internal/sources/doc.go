// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package sources tracks the health of upstream data providers and resolves a
primary provider to the best currently available alternate.

Every source owns a circuit breaker (from a resilience.BreakerRegistry), an
optional token-bucket rate limiter and a health entry. A source turns
unhealthy after a configurable number of consecutive failures (3 by default)
and recovers on the first success. The uptime score is an exponential moving
average of call and probe outcomes on a 0-100 scale.

Health entries older than the check interval are refreshed lazily with a
liveness probe when a caller asks about them. A Monitor refreshes all of them
in the background and runs either standalone (Start/Stop) or as a suture
service (Serve).

Fallback execution:

	quote, source, err := sources.ExecuteWithFallback(ctx, registry, "yahoo_finance",
		func(ctx context.Context, source string) (Quote, error) {
			return providers.Fetch(ctx, source, symbol)
		},
		sources.FallbackOptions{MaxFallbacks: 2, Retry: resilience.DefaultRetryConfig()})

When every attempted source fails, err is an *AllSourcesFailedError whose
message names all of them.
*/
package sources
