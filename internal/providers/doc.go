// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package providers defines the boundary to upstream data sources.

A Provider fetches raw values for a list of instrument identifiers, checks
them and turns them into models.Record values. Wire formats of individual
vendors stay behind this interface; HTTPJSONProvider speaks a generic JSON
quote endpoint and reports non-2xx answers as *resilience.HTTPError.

The Registry maps source names to providers and each investment type to its
primary source. It also implements sources.Prober, so the health monitor can
probe providers directly.
*/
package providers
