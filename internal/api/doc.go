// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package api exposes FiscalFlow's admin HTTP surface on a chi router.

# Endpoints

	GET  /health/live
	GET  /metrics                                         Prometheus
	GET  /api/v1/sources                                  source health
	POST /api/v1/users/{userID}/sync                      trigger a sync
	POST /api/v1/users/{userID}/sync/{type}/enable        lift disable_sync
	GET  /api/v1/users/{userID}/interventions             ?status=pending
	POST /api/v1/users/{userID}/interventions/{id}/resolve
	GET  /api/v1/quarantine                               ?user_id=&include_released=
	POST /api/v1/quarantine/{id}/release
	GET  /api/v1/audit                                    filtered, paginated
	GET  /api/v1/audit/stats
	GET  /api/v1/audit/export                             ?format=json|csv
	GET  /api/v1/audit/investments/{investmentID}

JSON responses use the APIResponse envelope. Request bodies are validated
with the validation package's go-playground/validator singleton.

# Middleware

Every request gets a chi request ID, which doubles as the logging
correlation ID and is echoed in X-Request-ID. Client IP and user agent are
attached to the context so audit entries recorded while serving the request
carry them. /api/v1 is rate limited per IP with httprate and instrumented
per route pattern.

# Usage

	h := api.NewHandler(api.Deps{
	    Syncer:    syncService,
	    Selector:  selector,
	    Integrity: orchestrator,
	    Recorder:  recorder,
	    Sources:   sourceRegistry,
	})
	srv := &http.Server{Addr: ":8080", Handler: h.Router(api.DefaultMiddlewareConfig())}
*/
package api
