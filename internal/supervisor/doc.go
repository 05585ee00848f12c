// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package supervisor runs FiscalFlow's long-lived background loops under a
suture v4 supervisor tree.

# Overview

Services are grouped into layers so a failure in one does not restart the
others:

	RootSupervisor ("fiscalflow")
	├── DataSupervisor ("data-layer")
	│   └── audit.Sweeper (retention)
	├── MonitoringSupervisor ("monitoring-layer")
	│   └── LifecycleService(sources.Monitor)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (if SERVER_ENABLED)

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog, whose slog.Logger is backed by zerolog via
logging.NewSlogHandler.

# Usage

	logger := slog.New(logging.NewSlogHandler())
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddDataService(audit.NewSweeper(recorder, cfg.Audit.Retention, cfg.Audit.SweepInterval))
	tree.AddMonitoringService(services.NewLifecycleService("source-health-monitor", monitor))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# Shutdown

Canceling ctx stops every layer. Each service gets ShutdownTimeout to
return; UnstoppedServiceReport lists the ones that did not.
*/
package supervisor
