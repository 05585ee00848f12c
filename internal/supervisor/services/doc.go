// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package services adapts components with their own lifecycle to suture's
Serve(ctx) error contract.

  - HTTPServerService wraps ListenAndServe/Shutdown with a drain timeout.
  - LifecycleService wraps Start/Stop components such as sources.Monitor.

Components that already implement Serve (audit.Sweeper) are added to the
tree directly.
*/
package services
