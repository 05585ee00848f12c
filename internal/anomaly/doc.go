// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package anomaly detects suspicious but valid investment values.

It runs only on records that already passed validation. An Engine holds a
list of Detector implementations and folds their findings into a
models.AnomalyResult whose severity is the maximum of its anomalies.

Built-in detectors:

  - threshold: change from the persisted value beyond a per-type extreme
    limit (mutual_fund 25%, stock 50%, epf 30%, sip 25%). High, quarantines.
  - zscore: distance of the incoming value from the history mean, with at
    least three points. |z| > 2 is medium; |z| > 3 is high and quarantines.
  - volatility: standard deviation of step returns over at least five points
    (medium above the type limit) and a last-step return more than three
    sigma from the mean return (high).
  - structural: suspended stocks without volume, EPF balance decreases and
    fund unit changes that leave value unchanged.

Detection is a pure function of (record, current, history); the engine never
mutates its inputs.
*/
package anomaly
