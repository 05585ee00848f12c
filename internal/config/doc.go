// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package config loads FiscalFlow configuration with Koanf v2.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. Built-in defaults (structs provider)
//  2. Optional YAML file: CONFIG_PATH, ./config.yaml or /etc/fiscalflow/config.yaml
//  3. Environment variables, through an explicit mapping table
//
// Example config.yaml:
//
//	retry:
//	  max_attempts: 4
//	  base_delay: 2s
//	health:
//	  fallbacks:
//	    yahoo_finance: [nse]
//	sources:
//	  amfi:
//	    base_url: https://portal.amfiindia.com
//
// Per-source values can also be overridden with SOURCE_<NAME>_<FIELD>
// (SOURCE_AMFI_BASE_URL). The fallback graph is file-only.
package config
