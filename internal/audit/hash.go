// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// DataHash returns the SHA-256 hex digest of v's canonical JSON form. Struct
// values are first re-encoded as generic maps so that object keys are sorted
// and the digest does not depend on field declaration order.
func DataHash(v any) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	return hashBytes(canonical), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// normalizeDetails converts details to plain JSON values and returns them with
// their canonical encoding. A nil map becomes an empty one.
func normalizeDetails(details map[string]any) (map[string]any, []byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, nil, err
	}
	normalized := map[string]any{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, nil, err
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return nil, nil, err
	}
	return normalized, canonical, nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
