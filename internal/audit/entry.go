// Package audit is the append-only, hash-chained decision log. Every
// governed decision for an agent is one link in that agent's chain; a
// retroactive edit to any stored entry is detectable by re-walking it.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/vorion/trustgate/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new agent chain.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// ContentHash computes the deterministic digest of a decision entry over
// all fields except ContentHash itself. The JSON is canonicalized
// (RFC 8785) before hashing so the digest does not depend on field order
// or encoder quirks.
func ContentHash(entry *model.DecisionEntry) (string, error) {
	cp := *entry
	cp.ContentHash = ""

	raw, err := json.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("audit: marshal entry: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize entry: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
