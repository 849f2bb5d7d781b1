package audit

import (
	"context"
	"fmt"
)

// VerifyResult holds the outcome of a chain verification.
// Valid=true with Length=0 means an empty chain, not tampering; the two
// must never be conflated when surfaced to operators.
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Length   int    `json:"length"`
	BrokenAt int    `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// VerifyChain re-walks an agent's chain between zero-based positions
// from and to (to == 0 means to the end), recomputing every content hash
// and checking every prev_hash link. It returns the first mismatch
// position, or Valid=true if the range is intact.
func (s *Service) VerifyChain(ctx context.Context, agentID string, from, to int) (VerifyResult, error) {
	if from < 0 {
		from = 0
	}

	entries, err := s.store.Decisions(ctx, agentID, from, to)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("audit: read chain: %w", err)
	}

	// Anchor a mid-chain range on the entry preceding it so the first
	// prev_hash link is still checkable.
	expectedPrev := GenesisHash
	if from > 0 {
		anchor, err := s.store.Decisions(ctx, agentID, from-1, from)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("audit: read anchor: %w", err)
		}
		if len(anchor) == 1 {
			expectedPrev = anchor[0].ContentHash
		}
	}

	for i, entry := range entries {
		pos := from + i

		recomputed, err := ContentHash(entry)
		if err != nil {
			return VerifyResult{}, err
		}
		if recomputed != entry.ContentHash {
			return VerifyResult{
				Length:   len(entries),
				BrokenAt: pos,
				Reason: fmt.Sprintf("content hash mismatch at position %d: stored %s, recomputed %s",
					pos, entry.ContentHash, recomputed),
			}, nil
		}

		if entry.PrevHash != expectedPrev {
			return VerifyResult{
				Length:   len(entries),
				BrokenAt: pos,
				Reason: fmt.Sprintf("prev hash mismatch at position %d: stored %s, expected %s",
					pos, entry.PrevHash, expectedPrev),
			}, nil
		}

		expectedPrev = entry.ContentHash
	}

	return VerifyResult{Valid: true, Length: len(entries)}, nil
}
