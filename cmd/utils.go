package cmd

import (
	"fmt"
	"strings"

	"github.com/surge-downloader/coursedl/internal/engine/state"
)

// resolveHistoryID expands a short ID prefix, as printed by `history`,
// to the full ledger ID.
func resolveHistoryID(partialID string) (string, error) {
	if len(partialID) >= 32 {
		return partialID, nil // Already a full UUID
	}

	entries, err := state.ListAllDownloads()
	if err != nil {
		return "", fmt.Errorf("reading history: %w", err)
	}
	candidates := make([]string, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, e.ID)
	}
	return resolveIDFromCandidates(partialID, candidates)
}

func resolveIDFromCandidates(partialID string, candidates []string) (string, error) {
	var matches []string
	seen := make(map[string]bool)

	for _, id := range candidates {
		if strings.HasPrefix(id, partialID) && !seen[id] {
			matches = append(matches, id)
			seen[id] = true
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous ID prefix '%s' matches %d entries", partialID, len(matches))
	}

	return partialID, nil // No match, use as-is (will fail with "not found" later)
}
