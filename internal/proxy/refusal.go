package proxy

import "github.com/Skelf-Research/checkstream-sub000/internal/config"

// defaultRefusalText is used when the triggering classifier has no
// configured refusal_text (SPEC_FULL.md §12, "structured refusal text
// catalog").
const defaultRefusalText = "This request was blocked by content policy."

// defaultAugmentText is prepended on an Augment decision whose triggering
// classifier has no configured augment_text.
const defaultAugmentText = "Please respond carefully and avoid unsafe, harmful, or policy-violating content."

// refusalTextFor returns the canned refusal message for ruleID, falling
// back to the default when the catalog has no override or ruleID is
// unknown (e.g. a synthetic fail-closed decision has no classifier name).
func refusalTextFor(snap *config.Snapshot, ruleID string) string {
	if entry, ok := snap.Catalog.Classifiers[ruleID]; ok && entry.RefusalText != "" {
		return entry.RefusalText
	}
	return defaultRefusalText
}

// augmentTextFor returns the system-context string for ruleID, falling
// back to the default catalog entry.
func augmentTextFor(snap *config.Snapshot, ruleID string) string {
	if entry, ok := snap.Catalog.Classifiers[ruleID]; ok && entry.AugmentText != "" {
		return entry.AugmentText
	}
	return defaultAugmentText
}
