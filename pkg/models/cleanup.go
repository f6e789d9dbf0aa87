package models

import "fmt"

// CleanupCollection names a table swept by the cleanup service.
type CleanupCollection string

const (
	CleanupDerivatives  CleanupCollection = "content_derivatives"
	CleanupContentItems CleanupCollection = "content_items"
	CleanupBriefs       CleanupCollection = "content_briefs"
	CleanupSuggestions  CleanupCollection = "content_suggestions"
	CleanupIdeas        CleanupCollection = "content_ideas"
)

// CleanupOrder lists collections children first.
var CleanupOrder = []CleanupCollection{
	CleanupDerivatives,
	CleanupContentItems,
	CleanupBriefs,
	CleanupSuggestions,
	CleanupIdeas,
}

// TerminalStatuses returns the statuses that make a row eligible for cleanup.
func (c CleanupCollection) TerminalStatuses() []string {
	switch c {
	case CleanupIdeas, CleanupSuggestions:
		return []string{"discarded", StatusFailed}
	case CleanupBriefs:
		return []string{string(BriefStatusDiscarded)}
	case CleanupContentItems, CleanupDerivatives:
		return []string{"discarded", "published"}
	default:
		return nil
	}
}

const (
	DefaultCleanupOlderThanDays = 90
	DefaultCleanupBatchSize     = 1000
	MaxCleanupBatchSize         = 10000
)

// CleanupOptions controls a cleanup run.
type CleanupOptions struct {
	OlderThanDays int  `json:"older_than_days"`
	BatchSize     int  `json:"batch_size"`
	DryRun        bool `json:"dry_run"`
}

// WithDefaults fills zero fields with defaults.
func (o CleanupOptions) WithDefaults() CleanupOptions {
	if o.OlderThanDays == 0 {
		o.OlderThanDays = DefaultCleanupOlderThanDays
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultCleanupBatchSize
	}
	return o
}

// Validate checks the option ranges.
func (o CleanupOptions) Validate() error {
	if o.OlderThanDays < 1 {
		return fmt.Errorf("older_than_days must be at least 1, got %d", o.OlderThanDays)
	}
	if o.BatchSize < 1 || o.BatchSize > MaxCleanupBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d, got %d", MaxCleanupBatchSize, o.BatchSize)
	}
	return nil
}

// CleanupResult reports rows deleted (or, for a dry run, that would be deleted).
type CleanupResult struct {
	Counts       map[CleanupCollection]int `json:"counts"`
	TotalCleaned int                       `json:"total_cleaned"`
	DryRun       bool                      `json:"dry_run"`
}

// CleanupCandidates reports qualifying row counts per collection.
type CleanupCandidates struct {
	OlderThanDays int                       `json:"older_than_days"`
	Counts        map[CleanupCollection]int `json:"counts"`
	Total         int                       `json:"total"`
}

// UploadedFile describes an object written to storage.
type UploadedFile struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	OriginalName string `json:"originalName"`
	PublicURL    string `json:"public_url"`
}
