package models

import "time"

// SourceSummary is the dashboard card for one log source.
type SourceSummary struct {
	Source    string    `json:"source"`
	LastCycle string    `json:"lastCycle"`
	Latest    *Signal   `json:"latest,omitempty"`
	Stats     FeedStats `json:"stats"`
}

// Overview aggregates every configured source.
// Note: a failing source lands in Errors, it never fails the whole overview.
type Overview struct {
	Timestamp time.Time         `json:"timestamp"`
	Sources   []SourceSummary   `json:"sources"`
	Errors    map[string]string `json:"errors,omitempty"`
}
