package models

import "time"

// LogLine is one raw line of agent output travelling through ingest.
type LogLine struct {
	Agent      string    `json:"agent"`
	Seq        uint64    `json:"seq"`
	Text       string    `json:"line"`
	ReceivedAt time.Time `json:"ts"`
}
