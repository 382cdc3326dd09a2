package models

// FeedPage is the trailing window of signals of one source.
type FeedPage struct {
	Source    string    `json:"source"`
	LastCycle string    `json:"lastCycle"`
	Signals   []Signal  `json:"signals"`
	Stats     FeedStats `json:"stats"`
}

// MarketsPage is the trailing window of market snapshots of one source.
type MarketsPage struct {
	Source    string           `json:"source"`
	LastCycle string           `json:"lastCycle"`
	Markets   []MarketSnapshot `json:"markets"`
	Stats     FeedStats        `json:"stats"`
}
