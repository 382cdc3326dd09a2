package models

// Requests for feed HTTP endpoints. Defined in domain for consistency and reuse.

type LatestSignalRequest struct {
	Source  string `query:"source" json:"source"`
	Variant string `query:"variant" json:"variant" default:"latest" validate:"oneof=latest feed logs"`
}

type SignalsRequest struct {
	Source  string `query:"source" json:"source"`
	N       int    `query:"n" json:"n" default:"5" validate:"gte=1,lte=100"`
	Variant string `query:"variant" json:"variant" default:"feed" validate:"oneof=latest feed logs"`
}

type MarketsRequest struct {
	Source string `query:"source" json:"source"`
	N      int    `query:"n" json:"n" default:"10" validate:"gte=1,lte=100"`
}

type ParseRequest struct {
	Log     string `json:"log" validate:"required"`
	N       int    `json:"n" default:"10" validate:"gte=1,lte=1000"`
	Variant string `json:"variant" default:"logs" validate:"oneof=latest feed logs"`
}

type HistoryRequest struct {
	MarketID string `query:"market_id" json:"market_id"`
	Limit    int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}
