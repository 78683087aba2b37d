package model

// SurveyStat carries the raw per-survey counters the admin console reduces
// into a result view. The NPS score and expiry date are derived by the
// consumer, never persisted or transmitted pre-computed.
type SurveyStat struct {
	Survey

	ReceiptCount   int64 `json:"receiptCount"`
	ResponseCount  int64 `json:"responseCount"`
	PromoterCount  int64 `json:"promoterCount"`
	PassiveCount   int64 `json:"passiveCount"`
	DetractorCount int64 `json:"detractorCount"`
}
