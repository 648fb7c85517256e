package models

// Requests for the screening HTTP endpoints and async jobs.

// FilterRequest triggers a screening run. FinancialFilters overrides the
// financial gates by name (gross_margin_threshold, roe_threshold,
// rd_ratio_threshold) and turns financial gating on for this run.
type FilterRequest struct {
	Symbols          []string           `json:"symbols" validate:"required,min=1,dive,required"`
	TimeFrame        []string           `json:"timeFrame" validate:"omitempty,dive,oneof=daily weekly monthly"`
	FinancialFilters map[string]float64 `json:"financialFilters,omitempty"`
}

type RetrieveFilteredRequest struct {
	TimeFrame []string `json:"timeFrame" validate:"omitempty,dive,oneof=daily weekly monthly"`
	RecentDay int      `json:"recentDay" validate:"gte=0,lte=365"`
}

type TrendRequest struct {
	Symbols    []string           `json:"symbols" validate:"required,min=1,dive,required"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
}

// TimeRange bounds a history fetch. Empty ends fall back to the per-frame lookback.
type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type FetchHistoryRequest struct {
	Symbols   []string   `json:"symbols" validate:"required,min=1,dive,required"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	TimeFrame []string   `json:"timeFrame" validate:"omitempty,dive,oneof=daily weekly monthly"`
}

type JobStatusRequest struct {
	JobType string `param:"type" validate:"required,oneof=filter trend history"`
	JobID   string `param:"id" validate:"required,len=24,hexadecimal"`
}

// JobAccepted is returned when an async job is submitted.
type JobAccepted struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// HistoryFrameResult counts the symbols of one time frame that returned data.
type HistoryFrameResult struct {
	SymbolsRequested int `json:"symbols_requested"`
	SymbolsWithData  int `json:"symbols_with_data"`
	Points           int `json:"points"`
}

// HistoryResult reports per time frame how many symbols returned data.
type HistoryResult struct {
	Results map[TimeFrame]HistoryFrameResult `json:"results"`
	Failed  map[string]string                `json:"failed,omitempty"`
}
