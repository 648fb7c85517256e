package models

// FundamentalProfile holds company ratios. Nil fields are unknown and
// satisfy their criterion automatically.
type FundamentalProfile struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	GrossMargin   *float64 `json:"gross_margin"`
	ROE           *float64 `json:"roe"`
	RDRatio       *float64 `json:"rd_ratio"`
	PERatio       *float64 `json:"pe_ratio"`
	PBRatio       *float64 `json:"pb_ratio"`
	DividendYield *float64 `json:"dividend_yield"`
}

// DisplayName returns Name, or the symbol when the name is unknown.
func (p *FundamentalProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Symbol
}

// FinancialThresholds are the gating bounds stored alongside a filtered stock.
type FinancialThresholds struct {
	GrossMargin float64 `json:"gross_margin"`
	ROE         float64 `json:"roe"`
	RDRatio     float64 `json:"rd_ratio"`
}

// FinancialMetrics is the financial section of a stored filtered-stock document.
type FinancialMetrics struct {
	GrossMargin *float64            `json:"gross_margin"`
	ROE         *float64            `json:"roe"`
	RDRatio     *float64            `json:"rd_ratio"`
	Thresholds  FinancialThresholds `json:"thresholds"`
}

// NewFinancialMetrics builds the stored financial section from a profile.
func NewFinancialMetrics(p *FundamentalProfile, th FinancialThresholds) *FinancialMetrics {
	fm := &FinancialMetrics{Thresholds: th}
	if p != nil {
		fm.GrossMargin = p.GrossMargin
		fm.ROE = p.ROE
		fm.RDRatio = p.RDRatio
	}
	return fm
}
