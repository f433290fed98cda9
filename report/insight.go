// ABOUTME: IndustryInsight is the report shape produced by industry research tasks:
// ABOUTME: summary, chain, routes, market size, scored candidates, and heat score.
package report

// StockCredibility is one verified candidate in an industry insight, carrying
// its 0-100 credibility score and a relevance note.
type StockCredibility struct {
	StockCode        SubjectCode `json:"stock_code"`
	StockName        string      `json:"stock_name"`
	CredibilityScore int         `json:"credibility_score"`
	RelevanceSummary string      `json:"relevance_summary"`
}

// IndustryInsight is the final report of an industry research task. Immutable
// once constructed.
type IndustryInsight struct {
	IndustryName         string             `json:"industry_name"`
	Summary              string             `json:"summary"`
	IndustryChain        string             `json:"industry_chain"`
	TechnologyRoutes     []string           `json:"technology_routes"`
	MarketSize           string             `json:"market_size"`
	TopStocks            []StockCredibility `json:"top_stocks"`
	RiskAlerts           []string           `json:"risk_alerts"`
	Catalysts            []string           `json:"catalysts"`
	HeatScore            int                `json:"heat_score"`
	CompetitiveLandscape string             `json:"competitive_landscape"`
}

func (IndustryInsight) ReportType() string { return TypeIndustryInsight }
func (IndustryInsight) reportSeal()        {}
