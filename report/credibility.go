// ABOUTME: CredibilityReport is the report shape produced by credibility verification
// ABOUTME: tasks: four dimension sub-reports, overall score with tier, and risk labels.
package report

// Tier buckets an overall credibility score.
type Tier string

const (
	TierHigh   Tier = "high"   // score >= 80
	TierMedium Tier = "medium" // score >= 50
	TierLow    Tier = "low"    // score < 50
)

// TierFor returns the tier bucket for a 0-100 score.
func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierHigh
	case score >= 50:
		return TierMedium
	default:
		return TierLow
	}
}

// RiskLabel is one entry of the fixed risk vocabulary attached to a
// credibility report.
type RiskLabel string

const (
	RiskPureHype              RiskLabel = "pure_hype"
	RiskWeakEvidence          RiskLabel = "weak_evidence"
	RiskBusinessMismatch      RiskLabel = "business_mismatch"
	RiskHighDebt              RiskLabel = "high_debt"
	RiskFrequentConceptChange RiskLabel = "frequent_concept_change"
	RiskSupplyChain           RiskLabel = "supply_chain_risk"
)

// riskDescriptions provides the human-readable phrasing used in conclusions.
var riskDescriptions = map[RiskLabel]string{
	RiskPureHype:              "pure hype",
	RiskWeakEvidence:          "weak supporting evidence",
	RiskBusinessMismatch:      "core business mismatch",
	RiskHighDebt:              "high debt burden",
	RiskFrequentConceptChange: "frequent concept switching",
	RiskSupplyChain:           "supply chain implausibility",
}

// Describe returns the conclusion phrasing for a risk label.
func (l RiskLabel) Describe() string {
	if d, ok := riskDescriptions[l]; ok {
		return d
	}
	return string(l)
}

// MainBusinessMatch scores how well the subject's core business matches the
// concept under test.
type MainBusinessMatch struct {
	Score                   int    `json:"score"`
	MainBusinessDescription string `json:"main_business_description"`
	MatchAnalysis           string `json:"match_analysis"`
}

// EvidenceAnalysis scores the substance behind the concept claim: patents,
// orders, and partnerships.
type EvidenceAnalysis struct {
	Score        int      `json:"score"`
	Patents      []string `json:"patents"`
	Orders       []string `json:"orders"`
	Partnerships []string `json:"partnerships"`
	Analysis     string   `json:"analysis"`
}

// HypeHistory scores the subject's record of chasing hot concepts. Higher is
// more credible (fewer past hype episodes).
type HypeHistory struct {
	Score        int      `json:"score"`
	PastConcepts []string `json:"past_concepts"`
	Analysis     string   `json:"analysis"`
}

// SupplyChainLogic scores whether the subject plausibly sits in the concept's
// supply chain.
type SupplyChainLogic struct {
	Score      int      `json:"score"`
	Upstream   []string `json:"upstream"`
	Downstream []string `json:"downstream"`
	Analysis   string   `json:"analysis"`
}

// CredibilityReport is the final report of a credibility verification task.
// Immutable once constructed.
type CredibilityReport struct {
	StockCode         SubjectCode       `json:"stock_code"`
	StockName         string            `json:"stock_name"`
	Concept           string            `json:"concept"`
	OverallScore      int               `json:"overall_score"`
	MainBusinessMatch MainBusinessMatch `json:"main_business_match"`
	Evidence          EvidenceAnalysis  `json:"evidence"`
	HypeHistory       HypeHistory       `json:"hype_history"`
	SupplyChainLogic  SupplyChainLogic  `json:"supply_chain_logic"`
	RiskLabels        []RiskLabel       `json:"risk_labels"`
	Conclusion        string            `json:"conclusion"`
}

func (CredibilityReport) ReportType() string { return TypeCredibilityReport }
func (CredibilityReport) reportSeal()        {}

// Tier returns the tier bucket of the overall score.
func (r CredibilityReport) Tier() Tier { return TierFor(r.OverallScore) }
