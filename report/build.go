// ABOUTME: Pure result builders mapping a finished pipeline work-state into one of
// ABOUTME: the two report shapes, including risk-label inference and conclusions.
package report

import (
	"fmt"
	"math"
	"strings"
)

// Work-state keys written by the workflow steps and read by the builders.
// The builders are the only consumers of a pipeline's final state.
const (
	KeyQuery                = "query"
	KeyIndustrySummary      = "industry_summary"
	KeyIndustryChain        = "industry_chain"
	KeyTechnologyRoutes     = "technology_routes"
	KeyMarketSize           = "market_size"
	KeyHeatScore            = "heat_score"
	KeyNewsSummary          = "news_summary"
	KeyCandidateStocks      = "candidate_stocks"
	KeyVerifiedStocks       = "verified_stocks"
	KeyCompetitiveLandscape = "competitive_landscape"
	KeyRiskAlerts           = "risk_alerts"
	KeyCatalysts            = "catalysts"

	KeyStockCode               = "stock_code"
	KeyStockName               = "stock_name"
	KeyConcept                 = "concept"
	KeyBusinessScore           = "main_business_score"
	KeyBusinessDescription     = "main_business_description"
	KeyBusinessAnalysis        = "main_business_analysis"
	KeyEvidenceScore           = "evidence_score"
	KeyEvidencePatents         = "evidence_patents"
	KeyEvidenceOrders          = "evidence_orders"
	KeyEvidencePartnerships    = "evidence_partnerships"
	KeyEvidenceAnalysis        = "evidence_analysis"
	KeyHypeScore               = "hype_score"
	KeyHypePastConcepts        = "hype_past_concepts"
	KeyHypeAnalysis            = "hype_analysis"
	KeySupplyChainScore        = "supply_chain_score"
	KeySupplyChainUpstream     = "supply_chain_upstream"
	KeySupplyChainDownstream   = "supply_chain_downstream"
	KeySupplyChainAnalysis     = "supply_chain_analysis"
	keyCandidateScore          = "credibility_score"
	keyCandidateRelevanceNotes = "relevance_summary"
)

// Overall-score weights for the four credibility dimensions.
const (
	weightBusiness    = 0.30
	weightEvidence    = 0.25
	weightHype        = 0.20
	weightSupplyChain = 0.25
)

// BuildIndustryInsight maps a finished industry research work-state into an
// IndustryInsight. Candidates whose code fails validation are discarded
// rather than failing the whole build.
func BuildIndustryInsight(query string, state map[string]any) IndustryInsight {
	top := make([]StockCredibility, 0)
	for _, raw := range listFrom(state[KeyVerifiedStocks]) {
		entry, ok := mapFrom(raw)
		if !ok {
			continue
		}
		code, err := ParseSubjectCode(stringFrom(entry[KeyStockCode]))
		if err != nil {
			continue
		}
		name := stringFrom(entry[KeyStockName])
		if name == "" {
			name = code.String()
		}
		top = append(top, StockCredibility{
			StockCode:        code,
			StockName:        name,
			CredibilityScore: clampScore(intFrom(entry[keyCandidateScore], 50)),
			RelevanceSummary: stringFrom(entry[keyCandidateRelevanceNotes]),
		})
	}

	return IndustryInsight{
		IndustryName:         strings.TrimSpace(query),
		Summary:              stringFrom(state[KeyIndustrySummary]),
		IndustryChain:        stringFrom(state[KeyIndustryChain]),
		TechnologyRoutes:     stringsFrom(state[KeyTechnologyRoutes]),
		MarketSize:           stringFrom(state[KeyMarketSize]),
		TopStocks:            top,
		RiskAlerts:           stringsFrom(state[KeyRiskAlerts]),
		Catalysts:            stringsFrom(state[KeyCatalysts]),
		HeatScore:            clampScore(intFrom(state[KeyHeatScore], 50)),
		CompetitiveLandscape: stringFrom(state[KeyCompetitiveLandscape]),
	}
}

// BuildCredibilityReport maps a finished credibility verification work-state
// into a CredibilityReport, computing the weighted overall score, inferring
// risk labels, and generating the conclusion.
func BuildCredibilityReport(code SubjectCode, concept string, state map[string]any) CredibilityReport {
	business := clampScore(intFrom(state[KeyBusinessScore], 50))
	evidence := clampScore(intFrom(state[KeyEvidenceScore], 50))
	hype := clampScore(intFrom(state[KeyHypeScore], 50))
	supply := clampScore(intFrom(state[KeySupplyChainScore], 50))
	pastConcepts := stringsFrom(state[KeyHypePastConcepts])

	overall := clampScore(int(math.Round(
		float64(business)*weightBusiness +
			float64(evidence)*weightEvidence +
			float64(hype)*weightHype +
			float64(supply)*weightSupplyChain)))

	labels := inferRiskLabels(business, evidence, hype, supply, pastConcepts)

	stockName := stringFrom(state[KeyStockName])
	if stockName == "" {
		stockName = code.String()
	}

	return CredibilityReport{
		StockCode:    code,
		StockName:    stockName,
		Concept:      concept,
		OverallScore: overall,
		MainBusinessMatch: MainBusinessMatch{
			Score:                   business,
			MainBusinessDescription: stringFrom(state[KeyBusinessDescription]),
			MatchAnalysis:           stringFrom(state[KeyBusinessAnalysis]),
		},
		Evidence: EvidenceAnalysis{
			Score:        evidence,
			Patents:      stringsFrom(state[KeyEvidencePatents]),
			Orders:       stringsFrom(state[KeyEvidenceOrders]),
			Partnerships: stringsFrom(state[KeyEvidencePartnerships]),
			Analysis:     stringFrom(state[KeyEvidenceAnalysis]),
		},
		HypeHistory: HypeHistory{
			Score:        hype,
			PastConcepts: pastConcepts,
			Analysis:     stringFrom(state[KeyHypeAnalysis]),
		},
		SupplyChainLogic: SupplyChainLogic{
			Score:      supply,
			Upstream:   stringsFrom(state[KeySupplyChainUpstream]),
			Downstream: stringsFrom(state[KeySupplyChainDownstream]),
			Analysis:   stringFrom(state[KeySupplyChainAnalysis]),
		},
		RiskLabels: labels,
		Conclusion: buildConclusion(code, concept, overall, labels),
	}
}

// inferRiskLabels applies the fixed threshold rules over the four dimension
// scores and the past-concept history.
func inferRiskLabels(business, evidence, hype, supply int, pastConcepts []string) []RiskLabel {
	labels := make([]RiskLabel, 0)

	if business < 30 {
		labels = append(labels, RiskBusinessMismatch)
	}
	if evidence < 30 {
		labels = append(labels, RiskWeakEvidence)
	}
	// Pure hype: business mismatch + weak evidence + poor hype record.
	if business < 30 && evidence < 30 && hype < 50 {
		labels = append(labels, RiskPureHype)
	}
	if len(pastConcepts) >= 3 || hype < 30 {
		labels = append(labels, RiskFrequentConceptChange)
	}
	if supply < 30 {
		labels = append(labels, RiskSupplyChain)
	}

	return labels
}

// buildConclusion generates the human-readable verdict, listing triggered
// risk labels or stating none were found.
func buildConclusion(code SubjectCode, concept string, overall int, labels []RiskLabel) string {
	tier := TierFor(overall)
	if len(labels) == 0 {
		return fmt.Sprintf(
			"Credibility of %s for concept %q scores %d (%s); no obvious risks found.",
			code, concept, overall, tier)
	}
	descs := make([]string, len(labels))
	for i, l := range labels {
		descs[i] = l.Describe()
	}
	return fmt.Sprintf(
		"Credibility of %s for concept %q scores %d (%s); risks identified: %s.",
		code, concept, overall, tier, strings.Join(descs, ", "))
}

// --- loose-typed state accessors ---
//
// Step outputs arrive either as native Go values (from fallbacks and tests)
// or as the result of decoding model JSON (float64, []any, map[string]any).
// The accessors below accept both.

func stringFrom(v any) string {
	s, _ := v.(string)
	return s
}

func intFrom(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return fallback
}

func stringsFrom(v any) []string {
	switch vs := v.(type) {
	case []string:
		out := make([]string, len(vs))
		copy(out, vs)
		return out
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func listFrom(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []map[string]any:
		out := make([]any, len(vs))
		for i, m := range vs {
			out[i] = m
		}
		return out
	}
	return nil
}

func mapFrom(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
