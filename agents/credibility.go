// ABOUTME: Credibility verification workflow: four model-backed dimension steps
// ABOUTME: plus a terminal marker, feeding the CredibilityReport builder.

package agents

import (
	"context"
	"fmt"

	"github.com/2389-research/spyglass/llm"
	"github.com/2389-research/spyglass/pipeline"
	"github.com/2389-research/spyglass/report"
)

// PipelineCredibilityVerification names the credibility verification workflow.
const PipelineCredibilityVerification = "credibility_verification"

// Step names for the credibility verification workflow.
const (
	StepMainBusinessMatch    = "main_business_match"
	StepEvidenceCollection   = "evidence_collection"
	StepHypeHistoryDetection = "hype_history_detection"
	StepSupplyChainLogic     = "supply_chain_logic"
)

// Progress percents after each credibility verification step.
const (
	percentMainBusinessMatch    = 25
	percentEvidenceCollection   = 50
	percentHypeHistoryDetection = 75
	percentSupplyChainLogic     = 90
)

// NewCredibilityPipeline assembles the four-dimension verification workflow.
// The state must be seeded with report.KeyStockCode and report.KeyConcept.
func NewCredibilityPipeline(client llm.Client, exec *pipeline.Executor) *pipeline.Pipeline {
	return pipeline.New(PipelineCredibilityVerification, exec,
		mainBusinessMatchStep(client),
		evidenceCollectionStep(client),
		hypeHistoryStep(client),
		supplyChainStep(client),
		aggregateStep(),
	)
}

func mainBusinessMatchStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepMainBusinessMatch,
		Percent: percentMainBusinessMatch,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			code := asString(state[report.KeyStockCode])
			concept := asString(state[report.KeyConcept])

			prompt := fmt.Sprintf(
				"You are a fundamentals analyst. Assess how well this company's core business matches the concept:\n\n"+
					"Stock code: %s\nConcept: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"stock_name\": \"company name\",\n"+
					"  \"score\": integer 0-100 (business-to-concept match),\n"+
					"  \"main_business_description\": \"what the company actually does\",\n"+
					"  \"match_analysis\": \"why the match score is what it is\"\n"+
					"}\n\n"+
					"Return valid JSON only.", code, concept)

			data, err := completeJSON(ctx, client,
				"You are a professional equity fundamentals analyst who knows listed companies' real businesses. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			score := clamp(asInt(data["score"], 50))
			out := map[string]any{
				report.KeyBusinessScore:       score,
				report.KeyBusinessDescription: asString(data["main_business_description"]),
				report.KeyBusinessAnalysis:    asString(data["match_analysis"]),
			}
			if name := asString(data["stock_name"]); name != "" {
				out[report.KeyStockName] = name
			}
			return pipeline.Result{
				Output:  out,
				Summary: fmt.Sprintf("business match scored %d", score),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeyBusinessScore:       50,
					report.KeyBusinessDescription: analysisUnavailable,
					report.KeyBusinessAnalysis:    analysisUnavailable,
				},
				Summary: "business match unavailable, neutral score assumed",
			}
		},
	}
}

func evidenceCollectionStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepEvidenceCollection,
		Percent: percentEvidenceCollection,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			code := asString(state[report.KeyStockCode])
			concept := asString(state[report.KeyConcept])
			business := truncate(asString(state[report.KeyBusinessDescription]), 300)

			prompt := fmt.Sprintf(
				"You are an evidence researcher. Collect hard evidence linking this company to the concept:\n\n"+
					"Stock code: %s\nConcept: %s\nCore business: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"score\": integer 0-100 (evidence strength),\n"+
					"  \"patents\": [\"relevant patent 1\"],\n"+
					"  \"orders\": [\"relevant order 1\"],\n"+
					"  \"partnerships\": [\"partner 1\"],\n"+
					"  \"analysis\": \"evidence assessment\"\n"+
					"}\n\n"+
					"Return valid JSON only.", code, concept, business)

			data, err := completeJSON(ctx, client,
				"You are a professional due-diligence researcher who weighs patents, orders, and partnerships. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			score := clamp(asInt(data["score"], 50))
			return pipeline.Result{
				Output: map[string]any{
					report.KeyEvidenceScore:        score,
					report.KeyEvidencePatents:      asStrings(data["patents"]),
					report.KeyEvidenceOrders:       asStrings(data["orders"]),
					report.KeyEvidencePartnerships: asStrings(data["partnerships"]),
					report.KeyEvidenceAnalysis:     asString(data["analysis"]),
				},
				Summary: fmt.Sprintf("evidence scored %d", score),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeyEvidenceScore:        50,
					report.KeyEvidencePatents:      []string{},
					report.KeyEvidenceOrders:       []string{},
					report.KeyEvidencePartnerships: []string{},
					report.KeyEvidenceAnalysis:     analysisUnavailable,
				},
				Summary: "evidence collection unavailable, neutral score assumed",
			}
		},
	}
}

func hypeHistoryStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepHypeHistoryDetection,
		Percent: percentHypeHistoryDetection,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			code := asString(state[report.KeyStockCode])
			concept := asString(state[report.KeyConcept])

			prompt := fmt.Sprintf(
				"You are a hype-history investigator. Check this company's record of chasing hot concepts:\n\n"+
					"Stock code: %s\nCurrent concept: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"score\": integer 0-100 (higher means cleaner record, fewer past hype episodes),\n"+
					"  \"past_concepts\": [\"previously chased concept 1\"],\n"+
					"  \"analysis\": \"hype history assessment\"\n"+
					"}\n\n"+
					"If there is no hype record, return an empty past_concepts array. Return valid JSON only.",
				code, concept)

			data, err := completeJSON(ctx, client,
				"You are a professional market-conduct investigator who tracks companies' concept-chasing history. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			score := clamp(asInt(data["score"], 50))
			past := asStrings(data["past_concepts"])
			return pipeline.Result{
				Output: map[string]any{
					report.KeyHypeScore:        score,
					report.KeyHypePastConcepts: past,
					report.KeyHypeAnalysis:     asString(data["analysis"]),
				},
				Summary: fmt.Sprintf("hype history scored %d, %d past concepts", score, len(past)),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeyHypeScore:        50,
					report.KeyHypePastConcepts: []string{},
					report.KeyHypeAnalysis:     analysisUnavailable,
				},
				Summary: "hype history unavailable, neutral score assumed",
			}
		},
	}
}

func supplyChainStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepSupplyChainLogic,
		Percent: percentSupplyChainLogic,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			code := asString(state[report.KeyStockCode])
			concept := asString(state[report.KeyConcept])
			business := truncate(asString(state[report.KeyBusinessDescription]), 300)

			prompt := fmt.Sprintf(
				"You are a supply chain analyst. Assess whether this company plausibly sits in the concept's supply chain:\n\n"+
					"Stock code: %s\nConcept: %s\nCore business: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"score\": integer 0-100 (supply chain plausibility),\n"+
					"  \"upstream\": [\"upstream segment 1\"],\n"+
					"  \"downstream\": [\"downstream segment 1\"],\n"+
					"  \"analysis\": \"supply chain logic assessment\"\n"+
					"}\n\n"+
					"Scoring guide: 80-100 highly plausible, 50-79 partially plausible, 0-49 implausible. Return valid JSON only.",
				code, concept, business)

			data, err := completeJSON(ctx, client,
				"You are a professional supply chain analyst who reasons about companies' positions in concept value chains. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			score := clamp(asInt(data["score"], 50))
			return pipeline.Result{
				Output: map[string]any{
					report.KeySupplyChainScore:      score,
					report.KeySupplyChainUpstream:   asStrings(data["upstream"]),
					report.KeySupplyChainDownstream: asStrings(data["downstream"]),
					report.KeySupplyChainAnalysis:   asString(data["analysis"]),
				},
				Summary: fmt.Sprintf("supply chain logic scored %d", score),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeySupplyChainScore:      50,
					report.KeySupplyChainUpstream:   []string{},
					report.KeySupplyChainDownstream: []string{},
					report.KeySupplyChainAnalysis:   analysisUnavailable,
				},
				Summary: "supply chain analysis unavailable, neutral score assumed",
			}
		},
	}
}
