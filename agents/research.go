// ABOUTME: Industry research workflow: five model-backed steps plus a terminal
// ABOUTME: aggregation marker, producing the state an IndustryInsight is built from.

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/spyglass/llm"
	"github.com/2389-research/spyglass/pipeline"
	"github.com/2389-research/spyglass/report"
)

// PipelineIndustryResearch names the industry research workflow.
const PipelineIndustryResearch = "industry_research"

// Step names for the industry research workflow.
const (
	StepIndustryOverview     = "industry_overview"
	StepMarketHeat           = "market_heat"
	StepStockScreening       = "stock_screening"
	StepCredibilityBatch     = "credibility_batch"
	StepCompetitiveLandscape = "competitive_landscape"
	StepAggregateResults     = "aggregate_results"
)

// Progress percents after each industry research step.
const (
	percentIndustryOverview     = 20
	percentMarketHeat           = 40
	percentStockScreening       = 60
	percentCredibilityBatch     = 80
	percentCompetitiveLandscape = 95
	percentAggregate            = 100
)

const analysisUnavailable = "[analysis unavailable]"

// stepTemperature keeps the analytical steps deterministic-ish.
const stepTemperature = 0.3

// NewIndustryResearchPipeline assembles the five-step research workflow. The
// state must be seeded with report.KeyQuery.
func NewIndustryResearchPipeline(client llm.Client, exec *pipeline.Executor) *pipeline.Pipeline {
	return pipeline.New(PipelineIndustryResearch, exec,
		industryOverviewStep(client),
		marketHeatStep(client),
		stockScreeningStep(client),
		credibilityBatchStep(client),
		competitiveLandscapeStep(client),
		aggregateStep(),
	)
}

func industryOverviewStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepIndustryOverview,
		Percent: percentIndustryOverview,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			query := asString(state[report.KeyQuery])
			prompt := fmt.Sprintf(
				"You are a senior industry analyst. Give a rapid background analysis of this industry or theme:\n\n"+
					"Query: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"industry_summary\": \"one-page industry summary (200-500 words)\",\n"+
					"  \"industry_chain\": \"value chain structure (upstream -> midstream -> downstream)\",\n"+
					"  \"technology_routes\": [\"route 1\", \"route 2\"],\n"+
					"  \"market_size\": \"market size description\"\n"+
					"}\n\n"+
					"Return valid JSON only.", query)

			data, err := completeJSON(ctx, client,
				"You are a professional industry research analyst who maps out industry landscapes quickly. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			summary := asString(data["industry_summary"])
			return pipeline.Result{
				Output: map[string]any{
					report.KeyIndustrySummary:  summary,
					report.KeyIndustryChain:    asString(data["industry_chain"]),
					report.KeyTechnologyRoutes: asStrings(data["technology_routes"]),
					report.KeyMarketSize:       asString(data["market_size"]),
				},
				Summary: fmt.Sprintf("industry overview drafted (%d chars)", len(summary)),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeyIndustrySummary:  analysisUnavailable,
					report.KeyIndustryChain:    "",
					report.KeyTechnologyRoutes: []string{},
					report.KeyMarketSize:       "",
				},
				Summary: "industry overview unavailable",
			}
		},
	}
}

func marketHeatStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepMarketHeat,
		Percent: percentMarketHeat,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			query := asString(state[report.KeyQuery])
			summary := truncate(asString(state[report.KeyIndustrySummary]), 500)

			prompt := fmt.Sprintf(
				"You are a market sentiment analyst. Assess the current market heat of this industry:\n\n"+
					"Query: %s\nIndustry background: %s\n\n"+
					"Return JSON with exactly these fields:\n"+
					"{\n"+
					"  \"heat_score\": integer 0-100,\n"+
					"  \"news_summary\": \"recent news and market activity\",\n"+
					"  \"risk_alerts\": [\"risk 1\", \"risk 2\"],\n"+
					"  \"catalysts\": [\"catalyst 1\", \"catalyst 2\"]\n"+
					"}\n\n"+
					"heat_score must be an integer from 0 to 100. Return valid JSON only.", query, summary)

			data, err := completeJSON(ctx, client,
				"You are a professional market heat analyst who gauges attention and sentiment around industries. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			heat := clamp(asInt(data["heat_score"], 50))
			return pipeline.Result{
				Output: map[string]any{
					report.KeyHeatScore:   heat,
					report.KeyNewsSummary: asString(data["news_summary"]),
					report.KeyRiskAlerts:  asStrings(data["risk_alerts"]),
					report.KeyCatalysts:   asStrings(data["catalysts"]),
				},
				Summary: fmt.Sprintf("market heat scored %d", heat),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output: map[string]any{
					report.KeyHeatScore:   50,
					report.KeyNewsSummary: analysisUnavailable,
					report.KeyRiskAlerts:  []string{},
					report.KeyCatalysts:   []string{},
				},
				Summary: "market heat unavailable, neutral score assumed",
			}
		},
	}
}

func stockScreeningStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepStockScreening,
		Percent: percentStockScreening,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			query := asString(state[report.KeyQuery])
			summary := truncate(asString(state[report.KeyIndustrySummary]), 300)
			chain := truncate(asString(state[report.KeyIndustryChain]), 300)

			prompt := fmt.Sprintf(
				"You are a stock screening specialist. Based on this industry analysis, shortlist 5-10 core listed companies:\n\n"+
					"Query: %s\nIndustry summary: %s\nValue chain: %s\n\n"+
					"Return JSON with exactly this shape:\n"+
					"{\n"+
					"  \"candidate_stocks\": [\n"+
					"    {\n"+
					"      \"stock_code\": \"600XXX.SH or 000XXX.SZ format\",\n"+
					"      \"stock_name\": \"company name\",\n"+
					"      \"relevance_summary\": \"why it belongs to this industry\"\n"+
					"    }\n"+
					"  ]\n"+
					"}\n\n"+
					"stock_code must use A-share format such as 600519.SH or 000001.SZ. Return valid JSON only.",
				query, summary, chain)

			data, err := completeJSON(ctx, client,
				"You are a professional A-share screening analyst who identifies core names from an industry view. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			candidates := data["candidate_stocks"]
			return pipeline.Result{
				Output:  map[string]any{report.KeyCandidateStocks: candidates},
				Summary: fmt.Sprintf("%d candidates screened", len(asMaps(candidates))),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output:  map[string]any{report.KeyCandidateStocks: []any{}},
				Summary: "screening unavailable, no candidates",
			}
		},
	}
}

func credibilityBatchStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepCredibilityBatch,
		Percent: percentCredibilityBatch,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			query := asString(state[report.KeyQuery])
			candidates := asMaps(state[report.KeyCandidateStocks])

			if len(candidates) == 0 {
				return pipeline.Result{
					Output:  map[string]any{report.KeyVerifiedStocks: []any{}},
					Summary: "no candidates to verify",
				}, nil
			}

			var lines []string
			for _, c := range candidates {
				lines = append(lines, fmt.Sprintf("- %s %s: %s",
					asString(c["stock_code"]), asString(c["stock_name"]), asString(c["relevance_summary"])))
			}

			prompt := fmt.Sprintf(
				"You are a credibility verification specialist. Batch-assess how genuinely each candidate relates to the theme:\n\n"+
					"Industry/concept: %s\nCandidates:\n%s\n\n"+
					"Return JSON with exactly this shape:\n"+
					"{\n"+
					"  \"verified_stocks\": [\n"+
					"    {\n"+
					"      \"stock_code\": \"code\",\n"+
					"      \"stock_name\": \"name\",\n"+
					"      \"credibility_score\": integer 0-100,\n"+
					"      \"relevance_summary\": \"credibility assessment\"\n"+
					"    }\n"+
					"  ]\n"+
					"}\n\n"+
					"Scoring guide: 80-100 high credibility, 50-79 medium, 0-49 low. Return valid JSON only.",
				query, strings.Join(lines, "\n"))

			data, err := completeJSON(ctx, client,
				"You are a professional concept-credibility analyst who separates genuine exposure from hype. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			verified := asMaps(data["verified_stocks"])
			for _, s := range verified {
				s["credibility_score"] = clamp(asInt(s["credibility_score"], 50))
			}
			return pipeline.Result{
				Output:  map[string]any{report.KeyVerifiedStocks: data["verified_stocks"]},
				Summary: fmt.Sprintf("%d candidates verified", len(verified)),
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output:  map[string]any{report.KeyVerifiedStocks: []any{}},
				Summary: "verification unavailable",
			}
		},
	}
}

func competitiveLandscapeStep(client llm.Client) pipeline.Step {
	return pipeline.Step{
		Name:    StepCompetitiveLandscape,
		Percent: percentCompetitiveLandscape,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			query := asString(state[report.KeyQuery])
			summary := truncate(asString(state[report.KeyIndustrySummary]), 300)

			verified := asMaps(state[report.KeyVerifiedStocks])
			if len(verified) > 10 {
				verified = verified[:10]
			}
			var names []string
			for _, s := range verified {
				names = append(names, fmt.Sprintf("%s(%s)", asString(s["stock_name"]), asString(s["stock_code"])))
			}

			prompt := fmt.Sprintf(
				"You are a competitive landscape analyst. Analyze the competitive structure of this industry:\n\n"+
					"Query: %s\nIndustry background: %s\nCore names: %s\n\n"+
					"Return JSON with exactly this field:\n"+
					"{\n"+
					"  \"competitive_landscape\": \"competitive landscape analysis (300-500 words, covering concentration, key players, moats)\"\n"+
					"}\n\n"+
					"Return valid JSON only.", query, summary, strings.Join(names, ", "))

			data, err := completeJSON(ctx, client,
				"You are a professional competitive-landscape analyst who assesses industry structure and company advantages. Always answer in JSON.",
				prompt)
			if err != nil {
				return pipeline.Result{}, err
			}

			return pipeline.Result{
				Output:  map[string]any{report.KeyCompetitiveLandscape: asString(data["competitive_landscape"])},
				Summary: "competitive landscape drafted",
			}, nil
		},
		Fallback: func(state pipeline.WorkState) pipeline.Result {
			return pipeline.Result{
				Output:  map[string]any{report.KeyCompetitiveLandscape: analysisUnavailable},
				Summary: "competitive landscape unavailable",
			}
		},
	}
}

// aggregateStep marks the run finished. It makes no model call: the report
// builder does the actual aggregation from the accumulated state.
func aggregateStep() pipeline.Step {
	return pipeline.Step{
		Name:    StepAggregateResults,
		Percent: percentAggregate,
		Run: func(ctx context.Context, state pipeline.WorkState) (pipeline.Result, error) {
			return pipeline.Result{Summary: "results aggregated"}, nil
		},
	}
}

func completeJSON(ctx context.Context, client llm.Client, system, prompt string) (map[string]any, error) {
	resp, err := client.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: stepTemperature,
	})
	if err != nil {
		return nil, err
	}
	return ParseJSONResponse(resp.Text)
}
