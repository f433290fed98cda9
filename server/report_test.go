// ABOUTME: Report rendering tests: markdown-to-HTML output for both report
// ABOUTME: shapes, table escaping, and rejection of tasks without a result.

package server

import (
	"strings"
	"testing"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

func TestRenderIndustryInsightHTML(t *testing.T) {
	tk, err := task.New(task.TypeIndustryResearch, "solid-state batteries")
	if err != nil {
		t.Fatal(err)
	}
	tk.Result = report.IndustryInsight{
		IndustryName:     "solid-state batteries",
		Summary:          "Commercialization is accelerating.",
		HeatScore:        87,
		TechnologyRoutes: []string{"sulfide electrolyte", "oxide electrolyte"},
		TopStocks: []report.StockCredibility{
			{StockCode: "600519.SH", StockName: "Example|Pipe", CredibilityScore: 82, RelevanceSummary: "pilot line"},
		},
		RiskAlerts: []string{"yield ramp risk"},
	}

	html, err := RenderReportHTML(tk)
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	got := string(html)

	for _, want := range []string{
		"<h1>Industry Insight: solid-state batteries</h1>",
		"<table>",
		"600519.SH",
		"sulfide electrolyte",
		"yield ramp risk",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("HTML missing %q:\n%s", want, got)
		}
	}
	// The pipe in the stock name must not split the table row.
	if !strings.Contains(got, "Example|Pipe") {
		t.Errorf("escaped table cell lost its content:\n%s", got)
	}
}

func TestRenderCredibilityReportHTML(t *testing.T) {
	tk, err := task.New(task.TypeCredibilityVerification, "600519.SH solid-state batteries")
	if err != nil {
		t.Fatal(err)
	}
	tk.Result = report.CredibilityReport{
		StockCode:    "600519.SH",
		StockName:    "Example Co",
		Concept:      "solid-state batteries",
		OverallScore: 42,
		MainBusinessMatch: report.MainBusinessMatch{
			Score:         25,
			MatchAnalysis: "core business is unrelated",
		},
		Evidence: report.EvidenceAnalysis{
			Score:   30,
			Patents: []string{"CN000000A"},
		},
		HypeHistory:      report.HypeHistory{Score: 60},
		SupplyChainLogic: report.SupplyChainLogic{Score: 55},
		RiskLabels:       []report.RiskLabel{report.RiskBusinessMismatch},
		Conclusion:       "Low credibility.",
	}

	html, err := RenderReportHTML(tk)
	if err != nil {
		t.Fatalf("RenderReportHTML: %v", err)
	}
	got := string(html)

	for _, want := range []string{
		"<h1>Credibility Report: Example Co (600519.SH)</h1>",
		"42/100 (low credibility)",
		"business_mismatch",
		"core business mismatch",
		"CN000000A",
		"Low credibility.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("HTML missing %q:\n%s", want, got)
		}
	}
}

func TestRenderReportHTMLNoResult(t *testing.T) {
	tk, err := task.New(task.TypeIndustryResearch, "solid-state batteries")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := RenderReportHTML(tk); err == nil {
		t.Fatal("expected error for task without a result")
	}
}
