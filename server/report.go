// ABOUTME: Rendering of finished task reports to HTML: a markdown view of the
// ABOUTME: report is built and converted with goldmark (GFM tables enabled).

package server

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389-research/spyglass/report"
	"github.com/2389-research/spyglass/task"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderReportHTML renders a finished task's report as a standalone HTML
// fragment.
func RenderReportHTML(t *task.Task) ([]byte, error) {
	md, err := reportMarkdown(t)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("render report markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func reportMarkdown(t *task.Task) (string, error) {
	switch r := t.Result.(type) {
	case report.IndustryInsight:
		return insightMarkdown(r), nil
	case report.CredibilityReport:
		return credibilityMarkdown(r), nil
	default:
		return "", fmt.Errorf("no renderer for report type %T", t.Result)
	}
}

func insightMarkdown(r report.IndustryInsight) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Industry Insight: %s\n\n", r.IndustryName)
	fmt.Fprintf(&b, "**Heat score:** %d/100\n\n", r.HeatScore)
	if r.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", r.Summary)
	}
	if r.IndustryChain != "" {
		fmt.Fprintf(&b, "## Value Chain\n\n%s\n\n", r.IndustryChain)
	}
	if len(r.TechnologyRoutes) > 0 {
		b.WriteString("## Technology Routes\n\n")
		writeList(&b, r.TechnologyRoutes)
	}
	if r.MarketSize != "" {
		fmt.Fprintf(&b, "## Market Size\n\n%s\n\n", r.MarketSize)
	}
	if len(r.TopStocks) > 0 {
		b.WriteString("## Top Names\n\n")
		b.WriteString("| Code | Name | Credibility | Notes |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, s := range r.TopStocks {
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n",
				s.StockCode, cell(s.StockName), s.CredibilityScore, cell(s.RelevanceSummary))
		}
		b.WriteString("\n")
	}
	if r.CompetitiveLandscape != "" {
		fmt.Fprintf(&b, "## Competitive Landscape\n\n%s\n\n", r.CompetitiveLandscape)
	}
	if len(r.RiskAlerts) > 0 {
		b.WriteString("## Risk Alerts\n\n")
		writeList(&b, r.RiskAlerts)
	}
	if len(r.Catalysts) > 0 {
		b.WriteString("## Catalysts\n\n")
		writeList(&b, r.Catalysts)
	}
	return b.String()
}

func credibilityMarkdown(r report.CredibilityReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Credibility Report: %s (%s)\n\n", r.StockName, r.StockCode)
	fmt.Fprintf(&b, "**Concept:** %s\n\n", r.Concept)
	fmt.Fprintf(&b, "**Overall score:** %d/100 (%s credibility)\n\n", r.OverallScore, r.Tier())

	if len(r.RiskLabels) > 0 {
		b.WriteString("## Risk Labels\n\n")
		for _, l := range r.RiskLabels {
			fmt.Fprintf(&b, "- `%s`: %s\n", string(l), l.Describe())
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Business Match: %d/100\n\n", r.MainBusinessMatch.Score)
	if r.MainBusinessMatch.MainBusinessDescription != "" {
		fmt.Fprintf(&b, "%s\n\n", r.MainBusinessMatch.MainBusinessDescription)
	}
	if r.MainBusinessMatch.MatchAnalysis != "" {
		fmt.Fprintf(&b, "%s\n\n", r.MainBusinessMatch.MatchAnalysis)
	}

	fmt.Fprintf(&b, "## Evidence: %d/100\n\n", r.Evidence.Score)
	writeEvidenceSection(&b, "Patents", r.Evidence.Patents)
	writeEvidenceSection(&b, "Orders", r.Evidence.Orders)
	writeEvidenceSection(&b, "Partnerships", r.Evidence.Partnerships)
	if r.Evidence.Analysis != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Evidence.Analysis)
	}

	fmt.Fprintf(&b, "## Hype History: %d/100\n\n", r.HypeHistory.Score)
	if len(r.HypeHistory.PastConcepts) > 0 {
		b.WriteString("Previously chased concepts:\n\n")
		writeList(&b, r.HypeHistory.PastConcepts)
	}
	if r.HypeHistory.Analysis != "" {
		fmt.Fprintf(&b, "%s\n\n", r.HypeHistory.Analysis)
	}

	fmt.Fprintf(&b, "## Supply Chain Logic: %d/100\n\n", r.SupplyChainLogic.Score)
	writeEvidenceSection(&b, "Upstream", r.SupplyChainLogic.Upstream)
	writeEvidenceSection(&b, "Downstream", r.SupplyChainLogic.Downstream)
	if r.SupplyChainLogic.Analysis != "" {
		fmt.Fprintf(&b, "%s\n\n", r.SupplyChainLogic.Analysis)
	}

	fmt.Fprintf(&b, "## Conclusion\n\n%s\n", r.Conclusion)
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeEvidenceSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", title)
	writeList(b, items)
}

// cell escapes pipe characters so free-form model text cannot break table rows.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
