// ABOUTME: Report is the tagged union of final task outputs: IndustryInsight or
// ABOUTME: CredibilityReport, with "type"-discriminated JSON round-trip support.
package report

import (
	"encoding/json"
	"fmt"
)

// Report is the immutable structured output of a completed task.
// Exactly two shapes exist: IndustryInsight and CredibilityReport.
type Report interface {
	ReportType() string
	reportSeal()
}

const (
	TypeIndustryInsight   = "industry_insight"
	TypeCredibilityReport = "credibility_report"
)

// MarshalReport serializes a Report with a "type" discriminator inlined into
// the top-level object.
func MarshalReport(r Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil report")
	}
	return marshalTagged(r.ReportType(), r)
}

// UnmarshalReport deserializes a Report from JSON produced by MarshalReport.
func UnmarshalReport(data []byte) (Report, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal report type: %w", err)
	}

	switch envelope.Type {
	case TypeIndustryInsight:
		var r IndustryInsight
		return r, json.Unmarshal(data, &r)
	case TypeCredibilityReport:
		var r CredibilityReport
		return r, json.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("unknown report type: %q", envelope.Type)
	}
}

// marshalTagged marshals v and injects the "type" field into the resulting
// object.
func marshalTagged(typeName string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("re-marshal tagged %s: %w", typeName, err)
	}
	typeJSON, err := json.Marshal(typeName)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	return json.Marshal(fields)
}

// clampScore bounds a 0-100 score.
func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
