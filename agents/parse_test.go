// ABOUTME: Tests for completion parsing: fenced JSON extraction, prose-wrapped
// ABOUTME: objects, and malformed output classification.

package agents

import (
	"errors"
	"testing"

	"github.com/2389-research/spyglass/llm"
)

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
		wantVal any
		wantErr bool
	}{
		{
			"bare json",
			`{"heat_score": 70}`,
			"heat_score", float64(70), false,
		},
		{
			"json fence",
			"Here you go:\n```json\n{\"heat_score\": 70}\n```\nHope that helps.",
			"heat_score", float64(70), false,
		},
		{
			"anonymous fence",
			"```\n{\"summary\": \"ok\"}\n```",
			"summary", "ok", false,
		},
		{
			"prose wrapped",
			`The analysis follows. {"summary": "ok"} That concludes it.`,
			"summary", "ok", false,
		},
		{
			"leading whitespace",
			"\n\n  {\"summary\": \"ok\"}  ",
			"summary", "ok", false,
		},
		{
			"not json at all",
			"I cannot answer that.",
			"", nil, true,
		},
		{
			"json array not object",
			`[1, 2, 3]`,
			"", nil, true,
		},
		{
			"empty",
			"",
			"", nil, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONResponse(tt.content)
			if tt.wantErr {
				var moe *llm.MalformedOutputError
				if !errors.As(err, &moe) {
					t.Fatalf("ParseJSONResponse() error = %v, want MalformedOutputError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseJSONResponse() error = %v", err)
			}
			if got[tt.wantKey] != tt.wantVal {
				t.Errorf("parsed[%q] = %v, want %v", tt.wantKey, got[tt.wantKey], tt.wantVal)
			}
		})
	}
}

func TestParseJSONResponseErrorIsRetryable(t *testing.T) {
	_, err := ParseJSONResponse("not json")
	var r interface{ IsRetryable() bool }
	if !errors.As(err, &r) || !r.IsRetryable() {
		t.Errorf("parse error %v should be retryable", err)
	}
}
