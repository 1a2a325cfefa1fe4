package llmutil

import (
	"testing"

	"google.golang.org/genai"
)

func TestExtractText_Nil(t *testing.T) {
	if got := ExtractText(nil); got != "" {
		t.Errorf("ExtractText(nil) = %q, want empty", got)
	}
	if got := ExtractText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("ExtractText(empty) = %q, want empty", got)
	}
}

func TestExtractText_ConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "hello "},
					{Text: "world"},
				},
			},
		}},
	}
	if got := ExtractText(resp); got != "hello world" {
		t.Errorf("ExtractText() = %q, want %q", got, "hello world")
	}
}

func TestExtractText_FirstCandidateOnly(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "first"}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "second"}}}},
		},
	}
	if got := ExtractText(resp); got != "first" {
		t.Errorf("ExtractText() = %q, want %q", got, "first")
	}
}
