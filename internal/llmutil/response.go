package llmutil

import (
	"google.golang.org/genai"
)

// ExtractText concatenates all text parts from the first candidate of a
// generate-content response. Returns an empty string if the response has
// no candidates or content.
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var text string
	for _, p := range content.Parts {
		if p.Text != "" {
			text += p.Text
		}
	}
	return text
}
