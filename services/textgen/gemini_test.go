package textgensvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/trezcool/smartlearn/core"
)

func TestNewGeminiGenerator_NoKey(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), core.GeminiConfig{Model: "gemini-2.5-flash"})
	assert.NoError(t, err)
	assert.Nil(t, gen)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil", resp: nil, want: ""},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ""},
		{
			name: "no content",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			want: "",
		},
		{
			name: "parts joined",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "Photosynthesis "}, nil, {Text: "makes sugar."}}}},
				{Content: &genai.Content{Parts: []*genai.Part{{Text: "ignored"}}}},
			}},
			want: "Photosynthesis makes sugar.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, responseText(tc.resp))
		})
	}
}
