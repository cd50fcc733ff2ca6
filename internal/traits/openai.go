package traits

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kalambet/persona/internal/storage"
)

const systemPrompt = `You estimate Big Five personality trait scores from
aggregated behavioral signals of a single user. Respond with a JSON object
containing exactly the keys "openness", "conscientiousness", "extraversion",
"agreeableness" and "emotional_stability", each a number between 0.0 and 1.0.
Base the scores only on the provided signals. Do not include any other text.`

// OpenAIScorer scores traits via a chat completion model.
type OpenAIScorer struct {
	client *openai.Client
	model  string
}

// NewOpenAIScorer builds a scorer against the given endpoint. An empty
// baseURL uses the default OpenAI API.
func NewOpenAIScorer(apiKey, baseURL, model string) *OpenAIScorer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIScorer{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Score asks the model for trait scores. The returned traits are validated
// and clamped; any transport or decoding failure surfaces as an error so the
// caller can apply its fallback policy.
func (s *OpenAIScorer) Score(ctx context.Context, ev Evidence) (storage.Traits, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: ev.Digest()},
		},
	})
	if err != nil {
		return storage.Traits{}, fmt.Errorf("creating trait completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return storage.Traits{}, fmt.Errorf("trait completion returned no choices")
	}

	var t storage.Traits
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return storage.Traits{}, fmt.Errorf("decoding trait scores: %w", err)
	}
	return Validate(t)
}
