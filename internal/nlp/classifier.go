package nlp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "nse-newsfeatures/internal/errors"
)

const classifierSystemPrompt = `You classify the sentiment of Indian equity market news for the company it mentions.
Reply with exactly two lines and nothing else:
LABEL: <positive|negative|neutral>
CONFIDENCE: <number between 0 and 1>`

// OpenAIClassifier implements Classifier using the OpenAI chat completions API.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier creates a new OpenAI classifier. baseURL may be empty.
func NewOpenAIClassifier(apiKey, model, baseURL string) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Classify implements Classifier.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, apperrors.ErrClassifierInput
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		MaxTokens:   20,
	})
	if err != nil {
		return "", 0, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("no response from openai")
	}
	return parseClassifierReply(resp.Choices[0].Message.Content)
}

// parseClassifierReply reads the LABEL/CONFIDENCE lines of a reply.
func parseClassifierReply(reply string) (string, float64, error) {
	var (
		label      string
		confidence float64
		haveConf   bool
	)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "LABEL:"):
			label = strings.ToLower(strings.TrimSpace(line[len("LABEL:"):]))
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			v, err := strconv.ParseFloat(strings.TrimSpace(line[len("CONFIDENCE:"):]), 64)
			if err != nil {
				return "", 0, fmt.Errorf("%w: confidence %q", apperrors.ErrClassifierResponse, line)
			}
			confidence = v
			haveConf = true
		}
	}
	if label == "" || !haveConf {
		return "", 0, fmt.Errorf("%w: %q", apperrors.ErrClassifierResponse, reply)
	}
	return label, confidence, nil
}
