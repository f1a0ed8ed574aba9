package ai

import (
	"context"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const (
	openAIBaseURL      = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"
)

type OpenAIProvider struct {
	Model string
	http  *resty.Client
}

func NewOpenAIProvider(apiKey, model string, logger hclog.Logger) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	client := newRestyClient(openAIBaseURL, logger).SetAuthToken(apiKey)
	return &OpenAIProvider{Model: model, http: client}
}

// WithBaseURL points the provider at a compatible endpoint.
func (p *OpenAIProvider) WithBaseURL(url string) *OpenAIProvider {
	p.http.SetBaseURL(url)
	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	var apiErr apiError
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       p.Model,
			Messages:    []chatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: prompt}},
			Temperature: 0.2,
			MaxTokens:   1500,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", responseError("openai", resp, &apiErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	var apiErr apiError
	resp, err := p.http.R().SetContext(ctx).SetResult(&out).SetError(&apiErr).Get("/v1/models")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, responseError("openai", resp, &apiErr)
	}

	var models []string
	for _, m := range out.Data {
		// Chat models only; embeddings, audio and image models cannot complete prompts.
		if strings.HasPrefix(m.ID, "gpt-") || strings.HasPrefix(m.ID, "o1") || strings.HasPrefix(m.ID, "o3") {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}
