package ai

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// knownAnthropicModels is returned when the models endpoint is unreachable.
var knownAnthropicModels = []string{
	"claude-3-5-haiku-latest",
	"claude-3-5-sonnet-latest",
	"claude-3-opus-latest",
}

type AnthropicProvider struct {
	Model string
	http  *resty.Client
}

func NewAnthropicProvider(apiKey, model string, logger hclog.Logger) *AnthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	client := newRestyClient(anthropicBaseURL, logger).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion)
	return &AnthropicProvider{Model: model, http: client}
}

func (p *AnthropicProvider) WithBaseURL(url string) *AnthropicProvider {
	p.http.SetBaseURL(url)
	return p
}

type messagesRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	var out messagesResponse
	var apiErr apiError
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(messagesRequest{
			Model:     p.Model,
			System:    systemPrompt,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens: 1500,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/messages")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", responseError("anthropic", resp, &apiErr)
	}

	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	resp, err := p.http.R().SetContext(ctx).SetResult(&out).Get("/v1/models")
	if err != nil || resp.IsError() || len(out.Data) == 0 {
		return append([]string(nil), knownAnthropicModels...), nil
	}
	models := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
