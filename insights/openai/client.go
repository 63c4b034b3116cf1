// Package openai implements the insights.Provider interface on the OpenAI
// chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/opsdash/opsdash/insights"
)

// Config holds OpenAI-specific configuration.
type Config struct {
	APIKey       string               `json:"api_key"`
	Model        string               `json:"model"`
	BaseURL      string               `json:"base_url,omitempty"`
	Temperature  float64              `json:"temperature,omitempty"`
	MaxTokens    int                  `json:"max_tokens,omitempty"`
	Timeout      time.Duration        `json:"timeout,omitempty"`
	RetryConfig  insights.RetryConfig `json:"retry_config,omitempty"`
	Organization string               `json:"organization,omitempty"`
}

// Client generates insight reports via OpenAI.
type Client struct {
	client  *goopenai.Client
	config  Config
	retrier *insights.Retrier
}

// NewClient creates a new OpenAI-backed provider.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("invalid config: API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = insights.DefaultRetryConfig()
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Organization != "" {
		clientConfig.OrgID = config.Organization
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Client{
		client:  goopenai.NewClientWithConfig(clientConfig),
		config:  config,
		retrier: insights.NewRetrier(config.RetryConfig),
	}, nil
}

// Name implements insights.Provider.
func (c *Client) Name() insights.ProviderName { return insights.ProviderOpenAI }

// Generate implements insights.Provider.
func (c *Client) Generate(ctx context.Context, req insights.Request) (*insights.Report, error) {
	system, user, err := insights.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	return insights.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*insights.Report, error) {
		resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleSystem, Content: system},
				{Role: goopenai.ChatMessageRoleUser, Content: user},
			},
			Temperature: float32(c.config.Temperature),
			MaxTokens:   c.config.MaxTokens,
		})
		if err != nil {
			return nil, c.convertError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, insights.NewProviderError(insights.ProviderOpenAI, insights.ErrorTypeUnknown, "no choices returned", nil)
		}
		return &insights.Report{
			Summary:  req.Summary,
			Insights: resp.Choices[0].Message.Content,
			Model:    c.config.Model,
			Provider: insights.ProviderOpenAI,
		}, nil
	})
}

// convertError maps API failures onto the shared taxonomy.
func (c *Client) convertError(err error) *insights.ProviderError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		pe := insights.ParseHTTPError(insights.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
		pe.Model = c.config.Model
		pe.Cause = err
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		pe := insights.NewProviderError(insights.ProviderOpenAI, insights.ErrorTypeTimeout, "request timed out", err)
		pe.Model = c.config.Model
		return pe
	}
	pe := insights.NewProviderError(insights.ProviderOpenAI, insights.ErrorTypeConnection, err.Error(), err)
	pe.Model = c.config.Model
	return pe
}

var _ insights.Provider = (*Client)(nil)
