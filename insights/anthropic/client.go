// Package anthropic implements the insights.Provider interface on the
// Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goanthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/opsdash/opsdash/insights"
)

// Config holds Anthropic-specific configuration.
type Config struct {
	APIKey      string               `json:"api_key"`
	Model       string               `json:"model"`
	BaseURL     string               `json:"base_url,omitempty"`
	Temperature float64              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Timeout     time.Duration        `json:"timeout,omitempty"`
	RetryConfig insights.RetryConfig `json:"retry_config,omitempty"`
}

// Client generates insight reports via Anthropic.
type Client struct {
	client  *goanthropic.Client
	config  Config
	retrier *insights.Retrier
}

// NewClient creates a new Anthropic-backed provider.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("invalid config: API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
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

	opts := []goanthropic.ClientOption{
		goanthropic.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, goanthropic.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:  goanthropic.NewClient(config.APIKey, opts...),
		config:  config,
		retrier: insights.NewRetrier(config.RetryConfig),
	}, nil
}

// Name implements insights.Provider.
func (c *Client) Name() insights.ProviderName { return insights.ProviderAnthropic }

// Generate implements insights.Provider.
func (c *Client) Generate(ctx context.Context, req insights.Request) (*insights.Report, error) {
	system, user, err := insights.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	return insights.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*insights.Report, error) {
		temp := float32(c.config.Temperature)
		resp, err := c.client.CreateMessages(ctx, goanthropic.MessagesRequest{
			Model:  goanthropic.Model(c.config.Model),
			System: system,
			Messages: []goanthropic.Message{
				{
					Role:    goanthropic.RoleUser,
					Content: []goanthropic.MessageContent{{Type: "text", Text: &user}},
				},
			},
			MaxTokens:   c.config.MaxTokens,
			Temperature: &temp,
		})
		if err != nil {
			return nil, c.convertError(err)
		}
		if len(resp.Content) == 0 {
			return nil, insights.NewProviderError(insights.ProviderAnthropic, insights.ErrorTypeUnknown, "no content returned", nil)
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" && block.Text != nil {
				text.WriteString(*block.Text)
			}
		}
		return &insights.Report{
			Summary:  req.Summary,
			Insights: text.String(),
			Model:    c.config.Model,
			Provider: insights.ProviderAnthropic,
		}, nil
	})
}

// convertError maps API failures onto the shared taxonomy.
func (c *Client) convertError(err error) *insights.ProviderError {
	var reqErr *goanthropic.RequestError
	if errors.As(err, &reqErr) {
		pe := insights.ParseHTTPError(insights.ProviderAnthropic, reqErr.StatusCode, err.Error())
		pe.Model = c.config.Model
		pe.Cause = err
		return pe
	}
	var apiErr *goanthropic.APIError
	if errors.As(err, &apiErr) {
		errorType := insights.ErrorTypeUnknown
		switch apiErr.Type {
		case goanthropic.ErrTypeAuthentication:
			errorType = insights.ErrorTypeAuthentication
		case goanthropic.ErrTypeRateLimit:
			errorType = insights.ErrorTypeRateLimit
		case goanthropic.ErrTypeOverloaded:
			errorType = insights.ErrorTypeServerError
		case goanthropic.ErrTypeInvalidRequest:
			errorType = insights.ErrorTypeInvalidRequest
		}
		pe := insights.NewProviderError(insights.ProviderAnthropic, errorType, apiErr.Message, err)
		pe.Model = c.config.Model
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		pe := insights.NewProviderError(insights.ProviderAnthropic, insights.ErrorTypeTimeout, "request timed out", err)
		pe.Model = c.config.Model
		return pe
	}
	pe := insights.NewProviderError(insights.ProviderAnthropic, insights.ErrorTypeConnection, err.Error(), err)
	pe.Model = c.config.Model
	return pe
}

var _ insights.Provider = (*Client)(nil)
