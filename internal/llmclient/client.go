// File: internal/llmclient/client.go
package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/wayfarer-cli/internal/config"
	"github.com/xkilldash9x/wayfarer-cli/internal/network"
)

// ErrContextOverflow is returned when the inference server keeps rejecting
// the request as too large even after the prompt has been shrunk.
var ErrContextOverflow = errors.New("model context window exceeded")

// Client talks to an OpenAI-compatible inference server (vLLM, llama.cpp,
// text-generation-webui). It prefers the chat completions endpoint and
// degrades to legacy completions when the server does not serve chat.
type Client struct {
	cfg        config.ModelConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	model   string
	useChat bool
}

// -- Wire structures for the OpenAI-compatible API --

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage usageInfo `json:"usage"`
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage usageInfo `json:"usage"`
}

type usageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type modelListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewClient initializes the client. The served model name is resolved lazily
// via DetectModel; until then the configured name (or fallback) is used.
func NewClient(cfg config.ModelConfig, logger *zap.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	model := cfg.Name
	if model == "" {
		model = cfg.FallbackName
	}

	netCfg := network.NewDefaultClientConfig()
	if cfg.APITimeout > 0 {
		netCfg.RequestTimeout = cfg.APITimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: network.NewClient(netCfg).Client,
		limiter:    limiter,
		logger:  logger.Named("llm_client"),
		model:   model,
		useChat: true,
	}
}

// Model returns the model name currently used for requests.
func (c *Client) Model() string {
	return c.model
}

// DetectModel asks the server which model it is serving and adopts the first
// entry. Any failure leaves the configured fallback name in place; local
// single-model servers generally ignore the field anyway.
func (c *Client) DetectModel(ctx context.Context) string {
	if c.cfg.Name != "" {
		c.model = c.cfg.Name
		return c.model
	}

	url := strings.TrimSuffix(c.cfg.Endpoint, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.model
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Model autodetection failed, using fallback name",
			zap.String("fallback", c.model), zap.Error(err))
		return c.model
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Warn("Model autodetection failed, using fallback name",
			zap.String("fallback", c.model), zap.Int("status", resp.StatusCode))
		return c.model
	}

	var list modelListResponse
	if err := json.Unmarshal(body, &list); err != nil || len(list.Data) == 0 || list.Data[0].ID == "" {
		c.logger.Warn("Model list empty or unreadable, using fallback name",
			zap.String("fallback", c.model))
		return c.model
	}

	c.model = list.Data[0].ID
	c.logger.Info("Detected served model", zap.String("model", c.model))
	return c.model
}

// Generate sends the system and user prompts to the server and returns the
// generated text. When the server rejects the request as too large the user
// prompt is halved and retried twice before giving up with
// ErrContextOverflow.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter interrupted: %w", err)
		}
	}

	const maxShrinkAttempts = 3

	for attempt := 1; attempt <= maxShrinkAttempts; attempt++ {
		status, body, err := c.post(ctx, systemPrompt, userPrompt)
		if err != nil {
			return "", err
		}

		switch status {
		case http.StatusOK:
			return c.decodeContent(body)

		case http.StatusNotFound:
			if c.useChat {
				// Server has no chat endpoint; retry the same prompt against
				// the legacy completions route.
				c.logger.Info("Chat completions endpoint missing, falling back to legacy completions")
				c.useChat = false
				attempt--
				continue
			}
			return "", fmt.Errorf("inference server has neither chat nor legacy completions endpoint")

		case http.StatusBadRequest:
			if attempt == maxShrinkAttempts {
				return "", fmt.Errorf("request rejected after %d shrink attempts: %w", maxShrinkAttempts, ErrContextOverflow)
			}
			userPrompt = userPrompt[:len(userPrompt)/2]
			c.logger.Warn("Server rejected request as too large, halving prompt",
				zap.Int("attempt", attempt), zap.Int("new_prompt_chars", len(userPrompt)))

		default:
			return "", fmt.Errorf("inference server error: status %d, body: %s", status, string(body))
		}
	}

	return "", ErrContextOverflow
}

// post performs a single logical request with retries for transient
// failures. Terminal statuses (200, 400, 404) are returned to the caller for
// interpretation.
func (c *Client) post(ctx context.Context, systemPrompt, userPrompt string) (int, []byte, error) {
	payload, path, err := c.buildPayload(systemPrompt, userPrompt)
	if err != nil {
		return 0, nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var (
		status   int
		respBody []byte
	)

	operation := func() error {
		url := strings.TrimSuffix(c.cfg.Endpoint, "/") + path
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during model request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusBadRequest, http.StatusNotFound:
			status = resp.StatusCode
			respBody = body
			c.logger.Debug("Model request finished",
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", time.Since(startTime)))
			return nil
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			c.logger.Warn("Transient server error, retrying...",
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("inference server returned status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("inference server error: status %d, body: %s", resp.StatusCode, string(body)))
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return 0, nil, err
	}
	return status, respBody, nil
}

func (c *Client) buildPayload(systemPrompt, userPrompt string) ([]byte, string, error) {
	if c.useChat {
		req := chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal chat request: %w", err)
		}
		return body, "/chat/completions", nil
	}

	req := completionRequest{
		Model:       c.model,
		Prompt:      systemPrompt + "\n\n" + userPrompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal completion request: %w", err)
	}
	return body, "/completions", nil
}

func (c *Client) decodeContent(body []byte) (string, error) {
	if c.useChat {
		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode chat response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("inference server returned no choices")
		}
		c.logTokens(resp.Usage)
		return resp.Choices[0].Message.Content, nil
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("inference server returned no choices")
	}
	c.logTokens(resp.Usage)
	return resp.Choices[0].Text, nil
}

func (c *Client) logTokens(u usageInfo) {
	if u.TotalTokens == 0 {
		return
	}
	c.logger.Info("Model generation complete",
		zap.Int("prompt_tokens", u.PromptTokens),
		zap.Int("completion_tokens", u.CompletionTokens),
		zap.Int("total_tokens", u.TotalTokens),
	)
}
