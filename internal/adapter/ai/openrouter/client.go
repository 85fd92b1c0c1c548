// Package openrouter implements the chat-completion gateway backed by the
// OpenRouter (OpenAI-compatible) API.
package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hiredeck/hiredeck/internal/adapter/observability"
	"github.com/hiredeck/hiredeck/internal/config"
	"github.com/hiredeck/hiredeck/internal/domain"
)

// Client implements domain.ChatCompleter. Settings (credential, model,
// referer metadata) are fetched from the settings repository on every call
// so administrative changes take effect without a restart. The client makes
// exactly one upstream attempt per call: retries belong to callers.
type Client struct {
	cfg      config.Config
	settings domain.SettingsRepository
	hc       *http.Client
}

// New constructs a gateway client with a bounded request timeout.
func New(cfg config.Config, settings domain.SettingsRepository) *Client {
	timeout := cfg.AIRequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:      cfg,
		settings: settings,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Complete sends one chat completion and returns the message content.
func (c *Client) Complete(ctx domain.Context, req domain.CompletionRequest) (string, error) {
	st, err := c.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load settings: %v", domain.ErrUpstreamConfig, err)
	}
	if st.APIKey == "" {
		slog.Error("chat credential missing", slog.String("provider", "openrouter"))
		return "", fmt.Errorf("%w: API key not configured", domain.ErrUpstreamConfig)
	}

	model := c.resolveModel(ctx, st)

	op := req.Op
	if op == "" {
		op = "chat"
	}
	slog.Info("calling chat completion",
		slog.String("provider", "openrouter"),
		slog.String("op", op),
		slog.String("model", model),
		slog.String("key_prefix", keyPrefix(st.APIKey)),
		slog.Float64("temperature", req.Temperature),
		slog.Int("max_tokens", req.MaxTokens))

	body := map[string]any{
		"model":       model,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.Prompt},
		},
	}
	b, _ := json.Marshal(body)

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrUpstreamRequest, err)
	}
	r.Header.Set("Authorization", "Bearer "+st.APIKey)
	r.Header.Set("Content-Type", "application/json")
	if st.RefererURL != "" {
		r.Header.Set("HTTP-Referer", st.RefererURL)
	}
	if st.SiteName != "" {
		r.Header.Set("X-Title", st.SiteName)
	}

	start := time.Now()
	resp, err := c.hc.Do(r)
	observability.AIRequestsTotal.WithLabelValues("openrouter", op).Inc()
	observability.AIRequestDuration.WithLabelValues("openrouter", op).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("chat transport error", slog.String("provider", "openrouter"), slog.String("op", op), slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrUpstreamRequest, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		slog.Warn("chat auth rejected", slog.String("provider", "openrouter"), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("key_prefix", keyPrefix(st.APIKey)))
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstreamAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("chat rate limited", slog.String("provider", "openrouter"), slog.String("op", op), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
		return "", fmt.Errorf("%w: rate limited", domain.ErrUpstreamRequest)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		slog.Error("chat non-2xx", slog.String("provider", "openrouter"), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("model", model), slog.String("body", snippet(bodyBytes, 512)))
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstreamRequest, resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		slog.Error("chat decode error", slog.String("provider", "openrouter"), slog.String("op", op), slog.Any("error", err))
		return "", fmt.Errorf("%w: decode: %v", domain.ErrUpstreamRequest, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty choices", domain.ErrUpstreamRequest)
	}
	return out.Choices[0].Message.Content, nil
}

// resolveModel returns the model identifier to use for this call, resetting
// the stored name to the safe default when it looks like a pasted
// credential. The correction is persisted so subsequent calls (and the
// admin UI) see the healed value.
func (c *Client) resolveModel(ctx domain.Context, st domain.AISettings) string {
	model := strings.TrimSpace(st.ModelName)
	if model == "" {
		return c.cfg.DefaultChatModel
	}
	if !looksLikeCredential(model) {
		return model
	}
	slog.Warn("stored model name looks like a credential; resetting to default",
		slog.String("model_prefix", keyPrefix(model)),
		slog.String("default", c.cfg.DefaultChatModel))
	observability.ModelNameHealsTotal.Inc()
	if err := c.settings.SetModelName(ctx, c.cfg.DefaultChatModel); err != nil {
		slog.Error("failed to persist healed model name", slog.Any("error", err))
	}
	return c.cfg.DefaultChatModel
}

// looksLikeCredential flags strings with the lexical shape of an API key
// rather than a provider/model identifier.
func looksLikeCredential(s string) bool {
	if strings.HasPrefix(s, "sk-") || strings.HasPrefix(s, "Bearer ") {
		return true
	}
	// Model identifiers are short-ish and slash-qualified; keys are long
	// opaque blobs.
	return len(s) >= 40 && !strings.Contains(s, "/")
}

func keyPrefix(k string) string {
	if len(k) <= 8 {
		return k
	}
	return k[:8] + "..."
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

var _ domain.ChatCompleter = (*Client)(nil)
