// Package inference talks to the local model-serving endpoint.  It carries
// the request/response contract only: prompts go in, one textual payload
// comes back.  Interpretation of the payload lives in parse.go and every
// caller is expected to survive this service being down.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/referta/referta/internal/config"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/pkg/errors"
)

// Client generates one completion for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Health(ctx context.Context) error
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type ollamaClient struct {
	cfg        config.InferenceConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient constructs the model-serving client.  A nil logger falls back to
// the no-op implementation.
func NewClient(cfg config.InferenceConfig, logger logging.Logger) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.InvalidParam("inference: base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.InvalidParam("inference: model name is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ollamaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("inference"),
	}, nil
}

// Generate posts the prompt and returns the raw textual payload.  Transport
// failures, non-200 statuses, and empty payloads all surface as errors; the
// caller decides whether that means falling back.
func (c *ollamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "inference: encode request")
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "inference: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAIUnavailable, "inference: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drained, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.New(errors.ErrCodeAIInferenceFailed,
			fmt.Sprintf("inference: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(drained))))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAIResponseMalformed, "inference: decode response")
	}

	result := strings.TrimSpace(decoded.Response)
	c.logger.Debug("model response received",
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("length", len(result)),
	)

	if result == "" {
		return "", errors.New(errors.ErrCodeAIResponseMalformed, "inference: empty response payload")
	}
	return result, nil
}

// Health probes the endpoint root; the serving daemon answers 200 there.
func (c *ollamaClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.cfg.BaseURL, "/")+"/", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "inference: build health request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAIUnavailable, "inference: health probe failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeAIUnavailable,
			fmt.Sprintf("inference: health probe returned %d", resp.StatusCode))
	}
	return nil
}
