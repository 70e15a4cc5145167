// Package genai wraps the external generation capability behind a small
// interface so the rest of the service never talks to a model SDK directly.
// The concrete implementation targets any OpenAI-compatible Responses API
// endpoint.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
)

// Generator is the boundary to the generation capability. GenerateObject
// performs one blocking call and returns the model's raw JSON output;
// StreamText relays text deltas to emit as they arrive.
type Generator interface {
	GenerateObject(ctx context.Context, prompt string) (json.RawMessage, error)
	StreamText(ctx context.Context, prompt string, emit func(delta string) error) error
}

// Config holds connection settings for the generation endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client implements Generator over the OpenAI Responses API.
type Client struct {
	cfg     Config
	service responses.ResponseService
}

// NewClient creates a Client. A nil httpClient falls back to a client with a
// sane timeout; the per-call context deadline still governs streaming calls.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Client{
		cfg:     cfg,
		service: responses.NewResponseService(opts...),
	}
}

func (c *Client) params(prompt string) responses.ResponseNewParams {
	var p responses.ResponseNewParams
	p.Model = c.cfg.Model
	p.Input = responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(prompt)}
	return p
}

// GenerateObject performs a single blocking generation call and returns the
// model's output as raw JSON. Markdown code fences around the payload are
// tolerated; anything that still fails to parse as JSON is an error so that
// non-conforming output never reaches a task result.
func (c *Client) GenerateObject(ctx context.Context, prompt string) (json.RawMessage, error) {
	var rawBody []byte
	_, err := c.service.New(ctx, c.params(prompt), option.WithResponseBodyInto(&rawBody))
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}

	text, err := extractOutputText(rawBody)
	if err != nil {
		return nil, err
	}

	payload := ExtractJSON(text)
	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("generation returned non-JSON output: %.200s", text)
	}
	return json.RawMessage(payload), nil
}

// StreamText performs a streaming generation call, invoking emit for every
// text delta in arrival order. It returns the first error from either the
// stream or emit; a nil return means the generation completed and the full
// output was relayed.
func (c *Client) StreamText(ctx context.Context, prompt string, emit func(delta string) error) error {
	stream := c.service.NewStreaming(ctx, c.params(prompt))
	if stream == nil {
		return fmt.Errorf("generation stream unavailable")
	}
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		var ev struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal([]byte(event.RawJSON()), &ev); err != nil {
			return fmt.Errorf("invalid stream event: %w", err)
		}
		if ev.Type != "response.output_text.delta" || ev.Delta == "" {
			continue
		}
		if err := emit(ev.Delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("generation stream: %w", err)
	}
	return nil
}

// responsePayload mirrors the subset of the Responses API body we consume.
type responsePayload struct {
	ID     string `json:"id"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func extractOutputText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("generation returned empty response")
	}
	var decoded responsePayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}

	var sb strings.Builder
	for _, item := range decoded.Output {
		for _, content := range item.Content {
			if content.Type != "output_text" || content.Text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(content.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("generation response contained no output text")
	}
	return sb.String(), nil
}

// ExtractJSON strips a surrounding markdown code fence, if any, and trims
// whitespace. Models regularly wrap JSON in ```json fences despite
// instructions not to.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
