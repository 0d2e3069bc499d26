package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// ollamaClient implements Client for a local or remote Ollama server.
type ollamaClient struct {
	client *api.Client
}

func newOllamaClient(cfg Config) (*ollamaClient, error) {
	if cfg.BaseURL != "" {
		baseURL, err := parseOllamaHost(cfg.BaseURL)
		if err != nil {
			return nil, NewConfigurationError("invalid ollama host %q: %v", cfg.BaseURL, err)
		}
		return &ollamaClient{client: api.NewClient(baseURL, &http.Client{})}, nil
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &ollamaClient{client: client}, nil
}

// parseOllamaHost parses a host string into a URL, defaulting the scheme to
// http.
func parseOllamaHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Chat implements Client.Chat.
func (c *ollamaClient) Chat(ctx context.Context, cfg Config, messages []Message) (*Message, error) {
	req := buildOllamaRequest(cfg, messages, false)

	var final api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat request failed: %w", err)
	}

	msg := NewAssistantMessage(final.Message.Content)
	msg.Stats = ollamaStats(final)
	return msg, nil
}

// ChatStream implements Client.ChatStream. The callback-driven API is bridged
// to the pull-based Stream interface with a producer goroutine; Close cancels
// the request and drains the goroutine.
func (c *ollamaClient) ChatStream(ctx context.Context, cfg Config, messages []Message) (Stream, error) {
	req := buildOllamaRequest(cfg, messages, true)

	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan *Message)
	var streamErr error
	go func() {
		defer close(ch)
		err := c.client.Chat(streamCtx, req, func(resp api.ChatResponse) error {
			chunk := NewAssistantMessage(resp.Message.Content)
			chunk.Meta.Chunk = true
			if resp.Done {
				chunk.Stats = ollamaStats(resp)
			}
			ch <- chunk
			return nil
		})
		if err != nil && streamCtx.Err() == nil {
			streamErr = fmt.Errorf("ollama stream error: %w", err)
		}
	}()

	return &chanStream{
		ch:     ch,
		errFn:  func() error { return streamErr },
		cancel: cancel,
	}, nil
}

func buildOllamaRequest(cfg Config, messages []Message, stream bool) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    cfg.Model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options:  make(map[string]any),
	}
	if cfg.Temperature != nil {
		req.Options["temperature"] = *cfg.Temperature
	}
	if cfg.MaxCompletionTokens > 0 {
		req.Options["num_predict"] = cfg.MaxCompletionTokens
	}

	switch cfg.ResponseFormat {
	case ResponseFormatJSONObject:
		req.Format = json.RawMessage(`"json"`)
	case ResponseFormatJSONSchema:
		if schema := jsonSchemaFromExtra(cfg.Extra); schema != nil {
			if raw, ok := schema.Schema.(json.RawMessage); ok {
				req.Format = raw
			}
		} else {
			req.Format = json.RawMessage(`"json"`)
		}
	}
	return req
}

// toOllamaMessages converts neutral messages to the wire shape. Data-URL
// images decode into the Images payload; the developer role maps to system;
// file blocks are sent as text since the API has no file attachment.
func toOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if m.Role == RoleDeveloper {
			role = string(RoleSystem)
		}
		msg := api.Message{Role: role, Content: m.Content}

		if len(m.Blocks) > 0 {
			var text strings.Builder
			for _, block := range m.Blocks {
				switch block.Type {
				case BlockTypeText:
					text.WriteString(block.Text)
				case BlockTypeImage:
					if block.Image == nil {
						continue
					}
					if _, data, ok := splitDataURL(block.Image.URL); ok {
						if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
							msg.Images = append(msg.Images, api.ImageData(decoded))
							continue
						}
					}
					text.WriteString("\nImage: " + block.Image.URL)
				case BlockTypeFile:
					if block.File != nil {
						fmt.Fprintf(&text, "\nAttached file %s:\n%s", block.File.Filename, block.File.DataURL)
					}
				}
			}
			msg.Content = text.String()
		}
		out = append(out, msg)
	}
	return out
}

func ollamaStats(resp api.ChatResponse) Stats {
	return Stats{
		Model:            resp.Model,
		FinishReason:     resp.DoneReason,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
}
