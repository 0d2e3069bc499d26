package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

// openaiClient implements Client against any endpoint speaking the OpenAI
// chat completions protocol. All table providers except anthropic and ollama
// go through here with their own base URL.
type openaiClient struct {
	client   *openai.Client
	provider string
}

func newOpenAIClient(cfg Config) (*openaiClient, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiClient{
		client:   openai.NewClientWithConfig(clientCfg),
		provider: cfg.Provider,
	}, nil
}

// Chat implements Client.Chat.
func (c *openaiClient) Chat(ctx context.Context, cfg Config, messages []Message) (*Message, error) {
	req := c.buildRequest(cfg, messages)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", c.provider)
	}

	choice := resp.Choices[0]
	msg := NewAssistantMessage(choice.Message.Content)
	msg.Stats = Stats{
		ID:               resp.ID,
		Model:            resp.Model,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return msg, nil
}

// ChatStream implements Client.ChatStream.
func (c *openaiClient) ChatStream(ctx context.Context, cfg Config, messages []Message) (Stream, error) {
	req := c.buildRequest(cfg, messages)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, c.convertError(err)
	}
	return &openaiStream{stream: stream, convertErr: c.convertError}, nil
}

func (c *openaiClient) buildRequest(cfg Config, messages []Message) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: lo.Map(messages, func(m Message, _ int) openai.ChatCompletionMessage { return toOpenAIMessage(m) }),
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	if cfg.MaxCompletionTokens > 0 {
		req.MaxCompletionTokens = cfg.MaxCompletionTokens
	}
	if cfg.ReasoningEffort != "" {
		req.ReasoningEffort = cfg.ReasoningEffort
	}

	switch cfg.ResponseFormat {
	case ResponseFormatJSONObject:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	case ResponseFormatJSONSchema:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: jsonSchemaFromExtra(cfg.Extra),
		}
	}
	return req
}

// toOpenAIMessage converts a neutral message to the wire shape. Messages with
// content blocks become multi-part content; the protocol has no part type for
// arbitrary files, so file blocks are sent as a text part carrying the
// filename and data URL.
func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{Role: string(m.Role)}
	if len(m.Blocks) == 0 {
		out.Content = m.Content
		return out
	}

	parts := make([]openai.ChatMessagePart, 0, len(m.Blocks))
	for _, block := range m.Blocks {
		switch block.Type {
		case BlockTypeText:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: block.Text,
			})
		case BlockTypeImage:
			if block.Image != nil {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: block.Image.URL},
				})
			}
		case BlockTypeFile:
			if block.File != nil {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: fmt.Sprintf("Attached file %s:\n%s", block.File.Filename, block.File.DataURL),
				})
			}
		}
	}
	out.MultiContent = parts
	return out
}

// jsonSchemaFromExtra builds the json_schema response format payload from the
// config side-channel. Returns nil when no schema was supplied.
func jsonSchemaFromExtra(extra map[string]any) *openai.ChatCompletionResponseFormatJSONSchema {
	raw, ok := extra["json_schema"]
	if !ok {
		return nil
	}

	var schema json.RawMessage
	switch v := raw.(type) {
	case json.RawMessage:
		schema = v
	case []byte:
		schema = json.RawMessage(v)
	case string:
		schema = json.RawMessage(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		schema = encoded
	}

	name := "response"
	if n, ok := extra["json_schema_name"].(string); ok && n != "" {
		name = n
	}
	return &openai.ChatCompletionResponseFormatJSONSchema{
		Name:   name,
		Schema: schema,
	}
}

// convertError maps SDK errors to the package error type, keeping the HTTP
// status when the provider reported one.
func (c *openaiClient) convertError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Type:       ErrorTypeTransport,
			Message:    fmt.Sprintf("%s api error: %s", c.provider, apiErr.Message),
			StatusCode: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &Error{
		Type:    ErrorTypeTransport,
		Message: fmt.Sprintf("%s request failed", c.provider),
		Err:     err,
	}
}

// openaiStream adapts the SDK stream to the Stream interface, pulling one
// chunk per Next call.
type openaiStream struct {
	stream     *openai.ChatCompletionStream
	convertErr func(error) error
	current    *Message
	err        error
	done       bool
}

func (s *openaiStream) Next() bool {
	if s.done {
		return false
	}
	resp, err := s.stream.Recv()
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.err = s.convertErr(err)
		}
		return false
	}

	chunk := NewAssistantMessage("")
	chunk.Meta.Chunk = true
	chunk.Stats.ID = resp.ID
	chunk.Stats.Model = resp.Model
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		chunk.Content = choice.Delta.Content
		chunk.Stats.FinishReason = string(choice.FinishReason)
	}
	if resp.Usage != nil {
		chunk.Stats.PromptTokens = resp.Usage.PromptTokens
		chunk.Stats.CompletionTokens = resp.Usage.CompletionTokens
		chunk.Stats.TotalTokens = resp.Usage.TotalTokens
	}
	s.current = chunk
	return true
}

func (s *openaiStream) Message() *Message {
	return s.current
}

func (s *openaiStream) Err() error {
	return s.err
}

func (s *openaiStream) Close() error {
	s.done = true
	return s.stream.Close()
}
