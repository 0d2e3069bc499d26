package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// anthropicDefaultMaxTokens is used when the config does not cap the response
// length; the Anthropic API requires an explicit value.
const anthropicDefaultMaxTokens = 4096

// anthropicClient implements Client for the Anthropic messages API.
type anthropicClient struct {
	client *anthropic.Client
}

func newAnthropicClient(cfg Config) (*anthropicClient, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{client: &client}, nil
}

// Chat implements Client.Chat.
func (c *anthropicClient) Chat(ctx context.Context, cfg Config, messages []Message) (*Message, error) {
	params := buildAnthropicParams(cfg, messages)

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var content strings.Builder
	for _, blockUnion := range message.Content {
		if block, ok := blockUnion.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(block.Text)
		}
	}

	msg := NewAssistantMessage(content.String())
	msg.Stats = Stats{
		ID:               message.ID,
		Model:            string(message.Model),
		FinishReason:     string(message.StopReason),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
	return msg, nil
}

// ChatStream implements Client.ChatStream.
func (c *anthropicClient) ChatStream(ctx context.Context, cfg Config, messages []Message) (Stream, error) {
	params := buildAnthropicParams(cfg, messages)
	stream := c.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{stream: stream}, nil
}

// buildAnthropicParams converts config and messages into API params. System
// and developer messages fold into the System blocks; the tool role has no
// native counterpart and is sent as a user turn. JSON response modes are
// instruction-level for this provider, so they add nothing on the wire.
func buildAnthropicParams(cfg Config, messages []Message) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem, RoleDeveloper:
			system = append(system, anthropic.TextBlockParam{Text: m.Text()})
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(toAnthropicBlocks(m)...))
		default:
			params = append(params, anthropic.NewUserMessage(toAnthropicBlocks(m)...))
		}
	}

	maxTokens := int64(cfg.MaxCompletionTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	out := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: maxTokens,
		Messages:  params,
		System:    system,
	}
	if cfg.Temperature != nil {
		out.Temperature = anthropic.Float(float64(*cfg.Temperature))
	}
	return out
}

// toAnthropicBlocks converts message content to block params. Images arriving
// as data URLs are sent base64; anything this API cannot carry natively
// (non-data image URLs, arbitrary files) is sent as a text block so no part
// of the message silently disappears.
func toAnthropicBlocks(m Message) []anthropic.ContentBlockParamUnion {
	if len(m.Blocks) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
	for _, block := range m.Blocks {
		switch block.Type {
		case BlockTypeText:
			blocks = append(blocks, anthropic.NewTextBlock(block.Text))
		case BlockTypeImage:
			if block.Image == nil {
				continue
			}
			if mediaType, data, ok := splitDataURL(block.Image.URL); ok {
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
			} else {
				blocks = append(blocks, anthropic.NewTextBlock("Image: "+block.Image.URL))
			}
		case BlockTypeFile:
			if block.File != nil {
				blocks = append(blocks, anthropic.NewTextBlock(
					fmt.Sprintf("Attached file %s:\n%s", block.File.Filename, block.File.DataURL),
				))
			}
		}
	}
	return blocks
}

// splitDataURL splits "data:<mime>;base64,<payload>" into its media type and
// payload.
func splitDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	mediaType, data, found = strings.Cut(rest, ";base64,")
	if !found || mediaType == "" || data == "" {
		return "", "", false
	}
	return mediaType, data, true
}

// anthropicStream adapts the SDK event stream to the Stream interface. Events
// that carry neither text nor accounting are skipped.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	current *Message
	stats   Stats
	err     error
	done    bool
}

func (s *anthropicStream) Next() bool {
	if s.done {
		return false
	}
	for s.stream.Next() {
		event := s.stream.Current()

		switch evt := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			s.stats.ID = evt.Message.ID
			s.stats.Model = string(evt.Message.Model)
			s.stats.PromptTokens = int(evt.Message.Usage.InputTokens)

		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				s.current = s.newChunk(delta.Text)
				return true
			}

		case anthropic.MessageDeltaEvent:
			s.stats.FinishReason = string(evt.Delta.StopReason)
			s.stats.CompletionTokens = int(evt.Usage.OutputTokens)
			s.stats.TotalTokens = s.stats.PromptTokens + s.stats.CompletionTokens
			s.current = s.newChunk("")
			return true
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		s.err = fmt.Errorf("anthropic stream error: %w", err)
	}
	return false
}

func (s *anthropicStream) newChunk(text string) *Message {
	chunk := NewAssistantMessage(text)
	chunk.Meta.Chunk = true
	chunk.Stats = s.stats
	return chunk
}

func (s *anthropicStream) Message() *Message {
	return s.current
}

func (s *anthropicStream) Err() error {
	return s.err
}

func (s *anthropicStream) Close() error {
	s.done = true
	return s.stream.Close()
}
