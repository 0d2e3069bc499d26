// Package agent builds workers around an instruction template and an LLM
// transport, and composes them into groups, a registry, and a legion that
// routes a conversation to the right worker.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/llm"
	"github.com/vincentdeneuf/agentine/prompt"
)

// Agent pairs an instruction template with an LLM transport. The instruction
// becomes the system message of every request, rendered against the data
// payload passed to Work or Stream.
type Agent struct {
	// Instruction is the system prompt template. Placeholders use the
	// <<key>> syntax understood by the prompt package.
	Instruction string
	// Name identifies the agent in registries and routing annotations.
	Name string
	// LLM is the transport used for every request.
	LLM *llm.LLM

	mu             sync.RWMutex
	responseFormat llm.ResponseFormat
	logger         zerolog.Logger
}

// Option is a functional option for configuring an Agent.
type Option func(*Agent)

// WithName sets the agent's name.
func WithName(name string) Option {
	return func(a *Agent) {
		a.Name = name
	}
}

// WithLLM sets the transport. Without this option the agent gets a default
// transport built from an empty config.
func WithLLM(transport *llm.LLM) Option {
	return func(a *Agent) {
		a.LLM = transport
	}
}

// WithResponseFormat sets the response format the agent requests.
func WithResponseFormat(f llm.ResponseFormat) Option {
	return func(a *Agent) {
		a.responseFormat = f
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger.With().Str("component", "agent").Logger()
	}
}

// New creates an agent for the given instruction. The agent's response format
// is pushed into the transport at construction so the two never disagree; use
// SetResponseFormat to change both afterwards.
func New(instruction string, opts ...Option) (*Agent, error) {
	a := &Agent{
		Instruction:    instruction,
		responseFormat: llm.ResponseFormatText,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.responseFormat == "" {
		a.responseFormat = llm.ResponseFormatText
	}
	if a.LLM == nil {
		transport, err := llm.New(llm.Config{})
		if err != nil {
			return nil, err
		}
		a.LLM = transport
	}
	a.LLM.SetResponseFormat(a.responseFormat)
	return a, nil
}

// ResponseFormat returns the response format the agent requests.
func (a *Agent) ResponseFormat() llm.ResponseFormat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.responseFormat
}

// SetResponseFormat changes the response format on the agent and its
// transport together.
func (a *Agent) SetResponseFormat(f llm.ResponseFormat) {
	if f == "" {
		f = llm.ResponseFormatText
	}
	a.mu.Lock()
	a.responseFormat = f
	a.mu.Unlock()
	a.LLM.SetResponseFormat(f)
}

// prepare assembles the request: the instruction as the system message, then
// the history, then the query as the final user message. When data is present
// both the instruction and the query are rendered against it.
func (a *Agent) prepare(query string, history []llm.Message, data map[string]any) []llm.Message {
	instruction := a.Instruction
	if len(data) > 0 {
		instruction = prompt.Format(instruction, data)
		if query != "" {
			query = prompt.Format(query, data)
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	if instruction != "" {
		messages = append(messages, *llm.NewSystemMessage(instruction))
	}
	messages = append(messages, history...)
	if query != "" {
		messages = append(messages, *llm.NewUserMessage(query))
	}
	return messages
}

// Work sends the prepared conversation and returns the whole response. In
// json_object mode the response content is parsed into Message.Data; a
// response that is not a JSON object is a data format error.
func (a *Agent) Work(ctx context.Context, query string, history []llm.Message, data map[string]any) (*llm.Message, error) {
	messages := a.prepare(query, history, data)
	a.logger.Debug().
		Str("agent", a.Name).
		Int("messages", len(messages)).
		Msg("Working")

	result, err := a.LLM.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	if a.ResponseFormat() == llm.ResponseFormatJSONObject {
		var payload map[string]any
		if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
			return nil, llm.NewDataFormatError(
				fmt.Sprintf("response is not a JSON object: %q", result.Content),
				err,
			)
		}
		result.Data = payload
		result.Meta.RecordChange("data")
	}
	return result, nil
}

// Stream opens a streaming request for the prepared conversation. Structured
// parsing does not apply to streams.
func (a *Agent) Stream(ctx context.Context, query string, history []llm.Message, data map[string]any) (llm.Stream, error) {
	messages := a.prepare(query, history, data)
	a.logger.Debug().
		Str("agent", a.Name).
		Int("messages", len(messages)).
		Msg("Streaming")
	return a.LLM.Stream(ctx, messages)
}
