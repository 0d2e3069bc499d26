// Package llm is a thin, provider-neutral layer over remote chat completion APIs.
//
// The package owns the conversation data model and the transport boundary so the
// rest of the codebase can work with multiple providers (OpenAI-compatible
// endpoints, Anthropic, Ollama, etc.) without being coupled to any specific SDK.
//
// # Core Concepts
//
//  1. Messages: the Message type represents a conversation message with a role
//     (system, developer, user, assistant, tool), plain text content or ordered
//     multimodal content blocks, an optional structured Data payload, usage
//     Stats, and bookkeeping Metadata.
//
//  2. Providers: a static registry maps provider names to their credential
//     environment variable, endpoint, and default model. All OpenAI-compatible
//     providers (groq, xai, deepseek, ...) share one client implementation with
//     a per-provider base URL.
//
//  3. Config: a closed Config struct describes one transport: provider,
//     credential, endpoint, model, response format, sampling parameters, and
//     retry/concurrency bounds. Provider-specific knobs that have no first-class
//     field travel in the Extra map.
//
//  4. LLM: the LLM type wraps a provider Client with bounded exponential-backoff
//     retry and offers Chat (whole response), Stream (incremental deltas), and
//     Batch (concurrent independent requests, results in input order).
//
//  5. Errors: the Error type carries a category (configuration, not found,
//     protocol, transport, data format), an HTTP status when known, and the
//     attempt count after retry exhaustion. Use the Is* predicates with
//     errors.As semantics.
//
// # Usage
//
//	client, err := llm.New(llm.Config{Provider: "groq"})
//	if err != nil {
//	    return err
//	}
//
//	resp, err := client.Chat(ctx, []llm.Message{
//	    *llm.NewUserMessage("Hello!"),
//	})
//
// To add a new provider either add a row to the provider table (when the
// endpoint speaks the OpenAI chat completions protocol) or implement the Client
// interface and wire it into newClient.
package llm
