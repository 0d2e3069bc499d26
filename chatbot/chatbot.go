// Package chatbot implements the interactive terminal chat loop.
package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/conversations"
	"github.com/vincentdeneuf/agentine/llm"
)

const uploadCommand = "--upload file"

var errInputClosed = errors.New("input closed")

// Client answers one chat turn. agent.Legion implements it directly; a plain
// agent is wrapped by the caller.
type Client interface {
	Work(ctx context.Context, query string, history []llm.Message) (*llm.Message, error)
	Stream(ctx context.Context, query string, history []llm.Message) (llm.Stream, error)
}

// Options controls how replies are produced and displayed.
type Options struct {
	Stream    bool // print replies token by token
	ShowStats bool // print token usage after each reply
}

// Chatbot runs a line-based conversation against a Client, keeping the
// running history and optionally persisting each completed turn.
type Chatbot struct {
	client    Client
	history   []llm.Message
	in        io.Reader
	out       io.Writer
	store     *conversations.Store
	sessionID string
	logger    zerolog.Logger
}

// Option configures a Chatbot.
type Option func(*Chatbot)

// WithInput sets the reader user input comes from. Defaults to stdin.
func WithInput(r io.Reader) Option {
	return func(c *Chatbot) {
		c.in = r
	}
}

// WithOutput sets the writer the conversation is printed to. Defaults to
// stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Chatbot) {
		c.out = w
	}
}

// WithStore persists every completed turn to the given session.
func WithStore(store *conversations.Store, sessionID string) Option {
	return func(c *Chatbot) {
		c.store = store
		c.sessionID = sessionID
	}
}

// WithHistory seeds the conversation, for resuming a stored session.
func WithHistory(history []llm.Message) Option {
	return func(c *Chatbot) {
		c.history = append(c.history, history...)
	}
}

// WithLogger sets the logger for the chatbot.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Chatbot) {
		c.logger = logger.With().Str("component", "chatbot").Logger()
	}
}

// New creates a chatbot around the given client.
func New(client Client, opts ...Option) (*Chatbot, error) {
	if client == nil {
		return nil, llm.NewConfigurationError("chatbot requires a client")
	}
	c := &Chatbot{
		client: client,
		in:     os.Stdin,
		out:    os.Stdout,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// History returns a copy of the conversation so far.
func (c *Chatbot) History() []llm.Message {
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Run reads queries until "exit", end of input, or context cancellation.
// A failed turn is reported and retried; the unanswered query is dropped
// from the history so the next turn starts clean.
func (c *Chatbot) Run(ctx context.Context, opts Options) error {
	scanner := bufio.NewScanner(c.in)
	fmt.Fprintln(c.out, "Chatbot started. Type 'exit' to quit.")
	fmt.Fprintln(c.out)

	for {
		if ctx.Err() != nil {
			return nil
		}

		query, err := c.readLine(scanner, "YOU: ")
		if err != nil {
			if errors.Is(err, errInputClosed) {
				return nil
			}
			return err
		}
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "exit") {
			fmt.Fprintln(c.out, "Chatbot session ended.")
			return nil
		}

		var userMsg *llm.Message
		if query == uploadCommand {
			fileMsg, err := c.readFileMessage(scanner)
			if err != nil {
				if errors.Is(err, errInputClosed) {
					return nil
				}
				fmt.Fprintf(c.out, "Error: %v\n\n", err)
				continue
			}
			userMsg = fileMsg
		} else {
			userMsg = llm.NewUserMessage(query)
		}

		c.history = append(c.history, *userMsg)
		reply, err := c.respond(ctx, opts)
		if err != nil {
			c.history = c.history[:len(c.history)-1]
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("Chat turn failed")
			fmt.Fprintf(c.out, "Error: %v\n\n", err)
			continue
		}
		c.history = append(c.history, *reply)
		c.persist(ctx, userMsg, reply)

		if opts.ShowStats {
			c.printStats(reply.Stats)
		}
	}
}

// respond produces and prints the reply for the current history.
func (c *Chatbot) respond(ctx context.Context, opts Options) (*llm.Message, error) {
	if opts.Stream {
		return c.respondStream(ctx)
	}

	reply, err := c.client.Work(ctx, "", c.history)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.out, "\nBOT: %s\n\n", reply.Content)
	return reply, nil
}

// respondStream prints chunks as they arrive and assembles the full reply.
// Stats come from the last chunk that carried them.
func (c *Chatbot) respondStream(ctx context.Context) (*llm.Message, error) {
	stream, err := c.client.Stream(ctx, "", c.history)
	if err != nil {
		return nil, err
	}
	defer stream.Close() //nolint:errcheck // No remedy for stream close errors

	fmt.Fprint(c.out, "\nBOT: ")
	var content strings.Builder
	var stats llm.Stats
	for stream.Next() {
		chunk := stream.Message()
		if chunk == nil {
			continue
		}
		fmt.Fprint(c.out, chunk.Content)
		content.WriteString(chunk.Content)
		stats = chunk.Stats
	}
	if err := stream.Err(); err != nil {
		fmt.Fprintln(c.out)
		return nil, err
	}
	fmt.Fprint(c.out, "\n\n")

	reply := llm.NewAssistantMessage(content.String())
	reply.Stats = stats
	return reply, nil
}

// readFileMessage prompts for attachment paths and the accompanying text.
// Multiple files can be attached with a comma-separated path list.
func (c *Chatbot) readFileMessage(scanner *bufio.Scanner) (*llm.Message, error) {
	pathLine, err := c.readLine(scanner, "FILE: ")
	if err != nil {
		return nil, err
	}
	if pathLine == "" {
		return nil, errors.New("no file selected")
	}

	paths := strings.Split(pathLine, ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}
	files, err := llm.FilesFromPaths(paths)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.out, "%d files uploaded.\n", len(files))

	text, err := c.readLine(scanner, "YOU: ")
	if err != nil {
		return nil, err
	}
	return llm.NewFileMessage(text, files...), nil
}

func (c *Chatbot) readLine(scanner *bufio.Scanner, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func (c *Chatbot) persist(ctx context.Context, messages ...*llm.Message) {
	if c.store == nil {
		return
	}
	for _, m := range messages {
		if err := c.store.AppendMessage(ctx, c.sessionID, m); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to persist message")
		}
	}
}

func (c *Chatbot) printStats(stats llm.Stats) {
	fmt.Fprintf(c.out, "[model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d]\n\n",
		stats.Model, stats.PromptTokens, stats.CompletionTokens, stats.TotalTokens)
}
