package chatbot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/conversations"
	"github.com/vincentdeneuf/agentine/llm"
	"github.com/vincentdeneuf/agentine/migrations"

	_ "github.com/mattn/go-sqlite3"
)

type fakeClient struct {
	mu        sync.Mutex
	workCalls [][]llm.Message
	workFn    func(ctx context.Context, query string, history []llm.Message) (*llm.Message, error)
	streamFn  func(ctx context.Context, query string, history []llm.Message) (llm.Stream, error)
}

func (f *fakeClient) Work(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
	f.mu.Lock()
	recorded := make([]llm.Message, len(history))
	copy(recorded, history)
	f.workCalls = append(f.workCalls, recorded)
	f.mu.Unlock()

	if f.workFn != nil {
		return f.workFn(ctx, query, history)
	}
	return llm.NewAssistantMessage("ok"), nil
}

func (f *fakeClient) Stream(ctx context.Context, query string, history []llm.Message) (llm.Stream, error) {
	if f.streamFn != nil {
		return f.streamFn(ctx, query, history)
	}
	return &fakeStream{}, nil
}

func (f *fakeClient) calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workCalls
}

type fakeStream struct {
	chunks []*llm.Message
	pos    int
	err    error
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Message() *llm.Message { return s.chunks[s.pos-1] }
func (s *fakeStream) Err() error            { return s.err }
func (s *fakeStream) Close() error          { return nil }

func chunkOf(content string) *llm.Message {
	m := llm.NewAssistantMessage(content)
	m.Meta.Chunk = true
	return m
}

func runChatbot(t *testing.T, client Client, input string, opts Options, extra ...Option) (*Chatbot, string) {
	t.Helper()
	var out bytes.Buffer
	chatOpts := append([]Option{WithInput(strings.NewReader(input)), WithOutput(&out)}, extra...)
	c, err := New(client, chatOpts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Run(context.Background(), opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return c, out.String()
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("Expected error for nil client")
	} else if !llm.IsConfigurationError(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestRunGreetingReplyAndExit(t *testing.T) {
	client := &fakeClient{
		workFn: func(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
			return llm.NewAssistantMessage("hi there"), nil
		},
	}

	c, output := runChatbot(t, client, "hello\nexit\n", Options{})

	if !strings.Contains(output, "Chatbot started. Type 'exit' to quit.") {
		t.Error("Expected greeting in output")
	}
	if !strings.Contains(output, "BOT: hi there") {
		t.Errorf("Expected reply in output, got %q", output)
	}
	if !strings.Contains(output, "Chatbot session ended.") {
		t.Error("Expected farewell in output")
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages in history, got %d", len(history))
	}
	if history[0].Role != llm.RoleUser || history[0].Content != "hello" {
		t.Errorf("Unexpected user message: %+v", history[0])
	}
	if history[1].Role != llm.RoleAssistant || history[1].Content != "hi there" {
		t.Errorf("Unexpected assistant message: %+v", history[1])
	}

	calls := client.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 client call, got %d", len(calls))
	}
	if len(calls[0]) != 1 {
		t.Errorf("Expected client to see 1 message, got %d", len(calls[0]))
	}
}

func TestRunExitIsCaseInsensitive(t *testing.T) {
	client := &fakeClient{}
	_, output := runChatbot(t, client, "EXIT\n", Options{})

	if !strings.Contains(output, "Chatbot session ended.") {
		t.Error("Expected farewell in output")
	}
	if len(client.calls()) != 0 {
		t.Error("Expected no client calls")
	}
}

func TestRunBlankInputReprompts(t *testing.T) {
	client := &fakeClient{}
	_, output := runChatbot(t, client, "\n   \nhello\nexit\n", Options{})

	if got := strings.Count(output, "YOU: "); got != 4 {
		t.Errorf("Expected 4 prompts, got %d", got)
	}
	if len(client.calls()) != 1 {
		t.Errorf("Expected 1 client call, got %d", len(client.calls()))
	}
}

func TestRunEndOfInputReturnsNil(t *testing.T) {
	client := &fakeClient{}
	c, _ := runChatbot(t, client, "hello\n", Options{})

	if len(c.History()) != 2 {
		t.Errorf("Expected completed turn before EOF, got %d messages", len(c.History()))
	}
}

func TestRunStreamPrintsChunks(t *testing.T) {
	withStats := chunkOf("world")
	withStats.Stats = llm.Stats{Model: "test-model", TotalTokens: 7}
	client := &fakeClient{
		streamFn: func(ctx context.Context, query string, history []llm.Message) (llm.Stream, error) {
			return &fakeStream{chunks: []*llm.Message{chunkOf("hello "), withStats}}, nil
		},
	}

	c, output := runChatbot(t, client, "hi\nexit\n", Options{Stream: true})

	if !strings.Contains(output, "BOT: hello world") {
		t.Errorf("Expected streamed reply in output, got %q", output)
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages in history, got %d", len(history))
	}
	if history[1].Content != "hello world" {
		t.Errorf("Expected accumulated content, got %q", history[1].Content)
	}
	if history[1].Stats.TotalTokens != 7 {
		t.Errorf("Expected stats from last chunk, got %+v", history[1].Stats)
	}
}

func TestRunStreamFailureKeepsHistoryClean(t *testing.T) {
	boom := errors.New("connection reset")
	client := &fakeClient{
		streamFn: func(ctx context.Context, query string, history []llm.Message) (llm.Stream, error) {
			return &fakeStream{chunks: []*llm.Message{chunkOf("par")}, err: boom}, nil
		},
	}

	c, output := runChatbot(t, client, "hi\nexit\n", Options{Stream: true})

	if !strings.Contains(output, "Error: connection reset") {
		t.Errorf("Expected error in output, got %q", output)
	}
	if len(c.History()) != 0 {
		t.Errorf("Expected failed turn to be dropped, got %d messages", len(c.History()))
	}
}

func TestRunErrorDropsUnansweredQuery(t *testing.T) {
	boom := llm.NewTransportError("request failed", 3, errors.New("timeout"))
	failed := false
	client := &fakeClient{
		workFn: func(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
			if !failed {
				failed = true
				return nil, boom
			}
			return llm.NewAssistantMessage("recovered"), nil
		},
	}

	c, output := runChatbot(t, client, "first try\nsecond try\nexit\n", Options{})

	if !strings.Contains(output, "Error:") {
		t.Error("Expected error in output")
	}
	if !strings.Contains(output, "BOT: recovered") {
		t.Error("Expected second turn to succeed")
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("Expected only the successful turn in history, got %d messages", len(history))
	}
	if history[0].Content != "second try" {
		t.Errorf("Expected failed query dropped, history starts with %q", history[0].Content)
	}

	calls := client.calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 client calls, got %d", len(calls))
	}
	// The retry must not see the failed query.
	if len(calls[1]) != 1 {
		t.Errorf("Expected retry to see 1 message, got %d", len(calls[1]))
	}
}

func TestRunUploadFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("meeting notes"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	client := &fakeClient{}
	input := "--upload file\n" + path + "\nsummarize this\nexit\n"
	c, output := runChatbot(t, client, input, Options{})

	if !strings.Contains(output, "FILE: ") {
		t.Error("Expected file prompt in output")
	}
	if !strings.Contains(output, "1 files uploaded.") {
		t.Errorf("Expected upload confirmation, got %q", output)
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages in history, got %d", len(history))
	}
	userMsg := history[0]
	if userMsg.Content != "summarize this" {
		t.Errorf("Expected follow-up text as content, got %q", userMsg.Content)
	}
	if len(userMsg.Blocks) != 2 {
		t.Fatalf("Expected text and file blocks, got %d", len(userMsg.Blocks))
	}
	if userMsg.Blocks[1].Type != llm.BlockTypeFile {
		t.Errorf("Expected file block, got %q", userMsg.Blocks[1].Type)
	}
	if userMsg.Blocks[1].File.Filename != "notes.txt" {
		t.Errorf("Expected filename notes.txt, got %q", userMsg.Blocks[1].File.Filename)
	}
}

func TestRunUploadFailureRetriesTurn(t *testing.T) {
	client := &fakeClient{}
	input := "--upload file\n/nonexistent/path.txt\nhello\nexit\n"
	c, output := runChatbot(t, client, input, Options{})

	if !strings.Contains(output, "Error:") {
		t.Error("Expected upload error in output")
	}
	// The loop recovers and handles "hello" as a normal query.
	if !strings.Contains(output, "BOT: ok") {
		t.Errorf("Expected chat to continue after upload failure, got %q", output)
	}
	if len(c.History()) != 2 {
		t.Errorf("Expected 2 messages in history, got %d", len(c.History()))
	}
}

func TestRunShowStats(t *testing.T) {
	client := &fakeClient{
		workFn: func(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
			m := llm.NewAssistantMessage("done")
			m.Stats = llm.Stats{Model: "test-model", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
			return m, nil
		},
	}

	_, output := runChatbot(t, client, "hi\nexit\n", Options{ShowStats: true})

	if !strings.Contains(output, "[model=test-model prompt_tokens=10 completion_tokens=5 total_tokens=15]") {
		t.Errorf("Expected stats line in output, got %q", output)
	}
}

func TestRunPersistsCompletedTurns(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := migrations.Run(db, zerolog.Nop()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	store := conversations.NewStore(db)
	sessionID, err := store.CreateSession(context.Background(), "test chat", "openai", "gpt-4o")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	client := &fakeClient{}
	runChatbot(t, client, "remember this\nexit\n", Options{}, WithStore(store, sessionID))

	stored, err := store.Messages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Failed to load messages: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 stored messages, got %d", len(stored))
	}
	if stored[0].Role != llm.RoleUser || stored[0].Content != "remember this" {
		t.Errorf("Unexpected stored user message: %+v", stored[0])
	}
	if stored[1].Role != llm.RoleAssistant {
		t.Errorf("Unexpected stored assistant role: %q", stored[1].Role)
	}
}

func TestRunSeededHistoryIsSentToClient(t *testing.T) {
	seed := []llm.Message{
		*llm.NewUserMessage("earlier question"),
		*llm.NewAssistantMessage("earlier answer"),
	}
	client := &fakeClient{}

	runChatbot(t, client, "follow up\nexit\n", Options{}, WithHistory(seed))

	calls := client.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 client call, got %d", len(calls))
	}
	if len(calls[0]) != 3 {
		t.Fatalf("Expected client to see 3 messages, got %d", len(calls[0]))
	}
	if calls[0][0].Content != "earlier question" {
		t.Errorf("Expected seeded history first, got %q", calls[0][0].Content)
	}
	if calls[0][2].Content != "follow up" {
		t.Errorf("Expected new query last, got %q", calls[0][2].Content)
	}
}
