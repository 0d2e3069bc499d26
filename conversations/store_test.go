package conversations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/llm"
	"github.com/vincentdeneuf/agentine/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewStore(db)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, "first chat", "openai", "gpt-5-chat-latest")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	user := llm.NewUserMessage("what is the answer?")
	if err := store.AppendMessage(ctx, sessionID, user); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	assistant := llm.NewAssistantMessage(`{"answer": 42}`)
	assistant.Data = map[string]any{"answer": float64(42)}
	assistant.Stats = llm.Stats{Model: "gpt-5-chat-latest", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	if err := store.AppendMessage(ctx, sessionID, assistant); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	messages, err := store.Messages(ctx, sessionID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != llm.RoleUser || messages[0].Content != "what is the answer?" {
		t.Errorf("Expected the user message first, got %s %q", messages[0].Role, messages[0].Content)
	}
	if messages[1].Role != llm.RoleAssistant {
		t.Errorf("Expected the assistant message second, got %s", messages[1].Role)
	}
	if got := messages[1].Data["answer"]; got != float64(42) {
		t.Errorf("Expected the data payload to round-trip, got %v", got)
	}
	if messages[1].Stats.TotalTokens != 15 {
		t.Errorf("Expected stats to round-trip, got %+v", messages[1].Stats)
	}
	if messages[1].Meta.CreatedAt.IsZero() {
		t.Error("Expected a stored timestamp on the message")
	}
}

func TestStoreMessagesUnknownSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Messages(context.Background(), "missing")
	if !llm.IsNotFound(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestStoreSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	firstID, err := store.CreateSession(ctx, "first", "openai", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	secondID, err := store.CreateSession(ctx, "second", "anthropic", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != secondID || sessions[1].ID != firstID {
		t.Errorf("Expected newest first, got %q then %q", sessions[0].ID, sessions[1].ID)
	}
	if sessions[0].Title != "second" || sessions[0].Provider != "anthropic" {
		t.Errorf("Expected session fields to round-trip, got %+v", sessions[0])
	}
}

func TestStoreDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID, err := store.CreateSession(ctx, "doomed", "openai", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.AppendMessage(ctx, sessionID, llm.NewUserMessage("bye")); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := store.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.Messages(ctx, sessionID); !llm.IsNotFound(err) {
		t.Errorf("Expected the session to be gone, got %v", err)
	}
	if err := store.DeleteSession(ctx, sessionID); !llm.IsNotFound(err) {
		t.Errorf("Expected a not-found error on double delete, got %v", err)
	}
}
