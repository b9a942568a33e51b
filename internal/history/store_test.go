// SPDX-License-Identifier: AGPL-3.0-only
package history

import (
	"path/filepath"
	"testing"

	"github.com/aman-senpai/macassist/internal/llm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndReadBack(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateConversation("conv-1", "First chat"); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	turn := []llm.Message{
		{Role: llm.RoleUser, Content: "what time is it?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "getCurrentDateTime", Arguments: "{}"},
		}},
		{Role: llm.RoleTool, Content: "noon", ToolCallID: "call_1", Name: "getCurrentDateTime"},
		{Role: llm.RoleAssistant, Content: "It is noon."},
	}
	if err := store.AppendMessages("conv-1", turn); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	got, err := store.Messages("conv-1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(got))
	}
	if got[0].Content != "what time is it?" {
		t.Errorf("Order lost: first message %q", got[0].Content)
	}
	if len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("Tool calls not round-tripped: %+v", got[1].ToolCalls)
	}
	if got[2].ToolCallID != "call_1" || got[2].Name != "getCurrentDateTime" {
		t.Errorf("Tool message fields lost: %+v", got[2])
	}
}

func TestSequenceContinuesAcrossAppends(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateConversation("conv-1", "chat"); err != nil {
		t.Fatal(err)
	}

	if err := store.AppendMessages("conv-1", []llm.Message{
		{Role: llm.RoleUser, Content: "one"},
		{Role: llm.RoleAssistant, Content: "1"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendMessages("conv-1", []llm.Message{
		{Role: llm.RoleUser, Content: "two"},
		{Role: llm.RoleAssistant, Content: "2"},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Messages("conv-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "1", "two", "2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("Message %d: expected %q, got %q", i, w, got[i].Content)
		}
	}
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.AppendMessages("conv-x", nil); err != nil {
		t.Errorf("Empty append must be a no-op, got %v", err)
	}
}

func TestConversationsOrderedByUpdate(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateConversation("older", "Older chat"); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateConversation("newer", "Newer chat"); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendMessages("older", []llm.Message{{Role: llm.RoleUser, Content: "bump"}}); err != nil {
		t.Fatal(err)
	}

	convs, err := store.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != "older" {
		t.Errorf("Expected most recently updated first, got %q", convs[0].ID)
	}
	if convs[0].Title != "Older chat" {
		t.Errorf("Title lost: %q", convs[0].Title)
	}
}

func TestStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "history.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore with nested path: %v", err)
	}
	defer store.Close()

	if err := store.CreateConversation("c", "t"); err != nil {
		t.Errorf("CreateConversation: %v", err)
	}
}

func TestMessagesUnknownConversation(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Messages("ghost")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no messages, got %d", len(got))
	}
}
