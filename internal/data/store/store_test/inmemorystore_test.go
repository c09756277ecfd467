package store_test

import (
	"context"
	"testing"

	"github.com/nexabot/knowledge-api/internal/data/store"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

// The in-memory fallback must reject writes the same way the Redis store
// does; a silent drop would hide lost turns whenever Redis is offline.
func TestInMemoryConversationStore_AppendRequiresSession(t *testing.T) {
	convStore := store.InitInMemoryConversationStore()
	ctx := context.Background()

	err := convStore.AppendTurn(ctx, "never-initialized", knowledgeModel.ConversationTurn{
		Role: knowledgeModel.RoleUser,
		Text: "hello",
	})
	if err == nil {
		t.Fatal("Expected error appending to an uninitialized session")
	}

	if err := convStore.InitNewSession(ctx, "sess-1"); err != nil {
		t.Fatalf("InitNewSession failed: %v", err)
	}
	err = convStore.AppendTurn(ctx, "sess-1", knowledgeModel.ConversationTurn{
		Role: knowledgeModel.RoleUser,
		Text: "hello",
	})
	if err != nil {
		t.Fatalf("AppendTurn after init failed: %v", err)
	}

	history, err := convStore.GetHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Text != "hello" {
		t.Errorf("History got %+v, want the appended turn", history)
	}
}
