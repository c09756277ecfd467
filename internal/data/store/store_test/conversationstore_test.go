package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/data/redisStore"
	"github.com/nexabot/knowledge-api/internal/data/store"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

func newTestConversationStore(t *testing.T) *store.RedisConversationStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.TestConversationStore(redisStore.NewTestStore(client))
}

func TestConversationStore_Lifecycle(t *testing.T) {
	convStore := newTestConversationStore(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	sessionId := "sess_xyz"

	t.Run("Unknown_Session_Invalid", func(t *testing.T) {
		if convStore.ValidateSessionId(ctx, "ghost-session") {
			t.Error("Expected unknown session to be invalid")
		}
	})

	t.Run("Init_Makes_Session_Valid", func(t *testing.T) {
		if err := convStore.InitNewSession(ctx, sessionId); err != nil {
			t.Fatalf("InitNewSession failed: %v", err)
		}
		if !convStore.ValidateSessionId(ctx, sessionId) {
			t.Error("Session invalid right after init")
		}
	})

	t.Run("Append_Rejected_Without_Session", func(t *testing.T) {
		err := convStore.AppendTurn(ctx, "never-initialized", knowledgeModel.ConversationTurn{
			Role: knowledgeModel.RoleUser,
			Text: "hello",
		})
		if err == nil {
			t.Error("Expected error appending to uninitialized session")
		}
	})
}

func TestConversationStore_HistoryOrderAndLimit(t *testing.T) {
	convStore := newTestConversationStore(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "history-trace")
	sessionId := "sess_hist"

	if err := convStore.InitNewSession(ctx, sessionId); err != nil {
		t.Fatalf("InitNewSession failed: %v", err)
	}

	//write more turns than the replay limit
	total := config.ConversationHistoryLimit + 4
	for i := 0; i < total; i++ {
		role := knowledgeModel.RoleUser
		if i%2 == 1 {
			role = knowledgeModel.RoleAssistant
		}
		err := convStore.AppendTurn(ctx, sessionId, knowledgeModel.ConversationTurn{
			Role: role,
			Text: fmt.Sprintf("turn-%d", i),
		})
		if err != nil {
			t.Fatalf("AppendTurn %d failed: %v", i, err)
		}
	}

	history, err := convStore.GetHistory(ctx, sessionId)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}

	if len(history) > config.ConversationHistoryLimit {
		t.Fatalf("History length %d exceeds limit %d", len(history), config.ConversationHistoryLimit)
	}

	//the tail must be the most recent turns, oldest first
	expectedFirst := fmt.Sprintf("turn-%d", total-len(history))
	if history[0].Text != expectedFirst {
		t.Errorf("First history turn got %s, want %s", history[0].Text, expectedFirst)
	}
	last := history[len(history)-1]
	if last.Text != fmt.Sprintf("turn-%d", total-1) {
		t.Errorf("Last history turn got %s, want turn-%d", last.Text, total-1)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Role == history[i-1].Role {
			t.Errorf("Alternating roles lost at index %d", i)
		}
	}
}
