package store

import (
	"context"
	"errors"
	"sync"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
)

type InMemoryConversationStore struct {
	sessionLock *sync.RWMutex
	sessionMap  map[string][]knowledgeModel.ConversationTurn
}

func InitInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{
		sessionLock: new(sync.RWMutex),
		sessionMap:  make(map[string][]knowledgeModel.ConversationTurn),
	}
}

func (store *InMemoryConversationStore) ValidateSessionId(ctx context.Context, id string) bool {
	store.sessionLock.RLock()
	defer store.sessionLock.RUnlock()
	_, ok := store.sessionMap[id]
	return ok
}

func (store *InMemoryConversationStore) InitNewSession(ctx context.Context, id string) error {
	store.sessionLock.Lock()
	defer store.sessionLock.Unlock()
	store.sessionMap[id] = make([]knowledgeModel.ConversationTurn, 0)
	return nil
}

func (store *InMemoryConversationStore) AppendTurn(ctx context.Context, id string, turn knowledgeModel.ConversationTurn) error {
	store.sessionLock.Lock()
	defer store.sessionLock.Unlock()
	if _, ok := store.sessionMap[id]; !ok {
		return errors.New("invalid session id")
	}
	store.sessionMap[id] = append(store.sessionMap[id], turn)
	return nil
}

func (store *InMemoryConversationStore) GetHistory(ctx context.Context, sessionId string) ([]knowledgeModel.ConversationTurn, error) {
	store.sessionLock.RLock()
	defer store.sessionLock.RUnlock()
	turns := store.sessionMap[sessionId]
	if len(turns) > config.ConversationHistoryLimit {
		turns = turns[len(turns)-config.ConversationHistoryLimit:]
	}
	out := make([]knowledgeModel.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}
