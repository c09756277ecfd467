package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexabot/knowledge-api/internal/config"
	"github.com/nexabot/knowledge-api/internal/data/redisStore"
	"github.com/nexabot/knowledge-api/internal/domain/knowledgeModel"
	"github.com/nexabot/knowledge-api/pkg/logger_i"
)

// RedisConversationStore keeps each session's turns in a Redis list keyed by
// session id. Turns are pushed in arrival order, so a tail read gives the
// recent history already ordered oldest-first.
type RedisConversationStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisConversationStore(ctx context.Context) *RedisConversationStore {
	backing := redisStore.GetRedisStore(ctx, config.RedisConversationStore)
	if backing == nil {
		return nil
	}
	return &RedisConversationStore{
		store:  backing,
		logger: logger_i.NewLogger("ConversationStore"),
	}
}

func (s *RedisConversationStore) ValidateSessionId(ctx context.Context, id string) bool {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session Id", id)
	isFound, err := s.store.Exists(ctx, id)
	if s.store.IsNil(err) {
		return false
	} else if err != nil {
		log.Error("Failed to check if session exists", "err", err)
		return false
	}
	return isFound
}

func (s *RedisConversationStore) InitNewSession(ctx context.Context, id string) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session Id", id)
	log.Debug("Initializing new session")
	if err := s.store.Del(ctx, id); err != nil && !s.store.IsNil(err) {
		log.Error("Error clearing previous session", "error", err)
	}
	return s.appendTurn(ctx, id, knowledgeModel.ConversationTurn{
		Role:      knowledgeModel.RoleAssistant,
		Timestamp: time.Now(),
	})
}

func (s *RedisConversationStore) AppendTurn(ctx context.Context, id string, turn knowledgeModel.ConversationTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session Id", id)
	if !s.ValidateSessionId(ctx, id) {
		err := errors.New("invalid session id")
		log.Error("Failed validation before saving turn", "err", err)
		return err
	}
	return s.appendTurn(ctx, id, turn)
}

func (s *RedisConversationStore) appendTurn(ctx context.Context, id string, turn knowledgeModel.ConversationTurn) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session Id", id)
	data, err := json.Marshal(turn)
	if err != nil {
		log.Error("Error marshalling turn", "error", err)
		return err
	}
	if err = s.store.ListPush(ctx, id, data); err != nil {
		log.Error("Error saving turn", "error", err)
		return err
	}
	return s.store.Expire(ctx, id, config.RedisConversationStoreTTL)
}

func (s *RedisConversationStore) GetHistory(ctx context.Context, sessionId string) ([]knowledgeModel.ConversationTurn, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session Id", sessionId)

	raw, err := s.store.ListTail(ctx, sessionId, config.ConversationHistoryLimit)
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}

	turns := make([]knowledgeModel.ConversationTurn, 0, len(raw))
	for _, entry := range raw {
		var turn knowledgeModel.ConversationTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			log.Warn("Skipping unreadable turn", "error", err)
			continue
		}
		if turn.Text == "" {
			// session init marker
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func TestConversationStore(store *redisStore.Store) *RedisConversationStore {
	return &RedisConversationStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
