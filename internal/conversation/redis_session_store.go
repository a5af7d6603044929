package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisSessionStore keeps sessions as JSON with an idle TTL that is refreshed
// on every save.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("barber.internal.conversation.sessions"),
	}
}

func (s *RedisSessionStore) Load(ctx context.Context, key SessionKey) (*Session, bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.session.load",
		trace.WithAttributes(attribute.String("barber.session_key", key.String())))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	if session.SelectedServices == nil {
		session.SelectedServices = []string{}
	}
	return &session, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, key SessionKey, session *Session) error {
	if session == nil {
		return errors.New("conversation: cannot save nil session")
	}
	ctx, span := s.tracer.Start(ctx, "conversation.session.save",
		trace.WithAttributes(attribute.String("barber.session_key", key.String())))
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, key SessionKey) error {
	ctx, span := s.tracer.Start(ctx, "conversation.session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(key SessionKey) string {
	return "barber:session:" + key.String()
}
