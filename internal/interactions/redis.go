package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"saferag/internal/domain"
)

const keyPrefix = "saferag:interaction:"

// RedisConfig holds connection details for the redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires records; zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps each interaction in a hash under saferag:interaction:<id>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	newID  func() string
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, ttl: cfg.TTL, newID: uuid.NewString}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) Save(ctx context.Context, rec *domain.Interaction) (string, error) {
	id := r.newID()
	sources, err := json.Marshal(nonNil(rec.Sources))
	if err != nil {
		return "", err
	}
	reasons, err := json.Marshal(nonNil(rec.UnsafeReasons))
	if err != nil {
		return "", err
	}
	key := keyPrefix + id
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"query":         rec.Query,
		"answer":        rec.Answer,
		"sources":       string(sources),
		"isUnsafe":      rec.IsUnsafe,
		"unsafeReasons": string(reasons),
		"feedback":      string(rec.Feedback),
		"timestamp":     rec.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("save interaction: %w", err)
	}
	return id, nil
}

func (r *RedisStore) SetFeedback(ctx context.Context, id string, fb domain.Feedback) error {
	if fb != domain.FeedbackUp && fb != domain.FeedbackDown {
		return ErrInvalidFeedback
	}
	key := keyPrefix + id
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("lookup interaction: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := r.client.HSet(ctx, key, "feedback", string(fb)).Err(); err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Interaction, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	rec := &domain.Interaction{
		ID:       id,
		Query:    fields["query"],
		Answer:   fields["answer"],
		IsUnsafe: fields["isUnsafe"] == "1" || fields["isUnsafe"] == "true",
		Feedback: domain.Feedback(fields["feedback"]),
	}
	if err := json.Unmarshal([]byte(fields["sources"]), &rec.Sources); err != nil {
		return nil, fmt.Errorf("decode sources of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(fields["unsafeReasons"]), &rec.UnsafeReasons); err != nil {
		return nil, fmt.Errorf("decode reasons of %s: %w", id, err)
	}
	if ts := fields["timestamp"]; ts != "" {
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("decode timestamp of %s: %w", id, err)
		}
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
