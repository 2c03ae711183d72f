package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

// RedisHistory implements History on Redis lists, one list per session
type RedisHistory struct {
	client         *redis.Client
	ttl            time.Duration
	keyPrefix      string
	turns          int
	maxMessageSize int
	policy         *retry.Policy
	logger         logging.Logger
}

// RedisOption represents an option for configuring the Redis history
type RedisOption func(*RedisHistory)

// WithTTL sets the TTL for Redis keys
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisHistory) {
		r.ttl = ttl
	}
}

// WithKeyPrefix sets a custom prefix for Redis keys
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisHistory) {
		r.keyPrefix = prefix
	}
}

// WithTurns sets how many turns are kept
func WithTurns(turns int) RedisOption {
	return func(r *RedisHistory) {
		if turns > 0 {
			r.turns = turns
		}
	}
}

// WithMaxMessageSize sets the maximum size for stored messages
func WithMaxMessageSize(size int) RedisOption {
	return func(r *RedisHistory) {
		r.maxMessageSize = size
	}
}

// WithRetryPolicy configures retry behavior for Redis writes
func WithRetryPolicy(policy *retry.Policy) RedisOption {
	return func(r *RedisHistory) {
		r.policy = policy
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) RedisOption {
	return func(r *RedisHistory) {
		r.logger = logger
	}
}

// RedisConfig contains configuration for Redis
type RedisConfig struct {
	// URL is the Redis address (e.g., "localhost:6379")
	URL string

	// Password is the Redis password
	Password string

	// DB is the Redis database number
	DB int
}

// NewRedisHistory creates a new Redis-backed history
func NewRedisHistory(client *redis.Client, options ...RedisOption) *RedisHistory {
	h := &RedisHistory{
		client:         client,
		ttl:            7 * 24 * time.Hour,
		keyPrefix:      "chat:history:",
		turns:          DefaultHistoryTurns,
		maxMessageSize: 1024 * 1024,
		policy: retry.NewPolicy(
			retry.WithMaximumAttempts(3),
			retry.WithInitialInterval(100*time.Millisecond),
			retry.WithBackoffCoefficient(2),
		),
		logger: logging.New(),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// NewRedisHistoryFromConfig dials Redis and creates the history
func NewRedisHistoryFromConfig(ctx context.Context, config RedisConfig, options ...RedisOption) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.URL,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisHistory(client, options...), nil
}

// AddMessages appends messages and trims the list to the turn window
func (r *RedisHistory) AddMessages(ctx context.Context, s Session, messages ...interfaces.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := sessionKey(r.keyPrefix, s)

	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if r.maxMessageSize > 0 && len(data) > r.maxMessageSize {
			return fmt.Errorf("message size exceeds maximum allowed size of %d bytes", r.maxMessageSize)
		}
		values = append(values, data)
	}

	executor := retry.NewExecutor(r.policy, retry.WithLogger(r.logger))
	err := executor.Execute(ctx, func() error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, values...)
			pipe.LTrim(ctx, key, int64(-2*r.turns), -1)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add messages to Redis: %w", err)
	}
	return nil
}

// Messages returns the stored messages oldest first
func (r *RedisHistory) Messages(ctx context.Context, s Session) ([]interfaces.Message, error) {
	results, err := r.client.LRange(ctx, sessionKey(r.keyPrefix, s), int64(-2*r.turns), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from Redis: %w", err)
	}

	messages := make([]interfaces.Message, 0, len(results))
	for _, result := range results {
		var message interfaces.Message
		if err := json.Unmarshal([]byte(result), &message); err != nil {
			r.logger.Warn(ctx, "Skipping unreadable history entry", map[string]interface{}{"error": err.Error()})
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// Clear deletes the session history
func (r *RedisHistory) Clear(ctx context.Context, s Session) error {
	if err := r.client.Del(ctx, sessionKey(r.keyPrefix, s)).Err(); err != nil {
		return fmt.Errorf("failed to clear memory in Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisHistory) Close() error {
	return r.client.Close()
}
