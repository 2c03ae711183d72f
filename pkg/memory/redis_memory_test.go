package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

func setupTestRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func turn(i int) []interfaces.Message {
	return []interfaces.Message{
		{Role: interfaces.MessageRoleUser, Content: fmt.Sprintf("question %d", i)},
		{Role: interfaces.MessageRoleAssistant, Content: fmt.Sprintf("answer %d", i)},
	}
}

func TestRedisHistory(t *testing.T) {
	client, mr := setupTestRedisClient(t)
	ctx := context.Background()
	session := Session{Agent: "HRAgent", UserID: "jane@corp.com", SessionID: "s-1"}

	history := NewRedisHistory(client,
		WithTurns(3),
		WithTTL(time.Hour),
		WithKeyPrefix("test:"),
		WithLogger(logging.NewNoop()),
	)

	t.Run("keeps the last turns", func(t *testing.T) {
		for i := 1; i <= 5; i++ {
			require.NoError(t, history.AddMessages(ctx, session, turn(i)...))
		}
		messages, err := history.Messages(ctx, session)
		require.NoError(t, err)
		require.Len(t, messages, 6)
		assert.Equal(t, "question 3", messages[0].Content)
		assert.Equal(t, "answer 5", messages[5].Content)
		assert.Equal(t, interfaces.MessageRoleAssistant, messages[5].Role)
	})

	t.Run("key layout and ttl", func(t *testing.T) {
		key := "test:hragent:jane@corp.com:s-1"
		assert.True(t, mr.Exists(key))
		assert.Equal(t, time.Hour, mr.TTL(key))
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		other := session
		other.Agent = "FinanceAgent"
		messages, err := history.Messages(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, history.Clear(ctx, session))
		messages, err := history.Messages(ctx, session)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("oversized message", func(t *testing.T) {
		small := NewRedisHistory(client, WithMaxMessageSize(10), WithLogger(logging.NewNoop()))
		err := small.AddMessages(ctx, session, interfaces.Message{Role: interfaces.MessageRoleUser, Content: "far too long for the limit"})
		assert.Error(t, err)
	})
}

func TestConversationBuffer(t *testing.T) {
	ctx := context.Background()
	session := Session{Agent: "GeneralAgent", UserID: "a@b.com", SessionID: "s"}
	buffer := NewConversationBuffer(WithMaxTurns(2))

	for i := 1; i <= 3; i++ {
		require.NoError(t, buffer.AddMessages(ctx, session, turn(i)...))
	}
	messages, err := buffer.Messages(ctx, session)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "question 2", messages[0].Content)

	messages[0].Content = "mutated"
	again, _ := buffer.Messages(ctx, session)
	assert.Equal(t, "question 2", again[0].Content)

	require.NoError(t, buffer.Clear(ctx, session))
	again, _ = buffer.Messages(ctx, session)
	assert.Empty(t, again)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		err     error
	}{
		{"valid", Session{UserID: "first.last@corp.ae", SessionID: "abc_123-x"}, nil},
		{"user not email", Session{UserID: "jane", SessionID: "s"}, ErrInvalidUserID},
		{"session with spaces", Session{UserID: "a@b.com", SessionID: "bad id"}, ErrInvalidSessionID},
		{"empty session", Session{UserID: "a@b.com"}, ErrInvalidSessionID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, ValidateDocID("doc-1_a"))
	assert.ErrorIs(t, ValidateDocID("../etc"), ErrInvalidDocID)
}
