package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"movie-shop/internal/models"

	"github.com/go-redis/redis/v8"
)

const conversationPrefix = "conv:"

// Client keeps per-account conversation state in Redis. Entries expire after
// ttl so an abandoned dialogue does not capture the next message forever.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient connects to Redis and verifies the connection
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetConversation returns the stored state, idle when absent or expired
func (c *Client) GetConversation(ctx context.Context, chatID int64) (models.Conversation, error) {
	raw, err := c.rdb.Get(ctx, conversationKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Conversation{}, nil
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return conv, nil
}

// SetConversation stores the state and refreshes its TTL
func (c *Client) SetConversation(ctx context.Context, chatID int64, conv models.Conversation) error {
	if conv.IsIdle() {
		return c.ClearConversation(ctx, chatID)
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	return c.rdb.Set(ctx, conversationKey(chatID), raw, c.ttl).Err()
}

// ClearConversation drops the state
func (c *Client) ClearConversation(ctx context.Context, chatID int64) error {
	return c.rdb.Del(ctx, conversationKey(chatID)).Err()
}

func conversationKey(chatID int64) string {
	return fmt.Sprintf("%s%d", conversationPrefix, chatID)
}
