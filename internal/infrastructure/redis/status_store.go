package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastProcessedKey = "processor:last_processed"
	processedPrefix  = "processor:processed:"

	markerTTL = 24 * time.Hour
)

// Config locates the redis instance backing the status store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// StatusStore keeps the processor's last-processed snapshot and a best-effort
// duplicate marker per event id. The marker is advisory only: losing it just
// means a redelivered event is dispatched again, which the at-least-once
// contract already allows.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusStore dials redis and verifies the connection before handing the
// store out; the processor runs without one when this fails.
func NewStatusStore(ctx context.Context, cfg Config) (*StatusStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &StatusStore{client: client, ttl: markerTTL}, nil
}

func (s *StatusStore) Close() error {
	return s.client.Close()
}

// MarkProcessed records that eventID completed successfully. Returns true if
// this is the first time the id was seen.
func (s *StatusStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := s.client.SetNX(ctx, processedPrefix+eventID, "COMPLETED", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return first, nil
}

// AlreadyProcessed reports whether eventID has a completion marker.
func (s *StatusStore) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	_, err := s.client.Get(ctx, processedPrefix+eventID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// SetLastProcessed stores the serialized status snapshot for the health endpoint.
func (s *StatusStore) SetLastProcessed(ctx context.Context, snapshot []byte) error {
	if err := s.client.Set(ctx, lastProcessedKey, snapshot, 0).Err(); err != nil {
		return fmt.Errorf("set last processed: %w", err)
	}
	return nil
}

// LastProcessed returns the stored snapshot, or nil when none exists yet.
func (s *StatusStore) LastProcessed(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, lastProcessedKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last processed: %w", err)
	}
	return val, nil
}
