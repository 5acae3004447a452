package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
)

const (
	statusKey = "agents:status"
	statusTTL = 24 * time.Hour
)

func agentKey(name string) string { return "agents:agent:" + name }

// StatusStore mirrors orchestrator status snapshots so other processes can read them.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client, ttl: statusTTL}
}

// SaveStatus writes the whole snapshot plus one key per agent in a single round trip.
func (s *StatusStore) SaveStatus(ctx context.Context, st domain.SystemStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, statusKey, data, s.ttl)
	for name, view := range st.Agents {
		v, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("marshal agent %s: %w", name, err)
		}
		pipe.Set(ctx, agentKey(name), v, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save status: %w", err)
	}
	return nil
}

// LoadStatus returns the last mirrored snapshot.
func (s *StatusStore) LoadStatus(ctx context.Context) (domain.SystemStatus, error) {
	var st domain.SystemStatus
	if err := s.get(ctx, statusKey, &st); err != nil {
		return domain.SystemStatus{}, err
	}
	return st, nil
}

// LoadAgent returns the last mirrored view of one agent.
func (s *StatusStore) LoadAgent(ctx context.Context, name string) (domain.AgentView, error) {
	var v domain.AgentView
	if err := s.get(ctx, agentKey(name), &v); err != nil {
		return domain.AgentView{}, err
	}
	return v, nil
}

func (s *StatusStore) get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}
