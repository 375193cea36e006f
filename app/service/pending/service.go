package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cedabot/app/client/redisdb"
	"cedabot/app/model"
	"cedabot/app/service/planner"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

// TTL bounds how long a confirmation prompt stays answerable. After expiry a
// bare "sí" re-enters the normal pipeline instead of replaying a stale plan.
const TTL = 10 * time.Minute

type Kind string

const (
	KindAdd     Kind = "add"
	KindRemoval Kind = "removal"
	KindMulti   Kind = "multi"
	KindClear   Kind = "clear"
)

// Action is a fully resolved plan waiting for an explicit user confirmation.
// Confirming replays exactly this plan; nothing is re-inferred.
type Action struct {
	ID             string                   `json:"id"`
	ConversationID string                   `json:"conversation_id"`
	Kind           Kind                     `json:"kind"`
	Add            *AddAction               `json:"add,omitempty"`
	Removal        *planner.RemovalPlan     `json:"removal,omitempty"`
	Multi          *planner.MultiActionPlan `json:"multi,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// AddAction is the stored shape of a single pending add.
type AddAction struct {
	Product  model.Product `json:"product"`
	Quantity int           `json:"quantity"`
}

// Service persists at most one pending action per conversation, consumed
// exactly once.
type Service struct {
	rdb *redis.Client
}

func New(di *do.Injector) (*Service, error) {
	client := do.MustInvoke[*redisdb.Client](di)

	return NewWithClient(client.RDB), nil
}

func NewWithClient(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func key(conversationID string) string {
	return "pending_action:" + conversationID
}

// Save stores the action, replacing any previous pending action for the
// conversation.
func (s *Service) Save(ctx context.Context, action Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}

	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}

	if err = s.rdb.Set(ctx, key(action.ConversationID), data, TTL).Err(); err != nil {
		return fmt.Errorf("failed to save pending action: %w", err)
	}

	return nil
}

// Take atomically fetches and deletes the pending action, so a confirmation
// can never execute twice. Returns nil when nothing is pending.
func (s *Service) Take(ctx context.Context, conversationID string) (*Action, error) {
	data, err := s.rdb.GetDel(ctx, key(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take pending action: %w", err)
	}

	var action Action
	if err = json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending action: %w", err)
	}

	return &action, nil
}

// Clear discards any pending action for the conversation.
func (s *Service) Clear(ctx context.Context, conversationID string) error {
	if err := s.rdb.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	return nil
}
