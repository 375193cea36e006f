package recent

import (
	"context"
	"encoding/json"
	"fmt"

	"cedabot/app/client/redisdb"
	"cedabot/app/model"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

// Service keeps the last product listing shown per conversation. Each save
// replaces the previous snapshot wholesale and renumbers positions 1..N, so a
// position can never outlive the listing that produced it.
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
	return "recent_products:" + conversationID
}

// Save replaces the snapshot for a conversation with the given products,
// assigning positions 1..N in order. An empty list clears the snapshot.
func (s *Service) Save(ctx context.Context, conversationID string, products []model.Product) error {
	if len(products) == 0 {
		if err := s.rdb.Del(ctx, key(conversationID)).Err(); err != nil {
			return fmt.Errorf("failed to clear recent products: %w", err)
		}
		return nil
	}

	entries := make([]model.RecentProduct, 0, len(products))
	for i, p := range products {
		entries = append(entries, model.RecentProduct{
			Position: i + 1,
			Product:  p,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal recent products: %w", err)
	}

	if err = s.rdb.Set(ctx, key(conversationID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save recent products: %w", err)
	}

	return nil
}

// Get returns the current snapshot in position order, or nil when none exists.
func (s *Service) Get(ctx context.Context, conversationID string) ([]model.RecentProduct, error) {
	data, err := s.rdb.Get(ctx, key(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recent products: %w", err)
	}

	var entries []model.RecentProduct
	if err = json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent products: %w", err)
	}

	return entries, nil
}

// FindByPosition resolves a position within the current snapshot. Positions
// outside the snapshot report not found, never a reinterpretation.
func FindByPosition(entries []model.RecentProduct, position int) (model.RecentProduct, bool) {
	if position <= 0 {
		return model.RecentProduct{}, false
	}

	for _, e := range entries {
		if e.Position == position {
			return e, true
		}
	}

	return model.RecentProduct{}, false
}
