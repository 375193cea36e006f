package cart

import (
	"context"
	"database/sql"
	"fmt"

	"cedabot/app/client/postgres"
	"cedabot/app/model"

	"github.com/samber/do"
)

// Service owns the carts and cart_items tables. A cart is created lazily on
// first add and is never deleted, only emptied.
type Service struct {
	db *sql.DB
}

func New(di *do.Injector) (*Service, error) {
	pg := do.MustInvoke[*postgres.Client](di)

	return NewWithDB(pg.DB), nil
}

func NewWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) getOrCreateCart(ctx context.Context, conversationID string) (int64, error) {
	var cartID int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE conversation_id = $1`,
		conversationID,
	).Scan(&cartID)

	if err == nil {
		return cartID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query cart: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO carts (conversation_id) VALUES ($1) RETURNING id`,
		conversationID,
	).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("failed to create cart: %w", err)
	}

	return cartID, nil
}

func (s *Service) getCartID(ctx context.Context, conversationID string) (int64, bool, error) {
	var cartID int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE conversation_id = $1`,
		conversationID,
	).Scan(&cartID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query cart: %w", err)
	}

	return cartID, true, nil
}

// Add puts quantity units of an article into the cart. If the line already
// exists the quantity accumulates instead of duplicating the line.
func (s *Service) Add(ctx context.Context, conversationID, articleID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	cartID, err := s.getOrCreateCart(ctx, conversationID)
	if err != nil {
		return err
	}

	var itemID int64
	var currentQty int

	err = s.db.QueryRowContext(ctx,
		`SELECT id, quantity FROM cart_items WHERE cart_id = $1 AND article_id = $2`,
		cartID, articleID,
	).Scan(&itemID, &currentQty)

	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, article_id, quantity) VALUES ($1, $2, $3)`,
			cartID, articleID, quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query cart item: %w", err)
	default:
		_, err = s.db.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1 WHERE id = $2`,
			currentQty+quantity, itemID,
		)
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
	}

	return nil
}

// Remove deletes the line for an article. Removing from a nonexistent cart is
// a no-op.
func (s *Service) Remove(ctx context.Context, conversationID, articleID string) error {
	cartID, ok, err := s.getCartID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND article_id = $2`,
		cartID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return nil
}

// SetQuantity sets the resulting quantity of a line. Quantities <= 0 delete
// the line, keeping the quantity >= 1 invariant.
func (s *Service) SetQuantity(ctx context.Context, conversationID, articleID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, conversationID, articleID)
	}

	cartID, ok, err := s.getCartID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE cart_id = $2 AND article_id = $3`,
		quantity, cartID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	return nil
}

// Clear empties the cart. The cart row itself survives.
func (s *Service) Clear(ctx context.Context, conversationID string) error {
	cartID, ok, err := s.getCartID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`,
		cartID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

// List returns the cart lines joined with product attributes, in insertion
// order.
func (s *Service) List(ctx context.Context, conversationID string) ([]model.CartLine, error) {
	cartID, ok, err := s.getCartID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT
			ci.article_id,
			ci.quantity,
			p.prod_name,
			p.product_type_name,
			p.product_group_name,
			p.colour_group_name,
			p.price_mxn,
			p.image_url
		FROM cart_items ci
		JOIN products p ON ci.article_id = p.article_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id ASC`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var line model.CartLine
		if err = rows.Scan(
			&line.ArticleID,
			&line.Quantity,
			&line.Name,
			&line.Type,
			&line.Category,
			&line.Color,
			&line.PriceMXN,
			&line.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart items: %w", err)
	}

	return lines, nil
}
