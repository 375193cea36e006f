package executor

import (
	"context"
	"fmt"
	"log/slog"

	"cedabot/app/model"
	"cedabot/app/service/cart"
	"cedabot/app/service/planner"

	"github.com/samber/do"
)

type cartStore interface {
	Add(ctx context.Context, conversationID, articleID string, quantity int) error
	Remove(ctx context.Context, conversationID, articleID string) error
	SetQuantity(ctx context.Context, conversationID, articleID string, quantity int) error
	List(ctx context.Context, conversationID string) ([]model.CartLine, error)
	Clear(ctx context.Context, conversationID string) error
}

// Service applies gated plans and references to the cart store. Plan
// execution is best effort per item: one failed write is recorded and the
// rest continue, never abort-on-first-failure.
type Service struct {
	cartSvc cartStore
}

func New(di *do.Injector) (*Service, error) {
	return NewWith(do.MustInvoke[*cart.Service](di)), nil
}

func NewWith(cartSvc cartStore) *Service {
	return &Service{cartSvc: cartSvc}
}

// ExecuteAdd writes a single resolved add.
func (s *Service) ExecuteAdd(ctx context.Context, conversationID string, product model.Product, quantity int) *Outcome {
	outcome := &Outcome{}

	label := fmt.Sprintf("%s (%s)", product.Name, product.Color)

	if err := s.cartSvc.Add(ctx, conversationID, product.ArticleID, quantity); err != nil {
		slog.Error("Cart add failed",
			"conversation_id", conversationID,
			"article_id", product.ArticleID,
			"error", err,
			"telegram", true)
		outcome.Failed = append(outcome.Failed, label)
		return outcome
	}

	outcome.Added = append(outcome.Added, label)
	s.refresh(ctx, conversationID, outcome)

	return outcome
}

// ExecuteRemoval applies a removal plan. lines is the pre-mutation cart,
// used only for naming items in the outcome.
func (s *Service) ExecuteRemoval(ctx context.Context, conversationID string, plan planner.RemovalPlan, lines []model.CartLine) *Outcome {
	outcome := &Outcome{}
	names := namesByArticle(lines)

	for _, articleID := range plan.ItemsToRemove {
		if err := s.cartSvc.Remove(ctx, conversationID, articleID); err != nil {
			slog.Error("Cart remove failed",
				"conversation_id", conversationID,
				"article_id", articleID,
				"error", err,
				"telegram", true)
			outcome.Failed = append(outcome.Failed, names[articleID])
			continue
		}
		outcome.Removed = append(outcome.Removed, names[articleID])
	}

	for articleID, quantity := range plan.QuantityChanges {
		if err := s.cartSvc.SetQuantity(ctx, conversationID, articleID, quantity); err != nil {
			slog.Error("Cart quantity update failed",
				"conversation_id", conversationID,
				"article_id", articleID,
				"error", err,
				"telegram", true)
			outcome.Failed = append(outcome.Failed, names[articleID])
			continue
		}
		outcome.Updated = append(outcome.Updated,
			fmt.Sprintf("%s (ahora x%d)", names[articleID], quantity))
	}

	s.refresh(ctx, conversationID, outcome)

	return outcome
}

// ExecuteMulti applies a multi-action plan. Unresolved sub-references were
// already gated out; any that remain are reported as failed, and each
// resolved item is written independently.
func (s *Service) ExecuteMulti(
	ctx context.Context,
	conversationID string,
	plan planner.MultiActionPlan,
	entries []model.RecentProduct,
	lines []model.CartLine,
) *Outcome {
	outcome := &Outcome{}
	names := namesByArticle(lines)

	for _, item := range plan.ItemsToRemove {
		if !item.Resolved {
			outcome.Failed = append(outcome.Failed, item.ReferenceText)
			continue
		}

		if err := s.cartSvc.Remove(ctx, conversationID, item.ArticleID); err != nil {
			slog.Error("Cart remove failed",
				"conversation_id", conversationID,
				"article_id", item.ArticleID,
				"error", err,
				"telegram", true)
			outcome.Failed = append(outcome.Failed, names[item.ArticleID])
			continue
		}
		outcome.Removed = append(outcome.Removed, names[item.ArticleID])
	}

	for _, item := range plan.ItemsToAdd {
		if !item.Resolved {
			outcome.Failed = append(outcome.Failed, item.ReferenceText)
			continue
		}

		label := item.ReferenceText
		if entry, ok := findRecent(entries, item.ArticleID); ok {
			label = fmt.Sprintf("%s (%s)", entry.Product.Name, entry.Product.Color)
		}

		if err := s.cartSvc.Add(ctx, conversationID, item.ArticleID, 1); err != nil {
			slog.Error("Cart add failed",
				"conversation_id", conversationID,
				"article_id", item.ArticleID,
				"error", err,
				"telegram", true)
			outcome.Failed = append(outcome.Failed, label)
			continue
		}
		outcome.Added = append(outcome.Added, label)
	}

	s.refresh(ctx, conversationID, outcome)

	return outcome
}

// ExecuteClear empties the cart.
func (s *Service) ExecuteClear(ctx context.Context, conversationID string, lines []model.CartLine) *Outcome {
	outcome := &Outcome{}

	if err := s.cartSvc.Clear(ctx, conversationID); err != nil {
		slog.Error("Cart clear failed",
			"conversation_id", conversationID,
			"error", err,
			"telegram", true)
		outcome.Failed = append(outcome.Failed, "vaciar el carrito")
		return outcome
	}

	for _, l := range lines {
		outcome.Removed = append(outcome.Removed, l.Name)
	}
	outcome.Lines = []model.CartLine{}

	return outcome
}

// refresh re-reads the cart after a mutation so the response reflects the
// stored state, not pre-mutation counters.
func (s *Service) refresh(ctx context.Context, conversationID string, outcome *Outcome) {
	lines, err := s.cartSvc.List(ctx, conversationID)
	if err != nil {
		slog.Error("Cart re-read failed",
			"conversation_id", conversationID,
			"error", err,
			"telegram", true)
		return
	}

	if lines == nil {
		lines = []model.CartLine{}
	}

	outcome.Lines = lines
	outcome.Total = model.CartTotal(lines)
}

func namesByArticle(lines []model.CartLine) map[string]string {
	names := make(map[string]string, len(lines))
	for _, l := range lines {
		names[l.ArticleID] = fmt.Sprintf("%s (%s)", l.Name, l.Color)
	}
	return names
}

func findRecent(entries []model.RecentProduct, articleID string) (model.RecentProduct, bool) {
	for _, e := range entries {
		if e.Product.ArticleID == articleID {
			return e, true
		}
	}
	return model.RecentProduct{}, false
}
