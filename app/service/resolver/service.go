package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"cedabot/app/config"
	"cedabot/app/model"
	"cedabot/app/service/catalog"
	"cedabot/app/service/gate"
	"cedabot/app/service/oracle"
	"cedabot/app/service/recent"

	_ "embed"

	"github.com/samber/do"
)

//go:embed resolve_recent_prompt_template.txt
var recentPromptTemplate string

//go:embed resolve_cart_prompt_template.txt
var cartPromptTemplate string

type completer interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

type searcher interface {
	Search(ctx context.Context, message string, tail []model.ConversationMessage) ([]model.Product, error)
}

type snapshotStore interface {
	Save(ctx context.Context, conversationID string, products []model.Product) error
}

// Service resolves free-text references to concrete items. It runs against
// either the last-shown product list (add path) or the current cart (remove
// path); the two are never cross-applied.
type Service struct {
	client     completer
	catalogSvc searcher
	recentSvc  snapshotStore
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	client, err := oracle.NewClient(cfg.OpenAI.Resolver)
	if err != nil {
		return nil, err
	}

	return NewWith(
		client,
		do.MustInvoke[*catalog.Service](di),
		do.MustInvoke[*recent.Service](di),
	), nil
}

func NewWith(client completer, catalogSvc searcher, recentSvc snapshotStore) *Service {
	return &Service{
		client:     client,
		catalogSvc: catalogSvc,
		recentSvc:  recentSvc,
	}
}

// FromRecentIndex short-circuits resolution for an explicit position the
// classifier already extracted. Out-of-range positions (including 0 and
// negatives) are rejected without consulting any oracle.
func FromRecentIndex(entries []model.RecentProduct, index int) Result {
	entry, ok := recent.FindByPosition(entries, index)
	if !ok {
		return Result{
			Reason: fmt.Sprintf("posición %d fuera de la lista reciente", index),
		}
	}

	return Result{
		Resolved:   true,
		Position:   entry.Position,
		ArticleID:  entry.Product.ArticleID,
		Confidence: 1,
	}
}

// FromCartIndex is the cart-side direct index short circuit.
func FromCartIndex(lines []model.CartLine, index int) Result {
	if index <= 0 || index > len(lines) {
		return Result{
			Reason: fmt.Sprintf("posición %d fuera del carrito", index),
		}
	}

	return Result{
		Resolved:   true,
		Position:   index,
		ArticleID:  lines[index-1].ArticleID,
		Confidence: 1,
	}
}

// ResolveRecent matches a descriptive reference against the recent-products
// snapshot. A confidence below the add bar forces confirmation regardless of
// any upstream flag.
func (s *Service) ResolveRecent(ctx context.Context, reference string, entries []model.RecentProduct) Result {
	if len(entries) == 0 {
		return Result{Reason: "no hay productos recientes"}
	}

	prompt := oracle.RenderTemplate(recentPromptTemplate, map[string]any{
		"reference":  reference,
		"candidates": model.FormatRecent(entries),
	})

	var resp oracleResponse
	if err := s.client.CompleteJSON(ctx, prompt, &resp); err != nil {
		slog.Warn("Recent resolver oracle returned malformed output", "error", err)
		return Result{Reason: "respuesta de resolución inválida", NeedsConfirmation: true}
	}

	if !resp.Resolved || resp.Position == nil {
		return Result{Confidence: resp.confidence(), Reason: resp.Reason}
	}

	entry, ok := recent.FindByPosition(entries, *resp.Position)
	if !ok {
		// The oracle invented a position; treat as unresolved.
		return Result{Reason: fmt.Sprintf("posición %d fuera de la lista reciente", *resp.Position)}
	}

	confidence := resp.confidence()

	return Result{
		Resolved:          true,
		Position:          entry.Position,
		ArticleID:         entry.Product.ArticleID,
		Confidence:        confidence,
		Reason:            resp.Reason,
		NeedsConfirmation: gate.BelowAddBar(confidence),
	}
}

// ResolveCart matches a descriptive reference against the current cart lines.
func (s *Service) ResolveCart(ctx context.Context, reference string, lines []model.CartLine) Result {
	if len(lines) == 0 {
		return Result{Reason: "el carrito está vacío"}
	}

	prompt := oracle.RenderTemplate(cartPromptTemplate, map[string]any{
		"reference":  reference,
		"candidates": model.FormatCart(lines),
	})

	var resp oracleResponse
	if err := s.client.CompleteJSON(ctx, prompt, &resp); err != nil {
		slog.Warn("Cart resolver oracle returned malformed output", "error", err)
		return Result{Reason: "respuesta de resolución inválida", NeedsConfirmation: true}
	}

	if !resp.Resolved || resp.Position == nil {
		return Result{Confidence: resp.confidence(), Reason: resp.Reason}
	}

	if *resp.Position <= 0 || *resp.Position > len(lines) {
		return Result{Reason: fmt.Sprintf("posición %d fuera del carrito", *resp.Position)}
	}

	confidence := resp.confidence()

	return Result{
		Resolved:          true,
		Position:          *resp.Position,
		ArticleID:         lines[*resp.Position-1].ArticleID,
		Confidence:        confidence,
		Reason:            resp.Reason,
		NeedsConfirmation: gate.BelowRemoveBar(confidence),
	}
}

// ResolveAddWithFallback resolves an add reference against the snapshot and,
// when that fails, searches the open catalog. Search results replace the
// snapshot before item 1 is offered as a suggestion that always requires
// confirmation. The returned listing is non-nil exactly when the snapshot was
// replaced.
func (s *Service) ResolveAddWithFallback(
	ctx context.Context,
	conversationID, reference string,
	entries []model.RecentProduct,
	tail []model.ConversationMessage,
) (Result, []model.RecentProduct, error) {
	result := s.ResolveRecent(ctx, reference, entries)
	if result.Resolved {
		return result, nil, nil
	}

	products, err := s.catalogSvc.Search(ctx, reference, tail)
	if err != nil {
		return result, nil, fmt.Errorf("catalogSvc.Search: %w", err)
	}

	if len(products) == 0 {
		return result, nil, nil
	}

	if err = s.recentSvc.Save(ctx, conversationID, products); err != nil {
		return result, nil, fmt.Errorf("recentSvc.Save: %w", err)
	}

	listing := make([]model.RecentProduct, 0, len(products))
	for i, p := range products {
		listing = append(listing, model.RecentProduct{Position: i + 1, Product: p})
	}

	return Result{
		Resolved:          true,
		Position:          1,
		ArticleID:         products[0].ArticleID,
		Confidence:        gate.MinAddResolveConfidence,
		Reason:            "sugerencia de búsqueda en catálogo",
		NeedsConfirmation: true,
	}, listing, nil
}
