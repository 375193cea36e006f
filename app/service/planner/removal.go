package planner

import (
	"context"
	"log/slog"

	"cedabot/app/model"
	"cedabot/app/service/oracle"

	_ "embed"

	"github.com/elliotchance/pie/v2"
)

//go:embed removal_prompt_template.txt
var removalPromptTemplate string

// PlanRemoval builds a structured RemovalPlan for removal requests that are
// not reducible to a single explicit index. An empty cart short-circuits
// without consulting the oracle.
func (s *Service) PlanRemoval(ctx context.Context, message string, lines []model.CartLine) RemovalPlan {
	if len(lines) == 0 {
		return RemovalPlan{Kind: RemovalNone}
	}

	prompt := oracle.RenderTemplate(removalPromptTemplate, map[string]any{
		"message":    message,
		"cart_items": model.FormatCart(lines),
		"synonyms":   synonymsPromptSection(),
	})

	var resp removalOracleResponse
	if err := s.removalClient.CompleteJSON(ctx, prompt, &resp); err != nil {
		slog.Warn("Removal oracle returned malformed output", "error", err)
		return RemovalPlan{Kind: RemovalNone, NeedsConfirmation: true}
	}

	kind := RemovalKind(resp.RemovalKind)
	if !validRemovalKinds[kind] {
		slog.Warn("Removal oracle returned unknown kind", "kind", resp.RemovalKind)
		return RemovalPlan{Kind: RemovalNone, NeedsConfirmation: true}
	}

	plan := RemovalPlan{
		Kind:              kind,
		NeedsConfirmation: resp.NeedsConfirmation,
	}
	if resp.Confidence != nil && *resp.Confidence >= 0 && *resp.Confidence <= 1 {
		plan.Confidence = *resp.Confidence
	}

	inCart := make(map[string]int, len(lines))
	for _, l := range lines {
		inCart[l.ArticleID] = l.Quantity
	}

	// Drop anything the oracle invented outside the cart.
	plan.ItemsToRemove = pie.Filter(pie.Unique(resp.ItemsToRemove), func(id string) bool {
		_, ok := inCart[id]
		return ok
	})

	for id, qty := range resp.QuantityChanges {
		current, ok := inCart[id]
		if !ok {
			continue
		}

		switch {
		case qty <= 0:
			// A resulting quantity of zero is a full removal, not a
			// zero-quantity line.
			if !pie.Contains(plan.ItemsToRemove, id) {
				plan.ItemsToRemove = append(plan.ItemsToRemove, id)
			}
		case qty >= current:
			// No-op or an increase smuggled into a removal; drop it.
		default:
			if plan.QuantityChanges == nil {
				plan.QuantityChanges = make(map[string]int)
			}
			plan.QuantityChanges[id] = qty
		}
	}

	if kind == RemovalAll && plan.Empty() {
		plan.ItemsToRemove = pie.Map(lines, func(l model.CartLine) string { return l.ArticleID })
	}

	return plan
}
