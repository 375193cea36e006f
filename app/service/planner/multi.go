package planner

import (
	"context"
	"log/slog"

	"cedabot/app/model"
	"cedabot/app/service/gate"
	"cedabot/app/service/oracle"
	"cedabot/app/service/resolver"

	_ "embed"

	"golang.org/x/sync/errgroup"
)

//go:embed multi_prompt_template.txt
var multiPromptTemplate string

// PlanMulti decomposes a composite message into independent add and remove
// references and resolves each against its own candidate set. Sub-resolutions
// run in parallel but all complete before the plan is returned, so the gate
// always sees the aggregate. Inside a multi plan an unresolved add does not
// trigger the open catalog fallback (that would replace the snapshot other
// sub-resolutions are reading); it flags the plan ambiguous instead.
func (s *Service) PlanMulti(
	ctx context.Context,
	message string,
	entries []model.RecentProduct,
	lines []model.CartLine,
) MultiActionPlan {
	prompt := oracle.RenderTemplate(multiPromptTemplate, map[string]any{
		"message":         message,
		"recent_products": model.FormatRecent(entries),
		"cart_items":      model.FormatCart(lines),
	})

	var resp multiOracleResponse
	if err := s.multiClient.CompleteJSON(ctx, prompt, &resp); err != nil {
		slog.Warn("Multi-action oracle returned malformed output", "error", err)
		return MultiActionPlan{Ambiguous: true}
	}

	if !resp.HasMultiAction {
		return MultiActionPlan{}
	}

	plan := MultiActionPlan{
		Ambiguous:     resp.NeedsConfirmation,
		ItemsToAdd:    make([]AddItem, len(resp.ItemsToAdd)),
		ItemsToRemove: make([]RemoveItem, len(resp.ItemsToRemove)),
	}

	g, gctx := errgroup.WithContext(ctx)

	for i, item := range resp.ItemsToAdd {
		g.Go(func() error {
			var result resolver.Result

			if item.Position != nil && *item.Position > 0 {
				result = resolver.FromRecentIndex(entries, *item.Position)
			}
			if !result.Resolved {
				result = s.resolverSvc.ResolveRecent(gctx, item.ReferenceText, entries)
			}

			plan.ItemsToAdd[i] = AddItem{
				ReferenceText: item.ReferenceText,
				Position:      result.Position,
				ArticleID:     result.ArticleID,
				Confidence:    result.Confidence,
				Resolved:      result.Resolved,
			}
			return nil
		})
	}

	for i, item := range resp.ItemsToRemove {
		g.Go(func() error {
			var result resolver.Result

			if item.CartPosition != nil && *item.CartPosition > 0 {
				result = resolver.FromCartIndex(lines, *item.CartPosition)
			}
			if !result.Resolved {
				result = s.resolverSvc.ResolveCart(gctx, item.ReferenceText, lines)
			}

			plan.ItemsToRemove[i] = RemoveItem{
				ReferenceText: item.ReferenceText,
				CartPosition:  result.Position,
				ArticleID:     result.ArticleID,
				Confidence:    result.Confidence,
				Resolved:      result.Resolved,
			}
			return nil
		})
	}

	_ = g.Wait()

	// One ambiguous sub-reference escalates the whole plan.
	for _, it := range plan.ItemsToAdd {
		if !it.Resolved || it.NeedsConfirm() {
			plan.Ambiguous = true
		}
	}
	for _, it := range plan.ItemsToRemove {
		if !it.Resolved || it.NeedsConfirm() {
			plan.Ambiguous = true
		}
	}

	return plan
}

// NeedsConfirm applies the add-path resolution bar to a sub-reference.
func (it AddItem) NeedsConfirm() bool {
	return gate.BelowAddBar(it.Confidence)
}

// NeedsConfirm applies the remove-path resolution bar to a sub-reference.
func (it RemoveItem) NeedsConfirm() bool {
	return gate.BelowRemoveBar(it.Confidence)
}
