package planner

import (
	"context"
	"errors"
	"testing"

	"cedabot/app/model"
	"cedabot/app/service/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	recentResults map[string]resolver.Result
	cartResults   map[string]resolver.Result
}

func (f *fakeResolver) ResolveRecent(_ context.Context, reference string, _ []model.RecentProduct) resolver.Result {
	return f.recentResults[reference]
}

func (f *fakeResolver) ResolveCart(_ context.Context, reference string, _ []model.CartLine) resolver.Result {
	return f.cartResults[reference]
}

func testSnapshot() []model.RecentProduct {
	return []model.RecentProduct{
		{Position: 1, Product: model.Product{ArticleID: "new-1", Name: "Top Azul"}},
		{Position: 2, Product: model.Product{ArticleID: "new-2", Name: "Top Verde"}},
	}
}

func TestPlanMulti_MalformedOracle(t *testing.T) {
	svc := NewWith(&fakeCompleter{}, &fakeCompleter{err: errors.New("bad json")}, &fakeResolver{})

	plan := svc.PlanMulti(context.Background(), "quita y agrega", nil, nil)

	assert.True(t, plan.Ambiguous)
	assert.True(t, plan.Empty())
}

func TestPlanMulti_NotComposite(t *testing.T) {
	svc := NewWith(&fakeCompleter{}, &fakeCompleter{
		response: `{"has_multi_action": false}`,
	}, &fakeResolver{})

	plan := svc.PlanMulti(context.Background(), "agrega el 1", nil, nil)

	assert.True(t, plan.Empty())
	assert.False(t, plan.Ambiguous)
}

func TestPlanMulti_ResolvesBothHalves(t *testing.T) {
	multiOracle := &fakeCompleter{
		response: `{
			"has_multi_action": true,
			"items_to_add": [{"reference_text": "el top azul"}],
			"items_to_remove": [{"reference_text": "los jeans"}]
		}`,
	}
	res := &fakeResolver{
		recentResults: map[string]resolver.Result{
			"el top azul": {Resolved: true, Position: 1, ArticleID: "new-1", Confidence: 0.9},
		},
		cartResults: map[string]resolver.Result{
			"los jeans": {Resolved: true, Position: 2, ArticleID: "art-2", Confidence: 0.85},
		},
	}
	svc := NewWith(&fakeCompleter{}, multiOracle, res)

	plan := svc.PlanMulti(context.Background(), "quita los jeans y agrega el top azul", testSnapshot(), testCart())

	require.Len(t, plan.ItemsToAdd, 1)
	require.Len(t, plan.ItemsToRemove, 1)

	assert.Equal(t, "new-1", plan.ItemsToAdd[0].ArticleID)
	assert.True(t, plan.ItemsToAdd[0].Resolved)
	assert.Equal(t, "art-2", plan.ItemsToRemove[0].ArticleID)
	assert.False(t, plan.Ambiguous)
	assert.Equal(t, 2, plan.AffectedCount())
}

func TestPlanMulti_DirectPositionsSkipOracle(t *testing.T) {
	multiOracle := &fakeCompleter{
		response: `{
			"has_multi_action": true,
			"items_to_add": [{"reference_text": "el producto 2", "position": 2}],
			"items_to_remove": [{"reference_text": "el producto 1 del carrito", "cart_position": 1}]
		}`,
	}
	// No descriptive results registered: a resolver call would come back
	// unresolved and flag the plan.
	svc := NewWith(&fakeCompleter{}, multiOracle, &fakeResolver{})

	plan := svc.PlanMulti(context.Background(), "quita el 1 y agrega el 2", testSnapshot(), testCart())

	require.Len(t, plan.ItemsToAdd, 1)
	require.Len(t, plan.ItemsToRemove, 1)

	assert.Equal(t, "new-2", plan.ItemsToAdd[0].ArticleID)
	assert.Equal(t, "art-1", plan.ItemsToRemove[0].ArticleID)
	assert.False(t, plan.Ambiguous)
}

func TestPlanMulti_OneAmbiguousSubItemEscalatesWholePlan(t *testing.T) {
	multiOracle := &fakeCompleter{
		response: `{
			"has_multi_action": true,
			"items_to_add": [
				{"reference_text": "el top azul"},
				{"reference_text": "algo bonito"}
			]
		}`,
	}
	res := &fakeResolver{
		recentResults: map[string]resolver.Result{
			"el top azul": {Resolved: true, Position: 1, ArticleID: "new-1", Confidence: 0.95},
			"algo bonito": {Resolved: true, Position: 2, ArticleID: "new-2", Confidence: 0.4},
		},
	}
	svc := NewWith(&fakeCompleter{}, multiOracle, res)

	plan := svc.PlanMulti(context.Background(), "agrega el top azul y algo bonito", testSnapshot(), nil)

	assert.True(t, plan.Ambiguous)
}

func TestPlanMulti_UnresolvedSubItemEscalates(t *testing.T) {
	multiOracle := &fakeCompleter{
		response: `{
			"has_multi_action": true,
			"items_to_remove": [{"reference_text": "la cosa esa"}]
		}`,
	}
	svc := NewWith(&fakeCompleter{}, multiOracle, &fakeResolver{})

	plan := svc.PlanMulti(context.Background(), "quita la cosa esa y agrega otra", nil, testCart())

	require.Len(t, plan.ItemsToRemove, 1)
	assert.False(t, plan.ItemsToRemove[0].Resolved)
	assert.True(t, plan.Ambiguous)
}

func TestSubItemBars(t *testing.T) {
	assert.False(t, AddItem{Confidence: 0.70}.NeedsConfirm())
	assert.True(t, AddItem{Confidence: 0.69}.NeedsConfirm())
	assert.False(t, RemoveItem{Confidence: 0.75}.NeedsConfirm())
	assert.True(t, RemoveItem{Confidence: 0.74}.NeedsConfirm())
}
