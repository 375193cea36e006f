package planner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cedabot/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _ string, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func testCart() []model.CartLine {
	return []model.CartLine{
		{ArticleID: "art-1", Name: "Blusa Mia", Color: "Rojo", Quantity: 1},
		{ArticleID: "art-2", Name: "Jeans Slim", Color: "Azul", Quantity: 3},
		{ArticleID: "art-3", Name: "Sudadera Oso", Color: "Gris", Quantity: 2},
	}
}

func TestPlanRemoval_EmptyCartSkipsOracle(t *testing.T) {
	oracle := &fakeCompleter{err: errors.New("must not be called")}
	svc := NewWith(oracle, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "quita todo", nil)

	assert.Equal(t, RemovalNone, plan.Kind)
	assert.Zero(t, oracle.calls)
}

func TestPlanRemoval_MalformedOracle(t *testing.T) {
	svc := NewWith(&fakeCompleter{err: errors.New("bad json")}, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "quita la blusa", testCart())

	assert.Equal(t, RemovalNone, plan.Kind)
	assert.True(t, plan.NeedsConfirmation)
	assert.True(t, plan.Empty())
}

func TestPlanRemoval_UnknownKind(t *testing.T) {
	svc := NewWith(&fakeCompleter{
		response: `{"removal_kind": "by_vibes", "items_to_remove": ["art-1"]}`,
	}, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "quita lo feo", testCart())

	assert.Equal(t, RemovalNone, plan.Kind)
	assert.True(t, plan.NeedsConfirmation)
}

func TestPlanRemoval_InventedIdsFiltered(t *testing.T) {
	svc := NewWith(&fakeCompleter{
		response: `{"removal_kind": "by_color", "items_to_remove": ["art-1", "ghost-9", "art-1"], "confidence": 0.9}`,
	}, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "quita lo rojo", testCart())

	assert.Equal(t, []string{"art-1"}, plan.ItemsToRemove)
}

func TestPlanRemoval_QuantityNormalization(t *testing.T) {
	svc := NewWith(&fakeCompleter{
		response: `{
			"removal_kind": "quantity_change",
			"quantity_changes": {"art-2": 1, "art-3": 2, "art-1": 0, "ghost-9": 1},
			"confidence": 0.95
		}`,
	}, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "deja solo un jeans y quita la blusa", testCart())

	// art-2: 3 -> 1 is a real reduction. art-3: 2 -> 2 is a no-op and is
	// dropped. art-1: resulting 0 folds into a full removal. ghost-9 is not
	// in the cart.
	assert.Equal(t, map[string]int{"art-2": 1}, plan.QuantityChanges)
	assert.Equal(t, []string{"art-1"}, plan.ItemsToRemove)
	assert.Equal(t, 2, plan.AffectedCount())
}

func TestPlanRemoval_AllExpandsToWholeCart(t *testing.T) {
	svc := NewWith(&fakeCompleter{
		response: `{"removal_kind": "all", "confidence": 1}`,
	}, &fakeCompleter{}, nil)

	plan := svc.PlanRemoval(context.Background(), "vacía el carrito", testCart())

	assert.ElementsMatch(t, []string{"art-1", "art-2", "art-3"}, plan.ItemsToRemove)
	assert.Equal(t, 3, plan.AffectedCount())
}

func TestRemovalPlan_Empty(t *testing.T) {
	assert.True(t, RemovalPlan{Kind: RemovalByName}.Empty())
	assert.False(t, RemovalPlan{ItemsToRemove: []string{"art-1"}}.Empty())
	assert.False(t, RemovalPlan{QuantityChanges: map[string]int{"art-1": 1}}.Empty())
}

func TestExpandCategory(t *testing.T) {
	assert.Contains(t, ExpandCategory("tops"), "blusa")
	assert.Contains(t, ExpandCategory("Bottoms"), "falda")
	assert.Equal(t, []string{"corbata"}, ExpandCategory("corbata"))
}

func TestSynonymsPromptSection(t *testing.T) {
	section := synonymsPromptSection()

	require.NotEmpty(t, section)
	assert.Contains(t, section, "\"tops\" incluye:")
	assert.Contains(t, section, "pantalón")
}
