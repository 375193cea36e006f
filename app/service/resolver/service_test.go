package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"cedabot/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

type fakeSearcher struct {
	products []model.Product
	err      error
	called   bool
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ []model.ConversationMessage) ([]model.Product, error) {
	f.called = true
	return f.products, f.err
}

type fakeSnapshot struct {
	saved []model.Product
	err   error
}

func (f *fakeSnapshot) Save(_ context.Context, _ string, products []model.Product) error {
	if f.err != nil {
		return f.err
	}
	f.saved = products
	return nil
}

func snapshot(n int) []model.RecentProduct {
	entries := make([]model.RecentProduct, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, model.RecentProduct{
			Position: i,
			Product:  model.Product{ArticleID: fmt.Sprintf("art-%d", i), Name: fmt.Sprintf("Producto %d", i)},
		})
	}
	return entries
}

func cartLines(n int) []model.CartLine {
	lines := make([]model.CartLine, 0, n)
	for i := 1; i <= n; i++ {
		lines = append(lines, model.CartLine{
			ArticleID: fmt.Sprintf("art-%d", i),
			Name:      fmt.Sprintf("Producto %d", i),
			Quantity:  1,
		})
	}
	return lines
}

func TestFromRecentIndex(t *testing.T) {
	entries := snapshot(3)

	tests := []struct {
		name      string
		index     int
		resolved  bool
		articleID string
	}{
		{name: "valid position", index: 2, resolved: true, articleID: "art-2"},
		{name: "zero rejected", index: 0},
		{name: "negative rejected", index: -3},
		{name: "past the end rejected", index: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromRecentIndex(entries, tt.index)

			assert.Equal(t, tt.resolved, result.Resolved)
			assert.Equal(t, tt.articleID, result.ArticleID)

			if tt.resolved {
				assert.Equal(t, float64(1), result.Confidence)
			} else {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestFromRecentIndex_StalePositionAfterNewSnapshot(t *testing.T) {
	// A position from an old list of 7 must not resolve after a list of 3
	// replaced it.
	result := FromRecentIndex(snapshot(3), 5)

	assert.False(t, result.Resolved)
}

func TestFromCartIndex(t *testing.T) {
	lines := cartLines(2)

	assert.True(t, FromCartIndex(lines, 1).Resolved)
	assert.Equal(t, "art-2", FromCartIndex(lines, 2).ArticleID)
	assert.False(t, FromCartIndex(lines, 0).Resolved)
	assert.False(t, FromCartIndex(lines, -1).Resolved)
	assert.False(t, FromCartIndex(lines, 3).Resolved)
}

func TestResolveRecent_EmptySnapshot(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("must not be called")}
	svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

	result := svc.ResolveRecent(context.Background(), "la blusa roja", nil)

	assert.False(t, result.Resolved)
	assert.Equal(t, "no hay productos recientes", result.Reason)
}

func TestResolveRecent_BoundaryConfidence(t *testing.T) {
	tests := []struct {
		name        string
		confidence  float64
		wantConfirm bool
	}{
		{name: "exactly at the add bar executes", confidence: 0.70, wantConfirm: false},
		{name: "just below the add bar confirms", confidence: 0.69, wantConfirm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{
				response: fmt.Sprintf(`{"resolved": true, "position": 1, "confidence": %.2f}`, tt.confidence),
			}
			svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

			result := svc.ResolveRecent(context.Background(), "la blusa", snapshot(2))

			require.True(t, result.Resolved)
			assert.Equal(t, tt.wantConfirm, result.NeedsConfirmation)
		})
	}
}

func TestResolveRecent_InventedPosition(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": true, "position": 9, "confidence": 0.95}`,
	}
	svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

	result := svc.ResolveRecent(context.Background(), "el último", snapshot(2))

	assert.False(t, result.Resolved)
}

func TestResolveCart_BoundaryConfidence(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": true, "position": 1, "confidence": 0.75}`,
	}
	svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

	result := svc.ResolveCart(context.Background(), "los jeans", cartLines(2))

	require.True(t, result.Resolved)
	assert.False(t, result.NeedsConfirmation)

	fake.response = `{"resolved": true, "position": 1, "confidence": 0.74}`
	result = svc.ResolveCart(context.Background(), "los jeans", cartLines(2))

	require.True(t, result.Resolved)
	assert.True(t, result.NeedsConfirmation)
}

func TestResolveCart_MalformedOracle(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("bad json")}
	svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

	result := svc.ResolveCart(context.Background(), "quita eso", cartLines(1))

	assert.False(t, result.Resolved)
	assert.True(t, result.NeedsConfirmation)
}

func TestResolveAddWithFallback_ResolvedWithinSnapshot(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": true, "position": 2, "confidence": 0.9}`,
	}
	searcher := &fakeSearcher{}
	svc := NewWith(fake, searcher, &fakeSnapshot{})

	result, listing, err := svc.ResolveAddWithFallback(context.Background(), "conv-1", "el segundo", snapshot(3), nil)

	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.Equal(t, "art-2", result.ArticleID)
	assert.Nil(t, listing)
	assert.False(t, searcher.called, "catalog must not be consulted when the snapshot resolves")
}

func TestResolveAddWithFallback_CatalogReplacesSnapshot(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": false, "reason": "no coincide"}`,
	}
	found := []model.Product{
		{ArticleID: "new-1", Name: "Vestido Flor"},
		{ArticleID: "new-2", Name: "Vestido Sol"},
	}
	snapshotStore := &fakeSnapshot{}
	svc := NewWith(fake, &fakeSearcher{products: found}, snapshotStore)

	result, listing, err := svc.ResolveAddWithFallback(context.Background(), "conv-1", "un vestido floreado", snapshot(2), nil)

	require.NoError(t, err)
	require.True(t, result.Resolved)

	// The suggestion is always item 1 of the fresh listing and always gated.
	assert.Equal(t, 1, result.Position)
	assert.Equal(t, "new-1", result.ArticleID)
	assert.True(t, result.NeedsConfirmation)

	require.Len(t, listing, 2)
	assert.Equal(t, 1, listing[0].Position)
	assert.Equal(t, "new-2", listing[1].Product.ArticleID)

	assert.Equal(t, found, snapshotStore.saved, "search results must replace the stored snapshot")
}

func TestResolveAddWithFallback_NoCatalogResults(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": false, "reason": "no coincide"}`,
	}
	svc := NewWith(fake, &fakeSearcher{}, &fakeSnapshot{})

	result, listing, err := svc.ResolveAddWithFallback(context.Background(), "conv-1", "algo rarísimo", snapshot(1), nil)

	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.Nil(t, listing)
}

func TestResolveAddWithFallback_SearchError(t *testing.T) {
	fake := &fakeCompleter{
		response: `{"resolved": false}`,
	}
	svc := NewWith(fake, &fakeSearcher{err: errors.New("db down")}, &fakeSnapshot{})

	_, _, err := svc.ResolveAddWithFallback(context.Background(), "conv-1", "una blusa", snapshot(1), nil)

	assert.Error(t, err)
}
