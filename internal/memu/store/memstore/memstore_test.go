package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memu/internal/memu/model"
	"memu/internal/memu/store"
)

func TestItemsCreateOrReinforceDedupsWithinScope(t *testing.T) {
	ctx := context.Background()
	repo := NewItems()
	scope := model.Scope{"user_id": "u1"}

	first := &model.MemoryItem{Record: model.Record{Scope: scope}, MemoryType: model.MemoryTypeProfile, Summary: "User loves coffee"}
	got1, reinforced1, err := repo.CreateOrReinforce(ctx, first)
	require.NoError(t, err)
	assert.False(t, reinforced1)
	assert.Equal(t, 1, got1.ReinforcementCount())

	second := &model.MemoryItem{Record: model.Record{Scope: scope}, MemoryType: model.MemoryTypeProfile, Summary: "user LOVES coffee"}
	got2, reinforced2, err := repo.CreateOrReinforce(ctx, second)
	require.NoError(t, err)
	assert.True(t, reinforced2)
	assert.Equal(t, got1.ID, got2.ID)
	assert.Equal(t, 2, got2.ReinforcementCount())

	items, err := repo.List(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestItemsCreateOrReinforceScopeIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewItems()

	_, reinforcedA, err := repo.CreateOrReinforce(ctx, &model.MemoryItem{
		Record: model.Record{Scope: model.Scope{"user_id": "a"}}, MemoryType: model.MemoryTypeProfile, Summary: "likes tea",
	})
	require.NoError(t, err)
	assert.False(t, reinforcedA)

	_, reinforcedB, err := repo.CreateOrReinforce(ctx, &model.MemoryItem{
		Record: model.Record{Scope: model.Scope{"user_id": "b"}}, MemoryType: model.MemoryTypeProfile, Summary: "likes tea",
	})
	require.NoError(t, err)
	assert.False(t, reinforcedB, "same content in a different scope must not reinforce")
}

func TestItemsListByRefIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewItems()
	scope := model.Scope{"user_id": "u1"}

	item := &model.MemoryItem{Record: model.Record{Scope: scope}, MemoryType: model.MemoryTypeProfile, Summary: "x"}
	require.NoError(t, repo.Create(ctx, item))
	require.NoError(t, repo.SetRefID(ctx, item.ID, "abc123"))

	got, err := repo.ListByRefIDs(ctx, []string{"abc123", "zzzzzz"}, scope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, item.ID, got[0].ID)
}

func TestItemsVectorSearchSalienceOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewItems()
	scope := model.Scope{"user_id": "u1"}
	query := []float32{1, 0}

	now := time.Now().UTC()
	a := &model.MemoryItem{Record: model.Record{Scope: scope}, Embedding: []float32{1, 0}, Extra: map[string]any{
		"reinforcement_count": 1, "last_reinforced_at": now.Format(time.RFC3339Nano),
	}}
	b := &model.MemoryItem{Record: model.Record{Scope: scope}, Embedding: []float32{0.9, 0.43589}, Extra: map[string]any{
		"reinforcement_count": 10, "last_reinforced_at": now.Format(time.RFC3339Nano),
	}}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	got, err := repo.VectorSearch(ctx, query, 2, scope, model.RankingSalience, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID, "0.9*ln(11) should outrank 1.0*ln(2)")
}

func TestCategoriesEnsureCategoriesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCategories()
	calls := 0
	embed := func(context.Context, string) ([]float32, error) {
		calls++
		return []float32{0.1}, nil
	}

	defs := []store.CategoryDefinition{{Name: "Personal Info", Description: "d"}}
	require.NoError(t, repo.EnsureCategories(ctx, defs, embed))
	require.NoError(t, repo.EnsureCategories(ctx, defs, embed))
	assert.Equal(t, 1, calls)

	got, ok, err := repo.ByName(ctx, "  PERSONAL INFO  ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Personal Info", got.Name)
}

func TestCategoryItemsCreateIsUniquePerScope(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryItems()
	scope := model.Scope{"user_id": "u1"}

	rel := &model.CategoryItem{Record: model.Record{Scope: scope}, ItemID: "item-1", CategoryID: "cat-1"}
	require.NoError(t, repo.Create(ctx, rel))
	firstID := rel.ID

	dup := &model.CategoryItem{Record: model.Record{Scope: scope}, ItemID: "item-1", CategoryID: "cat-1"}
	require.NoError(t, repo.Create(ctx, dup))

	got, err := repo.ListByCategory(ctx, "cat-1", scope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, firstID, got[0].ID)
}
