package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/catalog"
	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/models"
)

func TestAtWrapsAround(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(memstore.New())

	_, _, err := c.At(ctx, 0)
	assert.ErrorIs(t, err, catalog.ErrEmpty)

	for _, name := range []string{"A", "B", "C"} {
		_, err := c.Create(ctx, models.Product{Name: name, Price: 100})
		require.NoError(t, err)
	}

	tests := []struct {
		index     int
		wantName  string
		wantIndex int
	}{
		{0, "A", 0},
		{2, "C", 2},
		{3, "A", 0},
		{-1, "C", 2},
	}
	for _, tt := range tests {
		p, idx, err := c.At(ctx, tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.wantName, p.Name)
		assert.Equal(t, tt.wantIndex, idx)
	}
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(memstore.New())
	id, err := c.Create(ctx, models.Product{Name: "Old", Description: "d", Price: 100})
	require.NoError(t, err)

	require.NoError(t, c.Edit(ctx, id, "name", "New"))
	require.NoError(t, c.Edit(ctx, id, "description", "Описание"))
	require.NoError(t, c.Edit(ctx, id, "price", " 250 "))

	p, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
	assert.Equal(t, "Описание", p.Description)
	assert.Equal(t, int64(250), p.Price)

	assert.ErrorIs(t, c.Edit(ctx, id, "photo", "x"), catalog.ErrUnknownField)
	assert.ErrorIs(t, c.Edit(ctx, id, "price", "дорого"), catalog.ErrBadPrice)
	assert.ErrorIs(t, c.Edit(ctx, 999, "name", "x"), catalog.ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(memstore.New())
	id, err := c.Create(ctx, models.Product{Name: "X"})
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, id))
	assert.ErrorIs(t, c.Delete(ctx, id), catalog.ErrNotFound)
	_, err = c.Get(ctx, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSizeList(t *testing.T) {
	assert.Equal(t, []string{"S", "M", "XL"}, models.Product{Sizes: " S, M ,,XL "}.SizeList())
	assert.Empty(t, models.Product{}.SizeList())
}
