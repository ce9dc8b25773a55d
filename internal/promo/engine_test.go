package promo_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/memstore"
	"github.com/M0nstr1k/ds/internal/promo"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine() (*promo.Engine, *memstore.Store, *time.Time) {
	clock := now
	store := memstore.New()
	e := promo.NewEngine(store,
		promo.WithClock(func() time.Time { return clock }),
		promo.WithRand(rand.New(rand.NewSource(1))),
	)
	return e, store, &clock
}

func TestApply(t *testing.T) {
	e, store, clock := newEngine()
	ctx := context.Background()

	_, err := e.Save(ctx, "SALE20", 20, 0, 0)
	require.NoError(t, err)
	_, err = e.Save(ctx, "ONCE", 50, 1, 0)
	require.NoError(t, err)
	_, err = e.Save(ctx, "WEEK", 10, 0, 7)
	require.NoError(t, err)
	require.NoError(t, store.IncrementPromoUse(ctx, "ONCE"))
	*clock = now.AddDate(0, 0, 8)

	tests := []struct {
		name           string
		code           string
		wantDiscounted int64
		wantDiscount   int64
	}{
		{"без кода", "", 1000, 0},
		{"неизвестный код", "NOPE", 1000, 0},
		{"действующий код", "SALE20", 800, 200},
		{"исчерпанный код", "ONCE", 1000, 0},
		{"просроченный код", "WEEK", 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discounted, discount, err := e.Apply(ctx, 1000, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscounted, discounted)
			assert.Equal(t, tt.wantDiscount, discount)
		})
	}
}

func TestApplyFloorsDiscount(t *testing.T) {
	e, _, _ := newEngine()
	ctx := context.Background()
	_, err := e.Save(ctx, "SEVEN", 7, 0, 0)
	require.NoError(t, err)

	discounted, discount, err := e.Apply(ctx, 999, "SEVEN")
	require.NoError(t, err)
	assert.Equal(t, int64(69), discount)
	assert.Equal(t, int64(930), discounted)
}

func TestCheckReasons(t *testing.T) {
	e, _, clock := newEngine()
	ctx := context.Background()

	_, err := e.Check(ctx, "MISSING")
	assert.ErrorIs(t, err, promo.ErrNotFound)

	_, err = e.Save(ctx, "ONCE", 10, 1, 1)
	require.NoError(t, err)
	p, err := e.Check(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Percent)

	require.NoError(t, e.Increment(ctx, "ONCE"))
	_, err = e.Check(ctx, "ONCE")
	assert.ErrorIs(t, err, promo.ErrExhausted)

	_, err = e.Save(ctx, "DAY", 10, 0, 1)
	require.NoError(t, err)
	*clock = now.Add(48 * time.Hour)
	_, err = e.Check(ctx, "DAY")
	assert.ErrorIs(t, err, promo.ErrExpired)
}

func TestSaveValidation(t *testing.T) {
	e, _, _ := newEngine()
	ctx := context.Background()

	_, err := e.Save(ctx, "BIG", 101, 0, 0)
	assert.ErrorIs(t, err, promo.ErrBadPercent)
	_, err = e.Save(ctx, "  ", 10, 0, 0)
	assert.ErrorIs(t, err, promo.ErrBadCode)

	p, err := e.Save(ctx, "FREE", 0, 0, 0)
	require.NoError(t, err)
	assert.False(t, p.UsageLimit.Valid)
	assert.False(t, p.ExpiresAt.Valid)
}

func TestSaveReplacesAndResetsUsage(t *testing.T) {
	e, store, _ := newEngine()
	ctx := context.Background()

	_, err := e.Save(ctx, "X", 10, 2, 0)
	require.NoError(t, err)
	require.NoError(t, e.Increment(ctx, "X"))

	_, err = e.Save(ctx, "X", 30, 5, 0)
	require.NoError(t, err)
	p, err := store.GetPromo(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Percent)
	assert.Zero(t, p.UsedCount)
}

func TestDelete(t *testing.T) {
	e, _, _ := newEngine()
	ctx := context.Background()

	assert.ErrorIs(t, e.Delete(ctx, "NONE"), promo.ErrNotFound)
	_, err := e.Save(ctx, "DEL", 5, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.Delete(ctx, "DEL"))

	list, err := e.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMintReferral(t *testing.T) {
	e, _, _ := newEngine()
	ctx := context.Background()

	p, err := e.MintReferral(ctx, 15, 30)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Code, "REF"))
	assert.Len(t, p.Code, 9)
	assert.Equal(t, 15, p.Percent)
	require.True(t, p.UsageLimit.Valid)
	assert.Equal(t, int64(1), p.UsageLimit.Int64)
	require.True(t, p.ExpiresAt.Valid)
	assert.Equal(t, now.AddDate(0, 0, 30), p.ExpiresAt.Time)

	seen := map[string]bool{p.Code: true}
	for i := 0; i < 20; i++ {
		next, err := e.MintReferral(ctx, 5, 30)
		require.NoError(t, err)
		assert.False(t, seen[next.Code], "код %s выдан дважды", next.Code)
		seen[next.Code] = true
	}
}
