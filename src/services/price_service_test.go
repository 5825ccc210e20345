package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/src/models"
	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
)

type fixedPriceSource struct {
	price  decimal.Decimal
	err    error
	quotes int
}

func (s *fixedPriceSource) QuoteUSD(context.Context, *models.Token) (decimal.Decimal, error) {
	s.quotes++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.price, nil
}

type mapPriceCache struct {
	values map[string]string
}

func newMapPriceCache() *mapPriceCache {
	return &mapPriceCache{values: map[string]string{}}
}

func (c *mapPriceCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.values[key] = value.(string)
	return nil
}

func (c *mapPriceCache) Get(_ context.Context, key string, result interface{}) error {
	v, ok := c.values[key]
	if !ok {
		return assert.AnError
	}
	*result.(*string) = v
	return nil
}

func TestTokenPriceUSDServesFromCache(t *testing.T) {
	source := &fixedPriceSource{price: decimal.NewFromInt(1800)}
	cache := newMapPriceCache()
	svc := services.NewPriceService(
		&fakeTokenRepo{tokens: map[int64]*models.Token{}},
		newFakeBalanceRepo(), source, cache, nil,
	)

	token := &models.Token{ID: 1, Symbol: "ETH"}
	ctx := context.Background()

	first, err := svc.TokenPriceUSD(ctx, token)
	require.NoError(t, err)
	second, err := svc.TokenPriceUSD(ctx, token)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, source.quotes, "the second read must come from the cache")
}

func TestSetTokenPriceRepricesEveryBalance(t *testing.T) {
	balances := newFakeBalanceRepo()
	cache := newMapPriceCache()
	tokens := &fakeTokenRepo{tokens: map[int64]*models.Token{
		1: {ID: 1, Symbol: "ETH"},
	}}
	svc := services.NewPriceService(tokens, balances,
		&fixedPriceSource{price: decimal.NewFromInt(1)}, cache, nil)

	seedBalance(t, balances, 1, 1, 5)
	seedBalance(t, balances, 2, 1, 3)
	seedBalance(t, balances, 1, 2, 7) // different token, untouched

	updated, err := svc.SetTokenPrice(context.Background(), 1,
		schemas.PriceUpdateRequest{PriceUSD: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	repriced, err := balances.ListByToken(context.Background(), 1)
	require.NoError(t, err)
	for _, b := range repriced {
		require.NotNil(t, b.CurrentPriceUSD)
		assert.True(t, b.CurrentPriceUSD.Equal(decimal.NewFromInt(2000)))
		assert.NotNil(t, b.LastPriceUpdate)
	}

	other, err := balances.ListByToken(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].CurrentPriceUSD, "amounts and prices of other tokens stay put")

	assert.Equal(t, "2000", cache.values["price:token:1"],
		"manual updates overwrite the cached quote")
}

func TestSetTokenPriceWritesSnapshots(t *testing.T) {
	balances := newFakeBalanceRepo()
	history := &fakeHistoryRepo{}
	snapshots := services.NewSnapshotService(balances, history, 7, 90)
	tokens := &fakeTokenRepo{tokens: map[int64]*models.Token{
		1: {ID: 1, Symbol: "ETH"},
	}}
	svc := services.NewPriceService(tokens, balances,
		&fixedPriceSource{price: decimal.NewFromInt(1)}, nil, snapshots)

	seedBalance(t, balances, 1, 1, 5)

	_, err := svc.SetTokenPrice(context.Background(), 1,
		schemas.PriceUpdateRequest{PriceUSD: decimal.NewFromInt(2000), CreateSnapshots: true})
	require.NoError(t, err)

	require.Len(t, history.rows, 1)
	assert.Equal(t, schemas.SnapshotHourly, history.rows[0].SnapshotType,
		"price snapshots age out on the hourly retention window")
	require.NotNil(t, history.rows[0].TriggeredBy)
	assert.Equal(t, "price_update", *history.rows[0].TriggeredBy)
	require.NotNil(t, history.rows[0].CurrentPriceUSD)
	assert.True(t, history.rows[0].CurrentPriceUSD.Equal(decimal.NewFromInt(2000)))
}

func TestRefreshAllSnapshotsAreHourly(t *testing.T) {
	balances := newFakeBalanceRepo()
	history := &fakeHistoryRepo{}
	snapshots := services.NewSnapshotService(balances, history, 7, 90)
	tokens := &fakeTokenRepo{tokens: map[int64]*models.Token{
		1: {ID: 1, Symbol: "ETH"},
	}}
	svc := services.NewPriceService(tokens, balances,
		&fixedPriceSource{price: decimal.NewFromInt(1800)}, nil, snapshots)

	seedBalance(t, balances, 1, 1, 5)

	updated, err := svc.RefreshAll(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.Len(t, history.rows, 1)
	assert.Equal(t, schemas.SnapshotHourly, history.rows[0].SnapshotType)
}

func TestRefreshAllSkipsTokensWithoutQuotes(t *testing.T) {
	balances := newFakeBalanceRepo()
	tokens := &fakeTokenRepo{tokens: map[int64]*models.Token{
		1: {ID: 1, Symbol: "ETH"},
		2: {ID: 2, Symbol: "GHOST"},
	}}
	svc := services.NewPriceService(tokens, balances,
		services.NewStoredPriceSource(balances), nil, nil)

	b := seedBalance(t, balances, 1, 1, 5)
	price := decimal.NewFromInt(1800)
	now := time.Now().UTC()
	require.NoError(t, balances.UpdatePrice(context.Background(), b.ID, price, now))

	updated, err := svc.RefreshAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated, "the token with no observed price is skipped, not fatal")
}

func TestStoredPriceSourcePicksNewestObservation(t *testing.T) {
	balances := newFakeBalanceRepo()
	source := services.NewStoredPriceSource(balances)
	ctx := context.Background()

	older := seedBalance(t, balances, 1, 1, 5)
	newer := seedBalance(t, balances, 2, 1, 3)
	require.NoError(t, balances.UpdatePrice(ctx, older.ID, decimal.NewFromInt(100), time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, balances.UpdatePrice(ctx, newer.ID, decimal.NewFromInt(120), time.Now().UTC()))

	price, err := source.QuoteUSD(ctx, &models.Token{ID: 1, Symbol: "ETH"})
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(120)))

	_, err = source.QuoteUSD(ctx, &models.Token{ID: 9, Symbol: "NONE"})
	assert.Error(t, err)
}
