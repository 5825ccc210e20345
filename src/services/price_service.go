package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cryptofolio/src/models"
	"cryptofolio/src/repositories"
	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

const priceCacheTTL = 5 * time.Minute

// PriceSource quotes the USD price of a token. Implementations wrap external
// market data feeds; tests substitute a fixed quote.
type PriceSource interface {
	QuoteUSD(ctx context.Context, token *models.Token) (decimal.Decimal, error)
}

// PriceCache is the subset of the Redis handler the price service needs.
type PriceCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, result interface{}) error
}

// PriceService keeps balance rows priced: it resolves a token's quote through
// the cache, applies manual price updates, and sweeps every token on the
// worker's schedule. Price updates touch only current_price_usd and
// last_price_update; they never move amounts or cost-basis figures.
type PriceService struct {
	tokenRepo   repositories.TokenRepository
	balanceRepo repositories.BalanceRepository
	source      PriceSource
	cache       PriceCache
	snapshots   *SnapshotService
}

func NewPriceService(
	tokenRepo repositories.TokenRepository,
	balanceRepo repositories.BalanceRepository,
	source PriceSource,
	cache PriceCache,
	snapshots *SnapshotService,
) *PriceService {
	return &PriceService{
		tokenRepo:   tokenRepo,
		balanceRepo: balanceRepo,
		source:      source,
		cache:       cache,
		snapshots:   snapshots,
	}
}

func priceCacheKey(tokenID int64) string {
	return fmt.Sprintf("price:token:%d", tokenID)
}

// StoredPriceSource quotes from the most recently observed price across the
// token's own balances. It keeps the sweep self-contained when no external
// market feed is configured: the newest transaction-supplied price propagates
// to every balance holding the token.
type StoredPriceSource struct {
	balanceRepo repositories.BalanceRepository
}

func NewStoredPriceSource(balanceRepo repositories.BalanceRepository) *StoredPriceSource {
	return &StoredPriceSource{balanceRepo: balanceRepo}
}

func (s *StoredPriceSource) QuoteUSD(ctx context.Context, token *models.Token) (decimal.Decimal, error) {
	balances, err := s.balanceRepo.ListByToken(ctx, token.ID)
	if err != nil {
		return decimal.Zero, err
	}

	var latest *time.Time
	price := decimal.Zero
	for i := range balances {
		if balances[i].CurrentPriceUSD == nil || balances[i].LastPriceUpdate == nil {
			continue
		}
		if latest == nil || balances[i].LastPriceUpdate.After(*latest) {
			latest = balances[i].LastPriceUpdate
			price = *balances[i].CurrentPriceUSD
		}
	}

	if latest == nil {
		return decimal.Zero, fmt.Errorf("no stored price for token %s", token.Symbol)
	}
	return price, nil
}

// TokenPriceUSD returns the token quote, serving from Redis while the cached
// value is fresh and falling through to the source otherwise.
func (s *PriceService) TokenPriceUSD(ctx context.Context, token *models.Token) (decimal.Decimal, error) {
	key := priceCacheKey(token.ID)

	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if price, err := decimal.NewFromString(cached); err == nil {
				return price, nil
			}
		}
	}

	price, err := s.source.QuoteUSD(ctx, token)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote for token %d: %w", token.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, price.String(), priceCacheTTL); err != nil {
			utils.LoggerFromContext(ctx).WithError(err).Warn("price cache write failed")
		}
	}

	return price, nil
}

// SetTokenPrice applies a manual price to every balance holding the token and
// optionally snapshots the repriced rows. The cache entry is overwritten so
// reads see the manual price immediately.
func (s *PriceService) SetTokenPrice(ctx context.Context, tokenID int64, req schemas.PriceUpdateRequest) (int, error) {
	token, err := s.tokenRepo.GetByID(ctx, tokenID)
	if err != nil {
		return 0, err
	}

	updated, err := s.repriceToken(ctx, token, req.PriceUSD, req.CreateSnapshots)
	if err != nil {
		return updated, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, priceCacheKey(token.ID), req.PriceUSD.String(), priceCacheTTL); err != nil {
			utils.LoggerFromContext(ctx).WithError(err).Warn("price cache write failed")
		}
	}

	return updated, nil
}

// RefreshAll re-quotes every known token and writes the fresh price onto its
// balances. Failures are per-token: one dead feed does not stop the sweep.
func (s *PriceService) RefreshAll(ctx context.Context, createSnapshots bool) (int, error) {
	tokens, err := s.tokenRepo.List(ctx)
	if err != nil {
		return 0, err
	}

	logger := utils.LoggerFromContext(ctx)
	updated := 0

	for i := range tokens {
		price, err := s.TokenPriceUSD(ctx, &tokens[i])
		if err != nil {
			logger.WithError(err).WithField("token_id", tokens[i].ID).Warn("price refresh skipped")
			continue
		}

		n, err := s.repriceToken(ctx, &tokens[i], price, createSnapshots)
		updated += n
		if err != nil {
			logger.WithError(err).WithField("token_id", tokens[i].ID).Error("price refresh failed")
		}
	}

	return updated, nil
}

func (s *PriceService) repriceToken(ctx context.Context, token *models.Token, price decimal.Decimal, createSnapshots bool) (int, error) {
	balances, err := s.balanceRepo.ListByToken(ctx, token.ID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	updated := 0

	for i := range balances {
		if err := s.balanceRepo.UpdatePrice(ctx, balances[i].ID, price, now); err != nil {
			return updated, err
		}
		updated++

		if createSnapshots && s.snapshots != nil {
			balances[i].CurrentPriceUSD = &price
			balances[i].LastPriceUpdate = &now
			// Price snapshots are hourly-typed so they age out on the short
			// retention window instead of piling up for 90 days.
			if _, err := s.snapshots.Snapshot(ctx, &balances[i], schemas.SnapshotHourly, "price_update"); err != nil {
				utils.LoggerFromContext(ctx).WithError(err).WithField("balance_id", balances[i].ID).Error("price snapshot failed")
			}
		}
	}

	return updated, nil
}
