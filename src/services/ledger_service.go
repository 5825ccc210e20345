package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"cryptofolio/src/models"
	"cryptofolio/src/repositories"
	"cryptofolio/src/schemas"
	"cryptofolio/src/utils"
)

const (
	conflictRetries    = 3
	conflictRetryDelay = 50 * time.Millisecond
	decimalsCacheTTL   = 5 * time.Minute
)

// TxStarter abstracts the connection pool so the service can open storage
// transactions without binding to pgxpool in tests.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerService orchestrates the balance ledger: transaction ingestion,
// balance application, full recalculation and status transitions. All
// mutations of one balance key are serialized through a keyed mutex and
// additionally guarded by the balance row's optimistic version.
type LedgerService struct {
	db          TxStarter
	txRepo      repositories.TransactionRepository
	balanceRepo repositories.BalanceRepository
	historyRepo repositories.BalanceHistoryRepository
	walletRepo  repositories.WalletRepository
	tokenRepo   repositories.TokenRepository

	calculator      *BalanceCalculator
	locks           *utils.KeyedMutex
	decimalsCache   *utils.Cache[map[int64]int32]
	snapshotEnabled bool
}

func NewLedgerService(
	db TxStarter,
	txRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
	historyRepo repositories.BalanceHistoryRepository,
	walletRepo repositories.WalletRepository,
	tokenRepo repositories.TokenRepository,
	calculator *BalanceCalculator,
	snapshotEnabled bool,
) *LedgerService {
	return &LedgerService{
		db:              db,
		txRepo:          txRepo,
		balanceRepo:     balanceRepo,
		historyRepo:     historyRepo,
		walletRepo:      walletRepo,
		tokenRepo:       tokenRepo,
		calculator:      calculator,
		locks:           utils.NewKeyedMutex(),
		decimalsCache:   utils.NewCache[map[int64]int32](),
		snapshotEnabled: snapshotEnabled,
	}
}

// RecordTransaction is the ingestion entry point. It enforces the
// (hash, chain) uniqueness invariant, persists the candidate, and, when the
// transaction arrives already confirmed, applies it to its balance and
// writes a per-transaction snapshot.
//
// A duplicate candidate returns the stored transaction together with
// ErrDuplicateTransaction so callers can decide to treat it as a no-op.
func (s *LedgerService) RecordTransaction(ctx context.Context, req *schemas.CreateTransactionRequest) (*models.Transaction, error) {
	if err := validateCandidate(req); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UUID:            uuid.New(),
		TokenID:         req.TokenID,
		ChainID:         req.ChainID,
		TransactionHash: req.TransactionHash,
		BlockNumber:     req.BlockNumber,
		Type:            req.Type,
		Status:          req.Status,
		CounterpartyAdr: req.CounterpartyAdr,
		RawAmount:       req.RawAmount,
		PriceUSD:        req.PriceUSD,
		FeeValue:        req.FeeValue,
		FeeCurrency:     req.FeeCurrency,
		Timestamp:       req.Timestamp,
	}
	if req.DetectedAt != nil {
		tx.DetectedAt = *req.DetectedAt
	} else {
		tx.DetectedAt = time.Now().UTC()
	}
	if tx.FeeCurrency == "" {
		tx.FeeCurrency = "USD"
	}

	if err := s.resolveOwner(ctx, req, tx); err != nil {
		return nil, err
	}

	token, err := s.tokenRepo.GetByID(ctx, req.TokenID)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return nil, fmt.Errorf("%w: token %d", ErrUnknownAccountOrAsset, req.TokenID)
		}
		return nil, err
	}

	if tx.TransactionHash != nil {
		existing, err := s.txRepo.GetByHashAndChain(ctx, *tx.TransactionHash, tx.ChainID)
		if err == nil {
			return existing, fmt.Errorf("%w: hash %s", ErrDuplicateTransaction, *tx.TransactionHash)
		}
		if !errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, err
		}
	}

	if tx.Status == schemas.StatusConfirmed {
		err = s.applyConfirmed(ctx, tx, token.Decimals, func(ctx context.Context, dbtx pgx.Tx) error {
			return s.txRepo.Create(ctx, tx, dbtx)
		})
	} else {
		err = s.txRepo.Create(ctx, tx, nil)
	}
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func validateCandidate(req *schemas.CreateTransactionRequest) error {
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidTransaction, req.Type)
	}
	if req.Status == "" {
		req.Status = schemas.StatusConfirmed
	}
	if req.RawAmount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative", ErrInvalidTransaction)
	}
	if req.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidTransaction)
	}
	hasWallet := req.WalletUUID != nil
	hasCex := req.CexAccountUUID != nil
	if hasWallet == hasCex {
		return fmt.Errorf("%w: exactly one of wallet_uuid and cex_account_uuid must be set", ErrInvalidTransaction)
	}
	return nil
}

func (s *LedgerService) resolveOwner(ctx context.Context, req *schemas.CreateTransactionRequest, tx *models.Transaction) error {
	if req.WalletUUID != nil {
		wallet, err := s.walletRepo.GetByUUID(ctx, *req.WalletUUID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return fmt.Errorf("%w: wallet %s", ErrUnknownAccountOrAsset, req.WalletUUID)
			}
			return err
		}
		tx.WalletID = &wallet.ID
		return nil
	}

	account, err := s.walletRepo.GetCexAccountByUUID(ctx, *req.CexAccountUUID)
	if err != nil {
		if errors.Is(err, repositories.ErrCexAccountNotFound) {
			return fmt.Errorf("%w: cex account %s", ErrUnknownAccountOrAsset, req.CexAccountUUID)
		}
		return err
	}
	tx.CexAccountID = &account.ID
	return nil
}

// applyConfirmed runs the read-modify-write cycle for one confirmed
// transaction under the key's lock. A version conflict on commit restarts
// the whole cycle, bounded to conflictRetries attempts.
//
// persist runs inside the same storage transaction as the balance write, so
// the transaction row and its balance effect commit or roll back together. A
// rejected application therefore leaves nothing behind.
func (s *LedgerService) applyConfirmed(ctx context.Context, tx *models.Transaction, tokenDecimals int32, persist func(context.Context, pgx.Tx) error) error {
	key := tx.BalanceKey()
	unlock := s.locks.Lock(key.String())
	defer unlock()

	backoff := retry.WithMaxRetries(conflictRetries, retry.NewConstant(conflictRetryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		balance, created, err := s.loadOrSeedBalance(ctx, key, tx)
		if err != nil {
			return err
		}

		updated := *balance
		if err := s.calculator.Apply(&updated, tx, tokenDecimals); err != nil {
			return err
		}

		dbtx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = dbtx.Rollback(ctx) }()

		if persist != nil {
			if err := persist(ctx, dbtx); err != nil {
				return err
			}
		}

		if created {
			if err := s.balanceRepo.Create(ctx, &updated, dbtx); err != nil {
				return err
			}
		} else if err := s.balanceRepo.UpdateVersioned(ctx, &updated, dbtx); err != nil {
			if errors.Is(err, repositories.ErrStorageConflict) {
				return retry.RetryableError(err)
			}
			return err
		}

		if s.snapshotEnabled {
			snapshot := models.SnapshotOf(&updated, schemas.SnapshotTransaction,
				time.Now().UTC(), "tx_"+tx.UUID.String())
			if err := s.historyRepo.Append(ctx, snapshot, dbtx); err != nil {
				return err
			}
		}

		return dbtx.Commit(ctx)
	})
	if err != nil {
		return err
	}

	s.refreshWalletTotal(ctx, tx.WalletID)
	return nil
}

// loadOrSeedBalance reads the balance row for key, or seeds a fresh in-memory
// one when none exists yet. Nothing is written here; the caller persists the
// seed inside its storage transaction.
func (s *LedgerService) loadOrSeedBalance(ctx context.Context, key models.BalanceKey, tx *models.Transaction) (*models.Balance, bool, error) {
	balance, err := s.balanceRepo.Get(ctx, key)
	if err == nil {
		return balance, false, nil
	}
	if !errors.Is(err, repositories.ErrBalanceNotFound) {
		return nil, false, err
	}
	return seedBalanceFor(key, tx), true, nil
}

func seedBalanceFor(key models.BalanceKey, tx *models.Transaction) *models.Balance {
	balance := &models.Balance{
		WalletID:       key.WalletID,
		CexAccountID:   key.CexAccountID,
		TokenID:        key.TokenID,
		ChainID:        key.ChainID,
		LedgerPosition: models.ZeroPosition(),
	}
	balance.CurrentPriceUSD = tx.PriceUSD
	if tx.PriceUSD != nil {
		ts := tx.Timestamp
		balance.LastPriceUpdate = &ts
	}
	return balance
}

func (s *LedgerService) getOrCreateBalance(ctx context.Context, key models.BalanceKey, tx *models.Transaction) (*models.Balance, error) {
	balance, err := s.balanceRepo.Get(ctx, key)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, repositories.ErrBalanceNotFound) {
		return nil, err
	}

	balance = seedBalanceFor(key, tx)
	if err := s.balanceRepo.Create(ctx, balance, nil); err != nil {
		return nil, err
	}
	return balance, nil
}

// Recalculate rebuilds one balance from scratch by replaying its full
// confirmed history in (timestamp, id) order. When no transactions remain
// the balance row is deleted and nil is returned: "never existed" is
// distinct from "exists with zero amount".
//
// The replay happens in memory; the stored row is replaced in a single
// storage transaction at the end, so a cancelled context leaves the previous
// state untouched.
func (s *LedgerService) Recalculate(ctx context.Context, key models.BalanceKey) (*models.Balance, error) {
	unlock := s.locks.Lock(key.String())
	defer unlock()

	transactions, err := s.txRepo.ListConfirmedByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(transactions) == 0 {
		if err := s.balanceRepo.Delete(ctx, key, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	decimals, err := s.tokenDecimals(ctx, key.TokenID)
	if err != nil {
		return nil, err
	}

	balance, err := s.getOrCreateBalance(ctx, key, &transactions[0])
	if err != nil {
		return nil, err
	}

	rebuilt := *balance
	rebuilt.LedgerPosition = models.ZeroPosition()
	rebuilt.PreviousDecimalAmount = nil

	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.calculator.Apply(&rebuilt, &transactions[i], decimals); err != nil {
			return nil, fmt.Errorf("replaying transaction %s: %w", transactions[i].UUID, err)
		}
	}

	dbtx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	if err := s.balanceRepo.Replace(ctx, &rebuilt, dbtx); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return nil, err
	}

	return &rebuilt, nil
}

// RecalculateWallet replays every (token, chain) combination a wallet has
// confirmed transactions for. Failures are collected per triple so a batch
// job can report partial success instead of aborting on the first error.
func (s *LedgerService) RecalculateWallet(ctx context.Context, walletUUID uuid.UUID, createSnapshots bool) (*schemas.RecalculationReport, error) {
	wallet, err := s.walletRepo.GetByUUID(ctx, walletUUID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrUnknownAccountOrAsset, walletUUID)
		}
		return nil, err
	}

	keys, err := s.txRepo.DistinctKeysForWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}

	report := &schemas.RecalculationReport{}
	logger := utils.LoggerFromContext(ctx)

	for _, key := range keys {
		balance, err := s.Recalculate(ctx, key)
		if err != nil {
			logger.WithError(err).WithField("key", key.String()).Error("recalculation failed")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key.String(), err))
			continue
		}
		if balance == nil {
			report.Deleted++
			continue
		}
		report.Recalculated++

		if createSnapshots {
			snapshot := models.SnapshotOf(balance, schemas.SnapshotTransaction,
				time.Now().UTC(), "recalculation")
			if err := s.historyRepo.Append(ctx, snapshot, nil); err != nil {
				logger.WithError(err).Warn("snapshot after recalculation failed")
			}
		}
	}

	s.refreshWalletTotal(ctx, &wallet.ID)
	return report, nil
}

// UpdateTransactionStatus applies the one mutation transactions allow. A
// pending transaction becoming confirmed is applied to its balance; a
// confirmed transaction being cancelled forces a full recalculation of its
// key, since past state cannot be unwound incrementally.
func (s *LedgerService) UpdateTransactionStatus(ctx context.Context, txUUID uuid.UUID, patch *schemas.TransactionPatch) (*models.Transaction, error) {
	if patch == nil || patch.Status == nil {
		return nil, fmt.Errorf("%w: status is required", ErrInvalidTransaction)
	}
	target := *patch.Status

	tx, err := s.txRepo.GetByUUID(ctx, txUUID)
	if err != nil {
		return nil, err
	}

	if !tx.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: cannot transition %s from %s to %s",
			ErrInvalidTransaction, tx.UUID, tx.Status, target)
	}

	wasConfirmed := tx.Status == schemas.StatusConfirmed

	if target == schemas.StatusConfirmed {
		decimals, err := s.tokenDecimals(ctx, tx.TokenID)
		if err != nil {
			return nil, err
		}
		// The status write rides in the apply cycle's storage transaction,
		// so a rejected application leaves the row pending.
		tx.Status = target
		err = s.applyConfirmed(ctx, tx, decimals, func(ctx context.Context, dbtx pgx.Tx) error {
			return s.txRepo.UpdateStatus(ctx, tx.ID, target, dbtx)
		})
		if err != nil {
			return nil, err
		}
		return tx, nil
	}

	if err := s.txRepo.UpdateStatus(ctx, tx.ID, target, nil); err != nil {
		return nil, err
	}
	tx.Status = target

	if wasConfirmed {
		if _, err := s.Recalculate(ctx, tx.BalanceKey()); err != nil {
			return nil, err
		}
		s.refreshWalletTotal(ctx, tx.WalletID)
	}

	return tx, nil
}

// BulkIngest records a batch of candidates, then rebuilds each touched
// balance with one replay per key instead of N incremental applies. A group
// whose rows make its key's history unreplayable is rejected as a unit: the
// rows are marked failed and the key is rebuilt from its prior state.
func (s *LedgerService) BulkIngest(ctx context.Context, candidates []schemas.CreateTransactionRequest) (*schemas.BulkIngestResult, error) {
	result := &schemas.BulkIngestResult{}
	touched := make(map[string]models.BalanceKey)
	createdByKey := make(map[string][]*models.Transaction)

	for i := range candidates {
		req := candidates[i]
		if err := validateCandidate(&req); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		tx := &models.Transaction{
			UUID:            uuid.New(),
			TokenID:         req.TokenID,
			ChainID:         req.ChainID,
			TransactionHash: req.TransactionHash,
			BlockNumber:     req.BlockNumber,
			Type:            req.Type,
			Status:          req.Status,
			CounterpartyAdr: req.CounterpartyAdr,
			RawAmount:       req.RawAmount,
			PriceUSD:        req.PriceUSD,
			FeeValue:        req.FeeValue,
			FeeCurrency:     req.FeeCurrency,
			Timestamp:       req.Timestamp,
			DetectedAt:      time.Now().UTC(),
		}
		if req.DetectedAt != nil {
			tx.DetectedAt = *req.DetectedAt
		}
		if tx.FeeCurrency == "" {
			tx.FeeCurrency = "USD"
		}

		if err := s.resolveOwner(ctx, &req, tx); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		if tx.TransactionHash != nil {
			_, err := s.txRepo.GetByHashAndChain(ctx, *tx.TransactionHash, tx.ChainID)
			if err == nil {
				result.Duplicates++
				continue
			}
			if !errors.Is(err, repositories.ErrTransactionNotFound) {
				return nil, err
			}
		}

		if err := s.txRepo.Create(ctx, tx, nil); err != nil {
			return nil, err
		}
		result.Accepted++

		if tx.Status == schemas.StatusConfirmed {
			key := tx.BalanceKey()
			touched[key.String()] = key
			createdByKey[key.String()] = append(createdByKey[key.String()], tx)
		}
	}

	for keyStr, key := range touched {
		_, err := s.Recalculate(ctx, key)
		if err == nil {
			continue
		}
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key.String(), err))

		if !errors.Is(err, ErrInsufficientBalance) && !errors.Is(err, ErrUnsupportedTransactionKind) {
			continue
		}

		for _, tx := range createdByKey[keyStr] {
			if uerr := s.txRepo.UpdateStatus(ctx, tx.ID, schemas.StatusFailed, nil); uerr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tx.UUID, uerr))
				continue
			}
			result.Accepted--
			result.Rejected++
		}
		if _, rerr := s.Recalculate(ctx, key); rerr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key.String(), rerr))
		}
	}

	return result, nil
}

// GetTransaction looks a stored transaction up by its public UUID.
func (s *LedgerService) GetTransaction(ctx context.Context, txUUID uuid.UUID) (*models.Transaction, error) {
	return s.txRepo.GetByUUID(ctx, txUUID)
}

// WalletTransactions lists a wallet's transactions, newest first.
func (s *LedgerService) WalletTransactions(ctx context.Context, walletUUID uuid.UUID) ([]models.Transaction, error) {
	wallet, err := s.walletRepo.GetByUUID(ctx, walletUUID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrUnknownAccountOrAsset, walletUUID)
		}
		return nil, err
	}
	return s.txRepo.ListByWallet(ctx, wallet.ID)
}

// WalletHistory lists a wallet's balance snapshots inside the window.
func (s *LedgerService) WalletHistory(ctx context.Context, walletUUID uuid.UUID, from, to time.Time) ([]models.BalanceHistory, error) {
	wallet, err := s.walletRepo.GetByUUID(ctx, walletUUID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrUnknownAccountOrAsset, walletUUID)
		}
		return nil, err
	}
	return s.historyRepo.ListByWallet(ctx, wallet.ID, from, to)
}

// DeriveTotals exposes the calculator's read-time P&L derivation.
func (s *LedgerService) DeriveTotals(balance *models.Balance) *schemas.BalanceCalculatedTotals {
	return s.calculator.Totals(balance)
}

// WalletBalances lists a wallet's balances, zero rows excluded unless asked
// for, each with derived totals attached.
func (s *LedgerService) WalletBalances(ctx context.Context, walletUUID uuid.UUID, includeZero bool) ([]models.Balance, error) {
	wallet, err := s.walletRepo.GetByUUID(ctx, walletUUID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, fmt.Errorf("%w: wallet %s", ErrUnknownAccountOrAsset, walletUUID)
		}
		return nil, err
	}
	return s.balanceRepo.ListByWallet(ctx, wallet.ID, includeZero)
}

// PortfolioTotals aggregates derived totals across a wallet's non-zero
// balances.
func (s *LedgerService) PortfolioTotals(ctx context.Context, walletUUID uuid.UUID) (*schemas.PortfolioTotals, error) {
	balances, err := s.WalletBalances(ctx, walletUUID, false)
	if err != nil {
		return nil, err
	}

	totals := &schemas.PortfolioTotals{}
	for i := range balances {
		t := s.calculator.Totals(&balances[i])
		totals.TotalValueUSD = totals.TotalValueUSD.Add(t.ValueUSD)
		totals.RealizedPnlUSD = totals.RealizedPnlUSD.Add(t.RealizedPnlUSD)
		totals.UnrealizedPnlUSD = totals.UnrealizedPnlUSD.Add(t.UnrealizedPnlUSD)
		totals.TokenCount++
	}
	return totals, nil
}

func (s *LedgerService) tokenDecimals(ctx context.Context, tokenID int64) (int32, error) {
	if cached, ok := s.decimalsCache.Get(); ok {
		if decimals, ok := cached[tokenID]; ok {
			return decimals, nil
		}
	}

	token, err := s.tokenRepo.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenNotFound) {
			return 0, fmt.Errorf("%w: token %d", ErrUnknownAccountOrAsset, tokenID)
		}
		return 0, err
	}

	cached, _ := s.decimalsCache.Get()
	next := make(map[int64]int32, len(cached)+1)
	for id, d := range cached {
		next[id] = d
	}
	next[token.ID] = token.Decimals
	s.decimalsCache.Set(next, decimalsCacheTTL)

	return token.Decimals, nil
}

// refreshWalletTotal recomputes the wallet-level USD rollup. Failures are
// logged, not propagated: the ledger mutation already committed.
func (s *LedgerService) refreshWalletTotal(ctx context.Context, walletID *int64) {
	if walletID == nil {
		return
	}

	logger := utils.LoggerFromContext(ctx)

	balances, err := s.balanceRepo.ListByWallet(ctx, *walletID, false)
	if err != nil {
		logger.WithError(err).Warn("wallet total refresh: listing balances failed")
		return
	}

	total := decimal.Zero
	for i := range balances {
		total = total.Add(s.calculator.Totals(&balances[i]).ValueUSD)
	}

	if err := s.walletRepo.UpdateTotalValue(ctx, *walletID, total); err != nil {
		logger.WithError(err).Warn("wallet total refresh: update failed")
	}
}
