package services_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/src/models"
	"cryptofolio/src/repositories"
	"cryptofolio/src/schemas"
	"cryptofolio/src/services"
)

// fakeTx satisfies pgx.Tx for the commit/rollback calls the service makes;
// the embedded interface panics on anything else, which would flag an
// unexpected storage access in a test.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

type fakeTransactionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.Transaction
}

func (r *fakeTransactionRepo) Create(_ context.Context, t *models.Transaction, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now().UTC()
	r.rows = append(r.rows, *t)
	return nil
}

func (r *fakeTransactionRepo) GetByUUID(_ context.Context, u uuid.UUID) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].UUID == u && !r.rows[i].Deleted {
			t := r.rows[i]
			return &t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) GetByHashAndChain(_ context.Context, hash string, chainID *int64) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		row := r.rows[i]
		if row.Deleted || row.TransactionHash == nil || *row.TransactionHash != hash {
			continue
		}
		if sameChain(row.ChainID, chainID) {
			t := row
			return &t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func sameChain(a, b *int64) bool {
	av, bv := int64(0), int64(0)
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func (r *fakeTransactionRepo) ListConfirmedByKey(_ context.Context, key models.BalanceKey) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for i := range r.rows {
		row := r.rows[i]
		if row.Deleted || row.Status != schemas.StatusConfirmed {
			continue
		}
		if row.BalanceKey().String() == key.String() {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeTransactionRepo) ListByWallet(_ context.Context, walletID int64) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for i := range r.rows {
		row := r.rows[i]
		if !row.Deleted && row.WalletID != nil && *row.WalletID == walletID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r *fakeTransactionRepo) UpdateStatus(_ context.Context, id int64, status schemas.TransactionStatus, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Status = status
			return nil
		}
	}
	return repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) DistinctKeysForWallet(_ context.Context, walletID int64) ([]models.BalanceKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]models.BalanceKey)
	for i := range r.rows {
		row := r.rows[i]
		if row.Deleted || row.WalletID == nil || *row.WalletID != walletID {
			continue
		}
		key := row.BalanceKey()
		seen[key.String()] = key
	}
	out := make([]models.BalanceKey, 0, len(seen))
	for _, key := range seen {
		out = append(out, key)
	}
	return out, nil
}

type fakeBalanceRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.Balance

	// injectConflicts makes the next N versioned updates fail, to exercise
	// the service's bounded retry.
	injectConflicts int
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{rows: map[string]*models.Balance{}}
}

func (r *fakeBalanceRepo) Get(_ context.Context, key models.BalanceKey) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[key.String()]
	if !ok {
		return nil, repositories.ErrBalanceNotFound
	}
	b := *stored
	return &b, nil
}

func (r *fakeBalanceRepo) Create(_ context.Context, b *models.Balance, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.CreatedAt = time.Now().UTC()
	stored := *b
	r.rows[b.Key().String()] = &stored
	return nil
}

func (r *fakeBalanceRepo) UpdateVersioned(_ context.Context, b *models.Balance, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.injectConflicts > 0 {
		r.injectConflicts--
		return repositories.ErrStorageConflict
	}
	stored, ok := r.rows[b.Key().String()]
	if !ok || stored.Version != b.Version {
		return repositories.ErrStorageConflict
	}
	b.Version++
	b.LastUpdatedAt = time.Now().UTC()
	next := *b
	r.rows[b.Key().String()] = &next
	return nil
}

func (r *fakeBalanceRepo) Replace(_ context.Context, b *models.Balance, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Version++
	b.LastUpdatedAt = time.Now().UTC()
	next := *b
	r.rows[b.Key().String()] = &next
	return nil
}

func (r *fakeBalanceRepo) Delete(_ context.Context, key models.BalanceKey, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, key.String())
	return nil
}

func (r *fakeBalanceRepo) ListNonZero(_ context.Context) ([]models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Balance
	for _, b := range r.rows {
		if b.DecimalAmount.IsPositive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBalanceRepo) ListByWallet(_ context.Context, walletID int64, includeZero bool) ([]models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Balance
	for _, b := range r.rows {
		if b.WalletID == nil || *b.WalletID != walletID {
			continue
		}
		if !includeZero && b.DecimalAmount.IsZero() {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *fakeBalanceRepo) ListByToken(_ context.Context, tokenID int64) ([]models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Balance
	for _, b := range r.rows {
		if b.TokenID == tokenID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBalanceRepo) UpdatePrice(_ context.Context, id int64, price decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.rows {
		if b.ID == id {
			p := price
			ts := at
			b.CurrentPriceUSD = &p
			b.LastPriceUpdate = &ts
			return nil
		}
	}
	return repositories.ErrBalanceNotFound
}

type fakeHistoryRepo struct {
	mu   sync.Mutex
	rows []models.BalanceHistory
}

func (r *fakeHistoryRepo) Append(_ context.Context, h *models.BalanceHistory, _ pgx.Tx) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, *h)
	return nil
}

func (r *fakeHistoryRepo) ListByWallet(_ context.Context, walletID int64, from, to time.Time) ([]models.BalanceHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BalanceHistory
	for i := range r.rows {
		row := r.rows[i]
		if row.WalletID != nil && *row.WalletID == walletID &&
			!row.SnapshotDate.Before(from) && !row.SnapshotDate.After(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) ListByKey(_ context.Context, key models.BalanceKey, from, to time.Time) ([]models.BalanceHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BalanceHistory
	for i := range r.rows {
		row := r.rows[i]
		rowKey := models.BalanceKey{
			WalletID: row.WalletID, CexAccountID: row.CexAccountID,
			TokenID: row.TokenID, ChainID: row.ChainID,
		}
		if rowKey.String() == key.String() &&
			!row.SnapshotDate.Before(from) && !row.SnapshotDate.After(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) PruneBefore(_ context.Context, types []schemas.SnapshotType, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := r.rows[:0]
	var pruned int64
	for i := range r.rows {
		row := r.rows[i]
		match := false
		for _, t := range types {
			if row.SnapshotType == t {
				match = true
				break
			}
		}
		if match && row.SnapshotDate.Before(cutoff) {
			pruned++
			continue
		}
		keep = append(keep, row)
	}
	r.rows = keep
	return pruned, nil
}

type fakeWalletRepo struct {
	wallets  map[uuid.UUID]*models.Wallet
	accounts map[uuid.UUID]*models.CexAccount

	mu     sync.Mutex
	totals map[int64]decimal.Decimal
}

func newFakeWalletRepo(wallets ...*models.Wallet) *fakeWalletRepo {
	r := &fakeWalletRepo{
		wallets:  map[uuid.UUID]*models.Wallet{},
		accounts: map[uuid.UUID]*models.CexAccount{},
		totals:   map[int64]decimal.Decimal{},
	}
	for _, w := range wallets {
		r.wallets[w.UUID] = w
	}
	return r
}

func (r *fakeWalletRepo) GetByUUID(_ context.Context, u uuid.UUID) (*models.Wallet, error) {
	if w, ok := r.wallets[u]; ok {
		return w, nil
	}
	return nil, repositories.ErrWalletNotFound
}

func (r *fakeWalletRepo) GetByID(_ context.Context, id int64) (*models.Wallet, error) {
	for _, w := range r.wallets {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, repositories.ErrWalletNotFound
}

func (r *fakeWalletRepo) UpdateTotalValue(_ context.Context, id int64, total decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals[id] = total
	return nil
}

func (r *fakeWalletRepo) GetCexAccountByUUID(_ context.Context, u uuid.UUID) (*models.CexAccount, error) {
	if a, ok := r.accounts[u]; ok {
		return a, nil
	}
	return nil, repositories.ErrCexAccountNotFound
}

type fakeTokenRepo struct {
	tokens map[int64]*models.Token
}

func (r *fakeTokenRepo) GetByID(_ context.Context, id int64) (*models.Token, error) {
	if t, ok := r.tokens[id]; ok {
		return t, nil
	}
	return nil, repositories.ErrTokenNotFound
}

func (r *fakeTokenRepo) List(_ context.Context) ([]models.Token, error) {
	out := make([]models.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, *t)
	}
	return out, nil
}

type ledgerFixture struct {
	service  *services.LedgerService
	txRepo   *fakeTransactionRepo
	balances *fakeBalanceRepo
	history  *fakeHistoryRepo
	wallets  *fakeWalletRepo

	walletUUID uuid.UUID
	walletID   int64
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	wallet := &models.Wallet{ID: 1, UUID: uuid.New(), Address: "0xabc", Name: "main", Active: true}
	fx := &ledgerFixture{
		txRepo:     &fakeTransactionRepo{},
		balances:   newFakeBalanceRepo(),
		history:    &fakeHistoryRepo{},
		wallets:    newFakeWalletRepo(wallet),
		walletUUID: wallet.UUID,
		walletID:   wallet.ID,
	}
	tokens := &fakeTokenRepo{tokens: map[int64]*models.Token{
		1: {ID: 1, Symbol: "ETH", Name: "Ether", Decimals: 0},
	}}

	dust, err := decimal.NewFromString("0.000001")
	require.NoError(t, err)

	fx.service = services.NewLedgerService(
		fakeDB{}, fx.txRepo, fx.balances, fx.history, fx.wallets, tokens,
		services.NewBalanceCalculator(dust), true,
	)
	return fx
}

func (fx *ledgerFixture) request(txType schemas.TransactionType, amount int64, price string, hash *string) *schemas.CreateTransactionRequest {
	p := decimal.RequireFromString(price)
	return &schemas.CreateTransactionRequest{
		WalletUUID:      &fx.walletUUID,
		TokenID:         1,
		TransactionHash: hash,
		Type:            txType,
		Status:          schemas.StatusConfirmed,
		RawAmount:       decimal.NewFromInt(amount),
		PriceUSD:        &p,
		Timestamp:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func strptr(s string) *string { return &s }

func TestRecordTransactionUpdatesBalanceAndSnapshots(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	tx, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", nil))
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, schemas.StatusConfirmed, tx.Status)

	balance, err := fx.balances.Get(ctx, tx.BalanceKey())
	require.NoError(t, err)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(2)))
	assert.True(t, balance.AvgAcquisitionPriceUSD.Equal(decimal.NewFromInt(100)))
	assert.EqualValues(t, 1, balance.Version)

	require.Len(t, fx.history.rows, 1)
	snapshot := fx.history.rows[0]
	assert.Equal(t, schemas.SnapshotTransaction, snapshot.SnapshotType)
	require.NotNil(t, snapshot.TriggeredBy)
	assert.Equal(t, "tx_"+tx.UUID.String(), *snapshot.TriggeredBy)
}

func TestRecordTransactionDeduplicatesByHashAndChain(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	first, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", strptr("0xdead")))
	require.NoError(t, err)

	second, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", strptr("0xdead")))
	require.ErrorIs(t, err, services.ErrDuplicateTransaction)
	require.NotNil(t, second, "the stored transaction rides along with the duplicate error")
	assert.Equal(t, first.UUID, second.UUID)

	balance, err := fx.balances.Get(ctx, first.BalanceKey())
	require.NoError(t, err)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(2)),
		"a duplicate must not be applied twice")
}

func TestRecordTransactionPendingDoesNotTouchBalance(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	req := fx.request(schemas.Buy, 2, "100", nil)
	req.Status = schemas.StatusPending
	tx, err := fx.service.RecordTransaction(ctx, req)
	require.NoError(t, err)

	_, err = fx.balances.Get(ctx, tx.BalanceKey())
	assert.ErrorIs(t, err, repositories.ErrBalanceNotFound)
	assert.Empty(t, fx.history.rows)
}

func TestRecordTransactionUnknownWallet(t *testing.T) {
	fx := newLedgerFixture(t)

	req := fx.request(schemas.Buy, 1, "100", nil)
	unknown := uuid.New()
	req.WalletUUID = &unknown

	_, err := fx.service.RecordTransaction(context.Background(), req)
	assert.ErrorIs(t, err, services.ErrUnknownAccountOrAsset)
}

func TestRecordTransactionValidation(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	t.Run("unknown type", func(t *testing.T) {
		req := fx.request(schemas.Buy, 1, "100", nil)
		req.Type = schemas.TransactionType("stake")
		_, err := fx.service.RecordTransaction(ctx, req)
		assert.ErrorIs(t, err, services.ErrInvalidTransaction)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		req := fx.request(schemas.Buy, 1, "100", nil)
		req.Timestamp = time.Time{}
		_, err := fx.service.RecordTransaction(ctx, req)
		assert.ErrorIs(t, err, services.ErrInvalidTransaction)
	})

	t.Run("both owners set", func(t *testing.T) {
		req := fx.request(schemas.Buy, 1, "100", nil)
		cex := uuid.New()
		req.CexAccountUUID = &cex
		_, err := fx.service.RecordTransaction(ctx, req)
		assert.ErrorIs(t, err, services.ErrInvalidTransaction)
	})
}

func TestRecordTransactionRetriesVersionConflicts(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	// First transaction seeds the balance; conflicts only arise on the
	// versioned update path of an existing row.
	_, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	require.NoError(t, err)

	fx.balances.injectConflicts = 2
	_, err = fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	require.NoError(t, err, "transient conflicts within the retry limit must succeed")

	fx.balances.injectConflicts = 10
	_, err = fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	assert.ErrorIs(t, err, repositories.ErrStorageConflict)
}

func TestRecordTransactionRejectedDisposalIsFullyDiscarded(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	buy, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	require.NoError(t, err)

	_, err = fx.service.RecordTransaction(ctx, fx.request(schemas.Sell, 5, "150", nil))
	require.ErrorIs(t, err, services.ErrInsufficientBalance)

	rows, err := fx.txRepo.ListConfirmedByKey(ctx, buy.BalanceKey())
	require.NoError(t, err)
	require.Len(t, rows, 1, "the rejected disposal must not leave a confirmed row behind")
	assert.Equal(t, buy.UUID, rows[0].UUID)

	balance, err := fx.service.Recalculate(ctx, buy.BalanceKey())
	require.NoError(t, err, "the key must stay replayable after a rejection")
	require.NotNil(t, balance)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(1)))
}

func TestUpdateTransactionStatusRejectedConfirmStaysPending(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	_, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	require.NoError(t, err)

	req := fx.request(schemas.Sell, 5, "150", nil)
	req.Status = schemas.StatusPending
	sell, err := fx.service.RecordTransaction(ctx, req)
	require.NoError(t, err)

	_, err = fx.service.UpdateTransactionStatus(ctx, sell.UUID,
		&schemas.TransactionPatch{Status: statusPtr(schemas.StatusConfirmed)})
	require.ErrorIs(t, err, services.ErrInsufficientBalance)

	stored, err := fx.service.GetTransaction(ctx, sell.UUID)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPending, stored.Status,
		"a rejected confirmation must not commit the status change")

	balance, err := fx.service.Recalculate(ctx, sell.BalanceKey())
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(1)))
}

func TestBulkIngestRejectsUnreplayableGroup(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	prior, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", nil))
	require.NoError(t, err)
	key := prior.BalanceKey()

	result, err := fx.service.BulkIngest(ctx, []schemas.CreateTransactionRequest{
		*fx.request(schemas.Sell, 10, "150", nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	assert.NotEmpty(t, result.Errors)

	rows, err := fx.txRepo.ListConfirmedByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 1, "the over-disposal is quarantined as failed, not left confirmed")

	balance, err := fx.service.Recalculate(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(2)),
		"the key is rebuilt to its pre-batch state")
}

func TestRecalculateIsIdempotent(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	tx, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 3, "100", nil))
	require.NoError(t, err)
	_, err = fx.service.RecordTransaction(ctx, fx.request(schemas.Sell, 1, "150", nil))
	require.NoError(t, err)

	key := tx.BalanceKey()
	first, err := fx.service.Recalculate(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := fx.service.Recalculate(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.True(t, first.DecimalAmount.Equal(second.DecimalAmount))
	assert.True(t, first.AvgAcquisitionPriceUSD.Equal(second.AvgAcquisitionPriceUSD))
	assert.True(t, first.AvgDisposalPriceUSD.Equal(second.AvgDisposalPriceUSD))
	assert.True(t, first.TotalAcquiredDecimal.Equal(second.TotalAcquiredDecimal))
	assert.True(t, first.TotalDisposedDecimal.Equal(second.TotalDisposedDecimal))
	assert.True(t, second.DecimalAmount.Equal(decimal.NewFromInt(2)))
}

func TestRecalculateBreaksTimestampTiesByID(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	// Same timestamp; the sell only replays cleanly if the earlier-id buy
	// is applied first.
	buy, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 5, "10", nil))
	require.NoError(t, err)
	_, err = fx.service.RecordTransaction(ctx, fx.request(schemas.Sell, 5, "12", nil))
	require.NoError(t, err)

	balance, err := fx.service.Recalculate(ctx, buy.BalanceKey())
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.True(t, balance.DecimalAmount.IsZero())
	assert.True(t, balance.AvgAcquisitionPriceUSD.Equal(decimal.NewFromInt(10)))
}

func TestRecalculateDeletesBalanceWithoutTransactions(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	tx, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", nil))
	require.NoError(t, err)
	key := tx.BalanceKey()

	_, err = fx.service.UpdateTransactionStatus(ctx, tx.UUID,
		&schemas.TransactionPatch{Status: statusPtr(schemas.StatusCancelled)})
	require.NoError(t, err)

	_, err = fx.balances.Get(ctx, key)
	assert.ErrorIs(t, err, repositories.ErrBalanceNotFound,
		"cancelling the only confirmed transaction removes the balance row")

	balance, err := fx.service.Recalculate(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, balance, "nothing to replay means no balance, not a zero balance")
}

func TestRecalculateCancelledContextLeavesStateUntouched(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	tx, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", nil))
	require.NoError(t, err)
	key := tx.BalanceKey()

	before, err := fx.balances.Get(ctx, key)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = fx.service.Recalculate(cancelled, key)
	require.ErrorIs(t, err, context.Canceled)

	after, err := fx.balances.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, before.DecimalAmount.Equal(after.DecimalAmount))
	assert.Equal(t, before.Version, after.Version)
}

func statusPtr(s schemas.TransactionStatus) *schemas.TransactionStatus { return &s }

func TestUpdateTransactionStatusConfirmApplies(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	req := fx.request(schemas.Buy, 4, "25", nil)
	req.Status = schemas.StatusPending
	tx, err := fx.service.RecordTransaction(ctx, req)
	require.NoError(t, err)

	updated, err := fx.service.UpdateTransactionStatus(ctx, tx.UUID,
		&schemas.TransactionPatch{Status: statusPtr(schemas.StatusConfirmed)})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusConfirmed, updated.Status)

	balance, err := fx.balances.Get(ctx, tx.BalanceKey())
	require.NoError(t, err)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(4)))
}

func TestUpdateTransactionStatusCancelRecalculates(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	keep, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 3, "100", nil))
	require.NoError(t, err)
	drop, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "200", nil))
	require.NoError(t, err)

	_, err = fx.service.UpdateTransactionStatus(ctx, drop.UUID,
		&schemas.TransactionPatch{Status: statusPtr(schemas.StatusCancelled)})
	require.NoError(t, err)

	balance, err := fx.balances.Get(ctx, keep.BalanceKey())
	require.NoError(t, err)
	assert.True(t, balance.DecimalAmount.Equal(decimal.NewFromInt(3)))
	assert.True(t, balance.AvgAcquisitionPriceUSD.Equal(decimal.NewFromInt(100)),
		"cost basis is rebuilt from the surviving transactions")
}

func TestUpdateTransactionStatusRejectsInvalidTransition(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	tx, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", nil))
	require.NoError(t, err)

	_, err = fx.service.UpdateTransactionStatus(ctx, tx.UUID,
		&schemas.TransactionPatch{Status: statusPtr(schemas.StatusPending)})
	assert.ErrorIs(t, err, services.ErrInvalidTransaction)
}

func TestBulkIngestCounts(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	_, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 1, "100", strptr("0xseen")))
	require.NoError(t, err)

	bad := fx.request(schemas.Buy, 1, "100", nil)
	bad.Type = schemas.TransactionType("stake")

	result, err := fx.service.BulkIngest(ctx, []schemas.CreateTransactionRequest{
		*fx.request(schemas.Buy, 2, "110", strptr("0xnew")),
		*fx.request(schemas.Buy, 1, "100", strptr("0xseen")),
		*bad,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)

	// One replay per touched key folds the accepted row into the balance.
	balances, err := fx.balances.ListByWallet(ctx, fx.walletID, false)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances[0].DecimalAmount.Equal(decimal.NewFromInt(3)))
}

func TestRecalculateWalletReport(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	_, err := fx.service.RecordTransaction(ctx, fx.request(schemas.Buy, 2, "100", nil))
	require.NoError(t, err)

	report, err := fx.service.RecalculateWallet(ctx, fx.walletUUID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recalculated)
	assert.Equal(t, 0, report.Deleted)
	assert.Empty(t, report.Errors)

	fx.wallets.mu.Lock()
	total := fx.wallets.totals[fx.walletID]
	fx.wallets.mu.Unlock()
	assert.True(t, total.Equal(decimal.NewFromInt(200)),
		"wallet rollup is 2 units at the last seen price")
}
