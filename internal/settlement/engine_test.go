package settlement

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/alfares/partnersplit/internal/calculator"
	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/storage"
	"github.com/alfares/partnersplit/internal/storage/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func newTestEngine(t *testing.T) (*Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, Options{CompanyBeneficiary: "alfares"}), store
}

func configureAsset(t *testing.T, eng *Engine, assetID string, capital float64) {
	t.Helper()
	err := eng.ConfigureTerms(context.Background(), &models.PartnershipTerms{
		AssetID:        assetID,
		CompanyPrePct:  dec(35),
		CapitalPrePct:  dec(30),
		CompanyPostPct: dec(50),
		Partners: []models.PartnerShare{
			{PartnerID: "partner-1", PrePct: dec(35), PostPct: dec(50), CapitalContribution: dec(capital)},
		},
	})
	require.NoError(t, err)
}

func TestApplyRentRecovery(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 500)

	alloc, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(1000), ContractRef: "C-12"})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseRecovery, alloc.Phase)
	assert.True(t, alloc.CompanyAmount.Equal(dec(350)))
	require.Len(t, alloc.PartnerAmounts, 1)
	assert.True(t, alloc.PartnerAmounts[0].Amount.Equal(dec(350)))
	assert.True(t, alloc.CapitalDeduction.Equal(dec(300)))
	assert.True(t, alloc.NewCapitalRemaining.Equal(dec(200)))

	account, err := store.GetCapitalAccount(ctx, "bb-1")
	require.NoError(t, err)
	assert.True(t, account.CapitalRemaining.Equal(dec(200)))

	// Company, partner and capital pool entries, annotated with the contract.
	entries, err := store.ListTransactions(ctx, "bb-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.True(t, entry.Amount.IsPositive())
		assert.Equal(t, "C-12", entry.ContractRef)
	}

	history, err := store.ListRentalHistory(ctx, "bb-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "C-12", history[0].ContractRef)

	require.NoError(t, eng.Reconcile(ctx, "bb-1"))
}

func TestApplyRentClampsAtZero(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 100)

	alloc, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(1000)})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseRecovery, alloc.Phase)
	assert.True(t, alloc.CapitalDeduction.Equal(dec(300)), "full deduction is reported")
	assert.True(t, alloc.NewCapitalRemaining.IsZero(), "balance clamps at zero")

	account, err := store.GetCapitalAccount(ctx, "bb-1")
	require.NoError(t, err)
	assert.True(t, account.CapitalRemaining.IsZero())
}

func TestPhaseTransition(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 300)

	// This settlement exactly exhausts the capital but still runs in
	// recovery; the switch applies to the next call.
	alloc, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(1000)})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRecovery, alloc.Phase)
	assert.True(t, alloc.NewCapitalRemaining.IsZero())

	// Every subsequent settlement uses profit-phase percentages.
	for i := 0; i < 3; i++ {
		alloc, err = eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(2000)})
		require.NoError(t, err)
		assert.Equal(t, models.PhaseProfitSharing, alloc.Phase)
		assert.True(t, alloc.CompanyAmount.Equal(dec(1000)))
		assert.True(t, alloc.PartnerAmounts[0].Amount.Equal(dec(1000)))
		assert.True(t, alloc.CapitalDeduction.IsZero())
	}
}

func TestApplyRentSameEventTwice(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 1000)

	// The engine does not deduplicate by content: the same event applies
	// twice, producing two independent ledger sets and two deductions.
	event := &models.RentEvent{AssetID: "bb-1", Amount: dec(100), ContractRef: "C-1"}
	_, err := eng.ApplyRent(ctx, event)
	require.NoError(t, err)
	_, err = eng.ApplyRent(ctx, event)
	require.NoError(t, err)

	account, err := store.GetCapitalAccount(ctx, "bb-1")
	require.NoError(t, err)
	assert.True(t, account.CapitalRemaining.Equal(dec(940)), "two deductions of 30 applied")

	entries, err := store.ListTransactions(ctx, "bb-1")
	require.NoError(t, err)
	assert.Len(t, entries, 6)
}

func TestApplyRentErrors(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	t.Run("unknown asset", func(t *testing.T) {
		_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "ghost", Amount: dec(100)})
		assert.ErrorIs(t, err, ErrAssetNotFound)

		// Asset resolution comes before amount validation, so the amount
		// does not mask a missing asset.
		_, err = eng.ApplyRent(ctx, &models.RentEvent{AssetID: "ghost", Amount: dec(-10)})
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})

	t.Run("removed asset is no longer a partnership", func(t *testing.T) {
		configureAsset(t, eng, "bb-gone", 1000)
		require.NoError(t, store.RemoveFromPartnership(ctx, "bb-gone"))

		_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-gone", Amount: dec(100)})
		assert.ErrorIs(t, err, ErrNotPartnershipAsset)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		configureAsset(t, eng, "bb-1", 1000)
		_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(0)})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(-50)})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("invalid stored terms propagate unchanged", func(t *testing.T) {
		// Bypass the validation gate to simulate corrupted configuration.
		err := store.SaveTerms(ctx, &models.PartnershipTerms{
			AssetID:        "bb-bad",
			CompanyPrePct:  dec(35),
			CapitalPrePct:  dec(30),
			CompanyPostPct: dec(50),
			Partners: []models.PartnerShare{
				{PartnerID: "partner-1", PrePct: dec(30), PostPct: dec(50), CapitalContribution: dec(100)},
			},
		})
		require.NoError(t, err)

		_, err = eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-bad", Amount: dec(100)})
		var termsErr *calculator.TermsError
		require.ErrorAs(t, err, &termsErr)
		assert.Equal(t, "recovery", termsErr.Side)
	})
}

func TestConfigureTermsRejectsUnbalanced(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	err := eng.ConfigureTerms(ctx, &models.PartnershipTerms{
		AssetID:        "bb-1",
		CompanyPrePct:  dec(35),
		CapitalPrePct:  dec(30),
		CompanyPostPct: dec(50),
		Partners: []models.PartnerShare{
			{PartnerID: "partner-1", PrePct: dec(30), PostPct: dec(50)}, // pre sum 95
		},
	})
	var termsErr *calculator.TermsError
	require.ErrorAs(t, err, &termsErr)

	// The gatekeeper held: nothing was written.
	_, err = store.GetTerms(ctx, "bb-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithdrawAndSummary(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 1000)

	_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(1000)})
	require.NoError(t, err)

	_, err = eng.Withdraw(ctx, "partner-1", dec(200), "first payout")
	require.NoError(t, err)

	_, err = eng.Withdraw(ctx, "partner-1", dec(0), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	summary, err := eng.Summary(ctx, "partner-1")
	require.NoError(t, err)
	assert.True(t, summary.TotalDue.Equal(dec(350)))
	assert.True(t, summary.TotalPaid.Equal(dec(200)))
	assert.True(t, summary.Outstanding().Equal(dec(150)))
}

// TestConcurrentSettlements drives parallel settlements against one asset
// and checks that no deduction is lost and the balance stays monotone.
func TestConcurrentSettlements(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	configureAsset(t, eng, "bb-1", 10000)

	const workers = 20
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(100)})
			return err
		})
	}
	require.NoError(t, g.Wait())

	// 20 settlements x 30 deduction each.
	account, err := store.GetCapitalAccount(ctx, "bb-1")
	require.NoError(t, err)
	assert.True(t, account.CapitalRemaining.Equal(dec(9400)),
		"remaining = %v, want 9400", account.CapitalRemaining)
	assert.EqualValues(t, workers, account.Version)

	require.NoError(t, eng.Reconcile(ctx, "bb-1"))
}

// TestConcurrentAssetsIndependent checks that settlements on different
// assets do not serialize against each other's state.
func TestConcurrentAssetsIndependent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	assets := []string{"bb-a", "bb-b", "bb-c"}
	for _, id := range assets {
		configureAsset(t, eng, id, 1000)
	}

	var g errgroup.Group
	for _, id := range assets {
		for i := 0; i < 5; i++ {
			g.Go(func() error {
				_, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: id, Amount: dec(100)})
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, id := range assets {
		account, err := store.GetCapitalAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, account.CapitalRemaining.Equal(dec(850)),
			"asset %s remaining = %v, want 850", id, account.CapitalRemaining)
	}
}

// conflictStore wraps a Store and fails the first n settlement commits with
// a version conflict, simulating an external writer racing the engine.
type conflictStore struct {
	storage.Store

	mu        sync.Mutex
	conflicts int
	commits   int
}

func (c *conflictStore) CommitSettlement(ctx context.Context, assetID string, txs []models.Transaction, record *models.RentalRecord, newRemaining decimal.Decimal, expectedVersion int64) error {
	c.mu.Lock()
	c.commits++
	fail := c.conflicts > 0
	if fail {
		c.conflicts--
	}
	c.mu.Unlock()
	if fail {
		return storage.ErrVersionConflict
	}
	return c.Store.CommitSettlement(ctx, assetID, txs, record, newRemaining, expectedVersion)
}

func TestApplyRentRetriesOnConflict(t *testing.T) {
	base, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer base.Close()

	wrapped := &conflictStore{Store: base, conflicts: 2}
	eng := New(wrapped, Options{})
	ctx := context.Background()

	require.NoError(t, eng.ConfigureTerms(ctx, &models.PartnershipTerms{
		AssetID:        "bb-1",
		CompanyPrePct:  dec(35),
		CapitalPrePct:  dec(30),
		CompanyPostPct: dec(50),
		Partners: []models.PartnerShare{
			{PartnerID: "partner-1", PrePct: dec(35), PostPct: dec(50), CapitalContribution: dec(1000)},
		},
	}))

	// Two conflicts burn two attempts; the third succeeds.
	alloc, err := eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(100)})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRecovery, alloc.Phase)
	assert.Equal(t, 3, wrapped.commits)
}

func TestApplyRentConflictBudgetExhausted(t *testing.T) {
	base, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer base.Close()

	wrapped := &conflictStore{Store: base, conflicts: maxAttempts}
	eng := New(wrapped, Options{})
	ctx := context.Background()

	require.NoError(t, eng.ConfigureTerms(ctx, &models.PartnershipTerms{
		AssetID:        "bb-1",
		CompanyPrePct:  dec(35),
		CapitalPrePct:  dec(30),
		CompanyPostPct: dec(50),
		Partners: []models.PartnerShare{
			{PartnerID: "partner-1", PrePct: dec(35), PostPct: dec(50), CapitalContribution: dec(1000)},
		},
	}))

	_, err = eng.ApplyRent(ctx, &models.RentEvent{AssetID: "bb-1", Amount: dec(100)})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	// The failed settlement left no partial state behind.
	entries, err := base.ListTransactions(ctx, "bb-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
