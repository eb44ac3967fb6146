// Package settlement orchestrates rent settlements on shared assets: it
// loads current state, runs the pure split calculation, and commits the
// resulting ledger entries and capital balance as one atomic unit, serialized
// per asset.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfares/partnersplit/internal/calculator"
	"github.com/alfares/partnersplit/internal/models"
	"github.com/alfares/partnersplit/internal/storage"
)

const (
	// maxAttempts bounds the retry loop on version conflicts.
	maxAttempts = 3

	// retryBackoff is the linear delay between attempts.
	retryBackoff = 25 * time.Millisecond
)

// DefaultCompanyBeneficiary is the ledger name used for the operating
// company when none is configured.
const DefaultCompanyBeneficiary = "company"

// Options configures an Engine.
type Options struct {
	// CompanyBeneficiary is the ledger beneficiary name for the operating
	// company's share. Defaults to DefaultCompanyBeneficiary.
	CompanyBeneficiary string
}

// Engine is the settlement orchestrator.
//
// Two ApplyRent calls against the same asset are serialized by a per-asset
// mutex, and the commit itself is additionally guarded by the capital
// account's version token, so a read-modify-write race can never drop a
// deduction. Calls against different assets proceed fully in parallel.
type Engine struct {
	store   storage.Store
	company string

	// locks holds one *sync.Mutex per asset id.
	locks sync.Map
}

// New creates an Engine on top of the given store.
func New(store storage.Store, opts Options) *Engine {
	company := opts.CompanyBeneficiary
	if company == "" {
		company = DefaultCompanyBeneficiary
	}
	return &Engine{store: store, company: company}
}

// CompanyBeneficiary returns the ledger name the company's share is
// credited to.
func (e *Engine) CompanyBeneficiary() string {
	return e.company
}

func (e *Engine) lockFor(assetID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(assetID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ApplyRent settles one rent payment on a shared asset and returns the
// allocation that was committed.
//
// The whole load-compute-commit cycle re-runs on a version conflict, up to
// maxAttempts; recomputation is safe because the calculator is pure and
// re-reads current state. Persistence failures are not retried here: the
// settlement was not applied and the caller decides whether to resubmit.
func (e *Engine) ApplyRent(ctx context.Context, event *models.RentEvent) (*models.Allocation, error) {
	start := time.Now()
	alloc, err := e.applyRent(ctx, event)
	settlementDuration.Observe(time.Since(start).Seconds())

	phase := "none"
	if alloc != nil {
		phase = string(alloc.Phase)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	settlementsTotal.WithLabelValues(phase, outcome).Inc()
	return alloc, err
}

func (e *Engine) applyRent(ctx context.Context, event *models.RentEvent) (*models.Allocation, error) {
	mu := e.lockFor(event.AssetID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			settlementRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}

		alloc, err := e.settleOnce(ctx, event)
		if err == nil {
			slog.Info("Rent settled",
				"asset_id", event.AssetID,
				"amount", event.Amount,
				"phase", alloc.Phase,
				"capital_remaining", alloc.NewCapitalRemaining,
				"attempt", attempt,
			)
			return alloc, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return nil, err
		}
		slog.Warn("Settlement version conflict, retrying",
			"asset_id", event.AssetID, "attempt", attempt)
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrConcurrentModification, lastErr)
}

// settleOnce runs one load-compute-commit cycle.
func (e *Engine) settleOnce(ctx context.Context, event *models.RentEvent) (*models.Allocation, error) {
	account, err := e.store.GetCapitalAccount(ctx, event.AssetID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	terms, err := e.store.GetTerms(ctx, event.AssetID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotPartnershipAsset
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	// The asset is resolved before the amount is judged, so an unknown
	// asset reports ErrAssetNotFound regardless of the submitted amount.
	if !event.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	alloc, err := calculator.ComputeSplit(terms, account, event.Amount)
	if err != nil {
		// InvalidTerms and friends surface unchanged.
		return nil, err
	}

	txs := buildTransactions(e.company, event, alloc)
	record := &models.RentalRecord{
		AssetID:     event.AssetID,
		ContractRef: event.ContractRef,
		Amount:      event.Amount,
		Phase:       alloc.Phase,
	}

	err = e.store.CommitSettlement(ctx, event.AssetID, txs, record, alloc.NewCapitalRemaining, account.Version)
	if errors.Is(err, storage.ErrVersionConflict) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return alloc, nil
}

// buildTransactions maps an allocation to its ledger entries. Zero-amount
// shares produce no entry; every entry amount is positive.
func buildTransactions(company string, event *models.RentEvent, alloc *models.Allocation) []models.Transaction {
	txs := make([]models.Transaction, 0, len(alloc.PartnerAmounts)+2)
	if alloc.CompanyAmount.IsPositive() {
		txs = append(txs, models.Transaction{
			AssetID:     event.AssetID,
			Beneficiary: company,
			Amount:      alloc.CompanyAmount,
			Kind:        models.KindRentalIncome,
			ContractRef: event.ContractRef,
		})
	}
	for _, pa := range alloc.PartnerAmounts {
		if !pa.Amount.IsPositive() {
			continue
		}
		txs = append(txs, models.Transaction{
			AssetID:     event.AssetID,
			Beneficiary: pa.PartnerID,
			Amount:      pa.Amount,
			Kind:        models.KindRentalIncome,
			ContractRef: event.ContractRef,
		})
	}
	if alloc.CapitalDeduction.IsPositive() {
		txs = append(txs, models.Transaction{
			AssetID:     event.AssetID,
			Beneficiary: models.CapitalPoolBeneficiary,
			Amount:      alloc.CapitalDeduction,
			Kind:        models.KindCapitalDeduction,
			ContractRef: event.ContractRef,
		})
	}
	return txs
}

// ConfigureTerms validates and persists partnership terms. This is the
// single write path for terms; out-of-balance configurations never reach
// the store.
func (e *Engine) ConfigureTerms(ctx context.Context, terms *models.PartnershipTerms) error {
	if err := calculator.ValidateTerms(terms); err != nil {
		return err
	}
	if err := e.store.SaveTerms(ctx, terms); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	slog.Info("Partnership terms saved", "asset_id", terms.AssetID, "partners", len(terms.Partners))
	return nil
}

// Withdraw records a payout to a beneficiary against their accumulated
// rental income.
func (e *Engine) Withdraw(ctx context.Context, beneficiary string, amount decimal.Decimal, note string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	entry := &models.Transaction{
		Beneficiary: beneficiary,
		Amount:      amount,
		Kind:        models.KindWithdrawal,
		ContractRef: note,
	}
	if err := e.store.RecordWithdrawal(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	withdrawalsTotal.Inc()
	slog.Info("Withdrawal recorded", "beneficiary", beneficiary, "amount", amount)
	return entry, nil
}

// Summary reports a beneficiary's aggregated ledger position.
func (e *Engine) Summary(ctx context.Context, beneficiary string) (*models.BeneficiarySummary, error) {
	summary, err := e.store.SummarizeBeneficiary(ctx, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return summary, nil
}

// Reconcile verifies the conservation invariant for one asset: the sum of
// rental-income and capital-deduction entries must equal the sum of all rent
// ever applied, within the calculator's rounding tolerance per applied rent.
func (e *Engine) Reconcile(ctx context.Context, assetID string) error {
	entries, err := e.store.ListTransactions(ctx, assetID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	history, err := e.store.ListRentalHistory(ctx, assetID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	distributed := decimal.Zero
	for _, entry := range entries {
		switch entry.Kind {
		case models.KindRentalIncome, models.KindCapitalDeduction:
			distributed = distributed.Add(entry.Amount)
		}
	}
	applied := decimal.Zero
	for _, record := range history {
		applied = applied.Add(record.Amount)
	}

	// Each settlement may carry up to the rounding tolerance of drift.
	limit := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(max(len(history), 1))))
	if diff := distributed.Sub(applied).Abs(); diff.GreaterThan(limit) {
		return fmt.Errorf("ledger does not reconcile for asset %s: distributed %s vs applied %s",
			assetID, distributed.String(), applied.String())
	}
	return nil
}
