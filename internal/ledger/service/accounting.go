package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// AccountingStore is the slice of storage ports the accounting service
// needs.
type AccountingStore interface {
	domain.AccountRepository
	domain.JournalRepository
	domain.SnapshotRepository
	domain.ConfigRepository
	domain.Serializer
}

// AccountingService is the single authority for mutating a tenant's chart
// of accounts and journal.
type AccountingService struct {
	store AccountingStore
}

// NewAccountingService creates an AccountingService on top of a store.
func NewAccountingService(store AccountingStore) *AccountingService {
	return &AccountingService{store: store}
}

// AddAccountParams holds input for creating a chart-of-accounts entry.
type AddAccountParams struct {
	Code     string
	Name     string
	Type     domain.AccountType
	ParentID string
	Currency string
}

// AddAccount creates a new account. Code uniqueness is enforced within
// the tenant's active set.
func (s *AccountingService) AddAccount(ctx context.Context, orgID string, params AddAccountParams) (*domain.Account, error) {
	if params.Code == "" {
		return nil, domain.NewValidationError("code", "required")
	}
	if params.Name == "" {
		return nil, domain.NewValidationError("name", "required")
	}
	if !params.Type.IsValid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown account type %q", params.Type))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Code:      params.Code,
		Name:      params.Name,
		Type:      params.Type,
		ParentID:  params.ParentID,
		Currency:  params.Currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.Serialize(ctx, orgID, func(ctx context.Context) error {
		if params.ParentID != "" {
			if _, err := s.store.GetAccount(ctx, orgID, params.ParentID); err != nil {
				return domain.NewValidationError("parentId", "unknown parent account")
			}
		}
		return s.store.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns the tenant's full chart ordered by code. Callers
// that only want postable accounts filter on IsActive.
func (s *AccountingService) ListAccounts(ctx context.Context, orgID string) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, orgID)
}

// DeactivateAccount flips an account to inactive. The account stays
// visible in history but is excluded from new postings.
func (s *AccountingService) DeactivateAccount(ctx context.Context, orgID, id string) (*domain.Account, error) {
	var account *domain.Account
	err := s.store.Serialize(ctx, orgID, func(ctx context.Context) error {
		a, err := s.store.GetAccount(ctx, orgID, id)
		if err != nil {
			return err
		}
		a.IsActive = false
		a.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateAccount(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// EntryLineParams is one requested journal line, addressed by account
// code. A line may carry both a debit and a credit; only the entry-level
// totals are checked, which keeps the flexibility of the split-line
// convention some imports rely on.
type EntryLineParams struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	Currency    string
}

// PostEntryParams holds input for posting a journal entry.
type PostEntryParams struct {
	Date  time.Time
	Ref   string
	Memo  string
	Lines []EntryLineParams
}

// PostJournalEntry validates, balances and persists an entry with all of
// its lines as one atomic unit. Totals are compared at 2-decimal
// precision using banker's rounding, never raw float equality.
func (s *AccountingService) PostJournalEntry(ctx context.Context, orgID, actorID string, params PostEntryParams) (*domain.JournalEntry, error) {
	if len(params.Lines) < 2 {
		return nil, domain.NewValidationError("lines", "journal entry requires at least 2 lines")
	}
	if params.Date.IsZero() {
		return nil, domain.NewValidationError("date", "required")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, line := range params.Lines {
		if line.AccountCode == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("lines[%d].accountCode", i), "required")
		}
		if line.Debit.IsNegative() {
			return nil, domain.NewValidationError(fmt.Sprintf("lines[%d].debit", i), "must not be negative")
		}
		if line.Credit.IsNegative() {
			return nil, domain.NewValidationError(fmt.Sprintf("lines[%d].credit", i), "must not be negative")
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if !totalDebit.RoundBank(2).Equal(totalCredit.RoundBank(2)) {
		return nil, &domain.UnbalancedError{TotalDebit: totalDebit, TotalCredit: totalCredit}
	}

	now := time.Now().UTC()
	entry := &domain.JournalEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Date:      params.Date,
		Ref:       params.Ref,
		Memo:      params.Memo,
		CreatedBy: actorID,
		CreatedAt: now,
	}

	err := s.store.Serialize(ctx, orgID, func(ctx context.Context) error {
		touched := make([]domain.SnapshotKey, 0, len(params.Lines))
		for i, line := range params.Lines {
			account, err := s.store.FindAccountByCode(ctx, orgID, line.AccountCode)
			if err != nil {
				return domain.NewValidationError(
					fmt.Sprintf("lines[%d].accountCode", i),
					fmt.Sprintf("unknown account code %q", line.AccountCode))
			}
			entry.Lines = append(entry.Lines, domain.JournalLine{
				ID:        uuid.NewString(),
				EntryID:   entry.ID,
				AccountID: account.ID,
				Debit:     line.Debit,
				Credit:    line.Credit,
				Memo:      line.Memo,
				Currency:  line.Currency,
			})
			touched = append(touched, domain.SnapshotKey{
				AccountID: account.ID,
				Period:    params.Date.Format("2006-01"),
			})
		}

		if err := s.store.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return s.store.DropSnapshots(ctx, orgID, touched)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListJournal returns the tenant's entries in posting order.
func (s *AccountingService) ListJournal(ctx context.Context, orgID string) ([]domain.JournalEntry, error) {
	return s.store.ListEntries(ctx, orgID)
}

// TrialBalanceRow is one account's accumulated totals.
type TrialBalanceRow struct {
	Account domain.Account  `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalance accumulates debit/credit totals per account over entries
// dated on or before upTo (all entries when upTo is nil). Every account
// in the chart appears in the result, zero-activity accounts included,
// in chart (code) order. Accumulation is a single pass over entry lines
// into a map keyed by account id.
func (s *AccountingService) TrialBalance(ctx context.Context, orgID string, upTo *time.Time) ([]TrialBalanceRow, error) {
	accounts, err := s.store.ListAccounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, orgID)
	if err != nil {
		return nil, err
	}

	type totals struct{ debit, credit decimal.Decimal }
	byAccount := make(map[string]*totals, len(accounts))
	for _, a := range accounts {
		byAccount[a.ID] = &totals{debit: decimal.Zero, credit: decimal.Zero}
	}

	for _, e := range entries {
		if upTo != nil && e.Date.After(*upTo) {
			continue
		}
		for _, line := range e.Lines {
			t, ok := byAccount[line.AccountID]
			if !ok {
				// Line against an account missing from the chart; should
				// not happen, but a stale id must not panic the report.
				continue
			}
			t.debit = t.debit.Add(line.Debit)
			t.credit = t.credit.Add(line.Credit)
		}
	}

	rows := make([]TrialBalanceRow, len(accounts))
	for i, a := range accounts {
		t := byAccount[a.ID]
		rows[i] = TrialBalanceRow{
			Account: a,
			Debit:   t.debit,
			Credit:  t.credit,
			Balance: t.debit.Sub(t.credit),
		}
	}
	return rows, nil
}

// BalanceSnapshot returns the cached rollup for an account and period
// (YYYY-MM), computing and caching it on a miss. Postings that touch the
// account/period drop the cached value, so a later read recomputes.
func (s *AccountingService) BalanceSnapshot(ctx context.Context, orgID, accountID, period string) (*domain.BalanceSnapshot, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return nil, domain.NewValidationError("period", "must be formatted YYYY-MM")
	}
	if _, err := s.store.GetAccount(ctx, orgID, accountID); err != nil {
		return nil, err
	}

	if snap, err := s.store.GetSnapshot(ctx, orgID, accountID, period); err == nil {
		return snap, nil
	}

	entries, err := s.store.ListEntries(ctx, orgID)
	if err != nil {
		return nil, err
	}

	end := start.AddDate(0, 1, 0)
	opening := decimal.Zero
	debits := decimal.Zero
	credits := decimal.Zero
	for _, e := range entries {
		for _, line := range e.Lines {
			if line.AccountID != accountID {
				continue
			}
			switch {
			case e.Date.Before(start):
				opening = opening.Add(line.Debit).Sub(line.Credit)
			case e.Date.Before(end):
				debits = debits.Add(line.Debit)
				credits = credits.Add(line.Credit)
			}
		}
	}

	snap := &domain.BalanceSnapshot{
		ID:      uuid.NewString(),
		OrgID:   orgID,
		Account: accountID,
		Period:  period,
		Opening: opening,
		Debits:  debits,
		Credits: credits,
		Closing: opening.Add(debits).Sub(credits),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// AddTaxRule stores a per-tenant tax rule.
func (s *AccountingService) AddTaxRule(ctx context.Context, orgID string, rule domain.TaxRule) (*domain.TaxRule, error) {
	if rule.Name == "" {
		return nil, domain.NewValidationError("name", "required")
	}
	if rule.Rate.IsNegative() {
		return nil, domain.NewValidationError("rate", "must not be negative")
	}
	rule.ID = uuid.NewString()
	rule.OrgID = orgID
	rule.CreatedAt = time.Now().UTC()
	if err := s.store.CreateTaxRule(ctx, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListTaxRules returns the tenant's tax rules.
func (s *AccountingService) ListTaxRules(ctx context.Context, orgID string) ([]domain.TaxRule, error) {
	return s.store.ListTaxRules(ctx, orgID)
}

// AddBudgetLine stores a per-tenant budget line.
func (s *AccountingService) AddBudgetLine(ctx context.Context, orgID string, line domain.BudgetLine) (*domain.BudgetLine, error) {
	if line.AccountID == "" {
		return nil, domain.NewValidationError("accountId", "required")
	}
	if _, err := time.Parse("2006-01", line.Period); err != nil {
		return nil, domain.NewValidationError("period", "must be formatted YYYY-MM")
	}
	line.ID = uuid.NewString()
	line.OrgID = orgID
	line.CreatedAt = time.Now().UTC()
	if err := s.store.CreateBudgetLine(ctx, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// ListBudgetLines returns the tenant's budget lines.
func (s *AccountingService) ListBudgetLines(ctx context.Context, orgID string) ([]domain.BudgetLine, error) {
	return s.store.ListBudgetLines(ctx, orgID)
}
