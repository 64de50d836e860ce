// Package repo is the postgres storage adapter. It implements the same
// ports as memstore on top of gorm; journal atomicity comes from a real
// database transaction and uniqueness from the schema's indexes.
package repo

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// Store implements domain.Store against postgres.
type Store struct {
	db *gorm.DB

	// Per-tenant writer locks. Good for a single API instance; a
	// multi-instance deployment would move this to serializable
	// transactions instead.
	locks sync.Map
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Account{},
		&domain.JournalEntry{},
		&domain.JournalLine{},
		&domain.BalanceSnapshot{},
		&domain.TaxRule{},
		&domain.BudgetLine{},
		&domain.BankStatementLine{},
		&domain.Invoice{},
		&domain.Expense{},
		&domain.AuditLogEntry{},
	)
}

// Serialize holds the tenant's writer lock for the duration of fn.
func (s *Store) Serialize(ctx context.Context, orgID string, fn func(ctx context.Context) error) error {
	v, _ := s.locks.LoadOrStore(orgID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// ---- accounts ----

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Account{}).
		Where("org_id = ? AND code = ? AND is_active", a.OrgID, a.Code).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return &domain.DuplicateKeyError{Field: "code", Value: a.Code}
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) ListAccounts(ctx context.Context, orgID string) ([]domain.Account, error) {
	var accounts []domain.Account
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("code").
		Find(&accounts).Error
	return accounts, err
}

func (s *Store) GetAccount(ctx context.Context, orgID, id string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) FindAccountByCode(ctx context.Context, orgID, code string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND code = ? AND is_active", orgID, code).
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *domain.Account) error {
	// Column map rather than Save: the row must stay tenant-scoped, and
	// struct updates would skip zero values such as is_active=false.
	result := s.db.WithContext(ctx).Model(&domain.Account{}).
		Where("org_id = ? AND id = ?", a.OrgID, a.ID).
		Updates(map[string]interface{}{
			"name":       a.Name,
			"type":       a.Type,
			"parent_id":  a.ParentID,
			"currency":   a.Currency,
			"is_active":  a.IsActive,
			"updated_at": a.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- journal ----

func (s *Store) CreateEntry(ctx context.Context, e *domain.JournalEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.Ref != "" {
			var count int64
			err := tx.Model(&domain.JournalEntry{}).
				Where("org_id = ? AND ref = ?", e.OrgID, e.Ref).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return &domain.DuplicateKeyError{Field: "ref", Value: e.Ref}
			}
		}
		// Creates the entry and all lines inside the one transaction.
		return tx.Create(e).Error
	})
}

func (s *Store) ListEntries(ctx context.Context, orgID string) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&entries).Error
	return entries, err
}

// ---- bank statements ----

func (s *Store) CreateStatementLines(ctx context.Context, lines []domain.BankStatementLine) error {
	if len(lines) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&lines).Error
}

func (s *Store) ListStatementLines(ctx context.Context, orgID string) ([]domain.BankStatementLine, error) {
	var lines []domain.BankStatementLine
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("imported_at, id").
		Find(&lines).Error
	return lines, err
}

func (s *Store) SetStatementMatch(ctx context.Context, orgID, lineID, entryID string, confidence float64) error {
	result := s.db.WithContext(ctx).Model(&domain.BankStatementLine{}).
		Where("org_id = ? AND id = ? AND matched_entry_id = ''", orgID, lineID).
		Updates(map[string]interface{}{
			"matched_entry_id": entryID,
			"confidence":       confidence,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either missing or already matched; matched is terminal and a
		// re-match is a no-op, so only the missing case is an error.
		var count int64
		err := s.db.WithContext(ctx).Model(&domain.BankStatementLine{}).
			Where("org_id = ? AND id = ?", orgID, lineID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

// ---- balance snapshots ----

func (s *Store) GetSnapshot(ctx context.Context, orgID, accountID, period string) (*domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND account_id = ? AND period = ?", orgID, accountID, period).
		First(&snap).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &snap, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.BalanceSnapshot) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "account_id"}, {Name: "period"}},
			UpdateAll: true,
		}).
		Create(snap).Error
}

func (s *Store) DropSnapshots(ctx context.Context, orgID string, keys []domain.SnapshotKey) error {
	for _, k := range keys {
		err := s.db.WithContext(ctx).
			Where("org_id = ? AND account_id = ? AND period = ?", orgID, k.AccountID, k.Period).
			Delete(&domain.BalanceSnapshot{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ---- tax rules and budgets ----

func (s *Store) CreateTaxRule(ctx context.Context, r *domain.TaxRule) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) ListTaxRules(ctx context.Context, orgID string) ([]domain.TaxRule, error) {
	var rules []domain.TaxRule
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&rules).Error
	return rules, err
}

func (s *Store) CreateBudgetLine(ctx context.Context, b *domain.BudgetLine) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *Store) ListBudgetLines(ctx context.Context, orgID string) ([]domain.BudgetLine, error) {
	var lines []domain.BudgetLine
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&lines).Error
	return lines, err
}

// ---- invoices ----

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *Store) ListInvoices(ctx context.Context, orgID string) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&invoices).Error
	return invoices, err
}

func (s *Store) GetInvoice(ctx context.Context, orgID, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&inv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	result := s.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("org_id = ? AND id = ?", inv.OrgID, inv.ID).
		Updates(map[string]interface{}{
			"number":     inv.Number,
			"customer":   inv.Customer,
			"amount":     inv.Amount,
			"status":     inv.Status,
			"updated_at": inv.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- expenses ----

func (s *Store) CreateExpense(ctx context.Context, e *domain.Expense) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) ListExpenses(ctx context.Context, orgID string) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&expenses).Error
	return expenses, err
}

// ---- audit ----

func (s *Store) AppendAudit(ctx context.Context, e *domain.AuditLogEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) ListAudit(ctx context.Context, orgID string) ([]domain.AuditLogEntry, error) {
	var entries []domain.AuditLogEntry
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at").
		Find(&entries).Error
	return entries, err
}

var _ domain.Store = (*Store)(nil)
