package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one entry in a tenant's chart of accounts. Code uniqueness
// holds within the org's ACTIVE accounts only, so the storage adapters
// enforce it rather than a plain unique index.
type Account struct {
	ID    string      `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID string      `gorm:"index:idx_account_code;type:varchar(64);not null" json:"orgId"`
	Code  string      `gorm:"index:idx_account_code;type:varchar(32);not null" json:"code"`
	Name  string      `gorm:"type:varchar(100);not null" json:"name"`
	Type  AccountType `gorm:"type:varchar(16);not null" json:"type"`
	// ParentID is optional; the zero value "" means top-level, so the
	// column must accept empty strings (varchar, not uuid).
	ParentID  string    `gorm:"type:varchar(64)" json:"parentId,omitempty"`
	Currency  string    `gorm:"type:char(3)" json:"currency,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Account) TableName() string { return "ledger.accounts" }

// JournalEntry is an atomic accounting transaction. Immutable once
// posted. Ref is unique within the org when present; empty refs never
// collide, so the adapters check instead of a unique index.
type JournalEntry struct {
	ID        string        `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID     string        `gorm:"index;type:varchar(64);not null" json:"orgId"`
	Date      time.Time     `gorm:"not null" json:"date"`
	Ref       string        `gorm:"type:varchar(64)" json:"ref,omitempty"`
	Memo      string        `gorm:"type:text" json:"memo,omitempty"`
	CreatedBy string        `gorm:"type:varchar(64)" json:"createdBy,omitempty"`
	Lines     []JournalLine `gorm:"foreignKey:EntryID" json:"lines"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (JournalEntry) TableName() string { return "ledger.journal_entries" }

// JournalLine is one row of a JournalEntry. Debit and credit are both
// non-negative; the balance check operates on entry-level totals only.
type JournalLine struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	EntryID   string          `gorm:"index;type:uuid;not null" json:"entryId"`
	AccountID string          `gorm:"index;type:uuid;not null" json:"accountId"`
	Debit     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"credit"`
	Memo      string          `gorm:"type:text" json:"memo,omitempty"`
	Currency  string          `gorm:"type:char(3)" json:"currency,omitempty"`
}

func (JournalLine) TableName() string { return "ledger.journal_lines" }

// BalanceSnapshot is a cached per-account, per-period (YYYY-MM) rollup.
// Invalidated whenever a posting touches the account in that period.
type BalanceSnapshot struct {
	ID      string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID   string          `gorm:"uniqueIndex:uq_snapshot;type:varchar(64);not null" json:"orgId"`
	Account string          `gorm:"uniqueIndex:uq_snapshot;column:account_id;type:uuid;not null" json:"accountId"`
	Period  string          `gorm:"uniqueIndex:uq_snapshot;type:char(7);not null" json:"period"`
	Opening decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"opening"`
	Debits  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"debits"`
	Credits decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"credits"`
	Closing decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"closing"`
}

func (BalanceSnapshot) TableName() string { return "ledger.balance_snapshots" }

// TaxRule is per-tenant tax configuration consumed by reporting.
type TaxRule struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID         string          `gorm:"index;type:varchar(64);not null" json:"orgId"`
	Name          string          `gorm:"type:varchar(100);not null" json:"name"`
	Rate          decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"rate"`
	Jurisdiction  string          `gorm:"type:varchar(64)" json:"jurisdiction,omitempty"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (TaxRule) TableName() string { return "ledger.tax_rules" }

// BudgetLine is a per-tenant budgeted amount for an account and period.
type BudgetLine struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID     string          `gorm:"index;type:varchar(64);not null" json:"orgId"`
	AccountID string          `gorm:"type:uuid;not null" json:"accountId"`
	Period    string          `gorm:"type:char(7);not null" json:"period"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (BudgetLine) TableName() string { return "ledger.budget_lines" }

// BankStatementLine is an imported bank row. Created by import, mutated
// only by matching (Unmatched -> Matched, one way), never deleted.
type BankStatementLine struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID       string          `gorm:"index;type:varchar(64);not null" json:"orgId"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"type:char(3)" json:"currency,omitempty"`
	ExternalRef string          `gorm:"type:varchar(64)" json:"externalRef,omitempty"`
	// MatchedEntryID is "" until matching ties the line to an entry;
	// varchar so unmatched lines round-trip through postgres.
	MatchedEntryID string    `gorm:"type:varchar(64);not null;default:''" json:"matchedJournalEntryId,omitempty"`
	Confidence     float64   `json:"confidence,omitempty"`
	ImportedAt     time.Time `json:"importedAt"`
}

func (BankStatementLine) TableName() string { return "ledger.bank_statement_lines" }

// Matched reports whether the line has been tied to a journal entry.
func (l BankStatementLine) Matched() bool { return l.MatchedEntryID != "" }

// Invoice is a minimal receivable record. It exists to exercise the same
// tenant-scoping, validation and audit pattern as the ledger endpoints.
type Invoice struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID     string          `gorm:"index;type:varchar(64);not null" json:"orgId"`
	Number    string          `gorm:"type:varchar(32);not null" json:"number"`
	Customer  string          `gorm:"type:varchar(100);not null" json:"customer"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status    InvoiceStatus   `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Invoice) TableName() string { return "ledger.invoices" }

// Expense is a minimal expense record, same pattern as Invoice.
type Expense struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID       string          `gorm:"index;type:varchar(64);not null" json:"orgId"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Category    string          `gorm:"type:varchar(64)" json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (Expense) TableName() string { return "ledger.expenses" }

// AuditLogEntry is a write-once record of a mutating API call. OldData is
// always null: state before the write is not captured.
type AuditLogEntry struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	OrgID      string    `gorm:"index;type:varchar(64);not null" json:"orgId"`
	ActorID    string    `gorm:"type:varchar(64)" json:"actorId,omitempty"`
	Action     string    `gorm:"type:varchar(128);not null" json:"action"`
	EntityType string    `gorm:"type:varchar(32)" json:"entityType,omitempty"`
	EntityID   string    `gorm:"type:varchar(64)" json:"entityId,omitempty"`
	NewData    []byte    `gorm:"type:jsonb" json:"newData,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (AuditLogEntry) TableName() string { return "ledger.audit_log" }
