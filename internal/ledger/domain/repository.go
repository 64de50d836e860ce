package domain

import "context"

// SnapshotKey identifies one cached account/period rollup.
type SnapshotKey struct {
	AccountID string
	Period    string // YYYY-MM
}

// AccountRepository is the port for chart-of-accounts storage. Uniqueness
// of (org, code) within the active set is the adapter's job, like a
// database unique index.
type AccountRepository interface {
	// CreateAccount persists a new account. Returns *DuplicateKeyError
	// when code collides with an active account in the same org.
	CreateAccount(ctx context.Context, a *Account) error

	// ListAccounts returns all accounts for the org ordered by code.
	ListAccounts(ctx context.Context, orgID string) ([]Account, error)

	// GetAccount returns ErrNotFound for unknown or cross-org ids.
	GetAccount(ctx context.Context, orgID, id string) (*Account, error)

	// FindAccountByCode resolves an active account by its code.
	FindAccountByCode(ctx context.Context, orgID, code string) (*Account, error)

	// UpdateAccount overwrites a previously loaded account.
	UpdateAccount(ctx context.Context, a *Account) error
}

// JournalRepository stores posted entries. CreateEntry must persist the
// entry and all of its lines atomically.
type JournalRepository interface {
	// CreateEntry returns *DuplicateKeyError when the entry's ref is set
	// and already used within the org.
	CreateEntry(ctx context.Context, e *JournalEntry) error

	// ListEntries returns all entries (with lines) in posting order.
	ListEntries(ctx context.Context, orgID string) ([]JournalEntry, error)
}

// StatementRepository stores imported bank statement lines.
type StatementRepository interface {
	CreateStatementLines(ctx context.Context, lines []BankStatementLine) error
	ListStatementLines(ctx context.Context, orgID string) ([]BankStatementLine, error)

	// SetStatementMatch records a one-way Unmatched -> Matched transition.
	SetStatementMatch(ctx context.Context, orgID, lineID, entryID string, confidence float64) error
}

// SnapshotRepository caches per-account period rollups.
type SnapshotRepository interface {
	// GetSnapshot returns ErrNotFound when no snapshot is cached.
	GetSnapshot(ctx context.Context, orgID, accountID, period string) (*BalanceSnapshot, error)
	SaveSnapshot(ctx context.Context, s *BalanceSnapshot) error
	DropSnapshots(ctx context.Context, orgID string, keys []SnapshotKey) error
}

// ConfigRepository stores per-tenant tax rules and budget lines.
type ConfigRepository interface {
	CreateTaxRule(ctx context.Context, r *TaxRule) error
	ListTaxRules(ctx context.Context, orgID string) ([]TaxRule, error)
	CreateBudgetLine(ctx context.Context, b *BudgetLine) error
	ListBudgetLines(ctx context.Context, orgID string) ([]BudgetLine, error)
}

// InvoiceRepository stores invoices.
type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	ListInvoices(ctx context.Context, orgID string) ([]Invoice, error)
	GetInvoice(ctx context.Context, orgID, id string) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
}

// ExpenseRepository stores expenses.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e *Expense) error
	ListExpenses(ctx context.Context, orgID string) ([]Expense, error)
}

// AuditRepository is the append-only audit trail. Entries are never
// updated or deleted.
type AuditRepository interface {
	AppendAudit(ctx context.Context, e *AuditLogEntry) error
	ListAudit(ctx context.Context, orgID string) ([]AuditLogEntry, error)
}

// Serializer gives callers a single-writer section per tenant. All
// check-then-write sequences against one org must run inside it.
type Serializer interface {
	Serialize(ctx context.Context, orgID string, fn func(ctx context.Context) error) error
}

// Store is the full set of ports a storage adapter implements.
type Store interface {
	AccountRepository
	JournalRepository
	StatementRepository
	SnapshotRepository
	ConfigRepository
	InvoiceRepository
	ExpenseRepository
	AuditRepository
	Serializer
}
