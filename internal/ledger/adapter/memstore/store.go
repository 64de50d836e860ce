// Package memstore is the default storage adapter: per-tenant in-memory
// partitions behind the domain repository ports. Partitions are created
// lazily on first access; reads hand out copies so callers never observe
// a half-written entry.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// Store implements domain.Store.
type Store struct {
	mu   sync.Mutex
	orgs map[string]*partition
}

// partition holds one tenant's collections. writerMu serializes
// check-then-write sequences (Serialize); dataMu guards the collections
// themselves so snapshot reads can run concurrently.
type partition struct {
	writerMu sync.Mutex
	dataMu   sync.RWMutex

	accounts   map[string]domain.Account
	entries    []domain.JournalEntry
	entryRefs  map[string]bool
	statements []domain.BankStatementLine
	snapshots  map[domain.SnapshotKey]domain.BalanceSnapshot
	taxRules   []domain.TaxRule
	budgets    []domain.BudgetLine
	invoices   []domain.Invoice
	expenses   []domain.Expense
	audit      []domain.AuditLogEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{orgs: make(map[string]*partition)}
}

// org returns the partition for orgID, creating it on first access.
func (s *Store) org(orgID string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.orgs[orgID]
	if !ok {
		p = &partition{
			accounts:  make(map[string]domain.Account),
			entryRefs: make(map[string]bool),
			snapshots: make(map[domain.SnapshotKey]domain.BalanceSnapshot),
		}
		s.orgs[orgID] = p
	}
	return p
}

// Serialize runs fn while holding the tenant's writer lock. Repository
// methods take the data lock separately, so fn may call back into the
// store without deadlocking.
func (s *Store) Serialize(ctx context.Context, orgID string, fn func(ctx context.Context) error) error {
	p := s.org(orgID)
	p.writerMu.Lock()
	defer p.writerMu.Unlock()
	return fn(ctx)
}

// ---- accounts ----

func (s *Store) CreateAccount(_ context.Context, a *domain.Account) error {
	p := s.org(a.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	for _, existing := range p.accounts {
		if existing.IsActive && existing.Code == a.Code {
			return &domain.DuplicateKeyError{Field: "code", Value: a.Code}
		}
	}
	p.accounts[a.ID] = *a
	return nil
}

func (s *Store) ListAccounts(_ context.Context, orgID string) ([]domain.Account, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	out := make([]domain.Account, 0, len(p.accounts))
	for _, a := range p.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, orgID, id string) (*domain.Account, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	a, ok := p.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *Store) FindAccountByCode(_ context.Context, orgID, code string) (*domain.Account, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	for _, a := range p.accounts {
		if a.IsActive && a.Code == code {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) UpdateAccount(_ context.Context, a *domain.Account) error {
	p := s.org(a.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	if _, ok := p.accounts[a.ID]; !ok {
		return domain.ErrNotFound
	}
	p.accounts[a.ID] = *a
	return nil
}

// ---- journal ----

func (s *Store) CreateEntry(_ context.Context, e *domain.JournalEntry) error {
	p := s.org(e.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	if e.Ref != "" && p.entryRefs[e.Ref] {
		return &domain.DuplicateKeyError{Field: "ref", Value: e.Ref}
	}

	// Entry and lines land in a single append under the lock, so a
	// concurrent reader sees all of the entry or none of it.
	cp := *e
	cp.Lines = append([]domain.JournalLine(nil), e.Lines...)
	p.entries = append(p.entries, cp)
	if e.Ref != "" {
		p.entryRefs[e.Ref] = true
	}
	return nil
}

func (s *Store) ListEntries(_ context.Context, orgID string) ([]domain.JournalEntry, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	out := make([]domain.JournalEntry, len(p.entries))
	for i, e := range p.entries {
		cp := e
		cp.Lines = append([]domain.JournalLine(nil), e.Lines...)
		out[i] = cp
	}
	return out, nil
}

// ---- bank statements ----

func (s *Store) CreateStatementLines(_ context.Context, lines []domain.BankStatementLine) error {
	for _, l := range lines {
		p := s.org(l.OrgID)
		p.dataMu.Lock()
		p.statements = append(p.statements, l)
		p.dataMu.Unlock()
	}
	return nil
}

func (s *Store) ListStatementLines(_ context.Context, orgID string) ([]domain.BankStatementLine, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.BankStatementLine(nil), p.statements...), nil
}

func (s *Store) SetStatementMatch(_ context.Context, orgID, lineID, entryID string, confidence float64) error {
	p := s.org(orgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	for i := range p.statements {
		if p.statements[i].ID != lineID {
			continue
		}
		if p.statements[i].Matched() {
			// Matched is terminal; re-matching is a no-op.
			return nil
		}
		p.statements[i].MatchedEntryID = entryID
		p.statements[i].Confidence = confidence
		return nil
	}
	return domain.ErrNotFound
}

// ---- balance snapshots ----

func (s *Store) GetSnapshot(_ context.Context, orgID, accountID, period string) (*domain.BalanceSnapshot, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	snap, ok := p.snapshots[domain.SnapshotKey{AccountID: accountID, Period: period}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := snap
	return &cp, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap *domain.BalanceSnapshot) error {
	p := s.org(snap.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	p.snapshots[domain.SnapshotKey{AccountID: snap.Account, Period: snap.Period}] = *snap
	return nil
}

func (s *Store) DropSnapshots(_ context.Context, orgID string, keys []domain.SnapshotKey) error {
	p := s.org(orgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	for _, k := range keys {
		delete(p.snapshots, k)
	}
	return nil
}

// ---- tax rules and budgets ----

func (s *Store) CreateTaxRule(_ context.Context, r *domain.TaxRule) error {
	p := s.org(r.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	p.taxRules = append(p.taxRules, *r)
	return nil
}

func (s *Store) ListTaxRules(_ context.Context, orgID string) ([]domain.TaxRule, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.TaxRule(nil), p.taxRules...), nil
}

func (s *Store) CreateBudgetLine(_ context.Context, b *domain.BudgetLine) error {
	p := s.org(b.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	p.budgets = append(p.budgets, *b)
	return nil
}

func (s *Store) ListBudgetLines(_ context.Context, orgID string) ([]domain.BudgetLine, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.BudgetLine(nil), p.budgets...), nil
}

// ---- invoices ----

func (s *Store) CreateInvoice(_ context.Context, inv *domain.Invoice) error {
	p := s.org(inv.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	p.invoices = append(p.invoices, *inv)
	return nil
}

func (s *Store) ListInvoices(_ context.Context, orgID string) ([]domain.Invoice, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.Invoice(nil), p.invoices...), nil
}

func (s *Store) GetInvoice(_ context.Context, orgID, id string) (*domain.Invoice, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()

	for _, inv := range p.invoices {
		if inv.ID == id {
			cp := inv
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) UpdateInvoice(_ context.Context, inv *domain.Invoice) error {
	p := s.org(inv.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	for i := range p.invoices {
		if p.invoices[i].ID == inv.ID {
			p.invoices[i] = *inv
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- expenses ----

func (s *Store) CreateExpense(_ context.Context, e *domain.Expense) error {
	p := s.org(e.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()
	p.expenses = append(p.expenses, *e)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, orgID string) ([]domain.Expense, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.Expense(nil), p.expenses...), nil
}

// ---- audit ----

func (s *Store) AppendAudit(_ context.Context, e *domain.AuditLogEntry) error {
	p := s.org(e.OrgID)
	p.dataMu.Lock()
	defer p.dataMu.Unlock()

	cp := *e
	cp.NewData = append([]byte(nil), e.NewData...)
	p.audit = append(p.audit, cp)
	return nil
}

func (s *Store) ListAudit(_ context.Context, orgID string) ([]domain.AuditLogEntry, error) {
	p := s.org(orgID)
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return append([]domain.AuditLogEntry(nil), p.audit...), nil
}

var _ domain.Store = (*Store)(nil)
