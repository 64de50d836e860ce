package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// Statement CSV columns, in the exact order the importer expects:
// date,description,amount,externalRef. The first row is always treated
// as a header and skipped.
const (
	stmtDateFormat = "2006-01-02"
	stmtColDate    = 0
	stmtColDesc    = 1
	stmtColAmount  = 2
	stmtColRef     = 3
	stmtNumFields  = 4
)

// MatchConfidence is the fixed score assigned by the default matcher.
// The heuristic is conservative and non-probabilistic.
const MatchConfidence = 0.55

// Matcher decides which journal entry, if any, a statement line belongs
// to. Implementations can be swapped without touching the import/list
// contract.
type Matcher interface {
	Match(line domain.BankStatementLine, entries []domain.JournalEntry) (entryID string, confidence float64, ok bool)
}

// amountDateMatcher matches a line to the first entry dated the same day
// that contains a line whose debit minus credit equals the negated
// statement amount.
type amountDateMatcher struct{}

func (amountDateMatcher) Match(line domain.BankStatementLine, entries []domain.JournalEntry) (string, float64, bool) {
	want := line.Amount.Neg()
	for _, e := range entries {
		if !sameDay(e.Date, line.Date) {
			continue
		}
		for _, jl := range e.Lines {
			if jl.Debit.Sub(jl.Credit).Equal(want) {
				return e.ID, MatchConfidence, true
			}
		}
	}
	return "", 0, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ReconciliationStore is the slice of storage ports reconciliation needs.
type ReconciliationStore interface {
	domain.StatementRepository
	domain.JournalRepository
	domain.Serializer
}

// ReconciliationService imports bank statement rows and ties them to
// posted journal entries.
type ReconciliationService struct {
	store   ReconciliationStore
	matcher Matcher
}

// NewReconciliationService creates a ReconciliationService. A nil
// matcher selects the default amount+date heuristic.
func NewReconciliationService(store ReconciliationStore, matcher Matcher) *ReconciliationService {
	if matcher == nil {
		matcher = amountDateMatcher{}
	}
	return &ReconciliationService{store: store, matcher: matcher}
}

// ImportLines parses a statement CSV and stores one BankStatementLine
// per data row. Parsing is strictly positional; a malformed row fails
// the whole import with its row number.
func (s *ReconciliationService) ImportLines(ctx context.Context, orgID string, r io.Reader, currency string) ([]domain.BankStatementLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError("file", fmt.Sprintf("reading statement CSV: %v", err))
	}
	if len(records) <= 1 {
		// Keep the response shape stable: an empty import is an empty
		// list, not null.
		return []domain.BankStatementLine{}, nil
	}

	now := time.Now().UTC()
	lines := make([]domain.BankStatementLine, 0, len(records)-1)
	for i, rec := range records[1:] {
		line, err := parseStatementRow(rec)
		if err != nil {
			return nil, domain.NewValidationError("file", fmt.Sprintf("row %d: %v", i+2, err))
		}
		line.ID = uuid.NewString()
		line.OrgID = orgID
		line.Currency = currency
		line.ImportedAt = now
		lines = append(lines, line)
	}

	if err := s.store.CreateStatementLines(ctx, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseStatementRow(rec []string) (domain.BankStatementLine, error) {
	if len(rec) < stmtNumFields-1 {
		return domain.BankStatementLine{}, fmt.Errorf("expected at least %d fields, got %d", stmtNumFields-1, len(rec))
	}

	date, err := time.Parse(stmtDateFormat, rec[stmtColDate])
	if err != nil {
		return domain.BankStatementLine{}, fmt.Errorf("parsing date %q: %w", rec[stmtColDate], err)
	}
	amount, err := decimal.NewFromString(rec[stmtColAmount])
	if err != nil {
		return domain.BankStatementLine{}, fmt.Errorf("parsing amount %q: %w", rec[stmtColAmount], err)
	}

	ref := ""
	if len(rec) > stmtColRef {
		ref = rec[stmtColRef]
	}

	return domain.BankStatementLine{
		Date:        date,
		Description: rec[stmtColDesc],
		Amount:      amount,
		ExternalRef: ref,
	}, nil
}

// AutoMatch runs the matcher over every unmatched statement line and
// records first matches. Already-matched lines are skipped, so a re-run
// is a no-op for them. Returns the number of newly matched lines.
func (s *ReconciliationService) AutoMatch(ctx context.Context, orgID string) (int, error) {
	matched := 0
	err := s.store.Serialize(ctx, orgID, func(ctx context.Context) error {
		lines, err := s.store.ListStatementLines(ctx, orgID)
		if err != nil {
			return err
		}
		entries, err := s.store.ListEntries(ctx, orgID)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if line.Matched() {
				continue
			}
			entryID, confidence, ok := s.matcher.Match(line, entries)
			if !ok {
				continue
			}
			if err := s.store.SetStatementMatch(ctx, orgID, line.ID, entryID, confidence); err != nil {
				return err
			}
			matched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// List returns all statement lines, matched and unmatched, in import
// order.
func (s *ReconciliationService) List(ctx context.Context, orgID string) ([]domain.BankStatementLine, error) {
	return s.store.ListStatementLines(ctx, orgID)
}
