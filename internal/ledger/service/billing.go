package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebooks/corebooks/internal/ledger/domain"
)

// BillingStore is the slice of storage ports billing needs.
type BillingStore interface {
	domain.InvoiceRepository
	domain.ExpenseRepository
	domain.Serializer
}

// BillingService handles invoices and expenses. Thin records, but they
// run through the same tenant-scoping, validation and audit pipeline as
// the ledger.
type BillingService struct {
	store BillingStore
}

// NewBillingService creates a BillingService.
func NewBillingService(store BillingStore) *BillingService {
	return &BillingService{store: store}
}

// CreateInvoiceParams holds input for creating an invoice.
type CreateInvoiceParams struct {
	Number   string
	Customer string
	Amount   decimal.Decimal
}

// CreateInvoice creates a draft invoice.
func (s *BillingService) CreateInvoice(ctx context.Context, orgID string, params CreateInvoiceParams) (*domain.Invoice, error) {
	if params.Number == "" {
		return nil, domain.NewValidationError("number", "required")
	}
	if params.Customer == "" {
		return nil, domain.NewValidationError("customer", "required")
	}
	if params.Amount.IsNegative() {
		return nil, domain.NewValidationError("amount", "must not be negative")
	}

	now := time.Now().UTC()
	inv := &domain.Invoice{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Number:    params.Number,
		Customer:  params.Customer,
		Amount:    params.Amount,
		Status:    domain.InvoiceDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the tenant's invoices in creation order.
func (s *BillingService) ListInvoices(ctx context.Context, orgID string) ([]domain.Invoice, error) {
	return s.store.ListInvoices(ctx, orgID)
}

// SetInvoiceStatus moves an invoice to a new lifecycle state.
func (s *BillingService) SetInvoiceStatus(ctx context.Context, orgID, id string, status domain.InvoiceStatus) (*domain.Invoice, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "unknown invoice status")
	}

	var inv *domain.Invoice
	err := s.store.Serialize(ctx, orgID, func(ctx context.Context) error {
		loaded, err := s.store.GetInvoice(ctx, orgID, id)
		if err != nil {
			return err
		}
		loaded.Status = status
		loaded.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateInvoice(ctx, loaded); err != nil {
			return err
		}
		inv = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateExpenseParams holds input for recording an expense.
type CreateExpenseParams struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Category    string
}

// CreateExpense records an expense.
func (s *BillingService) CreateExpense(ctx context.Context, orgID string, params CreateExpenseParams) (*domain.Expense, error) {
	if params.Date.IsZero() {
		return nil, domain.NewValidationError("date", "required")
	}
	if params.Amount.IsNegative() {
		return nil, domain.NewValidationError("amount", "must not be negative")
	}

	exp := &domain.Expense{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Date:        params.Date,
		Description: params.Description,
		Amount:      params.Amount,
		Category:    params.Category,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateExpense(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// ListExpenses returns the tenant's expenses in creation order.
func (s *BillingService) ListExpenses(ctx context.Context, orgID string) ([]domain.Expense, error) {
	return s.store.ListExpenses(ctx, orgID)
}
