package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/corebooks/corebooks/internal/ledger/domain"
	"github.com/corebooks/corebooks/internal/ledger/service"
	"github.com/corebooks/corebooks/internal/platform/middleware"
)

// Handler exposes the ledger services over HTTP.
type Handler struct {
	accounting *service.AccountingService
	reconcile  *service.ReconciliationService
	billing    *service.BillingService
	logger     *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	accounting *service.AccountingService,
	reconcile *service.ReconciliationService,
	billing *service.BillingService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		accounting: accounting,
		reconcile:  reconcile,
		billing:    billing,
		logger:     logger,
	}
}

// RegisterRoutes wires the API under r. The group is expected to already
// run tenant resolution; auth guards the routes that demand an identity.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Auth) {
	r.GET("/accounts", h.listAccounts)
	r.POST("/accounts", h.createAccount)
	r.POST("/accounts/:id/deactivate", auth.Require(), h.deactivateAccount)
	r.GET("/accounts/:id/balances", h.accountBalance)

	r.POST("/accounting/journal", h.postJournal)
	r.GET("/accounting/journal", h.listJournal)
	r.GET("/accounting/trial-balance", h.trialBalance)
	r.GET("/accounting/tax-rules", h.listTaxRules)
	r.POST("/accounting/tax-rules", h.createTaxRule)
	r.GET("/accounting/budgets", h.listBudgetLines)
	r.POST("/accounting/budgets", h.createBudgetLine)

	r.POST("/reconciliation/import", h.importStatement)
	r.POST("/reconciliation/match", h.autoMatch)
	r.GET("/reconciliation", h.listStatement)

	r.GET("/invoices", h.listInvoices)
	r.POST("/invoices", h.createInvoice)
	r.POST("/invoices/:id/status", h.setInvoiceStatus)

	r.GET("/expenses", h.listExpenses)
	r.POST("/expenses", h.createExpense)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}

	var uerr *domain.UnbalancedError
	if errors.As(err, &uerr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "unbalanced journal entry",
			"totalDebit":  uerr.TotalDebit.String(),
			"totalCredit": uerr.TotalCredit.String(),
		})
		return
	}

	var derr *domain.DuplicateKeyError
	if errors.As(err, &derr) {
		c.JSON(http.StatusConflict, gin.H{"error": derr.Error()})
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, domain.ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	h.logger.Error("request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
}

// ---- accounts ----

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.accounting.ListAccounts(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	active := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.IsActive {
			active = append(active, a)
		}
	}
	c.JSON(http.StatusOK, active)
}

func (h *Handler) createAccount(c *gin.Context) {
	var req createAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	account, err := h.accounting.AddAccount(c.Request.Context(), middleware.OrgID(c), service.AddAccountParams{
		Code:     req.Code,
		Name:     req.Name,
		Type:     domain.AccountType(req.Type),
		ParentID: req.ParentID,
		Currency: req.Currency,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *Handler) deactivateAccount(c *gin.Context) {
	account, err := h.accounting.DeactivateAccount(c.Request.Context(), middleware.OrgID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) accountBalance(c *gin.Context) {
	snap, err := h.accounting.BalanceSnapshot(
		c.Request.Context(), middleware.OrgID(c), c.Param("id"), c.Query("period"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ---- journal ----

func (h *Handler) postJournal(c *gin.Context) {
	var req postJournalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		h.writeError(c, domain.NewValidationError("date", "must be formatted YYYY-MM-DD"))
		return
	}

	params := service.PostEntryParams{
		Date:  date,
		Ref:   req.Ref,
		Memo:  req.Memo,
		Lines: make([]service.EntryLineParams, len(req.Lines)),
	}
	for i, line := range req.Lines {
		params.Lines[i] = service.EntryLineParams{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        line.Memo,
			Currency:    line.Currency,
		}
	}

	entry, err := h.accounting.PostJournalEntry(
		c.Request.Context(), middleware.OrgID(c), middleware.ActorID(c), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"journal": entry})
}

func (h *Handler) listJournal(c *gin.Context) {
	entries, err := h.accounting.ListJournal(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) trialBalance(c *gin.Context) {
	var upTo *time.Time
	if raw := c.Query("upTo"); raw != "" {
		t, ok := parseDate(raw)
		if !ok {
			h.writeError(c, domain.NewValidationError("upTo", "must be formatted YYYY-MM-DD"))
			return
		}
		upTo = &t
	}

	rows, err := h.accounting.TrialBalance(c.Request.Context(), middleware.OrgID(c), upTo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ---- tax rules and budgets ----

func (h *Handler) createTaxRule(c *gin.Context) {
	var req createTaxRuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	rule := domain.TaxRule{
		Name:         req.Name,
		Rate:         req.Rate,
		Jurisdiction: req.Jurisdiction,
	}
	if req.EffectiveFrom != "" {
		t, ok := parseDate(req.EffectiveFrom)
		if !ok {
			h.writeError(c, domain.NewValidationError("effectiveFrom", "must be formatted YYYY-MM-DD"))
			return
		}
		rule.EffectiveFrom = t
	}
	if req.EffectiveTo != "" {
		t, ok := parseDate(req.EffectiveTo)
		if !ok {
			h.writeError(c, domain.NewValidationError("effectiveTo", "must be formatted YYYY-MM-DD"))
			return
		}
		rule.EffectiveTo = &t
	}

	created, err := h.accounting.AddTaxRule(c.Request.Context(), middleware.OrgID(c), rule)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listTaxRules(c *gin.Context) {
	rules, err := h.accounting.ListTaxRules(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) createBudgetLine(c *gin.Context) {
	var req createBudgetLineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	created, err := h.accounting.AddBudgetLine(c.Request.Context(), middleware.OrgID(c), domain.BudgetLine{
		AccountID: req.AccountID,
		Period:    req.Period,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listBudgetLines(c *gin.Context) {
	lines, err := h.accounting.ListBudgetLines(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

// ---- reconciliation ----

func (h *Handler) importStatement(c *gin.Context) {
	lines, err := h.reconcile.ImportLines(
		c.Request.Context(), middleware.OrgID(c), c.Request.Body, c.Query("currency"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(lines), "lines": lines})
}

func (h *Handler) autoMatch(c *gin.Context) {
	matched, err := h.reconcile.AutoMatch(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

func (h *Handler) listStatement(c *gin.Context) {
	lines, err := h.reconcile.List(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

// ---- invoices ----

func (h *Handler) createInvoice(c *gin.Context) {
	var req createInvoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	inv, err := h.billing.CreateInvoice(c.Request.Context(), middleware.OrgID(c), service.CreateInvoiceParams{
		Number:   req.Number,
		Customer: req.Customer,
		Amount:   req.Amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": inv})
}

func (h *Handler) listInvoices(c *gin.Context) {
	invoices, err := h.billing.ListInvoices(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) setInvoiceStatus(c *gin.Context) {
	var req setInvoiceStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	inv, err := h.billing.SetInvoiceStatus(
		c.Request.Context(), middleware.OrgID(c), c.Param("id"), domain.InvoiceStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv})
}

// ---- expenses ----

func (h *Handler) createExpense(c *gin.Context) {
	var req createExpenseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}

	date, ok := parseDate(req.Date)
	if !ok {
		h.writeError(c, domain.NewValidationError("date", "must be formatted YYYY-MM-DD"))
		return
	}

	exp, err := h.billing.CreateExpense(c.Request.Context(), middleware.OrgID(c), service.CreateExpenseParams{
		Date:        date,
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (h *Handler) listExpenses(c *gin.Context) {
	expenses, err := h.billing.ListExpenses(c.Request.Context(), middleware.OrgID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, expenses)
}
