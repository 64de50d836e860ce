package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corebooks/corebooks/internal/ledger/adapter/memstore"
	"github.com/corebooks/corebooks/internal/ledger/domain"
	"github.com/corebooks/corebooks/internal/ledger/service"
	"github.com/corebooks/corebooks/internal/platform/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testToken = "test-token"

func setupRouter(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	h := NewHandler(
		service.NewAccountingService(store),
		service.NewReconciliationService(store, nil),
		service.NewBillingService(store),
		zap.NewNop(),
	)
	auth := middleware.NewAuth(map[string]string{testToken: "tester"})

	r := gin.New()
	group := r.Group("/api", auth.Identify(), middleware.Tenant())
	h.RegisterRoutes(group, auth)
	return r, store
}

type reqOpts struct {
	org   string
	token string
	body  string
	ctype string
}

func send(r *gin.Engine, method, path string, opts reqOpts) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(opts.body))
	if opts.org != "" {
		req.Header.Set(middleware.OrgHeader, opts.org)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	if opts.ctype == "" {
		opts.ctype = "application/json"
	}
	req.Header.Set("Content-Type", opts.ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func createAccount(t *testing.T, r *gin.Engine, org, code, typ string) domain.Account {
	t.Helper()
	w := send(r, http.MethodPost, "/api/accounts", reqOpts{
		org:  org,
		body: `{"code":"` + code + `","name":"Account ` + code + `","type":"` + typ + `"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	var a domain.Account
	decode(t, w, &a)
	return a
}

func TestMissingTenantHeader(t *testing.T) {
	r, _ := setupRouter(t)

	w := send(r, http.MethodGet, "/api/accounts", reqOpts{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/api/accounting/journal", reqOpts{body: "{}"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	created := createAccount(t, r, "org-a", "1000", "ASSET")
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	// Duplicate code in the same org conflicts.
	w := send(r, http.MethodPost, "/api/accounts", reqOpts{
		org:  "org-a",
		body: `{"code":"1000","name":"Dup","type":"ASSET"}`,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Same code in another org is fine.
	createAccount(t, r, "org-b", "1000", "ASSET")

	// Unknown account type is a validation failure with field detail.
	w = send(r, http.MethodPost, "/api/accounts", reqOpts{
		org:  "org-a",
		body: `{"code":"1100","name":"Bad","type":"WEIRD"}`,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var errBody struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, w, &errBody)
	assert.Contains(t, errBody.Fields, "type")

	// Deactivation needs an authenticated caller.
	w = send(r, http.MethodPost, "/api/accounts/"+created.ID+"/deactivate", reqOpts{org: "org-a"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(r, http.MethodPost, "/api/accounts/"+created.ID+"/deactivate", reqOpts{org: "org-a", token: testToken})
	require.Equal(t, http.StatusOK, w.Code)
	var deactivated domain.Account
	decode(t, w, &deactivated)
	assert.False(t, deactivated.IsActive)

	w = send(r, http.MethodPost, "/api/accounts/nope/deactivate", reqOpts{org: "org-a", token: testToken})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Listing only returns active accounts.
	w = send(r, http.MethodGet, "/api/accounts", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var listed []domain.Account
	decode(t, w, &listed)
	assert.Empty(t, listed)

	// Tenant isolation: org-b still sees its own account only.
	w = send(r, http.MethodGet, "/api/accounts", reqOpts{org: "org-b"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "org-b", listed[0].OrgID)
}

func TestJournalEndpointScenario(t *testing.T) {
	r, _ := setupRouter(t)

	cash := createAccount(t, r, "org-a", "1000", "ASSET")
	createAccount(t, r, "org-a", "4000", "INCOME")

	w := send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org: "org-a",
		body: `{"date":"2024-01-01","lines":[
			{"accountCode":"1000","debit":100,"credit":0},
			{"accountCode":"4000","debit":0,"credit":100}]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var created struct {
		Journal domain.JournalEntry `json:"journal"`
	}
	decode(t, w, &created)
	assert.NotEmpty(t, created.Journal.ID)
	require.Len(t, created.Journal.Lines, 2)

	w = send(r, http.MethodGet, "/api/accounting/trial-balance", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)

	var rows []struct {
		Account domain.Account  `json:"account"`
		Debit   decimal.Decimal `json:"debit"`
		Credit  decimal.Decimal `json:"credit"`
		Balance decimal.Decimal `json:"balance"`
	}
	decode(t, w, &rows)
	require.Len(t, rows, 2)
	require.Equal(t, cash.ID, rows[0].Account.ID)
	assert.True(t, rows[0].Debit.Equal(decimal.NewFromInt(100)), "debit = %s", rows[0].Debit)
	assert.True(t, rows[0].Credit.IsZero())
	assert.True(t, rows[0].Balance.Equal(decimal.NewFromInt(100)), "balance = %s", rows[0].Balance)
}

func TestJournalEndpointUnbalanced(t *testing.T) {
	r, store := setupRouter(t)

	createAccount(t, r, "org-a", "1000", "ASSET")
	createAccount(t, r, "org-a", "4000", "INCOME")

	w := send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org: "org-a",
		body: `{"date":"2024-01-01","lines":[
			{"accountCode":"1000","debit":150.00,"credit":0},
			{"accountCode":"4000","debit":0,"credit":149.99}]}`,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, "body: %s", w.Body.String())

	var errBody struct {
		TotalDebit  string `json:"totalDebit"`
		TotalCredit string `json:"totalCredit"`
	}
	decode(t, w, &errBody)
	assert.Equal(t, "150", errBody.TotalDebit)
	assert.Equal(t, "149.99", errBody.TotalCredit)

	entries, err := store.ListEntries(context.Background(), "org-a")
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected entry must not be persisted")
}

func TestJournalEndpointValidationAndConflicts(t *testing.T) {
	r, _ := setupRouter(t)

	createAccount(t, r, "org-a", "1000", "ASSET")
	createAccount(t, r, "org-a", "4000", "INCOME")

	// Fewer than two lines.
	w := send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org:  "org-a",
		body: `{"date":"2024-01-01","lines":[{"accountCode":"1000","debit":5,"credit":0}]}`,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Unparseable date.
	w = send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org:  "org-a",
		body: `{"date":"January 1st","lines":[{"accountCode":"1000","debit":5},{"accountCode":"4000","credit":5}]}`,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Duplicate ref.
	body := `{"date":"2024-01-01","ref":"INV-1","lines":[
		{"accountCode":"1000","debit":5,"credit":0},
		{"accountCode":"4000","debit":0,"credit":5}]}`
	w = send(r, http.MethodPost, "/api/accounting/journal", reqOpts{org: "org-a", body: body})
	require.Equal(t, http.StatusCreated, w.Code)
	w = send(r, http.MethodPost, "/api/accounting/journal", reqOpts{org: "org-a", body: body})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAccountBalanceEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	cash := createAccount(t, r, "org-a", "1000", "ASSET")
	createAccount(t, r, "org-a", "4000", "INCOME")

	w := send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org: "org-a",
		body: `{"date":"2024-01-10","lines":[
			{"accountCode":"1000","debit":100,"credit":0},
			{"accountCode":"4000","debit":0,"credit":100}]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = send(r, http.MethodGet, "/api/accounts/"+cash.ID+"/balances?period=2024-01", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var snap domain.BalanceSnapshot
	decode(t, w, &snap)
	assert.Equal(t, "2024-01", snap.Period)
	assert.True(t, snap.Closing.Equal(decimal.NewFromInt(100)), "closing = %s", snap.Closing)

	w = send(r, http.MethodGet, "/api/accounts/"+cash.ID+"/balances?period=bogus", reqOpts{org: "org-a"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestReconciliationEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	createAccount(t, r, "org-a", "1000", "ASSET")
	createAccount(t, r, "org-a", "5000", "EXPENSE")

	w := send(r, http.MethodPost, "/api/accounting/journal", reqOpts{
		org: "org-a",
		body: `{"date":"2024-01-05","lines":[
			{"accountCode":"5000","debit":42.50,"credit":0},
			{"accountCode":"1000","debit":0,"credit":42.50}]}`,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	csvBody := "date,description,amount,externalRef\n2024-01-05,COFFEE SUPPLIES,-42.50,bank_001\n2024-01-06,MYSTERY,-1.23,bank_002\n"
	w = send(r, http.MethodPost, "/api/reconciliation/import?currency=EUR", reqOpts{
		org: "org-a", body: csvBody, ctype: "text/csv",
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	var imported struct {
		Imported int `json:"imported"`
	}
	decode(t, w, &imported)
	assert.Equal(t, 2, imported.Imported)

	w = send(r, http.MethodPost, "/api/reconciliation/match", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var matched struct {
		Matched int `json:"matched"`
	}
	decode(t, w, &matched)
	assert.Equal(t, 1, matched.Matched)

	w = send(r, http.MethodGet, "/api/reconciliation", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var lines []domain.BankStatementLine
	decode(t, w, &lines)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Matched())
	assert.False(t, lines[1].Matched())
}

func TestReconciliationImportHeaderOnly(t *testing.T) {
	r, _ := setupRouter(t)

	w := send(r, http.MethodPost, "/api/reconciliation/import?currency=EUR", reqOpts{
		org: "org-a", body: "date,description,amount,externalRef\n", ctype: "text/csv",
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	// Empty imports still serialize as an array.
	assert.Contains(t, w.Body.String(), `"lines":[]`)
	assert.Contains(t, w.Body.String(), `"imported":0`)
}

func TestInvoiceEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	w := send(r, http.MethodPost, "/api/invoices", reqOpts{
		org:  "org-a",
		body: `{"number":"INV-1","customer":"Acme","amount":"99.95"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	var created struct {
		Invoice domain.Invoice `json:"invoice"`
	}
	decode(t, w, &created)
	assert.Equal(t, domain.InvoiceDraft, created.Invoice.Status)

	w = send(r, http.MethodPost, "/api/invoices/"+created.Invoice.ID+"/status", reqOpts{
		org: "org-a", body: `{"status":"SENT"}`,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &created)
	assert.Equal(t, domain.InvoiceSent, created.Invoice.Status)

	w = send(r, http.MethodPost, "/api/invoices/"+created.Invoice.ID+"/status", reqOpts{
		org: "org-a", body: `{"status":"LOST"}`,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = send(r, http.MethodPost, "/api/invoices/nope/status", reqOpts{
		org: "org-a", body: `{"status":"PAID"}`,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Cross-tenant invoice ids behave as missing.
	w = send(r, http.MethodPost, "/api/invoices/"+created.Invoice.ID+"/status", reqOpts{
		org: "org-b", body: `{"status":"PAID"}`,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodGet, "/api/invoices", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var listed []domain.Invoice
	decode(t, w, &listed)
	assert.Len(t, listed, 1)
}

func TestExpenseEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	w := send(r, http.MethodPost, "/api/expenses", reqOpts{
		org:  "org-a",
		body: `{"date":"2024-02-01","description":"Taxi","amount":"18.40","category":"travel"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	w = send(r, http.MethodGet, "/api/expenses", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var listed []domain.Expense
	decode(t, w, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "Taxi", listed[0].Description)
}

func TestTaxRuleAndBudgetEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	w := send(r, http.MethodPost, "/api/accounting/tax-rules", reqOpts{
		org:  "org-a",
		body: `{"name":"VAT","rate":"0.21","jurisdiction":"NL","effectiveFrom":"2024-01-01"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	w = send(r, http.MethodGet, "/api/accounting/tax-rules", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var rules []domain.TaxRule
	decode(t, w, &rules)
	require.Len(t, rules, 1)
	assert.Equal(t, "VAT", rules[0].Name)

	cash := createAccount(t, r, "org-a", "1000", "ASSET")
	w = send(r, http.MethodPost, "/api/accounting/budgets", reqOpts{
		org:  "org-a",
		body: `{"accountId":"` + cash.ID + `","period":"2024-01","amount":"500"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	w = send(r, http.MethodGet, "/api/accounting/budgets", reqOpts{org: "org-a"})
	require.Equal(t, http.StatusOK, w.Code)
	var budgets []domain.BudgetLine
	decode(t, w, &budgets)
	assert.Len(t, budgets, 1)
}
