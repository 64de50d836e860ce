package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request bodies. Field-level validation lives in the services so the
// caller always gets the same per-field detail regardless of transport.

type createAccountReq struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID string `json:"parentId"`
	Currency string `json:"currency"`
}

type journalLineReq struct {
	AccountCode string          `json:"accountCode"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo"`
	Currency    string          `json:"currency"`
}

type postJournalReq struct {
	Date  string           `json:"date"`
	Ref   string           `json:"ref"`
	Memo  string           `json:"memo"`
	Lines []journalLineReq `json:"lines"`
}

type createTaxRuleReq struct {
	Name          string          `json:"name"`
	Rate          decimal.Decimal `json:"rate"`
	Jurisdiction  string          `json:"jurisdiction"`
	EffectiveFrom string          `json:"effectiveFrom"`
	EffectiveTo   string          `json:"effectiveTo"`
}

type createBudgetLineReq struct {
	AccountID string          `json:"accountId"`
	Period    string          `json:"period"`
	Amount    decimal.Decimal `json:"amount"`
}

type createInvoiceReq struct {
	Number   string          `json:"number"`
	Customer string          `json:"customer"`
	Amount   decimal.Decimal `json:"amount"`
}

type setInvoiceStatusReq struct {
	Status string `json:"status"`
}

type createExpenseReq struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

// dateFormats are accepted on date fields, tried in order.
var dateFormats = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
