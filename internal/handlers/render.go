package handlers

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/orgledger/backend/internal/models"
)

// displayAmount formats minor units for humans, e.g. 1050 USD -> "$10.50".
// Codes go-money does not know fall back to "<minor> <code>".
func displayAmount(amount int64, currency string) string {
	if money.GetCurrency(currency) == nil {
		return fmt.Sprintf("%d %s", amount, currency)
	}
	return money.New(amount, currency).Display()
}

type AccountView struct {
	models.Account
	BalanceDisplay string `json:"balanceDisplay"`
}

type PostingView struct {
	models.Posting
	AmountDisplay string `json:"amountDisplay,omitempty"`
}

type TransactionView struct {
	models.Transaction
	Postings []PostingView `json:"postings"`
}

type TransactionPageView struct {
	Transactions []TransactionView `json:"transactions"`
	NextCursor   string            `json:"nextCursor,omitempty"`
}

func newAccountView(a models.Account) AccountView {
	return AccountView{Account: a, BalanceDisplay: displayAmount(a.Balance, a.CurrencyCode)}
}

func newTransactionView(t models.Transaction) TransactionView {
	view := TransactionView{Transaction: t, Postings: make([]PostingView, 0, len(t.Postings))}
	for _, p := range t.Postings {
		pv := PostingView{Posting: p}
		if p.Account != nil {
			pv.AmountDisplay = displayAmount(p.Amount, p.Account.CurrencyCode)
		}
		view.Postings = append(view.Postings, pv)
	}
	return view
}
