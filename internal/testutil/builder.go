package testutil

import (
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// TxBuilder provides a fluent interface for test transactions.
//
// Example:
//
//	tx := testutil.NewTx("AWS", "-45.67", "2025-01-16").
//		Account("card").
//		Merchant("Amazon Web Services").
//		Build()
type TxBuilder struct {
	tx model.Transaction
}

// NewTx starts a transaction. amount must be a valid decimal.
func NewTx(description, amount, date string) *TxBuilder {
	return &TxBuilder{tx: model.Transaction{
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
	}}
}

// Account sets the account ID.
func (b *TxBuilder) Account(id string) *TxBuilder {
	b.tx.AccountID = id
	return b
}

// Source sets where the transaction came from.
func (b *TxBuilder) Source(source model.Source) *TxBuilder {
	b.tx.Source = source
	return b
}

// Merchant sets the provider merchant name.
func (b *TxBuilder) Merchant(name string) *TxBuilder {
	b.tx.ProviderMerchantName = model.StringPtr(name)
	return b
}

// Authorized sets the authorized date.
func (b *TxBuilder) Authorized(date string) *TxBuilder {
	b.tx.AuthorizedDate = model.StringPtr(date)
	return b
}

// Posted sets the posted date.
func (b *TxBuilder) Posted(date string) *TxBuilder {
	b.tx.PostedDate = model.StringPtr(date)
	return b
}

// Build returns the transaction.
func (b *TxBuilder) Build() model.Transaction {
	return b.tx
}

// Txn is NewTx(...).Build().
func Txn(description, amount, date string) model.Transaction {
	return NewTx(description, amount, date).Build()
}

// JanuaryLedger is a small stored ledger: two charges on 2025-01-15 and a
// subscription two months earlier.
func JanuaryLedger() []model.Transaction {
	return []model.Transaction{
		NewTx("Burrito Barn", "-22.77", "2025-01-15").Account("card").Source(model.SourcePlaid).Build(),
		NewTx("Amazon Web Services", "-45.67", "2025-01-15").Account("card").Source(model.SourcePlaid).Build(),
		NewTx("Music Stream", "-10.99", "2024-11-16").Account("card").Source(model.SourcePlaid).Build(),
	}
}

// JanuaryCardBatch is an incoming batch against JanuaryLedger: one
// deterministic duplicate, one abbreviation that needs verification and one
// new charge.
func JanuaryCardBatch() []model.Transaction {
	return []model.Transaction{
		NewTx("AplPay BURRITO BARN 1249RIVERDALE XX", "-22.77", "2025-01-15").Account("card").Source(model.SourceCSV).Build(),
		NewTx("AWS", "-45.67", "2025-01-16").Account("card").Source(model.SourceCSV).Build(),
		NewTx("Hardware Depot", "-301.10", "2025-01-17").Account("card").Source(model.SourceCSV).Build(),
	}
}
