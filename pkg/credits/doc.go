// Package credits implements the credit wallet: one aggregate balance
// per account backed by individual expiring credit packages and an
// append-only ledger.
//
// Every balance mutation goes through a wallet-serialized unit of work
// (Store.WithWalletTx) and writes exactly one ledger entry per logical
// movement, so the ledger can always be replayed to reproduce the
// current balance. The wallet invariant
//
//	TotalBalance = MonthlyBalance + PurchasedBalance + BonusBalance
//
// must hold after every commit.
package credits
