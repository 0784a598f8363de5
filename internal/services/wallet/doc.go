/*
Package wallet manages merchant prepaid balances and their ledger.

Every balance change happens inside a transaction holding the wallet row
lock and writes exactly one WalletEntry. An entry is identified by its type
and reference, so replaying a credit from an external system such as a
Stripe webhook or a Mercury invoice sync returns ErrDuplicateEntry instead
of crediting twice.

Usage:

	svc := wallet.NewService(walletRepo, txManager, metricsRegistry)

	// Credit a card top-up
	entry, err := svc.Credit(ctx, wallet.Operation{
	    MerchantID:  merchantID,
	    Type:        models.EntryCardTopup,
	    AmountCents: 5000,
	    Reference:   paymentIntentID,
	})

	// Reserve funds for a withdrawal
	_, err = svc.Hold(ctx, wallet.Operation{MerchantID: merchantID, AmountCents: 2500, Reference: "wd-12"})

Holds move money from the balance into HeldCents. Release moves it back and
CompleteHold drops it once the payout has left the business.

Error Handling:

- ErrInvalidAmount: amount is not positive
- ErrInsufficientBalance: a debit or hold exceeds the balance
- ErrWalletLocked: debits and holds on a locked wallet
- ErrDuplicateEntry: the (type, reference) pair was already recorded
- ErrWalletNotFound: the merchant has no wallet yet
*/
package wallet
