package wallet

import "portal/internal/models"

// Operation describes one ledger movement. AmountCents is always positive;
// the direction comes from the method called.
type Operation struct {
	MerchantID  uint
	Type        models.EntryType
	AmountCents int64
	Reference   string
	Memo        string
	Metadata    models.JSON
}

type movement struct {
	balanceDelta int64
	heldDelta    int64
	// guarded movements are refused on a locked wallet.
	guarded bool
}
