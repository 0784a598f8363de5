package models

// MerchantDashboardStats is the merchant home page summary.
type MerchantDashboardStats struct {
	OrdersByStatus      map[OrderStatus]int64 `json:"orders_by_status"`
	BalanceCents        int64                 `json:"balance_cents"`
	HeldCents           int64                 `json:"held_cents"`
	SpendLast30DCents   int64                 `json:"spend_last_30d_cents"`
	AwaitingFundsCount  int64                 `json:"awaiting_funds_count"`
	AwaitingFundsCents  int64                 `json:"awaiting_funds_cents"`
	AmountToSettleCents int64                 `json:"amount_to_settle_cents"`
	OpenInvoiceCents    int64                 `json:"open_invoice_cents"`
}

// AdminDashboardStats is the operations overview.
type AdminDashboardStats struct {
	MerchantsByKYB          map[KYBStatus]int64   `json:"merchants_by_kyb"`
	OrdersByStatus          map[OrderStatus]int64 `json:"orders_by_status"`
	PendingWithdrawals      int64                 `json:"pending_withdrawals"`
	PendingWithdrawalsCents int64                 `json:"pending_withdrawals_cents"`
	OpenInvoiceCents        int64                 `json:"open_invoice_cents"`
	LowStockProducts        int64                 `json:"low_stock_products"`
	WalletBalanceCents      int64                 `json:"wallet_balance_cents"`
}
