package models

// Admin permissions
const (
	PermissionDashboardRead   = "dashboard:read"
	PermissionMerchantsRead   = "merchants:read"
	PermissionMerchantsReview = "merchants:review"
	PermissionMerchantsWrite  = "merchants:write"
	PermissionCatalogRead     = "catalog:read"
	PermissionCatalogWrite    = "catalog:write"
	PermissionInventoryWrite  = "inventory:write"
	PermissionPricingWrite    = "pricing:write"
	PermissionOrdersRead      = "orders:read"
	PermissionOrdersWrite     = "orders:write"
	PermissionWalletsRead     = "wallets:read"
	PermissionWalletsAdjust   = "wallets:adjust"
	PermissionWithdrawalsRead = "withdrawals:read"
	PermissionWithdrawalsPay  = "withdrawals:write"
	PermissionInvoicesRead    = "invoices:read"
	PermissionInvoicesWrite   = "invoices:write"
	PermissionTeamRead        = "team:read"
	PermissionTeamWrite       = "team:write"
)

var allPermissions = []string{
	PermissionDashboardRead,
	PermissionMerchantsRead,
	PermissionMerchantsReview,
	PermissionMerchantsWrite,
	PermissionCatalogRead,
	PermissionCatalogWrite,
	PermissionInventoryWrite,
	PermissionPricingWrite,
	PermissionOrdersRead,
	PermissionOrdersWrite,
	PermissionWalletsRead,
	PermissionWalletsAdjust,
	PermissionWithdrawalsRead,
	PermissionWithdrawalsPay,
	PermissionInvoicesRead,
	PermissionInvoicesWrite,
	PermissionTeamRead,
	PermissionTeamWrite,
}

// GetDefaultPermissions returns the permissions granted to an admin role.
func GetDefaultPermissions(role AdminRole) []string {
	switch role {
	case AdminRoleOwner, AdminRoleAdmin:
		out := make([]string, len(allPermissions))
		copy(out, allPermissions)
		return out
	case AdminRoleOps:
		return []string{
			PermissionDashboardRead,
			PermissionMerchantsRead,
			PermissionCatalogRead,
			PermissionCatalogWrite,
			PermissionInventoryWrite,
			PermissionOrdersRead,
			PermissionOrdersWrite,
			PermissionWalletsRead,
			PermissionWithdrawalsRead,
			PermissionInvoicesRead,
			PermissionTeamRead,
		}
	case AdminRoleSupport:
		return []string{
			PermissionDashboardRead,
			PermissionMerchantsRead,
			PermissionCatalogRead,
			PermissionOrdersRead,
			PermissionWalletsRead,
			PermissionWithdrawalsRead,
			PermissionInvoicesRead,
			PermissionTeamRead,
		}
	default:
		return []string{}
	}
}
