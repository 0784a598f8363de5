package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/middleware"
	"portal/internal/repositories"
	"portal/internal/services/catalog"
	"portal/internal/services/events"
	"portal/internal/services/order"
	"portal/internal/services/team"
	"portal/internal/services/wallet"
	"portal/internal/services/withdrawal"
	"portal/internal/testutil"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	return doWith(t, app, method, path, body, nil)
}

func doWith(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := fiber.New()
	app.Get("/up", NewHealthHandler("test", map[string]Pinger{"database": ok, "redis": ok}).Check)
	app.Get("/down", NewHealthHandler("test", map[string]Pinger{"database": ok, "redis": down}).Check)

	code, body := do(t, app, "GET", "/up", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body["status"])

	code, body = do(t, app, "GET", "/down", "")
	assert.Equal(t, 503, code)
	assert.Equal(t, "unavailable", body["services"].(map[string]interface{})["redis"])
}

type fakeReceiver struct {
	err     error
	payload string
	sig     string
}

func (f *fakeReceiver) HandleWebhook(_ context.Context, payload []byte, sig string) error {
	f.payload, f.sig = string(payload), sig
	return f.err
}

func TestWebhooks(t *testing.T) {
	stripe := &fakeReceiver{}
	mercury := &fakeReceiver{err: apperrors.ErrInvalidSignature}
	app := fiber.New()
	h := NewWebhookHandler(stripe, mercury)
	app.Post("/stripe", h.Stripe)
	app.Post("/mercury", h.Mercury)

	req := httptest.NewRequest("POST", "/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"id":"evt_1"}`, stripe.payload)
	assert.Equal(t, "t=1,v1=abc", stripe.sig)

	code, _ := do(t, app, "POST", "/mercury", `{}`)
	assert.Equal(t, 401, code)

	off := fiber.New()
	off.Post("/mercury", NewWebhookHandler(stripe, nil).Mercury)
	code, _ = do(t, off, "POST", "/mercury", `{}`)
	assert.Equal(t, 404, code)
}

type countingSettler struct{ calls int }

func (s *countingSettler) Settle(context.Context, uint) (int, error) {
	s.calls++
	return 0, nil
}

func asMerchant(m *models.Merchant) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(utils.LocalsMerchant, m)
		return c.Next()
	}
}

func asAdmin(id uint) fiber.Handler {
	return asRole(id, models.AdminRoleOwner)
}

func asRole(id uint, role models.AdminRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(utils.LocalsAdminClaims, &models.AdminClaims{
			AdminID:     id,
			Role:        role,
			Permissions: models.GetDefaultPermissions(role),
		})
		return c.Next()
	}
}

func TestWithdrawalAndWalletRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	tx := repositories.NewTxManager(db)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), tx, nil)
	settler := &countingSettler{}
	wsvc := withdrawal.NewService(withdrawal.Deps{
		Withdrawals: repositories.NewWithdrawalRepository(db),
		Merchants:   repositories.NewMerchantRepository(db),
		Wallets:     wallets,
		Tx:          tx,
		Settler:     settler,
	})
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 10000)

	wh := NewWithdrawalHandler(wsvc)
	walletH := NewWalletHandler(wallets, nil, settler)

	app := fiber.New()
	merchant := app.Group("/api", asMerchant(m))
	merchant.Get("/wallet", walletH.GetWallet)
	merchant.Get("/wallet/entries", walletH.Entries)
	merchant.Post("/withdrawals", wh.Request)
	merchant.Get("/withdrawals", wh.ListMine)
	admin := app.Group("/admin", asAdmin(1))
	admin.Post("/withdrawals/:id/approve", wh.Approve)
	admin.Post("/withdrawals/:id/complete", wh.Complete)
	admin.Post("/wallets/:id/adjust", walletH.Adjust)

	code, body := do(t, app, "POST", "/api/withdrawals", `{"amount_cents":20000,"destination":"ACH 1234"}`)
	assert.Equal(t, apperrors.ErrInsufficientBalance.Status, code, body)

	code, body = do(t, app, "POST", "/api/withdrawals", `{"amount_cents":0}`)
	assert.Equal(t, 400, code, body)

	code, body = do(t, app, "POST", "/api/withdrawals", `{"amount_cents":4000,"destination":"ACH 1234"}`)
	require.Equal(t, 201, code, body)
	wid := strconv.FormatFloat(body["id"].(float64), 'f', 0, 64)

	code, body = do(t, app, "GET", "/api/wallet", "")
	require.Equal(t, 200, code)
	assert.EqualValues(t, 6000, body["balance_cents"])
	assert.EqualValues(t, 4000, body["held_cents"])

	code, _ = do(t, app, "POST", "/admin/withdrawals/"+wid+"/complete", `{"payout_reference":"ach_1"}`)
	assert.Equal(t, 409, code)

	code, _ = do(t, app, "POST", "/admin/withdrawals/"+wid+"/approve", "")
	require.Equal(t, 200, code)
	code, body = do(t, app, "POST", "/admin/withdrawals/"+wid+"/complete", `{"payout_reference":"ach_1"}`)
	require.Equal(t, 200, code, body)
	assert.Equal(t, "completed", body["status"])

	code, _ = do(t, app, "POST", "/admin/wallets/"+strconv.FormatUint(uint64(m.ID), 10)+"/adjust", `{"amount_cents":2500,"reason":"goodwill"}`)
	require.Equal(t, 201, code)
	assert.Equal(t, 1, settler.calls)

	code, body = do(t, app, "GET", "/api/wallet/entries?type=adjustment", "")
	require.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["meta"].(map[string]interface{})["total_items"])
}

func TestIDParam(t *testing.T) {
	app := fiber.New()
	app.Get("/x/:id", func(c *fiber.Ctx) error {
		id, err := idParam(c, "id")
		if err != nil {
			return utils.Fail(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	})
	code, _ := do(t, app, "GET", "/x/abc", "")
	assert.Equal(t, 400, code)
	code, _ = do(t, app, "GET", "/x/0", "")
	assert.Equal(t, 400, code)
	code, body := do(t, app, "GET", "/x/7", "")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, 7, body["id"])
}

const orderBody = `{"items":[{"product_id":%d,"quantity":2}],
	"ship_to":{"name":"Jane Buyer","line1":"5 Elm St","city":"Denver","state":"CO","postal_code":"80202"}}`

func TestOrderRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	c, _ := testutil.NewCache(t)
	tx := repositories.NewTxManager(db)
	products := repositories.NewProductRepository(db)
	merchants := repositories.NewMerchantRepository(db)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), tx, nil)
	cat := catalog.NewService(catalog.Deps{
		Products:  products,
		Pricing:   repositories.NewPricingRepository(db),
		Lots:      repositories.NewLotRepository(db),
		Merchants: merchants,
		Tx:        tx,
	})
	svc := order.NewService(order.Deps{
		Orders:    repositories.NewOrderRepository(db),
		Products:  products,
		Merchants: merchants,
		Wallets:   wallets,
		Catalog:   cat,
		Tx:        tx,
		Cache:     c,
	})
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 10000)
	p := testutil.SeedProduct(t, db, "BPC-157", 2500, 10)

	h := NewOrderHandler(svc)
	app := fiber.New()
	app.Post("/api/orders", asMerchant(m), h.Create)
	app.Post("/admin/orders/:id/cancel", asRole(2, models.AdminRoleSupport), middleware.HasPermission(models.PermissionOrdersWrite), h.Cancel)

	body := fmt.Sprintf(orderBody, p.ID)
	key := map[string]string{headerIdempotencyKey: "order-1"}
	code, first := doWith(t, app, "POST", "/api/orders", body, key)
	require.Equal(t, 201, code, first)
	assert.Equal(t, "paid", first["status"])

	code, again := doWith(t, app, "POST", "/api/orders", body, key)
	require.Equal(t, 200, code, again)
	assert.Equal(t, first["id"], again["id"])
	assert.Equal(t, first["number"], again["number"])

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	code, body2 := doWith(t, app, "POST", "/api/orders", body, map[string]string{headerIdempotencyKey: strings.Repeat("k", 129)})
	assert.Equal(t, 400, code)
	assert.Contains(t, body2["error"], "Idempotency-Key")

	code, envelope := do(t, app, "POST", "/api/orders", fmt.Sprintf(orderBody, 9999))
	assert.Equal(t, apperrors.ErrProductNotFound.Status, code)
	assert.Equal(t, apperrors.ErrProductNotFound.Code, envelope["code"])
	assert.Equal(t, "product 9999 not found", envelope["error"])

	code, invalid := do(t, app, "POST", "/api/orders", `{"items":[]}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, apperrors.ErrInvalidRequest.Code, invalid["code"])
	assert.Contains(t, invalid, "details")

	code, denied := do(t, app, "POST", "/admin/orders/1/cancel", `{"reason":"x"}`)
	assert.Equal(t, 403, code)
	assert.Equal(t, apperrors.ErrForbidden.Code, denied["code"])
}

func TestCatalogRoutesRequireWrite(t *testing.T) {
	db := testutil.NewDB(t)
	tx := repositories.NewTxManager(db)
	h := NewCatalogHandler(catalog.NewService(catalog.Deps{
		Products:  repositories.NewProductRepository(db),
		Pricing:   repositories.NewPricingRepository(db),
		Lots:      repositories.NewLotRepository(db),
		Merchants: repositories.NewMerchantRepository(db),
		Tx:        tx,
	}))
	mount := func(role models.AdminRole) *fiber.App {
		app := fiber.New()
		products := app.Group("/admin/products", asRole(1, role))
		products.Get("/", middleware.HasPermission(models.PermissionCatalogRead), h.ListProducts)
		products.Post("/", middleware.HasPermission(models.PermissionCatalogWrite), h.CreateProduct)
		return app
	}
	product := `{"sku":"TB-500","name":"TB-500 5mg","base_price_cents":4000,"stock_on_hand":3}`

	support := mount(models.AdminRoleSupport)
	code, body := do(t, support, "POST", "/admin/products", product)
	assert.Equal(t, 403, code)
	assert.Equal(t, apperrors.ErrForbidden.Code, body["code"])
	code, _ = do(t, support, "GET", "/admin/products", "")
	assert.Equal(t, 200, code)

	ops := mount(models.AdminRoleOps)
	code, body = do(t, ops, "POST", "/admin/products", product)
	require.Equal(t, 201, code, body)
	assert.Equal(t, "TB-500", body["sku"])

	code, body = do(t, ops, "POST", "/admin/products", `{"sku":"","name":""}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, apperrors.ErrInvalidRequest.Code, body["code"])
}

func TestTeamRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	svc := team.NewService(repositories.NewAdminUserRepository(db), repositories.NewTxManager(db), &events.Recorder{}, nil)
	owner := testutil.SeedAdmin(t, db, "owner@portal.test", models.AdminRoleOwner)
	admin := testutil.SeedAdmin(t, db, "admin@portal.test", models.AdminRoleAdmin)
	ops := testutil.SeedAdmin(t, db, "ops@portal.test", models.AdminRoleOps)
	h := NewTeamHandler(svc)

	mount := func(id uint, role models.AdminRole) *fiber.App {
		app := fiber.New()
		g := app.Group("/admin/team", asRole(id, role))
		g.Get("/", middleware.HasPermission(models.PermissionTeamRead), h.List)
		g.Post("/", middleware.HasPermission(models.PermissionTeamWrite), h.Invite)
		g.Patch("/:id", middleware.HasPermission(models.PermissionTeamWrite), h.Update)
		g.Delete("/:id", middleware.HasPermission(models.PermissionTeamWrite), h.Disable)
		return app
	}
	invite := `{"email":"new@portal.test","name":"New","role":"support"}`

	asOps := mount(ops.ID, models.AdminRoleOps)
	code, _ := do(t, asOps, "GET", "/admin/team", "")
	assert.Equal(t, 200, code)
	code, body := do(t, asOps, "POST", "/admin/team", invite)
	assert.Equal(t, 403, code)
	assert.Equal(t, apperrors.ErrForbidden.Code, body["code"])
	code, _ = do(t, asOps, "DELETE", "/admin/team/"+strconv.FormatUint(uint64(admin.ID), 10), "")
	assert.Equal(t, 403, code)

	asAdminRole := mount(admin.ID, models.AdminRoleAdmin)
	code, body = do(t, asAdminRole, "POST", "/admin/team", invite)
	require.Equal(t, 201, code, body)
	assert.Equal(t, "invited", body["status"])

	code, body = do(t, asAdminRole, "PATCH", "/admin/team/"+strconv.FormatUint(uint64(owner.ID), 10), `{"role":"ops"}`)
	assert.Equal(t, apperrors.ErrOwnerGrant.Status, code)
	assert.Equal(t, apperrors.ErrOwnerGrant.Code, body["code"])

	asOwner := mount(owner.ID, models.AdminRoleOwner)
	code, body = do(t, asOwner, "DELETE", "/admin/team/"+strconv.FormatUint(uint64(ops.ID), 10), "")
	require.Equal(t, 200, code, body)
	assert.Equal(t, "disabled", body["status"])

	code, body = do(t, asOwner, "PATCH", "/admin/team/"+strconv.FormatUint(uint64(owner.ID), 10), `{"role":"admin"}`)
	assert.Equal(t, apperrors.ErrSelfModification.Status, code)
	assert.Equal(t, apperrors.ErrSelfModification.Code, body["code"])
}
