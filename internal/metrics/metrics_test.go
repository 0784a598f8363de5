package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareAndHandler(t *testing.T) {
	reg := New()

	app := fiber.New()
	app.Use(reg.Middleware())
	app.Get("/orders/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", reg.Handler())

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/orders/42", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.HTTPRequests.WithLabelValues("GET", "/orders/:id", "200")))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "portal_http_requests_total")
}

func TestDomainCounters(t *testing.T) {
	reg := New()
	reg.OrderStatus("paid")
	reg.WalletEntryWritten("order_debit")
	reg.WithdrawalStatus("completed")
	reg.EmailSent("kyb_decision", nil)
	reg.EmailSent("kyb_decision", errors.New("smtp down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Orders.WithLabelValues("paid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.WalletEntry.WithLabelValues("order_debit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Withdrawals.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Emails.WithLabelValues("kyb_decision", "error")))

	var nilReg *Registry
	assert.NotPanics(t, func() {
		nilReg.OrderStatus("paid")
		nilReg.EmailSent("x", nil)
	})
}
