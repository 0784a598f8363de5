package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"portal/internal/metrics"
	"portal/internal/services/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestSendLoginCode(t *testing.T) {
	mailer := new(MockMailer)
	reg := metrics.New()
	svc := NewService(mailer, "https://portal.test/", reg, zap.NewNop())

	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
		return m.To[0] == "ops@portal.test" &&
			assert.Contains(t, m.HTML, "482913") &&
			assert.Contains(t, m.HTML, "10 minutes")
	})).Return(nil).Once()

	require.NoError(t, svc.SendLoginCode(context.Background(), "ops@portal.test", "482913", 10*time.Minute))
	mailer.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Emails.WithLabelValues(TemplateLoginCode, "ok")))
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    events.Event
		contains []string
	}{
		{
			name:     "kyb approved",
			event:    events.Event{Type: events.KYBDecided, To: "m@test.dev", Data: map[string]string{"decision": "approved"}},
			contains: []string{"approved", "https://portal.test/dashboard"},
		},
		{
			name:     "kyb needs info",
			event:    events.Event{Type: events.KYBDecided, To: "m@test.dev", Data: map[string]string{"decision": "needs_info", "notes": "EIN letter is blurry"}},
			contains: []string{"EIN letter is blurry", "/onboarding/status"},
		},
		{
			name:     "order shipped",
			event:    events.Event{Type: events.OrderShipped, To: "m@test.dev", Data: map[string]string{"number": "ORD-1", "carrier": "ups", "tracking_number": "1Z999", "order_id": "7"}},
			contains: []string{"ORD-1", "1Z999", "/orders/7"},
		},
		{
			name:     "withdrawal completed",
			event:    events.Event{Type: events.WithdrawalCompleted, To: "m@test.dev", Data: map[string]string{"amount_cents": "123450", "destination": "Chase ****1234"}},
			contains: []string{"$1,234.50", "Chase ****1234"},
		},
		{
			name:     "invoice created",
			event:    events.Event{Type: events.InvoiceCreated, To: "m@test.dev", Data: map[string]string{"amount_cents": "50000", "hosted_url": "https://app.mercury.com/pay/abc"}},
			contains: []string{"$500.00", "https://app.mercury.com/pay/abc"},
		},
		{
			name:     "team invite",
			event:    events.Event{Type: events.TeamInvited, To: "new@portal.test", Data: map[string]string{"role": "ops"}},
			contains: []string{"ops", "/admin/login"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)
			svc := NewService(mailer, "https://portal.test", nil, zap.NewNop())
			var sent Message
			mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				sent = args.Get(1).(Message)
			}).Return(nil)

			require.NoError(t, svc.HandleEvent(context.Background(), tt.event))
			assert.Equal(t, []string{tt.event.To}, sent.To)
			for _, s := range tt.contains {
				assert.Contains(t, sent.HTML, s)
			}
		})
	}
}

func TestHandleEventErrors(t *testing.T) {
	mailer := new(MockMailer)
	svc := NewService(mailer, "https://portal.test", nil, zap.NewNop())

	err := svc.HandleEvent(context.Background(), events.Event{Type: "nope", To: "a@test.dev"})
	assert.True(t, errors.Is(err, events.ErrMalformed))

	err = svc.HandleEvent(context.Background(), events.Event{Type: events.KYBDecided, To: "a@test.dev", Data: map[string]string{"decision": "maybe"}})
	assert.True(t, errors.Is(err, events.ErrMalformed))

	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("provider down"))
	err = svc.HandleEvent(context.Background(), events.Event{Type: events.TeamInvited, To: "a@test.dev"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, events.ErrMalformed), "delivery failures are retried")
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$0.05", FormatCents(5))
	assert.Equal(t, "$1,000,000.00", FormatCents(100000000))
	assert.Equal(t, "-$12.30", FormatCents(-1230))
	assert.Equal(t, "abc", FormatCentsString("abc"))
}
