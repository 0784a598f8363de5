// Package notification renders and sends the portal's transactional email.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portal/internal/metrics"
	"portal/internal/services/events"

	"go.uber.org/zap"
)

type Service struct {
	mailer  Mailer
	siteURL string
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewService(mailer Mailer, siteURL string, reg *metrics.Registry, logger *zap.Logger) *Service {
	return &Service{
		mailer:  mailer,
		siteURL: strings.TrimRight(siteURL, "/"),
		metrics: reg,
		logger:  logger.Named("notification"),
	}
}

// SendLoginCode emails an admin their one-time sign-in code. It is sent
// inline so the admin is not left waiting on the relay.
func (s *Service) SendLoginCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return s.send(ctx, TemplateLoginCode, to, "Your sign-in code: "+code, map[string]string{
		"code": code,
		"ttl":  formatTTL(ttl),
	}, fmt.Sprintf("Your sign-in code is %s. It expires in %s.", code, formatTTL(ttl)))
}

// HandleEvent is the relay handler for domain events.
func (s *Service) HandleEvent(ctx context.Context, e events.Event) error {
	d := e.Data
	if d == nil {
		d = map[string]string{}
	}

	switch e.Type {
	case events.KYBDecided:
		label := map[string]string{
			"approved":   "approved",
			"rejected":   "not approved",
			"needs_info": "paused, we need more information",
		}[d["decision"]]
		if label == "" {
			return fmt.Errorf("%w: unknown decision %q", events.ErrMalformed, d["decision"])
		}
		link := s.siteURL + "/onboarding/status"
		if d["decision"] == "approved" {
			link = s.siteURL + "/dashboard"
		}
		data := map[string]string{"decision_label": label, "notes": d["notes"], "link": link}
		return s.send(ctx, TemplateKYBDecided, e.To, "Your merchant verification was "+label, data,
			"Your merchant verification was "+label+". "+d["notes"])

	case events.OrderShipped:
		data := map[string]string{
			"number":          d["number"],
			"carrier":         d["carrier"],
			"tracking_number": d["tracking_number"],
			"link":            s.siteURL + "/orders/" + d["order_id"],
		}
		return s.send(ctx, TemplateShipped, e.To, "Order "+d["number"]+" has shipped", data,
			fmt.Sprintf("Order %s shipped with %s, tracking %s.", d["number"], d["carrier"], d["tracking_number"]))

	case events.WithdrawalCompleted:
		amount := FormatCentsString(d["amount_cents"])
		data := map[string]string{
			"amount":           amount,
			"destination":      d["destination"],
			"payout_reference": d["payout_reference"],
		}
		return s.send(ctx, TemplateWithdrawal, e.To, "Withdrawal of "+amount+" completed", data,
			fmt.Sprintf("We sent %s to %s.", amount, d["destination"]))

	case events.InvoiceCreated:
		amount := FormatCentsString(d["amount_cents"])
		data := map[string]string{"amount": amount, "hosted_url": d["hosted_url"], "due_date": d["due_date"]}
		return s.send(ctx, TemplateInvoice, e.To, "New invoice for "+amount, data,
			fmt.Sprintf("Pay your invoice for %s at %s", amount, d["hosted_url"]))

	case events.TeamInvited:
		data := map[string]string{"role": d["role"], "invited_by": d["invited_by"], "link": s.siteURL + "/admin/login"}
		if data["invited_by"] == "" {
			data["invited_by"] = "An owner"
		}
		return s.send(ctx, TemplateInvite, e.To, "You have been invited to the operations console", data,
			"Sign in at "+data["link"])
	}
	return fmt.Errorf("%w: unknown type %q", events.ErrMalformed, e.Type)
}

func (s *Service) send(ctx context.Context, tmpl, to, subject string, data map[string]string, text string) error {
	html, err := render(tmpl, data)
	if err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformed, err)
	}
	err = s.mailer.Send(ctx, Message{To: []string{to}, Subject: subject, HTML: html, Text: text})
	s.metrics.EmailSent(tmpl, err)
	if err != nil {
		s.logger.Warn("send email", zap.String("template", tmpl), zap.Error(err))
		return err
	}
	s.logger.Debug("email sent", zap.String("template", tmpl))
	return nil
}

func formatTTL(d time.Duration) string {
	if m := int(d.Minutes()); m > 0 {
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
