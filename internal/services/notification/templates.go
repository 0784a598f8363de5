package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
)

const (
	TemplateLoginCode  = "admin_login_code"
	TemplateKYBDecided = "kyb_decision"
	TemplateShipped    = "order_shipped"
	TemplateWithdrawal = "withdrawal_completed"
	TemplateInvoice    = "invoice_created"
	TemplateInvite     = "team_invite"
)

const layout = `<!doctype html>
<html><body style="font-family:-apple-system,Helvetica,Arial,sans-serif;color:#111">
<div style="max-width:560px;margin:0 auto;padding:24px">
{{template "body" .}}
<p style="color:#888;font-size:12px;margin-top:32px">Sent by the merchant portal. Questions? Reply to this email.</p>
</div></body></html>`

var bodies = map[string]string{
	TemplateLoginCode: `<h2>Your sign-in code</h2>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.code}}</strong></p>
<p>The code expires in {{.ttl}}. If you did not try to sign in, ignore this email.</p>`,

	TemplateKYBDecided: `<h2>Your verification was {{.decision_label}}</h2>
{{if .notes}}<p>Notes from our team: {{.notes}}</p>{{end}}
<p><a href="{{.link}}">Open your account</a></p>`,

	TemplateShipped: `<h2>Order {{.number}} has shipped</h2>
<p>Carrier: {{.carrier}}<br>Tracking number: <strong>{{.tracking_number}}</strong></p>
<p><a href="{{.link}}">View the order</a></p>`,

	TemplateWithdrawal: `<h2>Your withdrawal is on its way</h2>
<p>We sent {{.amount}} to {{.destination}}.{{if .payout_reference}} Reference: {{.payout_reference}}.{{end}}</p>`,

	TemplateInvoice: `<h2>New invoice for {{.amount}}</h2>
<p>Funds are added to your wallet once the invoice is paid.{{if .due_date}} Due {{.due_date}}.{{end}}</p>
<p><a href="{{.hosted_url}}">Pay invoice</a></p>`,

	TemplateInvite: `<h2>You have been invited to the operations console</h2>
<p>{{.invited_by}} added you as <strong>{{.role}}</strong>.</p>
<p><a href="{{.link}}">Sign in</a> with this email address to get started.</p>`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New("layout").Parse(layout))
		template.Must(t.New("body").Parse(body))
		out[name] = t
	}
	return out
}()

func render(name string, data map[string]string) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// FormatCents renders an amount in cents as dollars, e.g. "$1,234.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "," + whole[i:]
	}
	return fmt.Sprintf("%s$%s.%02d", sign, whole, cents%100)
}

// FormatCentsString is FormatCents for an event field. Unparsable input is
// returned unchanged.
func FormatCentsString(s string) string {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return FormatCents(n)
}
