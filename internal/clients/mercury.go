package clients

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Mercury invoice states as reported by the accounts-receivable API.
const (
	MercuryStatusUnpaid     = "Unpaid"
	MercuryStatusProcessing = "Processing"
	MercuryStatusPaid       = "Paid"
	MercuryStatusCancelled  = "Cancelled"
)

const mercuryPayBaseURL = "https://app.mercury.com/pay/"

type MercuryLineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type mercuryCreateInvoice struct {
	CustomerID           string            `json:"customerId"`
	InvoiceDate          string            `json:"invoiceDate"`
	DueDate              string            `json:"dueDate"`
	LineItems            []MercuryLineItem `json:"lineItems"`
	PayerMemo            string            `json:"payerMemo,omitempty"`
	DestinationAccountID string            `json:"destinationAccountId"`
	SendEmailOption      string            `json:"sendEmailOption"`
	ACHDebitEnabled      bool              `json:"achDebitEnabled"`
	CreditCardEnabled    bool              `json:"creditCardEnabled"`
}

// MercuryInvoice is the remote view of an invoice.
type MercuryInvoice struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	DueDate       string  `json:"dueDate"`
	Slug          string  `json:"slug"`
}

// AmountCents converts the dollar amount Mercury reports.
func (i *MercuryInvoice) AmountCents() int64 {
	return int64(math.Round(i.Amount * 100))
}

// HostedURL is the page the payer opens to settle the invoice.
func (i *MercuryInvoice) HostedURL() string {
	if i.Slug == "" {
		return ""
	}
	return mercuryPayBaseURL + i.Slug
}

// CreateInvoiceInput describes one single-line wallet funding invoice.
type CreateInvoiceInput struct {
	CustomerID  string
	AmountCents int64
	Description string
	Memo        string
	DueDate     time.Time
}

// Mercury is a client for Mercury's accounts-receivable API.
type Mercury struct {
	rest      restClient
	accountID string
}

func NewMercury(baseURL, apiKey, accountID string, httpClient *http.Client, logger *zap.Logger) *Mercury {
	m := &Mercury{
		rest:      newRestClient("mercury", baseURL, httpClient, logger),
		accountID: accountID,
	}
	m.rest.authorize = withBearer(apiKey)
	return m
}

// CreateCustomer registers a payer and returns its id.
func (m *Mercury) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := m.rest.doJSON(ctx, http.MethodPost, "/ar/customers", map[string]string{
		"name":  name,
		"email": email,
	}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (m *Mercury) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*MercuryInvoice, error) {
	body := mercuryCreateInvoice{
		CustomerID:  in.CustomerID,
		InvoiceDate: time.Now().UTC().Format("2006-01-02"),
		DueDate:     in.DueDate.UTC().Format("2006-01-02"),
		LineItems: []MercuryLineItem{{
			Name:      in.Description,
			UnitPrice: float64(in.AmountCents) / 100,
			Quantity:  1,
		}},
		PayerMemo:            in.Memo,
		DestinationAccountID: m.accountID,
		SendEmailOption:      "SendNow",
		ACHDebitEnabled:      true,
	}
	var inv MercuryInvoice
	if err := m.rest.doJSON(ctx, http.MethodPost, "/ar/invoices", body, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (m *Mercury) GetInvoice(ctx context.Context, id string) (*MercuryInvoice, error) {
	var inv MercuryInvoice
	if err := m.rest.doJSON(ctx, http.MethodGet, "/ar/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (m *Mercury) CancelInvoice(ctx context.Context, id string) (*MercuryInvoice, error) {
	var inv MercuryInvoice
	if err := m.rest.doJSON(ctx, http.MethodPost, "/ar/invoices/"+url.PathEscape(id)+"/cancel", nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
