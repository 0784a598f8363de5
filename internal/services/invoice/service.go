// Package invoice bills merchants through Mercury and credits their wallet
// when an invoice is paid.
package invoice

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/wallet"
	"portal/internal/utils"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "Mercury-Signature"

const dueDateLayout = "2006-01-02"

// Gateway is satisfied by *clients.Mercury.
type Gateway interface {
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	CreateInvoice(ctx context.Context, in clients.CreateInvoiceInput) (*clients.MercuryInvoice, error)
	GetInvoice(ctx context.Context, id string) (*clients.MercuryInvoice, error)
	CancelInvoice(ctx context.Context, id string) (*clients.MercuryInvoice, error)
}

type Settler interface {
	Settle(ctx context.Context, merchantID uint) (int, error)
}

type CreateInput struct {
	MerchantID  uint   `json:"merchant_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Memo        string `json:"memo" validate:"max=255"`
}

type Deps struct {
	Invoices      repositories.InvoiceRepository
	Merchants     repositories.MerchantRepository
	Wallets       wallet.Service
	Tx            repositories.TxManager
	Gateway       Gateway
	Settler       Settler
	Events        events.Publisher
	WebhookSecret string
	Logger        *zap.Logger
}

type Service struct {
	Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{Deps: d, logger: d.Logger.Named("invoice"), now: time.Now}
}

// localStatus maps a Mercury status onto ours. Unknown states report false.
func localStatus(remote string, due, now time.Time) (models.InvoiceStatus, bool) {
	switch remote {
	case clients.MercuryStatusUnpaid, clients.MercuryStatusProcessing:
		if !due.IsZero() && now.After(due.Add(24*time.Hour)) {
			return models.InvoiceOverdue, true
		}
		return models.InvoiceOpen, true
	case clients.MercuryStatusPaid:
		return models.InvoicePaid, true
	case clients.MercuryStatusCancelled:
		return models.InvoiceCancelled, true
	}
	return "", false
}

// Create bills an approved merchant. The Mercury customer is created on
// first use and remembered on the merchant.
func (s *Service) Create(ctx context.Context, adminID uint, in CreateInput) (*models.MercuryInvoice, error) {
	if s.Gateway == nil {
		return nil, apperrors.ErrInvoicingUnavailable
	}
	if in.AmountCents <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	due, err := time.Parse(dueDateLayout, in.DueDate)
	if err != nil {
		return nil, apperrors.ErrInvalidRequest.WithMessage("due_date must be YYYY-MM-DD")
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if due.Before(today) {
		return nil, apperrors.ErrInvalidRequest.WithMessage("due_date is in the past")
	}

	m, err := s.Merchants.GetByID(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}
	if !m.IsApproved() {
		return nil, apperrors.ErrMerchantNotApproved
	}
	if m.MercuryCustomerID == "" {
		id, err := s.Gateway.CreateCustomer(ctx, m.DisplayName(), m.Email)
		if err != nil {
			return nil, err
		}
		m.MercuryCustomerID = id
		if err := s.Merchants.Update(ctx, m); err != nil {
			return nil, err
		}
	}

	memo := strings.TrimSpace(in.Memo)
	remote, err := s.Gateway.CreateInvoice(ctx, clients.CreateInvoiceInput{
		CustomerID:  m.MercuryCustomerID,
		AmountCents: in.AmountCents,
		Description: "Wallet funding for " + m.DisplayName(),
		Memo:        memo,
		DueDate:     due,
	})
	if err != nil {
		return nil, err
	}

	status, ok := localStatus(remote.Status, due, s.now())
	if !ok {
		status = models.InvoiceOpen
	}
	now := s.now()
	inv := &models.MercuryInvoice{
		MerchantID:       m.ID,
		MercuryInvoiceID: remote.ID,
		AmountCents:      in.AmountCents,
		Status:           status,
		Memo:             memo,
		DueDate:          due,
		HostedURL:        remote.HostedURL(),
		LastSyncedAt:     &now,
	}
	if adminID != 0 {
		inv.CreatedByID = &adminID
	}
	if err := s.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invoice created", zap.Uint("invoice_id", inv.ID), zap.Uint("merchant_id", m.ID),
		zap.String("mercury_invoice_id", remote.ID), zap.Int64("amount_cents", in.AmountCents))

	s.publish(ctx, events.Event{
		Type: events.InvoiceCreated,
		To:   m.Email,
		Data: map[string]string{
			"invoice_id":   strconv.FormatUint(uint64(inv.ID), 10),
			"amount_cents": strconv.FormatInt(inv.AmountCents, 10),
			"due_date":     in.DueDate,
			"hosted_url":   inv.HostedURL,
		},
	})
	return inv, nil
}

func (s *Service) List(ctx context.Context, filter repositories.InvoiceFilter, limit, offset int) ([]models.MercuryInvoice, int64, error) {
	return s.Invoices.List(ctx, filter, limit, offset)
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.MercuryInvoice, int64, error) {
	return s.Invoices.List(ctx, repositories.InvoiceFilter{MerchantID: merchantID}, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.MercuryInvoice, error) {
	return s.Invoices.GetByID(ctx, id)
}

// Sync pulls the remote status of one invoice.
func (s *Service) Sync(ctx context.Context, id uint) (*models.MercuryInvoice, error) {
	if s.Gateway == nil {
		return nil, apperrors.ErrInvoicingUnavailable
	}
	inv, err := s.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status.Closed() && (inv.Status != models.InvoicePaid || inv.CreditedAt != nil) {
		return inv, nil
	}
	remote, err := s.Gateway.GetInvoice(ctx, inv.MercuryInvoiceID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, inv.ID, remote.Status)
}

// Cancel voids an unpaid invoice in Mercury.
func (s *Service) Cancel(ctx context.Context, id uint) (*models.MercuryInvoice, error) {
	if s.Gateway == nil {
		return nil, apperrors.ErrInvoicingUnavailable
	}
	inv, err := s.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status.Closed() {
		return nil, apperrors.ErrInvoiceClosed
	}
	remote, err := s.Gateway.CancelInvoice(ctx, inv.MercuryInvoiceID)
	if err != nil {
		return nil, err
	}
	status := remote.Status
	if status != clients.MercuryStatusPaid {
		status = clients.MercuryStatusCancelled
	}
	return s.apply(ctx, inv.ID, status)
}

// HandleWebhook verifies and applies a Mercury invoice event. Events for
// invoices we never issued are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !utils.VerifyHMACSHA256(s.WebhookSecret, payload, signature) {
		return apperrors.ErrInvalidSignature
	}
	if !gjson.ValidBytes(payload) {
		return apperrors.ErrInvalidRequest.WithMessage("payload is not valid JSON")
	}
	res := gjson.GetManyBytes(payload, "data.id", "data.status")
	mercuryID, status := res[0].String(), res[1].String()
	if mercuryID == "" {
		return apperrors.ErrInvalidRequest.WithMessage("data.id is required")
	}

	inv, err := s.Invoices.GetByMercuryID(ctx, mercuryID)
	if errors.Is(err, apperrors.ErrInvoiceNotFound) {
		s.logger.Warn("webhook for unknown invoice", zap.String("mercury_invoice_id", mercuryID))
		return nil
	}
	if err != nil {
		return err
	}
	if status == "" && s.Gateway != nil {
		remote, err := s.Gateway.GetInvoice(ctx, mercuryID)
		if err != nil {
			return err
		}
		status = remote.Status
	}
	_, err = s.apply(ctx, inv.ID, status)
	return err
}

// SyncOpen refreshes open and overdue invoices, oldest sync first. Failures
// are logged and counted so one bad invoice does not stop the batch.
func (s *Service) SyncOpen(ctx context.Context, limit int) (synced, failed int, err error) {
	if s.Gateway == nil {
		return 0, 0, apperrors.ErrInvoicingUnavailable
	}
	list, err := s.Invoices.ListSyncable(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, inv := range list {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if _, err := s.Sync(ctx, inv.ID); err != nil {
			failed++
			s.logger.Error("sync invoice", zap.Uint("invoice_id", inv.ID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// apply moves the invoice to the mapped status. The first time it is seen
// paid the wallet is credited and the credit stamped.
func (s *Service) apply(ctx context.Context, id uint, remoteStatus string) (*models.MercuryInvoice, error) {
	var (
		out      *models.MercuryInvoice
		credited bool
	)
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.Invoices.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		inv.LastSyncedAt = &now

		status, ok := localStatus(remoteStatus, inv.DueDate, now)
		switch {
		case !ok:
			s.logger.Warn("unknown mercury status", zap.Uint("invoice_id", inv.ID), zap.String("status", remoteStatus))
		case inv.Status == models.InvoicePaid && status != models.InvoicePaid:
			// Paid is final.
		default:
			inv.Status = status
		}

		if inv.Status == models.InvoicePaid {
			if inv.PaidAt == nil {
				inv.PaidAt = &now
			}
			if inv.CreditedAt == nil {
				if err := s.credit(ctx, inv); err != nil {
					return err
				}
				inv.CreditedAt = &now
				credited = true
			}
		}
		if err := s.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	if credited {
		s.logger.Info("invoice credited", zap.Uint("invoice_id", out.ID), zap.Uint("merchant_id", out.MerchantID),
			zap.Int64("amount_cents", out.AmountCents))
		s.settle(ctx, out.MerchantID)
	}
	return out, nil
}

func (s *Service) credit(ctx context.Context, inv *models.MercuryInvoice) error {
	_, err := s.Wallets.Credit(ctx, wallet.Operation{
		MerchantID:  inv.MerchantID,
		Type:        models.EntryInvoiceCredit,
		AmountCents: inv.AmountCents,
		Reference:   inv.MercuryInvoiceID,
		Memo:        "Mercury invoice paid",
		Metadata:    models.JSON{"invoice_id": inv.ID},
	})
	if errors.Is(err, apperrors.ErrDuplicateEntry) {
		return nil
	}
	return err
}

func (s *Service) settle(ctx context.Context, merchantID uint) {
	if s.Settler == nil {
		return
	}
	if _, err := s.Settler.Settle(ctx, merchantID); err != nil {
		s.logger.Error("settle orders", zap.Uint("merchant_id", merchantID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		s.logger.Error("publish event", zap.String("type", e.Type), zap.Error(err))
	}
}
