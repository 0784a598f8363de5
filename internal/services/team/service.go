// Package team manages the operations staff who can sign in to the admin
// console.
package team

import (
	"context"
	"errors"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"

	"go.uber.org/zap"
)

type InviteInput struct {
	Email string           `json:"email" validate:"required,email,max=255"`
	Name  string           `json:"name" validate:"required,max=255"`
	Role  models.AdminRole `json:"role" validate:"required"`
}

type UpdateInput struct {
	Role   *models.AdminRole   `json:"role,omitempty"`
	Status *models.AdminStatus `json:"status,omitempty"`
}

type Service struct {
	admins repositories.AdminUserRepository
	tx     repositories.TxManager
	events events.Publisher
	logger *zap.Logger
}

func NewService(admins repositories.AdminUserRepository, tx repositories.TxManager, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{admins: admins, tx: tx, events: publisher, logger: logger.Named("team")}
}

func (s *Service) List(ctx context.Context) ([]models.AdminUser, error) {
	return s.admins.List(ctx)
}

// Invite creates an invited admin and emails them a sign-in link.
func (s *Service) Invite(ctx context.Context, actor *models.AdminClaims, in InviteInput) (*models.AdminUser, error) {
	if !in.Role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	if in.Role == models.AdminRoleOwner && actor.Role != models.AdminRoleOwner {
		return nil, apperrors.ErrOwnerGrant
	}

	inviter := actor.AdminID
	admin := &models.AdminUser{
		Email:       models.NormalizeEmail(in.Email),
		Name:        strings.TrimSpace(in.Name),
		Role:        in.Role,
		Status:      models.AdminStatusInvited,
		InvitedByID: &inviter,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}

	if s.events != nil {
		err := s.events.Publish(ctx, events.Event{
			Type: events.TeamInvited,
			To:   admin.Email,
			Data: map[string]string{"role": string(admin.Role), "invited_by": actor.Email},
		})
		if err != nil {
			s.logger.Error("publish invite", zap.Uint("admin_id", admin.ID), zap.Error(err))
		}
	}
	s.logger.Info("admin invited", zap.Uint("admin_id", admin.ID), zap.Uint("by", actor.AdminID))
	return admin, nil
}

// SeedOwner creates the first active owner. An existing admin with the same
// email is returned unchanged with created=false.
func (s *Service) SeedOwner(ctx context.Context, email, name string) (*models.AdminUser, bool, error) {
	email = models.NormalizeEmail(email)
	existing, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrAdminNotFound) {
		return nil, false, err
	}
	admin := &models.AdminUser{
		Email:  email,
		Name:   strings.TrimSpace(name),
		Role:   models.AdminRoleOwner,
		Status: models.AdminStatusActive,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, false, err
	}
	s.logger.Info("owner seeded", zap.Uint("admin_id", admin.ID))
	return admin, true, nil
}

// Update changes role and/or status. Any change revokes the target's tokens.
func (s *Service) Update(ctx context.Context, actor *models.AdminClaims, id uint, in UpdateInput) (*models.AdminUser, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	if in.Status != nil && *in.Status != models.AdminStatusActive && *in.Status != models.AdminStatusDisabled {
		return nil, apperrors.ErrInvalidRequest.WithMessage("status must be active or disabled")
	}

	var out *models.AdminUser
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Owner rows first, then the target, so concurrent updates queue
		// behind each other before the last-owner check.
		if _, err := s.admins.LockActiveOwners(ctx); err != nil {
			return err
		}
		admin, err := s.admins.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		wasOwner := admin.Role == models.AdminRoleOwner && admin.Status == models.AdminStatusActive

		changed := false
		if in.Role != nil && *in.Role != admin.Role {
			if admin.ID == actor.AdminID {
				return apperrors.ErrSelfModification
			}
			if (*in.Role == models.AdminRoleOwner || admin.Role == models.AdminRoleOwner) && actor.Role != models.AdminRoleOwner {
				return apperrors.ErrOwnerGrant
			}
			admin.Role = *in.Role
			changed = true
		}
		if in.Status != nil && *in.Status != admin.Status {
			if admin.ID == actor.AdminID {
				return apperrors.ErrSelfModification
			}
			if admin.Role == models.AdminRoleOwner && actor.Role != models.AdminRoleOwner {
				return apperrors.ErrOwnerGrant
			}
			if *in.Status == models.AdminStatusActive && admin.Status == models.AdminStatusInvited {
				return apperrors.ErrInvalidRequest.WithMessage("invited members activate by signing in")
			}
			admin.Status = *in.Status
			changed = true
		}
		if !changed {
			out = admin
			return nil
		}

		admin.TokenVersion++
		if err := s.admins.Update(ctx, admin); err != nil {
			return err
		}
		if wasOwner && (admin.Role != models.AdminRoleOwner || admin.Status != models.AdminStatusActive) {
			owners, err := s.admins.CountActiveOwners(ctx)
			if err != nil {
				return err
			}
			if owners == 0 {
				return apperrors.ErrLastOwner
			}
		}
		out = admin
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin updated", zap.Uint("admin_id", id), zap.Uint("by", actor.AdminID),
		zap.String("role", string(out.Role)), zap.String("status", string(out.Status)))
	return out, nil
}

// Disable is Update with status disabled.
func (s *Service) Disable(ctx context.Context, actor *models.AdminClaims, id uint) (*models.AdminUser, error) {
	status := models.AdminStatusDisabled
	return s.Update(ctx, actor, id, UpdateInput{Status: &status})
}
