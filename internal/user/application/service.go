package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmehra2102/food-order-events/internal/user/domain"
	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type UserRepository interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, u domain.User) (domain.User, error)
	Get(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	log   *slog.Logger
	users UserRepository
}

func NewService(log *slog.Logger, users UserRepository) *Service {
	return &Service{log: log, users: users}
}

func (s *Service) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := u.Validate(); err != nil {
		return domain.User{}, err
	}
	if err := s.requireFreeEmail(ctx, u.Email, 0); err != nil {
		return domain.User{}, err
	}
	saved, err := s.users.Create(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user created", "user_id", saved.ID)
	return saved, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, in domain.User) (domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return domain.User{}, err
	}
	if _, err := s.users.Get(ctx, id); err != nil {
		return domain.User{}, err
	}
	if err := s.requireFreeEmail(ctx, in.Email, id); err != nil {
		return domain.User{}, err
	}
	in.ID = id
	saved, err := s.users.Update(ctx, in)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return saved, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.users.Get(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.users.Exists(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", id)
	return nil
}

// requireFreeEmail allows the address only if nobody but self owns it.
func (s *Service) requireFreeEmail(ctx context.Context, email string, self int64) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != self:
		return fmt.Errorf("user already exists with this email: %w", apperr.ErrConflict)
	case err == nil, apperr.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("failed to check email: %w", err)
	}
}
