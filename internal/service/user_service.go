package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// UserService manages helpdesk accounts.
type UserService struct {
	users repository.UserRepository
}

// NewUserService creates the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// CreateUser registers an account. Role defaults to user.
func (s *UserService) CreateUser(ctx context.Context, email string, role domain.UserRole) (*domain.User, error) {
	if role == "" {
		role = domain.UserRoleUser
	}
	user := &domain.User{Email: strings.ToLower(strings.TrimSpace(email)), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetUser fetches an account by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user", id)
	}
	return user, nil
}
