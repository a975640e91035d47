package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/microcopias/copirent-backend/pkg/auth"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/security"
)

// LoginInput carries back-office credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on a successful admin login.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	UserID    uuid.UUID      `json:"user_id"`
	Email     string         `json:"email"`
	Role      enums.UserRole `json:"role"`
}

// Service authenticates back-office users and resolves account existence for
// checkout.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	AccountExists(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo Repository
	jwt  config.JWTConfig
	now  func() time.Time
}

// NewService builds the auth service.
func NewService(repo Repository, jwt config.JWTConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("auth repository required")
	}
	return &service{repo: repo, jwt: jwt, now: time.Now}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if user.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}

	now := s.now()
	token, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint token")
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.jwt.ExpirationMinutes) * time.Minute),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
	}, nil
}

func (s *service) AccountExists(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check account")
	}
	return exists, nil
}
