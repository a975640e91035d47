package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/microcopias/copirent-backend/pkg/auth"
	"github.com/microcopias/copirent-backend/pkg/config"
	"github.com/microcopias/copirent-backend/pkg/db/models"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/security"
)

type stubAuthRepo struct {
	user      *models.User
	findErr   error
	exists    bool
	existsErr error
	askedFor  string
}

func (s *stubAuthRepo) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.askedFor = email
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubAuthRepo) EmailExists(_ context.Context, email string) (bool, error) {
	s.askedFor = email
	return s.exists, s.existsErr
}

var testJWT = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "copirent-test",
	ExpirationMinutes: 60,
}

func adminUser(t *testing.T, password string) *models.User {
	t.Helper()

	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        "admin@copirent.test",
		Name:         "Back Office",
		PasswordHash: hash,
		Role:         enums.UserRoleAdmin,
	}
}

// newAuthFixture pins the clock to a single instant. The instant stays near
// real time so minted tokens survive expiry validation on parse.
func newAuthFixture(t *testing.T, repo *stubAuthRepo) (Service, time.Time) {
	t.Helper()

	svc, err := NewService(repo, testJWT)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fixed := time.Now().UTC().Truncate(time.Second)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixed }
	return svc, fixed
}

func TestLoginMintsVerifiableToken(t *testing.T) {
	repo := &stubAuthRepo{user: adminUser(t, "hunter2hunter2")}
	svc, issuedAt := newAuthFixture(t, repo)

	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "  Admin@Copirent.TEST ",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if repo.askedFor != "admin@copirent.test" {
		t.Fatalf("looked up %q, want lowercased trimmed email", repo.askedFor)
	}
	if result.UserID != repo.user.ID || result.Role != enums.UserRoleAdmin {
		t.Fatalf("result = %+v", result)
	}
	wantExpiry := issuedAt.Add(time.Hour)
	if !result.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires at %v, want %v", result.ExpiresAt, wantExpiry)
	}

	claims, err := pkgauth.ParseAccessToken(testJWT, result.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != repo.user.ID || claims.Email != repo.user.Email {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, &stubAuthRepo{user: adminUser(t, "hunter2hunter2")})

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "admin@copirent.test",
		Password: "wrong",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("error = %v, want unauthorized", err)
	}
}

func TestLoginHidesUnknownAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, &stubAuthRepo{})

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@copirent.test",
		Password: "whatever",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("error = %v, want unauthorized", err)
	}
}

func TestLoginRequiresAdminRole(t *testing.T) {
	user := adminUser(t, "hunter2hunter2")
	user.Role = enums.UserRoleCustomer
	svc, _ := newAuthFixture(t, &stubAuthRepo{user: user})

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "admin@copirent.test",
		Password: "hunter2hunter2",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t, &stubAuthRepo{})

	_, err := svc.Login(context.Background(), LoginInput{Email: "   "})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestAccountExistsNormalizesEmail(t *testing.T) {
	repo := &stubAuthRepo{exists: true}
	svc, _ := newAuthFixture(t, repo)

	exists, err := svc.AccountExists(context.Background(), " Marta@Example.COM ")
	if err != nil {
		t.Fatalf("AccountExists: %v", err)
	}
	if !exists {
		t.Fatal("expected exists")
	}
	if repo.askedFor != "marta@example.com" {
		t.Fatalf("looked up %q", repo.askedFor)
	}
}

func TestAccountExistsEmptyEmailIsFalse(t *testing.T) {
	repo := &stubAuthRepo{exists: true, existsErr: errors.New("should not be called")}
	svc, _ := newAuthFixture(t, repo)

	exists, err := svc.AccountExists(context.Background(), "   ")
	if err != nil || exists {
		t.Fatalf("exists = %v err = %v, want false nil", exists, err)
	}
}
