package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ojinta/portfolio/go-services/internal/models"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

// dummyHash is compared against when the username is unknown so that both
// rejection paths pay for one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("portfolio-dummy-password"), bcrypt.DefaultCost)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
	now  func() time.Time
}

type ServiceOption func(*Service)

// WithHashCost sets the bcrypt cost used by CreateUser.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) { s.cost = cost }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(r UserRepository, opts ...ServiceOption) *Service {
	s := &Service{repo: r, cost: bcrypt.DefaultCost, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Authenticate checks username/password against the stored bcrypt hash.
// An inactive account is reported only after its password matched.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("users: lookup %q: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}
	if err := s.repo.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		logger.Warnf("users: record last login for %s: %v", u.ID, err)
	}
	return u, nil
}

// CreateUser hashes password and stores a new active user.
func (s *Service) CreateUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(email) == "" {
		return nil, errors.New("users: username and email are required")
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if role == "" {
		role = models.RoleAdmin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
}

// FindByUsername is a passthrough used by the seed tool.
func (s *Service) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.FindByUsername(ctx, username)
}
