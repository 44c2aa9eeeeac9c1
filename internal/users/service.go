package users

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"salesops-console/internal/auth"
	"salesops-console/internal/rbac"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidArgument = errors.New("users: invalid argument")
	ErrEmailTaken      = errors.New("users: email already registered")
	ErrBadCredentials  = errors.New("users: bad credentials")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const bcryptCost = 12
const minPasswordLen = 8

// Service handles staff registration and login.
type Service struct {
	repo Repository
	auth *auth.Manager

	// adminEmailDomain grants the admin role at registration time to
	// emails under this domain. Empty disables the rule.
	adminEmailDomain string

	clock func() time.Time
}

func NewService(repo Repository, authManager *auth.Manager, adminEmailDomain string) *Service {
	return &Service{
		repo:             repo,
		auth:             authManager,
		adminEmailDomain: strings.ToLower(strings.TrimPrefix(adminEmailDomain, "@")),
		clock:            time.Now,
	}
}

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	if !emailPattern.MatchString(email) || name == "" || len(req.Password) < minPasswordLen {
		return User{}, ErrInvalidArgument
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return User{}, err
	}

	role := rbac.RoleUser
	if s.adminEmailDomain != "" && strings.HasSuffix(email, "@"+s.adminEmailDomain) {
		role = rbac.RoleAdmin
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (User, auth.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, auth.TokenPair{}, ErrInvalidArgument
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, auth.TokenPair{}, ErrBadCredentials
		}
		return User{}, auth.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, auth.TokenPair{}, ErrBadCredentials
	}

	pair, err := s.auth.IssuePair(s.clock(), u.ID, u.Email, u.Role)
	if err != nil {
		return User{}, auth.TokenPair{}, err
	}
	return u, pair, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}
