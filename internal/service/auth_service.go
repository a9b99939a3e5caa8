package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"library_api/internal/models"
	"library_api/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 30 * time.Minute

// ErrInvalidToken is returned by ParseToken for a token without a usable subject.
var ErrInvalidToken = errors.New("invalid token")

type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// AuthService handles registration, login and bearer token validation.
type AuthService struct {
	users    repository.UserRepo
	activity *recorder
	cfg      AuthConfig
}

func NewAuthService(users repository.UserRepo, activity *recorder, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthService{users: users, activity: activity, cfg: cfg}
}

// SignUp hashes the password and creates a new user with the "user" role.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return nil, errMissingCredentials
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errUsernameTaken
	}
	existing, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errEmailTaken
	}

	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Books:        []models.Book{},
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent registration
			return nil, newError(ErrConflict, "Username or email already registered")
		}
		return nil, err
	}
	u.ID = id

	s.activity.record(ctx, models.ActivityUserRegistered, intPtr(id), nil, "User "+username+" registered", nil)
	return u, nil
}

// GenerateToken validates credentials and returns a signed JWT whose subject is the username.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", errBadCredentials
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", errBadCredentials
	}
	return s.issueToken(u.Username)
}

// ParseToken verifies the JWT and returns its subject.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SigningKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Authenticate resolves a bearer token to exactly one user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	username, err := s.ParseToken(accessToken)
	if err != nil {
		return nil, errNotAuthenticated
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errNotAuthenticated
	}
	return u, nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for a user
func (s *AuthService) issueToken(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	return token.SignedString([]byte(s.cfg.SigningKey))
}
