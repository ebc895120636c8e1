package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/magnecruit/backend/internal/store"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "magnecruit_session"

const defaultTokenTTL = 24 * time.Hour

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
// Callers must not reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidToken is returned when a session token is missing, malformed,
// expired or signed with a different key.
var ErrInvalidToken = errors.New("invalid session token")

// Config configures session signing. An empty Secret disables login.
type Config struct {
	Secret        string `mapstructure:"secret"`
	TokenTTLHours int    `mapstructure:"token-ttl-hours"`

	DemoUsername string `mapstructure:"demo-username"`
	DemoEmail    string `mapstructure:"demo-email"`
	DemoPassword string `mapstructure:"demo-password"`
}

// Service authenticates users and issues HS256 session tokens.
type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(st *store.Store, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth secret must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := defaultTokenTTL
	if cfg.TokenTTLHours > 0 {
		ttl = time.Duration(cfg.TokenTTLHours) * time.Hour
	}

	return &Service{
		store:  st,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		logger: logger.With(zap.String("component", "auth")),
	}, nil
}

// TokenTTL returns the configured session lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}

// Login checks the credentials and returns the user with a fresh session
// token.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", zap.Uint("user_id", user.ID))
	return user, token, nil
}

// IssueToken signs a session token for the user.
func (s *Service) IssueToken(user *store.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and resolves its user.
func (s *Service) Verify(ctx context.Context, tokenString string) (*store.User, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.store.UserByID(ctx, uint(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SeedDemoUser creates the configured demo account when it does not exist.
func (s *Service) SeedDemoUser(ctx context.Context, cfg Config) (*store.User, error) {
	if cfg.DemoEmail == "" || cfg.DemoPassword == "" {
		return nil, nil
	}

	hash, err := HashPassword(cfg.DemoPassword)
	if err != nil {
		return nil, err
	}

	username := cfg.DemoUsername
	if username == "" {
		username = cfg.DemoEmail
	}
	return s.store.EnsureUser(ctx, username, cfg.DemoEmail, hash)
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
