package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	redisclient "github.com/hackgods/turf-booking/internal/redis"
)

const minPasswordLength = 8

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Denylist remembers logged-out token ids until the token would expire anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisDenylist struct {
	cache *redisclient.JSONCache
	now   func() time.Time
}

func NewRedisDenylist(cache *redisclient.JSONCache) Denylist {
	return &redisDenylist{cache: cache, now: time.Now}
}

func (d *redisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.cache.Set(ctx, tokenID, true, ttl)
}

func (d *redisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return d.cache.Exists(ctx, tokenID)
}

type Service struct {
	users    UserStore
	denylist Denylist
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewService(users UserStore, denylist Denylist, secret string, ttl time.Duration) *Service {
	return &Service{
		users:    users,
		denylist: denylist,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, username, hash)
}

// Login checks the credentials and returns a signed token with its session.
func (s *Service) Login(ctx context.Context, username, password string) (string, *Session, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	sess := &Session{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      RoleAdmin,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	claims := Claims{
		Username: sess.Username,
		Role:     sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.TokenID,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, sess, nil
}

// Authenticate parses a bearer token into a session. Any problem with the
// token is reported as ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrUnauthorized
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token: %w", err)
		}
		if revoked {
			return nil, ErrUnauthorized
		}
	}

	return &Session{
		UserID:    userID,
		Username:  claims.Username,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if s.denylist == nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, sess.TokenID, sess.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
