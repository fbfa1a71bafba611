package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/turf-booking/internal/db"
)

type memDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (d *memDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revoked == nil {
		d.revoked = map[string]time.Time{}
	}
	d.revoked[tokenID] = until
	return nil
}

func (d *memDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[tokenID]
	return ok, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)

	users := NewGormUserStore(gdb)
	require.NoError(t, users.AutoMigrate())

	return NewService(users, &memDenylist{}, "test-secret", time.Hour)
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}

func TestCreateAdmin_Duplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateAdmin(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")))

	_, err = svc.CreateAdmin(ctx, "admin", "another-password")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	token, sess, err := svc.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NoError(t, sess.RequireAdmin())

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, sess.TokenID, got.TokenID)
	assert.NoError(t, got.RequireAdmin())

	require.NoError(t, svc.Logout(ctx, *got))

	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "admin", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "admin", "correct-horse")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "admin", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := NewService(svc.users, nil, "other-secret", time.Hour)
	_, err = other.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSession_RequireAdmin(t *testing.T) {
	assert.ErrorIs(t, Session{}.RequireAdmin(), ErrUnauthorized)
	assert.ErrorIs(t, Session{Username: "x", Role: "viewer"}.RequireAdmin(), ErrUnauthorized)
	assert.NoError(t, Session{Username: "x", Role: RoleAdmin}.RequireAdmin())
}
