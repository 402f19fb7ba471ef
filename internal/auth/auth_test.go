package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/quill/internal/store/sqlite"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, "test-secret", ttl)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRejectsEmptySecret(t *testing.T) {
	_, err := NewService(nil, "", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"), "expected bcrypt cost 10, got %s", hash)
	assert.True(t, CheckPassword("hunter2", hash))
	assert.False(t, CheckPassword("hunter3", hash))

	again, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt should differ per hash")
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Username: " alice ", Email: "Alice@Example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, CheckPassword("pw", sess.User.PasswordHash))

	id, err := svc.ParseToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, RegisterInput{Email: "carol@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrValidation)

	login, err := svc.Login(ctx, "  ALICE@example.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t, time.Hour)
	ctx := context.Background()

	a, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, RegisterInput{Username: "b", Email: "b@example.com", Password: "pw"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "Bearer "+a.Token)
	require.NoError(t, err)
	assert.Equal(t, a.User.ID, got.ID)
	assert.NotEqual(t, b.User.ID, got.ID)

	for name, header := range map[string]string{
		"missing":  "",
		"no token": "Bearer ",
		"garbage":  "Bearer not-a-jwt",
		"tampered": "Bearer " + tamper(a.Token),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, header)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}

	ghost, err := svc.IssueToken("no-such-user")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "Bearer "+ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseToken(t *testing.T) {
	svc := newTestService(t, time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewService(nil, "other-secret", time.Hour)
		require.NoError(t, err)
		tok, err := other.IssueToken("u1")
		require.NoError(t, err)
		_, err = svc.ParseToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := NewService(nil, "test-secret", -time.Minute)
		require.NoError(t, err)
		tok, err := expired.IssueToken("u1")
		require.NoError(t, err)
		_, err = svc.ParseToken(tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "u1"}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.ParseToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing id", func(t *testing.T) {
		tok, err := svc.IssueToken("")
		require.NoError(t, err)
		_, err = svc.ParseToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func tamper(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[5] == 'A' {
		sig[5] = 'B'
	} else {
		sig[5] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}
