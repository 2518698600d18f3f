package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/smartbank-server/internal/model"
)

func testSession(expires time.Time) model.Session {
	return model.Session{
		ID:        uuid.New(),
		Address:   model.MustParseAddress("0x8ba1f109551bd432803012645ac136ddd64dba72"),
		Role:      model.RoleUser,
		IssuedAt:  expires.Add(-30 * time.Minute),
		ExpiresAt: expires,
	}
}

func TestNewJWT_EmptySecret(t *testing.T) {
	_, err := NewJWT("")
	require.Error(t, err)
}

func TestJWT_Roundtrip(t *testing.T) {
	j, err := NewJWT("secret")
	require.NoError(t, err)
	s := testSession(time.Now().Add(30 * time.Minute))

	tok, err := j.Generate(s)
	require.NoError(t, err)

	got, err := j.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, s.ID, got)
}

func TestJWT_ExpiredTokenStillParses(t *testing.T) {
	j, err := NewJWT("secret")
	require.NoError(t, err)
	s := testSession(time.Now().Add(-time.Hour))

	tok, err := j.Generate(s)
	require.NoError(t, err)

	got, err := j.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, s.ID, got)
}

func TestJWT_WrongSecret(t *testing.T) {
	j1, err := NewJWT("secret")
	require.NoError(t, err)
	j2, err := NewJWT("other")
	require.NoError(t, err)

	tok, err := j1.Generate(testSession(time.Now().Add(time.Minute)))
	require.NoError(t, err)

	_, err = j2.Parse(tok)
	require.Error(t, err)
}

func TestJWT_Tampered(t *testing.T) {
	j, err := NewJWT("secret")
	require.NoError(t, err)

	tok, err := j.Generate(testSession(time.Now().Add(time.Minute)))
	require.NoError(t, err)

	tampered := tok[:len(tok)-2] + "xx"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "yy"
	}
	_, err = j.Parse(tampered)
	require.Error(t, err)

	_, err = j.Parse("not-a-token")
	require.Error(t, err)
}

func TestJWT_TokenTypeMismatch(t *testing.T) {
	j, err := NewJWT("secret")
	require.NoError(t, err)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
		TokenType:        "access",
	})
	tok, err := raw.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = j.Parse(tok)
	require.Error(t, err)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	j, err := NewJWT("secret")
	require.NoError(t, err)

	raw := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
		TokenType:        typeSession,
	})
	tok, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = j.Parse(tok)
	require.Error(t, err)
}
