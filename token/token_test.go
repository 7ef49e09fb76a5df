package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-service/token"
	"github.com/jrsteele09/go-session-service/users"
)

const (
	secretStr = "0123456789abcdef0123456789abcdef"
	audience  = "go-session-service"
)

func testUser() *users.User {
	return &users.User{
		ID:       uuid.New(),
		Username: "john.doe",
		Email:    "john.doe@example.com",
	}
}

func newTestCodec(t *testing.T, options ...token.CodecOption) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec([]byte(secretStr), audience, []string{"google", "github"}, options...)
	require.NoError(t, err)
	return codec
}

func TestNewCodecValidation(t *testing.T) {
	_, err := token.NewCodec(nil, audience, nil)
	require.Error(t, err)

	_, err = token.NewCodec([]byte(secretStr), "", nil)
	require.Error(t, err)
}

func TestCreateForUser(t *testing.T) {
	codec := newTestCodec(t)
	user := testUser()

	tok := codec.CreateForUser(user, 10*time.Minute, token.ProviderLocal)

	require.Equal(t, token.ProviderLocal, tok.Issuer)
	require.Equal(t, audience, tok.Audience)
	require.Equal(t, user.ID.String(), tok.Subject)
	require.NotEmpty(t, tok.ID)
	require.Equal(t, time.UTC, tok.IssuedAt.Location())
	require.Equal(t, 10*time.Minute, tok.ExpiresAt.Sub(tok.IssuedAt))
	require.True(t, tok.NotBefore.IsZero())
}

func TestCreateForUserUniqueTokenIDs(t *testing.T) {
	codec := newTestCodec(t)
	user := testUser()

	first := codec.CreateForUser(user, time.Minute, token.ProviderLocal)
	second := codec.CreateForUser(user, time.Minute, token.ProviderLocal)

	require.NotEqual(t, first.ID, second.ID)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	tok := codec.CreateForUser(testUser(), 10*time.Minute, "google")

	raw, err := codec.Encode(tok)
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, tok, decoded)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec(t)
	raw, err := codec.Encode(codec.CreateForUser(testUser(), time.Minute, token.ProviderLocal))
	require.NoError(t, err)

	_, err = codec.Decode(raw + "x")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestDecodeRejectsWrongAudience(t *testing.T) {
	codec := newTestCodec(t)

	other, err := token.NewCodec([]byte(secretStr), "some-other-app", nil)
	require.NoError(t, err)

	raw, err := other.Encode(other.CreateForUser(testUser(), time.Minute, token.ProviderLocal))
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestDecodeRejectsDisabledIssuer(t *testing.T) {
	codec := newTestCodec(t)
	raw, err := codec.Encode(codec.CreateForUser(testUser(), time.Minute, "facebook"))
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	codec := newTestCodec(t, token.WithNowTime(func() time.Time { return past }))

	raw, err := codec.Encode(codec.CreateForUser(testUser(), time.Minute, token.ProviderLocal))
	require.NoError(t, err)

	_, err = newTestCodec(t).Decode(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Decode("not-a-token")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestDecodeRejectsMissingExpiry(t *testing.T) {
	codec := newTestCodec(t)

	claims := jwtlib.RegisteredClaims{
		Issuer:   token.ProviderLocal,
		Audience: jwtlib.ClaimStrings{audience},
		IssuedAt: jwtlib.NewNumericDate(time.Now()),
		ID:       "abc",
		Subject:  uuid.NewString(),
	}
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secretStr))
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestEncodeOmitsUnsetNotBefore(t *testing.T) {
	codec := newTestCodec(t)
	raw, err := codec.Encode(codec.CreateForUser(testUser(), time.Minute, token.ProviderLocal))
	require.NoError(t, err)

	claims := jwtlib.MapClaims{}
	_, _, err = jwtlib.NewParser().ParseUnverified(raw, claims)
	require.NoError(t, err)
	require.NotContains(t, claims, "nbf")
}
