package token

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-service/users"
)

// ErrInvalidToken is returned by Decode for any token that cannot be trusted:
// bad signature, malformed structure, audience mismatch, or an issuer that is
// not an enabled auth provider.
var ErrInvalidToken = errors.New("invalid token")

// ProviderLocal is the issuer value for sessions minted by local logins, as
// opposed to an external OAuth2 provider.
const ProviderLocal = "local"

// Token holds the claims of a signed session credential. A token is created
// once at login and never mutated; timestamps are UTC with second precision.
type Token struct {
	Issuer    string    // auth provider: "local" or an enabled OAuth2 provider name
	Audience  string    // application identifier
	IssuedAt  time.Time
	NotBefore time.Time // optional, zero when unset
	ExpiresAt time.Time
	ID        string // jti, unique per issuance
	Subject   string // user id
}

// Codec signs and verifies session tokens with a shared symmetric secret
// (HS256). Expiry of the backing session record is not the codec's concern: a
// token can verify cleanly while its session has already been invalidated, so
// the session service re-validates against persisted state.
type Codec struct {
	secret   []byte
	audience string
	issuers  map[string]struct{}
	nowTime  func() time.Time
}

// CodecOption modifies a Codec during construction.
type CodecOption func(*Codec)

// WithNowTime sets the clock source (primarily for testing).
func WithNowTime(nowFunc func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowTime = nowFunc
	}
}

// NewCodec creates a Codec for the given application. enabledProviders lists
// the external OAuth2 providers whose tokens are currently accepted; "local"
// is always accepted.
func NewCodec(secret []byte, audience string, enabledProviders []string, options ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewCodec] signing secret is required")
	}
	if audience == "" {
		return nil, errors.New("[NewCodec] audience is required")
	}

	issuers := map[string]struct{}{ProviderLocal: {}}
	for _, p := range enabledProviders {
		issuers[p] = struct{}{}
	}

	codec := &Codec{
		secret:   secret,
		audience: audience,
		issuers:  issuers,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(codec)
	}
	return codec, nil
}

// CreateForUser mints a token for a fresh login. The token id is a hash of the
// user's natural key and the issuance instant, so it is deterministic for a
// given issuance yet unique across logins.
func (c *Codec) CreateForUser(u *users.User, ttl time.Duration, provider string) Token {
	issuedAt := c.nowTime()
	now := issuedAt.UTC().Truncate(time.Second)

	seed := u.NaturalKey() + strconv.FormatInt(issuedAt.UnixNano(), 10)
	sum := md5.Sum([]byte(seed))

	return Token{
		Issuer:    provider,
		Audience:  c.audience,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		ID:        hex.EncodeToString(sum[:]),
		Subject:   u.ID.String(),
	}
}

// Encode serialises and signs the token. Optional claims that were never set
// are omitted from the payload.
func (c *Codec) Encode(t Token) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Issuer:    t.Issuer,
		Audience:  jwtlib.ClaimStrings{t.Audience},
		IssuedAt:  jwtlib.NewNumericDate(t.IssuedAt),
		ExpiresAt: jwtlib.NewNumericDate(t.ExpiresAt),
		ID:        t.ID,
		Subject:   t.Subject,
	}
	if !t.NotBefore.IsZero() {
		claims.NotBefore = jwtlib.NewNumericDate(t.NotBefore)
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Encode] failed to sign token")
	}
	return signed, nil
}

// Decode verifies the signature and audience of the raw token and checks the
// issuer is still an enabled provider. It does not consult the session store;
// that is the session service's job.
func (c *Codec) Decode(raw string) (Token, error) {
	claims := &jwtlib.RegisteredClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims,
		func(t *jwtlib.Token) (any, error) { return c.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithAudience(c.audience),
		jwtlib.WithIssuedAt(),
	)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if _, ok := c.issuers[claims.Issuer]; !ok {
		return Token{}, fmt.Errorf("%w: issuer %q is not enabled", ErrInvalidToken, claims.Issuer)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Token{}, fmt.Errorf("%w: missing iat or exp claim", ErrInvalidToken)
	}

	t := Token{
		Issuer:    claims.Issuer,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		ID:        claims.ID,
		Subject:   claims.Subject,
	}
	if len(claims.Audience) > 0 {
		t.Audience = claims.Audience[0]
	}
	if claims.NotBefore != nil {
		t.NotBefore = claims.NotBefore.Time.UTC()
	}
	return t, nil
}
