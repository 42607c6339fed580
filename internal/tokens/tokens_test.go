package tokens

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{UserID: "user-123", Username: "admin", Email: "admin@example.com", Role: "ADMIN"}

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("test-secret-32-bytes-should-be-long-enough"), WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func TestMintDecode_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	tok, minted, err := c.Mint(testIdentity)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(tok, ".")))

	got, err := c.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, testIdentity, got.Identity())
	require.Equal(t, clock.t.Unix()+3600, got.ExpiresAt)
	require.Equal(t, clock.t.Unix(), got.IssuedAt)
	require.NotEmpty(t, got.TokenID)
	require.Equal(t, minted, got)
}

func TestMint_RejectsIncompleteIdentity(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	for _, id := range []Identity{
		{Username: "a", Email: "b", Role: "c"},
		{UserID: "u", Email: "b", Role: "c"},
		{UserID: "u", Username: "a", Role: "c"},
		{UserID: "u", Username: "a", Email: "b"},
	} {
		_, _, err := c.Mint(id)
		require.ErrorIs(t, err, ErrIncompleteIdentity)
	}
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestDecode_AnySingleCharacterMutationFails(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	tok, _, err := c.Mint(testIdentity)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		repl := byte('A')
		if tok[i] == 'A' {
			repl = 'B'
		}
		mutated := tok[:i] + string(repl) + tok[i+1:]
		_, err := c.Decode(mutated)
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("mutation at %d (%q -> %q) was accepted", i, tok[i], repl)
		}
	}
}

func TestDecode_WrongSecretFails(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, clock)
	other, err := NewCodec([]byte("different-secret-xxxxxxxxxxxxxxxx"), WithClock(clock.Now))
	require.NoError(t, err)

	tok, _, err := other.Mint(testIdentity)
	require.NoError(t, err)
	_, err = c.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_Malformed(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b", "..."} {
		_, err := c.Decode(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestDecode_TruncatedFails(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	tok, _, err := c.Mint(testIdentity)
	require.NoError(t, err)
	_, err = c.Decode(tok[:len(tok)-1])
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Rejected when alg=none (unsigned token)
func TestDecode_AlgNoneRejected(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	payload := `{"userId":"u","username":"admin","email":"a@b.c","role":"ADMIN","exp":9999999999}`
	seg := (&jwt.Token{}).EncodeSegment
	tok := seg([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + seg([]byte(payload)) + "."
	_, err := c.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_OtherHMACAlgorithmRejected(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	claims := jwt.MapClaims{"userId": "u", "username": "admin", "email": "a@b.c", "role": "ADMIN", "exp": 9999999999}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.key)
	require.NoError(t, err)
	_, err = c.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_MissingRequiredClaim(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	cases := []jwt.MapClaims{
		{"username": "admin", "email": "a@b.c", "role": "ADMIN", "exp": 9999999999},
		{"userId": "u", "email": "a@b.c", "role": "ADMIN", "exp": 9999999999},
		{"userId": "u", "username": "admin", "role": "ADMIN", "exp": 9999999999},
		{"userId": "u", "username": "admin", "email": "a@b.c", "exp": 9999999999},
		{"userId": "u", "username": "admin", "email": "a@b.c", "role": "ADMIN"},
	}
	for _, mc := range cases {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.key)
		require.NoError(t, err)
		_, err = c.Decode(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "claims %v", mc)
	}
}

func TestDecode_DoesNotCheckExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	tok, _, err := c.Mint(testIdentity)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	claims, err := c.Decode(tok)
	require.NoError(t, err)
	require.True(t, c.IsExpired(claims))
}

func TestIsExpired_Boundary(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	now := clock.t.Unix()

	require.False(t, c.IsExpired(SessionClaims{ExpiresAt: now}), "expiresAt == now is still valid")
	require.True(t, c.IsExpired(SessionClaims{ExpiresAt: now - 1}))
	require.True(t, c.IsExpired(SessionClaims{ExpiresAt: now - 3600}))
	require.False(t, c.IsExpired(SessionClaims{ExpiresAt: now + 1}))
}

func TestVerify_DistinguishesExpiredFromInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	tok, _, err := c.Mint(testIdentity)
	require.NoError(t, err)

	_, err = c.Verify(tok)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Hour + 10*time.Second)
	claims, err := c.Verify(tok)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.False(t, errors.Is(err, ErrInvalidToken))
	require.Equal(t, "admin", claims.Username)

	_, err = c.Verify(tok + "x")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRemaining(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	_, claims, err := c.Mint(testIdentity)
	require.NoError(t, err)

	require.Equal(t, time.Hour, c.Remaining(claims))
	clock.t = clock.t.Add(51 * time.Minute)
	require.Equal(t, 9*time.Minute, c.Remaining(claims))
	clock.t = clock.t.Add(time.Hour)
	require.Equal(t, time.Duration(0), c.Remaining(claims))
}
