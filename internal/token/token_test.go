package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shubham2003-jha/Backend-Project/internal/token"
)

func newTestIssuer() *token.Issuer {
	return token.NewIssuer(
		[]byte("access-secret"),
		[]byte("refresh-secret"),
		time.Minute,
		time.Hour,
		"backend-project",
	)
}

func TestIssuePairRoundTrip(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair(42)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	userID, err := issuer.Verify(pair.AccessToken, token.Access)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)

	userID, err = issuer.Verify(pair.RefreshToken, token.Refresh)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestVerifyRejectsCrossClassTokens(t *testing.T) {
	issuer := newTestIssuer()

	pair, err := issuer.IssuePair(7)
	require.NoError(t, err)

	_, err = issuer.Verify(pair.AccessToken, token.Refresh)
	require.ErrorIs(t, err, token.ErrInvalid)

	_, err = issuer.Verify(pair.RefreshToken, token.Access)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := newTestIssuer().WithClock(func() time.Time { return past })

	pair, err := issuer.IssuePair(7)
	require.NoError(t, err)

	verifier := newTestIssuer()
	_, err = verifier.Verify(pair.AccessToken, token.Access)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer()
	forger := token.NewIssuer(
		[]byte("other-access"),
		[]byte("other-refresh"),
		time.Minute,
		time.Hour,
		"backend-project",
	)

	pair, err := forger.IssuePair(7)
	require.NoError(t, err)

	_, err = issuer.Verify(pair.AccessToken, token.Access)
	require.ErrorIs(t, err, token.ErrInvalid)
	_, err = issuer.Verify(pair.RefreshToken, token.Refresh)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer()

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.Verify(raw, token.Access)
		require.ErrorIs(t, err, token.ErrInvalid)
	}
}
