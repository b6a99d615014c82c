package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodapp-backend/pkg/config"
	"github.com/angelmondragon/foodapp-backend/pkg/enums"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "foodapp", ExpirationMinutes: 30}

func mint(t *testing.T, cfg config.JWTConfig, issued time.Time, role enums.MemberRole) string {
	t.Helper()
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(jwtCfg, now, AccessTokenPayload{UserID: userID, Role: enums.MemberRoleStaff, JTI: " fixed-id "})
	require.NoError(t, err)

	claims, err := ParseAccessToken(jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, enums.MemberRoleStaff, claims.Role)
	assert.Equal(t, "foodapp", claims.Issuer)
	assert.Equal(t, "fixed-id", claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenRejects(t *testing.T) {
	good := mint(t, jwtCfg, time.Now(), enums.MemberRoleCustomer)

	otherKey := jwtCfg
	otherKey.Secret = "other"
	otherIssuer := jwtCfg
	otherIssuer.Issuer = "someone-else"

	rogue, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(jwtCfg.Secret))
	require.NoError(t, err)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		Role: enums.MemberRoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(jwtCfg.Secret))
	require.NoError(t, err)

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
		is    error
	}{
		"wrong key":    {cfg: otherKey, token: good, is: jwt.ErrTokenSignatureInvalid},
		"wrong issuer": {cfg: otherIssuer, token: good, is: jwt.ErrTokenInvalidIssuer},
		"expired":      {cfg: jwtCfg, token: mint(t, jwtCfg, time.Now().Add(-2*time.Hour), enums.MemberRoleCustomer), is: jwt.ErrTokenExpired},
		"unknown role": {cfg: jwtCfg, token: rogue, is: ErrUnknownRole},
		"no user":      {cfg: jwtCfg, token: anonymous, is: ErrMissingUser},
		"no secret":    {cfg: config.JWTConfig{}, token: good, is: ErrMisconfigured},
		"garbage":      {cfg: jwtCfg, token: "not.a.jwt", is: jwt.ErrTokenMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestParseAccessTokenToleratesSkew(t *testing.T) {
	cfg := jwtCfg
	cfg.ExpirationMinutes = 1
	token := mint(t, cfg, time.Now().Add(-time.Minute-10*time.Second), enums.MemberRoleCustomer)

	_, err := ParseAccessToken(cfg, token)
	assert.NoError(t, err)
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(jwtCfg, time.Now(), AccessTokenPayload{Role: enums.MemberRoleCustomer})
	assert.ErrorIs(t, err, ErrMissingUser)

	_, err = MintAccessToken(jwtCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "nope"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	for _, cfg := range []config.JWTConfig{
		{Issuer: "foodapp", ExpirationMinutes: 30},
		{Secret: "secret", ExpirationMinutes: 30},
		{Secret: "secret", Issuer: "foodapp"},
	} {
		_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleCustomer})
		assert.ErrorIs(t, err, ErrMisconfigured)
	}
}
