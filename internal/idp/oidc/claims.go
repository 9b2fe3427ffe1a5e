package oidc

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"assetgate/internal/idp"
)

// accountFromIDToken extracts the identity claims from an ID token. The token
// arrived on the direct TLS channel from the token endpoint in exchange for an
// authorization code, so signature verification is not repeated here; the
// nonce is still checked by the caller against the login request.
func accountFromIDToken(raw string) (*idp.Account, string, error) {
	if raw == "" {
		return nil, "", fmt.Errorf("token response missing id_token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, "", fmt.Errorf("parse id token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, "", fmt.Errorf("id token missing sub claim")
	}

	account := &idp.Account{
		ID:       sub,
		Name:     stringClaim(claims, "name"),
		Username: stringClaim(claims, "preferred_username"),
	}
	if account.Username == "" {
		account.Username = stringClaim(claims, "email")
	}

	nonce := stringClaim(claims, "nonce")
	return account, nonce, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
