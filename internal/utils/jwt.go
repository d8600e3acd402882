package utils // package utils provides helpers for minting staff access tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a staff principal.  The
// principal goes into both "sub" and, when it looks like an address, "email"
// so that the service attributes updates to it.  Production tokens come from
// the identity provider; this is used by tests and the devtoken command.
func NewAccessToken(secret, principal, role string, ttlMin int) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	if principal == "" {
		return AccessToken{}, errors.New("empty principal")
	}
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  principal,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if isEmail(principal) {
		claims["email"] = principal
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

func isEmail(s string) bool {
	for i := 1; i < len(s)-1; i++ {
		if s[i] == '@' {
			return true
		}
	}
	return false
}
