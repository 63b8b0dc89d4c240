package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const identityCookie = "auth_token"

// IdentityService issues and verifies the bearer tokens that carry a caller's
// identity key in the "sub" claim. Possession of a valid token is the whole
// of authentication.
type IdentityService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewIdentityService(secret string, expiry time.Duration) *IdentityService {
	return &IdentityService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Issue returns a signed token for identity and its expiry.
func (s *IdentityService) Issue(identity string) (string, time.Time, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", time.Time{}, fmt.Errorf("identity is required")
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := jwt.MapClaims{
		"sub": identity,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Verify checks the token signature and expiry and returns the identity it carries.
func (s *IdentityService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	identity, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if identity == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return identity, nil
}

// FromRequest extracts the caller identity from a bearer token or the auth cookie.
// It returns "" when the request carries no valid token.
func (s *IdentityService) FromRequest(r *http.Request) string {
	tokenString := ""
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			tokenString = strings.TrimSpace(after)
		}
	}
	if tokenString == "" {
		if cookie, err := r.Cookie(identityCookie); err == nil {
			tokenString = cookie.Value
		}
	}
	if tokenString == "" {
		return ""
	}

	identity, err := s.Verify(tokenString)
	if err != nil {
		return ""
	}
	return identity
}
