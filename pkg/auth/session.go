// Package auth issues and verifies session tokens and carries the
// authenticated principal through the request context. Password hashing
// and token issuance happen here; everything downstream sees only the
// Principal.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"chirpd/pkg/apperr"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// Principal identifies the authenticated account on a request.
type Principal struct {
	UserID      string `json:"userId"`
	UID         string `json:"uid"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AvatarColor string `json:"avatarColor"`
	IssuedAt    int64  `json:"iat"`
}

// Sessions mints and verifies HMAC-signed session tokens.
type Sessions struct {
	key []byte
	ttl time.Duration
}

// NewSessions builds a Sessions signer over the configured secret.
func NewSessions(key string) *Sessions {
	return &Sessions{key: []byte(key), ttl: defaultSessionTTL}
}

// Issue signs a token for the principal.
func (s *Sessions) Issue(p Principal) (string, error) {
	p.IssuedAt = time.Now().UTC().Unix()
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + s.sign(payload), nil
}

// Verify checks the signature and expiry and returns the principal.
func (s *Sessions) Verify(token string) (Principal, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return Principal{}, apperr.New(apperr.NotAuthorized, "malformed session token")
	}
	if !hmac.Equal([]byte(s.sign(parts[0])), []byte(parts[1])) {
		return Principal{}, apperr.New(apperr.NotAuthorized, "invalid session signature")
	}
	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Principal{}, apperr.New(apperr.NotAuthorized, "malformed session payload")
	}
	var p Principal
	if err := json.Unmarshal(body, &p); err != nil {
		return Principal{}, apperr.New(apperr.NotAuthorized, "malformed session payload")
	}
	if time.Since(time.Unix(p.IssuedAt, 0)) > s.ttl {
		return Principal{}, apperr.New(apperr.NotAuthorized, "session expired")
	}
	return p, nil
}

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// HashPassword returns the bcrypt hash of a password. cost <= 0 selects
// the library default.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares a password against its stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
