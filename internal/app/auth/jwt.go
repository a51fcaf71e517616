// Package auth issues and verifies the internal RS256 access tokens and
// manages refresh token rotation.
package auth

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskwarden/taskwarden/internal/app/domain/user"
)

// Claims is the access token payload. UserID is the subject; Tier is
// carried so tier-gated handlers don't need a database round trip on every
// request, though the subscription engine remains the source of truth and
// mutations re-derive tier from storage rather than trusting a stale claim.
type Claims struct {
	UserID string `json:"uid"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

// ErrTokenExpired is returned by TokenManager.Validate for an otherwise
// well-formed token past its exp, distinct from other validation failures
// so the caller can surface errors.CodeTokenExpired rather than plain 401.
var ErrTokenExpired = errors.New("auth: access token expired")

// TokenManager issues and validates RS256 access tokens using a single
// keypair, and exposes it as a JWKS document.
type TokenManager struct {
	privateKey *rsa.PrivateKey
	keyID      string
	issuer     string
	accessTTL  time.Duration
}

func NewTokenManager(key *rsa.PrivateKey, issuer string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		privateKey: key,
		keyID:      keyID(&key.PublicKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
	}
}

func keyID(pub *rsa.PublicKey) string {
	sum := sha256.Sum256(pub.N.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}

// Issue signs an access token for u, valid for the configured TTL.
func (m *TokenManager) Issue(u user.User) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.accessTTL)
	claims := Claims{
		UserID: u.ID,
		Tier:   string(u.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.keyID
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses and verifies an access token, returning ErrTokenExpired
// itself when the sole problem is expiry so the caller can distinguish
// it from a malformed or forged token.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return &m.privateKey.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	return claims, nil
}

// JWK is one entry of the JWKS document.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSDocument is served at /api/v1/.well-known/jwks.json.
type JWKSDocument struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the public half of the signing key in RFC 7517 form.
func (m *TokenManager) JWKS() JWKSDocument {
	pub := m.privateKey.PublicKey
	eBytes := bigIntToBytes(pub.E)
	return JWKSDocument{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: m.keyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(eBytes),
	}}}
}

func bigIntToBytes(e int) []byte {
	if e == 0 {
		return []byte{0}
	}
	var b []byte
	for e > 0 {
		b = append([]byte{byte(e & 0xff)}, b...)
		e >>= 8
	}
	return b
}
