// internal/auth/auth.go
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned when a job credential cannot be redeemed.
var ErrInvalidCredential = errors.New("invalid job credential")

// Claims is the body of a job credential: a short-lived token that lets one
// queued job act with the submitting user's directory password.
type Claims struct {
	Sealed string `json:"cred"` // Vault-sealed password
	jwt.RegisteredClaims
}

// CredentialIssuer mints and redeems job credentials. The web process and the
// workers must share the same secret.
type CredentialIssuer struct {
	vault      *Vault
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewCredentialIssuer creates an issuer whose tokens live for ttl.
func NewCredentialIssuer(vault *Vault, secret string, ttl time.Duration) *CredentialIssuer {
	key := sha256.Sum256([]byte("jwt:" + secret))
	return &CredentialIssuer{
		vault:      vault,
		signingKey: key[:],
		ttl:        ttl,
		now:        time.Now,
	}
}

// Vault returns the vault used to open sealed passwords.
func (i *CredentialIssuer) Vault() *Vault {
	return i.vault
}

// Issue creates a token for jobID carrying the already-sealed password of username.
func (i *CredentialIssuer) Issue(username, sealedPassword, jobID string) (string, error) {
	now := i.now()
	claims := &Claims{
		Sealed: sealedPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        jobID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return tokenString, nil
}

// Redeem validates a token issued for jobID and returns the username and plaintext password.
func (i *CredentialIssuer) Redeem(tokenString, jobID string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return "", "", ErrInvalidCredential
	}
	if claims.ID != jobID {
		return "", "", fmt.Errorf("%w: issued for another job", ErrInvalidCredential)
	}

	password, err := i.vault.Open(claims.Sealed)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return claims.Subject, password, nil
}
