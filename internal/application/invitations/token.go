package invitations

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
)

const (
	TokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// TokenSource generates invitation tokens.
type TokenSource interface {
	Token() (string, error)
}

// PseudoRandomTokens draws from math/rand. Whether invitation tokens must be
// unguessable is a product decision; SecureTokens is available behind
// INVITE_SECURE_TOKENS.
type PseudoRandomTokens struct{}

func (PseudoRandomTokens) Token() (string, error) {
	b := make([]byte, TokenLength)
	for i := range b {
		b[i] = tokenAlphabet[mrand.Intn(len(tokenAlphabet))]
	}
	return string(b), nil
}

// SecureTokens draws from crypto/rand.
type SecureTokens struct{}

func (SecureTokens) Token() (string, error) {
	b := make([]byte, TokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}

// NewTokenSource picks the token source for the configured policy.
func NewTokenSource(secure bool) TokenSource {
	if secure {
		return SecureTokens{}
	}
	return PseudoRandomTokens{}
}

// WellFormedToken reports whether s could be an invitation token.
func WellFormedToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
