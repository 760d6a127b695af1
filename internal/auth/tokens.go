// Package auth verifies the PASETO access tokens issued by the account
// service. Token issuance, refresh and password handling live in that
// service; this server only needs to resolve a bearer token to a trusted
// user id.
package auth

import (
	"fmt"

	"aidanwoods.dev/go-paseto"
)

const (
	tokenIssuer   = "readmark-accounts"
	tokenAudience = "readmark-api"

	// PASETO v4 symmetric key requirements.
	keyBytesSize = 32 // 256 bits
)

// TokenVerifier validates PASETO v4.local access tokens.
type TokenVerifier struct {
	symmetricKey paseto.V4SymmetricKey
	parser       paseto.Parser
}

// NewTokenVerifier creates a verifier from the shared symmetric key.
func NewTokenVerifier(keyBytes []byte) (*TokenVerifier, error) {
	if len(keyBytes) != keyBytesSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyBytesSize, len(keyBytes))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	parser := paseto.NewParser()
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.NotExpired())

	return &TokenVerifier{
		symmetricKey: key,
		parser:       parser,
	}, nil
}

// VerifyAccessToken decrypts and validates a token, returning the user id
// it was issued to.
func (v *TokenVerifier) VerifyAccessToken(tokenString string) (string, error) {
	token, err := v.parser.ParseV4Local(v.symmetricKey, tokenString, nil)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	userID, err := token.GetSubject()
	if err != nil {
		return "", fmt.Errorf("token missing subject: %w", err)
	}
	if userID == "" {
		return "", fmt.Errorf("token has empty subject")
	}

	return userID, nil
}
